package core

import (
	"context"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

// Snapshot is the external projection of the whole document. Credentials
// are never part of it and SMTP passwords are redacted.
type Snapshot struct {
	GeneratedAt time.Time                   `json:"generated_at"`
	Churches    []domain.Church             `json:"churches"`
	Users       []domain.UserAccount        `json:"users"`
	Contacts    []domain.Contact            `json:"contacts"`
	Tasks       []domain.FollowUpTask       `json:"tasks"`
	Activities  []domain.ActivityLog        `json:"activities"`
	Templates   []domain.AssignmentTemplate `json:"templates"`
	Plans       []domain.SubscriptionPlan   `json:"plans"`
}

// GetSnapshot returns a deep projection of the current state.
func (s *Service) GetSnapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := s.view(ctx, func(v domain.TransactionView) error {
		snap = Snapshot{
			GeneratedAt: s.Now(),
			Users:       v.ListUsers(""),
			Contacts:    v.ListContacts(""),
			Tasks:       v.ListTasks(""),
			Activities:  v.ListActivities(""),
			Templates:   v.ListTemplates(""),
			Plans:       v.ListPlans(),
		}
		for _, c := range v.ListChurches() {
			snap.Churches = append(snap.Churches, expandChurch(v, c))
		}
		return nil
	})
	return snap, err
}
