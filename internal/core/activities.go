package core

import (
	"context"
	"strings"

	"github.com/BKHilton/Ember/pkg/domain"
)

// RecordActivityInput logs something that happened with a contact.
type RecordActivityInput struct {
	ChurchID  string
	ContactID string
	UserID    string
	TaskID    string
	Type      domain.ActivityType
	Summary   string
	Note      string
}

// RecordActivity appends an activity and touches the contact.
func (s *Service) RecordActivity(ctx context.Context, in RecordActivityInput) (domain.ActivityLog, error) {
	var logged domain.ActivityLog
	err := s.run(ctx, "record_activity", in.ChurchID, func(ctx context.Context) (string, error) {
		summary := cleanText(in.Summary)
		if summary == "" {
			summary = activitySummary(in.Type)
		}
		err := s.update(ctx, func(tx domain.Transaction) error {
			contact, ok := tx.Snapshot().FindContact(in.ContactID)
			if !ok || contact.ChurchID != in.ChurchID {
				return domain.NotFoundError{Entity: domain.EntityContact, ID: in.ContactID}
			}
			var err error
			_, logged, err = logContactActivity(tx, contact.ID, domain.ActivityLog{
				UserID:  in.UserID,
				TaskID:  in.TaskID,
				Type:    in.Type,
				Summary: summary,
				Note:    cleanText(in.Note),
			})
			return err
		})
		return logged.ID, err
	})
	return logged, err
}

func activitySummary(t domain.ActivityType) string {
	switch t {
	case domain.ActivityCall:
		return "Phone call"
	case domain.ActivityVisit:
		return "Visit"
	case domain.ActivityTask:
		return "Task update"
	case domain.ActivityAssignmentResult:
		return "Assignment result"
	}
	return "Note"
}

// ListActivities returns a church's activities newest first, optionally for
// a single contact.
func (s *Service) ListActivities(ctx context.Context, churchID, contactID string) []domain.ActivityLog {
	var out []domain.ActivityLog
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if strings.TrimSpace(churchID) == "" {
			return nil
		}
		for _, a := range v.ListActivities(churchID) {
			if contactID == "" || a.ContactID == contactID {
				out = append(out, a)
			}
		}
		return nil
	})
	return out
}
