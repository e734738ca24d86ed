package core

import (
	"context"
	"strings"

	"github.com/BKHilton/Ember/pkg/domain"
)

// CreatePlan adds a subscription plan to the global catalog.
func (s *Service) CreatePlan(ctx context.Context, plan domain.SubscriptionPlan) (domain.SubscriptionPlan, error) {
	var created domain.SubscriptionPlan
	err := s.run(ctx, "create_plan", "", func(ctx context.Context) (string, error) {
		plan.Code = strings.ToLower(strings.TrimSpace(plan.Code))
		plan.Name = strings.TrimSpace(plan.Name)
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreatePlan(plan)
			return err
		})
		return created.ID, err
	})
	return created, err
}

// UpdatePlan mutates a catalog entry.
func (s *Service) UpdatePlan(ctx context.Context, id string, mutator func(*domain.SubscriptionPlan) error) (domain.SubscriptionPlan, error) {
	var updated domain.SubscriptionPlan
	err := s.run(ctx, "update_plan", "", func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdatePlan(id, mutator)
			return err
		})
		return id, err
	})
	return updated, err
}

// ListPlans returns the catalog.
func (s *Service) ListPlans(ctx context.Context) []domain.SubscriptionPlan {
	var out []domain.SubscriptionPlan
	_ = s.view(ctx, func(v domain.TransactionView) error {
		out = v.ListPlans()
		return nil
	})
	return out
}

// FindPlan returns a catalog entry by id.
func (s *Service) FindPlan(ctx context.Context, id string) (domain.SubscriptionPlan, bool) {
	var (
		plan domain.SubscriptionPlan
		ok   bool
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		plan, ok = v.FindPlan(id)
		return nil
	})
	return plan, ok
}
