package core

import (
	"context"

	"github.com/BKHilton/Ember/pkg/domain"
)

// CreateTemplate stores a church-scoped assignment template.
func (s *Service) CreateTemplate(ctx context.Context, tmpl domain.AssignmentTemplate) (domain.AssignmentTemplate, error) {
	var created domain.AssignmentTemplate
	err := s.run(ctx, "create_template", tmpl.ChurchID, func(ctx context.Context) (string, error) {
		tmpl.Name = cleanText(tmpl.Name)
		tmpl.Category = cleanText(tmpl.Category)
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateTemplate(tmpl)
			return err
		})
		return created.ID, err
	})
	return created, err
}

// ListTemplates returns the templates of a church.
func (s *Service) ListTemplates(ctx context.Context, churchID string) []domain.AssignmentTemplate {
	var out []domain.AssignmentTemplate
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if churchID != "" {
			out = v.ListTemplates(churchID)
		}
		return nil
	})
	return out
}
