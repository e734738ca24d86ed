package core

import (
	"context"
	"strings"

	"github.com/BKHilton/Ember/internal/auth"
	"github.com/BKHilton/Ember/internal/infra/persistence/memory"
	"github.com/BKHilton/Ember/pkg/domain"
)

// CampusInput describes a campus created during registration.
type CampusInput struct {
	Name     string
	Address  string
	Timezone string
}

// DirectorInput describes the first account of a new church.
type DirectorInput struct {
	Name     string
	Email    string
	Password string
}

// RegisterChurchInput onboards a church with its campuses and director.
type RegisterChurchInput struct {
	Name             string
	Campuses         []CampusInput
	DigestPreference *domain.DigestPreference
	Alerts           domain.AlertSettings
	PlanID           string
	Director         DirectorInput
}

// RegisterChurch creates a church, its campuses (the first one is primary),
// and a director account with credentials in a single transaction.
func (s *Service) RegisterChurch(ctx context.Context, in RegisterChurchInput) (domain.Church, domain.UserAccount, error) {
	var (
		church   domain.Church
		director domain.UserAccount
	)
	err := s.run(ctx, "register_church", "", func(ctx context.Context) (string, error) {
		hash, err := auth.HashPassword(in.Director.Password)
		if err != nil {
			return "", domain.ValidationError{Field: "director.password", Reason: err.Error()}
		}
		campuses := in.Campuses
		if len(campuses) == 0 {
			campuses = []CampusInput{{Name: memory.DefaultCampusName}}
		}
		err = s.update(ctx, func(tx domain.Transaction) error {
			planID := in.PlanID
			if planID == "" {
				planID = defaultPlanID(tx.Snapshot())
			}
			draft := domain.Church{Name: strings.TrimSpace(in.Name), Alerts: in.Alerts, PlanID: planID}
			if in.DigestPreference != nil {
				draft.DigestPreference = *in.DigestPreference
			}
			created, err := tx.CreateChurch(draft)
			if err != nil {
				return err
			}
			for _, c := range campuses {
				if _, err := tx.CreateCampus(domain.Campus{
					ChurchID: created.ID,
					Name:     strings.TrimSpace(c.Name),
					Address:  strings.TrimSpace(c.Address),
					Timezone: strings.TrimSpace(c.Timezone),
				}); err != nil {
					return err
				}
			}
			director, err = tx.CreateUser(domain.UserAccount{
				ChurchID: created.ID,
				Name:     strings.TrimSpace(in.Director.Name),
				Email:    in.Director.Email,
				Role:     domain.RoleDirector,
			})
			if err != nil {
				return err
			}
			if err := tx.PutCredential(domain.UserCredential{UserID: director.ID, PasswordHash: hash}); err != nil {
				return err
			}
			church, _ = tx.Snapshot().FindChurch(created.ID)
			return nil
		})
		return church.ID, err
	})
	if err != nil {
		return domain.Church{}, domain.UserAccount{}, err
	}
	return s.projectChurch(ctx, church), director, nil
}

func defaultPlanID(view domain.TransactionView) string {
	for _, plan := range view.ListPlans() {
		if plan.Code == "free" {
			return plan.ID
		}
	}
	return ""
}

// FindChurch returns the church with its campuses expanded and SMTP password
// redacted.
func (s *Service) FindChurch(ctx context.Context, id string) (domain.Church, bool) {
	var (
		church domain.Church
		ok     bool
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		church, ok = v.FindChurch(id)
		if ok {
			church = expandChurch(v, church)
		}
		return nil
	})
	return church, ok
}

// ListChurches returns every church in its external projection.
func (s *Service) ListChurches(ctx context.Context) []domain.Church {
	var out []domain.Church
	_ = s.view(ctx, func(v domain.TransactionView) error {
		for _, c := range v.ListChurches() {
			out = append(out, expandChurch(v, c))
		}
		return nil
	})
	return out
}

func (s *Service) projectChurch(ctx context.Context, church domain.Church) domain.Church {
	if projected, ok := s.FindChurch(ctx, church.ID); ok {
		return projected
	}
	return church
}

func expandChurch(v domain.TransactionView, c domain.Church) domain.Church {
	c.Campuses = v.ListCampuses(c.ID)
	c.CampusIDs = append([]string(nil), c.CampusIDs...)
	if c.SMTP != nil {
		redacted := c.SMTP.Redacted()
		c.SMTP = &redacted
	}
	return c
}

// CreateCampus adds a campus to an existing church. The church's plan limit
// on campuses is enforced when one is set.
func (s *Service) CreateCampus(ctx context.Context, campus domain.Campus) (domain.Campus, error) {
	var created domain.Campus
	err := s.run(ctx, "create_campus", campus.ChurchID, func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			church, ok := view.FindChurch(campus.ChurchID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: campus.ChurchID}
			}
			if plan, ok := view.FindPlan(church.PlanID); ok && plan.MaxCampuses > 0 && len(church.CampusIDs) >= plan.MaxCampuses {
				return domain.ValidationError{Field: "campus", Reason: "plan " + plan.Code + " campus limit reached"}
			}
			campus.Name = strings.TrimSpace(campus.Name)
			var err error
			created, err = tx.CreateCampus(campus)
			return err
		})
		return created.ID, err
	})
	return created, err
}

// UpdateCampus mutates a campus.
func (s *Service) UpdateCampus(ctx context.Context, id string, mutator func(*domain.Campus) error) (domain.Campus, error) {
	var updated domain.Campus
	err := s.run(ctx, "update_campus", "", func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateCampus(id, mutator)
			return err
		})
		return id, err
	})
	return updated, err
}

// SetPrimaryCampus designates one of the church's own campuses as primary.
func (s *Service) SetPrimaryCampus(ctx context.Context, churchID, campusID string) (domain.Church, error) {
	var updated domain.Church
	err := s.run(ctx, "set_primary_campus", churchID, func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			campus, ok := tx.Snapshot().FindCampus(campusID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityCampus, ID: campusID}
			}
			if campus.ChurchID != churchID {
				return domain.ValidationError{Field: "primary_campus_id", Reason: "campus belongs to another church"}
			}
			var err error
			updated, err = tx.UpdateChurch(churchID, func(c *domain.Church) error {
				c.PrimaryCampusID = campusID
				return nil
			})
			return err
		})
		return churchID, err
	})
	if err != nil {
		return domain.Church{}, err
	}
	return s.projectChurch(ctx, updated), nil
}

// ChurchSettings lists the church fields a director may change. Nil fields
// are left untouched.
type ChurchSettings struct {
	Name             *string
	DigestPreference *domain.DigestPreference
	Alerts           *domain.AlertSettings
	PlanID           *string
}

// UpdateChurchSettings applies settings to a church.
func (s *Service) UpdateChurchSettings(ctx context.Context, churchID string, settings ChurchSettings) (domain.Church, error) {
	var updated domain.Church
	err := s.run(ctx, "update_church_settings", churchID, func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateChurch(churchID, func(c *domain.Church) error {
				if settings.Name != nil {
					c.Name = strings.TrimSpace(*settings.Name)
				}
				if settings.DigestPreference != nil {
					c.DigestPreference = *settings.DigestPreference
				}
				if settings.Alerts != nil {
					c.Alerts = *settings.Alerts
				}
				if settings.PlanID != nil {
					c.PlanID = *settings.PlanID
				}
				return nil
			})
			return err
		})
		return churchID, err
	})
	if err != nil {
		return domain.Church{}, err
	}
	return s.projectChurch(ctx, updated), nil
}

// UpdateSMTPConfig stores or, given nil, clears the church's mail settings.
// An empty password keeps the stored one.
func (s *Service) UpdateSMTPConfig(ctx context.Context, churchID string, cfg *domain.SMTPConfig) (domain.Church, error) {
	var updated domain.Church
	err := s.run(ctx, "update_smtp_config", churchID, func(ctx context.Context) (string, error) {
		if cfg != nil {
			if strings.TrimSpace(cfg.Host) == "" {
				return churchID, domain.ValidationError{Field: "smtp.host", Reason: "required"}
			}
			if !strings.Contains(cfg.From, "@") {
				return churchID, domain.ValidationError{Field: "smtp.from", Reason: "must be an email address"}
			}
			if cfg.Port < 0 || cfg.Port > 65535 {
				return churchID, domain.ValidationError{Field: "smtp.port", Reason: "out of range"}
			}
		}
		err := s.update(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateChurch(churchID, func(c *domain.Church) error {
				if cfg == nil {
					c.SMTP = nil
					return nil
				}
				next := *cfg
				next.Host = strings.TrimSpace(next.Host)
				next.From = strings.TrimSpace(next.From)
				if next.Password == "" && c.SMTP != nil {
					next.Password = c.SMTP.Password
				}
				c.SMTP = &next
				return nil
			})
			return err
		})
		return churchID, err
	})
	if err != nil {
		return domain.Church{}, err
	}
	return s.projectChurch(ctx, updated), nil
}
