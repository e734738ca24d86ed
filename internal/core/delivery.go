package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BKHilton/Ember/internal/mailer"
	"github.com/BKHilton/Ember/internal/notify"
	"github.com/BKHilton/Ember/pkg/domain"
)

// DigestDelivery reports what one digest firing produced. EmailErr is set
// when mailing failed; the firing itself still counts as delivered.
type DigestDelivery struct {
	Kind     domain.DigestKind
	Digest   domain.ReportDigest
	Report   string
	Emailed  int
	EmailErr error
}

// DeliverDigest generates the digest of kind for the period containing at,
// writes it as a report file, mails it to the church's directors when email
// alerts are on and emits digest.ready.
func (s *Service) DeliverDigest(ctx context.Context, churchID string, kind domain.DigestKind, at time.Time) (DigestDelivery, error) {
	digest, err := s.GenerateDigestAt(ctx, churchID, kind, at)
	if err != nil {
		return DigestDelivery{}, err
	}
	location, err := s.WriteReport(ctx, churchID, digest)
	if err != nil {
		return DigestDelivery{}, err
	}
	d := DigestDelivery{Kind: kind, Digest: digest, Report: location}
	d.Emailed, d.EmailErr = s.mailDigest(ctx, churchID, digest, location)
	if d.EmailErr != nil {
		s.logger.Warn("digest email failed", "church_id", churchID, "kind", kind, "error", d.EmailErr)
	}
	s.emit(ctx, notify.Event{
		Kind:     notify.DigestReady,
		ChurchID: churchID,
		EntityID: location,
		Message:  digest.Label + " ready",
		Data:     map[string]string{"kind": string(kind), "report": location},
	})
	return d, nil
}

func (s *Service) mailDigest(ctx context.Context, churchID string, digest domain.ReportDigest, location string) (int, error) {
	var (
		church    domain.Church
		directors []domain.UserAccount
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		church, _ = v.FindChurch(churchID)
		for _, u := range v.ListUsers(churchID) {
			if u.Role == domain.RoleDirector && u.Email != "" {
				directors = append(directors, u)
			}
		}
		return nil
	})
	if !church.Alerts.Email || church.SMTP == nil || len(directors) == 0 {
		return 0, nil
	}
	m, err := s.mailers(*church.SMTP)
	if err != nil {
		return 0, err
	}

	var (
		sent int
		errs []error
	)
	for _, director := range directors {
		msg := mailer.BuildDigestEmail(mailer.DigestEmailData{ChurchName: church.Name, Digest: digest, ReportPath: location})
		msg.To = director.Email
		if err := m.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", director.Email, err))
			continue
		}
		sent++
	}
	return sent, errors.Join(errs...)
}

// LocationOf returns the timezone digests of a church are evaluated in.
func (s *Service) LocationOf(ctx context.Context, churchID string) *time.Location {
	loc := s.location
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if church, ok := v.FindChurch(churchID); ok {
			loc = ChurchLocation(v, church, s.location)
		}
		return nil
	})
	return loc
}
