package core

import (
	"context"
	"fmt"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

// Digest labels.
const (
	WeeklyDigestLabel  = "Weekly Digest"
	MonthlyDigestLabel = "Monthly Digest"
)

// ComposeDigest summarises a church over the window (start, end). Both
// bounds are exclusive. Past-due tasks and converts are current totals, not
// window counts.
func ComposeDigest(view domain.TransactionView, churchID string, start, end time.Time, label string) domain.ReportDigest {
	d := domain.ReportDigest{
		ChurchID:    churchID,
		Label:       label,
		WindowStart: start,
		WindowEnd:   end,
	}
	inWindow := func(t time.Time) bool { return t.After(start) && t.Before(end) }

	for _, a := range view.ListActivities(churchID) {
		if inWindow(a.CreatedAt) {
			d.TotalActivities++
		}
	}
	for _, t := range view.ListTasks(churchID) {
		switch t.Status {
		case domain.TaskCompleted:
			if t.CompletedAt != nil && inWindow(*t.CompletedAt) {
				d.CompletedAssignments++
			}
		case domain.TaskRescheduled:
			if inWindow(t.UpdatedAt) {
				d.RescheduledAssignments++
			}
		case domain.TaskPastDue:
			d.PastDueTasks++
		}
	}
	for _, c := range view.ListContacts(churchID) {
		if inWindow(c.CreatedAt) {
			d.NewContacts++
		}
		if c.Temperature == domain.TemperatureConvert {
			d.Converts++
		}
	}
	return d
}

// WeeklyWindow returns the calendar week containing now, in now's location.
func WeeklyWindow(now time.Time, weekStart time.Weekday) (time.Time, time.Time) {
	day := startOfDay(now)
	offset := (int(day.Weekday()) - int(weekStart) + 7) % 7
	start := day.AddDate(0, 0, -offset)
	return start, start.AddDate(0, 0, 7)
}

// MonthlyWindow returns the calendar month containing now, in now's location.
func MonthlyWindow(now time.Time) (time.Time, time.Time) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return start, start.AddDate(0, 1, 0)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ChurchLocation resolves the timezone of the church's primary campus,
// falling back to fallback when it is unset or unknown.
func ChurchLocation(view domain.TransactionView, church domain.Church, fallback *time.Location) *time.Location {
	if campus, ok := view.FindCampus(church.PrimaryCampusID); ok && campus.Timezone != "" {
		if loc, err := time.LoadLocation(campus.Timezone); err == nil {
			return loc
		}
	}
	if fallback == nil {
		return time.UTC
	}
	return fallback
}

// ComposeDigest summarises a church over an explicit window.
func (s *Service) ComposeDigest(ctx context.Context, churchID string, start, end time.Time, label string) (domain.ReportDigest, error) {
	var digest domain.ReportDigest
	err := s.run(ctx, "compose_digest", churchID, func(ctx context.Context) (string, error) {
		return churchID, s.view(ctx, func(v domain.TransactionView) error {
			if _, ok := v.FindChurch(churchID); !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: churchID}
			}
			digest = ComposeDigest(v, churchID, start, end, label)
			digest.GeneratedAt = s.Now()
			return nil
		})
	})
	return digest, err
}

// GenerateWeeklyDigest summarises the current calendar week.
func (s *Service) GenerateWeeklyDigest(ctx context.Context, churchID string) (domain.ReportDigest, error) {
	return s.GenerateDigestAt(ctx, churchID, domain.DigestWeekly, s.Now())
}

// GenerateMonthlyDigest summarises the current calendar month.
func (s *Service) GenerateMonthlyDigest(ctx context.Context, churchID string) (domain.ReportDigest, error) {
	return s.GenerateDigestAt(ctx, churchID, domain.DigestMonthly, s.Now())
}

// GenerateDigestAt summarises the period of kind containing at, evaluated in
// the church's timezone.
func (s *Service) GenerateDigestAt(ctx context.Context, churchID string, kind domain.DigestKind, at time.Time) (domain.ReportDigest, error) {
	var digest domain.ReportDigest
	err := s.run(ctx, "generate_digest", churchID, func(ctx context.Context) (string, error) {
		return churchID, s.view(ctx, func(v domain.TransactionView) error {
			church, ok := v.FindChurch(churchID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: churchID}
			}
			local := at.In(ChurchLocation(v, church, s.location))
			var start, end time.Time
			var label string
			switch kind {
			case domain.DigestWeekly:
				start, end = WeeklyWindow(local, s.weekStart)
				label = WeeklyDigestLabel
			case domain.DigestMonthly:
				start, end = MonthlyWindow(local)
				label = MonthlyDigestLabel
			default:
				return domain.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown digest kind %q", kind)}
			}
			digest = ComposeDigest(v, churchID, start, end, label)
			digest.GeneratedAt = s.Now()
			return nil
		})
	})
	return digest, err
}
