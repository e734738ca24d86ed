package core

import (
	"context"
	"testing"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

func TestWeeklyDigestCountsOnlyThisWeek(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.clock.Set(time.Date(2024, 2, 28, 12, 0, 0, 0, time.UTC))
	contact := f.contact(t, "Morgan")

	f.clock.Set(baseTime)
	for range 3 {
		f.clock.Advance(time.Minute)
		if _, err := f.svc.RecordActivity(ctx, RecordActivityInput{ChurchID: f.church.ID, ContactID: contact.ID, Type: domain.ActivityVisit}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	digest, err := f.svc.GenerateWeeklyDigest(ctx, f.church.ID)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest.TotalActivities != 3 {
		t.Fatalf("expected 3 activities this week, got %d", digest.TotalActivities)
	}
	if digest.NewContacts != 0 {
		t.Fatalf("expected last week's contact to be excluded, got %d", digest.NewContacts)
	}
	if digest.Label != WeeklyDigestLabel || !digest.GeneratedAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected digest header %+v", digest)
	}
	wantStart := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	if !digest.WindowStart.Equal(wantStart) || !digest.WindowEnd.Equal(wantStart.AddDate(0, 0, 7)) {
		t.Fatalf("unexpected window %v - %v", digest.WindowStart, digest.WindowEnd)
	}
}

func TestDigestWindowBoundsAreExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	start := time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 7)

	f.clock.Set(start)
	f.contact(t, "Edge")
	f.clock.Set(end)
	f.contact(t, "Other Edge")
	f.clock.Set(start.Add(time.Second))
	f.contact(t, "Inside")

	digest, err := f.svc.ComposeDigest(ctx, f.church.ID, start, end, "Custom")
	if err != nil {
		t.Fatalf("compose: %v", err)
	}
	if digest.NewContacts != 1 || digest.TotalActivities != 1 {
		t.Fatalf("expected only the inside contact, got %+v", digest)
	}
	if _, err := f.svc.ComposeDigest(ctx, "missing", start, end, "Custom"); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown church, got %v", err)
	}
}

func TestDigestTaskAndConvertCounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.contact(t, "Riley")
	overdue := f.task(t, contact, baseTime.Add(-time.Hour))
	done := f.task(t, contact, baseTime.Add(time.Hour))
	moved := f.task(t, contact, baseTime.Add(2*time.Hour))

	f.clock.Advance(time.Minute)
	if _, _, err := f.svc.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: done.ID, Status: domain.TaskCompleted}); err != nil {
		t.Fatalf("complete: %v", err)
	}
	next := baseTime.Add(96 * time.Hour)
	if _, _, err := f.svc.UpdateTaskStatus(ctx, TaskStatusUpdate{TaskID: moved.ID, Status: domain.TaskRescheduled, RescheduledFor: &next}); err != nil {
		t.Fatalf("reschedule: %v", err)
	}
	if _, _, err := f.svc.UpdateContactStatus(ctx, ContactStatusUpdate{ContactID: contact.ID, Temperature: domain.TemperatureConvert}); err != nil {
		t.Fatalf("convert: %v", err)
	}

	digest, err := f.svc.GenerateWeeklyDigest(ctx, f.church.ID)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest.CompletedAssignments != 1 || digest.RescheduledAssignments != 1 || digest.PastDueTasks != 1 {
		t.Fatalf("unexpected task counts %+v", digest)
	}
	if digest.Converts != 1 || digest.NewContacts != 1 {
		t.Fatalf("unexpected contact counts %+v", digest)
	}
	if got, _ := f.svc.FindTask(ctx, overdue.ID); got.Status != domain.TaskPastDue {
		t.Fatalf("expected overdue task past-due, got %s", got.Status)
	}
}

func TestMonthlyDigestWindow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.clock.Set(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC))
	f.contact(t, "February")
	f.clock.Set(time.Date(2024, 3, 1, 0, 0, 1, 0, time.UTC))
	f.contact(t, "March")
	f.clock.Set(time.Date(2024, 3, 31, 18, 0, 0, 0, time.UTC))

	digest, err := f.svc.GenerateMonthlyDigest(ctx, f.church.ID)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	if digest.Label != MonthlyDigestLabel || digest.NewContacts != 1 {
		t.Fatalf("unexpected monthly digest %+v", digest)
	}
	if !digest.WindowStart.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)) || !digest.WindowEnd.Equal(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected window %v - %v", digest.WindowStart, digest.WindowEnd)
	}
	if _, err := f.svc.GenerateDigestAt(ctx, f.church.ID, "yearly", f.clock.Now()); !domain.IsValidation(err) {
		t.Fatalf("expected unknown kind error, got %v", err)
	}
}

func TestDigestUsesChurchTimezone(t *testing.T) {
	chicago, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skipf("timezone data unavailable: %v", err)
	}
	f := newFixture(t, WithWeekStart(time.Monday))
	ctx := context.Background()
	if _, err := f.svc.UpdateCampus(ctx, f.church.PrimaryCampusID, func(c *domain.Campus) error {
		c.Timezone = "America/Chicago"
		return nil
	}); err != nil {
		t.Fatalf("update campus: %v", err)
	}

	// 03:00 UTC on Monday is still Sunday evening in Chicago.
	at := time.Date(2024, 3, 4, 3, 0, 0, 0, time.UTC)
	digest, err := f.svc.GenerateDigestAt(ctx, f.church.ID, domain.DigestWeekly, at)
	if err != nil {
		t.Fatalf("digest: %v", err)
	}
	want := time.Date(2024, 2, 26, 0, 0, 0, 0, chicago)
	if !digest.WindowStart.Equal(want) {
		t.Fatalf("expected window start %v, got %v", want, digest.WindowStart)
	}
}

func TestWeeklyWindow(t *testing.T) {
	wed := time.Date(2024, 3, 6, 15, 4, 0, 0, time.UTC)
	start, end := WeeklyWindow(wed, time.Sunday)
	if !start.Equal(time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC)) || end.Sub(start) != 7*24*time.Hour {
		t.Fatalf("unexpected sunday window %v - %v", start, end)
	}
	start, _ = WeeklyWindow(wed, time.Wednesday)
	if !start.Equal(time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected window to start the same day, got %v", start)
	}
}
