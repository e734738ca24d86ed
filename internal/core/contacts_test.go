package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

func TestCreateContactUsesPrimaryCampus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact, err := f.svc.CreateContact(ctx, CreateContactInput{
		ChurchID:  f.church.ID,
		FirstName: "  Jamie <b>",
		LastName:  "Rivera",
		Tags:      []string{"Youth", "youth", " visitor "},
		Family:    []domain.FamilyMember{{Name: "Ana", Relationship: "sister"}, {Name: "   "}},
		ActorID:   f.director.ID,
	})
	if err != nil {
		t.Fatalf("create contact: %v", err)
	}
	if contact.CampusID != f.church.PrimaryCampusID {
		t.Fatalf("expected primary campus, got %s", contact.CampusID)
	}
	if contact.Temperature != domain.TemperatureNew {
		t.Fatalf("expected new temperature, got %s", contact.Temperature)
	}
	if contact.FirstName != "Jamie" {
		t.Fatalf("expected markup stripped, got %q", contact.FirstName)
	}
	if len(contact.Tags) != 2 || len(contact.Family) != 1 {
		t.Fatalf("expected deduplicated tags and one family member, got %v %v", contact.Tags, contact.Family)
	}

	activities := f.svc.ListActivities(ctx, f.church.ID, contact.ID)
	if len(activities) != 1 || activities[0].Summary != "Contact created" {
		t.Fatalf("expected creation activity, got %+v", activities)
	}
	if !contact.LastActivityAt.Equal(activities[0].CreatedAt) {
		t.Fatalf("expected lastActivityAt to match the activity")
	}
}

func TestCreateContactRejectsForeignCampus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other, _ := seedChurch(t, f.svc, "Other Church")
	if _, err := f.svc.CreateContact(ctx, CreateContactInput{ChurchID: f.church.ID, CampusID: other.PrimaryCampusID, FirstName: "X"}); !domain.IsValidation(err) {
		t.Fatalf("expected foreign campus rejected, got %v", err)
	}
	if _, err := f.svc.CreateContact(ctx, CreateContactInput{ChurchID: "missing", FirstName: "X"}); !domain.IsNotFound(err) {
		t.Fatalf("expected unknown church, got %v", err)
	}
}

func TestResolveCampusWithoutCampuses(t *testing.T) {
	f := newFixture(t)
	err := f.svc.Store().View(context.Background(), func(v domain.TransactionView) error {
		church := f.church
		church.PrimaryCampusID = ""
		if _, err := resolveCampus(v, church, ""); !domain.IsValidation(err) {
			t.Fatalf("expected validation error, got %v", err)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}

func TestCreateContactHonoursPlanLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	plan, err := f.svc.CreatePlan(ctx, domain.SubscriptionPlan{Code: "one", Name: "One", MaxContacts: 1})
	if err != nil {
		t.Fatalf("create plan: %v", err)
	}
	if _, err := f.svc.UpdateChurchSettings(ctx, f.church.ID, ChurchSettings{PlanID: &plan.ID}); err != nil {
		t.Fatalf("assign plan: %v", err)
	}
	f.contact(t, "First")
	if _, err := f.svc.CreateContact(ctx, CreateContactInput{ChurchID: f.church.ID, FirstName: "Second"}); !domain.IsValidation(err) {
		t.Fatalf("expected contact limit error, got %v", err)
	}
}

func TestUpdateContactStatusLogsActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.contact(t, "Jordan")
	f.clock.Advance(2 * time.Hour)

	updated, ok, err := f.svc.UpdateContactStatus(ctx, ContactStatusUpdate{ContactID: contact.ID, ChurchID: f.church.ID, Temperature: domain.TemperatureWarm, Note: "Came twice"})
	if err != nil || !ok {
		t.Fatalf("update status: ok=%v err=%v", ok, err)
	}
	if updated.Temperature != domain.TemperatureWarm || !updated.LastActivityAt.Equal(baseTime.Add(2*time.Hour)) {
		t.Fatalf("unexpected contact %+v", updated)
	}
	latest := f.svc.ListActivities(ctx, f.church.ID, contact.ID)[0]
	if latest.Summary != "Temperature changed from new to warm" || latest.Note != "Came twice" {
		t.Fatalf("unexpected activity %+v", latest)
	}

	if _, ok, err := f.svc.UpdateContactStatus(ctx, ContactStatusUpdate{ContactID: "missing", Temperature: domain.TemperatureHot}); ok || err != nil {
		t.Fatalf("expected not found, got ok=%v err=%v", ok, err)
	}
	other, _ := seedChurch(t, f.svc, "Other Church")
	if _, ok, _ := f.svc.UpdateContactStatus(ctx, ContactStatusUpdate{ContactID: contact.ID, ChurchID: other.ID, Temperature: domain.TemperatureHot}); ok {
		t.Fatalf("expected contact of another church to be invisible")
	}
	if _, _, err := f.svc.UpdateContactStatus(ctx, ContactStatusUpdate{ContactID: contact.ID, Temperature: "lukewarm"}); !domain.IsValidation(err) {
		t.Fatalf("expected invalid temperature, got %v", err)
	}
}

func TestUpdateContactDetailsAndOwner(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.contact(t, "Taylor")
	email := "taylor@example.org"
	tags := []string{"choir"}
	updated, err := f.svc.UpdateContactDetails(ctx, contact.ID, f.director.ID, ContactDetails{Email: &email, Tags: &tags})
	if err != nil {
		t.Fatalf("update details: %v", err)
	}
	if updated.Email != email || updated.FirstName != "Taylor" || len(updated.Tags) != 1 {
		t.Fatalf("unexpected contact %+v", updated)
	}

	owned, err := f.svc.AssignContactOwner(ctx, contact.ID, f.director.ID, f.director.ID)
	if err != nil || owned.OwnerID != f.director.ID {
		t.Fatalf("assign owner: %+v %v", owned, err)
	}
	if got := f.svc.ListContacts(ctx, f.church.ID, ContactFilter{OwnerID: f.director.ID, Tag: "CHOIR"}); len(got) != 1 {
		t.Fatalf("expected filter match, got %d", len(got))
	}
	f.clock.Advance(time.Minute)
	cleared, err := f.svc.AssignContactOwner(ctx, contact.ID, "", f.director.ID)
	if err != nil || cleared.OwnerID != "" {
		t.Fatalf("clear owner: %+v %v", cleared, err)
	}
	if latest := f.svc.ListActivities(ctx, f.church.ID, contact.ID)[0]; latest.Summary != "Owner cleared" {
		t.Fatalf("unexpected latest activity %q", latest.Summary)
	}
}

func TestUpdateContactPhotoStoresUpload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.contact(t, "Avery")
	src := filepath.Join(t.TempDir(), "avery.JPG")
	if err := os.WriteFile(src, []byte("jpeg"), 0o600); err != nil {
		t.Fatalf("write source: %v", err)
	}

	updated, err := f.svc.UpdateContactPhoto(ctx, contact.ID, f.church.ID, src)
	if err != nil {
		t.Fatalf("update photo: %v", err)
	}
	prefix := "uploads/" + f.church.ID + "/" + contact.ID + "-"
	if !strings.Contains(updated.PhotoPath, prefix) || !strings.HasSuffix(updated.PhotoPath, ".jpg") {
		t.Fatalf("unexpected photo path %q", updated.PhotoPath)
	}
	objects, err := f.svc.Blobs().List(ctx, "uploads/"+f.church.ID+"/")
	if err != nil || len(objects) != 1 {
		t.Fatalf("expected one stored upload, got %d (%v)", len(objects), err)
	}

	if _, err := f.svc.UpdateContactPhoto(ctx, contact.ID, f.church.ID, filepath.Join(t.TempDir(), "missing.png")); err == nil {
		t.Fatalf("expected missing source error")
	}
	if _, err := f.svc.UpdateContactPhoto(ctx, contact.ID, "other", src); !domain.IsNotFound(err) {
		t.Fatalf("expected wrong church to be not found, got %v", err)
	}
}

func TestRecordActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	contact := f.contact(t, "Quinn")
	f.clock.Advance(time.Minute)
	logged, err := f.svc.RecordActivity(ctx, RecordActivityInput{ChurchID: f.church.ID, ContactID: contact.ID, UserID: f.director.ID, Type: domain.ActivityCall})
	if err != nil {
		t.Fatalf("record: %v", err)
	}
	if logged.Summary != "Phone call" || !logged.CreatedAt.Equal(baseTime.Add(time.Minute)) {
		t.Fatalf("unexpected activity %+v", logged)
	}
	if refreshed, _ := f.svc.FindContact(ctx, contact.ID); !refreshed.LastActivityAt.Equal(logged.CreatedAt) {
		t.Fatalf("expected contact touched")
	}
	if _, err := f.svc.RecordActivity(ctx, RecordActivityInput{ChurchID: "other", ContactID: contact.ID, Type: domain.ActivityNote}); !domain.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if _, err := f.svc.RecordActivity(ctx, RecordActivityInput{ChurchID: f.church.ID, ContactID: contact.ID, Type: "dance"}); !domain.IsValidation(err) {
		t.Fatalf("expected invalid type, got %v", err)
	}
}
