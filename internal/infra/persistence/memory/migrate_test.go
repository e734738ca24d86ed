package memory

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/BKHilton/Ember/pkg/domain"
)

func TestMigrateEmptyInputSeedsPlans(t *testing.T) {
	doc, repaired, err := Migrate(nil, fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !repaired || doc.Version != CurrentVersion {
		t.Fatalf("expected fresh repaired document, got version %d repaired=%v", doc.Version, repaired)
	}
	if len(doc.Plans) != 2 {
		t.Fatalf("expected seeded plans, got %d", len(doc.Plans))
	}
}

func TestMigrateLegacyChurchGetsDefaultCampus(t *testing.T) {
	raw := `{
		"version": 1,
		"churches": {"c1": {"id": "c1", "name": "Grace", "timezone": "America/Denver", "primary_campus_id": "gone"}},
		"contacts": {"k1": {"id": "k1", "church_id": "c1", "campus_id": "gone", "first_name": "Sam"}}
	}`
	doc, repaired, err := Migrate([]byte(raw), fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !repaired {
		t.Fatalf("expected repair")
	}
	church := doc.Churches["c1"]
	campus, ok := doc.Campuses[church.PrimaryCampusID]
	if !ok {
		t.Fatalf("expected primary campus to resolve, got %q", church.PrimaryCampusID)
	}
	if campus.Name != DefaultCampusName || campus.Timezone != "America/Denver" {
		t.Fatalf("unexpected default campus: %+v", campus)
	}
	if doc.Contacts["k1"].CampusID != campus.ID {
		t.Fatalf("expected contact campus repaired, got %q", doc.Contacts["k1"].CampusID)
	}
	if doc.Contacts["k1"].Temperature != "new" {
		t.Fatalf("expected temperature default, got %q", doc.Contacts["k1"].Temperature)
	}
}

func TestMigrateBackfillsLegacyContactAndTaskFields(t *testing.T) {
	raw := `{
		"version": 1,
		"churches": {"c1": {"id": "c1", "name": "Grace", "campus_ids": ["west"], "primary_campus_id": "west"}},
		"campuses": {"west": {"id": "west", "church_id": "c1", "name": "West"}},
		"contacts": {"k2": {"id": "k2", "church_id": "c1", "campus_id": "west", "first_name": "Ada"}},
		"tasks": {
			"t1": {"id": "t1", "church_id": "c1", "contact_id": "k2", "title": "Visit", "status": "pending", "recurrence": "weekly", "due_date": "2024-03-01T09:00:00Z"},
			"t2": {"id": "t2", "church_id": "c1", "contact_id": "k2", "title": "Call", "due_date": "2024-03-02T09:00:00Z"}
		}
	}`
	doc, repaired, err := Migrate([]byte(raw), fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !repaired {
		t.Fatalf("expected repair")
	}
	if got := doc.Contacts["k2"]; got.CampusID != "west" || got.Temperature != domain.TemperatureNew {
		t.Fatalf("expected campus kept and temperature defaulted, got %+v", got)
	}
	if got := doc.Tasks["t2"]; got.Status != domain.TaskPending || got.Recurrence != domain.RecurrenceOneTime {
		t.Fatalf("expected status and recurrence backfilled, got %+v", got)
	}
	if got := doc.Tasks["t1"]; got.Recurrence != domain.RecurrenceWeekly {
		t.Fatalf("expected explicit recurrence kept, got %q", got.Recurrence)
	}

	store := newTestStore(t)
	store.ImportDocument(doc)
	_, err = store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateContact("k2", func(c *Contact) error {
			c.Notes = "met after service"
			return nil
		}); err != nil {
			return err
		}
		for _, id := range []string{"t1", "t2"} {
			if _, err := tx.UpdateTask(id, func(task *FollowUpTask) error {
				task.Status = domain.TaskPastDue
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected hydrated records to accept updates, got %v", err)
	}
}

func TestMigrateInlineCampuses(t *testing.T) {
	raw := `{
		"version": 2,
		"churches": {"c1": {"id": "c1", "name": "Grace", "campuses": [{"id": "east", "name": "East"}, {"name": "West"}]}}
	}`
	doc, _, err := Migrate([]byte(raw), fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	church := doc.Churches["c1"]
	if len(church.CampusIDs) != 2 || church.Campuses != nil {
		t.Fatalf("expected inline campuses moved to the table, got %+v", church)
	}
	if doc.Campuses["east"].ChurchID != "c1" {
		t.Fatalf("expected east campus owned by c1")
	}
	if church.PrimaryCampusID == "" {
		t.Fatalf("expected primary campus to be set")
	}
}

func TestMigrateCurrentDocumentIsStable(t *testing.T) {
	store := newTestStore(t)
	seedChurch(t, store)
	doc := store.ExportDocument()
	for _, p := range DefaultPlans(fixedNow) {
		doc.Plans[p.ID] = p
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	_, repaired, err := Migrate(raw, fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if repaired {
		t.Fatalf("expected a clean current document to need no repair")
	}
}

func TestMigrateRejectsNewerVersionsAndGarbage(t *testing.T) {
	if _, _, err := Migrate([]byte(`{"version": 99}`), fixedNow); err == nil || !strings.Contains(err.Error(), "newer") {
		t.Fatalf("expected newer version error, got %v", err)
	}
	if _, _, err := Migrate([]byte(`{not json`), fixedNow); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestMigrateClearsDanglingPlan(t *testing.T) {
	raw := `{"version": 3, "churches": {"c1": {"id": "c1", "name": "Grace", "plan_id": "gone"}}}`
	doc, _, err := Migrate([]byte(raw), fixedNow)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if doc.Churches["c1"].PlanID != "" {
		t.Fatalf("expected dangling plan cleared")
	}
}
