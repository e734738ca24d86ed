package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

var fixedNow = time.Date(2024, 3, 4, 9, 30, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store := NewStore(nil)
	store.SetNowFunc(func() time.Time { return fixedNow })
	return store
}

type seeded struct {
	church  Church
	campus  Campus
	user    UserAccount
	contact Contact
}

func seedChurch(t *testing.T, store *Store) seeded {
	t.Helper()
	var out seeded
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		church, err := tx.CreateChurch(Church{Name: "Grace"})
		if err != nil {
			return err
		}
		campus, err := tx.CreateCampus(Campus{ChurchID: church.ID, Name: "North", Timezone: "America/Chicago"})
		if err != nil {
			return err
		}
		user, err := tx.CreateUser(UserAccount{ChurchID: church.ID, Name: "Dana", Email: "dana@example.org", Role: domain.RoleDirector})
		if err != nil {
			return err
		}
		contact, err := tx.CreateContact(Contact{ChurchID: church.ID, CampusID: campus.ID, FirstName: "Sam"})
		if err != nil {
			return err
		}
		church, _ = tx.Snapshot().FindChurch(church.ID)
		out = seeded{church: church, campus: campus, user: user, contact: contact}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return out
}

func TestStoreRunInTransactionAndDocuments(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)

	if s.church.PrimaryCampusID != s.campus.ID {
		t.Fatalf("expected first campus to become primary, got %q", s.church.PrimaryCampusID)
	}
	if len(s.church.CampusIDs) != 1 || s.church.CampusIDs[0] != s.campus.ID {
		t.Fatalf("expected campus list to hold the campus, got %v", s.church.CampusIDs)
	}
	if !s.contact.LastActivityAt.Equal(fixedNow) || s.contact.Temperature != domain.TemperatureNew {
		t.Fatalf("unexpected contact defaults: %+v", s.contact)
	}
	if store.Revision() != 1 {
		t.Fatalf("expected one revision, got %d", store.Revision())
	}

	doc := store.ExportDocument()
	if doc.Version != CurrentVersion || len(doc.Contacts) != 1 {
		t.Fatalf("unexpected export: %+v", doc)
	}
	store.ImportDocument(Document{})
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		if len(v.ListChurches()) != 0 {
			t.Fatalf("expected cleared state")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	store.ImportDocument(doc)
	if err := store.View(context.Background(), func(v domain.TransactionView) error {
		if _, ok := v.FindContact(s.contact.ID); !ok {
			t.Fatalf("expected restored contact")
		}
		return nil
	}); err != nil {
		t.Fatalf("view: %v", err)
	}
	if store.RulesEngine() == nil || store.NowFunc() == nil {
		t.Fatalf("expected rules engine and clock")
	}
}

func TestStoreRollsBackOnError(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)
	before := store.Revision()
	sentinel := errors.New("boom")
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		if _, err := tx.UpdateContact(s.contact.ID, func(c *Contact) error {
			c.FirstName = "Changed"
			return nil
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	if store.Revision() != before {
		t.Fatalf("expected revision unchanged")
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		c, _ := v.FindContact(s.contact.ID)
		if c.FirstName != "Sam" {
			t.Fatalf("expected rollback, got %q", c.FirstName)
		}
		return nil
	})
}

func TestStoreEmptyTransactionKeepsRevision(t *testing.T) {
	store := newTestStore(t)
	_, err := store.RunInTransaction(context.Background(), func(domain.Transaction) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if store.Revision() != 0 {
		t.Fatalf("expected no revision for empty transaction")
	}
}

type blockingRule struct{}

func (blockingRule) Name() string { return "block" }

func (blockingRule) Evaluate(context.Context, domain.TransactionView, []domain.Change) (domain.Result, error) {
	return domain.Result{Violations: []domain.Violation{{Rule: "block", Severity: domain.SeverityBlock, Message: "nope"}}}, nil
}

func TestStoreRuleViolation(t *testing.T) {
	store := NewStore(domain.NewRulesEngine())
	store.RulesEngine().Register(blockingRule{})
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		_, e := tx.CreateChurch(Church{Name: "Fail"})
		return e
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected rule violation error, got %v", err)
	}
	if store.Revision() != 0 {
		t.Fatalf("expected blocked transaction to leave state untouched")
	}
}

func TestStoreForeignKeyValidation(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)

	var other seeded
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		church, err := tx.CreateChurch(Church{Name: "Hope"})
		if err != nil {
			return err
		}
		campus, err := tx.CreateCampus(Campus{ChurchID: church.ID, Name: "Central"})
		if err != nil {
			return err
		}
		other = seeded{church: church, campus: campus}
		return nil
	})
	if err != nil {
		t.Fatalf("seed other: %v", err)
	}

	cases := []struct {
		name  string
		run   func(tx domain.Transaction) error
		check func(error) bool
	}{
		{"contact missing church", func(tx domain.Transaction) error {
			_, err := tx.CreateContact(Contact{ChurchID: "missing", CampusID: s.campus.ID, FirstName: "X"})
			return err
		}, domain.IsNotFound},
		{"contact foreign campus", func(tx domain.Transaction) error {
			_, err := tx.CreateContact(Contact{ChurchID: s.church.ID, CampusID: other.campus.ID, FirstName: "X"})
			return err
		}, domain.IsValidation},
		{"contact without name", func(tx domain.Transaction) error {
			_, err := tx.CreateContact(Contact{ChurchID: s.church.ID, CampusID: s.campus.ID})
			return err
		}, domain.IsValidation},
		{"task missing contact", func(tx domain.Transaction) error {
			_, err := tx.CreateTask(FollowUpTask{ChurchID: s.church.ID, ContactID: "missing", AssigneeID: s.user.ID, DueDate: fixedNow})
			return err
		}, domain.IsNotFound},
		{"task missing assignee", func(tx domain.Transaction) error {
			_, err := tx.CreateTask(FollowUpTask{ChurchID: s.church.ID, ContactID: s.contact.ID, AssigneeID: "ghost", DueDate: fixedNow})
			return err
		}, domain.IsNotFound},
		{"task missing due date", func(tx domain.Transaction) error {
			_, err := tx.CreateTask(FollowUpTask{ChurchID: s.church.ID, ContactID: s.contact.ID, AssigneeID: s.user.ID})
			return err
		}, domain.IsValidation},
		{"duplicate email", func(tx domain.Transaction) error {
			_, err := tx.CreateUser(UserAccount{ChurchID: s.church.ID, Email: "DANA@example.org"})
			return err
		}, domain.IsValidation},
		{"credential for missing user", func(tx domain.Transaction) error {
			return tx.PutCredential(UserCredential{UserID: "ghost", PasswordHash: "x"})
		}, domain.IsNotFound},
		{"activity foreign contact", func(tx domain.Transaction) error {
			_, err := tx.AppendActivity(ActivityLog{ChurchID: other.church.ID, ContactID: s.contact.ID, Type: domain.ActivityNote})
			return err
		}, domain.IsValidation},
		{"bad timezone", func(tx domain.Transaction) error {
			_, err := tx.CreateCampus(Campus{ChurchID: s.church.ID, Name: "Moon", Timezone: "Mars/Olympus"})
			return err
		}, domain.IsValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := store.RunInTransaction(context.Background(), tc.run)
			if err == nil || !tc.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestUpdateChurchKeepsCampusList(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		updated, err := tx.UpdateChurch(s.church.ID, func(c *Church) error {
			c.Name = "Grace Fellowship"
			c.CampusIDs = nil
			return nil
		})
		if err != nil {
			return err
		}
		if len(updated.CampusIDs) != 1 || updated.Name != "Grace Fellowship" {
			t.Fatalf("unexpected church: %+v", updated)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
}

func TestImportSkipsExistingIDs(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)
	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		dup := s.contact
		dup.FirstName = "Overwritten"
		admitted, err := tx.ImportContact(dup)
		if err != nil {
			return err
		}
		if admitted {
			t.Fatalf("expected existing contact to be kept")
		}
		fresh := s.contact
		fresh.ID = "imported-contact"
		admitted, err = tx.ImportContact(fresh)
		if err != nil {
			return err
		}
		if !admitted {
			t.Fatalf("expected new contact to be admitted")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		c, _ := v.FindContact(s.contact.ID)
		if c.FirstName != "Sam" {
			t.Fatalf("expected original contact untouched, got %q", c.FirstName)
		}
		if len(v.ListContacts(s.church.ID)) != 2 {
			t.Fatalf("expected two contacts")
		}
		return nil
	})
}

func TestListActivitiesNewestFirst(t *testing.T) {
	store := NewStore(nil)
	clock := fixedNow
	store.SetNowFunc(func() time.Time { return clock })
	s := seedChurch(t, store)
	for i, summary := range []string{"first", "second", "third"} {
		clock = fixedNow.Add(time.Duration(i+1) * time.Minute)
		_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
			_, err := tx.AppendActivity(ActivityLog{ChurchID: s.church.ID, ContactID: s.contact.ID, Type: domain.ActivityNote, Summary: summary})
			return err
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		acts := v.ListActivities(s.church.ID)
		if len(acts) != 3 || acts[0].Summary != "third" || acts[2].Summary != "first" {
			t.Fatalf("unexpected order: %+v", acts)
		}
		return nil
	})
}

func TestViewReturnsCopies(t *testing.T) {
	store := newTestStore(t)
	s := seedChurch(t, store)
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		c, _ := v.FindContact(s.contact.ID)
		c.Tags = append(c.Tags, "mutated")
		return nil
	})
	_ = store.View(context.Background(), func(v domain.TransactionView) error {
		c, _ := v.FindContact(s.contact.ID)
		if len(c.Tags) != 0 {
			t.Fatalf("expected view copies to be isolated")
		}
		return nil
	})
}
