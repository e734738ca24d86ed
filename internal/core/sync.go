package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/BKHilton/Ember/pkg/domain"
)

// CreateSyncBundle projects one church's mutable records. It reports false
// when the church does not exist.
func (s *Service) CreateSyncBundle(ctx context.Context, churchID string) (domain.SyncBundle, bool) {
	var (
		bundle domain.SyncBundle
		found  bool
	)
	_ = s.run(ctx, "create_sync_bundle", churchID, func(ctx context.Context) (string, error) {
		return churchID, s.view(ctx, func(v domain.TransactionView) error {
			if _, ok := v.FindChurch(churchID); !ok {
				return nil
			}
			found = true
			bundle = domain.SyncBundle{
				ChurchID:    churchID,
				GeneratedAt: s.Now(),
				Campuses:    v.ListCampuses(churchID),
				Contacts:    v.ListContacts(churchID),
				Tasks:       v.ListTasks(churchID),
				Activities:  v.ListActivities(churchID),
				Templates:   v.ListTemplates(churchID),
			}
			return nil
		})
	})
	return bundle, found
}

// ImportResult counts the records a bundle import admitted.
type ImportResult struct {
	ImportedContacts   int    `json:"imported_contacts"`
	ImportedTasks      int    `json:"imported_tasks"`
	ImportedCampuses   int    `json:"imported_campuses"`
	ImportedActivities int    `json:"imported_activities"`
	ImportedTemplates  int    `json:"imported_templates"`
	Skipped            int    `json:"skipped"`
	Path               string `json:"path"`
}

// ImportSyncBundle merges a bundle into an existing church in one
// transaction. Records whose id already exists are left untouched, so a
// second import of the same bundle admits nothing. Records are re-homed to
// the destination church: unknown campuses fall back to the primary campus,
// and user and template references that do not resolve are cleared. Tasks
// and activities whose contact is absent are skipped.
func (s *Service) ImportSyncBundle(ctx context.Context, churchID string, bundle domain.SyncBundle, sourcePath string) (ImportResult, error) {
	result := ImportResult{Path: sourcePath}
	err := s.run(ctx, "import_sync_bundle", churchID, func(ctx context.Context) (string, error) {
		return churchID, s.update(ctx, func(tx domain.Transaction) error {
			result = ImportResult{Path: sourcePath}
			if _, ok := tx.Snapshot().FindChurch(churchID); !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: churchID}
			}
			m := merger{tx: tx, churchID: churchID, result: &result, log: s.logger}
			m.campuses(bundle.Campuses)
			m.templates(bundle.Templates)
			m.contacts(bundle.Contacts)
			m.tasks(bundle.Tasks)
			m.activities(bundle.Activities)
			return nil
		})
	})
	if err != nil {
		return ImportResult{}, err
	}
	return result, nil
}

type merger struct {
	tx       domain.Transaction
	churchID string
	result   *ImportResult
	log      Logger
}

func (m merger) admit(entity domain.EntityType, id string, admitted bool, err error) bool {
	if err != nil {
		m.result.Skipped++
		m.log.Warn("sync bundle record skipped", "entity", entity, "id", id, "error", err)
		return false
	}
	return admitted
}

func (m merger) ownsCampus(id string) bool {
	c, ok := m.tx.Snapshot().FindCampus(id)
	return ok && c.ChurchID == m.churchID
}

func (m merger) ownsUser(id string) bool {
	u, ok := m.tx.Snapshot().FindUser(id)
	return ok && u.ChurchID == m.churchID
}

func (m merger) ownsContact(id string) bool {
	c, ok := m.tx.Snapshot().FindContact(id)
	return ok && c.ChurchID == m.churchID
}

func (m merger) ownsTask(id string) bool {
	t, ok := m.tx.Snapshot().FindTask(id)
	return ok && t.ChurchID == m.churchID
}

func (m merger) ownsTemplate(id string) bool {
	t, ok := m.tx.Snapshot().FindTemplate(id)
	return ok && t.ChurchID == m.churchID
}

func (m merger) campuses(items []domain.Campus) {
	for _, c := range items {
		c.ChurchID = m.churchID
		ok, err := m.tx.ImportCampus(c)
		if m.admit(domain.EntityCampus, c.ID, ok, err) {
			m.result.ImportedCampuses++
		}
	}
}

func (m merger) templates(items []domain.AssignmentTemplate) {
	for _, t := range items {
		t.ChurchID = m.churchID
		ok, err := m.tx.ImportTemplate(t)
		if m.admit(domain.EntityTemplate, t.ID, ok, err) {
			m.result.ImportedTemplates++
		}
	}
}

func (m merger) contacts(items []domain.Contact) {
	church, _ := m.tx.Snapshot().FindChurch(m.churchID)
	for _, c := range items {
		c.ChurchID = m.churchID
		if !m.ownsCampus(c.CampusID) {
			c.CampusID = church.PrimaryCampusID
		}
		if c.OwnerID != "" && !m.ownsUser(c.OwnerID) {
			c.OwnerID = ""
		}
		if c.Temperature == "" {
			c.Temperature = domain.TemperatureNew
		}
		ok, err := m.tx.ImportContact(c)
		if m.admit(domain.EntityContact, c.ID, ok, err) {
			m.result.ImportedContacts++
		}
	}
}

func (m merger) tasks(items []domain.FollowUpTask) {
	for _, t := range items {
		t.ChurchID = m.churchID
		if !m.ownsContact(t.ContactID) {
			m.admit(domain.EntityTask, t.ID, false, fmt.Errorf("contact %s not present", t.ContactID))
			continue
		}
		if t.AssigneeID != "" && !m.ownsUser(t.AssigneeID) {
			t.AssigneeID = ""
		}
		if t.TemplateID != "" && !m.ownsTemplate(t.TemplateID) {
			t.TemplateID = ""
		}
		ok, err := m.tx.ImportTask(t)
		if m.admit(domain.EntityTask, t.ID, ok, err) {
			m.result.ImportedTasks++
		}
	}
}

func (m merger) activities(items []domain.ActivityLog) {
	for _, a := range items {
		a.ChurchID = m.churchID
		if !m.ownsContact(a.ContactID) {
			m.admit(domain.EntityActivity, a.ID, false, fmt.Errorf("contact %s not present", a.ContactID))
			continue
		}
		if a.UserID != "" && !m.ownsUser(a.UserID) {
			a.UserID = ""
		}
		if a.TaskID != "" && !m.ownsTask(a.TaskID) {
			a.TaskID = ""
		}
		ok, err := m.tx.ImportActivity(a)
		if m.admit(domain.EntityActivity, a.ID, ok, err) {
			m.result.ImportedActivities++
		}
	}
}

// WriteSyncBundle encodes a bundle as indented JSON.
func WriteSyncBundle(w io.Writer, bundle domain.SyncBundle) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(bundle); err != nil {
		return fmt.Errorf("encode sync bundle: %w", err)
	}
	return nil
}

// ReadSyncBundle decodes a bundle written by WriteSyncBundle.
func ReadSyncBundle(r io.Reader) (domain.SyncBundle, error) {
	var bundle domain.SyncBundle
	if err := json.NewDecoder(r).Decode(&bundle); err != nil {
		return domain.SyncBundle{}, fmt.Errorf("decode sync bundle: %w", err)
	}
	return bundle, nil
}
