package memory

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"time"

	"github.com/BKHilton/Ember/pkg/domain"
)

// legacyChurch accepts the fields earlier schema versions kept on the church
// itself: a single timezone and inline campus records.
type legacyChurch struct {
	Church
	Timezone string `json:"timezone,omitempty"`
}

type legacyDocument struct {
	Version     int                           `json:"version"`
	Churches    map[string]legacyChurch       `json:"churches"`
	Campuses    map[string]Campus             `json:"campuses"`
	Users       map[string]UserAccount        `json:"users"`
	Credentials map[string]UserCredential     `json:"credentials"`
	Contacts    map[string]Contact            `json:"contacts"`
	Tasks       map[string]FollowUpTask       `json:"tasks"`
	Activities  map[string]ActivityLog        `json:"activities"`
	Templates   map[string]AssignmentTemplate `json:"templates"`
	Plans       map[string]SubscriptionPlan   `json:"plans"`
}

// DefaultCampusName names the campus synthesized for churches that have none.
const DefaultCampusName = "Main Campus"

// DefaultPlans is the catalog seeded into documents without plans.
func DefaultPlans(now time.Time) []SubscriptionPlan {
	base := func(id string) domain.Base {
		return domain.Base{ID: id, CreatedAt: now, UpdatedAt: now}
	}
	return []SubscriptionPlan{
		{Base: base("plan-free"), Code: "free", Name: "Free", MaxCampuses: 1, MaxContacts: 250},
		{Base: base("plan-standard"), Code: "standard", Name: "Standard", MaxCampuses: 5, MaxContacts: 5000, MonthlyCents: 2900},
	}
}

// Migrate decodes a persisted document of any supported version and returns
// it at CurrentVersion with dangling references repaired. repaired reports
// whether the result differs from what was read and should be written back.
// An empty input yields a fresh document.
func Migrate(raw []byte, now time.Time) (Document, bool, error) {
	now = now.UTC()
	if len(bytes.TrimSpace(raw)) == 0 {
		doc := NewDocument()
		seedPlans(&doc, now)
		return doc, true, nil
	}

	var legacy legacyDocument
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return Document{}, false, fmt.Errorf("decode document: %w", err)
	}
	from := legacy.Version
	if from == 0 {
		from = 1
	}
	if from > CurrentVersion {
		return Document{}, false, fmt.Errorf("document version %d is newer than supported version %d", from, CurrentVersion)
	}

	doc := normalizeCollections(Document{
		Campuses:    legacy.Campuses,
		Users:       legacy.Users,
		Credentials: legacy.Credentials,
		Contacts:    legacy.Contacts,
		Tasks:       legacy.Tasks,
		Activities:  legacy.Activities,
		Templates:   legacy.Templates,
		Plans:       legacy.Plans,
	})
	repaired := from != CurrentVersion

	timezones := make(map[string]string, len(legacy.Churches))
	doc.Churches = make(map[string]Church, len(legacy.Churches))
	for id, lc := range legacy.Churches {
		church := lc.Church
		if church.ID == "" {
			church.ID = id
			repaired = true
		}
		for i, inline := range church.Campuses {
			if inline.ID == "" {
				inline.ID = fmt.Sprintf("%s-campus-%d", church.ID, i+1)
			}
			inline.ChurchID = church.ID
			if _, exists := doc.Campuses[inline.ID]; !exists {
				doc.Campuses[inline.ID] = inline
			}
			repaired = true
		}
		church.Campuses = nil
		if church.DigestPreference.Time == "" {
			church.DigestPreference = domain.DefaultDigestPreference
			repaired = true
		}
		timezones[church.ID] = lc.Timezone
		doc.Churches[church.ID] = church
	}

	if repairCampuses(&doc, timezones, now) {
		repaired = true
	}
	if repairContacts(&doc) {
		repaired = true
	}
	if repairTasks(&doc) {
		repaired = true
	}
	if seedPlans(&doc, now) {
		repaired = true
	}
	if repairPlans(&doc) {
		repaired = true
	}
	doc.Version = CurrentVersion
	return doc, repaired, nil
}

// repairCampuses rebuilds every church's campus list from the campus table,
// synthesizes a default campus for churches without one and resolves a
// dangling primary campus to the first campus.
func repairCampuses(doc *Document, timezones map[string]string, now time.Time) bool {
	changed := false
	owned := make(map[string][]Campus)
	for id, campus := range doc.Campuses {
		if _, ok := doc.Churches[campus.ChurchID]; !ok {
			continue
		}
		if campus.ID == "" {
			campus.ID = id
			doc.Campuses[id] = campus
			changed = true
		}
		owned[campus.ChurchID] = append(owned[campus.ChurchID], campus)
	}

	for id, church := range doc.Churches {
		campuses := owned[id]
		if len(campuses) == 0 {
			campus := Campus{
				Base:     domain.Base{ID: id + "-main", CreatedAt: now, UpdatedAt: now},
				ChurchID: id,
				Name:     DefaultCampusName,
				Timezone: timezones[id],
			}
			doc.Campuses[campus.ID] = campus
			campuses = []Campus{campus}
			changed = true
		}

		valid := make(map[string]bool, len(campuses))
		for _, c := range campuses {
			valid[c.ID] = true
		}
		ordered := make([]string, 0, len(campuses))
		seen := make(map[string]bool, len(campuses))
		for _, cid := range church.CampusIDs {
			if valid[cid] && !seen[cid] {
				ordered = append(ordered, cid)
				seen[cid] = true
			}
		}
		sort.Slice(campuses, func(i, j int) bool {
			if !campuses[i].CreatedAt.Equal(campuses[j].CreatedAt) {
				return campuses[i].CreatedAt.Before(campuses[j].CreatedAt)
			}
			return campuses[i].ID < campuses[j].ID
		})
		for _, c := range campuses {
			if !seen[c.ID] {
				ordered = append(ordered, c.ID)
				seen[c.ID] = true
			}
		}
		if !slices.Equal(ordered, church.CampusIDs) {
			church.CampusIDs = ordered
			changed = true
		}
		if !valid[church.PrimaryCampusID] {
			church.PrimaryCampusID = ordered[0]
			changed = true
		}
		doc.Churches[id] = church
	}
	return changed
}

// repairContacts points contacts whose campus does not belong to their church
// at the church's primary campus and defaults a missing temperature to new.
func repairContacts(doc *Document) bool {
	changed := false
	for id, contact := range doc.Contacts {
		touched := false
		if contact.Temperature == "" {
			contact.Temperature = domain.TemperatureNew
			touched = true
		}
		if church, ok := doc.Churches[contact.ChurchID]; ok {
			if campus, ok := doc.Campuses[contact.CampusID]; !ok || campus.ChurchID != church.ID {
				contact.CampusID = church.PrimaryCampusID
				touched = true
			}
		}
		if touched {
			doc.Contacts[id] = contact
			changed = true
		}
	}
	return changed
}

// repairTasks backfills the status and recurrence that older documents
// left empty.
func repairTasks(doc *Document) bool {
	changed := false
	for id, task := range doc.Tasks {
		touched := false
		if task.Status == "" {
			task.Status = domain.TaskPending
			touched = true
		}
		if task.Recurrence == "" {
			task.Recurrence = domain.RecurrenceOneTime
			touched = true
		}
		if touched {
			doc.Tasks[id] = task
			changed = true
		}
	}
	return changed
}

func repairPlans(doc *Document) bool {
	changed := false
	for id, church := range doc.Churches {
		if church.PlanID == "" {
			continue
		}
		if _, ok := doc.Plans[church.PlanID]; !ok {
			church.PlanID = ""
			doc.Churches[id] = church
			changed = true
		}
	}
	return changed
}

func seedPlans(doc *Document, now time.Time) bool {
	if len(doc.Plans) > 0 {
		return false
	}
	for _, plan := range DefaultPlans(now) {
		doc.Plans[plan.ID] = plan
	}
	return true
}
