// Package domain defines the persistent entities, value types, and rule
// evaluation primitives used by ember.
package domain

import (
	"time"
)

// EntityType identifies the type of record stored in the document.
type EntityType string

// Supported entity type identifiers used in Change records and document collections.
const (
	EntityChurch     EntityType = "church"
	EntityCampus     EntityType = "campus"
	EntityUser       EntityType = "user"
	EntityCredential EntityType = "credential"
	EntityContact    EntityType = "contact"
	EntityTask       EntityType = "task"
	EntityActivity   EntityType = "activity"
	EntityTemplate   EntityType = "template"
	EntityPlan       EntityType = "plan"
)

// Role is the permission tier of a user account within its church.
type Role string

// Recognised account roles.
const (
	RoleDirector      Role = "director"
	RoleAdministrator Role = "administrator"
	RoleConnector     Role = "connector"
	RoleTeacher       Role = "teacher"
	RoleMember        Role = "member"
)

// Valid reports whether r is a recognised role.
func (r Role) Valid() bool {
	switch r {
	case RoleDirector, RoleAdministrator, RoleConnector, RoleTeacher, RoleMember:
		return true
	}
	return false
}

// Temperature is a contact's outreach-engagement stage.
type Temperature string

// Outreach stages, coldest to warmest.
const (
	TemperatureNew     Temperature = "new"
	TemperatureCool    Temperature = "cool"
	TemperatureWarm    Temperature = "warm"
	TemperatureHot     Temperature = "hot"
	TemperatureConvert Temperature = "convert"
)

// Valid reports whether t is a recognised temperature.
func (t Temperature) Valid() bool {
	switch t {
	case TemperatureNew, TemperatureCool, TemperatureWarm, TemperatureHot, TemperatureConvert:
		return true
	}
	return false
}

// Recurrence describes how often a follow-up task repeats.
type Recurrence string

// Supported recurrences.
const (
	RecurrenceOneTime   Recurrence = "one-time"
	RecurrenceWeekly    Recurrence = "weekly"
	RecurrenceBiweekly  Recurrence = "biweekly"
	RecurrenceMonthly   Recurrence = "monthly"
	RecurrenceQuarterly Recurrence = "quarterly"
)

// Valid reports whether r is a recognised recurrence.
func (r Recurrence) Valid() bool {
	switch r {
	case RecurrenceOneTime, RecurrenceWeekly, RecurrenceBiweekly, RecurrenceMonthly, RecurrenceQuarterly:
		return true
	}
	return false
}

// ActivityType classifies an activity log entry.
type ActivityType string

// Activity types.
const (
	ActivityNote             ActivityType = "note"
	ActivityCall             ActivityType = "call"
	ActivityVisit            ActivityType = "visit"
	ActivityTask             ActivityType = "task"
	ActivityAssignmentResult ActivityType = "assignment-result"
)

// Valid reports whether a is a recognised activity type.
func (a ActivityType) Valid() bool {
	switch a {
	case ActivityNote, ActivityCall, ActivityVisit, ActivityTask, ActivityAssignmentResult:
		return true
	}
	return false
}

// Base contains common fields for all mutable records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DigestPreference selects when the weekly digest is delivered.
type DigestPreference struct {
	DayOfWeek int    `json:"day_of_week"` // 0 = Sunday
	Time      string `json:"time"`        // HH:mm
}

// DefaultDigestPreference is applied to churches created without a preference.
var DefaultDigestPreference = DigestPreference{DayOfWeek: int(time.Monday), Time: "08:00"}

// AlertSettings toggles outbound notifications for a church.
type AlertSettings struct {
	Email   bool `json:"email"`
	Desktop bool `json:"desktop"`
}

// SMTPConfig holds the outbound mail settings of a church.
type SMTPConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
	From     string `json:"from"`
	UseTLS   bool   `json:"use_tls"`
}

// Redacted returns a copy without the password.
func (c SMTPConfig) Redacted() SMTPConfig {
	if c.Password != "" {
		c.Password = "********"
	}
	return c
}

// Church is the tenant root.
type Church struct {
	Base
	Name             string           `json:"name"`
	DigestPreference DigestPreference `json:"digest_preference"`
	Alerts           AlertSettings    `json:"alerts"`
	CampusIDs        []string         `json:"campus_ids"`
	PrimaryCampusID  string           `json:"primary_campus_id"`
	SMTP             *SMTPConfig      `json:"smtp,omitempty"`
	PlanID           string           `json:"plan_id,omitempty"`
	Campuses         []Campus         `json:"campuses,omitempty"` // populated on snapshot projections only
}

// Campus belongs to exactly one church.
type Campus struct {
	Base
	ChurchID string `json:"church_id"`
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	Timezone string `json:"timezone,omitempty"`
}

// UserAccount belongs to exactly one church.
type UserAccount struct {
	Base
	ChurchID string `json:"church_id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	CampusID string `json:"campus_id,omitempty"`
}

// UserCredential holds the salted password hash of a user. It never leaves the
// repository boundary.
type UserCredential struct {
	UserID       string    `json:"user_id"`
	PasswordHash string    `json:"password_hash"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FamilyMember is a relative recorded on a contact.
type FamilyMember struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship,omitempty"`
	Phone        string `json:"phone,omitempty"`
}

// Contact is an outreach contact owned by a church and one of its campuses.
type Contact struct {
	Base
	ChurchID       string         `json:"church_id"`
	CampusID       string         `json:"campus_id"`
	FirstName      string         `json:"first_name"`
	LastName       string         `json:"last_name"`
	Email          string         `json:"email,omitempty"`
	Phone          string         `json:"phone,omitempty"`
	Temperature    Temperature    `json:"temperature"`
	OwnerID        string         `json:"owner_id,omitempty"`
	Tags           []string       `json:"tags"`
	Family         []FamilyMember `json:"family"`
	Notes          string         `json:"notes,omitempty"`
	PhotoPath      string         `json:"photo_path,omitempty"`
	LastActivityAt time.Time      `json:"last_activity_at"`
}

// DisplayName joins the first and last name.
func (c Contact) DisplayName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// FollowUpTask assigns a contact to a user for follow-up.
type FollowUpTask struct {
	Base
	ChurchID       string     `json:"church_id"`
	ContactID      string     `json:"contact_id"`
	AssigneeID     string     `json:"assignee_id"`
	TemplateID     string     `json:"template_id,omitempty"`
	Title          string     `json:"title"`
	Category       string     `json:"category,omitempty"`
	Status         TaskStatus `json:"status"`
	DueDate        time.Time  `json:"due_date"`
	WindowStart    *time.Time `json:"window_start,omitempty"`
	WindowEnd      *time.Time `json:"window_end,omitempty"`
	Recurrence     Recurrence `json:"recurrence"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RescheduledFor *time.Time `json:"rescheduled_for,omitempty"`
	OutcomeNote    string     `json:"outcome_note,omitempty"`
}

// ActivityLog is an immutable record of something that happened to a contact.
type ActivityLog struct {
	ID        string       `json:"id"`
	ChurchID  string       `json:"church_id"`
	ContactID string       `json:"contact_id"`
	UserID    string       `json:"user_id,omitempty"`
	TaskID    string       `json:"task_id,omitempty"`
	Type      ActivityType `json:"type"`
	Summary   string       `json:"summary"`
	Note      string       `json:"note,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// AssignmentTemplate is a church-scoped preset used to prefill task creation.
type AssignmentTemplate struct {
	Base
	ChurchID          string     `json:"church_id"`
	Name              string     `json:"name"`
	Category          string     `json:"category"`
	DefaultRecurrence Recurrence `json:"default_recurrence"`
}

// SubscriptionPlan is a global catalog entry referenced by Church.PlanID.
type SubscriptionPlan struct {
	Base
	Code         string `json:"code"`
	Name         string `json:"name"`
	MaxCampuses  int    `json:"max_campuses"`
	MaxContacts  int    `json:"max_contacts"`
	MonthlyCents int    `json:"monthly_cents"`
}

// SyncBundle is a transient, church-scoped export of mutable records.
type SyncBundle struct {
	ChurchID    string               `json:"church_id"`
	GeneratedAt time.Time            `json:"generated_at"`
	Campuses    []Campus             `json:"campuses"`
	Contacts    []Contact            `json:"contacts"`
	Tasks       []FollowUpTask       `json:"tasks"`
	Activities  []ActivityLog        `json:"activities"`
	Templates   []AssignmentTemplate `json:"templates"`
}

// DigestKind labels the period a digest covers.
type DigestKind string

// Digest periods.
const (
	DigestWeekly  DigestKind = "weekly"
	DigestMonthly DigestKind = "monthly"
)

// ReportDigest is a time-windowed summary of a church's outreach.
type ReportDigest struct {
	ChurchID               string    `json:"church_id" yaml:"church_id"`
	Label                  string    `json:"label" yaml:"label"`
	WindowStart            time.Time `json:"window_start" yaml:"window_start"`
	WindowEnd              time.Time `json:"window_end" yaml:"window_end"`
	GeneratedAt            time.Time `json:"generated_at" yaml:"generated_at"`
	TotalActivities        int       `json:"total_activities" yaml:"total_activities"`
	CompletedAssignments   int       `json:"completed_assignments" yaml:"completed_assignments"`
	RescheduledAssignments int       `json:"rescheduled_assignments" yaml:"rescheduled_assignments"`
	PastDueTasks           int       `json:"past_due_tasks" yaml:"past_due_tasks"`
	NewContacts            int       `json:"new_contacts" yaml:"new_contacts"`
	Converts               int       `json:"converts" yaml:"converts"`
}

// SessionInfo describes an authenticated session.
type SessionInfo struct {
	Token     string      `json:"token"`
	User      UserAccount `json:"user"`
	ChurchID  string      `json:"church_id"`
	CreatedAt time.Time   `json:"created_at"`
}

// Change describes a mutation captured within a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Supported actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)
