// Package memory provides the in-memory mirror of the persisted document. It
// is the live state of the repository; durable backends wrap it and flush the
// exported document after every committed transaction.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // embedded zoneinfo for campus timezones

	"github.com/BKHilton/Ember/pkg/domain"
	"github.com/google/uuid"
)

// Compile-time contract assertion ensuring memory.Store adheres to the domain persistence interface.
var _ domain.PersistentStore = (*Store)(nil)

type (
	Church             = domain.Church
	Campus             = domain.Campus
	UserAccount        = domain.UserAccount
	UserCredential     = domain.UserCredential
	Contact            = domain.Contact
	FollowUpTask       = domain.FollowUpTask
	ActivityLog        = domain.ActivityLog
	AssignmentTemplate = domain.AssignmentTemplate
	SubscriptionPlan   = domain.SubscriptionPlan
	Change             = domain.Change
	Result             = domain.Result
	RulesEngine        = domain.RulesEngine
	Transaction        = domain.Transaction
	TransactionView    = domain.TransactionView
)

type memoryState struct {
	churches    map[string]Church
	campuses    map[string]Campus
	users       map[string]UserAccount
	credentials map[string]UserCredential
	contacts    map[string]Contact
	tasks       map[string]FollowUpTask
	activities  map[string]ActivityLog
	templates   map[string]AssignmentTemplate
	plans       map[string]SubscriptionPlan
}

func newMemoryState() memoryState {
	return memoryState{
		churches:    make(map[string]Church),
		campuses:    make(map[string]Campus),
		users:       make(map[string]UserAccount),
		credentials: make(map[string]UserCredential),
		contacts:    make(map[string]Contact),
		tasks:       make(map[string]FollowUpTask),
		activities:  make(map[string]ActivityLog),
		templates:   make(map[string]AssignmentTemplate),
		plans:       make(map[string]SubscriptionPlan),
	}
}

func (s memoryState) clone() memoryState {
	cloned := newMemoryState()
	for k, v := range s.churches {
		cloned.churches[k] = cloneChurch(v)
	}
	for k, v := range s.campuses {
		cloned.campuses[k] = v
	}
	for k, v := range s.users {
		cloned.users[k] = v
	}
	for k, v := range s.credentials {
		cloned.credentials[k] = v
	}
	for k, v := range s.contacts {
		cloned.contacts[k] = cloneContact(v)
	}
	for k, v := range s.tasks {
		cloned.tasks[k] = cloneTask(v)
	}
	for k, v := range s.activities {
		cloned.activities[k] = v
	}
	for k, v := range s.templates {
		cloned.templates[k] = v
	}
	for k, v := range s.plans {
		cloned.plans[k] = v
	}
	return cloned
}

func cloneChurch(c Church) Church {
	cp := c
	cp.CampusIDs = append([]string(nil), c.CampusIDs...)
	if c.SMTP != nil {
		smtp := *c.SMTP
		cp.SMTP = &smtp
	}
	if c.Campuses != nil {
		cp.Campuses = append([]Campus(nil), c.Campuses...)
	}
	return cp
}

func cloneContact(c Contact) Contact {
	cp := c
	cp.Tags = append([]string{}, c.Tags...)
	cp.Family = append([]domain.FamilyMember{}, c.Family...)
	return cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneTask(t FollowUpTask) FollowUpTask {
	cp := t
	cp.WindowStart = cloneTime(t.WindowStart)
	cp.WindowEnd = cloneTime(t.WindowEnd)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	cp.RescheduledFor = cloneTime(t.RescheduledFor)
	return cp
}

// Store provides an in-memory transactional store for the repository.
type Store struct {
	mu       sync.RWMutex
	state    memoryState
	engine   *RulesEngine
	nowFn    func() time.Time
	revision uint64
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportDocument clones the current state into its persisted form.
func (s *Store) ExportDocument() Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return documentFromState(s.state)
}

// ImportDocument replaces the store state with the provided document.
func (s *Store) ImportDocument(doc Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = stateFromDocument(doc)
	s.revision++
}

// Revision increases every time a transaction commits at least one change.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.revision
}

// RulesEngine exposes the currently configured engine.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used to stamp records.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the time provider; a nil fn restores the wall clock.
func (s *Store) SetNowFunc(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn == nil {
		fn = func() time.Time { return time.Now().UTC() }
	}
	s.nowFn = fn
}

// RunInTransaction executes fn within a transactional copy of the store state.
// The copy replaces the live state only when fn succeeds and no blocking rule fires.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn().UTC(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil && len(tx.changes) > 0 {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	if len(tx.changes) > 0 {
		s.state = tx.state
		s.revision++
	}
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// Now is the single timestamp applied to every record touched by the transaction.
func (tx *transaction) Now() time.Time {
	return tx.now
}

func invalid(field, reason string) error {
	return domain.ValidationError{Field: field, Reason: reason}
}

func notFound(entity domain.EntityType, id string) error {
	return domain.NotFoundError{Entity: entity, ID: id}
}

func (tx *transaction) requireChurch(id string) (Church, error) {
	if strings.TrimSpace(id) == "" {
		return Church{}, invalid("church_id", "required")
	}
	church, ok := tx.state.churches[id]
	if !ok {
		return Church{}, notFound(domain.EntityChurch, id)
	}
	return church, nil
}

func (tx *transaction) requireCampusOf(churchID, campusID string) error {
	if campusID == "" {
		return invalid("campus_id", "required")
	}
	campus, ok := tx.state.campuses[campusID]
	if !ok {
		return notFound(domain.EntityCampus, campusID)
	}
	if campus.ChurchID != churchID {
		return invalid("campus_id", fmt.Sprintf("campus %s belongs to another church", campusID))
	}
	return nil
}

func (tx *transaction) requireUserOf(churchID, userID, field string) error {
	user, ok := tx.state.users[userID]
	if !ok {
		return notFound(domain.EntityUser, userID)
	}
	if user.ChurchID != churchID {
		return invalid(field, fmt.Sprintf("user %s belongs to another church", userID))
	}
	return nil
}

func (tx *transaction) requireContactOf(churchID, contactID string) error {
	if contactID == "" {
		return invalid("contact_id", "required")
	}
	contact, ok := tx.state.contacts[contactID]
	if !ok {
		return notFound(domain.EntityContact, contactID)
	}
	if contact.ChurchID != churchID {
		return invalid("contact_id", fmt.Sprintf("contact %s belongs to another church", contactID))
	}
	return nil
}

func (tx *transaction) validateChurch(c Church) error {
	if strings.TrimSpace(c.Name) == "" {
		return invalid("name", "required")
	}
	if err := c.DigestPreference.Validate(); err != nil {
		return err
	}
	if c.PlanID != "" {
		if _, ok := tx.state.plans[c.PlanID]; !ok {
			return notFound(domain.EntityPlan, c.PlanID)
		}
	}
	return nil
}

// CreateChurch stores a new church. Campuses are attached with CreateCampus.
func (tx *transaction) CreateChurch(c Church) (Church, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.churches[c.ID]; exists {
		return Church{}, fmt.Errorf("church %q already exists", c.ID)
	}
	if c.DigestPreference.Time == "" {
		c.DigestPreference = domain.DefaultDigestPreference
	}
	if err := tx.validateChurch(c); err != nil {
		return Church{}, err
	}
	c.CampusIDs = nil
	c.Campuses = nil
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.churches[c.ID] = cloneChurch(c)
	tx.recordChange(Change{Entity: domain.EntityChurch, Action: domain.ActionCreate, After: cloneChurch(c)})
	return cloneChurch(c), nil
}

// UpdateChurch mutates a church. The campus list is owned by CreateCampus and
// ImportCampus and cannot be rewritten by the mutator.
func (tx *transaction) UpdateChurch(id string, mutator func(*Church) error) (Church, error) {
	current, ok := tx.state.churches[id]
	if !ok {
		return Church{}, notFound(domain.EntityChurch, id)
	}
	before := cloneChurch(current)
	if err := mutator(&current); err != nil {
		return Church{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.CampusIDs = before.CampusIDs
	current.Campuses = nil
	if err := tx.validateChurch(current); err != nil {
		return Church{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.churches[id] = cloneChurch(current)
	tx.recordChange(Change{Entity: domain.EntityChurch, Action: domain.ActionUpdate, Before: before, After: cloneChurch(current)})
	return cloneChurch(current), nil
}

func (tx *transaction) attachCampus(campus Campus) {
	church := tx.state.churches[campus.ChurchID]
	before := cloneChurch(church)
	church.CampusIDs = append(church.CampusIDs, campus.ID)
	if church.PrimaryCampusID == "" {
		church.PrimaryCampusID = campus.ID
	}
	church.UpdatedAt = tx.now
	tx.state.churches[church.ID] = cloneChurch(church)
	tx.recordChange(Change{Entity: domain.EntityChurch, Action: domain.ActionUpdate, Before: before, After: cloneChurch(church)})
}

// CreateCampus stores a campus and appends it to its church. The first campus
// of a church becomes its primary campus.
func (tx *transaction) CreateCampus(c Campus) (Campus, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.campuses[c.ID]; exists {
		return Campus{}, fmt.Errorf("campus %q already exists", c.ID)
	}
	if _, err := tx.requireChurch(c.ChurchID); err != nil {
		return Campus{}, err
	}
	if strings.TrimSpace(c.Name) == "" {
		return Campus{}, invalid("name", "required")
	}
	if err := validateTimezone(c.Timezone); err != nil {
		return Campus{}, err
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	tx.state.campuses[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionCreate, After: c})
	tx.attachCampus(c)
	return c, nil
}

// UpdateCampus mutates a campus; it cannot move to another church.
func (tx *transaction) UpdateCampus(id string, mutator func(*Campus) error) (Campus, error) {
	current, ok := tx.state.campuses[id]
	if !ok {
		return Campus{}, notFound(domain.EntityCampus, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return Campus{}, err
	}
	current.ID = id
	current.ChurchID = before.ChurchID
	current.CreatedAt = before.CreatedAt
	if strings.TrimSpace(current.Name) == "" {
		return Campus{}, invalid("name", "required")
	}
	if err := validateTimezone(current.Timezone); err != nil {
		return Campus{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.campuses[id] = current
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return invalid("timezone", fmt.Sprintf("unknown timezone %q", tz))
	}
	return nil
}

func (tx *transaction) emailTaken(email, exceptID string) bool {
	for _, u := range tx.state.users {
		if u.ID != exceptID && strings.EqualFold(u.Email, email) {
			return true
		}
	}
	return false
}

func (tx *transaction) validateUser(u UserAccount) error {
	if _, err := tx.requireChurch(u.ChurchID); err != nil {
		return err
	}
	if strings.TrimSpace(u.Email) == "" {
		return invalid("email", "required")
	}
	if tx.emailTaken(u.Email, u.ID) {
		return invalid("email", fmt.Sprintf("%s is already registered", u.Email))
	}
	if !u.Role.Valid() {
		return invalid("role", fmt.Sprintf("unknown role %q", u.Role))
	}
	if u.CampusID != "" {
		if err := tx.requireCampusOf(u.ChurchID, u.CampusID); err != nil {
			return err
		}
	}
	return nil
}

// CreateUser stores a new user account.
func (tx *transaction) CreateUser(u UserAccount) (UserAccount, error) {
	if u.ID == "" {
		u.ID = tx.store.newID()
	}
	if _, exists := tx.state.users[u.ID]; exists {
		return UserAccount{}, fmt.Errorf("user %q already exists", u.ID)
	}
	if u.Role == "" {
		u.Role = domain.RoleMember
	}
	u.Email = strings.TrimSpace(u.Email)
	if err := tx.validateUser(u); err != nil {
		return UserAccount{}, err
	}
	u.CreatedAt = tx.now
	u.UpdatedAt = tx.now
	tx.state.users[u.ID] = u
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionCreate, After: u})
	return u, nil
}

// UpdateUser mutates a user account; it cannot move to another church.
func (tx *transaction) UpdateUser(id string, mutator func(*UserAccount) error) (UserAccount, error) {
	current, ok := tx.state.users[id]
	if !ok {
		return UserAccount{}, notFound(domain.EntityUser, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return UserAccount{}, err
	}
	current.ID = id
	current.ChurchID = before.ChurchID
	current.CreatedAt = before.CreatedAt
	current.Email = strings.TrimSpace(current.Email)
	if err := tx.validateUser(current); err != nil {
		return UserAccount{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.users[id] = current
	tx.recordChange(Change{Entity: domain.EntityUser, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// PutCredential creates or replaces the credential of an existing user.
func (tx *transaction) PutCredential(c UserCredential) error {
	if _, ok := tx.state.users[c.UserID]; !ok {
		return notFound(domain.EntityUser, c.UserID)
	}
	if c.PasswordHash == "" {
		return invalid("password", "required")
	}
	_, existed := tx.state.credentials[c.UserID]
	c.UpdatedAt = tx.now
	tx.state.credentials[c.UserID] = c
	action := domain.ActionCreate
	if existed {
		action = domain.ActionUpdate
	}
	// Credentials are recorded without their hash so rules never see it.
	tx.recordChange(Change{Entity: domain.EntityCredential, Action: action, After: c.UserID})
	return nil
}

func (tx *transaction) validateContact(c Contact) error {
	if _, err := tx.requireChurch(c.ChurchID); err != nil {
		return err
	}
	if err := tx.requireCampusOf(c.ChurchID, c.CampusID); err != nil {
		return err
	}
	if strings.TrimSpace(c.FirstName) == "" && strings.TrimSpace(c.LastName) == "" {
		return invalid("name", "first or last name required")
	}
	if !c.Temperature.Valid() {
		return invalid("temperature", fmt.Sprintf("unknown temperature %q", c.Temperature))
	}
	if c.OwnerID != "" {
		if err := tx.requireUserOf(c.ChurchID, c.OwnerID, "owner_id"); err != nil {
			return err
		}
	}
	return nil
}

// CreateContact stores a new contact. The campus must already be resolved.
func (tx *transaction) CreateContact(c Contact) (Contact, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.contacts[c.ID]; exists {
		return Contact{}, fmt.Errorf("contact %q already exists", c.ID)
	}
	if c.Temperature == "" {
		c.Temperature = domain.TemperatureNew
	}
	if err := tx.validateContact(c); err != nil {
		return Contact{}, err
	}
	c.CreatedAt = tx.now
	c.UpdatedAt = tx.now
	c.LastActivityAt = tx.now
	c = cloneContact(c)
	tx.state.contacts[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionCreate, After: cloneContact(c)})
	return cloneContact(c), nil
}

// UpdateContact mutates a contact; it cannot move to another church.
func (tx *transaction) UpdateContact(id string, mutator func(*Contact) error) (Contact, error) {
	current, ok := tx.state.contacts[id]
	if !ok {
		return Contact{}, notFound(domain.EntityContact, id)
	}
	before := cloneContact(current)
	if err := mutator(&current); err != nil {
		return Contact{}, err
	}
	current.ID = id
	current.ChurchID = before.ChurchID
	current.CreatedAt = before.CreatedAt
	if err := tx.validateContact(current); err != nil {
		return Contact{}, err
	}
	current.UpdatedAt = tx.now
	current = cloneContact(current)
	tx.state.contacts[id] = current
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionUpdate, Before: before, After: cloneContact(current)})
	return cloneContact(current), nil
}

func (tx *transaction) validateTask(t FollowUpTask) error {
	if _, err := tx.requireChurch(t.ChurchID); err != nil {
		return err
	}
	if err := tx.requireContactOf(t.ChurchID, t.ContactID); err != nil {
		return err
	}
	if t.AssigneeID != "" {
		if err := tx.requireUserOf(t.ChurchID, t.AssigneeID, "assignee_id"); err != nil {
			return err
		}
	}
	if !t.Status.Valid() {
		return invalid("status", fmt.Sprintf("unknown status %q", t.Status))
	}
	if !t.Recurrence.Valid() {
		return invalid("recurrence", fmt.Sprintf("unknown recurrence %q", t.Recurrence))
	}
	if t.DueDate.IsZero() {
		return invalid("due_date", "required")
	}
	if t.WindowStart != nil && t.WindowEnd != nil && t.WindowEnd.Before(*t.WindowStart) {
		return invalid("window_end", "must not be before window_start")
	}
	if t.TemplateID != "" {
		tmpl, ok := tx.state.templates[t.TemplateID]
		if !ok {
			return notFound(domain.EntityTemplate, t.TemplateID)
		}
		if tmpl.ChurchID != t.ChurchID {
			return invalid("template_id", fmt.Sprintf("template %s belongs to another church", t.TemplateID))
		}
	}
	return nil
}

// CreateTask stores a new follow-up task.
func (tx *transaction) CreateTask(t FollowUpTask) (FollowUpTask, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.tasks[t.ID]; exists {
		return FollowUpTask{}, fmt.Errorf("task %q already exists", t.ID)
	}
	if t.Status == "" {
		t.Status = domain.TaskPending
	}
	if t.Recurrence == "" {
		t.Recurrence = domain.RecurrenceOneTime
	}
	if t.AssigneeID == "" {
		return FollowUpTask{}, invalid("assignee_id", "required")
	}
	if err := tx.validateTask(t); err != nil {
		return FollowUpTask{}, err
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	t = cloneTask(t)
	tx.state.tasks[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionCreate, After: cloneTask(t)})
	return cloneTask(t), nil
}

// UpdateTask mutates a task; it cannot move to another church.
func (tx *transaction) UpdateTask(id string, mutator func(*FollowUpTask) error) (FollowUpTask, error) {
	current, ok := tx.state.tasks[id]
	if !ok {
		return FollowUpTask{}, notFound(domain.EntityTask, id)
	}
	before := cloneTask(current)
	if err := mutator(&current); err != nil {
		return FollowUpTask{}, err
	}
	current.ID = id
	current.ChurchID = before.ChurchID
	current.CreatedAt = before.CreatedAt
	if err := tx.validateTask(current); err != nil {
		return FollowUpTask{}, err
	}
	current.UpdatedAt = tx.now
	current = cloneTask(current)
	tx.state.tasks[id] = current
	tx.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionUpdate, Before: before, After: cloneTask(current)})
	return cloneTask(current), nil
}

// AppendActivity stores an immutable activity log entry.
func (tx *transaction) AppendActivity(a ActivityLog) (ActivityLog, error) {
	if a.ID == "" {
		a.ID = tx.store.newID()
	}
	if _, exists := tx.state.activities[a.ID]; exists {
		return ActivityLog{}, fmt.Errorf("activity %q already exists", a.ID)
	}
	if _, err := tx.requireChurch(a.ChurchID); err != nil {
		return ActivityLog{}, err
	}
	if err := tx.requireContactOf(a.ChurchID, a.ContactID); err != nil {
		return ActivityLog{}, err
	}
	if !a.Type.Valid() {
		return ActivityLog{}, invalid("type", fmt.Sprintf("unknown activity type %q", a.Type))
	}
	if a.UserID != "" {
		if err := tx.requireUserOf(a.ChurchID, a.UserID, "user_id"); err != nil {
			return ActivityLog{}, err
		}
	}
	if a.TaskID != "" {
		task, ok := tx.state.tasks[a.TaskID]
		if !ok {
			return ActivityLog{}, notFound(domain.EntityTask, a.TaskID)
		}
		if task.ChurchID != a.ChurchID {
			return ActivityLog{}, invalid("task_id", fmt.Sprintf("task %s belongs to another church", a.TaskID))
		}
	}
	a.CreatedAt = tx.now
	tx.state.activities[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityActivity, Action: domain.ActionCreate, After: a})
	return a, nil
}

// CreateTemplate stores a church-scoped assignment template.
func (tx *transaction) CreateTemplate(t AssignmentTemplate) (AssignmentTemplate, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.templates[t.ID]; exists {
		return AssignmentTemplate{}, fmt.Errorf("template %q already exists", t.ID)
	}
	if _, err := tx.requireChurch(t.ChurchID); err != nil {
		return AssignmentTemplate{}, err
	}
	if strings.TrimSpace(t.Name) == "" {
		return AssignmentTemplate{}, invalid("name", "required")
	}
	if t.DefaultRecurrence == "" {
		t.DefaultRecurrence = domain.RecurrenceOneTime
	}
	if !t.DefaultRecurrence.Valid() {
		return AssignmentTemplate{}, invalid("default_recurrence", fmt.Sprintf("unknown recurrence %q", t.DefaultRecurrence))
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.templates[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTemplate, Action: domain.ActionCreate, After: t})
	return t, nil
}

func (tx *transaction) validatePlan(p SubscriptionPlan) error {
	if strings.TrimSpace(p.Code) == "" {
		return invalid("code", "required")
	}
	for _, other := range tx.state.plans {
		if other.ID != p.ID && strings.EqualFold(other.Code, p.Code) {
			return invalid("code", fmt.Sprintf("plan code %s already exists", p.Code))
		}
	}
	if p.MaxCampuses < 0 || p.MaxContacts < 0 || p.MonthlyCents < 0 {
		return invalid("limits", "must not be negative")
	}
	return nil
}

// CreatePlan stores a global subscription plan.
func (tx *transaction) CreatePlan(p SubscriptionPlan) (SubscriptionPlan, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.plans[p.ID]; exists {
		return SubscriptionPlan{}, fmt.Errorf("plan %q already exists", p.ID)
	}
	if err := tx.validatePlan(p); err != nil {
		return SubscriptionPlan{}, err
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.plans[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityPlan, Action: domain.ActionCreate, After: p})
	return p, nil
}

// UpdatePlan mutates a subscription plan.
func (tx *transaction) UpdatePlan(id string, mutator func(*SubscriptionPlan) error) (SubscriptionPlan, error) {
	current, ok := tx.state.plans[id]
	if !ok {
		return SubscriptionPlan{}, notFound(domain.EntityPlan, id)
	}
	before := current
	if err := mutator(&current); err != nil {
		return SubscriptionPlan{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	if err := tx.validatePlan(current); err != nil {
		return SubscriptionPlan{}, err
	}
	current.UpdatedAt = tx.now
	tx.state.plans[id] = current
	tx.recordChange(Change{Entity: domain.EntityPlan, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

var errMissingID = errors.New("imported record has no id")

// ImportCampus admits a campus verbatim unless its id is already present.
func (tx *transaction) ImportCampus(c Campus) (bool, error) {
	if c.ID == "" {
		return false, errMissingID
	}
	if _, exists := tx.state.campuses[c.ID]; exists {
		return false, nil
	}
	if _, err := tx.requireChurch(c.ChurchID); err != nil {
		return false, err
	}
	tx.state.campuses[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCampus, Action: domain.ActionCreate, After: c})
	tx.attachCampus(c)
	return true, nil
}

// ImportContact admits a contact verbatim unless its id is already present.
func (tx *transaction) ImportContact(c Contact) (bool, error) {
	if c.ID == "" {
		return false, errMissingID
	}
	if _, exists := tx.state.contacts[c.ID]; exists {
		return false, nil
	}
	if err := tx.validateContact(c); err != nil {
		return false, err
	}
	c = cloneContact(c)
	tx.state.contacts[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityContact, Action: domain.ActionCreate, After: cloneContact(c)})
	return true, nil
}

// ImportTask admits a task verbatim unless its id is already present. An
// imported task may arrive without an assignee.
func (tx *transaction) ImportTask(t FollowUpTask) (bool, error) {
	if t.ID == "" {
		return false, errMissingID
	}
	if _, exists := tx.state.tasks[t.ID]; exists {
		return false, nil
	}
	if err := tx.validateTask(t); err != nil {
		return false, err
	}
	t = cloneTask(t)
	tx.state.tasks[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTask, Action: domain.ActionCreate, After: cloneTask(t)})
	return true, nil
}

// ImportActivity admits an activity verbatim unless its id is already present.
func (tx *transaction) ImportActivity(a ActivityLog) (bool, error) {
	if a.ID == "" {
		return false, errMissingID
	}
	if _, exists := tx.state.activities[a.ID]; exists {
		return false, nil
	}
	if err := tx.requireContactOf(a.ChurchID, a.ContactID); err != nil {
		return false, err
	}
	if !a.Type.Valid() {
		return false, invalid("type", fmt.Sprintf("unknown activity type %q", a.Type))
	}
	tx.state.activities[a.ID] = a
	tx.recordChange(Change{Entity: domain.EntityActivity, Action: domain.ActionCreate, After: a})
	return true, nil
}

// ImportTemplate admits a template verbatim unless its id is already present.
func (tx *transaction) ImportTemplate(t AssignmentTemplate) (bool, error) {
	if t.ID == "" {
		return false, errMissingID
	}
	if _, exists := tx.state.templates[t.ID]; exists {
		return false, nil
	}
	if _, err := tx.requireChurch(t.ChurchID); err != nil {
		return false, err
	}
	tx.state.templates[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTemplate, Action: domain.ActionCreate, After: t})
	return true, nil
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func byCreated[T any](items []T, created func(T) time.Time, id func(T) string) {
	sort.Slice(items, func(i, j int) bool {
		ci, cj := created(items[i]), created(items[j])
		if !ci.Equal(cj) {
			return ci.Before(cj)
		}
		return id(items[i]) < id(items[j])
	})
}

// ListChurches returns all churches ordered by creation.
func (v transactionView) ListChurches() []Church {
	out := make([]Church, 0, len(v.state.churches))
	for _, c := range v.state.churches {
		out = append(out, cloneChurch(c))
	}
	byCreated(out, func(c Church) time.Time { return c.CreatedAt }, func(c Church) string { return c.ID })
	return out
}

// FindChurch retrieves a church by id.
func (v transactionView) FindChurch(id string) (Church, bool) {
	c, ok := v.state.churches[id]
	if !ok {
		return Church{}, false
	}
	return cloneChurch(c), true
}

// ListCampuses returns campuses; for a single church they follow the church's campus order.
func (v transactionView) ListCampuses(churchID string) []Campus {
	if churchID != "" {
		church, ok := v.state.churches[churchID]
		if !ok {
			return nil
		}
		out := make([]Campus, 0, len(church.CampusIDs))
		for _, id := range church.CampusIDs {
			if campus, ok := v.state.campuses[id]; ok && campus.ChurchID == churchID {
				out = append(out, campus)
			}
		}
		return out
	}
	out := make([]Campus, 0, len(v.state.campuses))
	for _, c := range v.state.campuses {
		out = append(out, c)
	}
	byCreated(out, func(c Campus) time.Time { return c.CreatedAt }, func(c Campus) string { return c.ID })
	return out
}

// FindCampus retrieves a campus by id.
func (v transactionView) FindCampus(id string) (Campus, bool) {
	c, ok := v.state.campuses[id]
	return c, ok
}

// ListUsers returns user accounts, optionally scoped to a church.
func (v transactionView) ListUsers(churchID string) []UserAccount {
	out := make([]UserAccount, 0)
	for _, u := range v.state.users {
		if churchID == "" || u.ChurchID == churchID {
			out = append(out, u)
		}
	}
	byCreated(out, func(u UserAccount) time.Time { return u.CreatedAt }, func(u UserAccount) string { return u.ID })
	return out
}

// FindUser retrieves a user account by id.
func (v transactionView) FindUser(id string) (UserAccount, bool) {
	u, ok := v.state.users[id]
	return u, ok
}

// FindUserByEmail matches email case-insensitively.
func (v transactionView) FindUserByEmail(email string) (UserAccount, bool) {
	email = strings.TrimSpace(email)
	for _, u := range v.state.users {
		if strings.EqualFold(u.Email, email) {
			return u, true
		}
	}
	return UserAccount{}, false
}

// FindCredential retrieves the credential of a user.
func (v transactionView) FindCredential(userID string) (UserCredential, bool) {
	c, ok := v.state.credentials[userID]
	return c, ok
}

// ListContacts returns contacts, optionally scoped to a church.
func (v transactionView) ListContacts(churchID string) []Contact {
	out := make([]Contact, 0)
	for _, c := range v.state.contacts {
		if churchID == "" || c.ChurchID == churchID {
			out = append(out, cloneContact(c))
		}
	}
	byCreated(out, func(c Contact) time.Time { return c.CreatedAt }, func(c Contact) string { return c.ID })
	return out
}

// FindContact retrieves a contact by id.
func (v transactionView) FindContact(id string) (Contact, bool) {
	c, ok := v.state.contacts[id]
	if !ok {
		return Contact{}, false
	}
	return cloneContact(c), true
}

// ListTasks returns tasks, optionally scoped to a church.
func (v transactionView) ListTasks(churchID string) []FollowUpTask {
	out := make([]FollowUpTask, 0)
	for _, t := range v.state.tasks {
		if churchID == "" || t.ChurchID == churchID {
			out = append(out, cloneTask(t))
		}
	}
	byCreated(out, func(t FollowUpTask) time.Time { return t.CreatedAt }, func(t FollowUpTask) string { return t.ID })
	return out
}

// FindTask retrieves a task by id.
func (v transactionView) FindTask(id string) (FollowUpTask, bool) {
	t, ok := v.state.tasks[id]
	if !ok {
		return FollowUpTask{}, false
	}
	return cloneTask(t), true
}

// ListActivities returns activity entries newest first.
func (v transactionView) ListActivities(churchID string) []ActivityLog {
	out := make([]ActivityLog, 0)
	for _, a := range v.state.activities {
		if churchID == "" || a.ChurchID == churchID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

// ListTemplates returns templates, optionally scoped to a church.
func (v transactionView) ListTemplates(churchID string) []AssignmentTemplate {
	out := make([]AssignmentTemplate, 0)
	for _, t := range v.state.templates {
		if churchID == "" || t.ChurchID == churchID {
			out = append(out, t)
		}
	}
	byCreated(out, func(t AssignmentTemplate) time.Time { return t.CreatedAt }, func(t AssignmentTemplate) string { return t.ID })
	return out
}

// FindTemplate retrieves a template by id.
func (v transactionView) FindTemplate(id string) (AssignmentTemplate, bool) {
	t, ok := v.state.templates[id]
	return t, ok
}

// ListPlans returns the plan catalog.
func (v transactionView) ListPlans() []SubscriptionPlan {
	out := make([]SubscriptionPlan, 0, len(v.state.plans))
	for _, p := range v.state.plans {
		out = append(out, p)
	}
	byCreated(out, func(p SubscriptionPlan) time.Time { return p.CreatedAt }, func(p SubscriptionPlan) string { return p.ID })
	return out
}

// FindPlan retrieves a plan by id.
func (v transactionView) FindPlan(id string) (SubscriptionPlan, bool) {
	p, ok := v.state.plans[id]
	return p, ok
}
