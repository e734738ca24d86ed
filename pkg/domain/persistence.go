package domain

import (
	"context"
	"time"
)

// Transaction exposes the repository operations available within an atomic
// scope. Create and update calls validate foreign keys before admission.
type Transaction interface {
	Snapshot() TransactionView
	Now() time.Time

	CreateChurch(Church) (Church, error)
	UpdateChurch(id string, mutator func(*Church) error) (Church, error)
	CreateCampus(Campus) (Campus, error)
	UpdateCampus(id string, mutator func(*Campus) error) (Campus, error)
	CreateUser(UserAccount) (UserAccount, error)
	UpdateUser(id string, mutator func(*UserAccount) error) (UserAccount, error)
	PutCredential(UserCredential) error
	CreateContact(Contact) (Contact, error)
	UpdateContact(id string, mutator func(*Contact) error) (Contact, error)
	CreateTask(FollowUpTask) (FollowUpTask, error)
	UpdateTask(id string, mutator func(*FollowUpTask) error) (FollowUpTask, error)
	AppendActivity(ActivityLog) (ActivityLog, error)
	CreateTemplate(AssignmentTemplate) (AssignmentTemplate, error)
	CreatePlan(SubscriptionPlan) (SubscriptionPlan, error)
	UpdatePlan(id string, mutator func(*SubscriptionPlan) error) (SubscriptionPlan, error)

	// Import* admit a record verbatim when its id is not yet present. They
	// report whether the record was admitted.
	ImportCampus(Campus) (bool, error)
	ImportContact(Contact) (bool, error)
	ImportTask(FollowUpTask) (bool, error)
	ImportActivity(ActivityLog) (bool, error)
	ImportTemplate(AssignmentTemplate) (bool, error)
}

// TransactionView provides read-only access to state. A churchID of "" lists
// records across all churches.
type TransactionView interface {
	ListChurches() []Church
	FindChurch(id string) (Church, bool)
	ListCampuses(churchID string) []Campus
	FindCampus(id string) (Campus, bool)
	ListUsers(churchID string) []UserAccount
	FindUser(id string) (UserAccount, bool)
	FindUserByEmail(email string) (UserAccount, bool)
	FindCredential(userID string) (UserCredential, bool)
	ListContacts(churchID string) []Contact
	FindContact(id string) (Contact, bool)
	ListTasks(churchID string) []FollowUpTask
	FindTask(id string) (FollowUpTask, bool)
	ListActivities(churchID string) []ActivityLog
	ListTemplates(churchID string) []AssignmentTemplate
	FindTemplate(id string) (AssignmentTemplate, bool)
	ListPlans() []SubscriptionPlan
	FindPlan(id string) (SubscriptionPlan, bool)
}

// PersistentStore is the abstraction the service layer runs against. Every
// committed transaction is durable when RunInTransaction returns.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	RulesEngine() *RulesEngine
	NowFunc() func() time.Time
}
