package memory

// CurrentVersion is the schema version written by this build.
const CurrentVersion = 3

// Document is the persisted form of the whole repository. Collections are
// keyed by record id.
type Document struct {
	Version     int                           `json:"version"`
	Churches    map[string]Church             `json:"churches"`
	Campuses    map[string]Campus             `json:"campuses"`
	Users       map[string]UserAccount        `json:"users"`
	Credentials map[string]UserCredential     `json:"credentials"`
	Contacts    map[string]Contact            `json:"contacts"`
	Tasks       map[string]FollowUpTask       `json:"tasks"`
	Activities  map[string]ActivityLog        `json:"activities"`
	Templates   map[string]AssignmentTemplate `json:"templates"`
	Plans       map[string]SubscriptionPlan   `json:"plans"`
}

// NewDocument returns an empty document at the current version.
func NewDocument() Document {
	return documentFromState(newMemoryState())
}

// Empty reports whether the document holds no records at all.
func (d Document) Empty() bool {
	return len(d.Churches) == 0 && len(d.Campuses) == 0 && len(d.Users) == 0 &&
		len(d.Contacts) == 0 && len(d.Tasks) == 0 && len(d.Activities) == 0 &&
		len(d.Templates) == 0 && len(d.Plans) == 0
}

func documentFromState(state memoryState) Document {
	cloned := state.clone()
	return Document{
		Version:     CurrentVersion,
		Churches:    cloned.churches,
		Campuses:    cloned.campuses,
		Users:       cloned.users,
		Credentials: cloned.credentials,
		Contacts:    cloned.contacts,
		Tasks:       cloned.tasks,
		Activities:  cloned.activities,
		Templates:   cloned.templates,
		Plans:       cloned.plans,
	}
}

func stateFromDocument(doc Document) memoryState {
	doc = normalizeCollections(doc)
	state := memoryState{
		churches:    doc.Churches,
		campuses:    doc.Campuses,
		users:       doc.Users,
		credentials: doc.Credentials,
		contacts:    doc.Contacts,
		tasks:       doc.Tasks,
		activities:  doc.Activities,
		templates:   doc.Templates,
		plans:       doc.Plans,
	}
	return state.clone()
}

func normalizeCollections(doc Document) Document {
	if doc.Churches == nil {
		doc.Churches = map[string]Church{}
	}
	if doc.Campuses == nil {
		doc.Campuses = map[string]Campus{}
	}
	if doc.Users == nil {
		doc.Users = map[string]UserAccount{}
	}
	if doc.Credentials == nil {
		doc.Credentials = map[string]UserCredential{}
	}
	if doc.Contacts == nil {
		doc.Contacts = map[string]Contact{}
	}
	if doc.Tasks == nil {
		doc.Tasks = map[string]FollowUpTask{}
	}
	if doc.Activities == nil {
		doc.Activities = map[string]ActivityLog{}
	}
	if doc.Templates == nil {
		doc.Templates = map[string]AssignmentTemplate{}
	}
	if doc.Plans == nil {
		doc.Plans = map[string]SubscriptionPlan{}
	}
	return doc
}
