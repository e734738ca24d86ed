package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BKHilton/Ember/pkg/domain"
	"github.com/google/uuid"
)

// CreateContactInput describes a new outreach contact. An empty CampusID
// resolves to the church's primary campus.
type CreateContactInput struct {
	ChurchID    string
	CampusID    string
	FirstName   string
	LastName    string
	Email       string
	Phone       string
	Temperature domain.Temperature
	OwnerID     string
	Tags        []string
	Family      []domain.FamilyMember
	Notes       string
	ActorID     string
}

// CreateContact stores a contact and logs its creation.
func (s *Service) CreateContact(ctx context.Context, in CreateContactInput) (domain.Contact, error) {
	var created domain.Contact
	err := s.run(ctx, "create_contact", in.ChurchID, func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			church, ok := view.FindChurch(in.ChurchID)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityChurch, ID: in.ChurchID}
			}
			campusID, err := resolveCampus(view, church, in.CampusID)
			if err != nil {
				return err
			}
			if plan, ok := view.FindPlan(church.PlanID); ok && plan.MaxContacts > 0 && len(view.ListContacts(church.ID)) >= plan.MaxContacts {
				return domain.ValidationError{Field: "contact", Reason: "plan " + plan.Code + " contact limit reached"}
			}
			created, err = tx.CreateContact(domain.Contact{
				ChurchID:    church.ID,
				CampusID:    campusID,
				FirstName:   cleanText(in.FirstName),
				LastName:    cleanText(in.LastName),
				Email:       strings.TrimSpace(in.Email),
				Phone:       strings.TrimSpace(in.Phone),
				Temperature: in.Temperature,
				OwnerID:     in.OwnerID,
				Tags:        cleanTags(in.Tags),
				Family:      cleanFamily(in.Family),
				Notes:       cleanText(in.Notes),
			})
			if err != nil {
				return err
			}
			created, _, err = logContactActivity(tx, created.ID, domain.ActivityLog{
				UserID:  in.ActorID,
				Type:    domain.ActivityNote,
				Summary: "Contact created",
			})
			return err
		})
		return created.ID, err
	})
	return created, err
}

// resolveCampus returns requested when it belongs to church, or the primary
// campus when requested is empty.
func resolveCampus(view domain.TransactionView, church domain.Church, requested string) (string, error) {
	if requested == "" {
		requested = church.PrimaryCampusID
	}
	if requested == "" {
		return "", domain.ValidationError{Field: "campus_id", Reason: "church has no campus to assign"}
	}
	campus, ok := view.FindCampus(requested)
	if !ok || campus.ChurchID != church.ID {
		return "", domain.ValidationError{Field: "campus_id", Reason: fmt.Sprintf("campus %s is not a campus of church %s", requested, church.ID)}
	}
	return campus.ID, nil
}

func cleanFamily(family []domain.FamilyMember) []domain.FamilyMember {
	out := make([]domain.FamilyMember, 0, len(family))
	for _, m := range family {
		m.Name = cleanText(m.Name)
		if m.Name == "" {
			continue
		}
		m.Relationship = cleanText(m.Relationship)
		m.Phone = strings.TrimSpace(m.Phone)
		out = append(out, m)
	}
	return out
}

// logContactActivity appends an activity for a contact and stamps the
// contact's lastActivityAt and updatedAt with the activity's timestamp.
func logContactActivity(tx domain.Transaction, contactID string, entry domain.ActivityLog) (domain.Contact, domain.ActivityLog, error) {
	contact, ok := tx.Snapshot().FindContact(contactID)
	if !ok {
		return domain.Contact{}, domain.ActivityLog{}, domain.NotFoundError{Entity: domain.EntityContact, ID: contactID}
	}
	entry.ChurchID = contact.ChurchID
	entry.ContactID = contact.ID
	logged, err := tx.AppendActivity(entry)
	if err != nil {
		return domain.Contact{}, domain.ActivityLog{}, err
	}
	touched, err := tx.UpdateContact(contact.ID, func(c *domain.Contact) error {
		c.LastActivityAt = logged.CreatedAt
		return nil
	})
	return touched, logged, err
}

// ContactStatusUpdate moves a contact to a new temperature.
type ContactStatusUpdate struct {
	ContactID   string
	ChurchID    string
	Temperature domain.Temperature
	Note        string
	ActorID     string
}

// UpdateContactStatus changes a contact's temperature. It reports false when
// the contact does not exist in the church.
func (s *Service) UpdateContactStatus(ctx context.Context, in ContactStatusUpdate) (domain.Contact, bool, error) {
	var (
		updated domain.Contact
		found   = true
	)
	err := s.run(ctx, "update_contact_status", in.ChurchID, func(ctx context.Context) (string, error) {
		if !in.Temperature.Valid() {
			return in.ContactID, domain.ValidationError{Field: "temperature", Reason: fmt.Sprintf("unknown temperature %q", in.Temperature)}
		}
		err := s.update(ctx, func(tx domain.Transaction) error {
			current, ok := tx.Snapshot().FindContact(in.ContactID)
			if !ok || (in.ChurchID != "" && current.ChurchID != in.ChurchID) {
				found = false
				return nil
			}
			if _, err := tx.UpdateContact(current.ID, func(c *domain.Contact) error {
				c.Temperature = in.Temperature
				return nil
			}); err != nil {
				return err
			}
			var err error
			updated, _, err = logContactActivity(tx, current.ID, domain.ActivityLog{
				UserID:  in.ActorID,
				Type:    domain.ActivityNote,
				Summary: fmt.Sprintf("Temperature changed from %s to %s", current.Temperature, in.Temperature),
				Note:    cleanText(in.Note),
			})
			return err
		})
		return in.ContactID, err
	})
	if err != nil || !found {
		return domain.Contact{}, false, err
	}
	return updated, true, nil
}

// ContactDetails lists editable contact fields. Nil fields are left untouched.
type ContactDetails struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	CampusID  *string
	Tags      *[]string
	Family    *[]domain.FamilyMember
	Notes     *string
}

// UpdateContactDetails edits a contact and logs the edit.
func (s *Service) UpdateContactDetails(ctx context.Context, contactID, actorID string, details ContactDetails) (domain.Contact, error) {
	var updated domain.Contact
	err := s.run(ctx, "update_contact_details", "", func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateContact(contactID, func(c *domain.Contact) error {
				if details.FirstName != nil {
					c.FirstName = cleanText(*details.FirstName)
				}
				if details.LastName != nil {
					c.LastName = cleanText(*details.LastName)
				}
				if details.Email != nil {
					c.Email = strings.TrimSpace(*details.Email)
				}
				if details.Phone != nil {
					c.Phone = strings.TrimSpace(*details.Phone)
				}
				if details.CampusID != nil {
					c.CampusID = *details.CampusID
				}
				if details.Tags != nil {
					c.Tags = cleanTags(*details.Tags)
				}
				if details.Family != nil {
					c.Family = cleanFamily(*details.Family)
				}
				if details.Notes != nil {
					c.Notes = cleanText(*details.Notes)
				}
				return nil
			}); err != nil {
				return err
			}
			var err error
			updated, _, err = logContactActivity(tx, contactID, domain.ActivityLog{
				UserID:  actorID,
				Type:    domain.ActivityNote,
				Summary: "Contact details updated",
			})
			return err
		})
		return contactID, err
	})
	return updated, err
}

// AssignContactOwner sets or, given an empty ownerID, clears the owner.
func (s *Service) AssignContactOwner(ctx context.Context, contactID, ownerID, actorID string) (domain.Contact, error) {
	var updated domain.Contact
	err := s.run(ctx, "assign_contact_owner", "", func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateContact(contactID, func(c *domain.Contact) error {
				c.OwnerID = ownerID
				return nil
			}); err != nil {
				return err
			}
			summary := "Owner cleared"
			if ownerID != "" {
				summary = "Owner assigned"
				if owner, ok := tx.Snapshot().FindUser(ownerID); ok {
					summary = "Owner assigned to " + owner.Name
				}
			}
			var err error
			updated, _, err = logContactActivity(tx, contactID, domain.ActivityLog{
				UserID:  actorID,
				Type:    domain.ActivityNote,
				Summary: summary,
			})
			return err
		})
		return contactID, err
	})
	return updated, err
}

// UpdateContactPhoto copies sourcePath into the uploads area of the blob
// store and records its location on the contact.
func (s *Service) UpdateContactPhoto(ctx context.Context, contactID, churchID, sourcePath string) (domain.Contact, error) {
	var updated domain.Contact
	err := s.run(ctx, "update_contact_photo", churchID, func(ctx context.Context) (string, error) {
		contact, ok := s.FindContact(ctx, contactID)
		if !ok || contact.ChurchID != churchID {
			return contactID, domain.NotFoundError{Entity: domain.EntityContact, ID: contactID}
		}
		data, err := os.ReadFile(sourcePath)
		if err != nil {
			return contactID, fmt.Errorf("read photo: %w", err)
		}
		key := fmt.Sprintf("uploads/%s/%s-%s%s", churchID, contactID, uuid.NewString(), strings.ToLower(filepath.Ext(sourcePath)))
		obj, err := s.blobs.Write(ctx, key, data, "")
		if err != nil {
			return contactID, fmt.Errorf("store photo: %w", err)
		}
		err = s.update(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateContact(contactID, func(c *domain.Contact) error {
				c.PhotoPath = obj.Location
				return nil
			}); err != nil {
				return err
			}
			var err error
			updated, _, err = logContactActivity(tx, contactID, domain.ActivityLog{
				Type:    domain.ActivityNote,
				Summary: "Photo updated",
			})
			return err
		})
		if err != nil {
			if delErr := s.blobs.Delete(ctx, key); delErr != nil {
				s.logger.Warn("orphaned photo upload", "key", key, "error", delErr)
			}
		}
		return contactID, err
	})
	return updated, err
}

// FindContact returns a contact by id.
func (s *Service) FindContact(ctx context.Context, id string) (domain.Contact, bool) {
	var (
		contact domain.Contact
		ok      bool
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		contact, ok = v.FindContact(id)
		return nil
	})
	return contact, ok
}

// ContactFilter narrows ListContacts. Zero fields match everything.
type ContactFilter struct {
	CampusID    string
	Temperature domain.Temperature
	OwnerID     string
	Tag         string
}

func (f ContactFilter) matches(c domain.Contact) bool {
	if f.CampusID != "" && c.CampusID != f.CampusID {
		return false
	}
	if f.Temperature != "" && c.Temperature != f.Temperature {
		return false
	}
	if f.OwnerID != "" && c.OwnerID != f.OwnerID {
		return false
	}
	if f.Tag != "" && !slices.ContainsFunc(c.Tags, func(t string) bool { return strings.EqualFold(t, f.Tag) }) {
		return false
	}
	return true
}

// ListContacts returns a church's contacts that match filter.
func (s *Service) ListContacts(ctx context.Context, churchID string, filter ContactFilter) []domain.Contact {
	var out []domain.Contact
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if churchID == "" {
			return nil
		}
		for _, c := range v.ListContacts(churchID) {
			if filter.matches(c) {
				out = append(out, c)
			}
		}
		return nil
	})
	return out
}
