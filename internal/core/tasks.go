package core

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BKHilton/Ember/internal/mailer"
	"github.com/BKHilton/Ember/internal/notify"
	"github.com/BKHilton/Ember/pkg/domain"
)

// CreateTaskInput describes a follow-up assignment. A TemplateID fills the
// category and recurrence when they are not given.
type CreateTaskInput struct {
	ChurchID    string
	ContactID   string
	AssigneeID  string
	TemplateID  string
	Title       string
	Category    string
	DueDate     time.Time
	WindowStart *time.Time
	WindowEnd   *time.Time
	Recurrence  domain.Recurrence
	ActorID     string
}

// CreateTask stores a task, logs it on the contact and notifies the assignee.
func (s *Service) CreateTask(ctx context.Context, in CreateTaskInput) (domain.FollowUpTask, error) {
	var (
		created  domain.FollowUpTask
		church   domain.Church
		assignee domain.UserAccount
		contact  domain.Contact
	)
	err := s.run(ctx, "create_task", in.ChurchID, func(ctx context.Context) (string, error) {
		err := s.update(ctx, func(tx domain.Transaction) error {
			view := tx.Snapshot()
			task := domain.FollowUpTask{
				ChurchID:    in.ChurchID,
				ContactID:   in.ContactID,
				AssigneeID:  in.AssigneeID,
				TemplateID:  in.TemplateID,
				Title:       cleanText(in.Title),
				Category:    cleanText(in.Category),
				DueDate:     in.DueDate.UTC(),
				WindowStart: utcPtr(in.WindowStart),
				WindowEnd:   utcPtr(in.WindowEnd),
				Recurrence:  in.Recurrence,
			}
			if in.TemplateID != "" {
				tmpl, ok := view.FindTemplate(in.TemplateID)
				if !ok {
					return domain.NotFoundError{Entity: domain.EntityTemplate, ID: in.TemplateID}
				}
				if task.Category == "" {
					task.Category = tmpl.Category
				}
				if task.Recurrence == "" {
					task.Recurrence = tmpl.DefaultRecurrence
				}
				if task.Title == "" {
					task.Title = tmpl.Name
				}
			}
			if task.Title == "" {
				return domain.ValidationError{Field: "title", Reason: "required"}
			}
			task.Status = domain.NormalizeStatus(domain.TaskPending, task.DueDate, tx.Now())

			var err error
			created, err = tx.CreateTask(task)
			if err != nil {
				return err
			}
			contact, _, err = logContactActivity(tx, created.ContactID, domain.ActivityLog{
				UserID:  in.ActorID,
				TaskID:  created.ID,
				Type:    domain.ActivityTask,
				Summary: "Task created: " + created.Title,
			})
			if err != nil {
				return err
			}
			church, _ = view.FindChurch(created.ChurchID)
			assignee, _ = view.FindUser(created.AssigneeID)
			return nil
		})
		return created.ID, err
	})
	if err != nil {
		return domain.FollowUpTask{}, err
	}

	s.emit(ctx, notify.Event{
		Kind:     notify.TaskAssigned,
		ChurchID: created.ChurchID,
		EntityID: created.ID,
		Message:  fmt.Sprintf("%s assigned to %s", created.Title, assignee.Name),
		Data:     map[string]string{"assignee_id": assignee.ID, "contact_id": contact.ID},
	})
	s.sendAssignmentEmail(church, assignee, contact, created)
	return created, nil
}

// sendAssignmentEmail mails the assignee in the background when the church
// has email alerts and SMTP configured. Failures are logged.
func (s *Service) sendAssignmentEmail(church domain.Church, assignee domain.UserAccount, contact domain.Contact, task domain.FollowUpTask) {
	if !church.Alerts.Email || church.SMTP == nil || assignee.Email == "" {
		return
	}
	m, err := s.mailers(*church.SMTP)
	if err != nil {
		s.logger.Warn("assignment email skipped", "church_id", church.ID, "error", err)
		return
	}
	msg := mailer.BuildAssignmentEmail(mailer.AssignmentEmailData{
		ChurchName:   church.Name,
		AssigneeName: assignee.Name,
		ContactName:  contact.DisplayName(),
		TaskTitle:    task.Title,
		DueDate:      task.DueDate,
	})
	msg.To = assignee.Email

	s.mail.Add(1)
	go func() {
		defer s.mail.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := m.Send(ctx, msg); err != nil {
			s.logger.Warn("assignment email failed", "church_id", church.ID, "task_id", task.ID, "error", err)
		}
	}()
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}

// TaskStatusUpdate moves a task through its lifecycle. RescheduledFor is
// required when Status is rescheduled.
type TaskStatusUpdate struct {
	TaskID         string
	Status         domain.TaskStatus
	Note           string
	RescheduledFor *time.Time
	ActorID        string
}

// UpdateTaskStatus applies a status transition and logs an assignment
// result on the task's contact. It reports false when the task does not
// exist.
func (s *Service) UpdateTaskStatus(ctx context.Context, in TaskStatusUpdate) (domain.FollowUpTask, bool, error) {
	var (
		updated domain.FollowUpTask
		found   = true
	)
	err := s.run(ctx, "update_task_status", "", func(ctx context.Context) (string, error) {
		if !in.Status.Valid() {
			return in.TaskID, domain.ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", in.Status)}
		}
		if in.Status == domain.TaskRescheduled && in.RescheduledFor == nil {
			return in.TaskID, domain.ValidationError{Field: "rescheduled_for", Reason: "required when rescheduling"}
		}
		err := s.update(ctx, func(tx domain.Transaction) error {
			current, ok := tx.Snapshot().FindTask(in.TaskID)
			if !ok {
				found = false
				return nil
			}
			if !domain.CanTransition(current.Status, in.Status) {
				return domain.ValidationError{Field: "status", Reason: fmt.Sprintf("task cannot move from %s to %s", current.Status, in.Status)}
			}
			note := cleanText(in.Note)
			now := tx.Now()
			var err error
			updated, err = tx.UpdateTask(current.ID, func(t *domain.FollowUpTask) error {
				t.Status = domain.NormalizeStatus(in.Status, t.DueDate, now)
				switch t.Status {
				case domain.TaskCompleted:
					t.CompletedAt = &now
					t.OutcomeNote = note
				case domain.TaskRescheduled:
					next := in.RescheduledFor.UTC()
					t.RescheduledFor = &next
					t.DueDate = next
					t.OutcomeNote = note
				}
				return nil
			})
			if err != nil {
				return err
			}
			summary := fmt.Sprintf("Status changed from %s to %s", current.Status, updated.Status)
			if updated.Status == domain.TaskRescheduled {
				summary += " for " + updated.RescheduledFor.Format("2006-01-02")
			}
			_, _, err = logContactActivity(tx, updated.ContactID, domain.ActivityLog{
				UserID:  in.ActorID,
				TaskID:  updated.ID,
				Type:    domain.ActivityAssignmentResult,
				Summary: summary,
				Note:    note,
			})
			return err
		})
		return in.TaskID, err
	})
	if err != nil || !found {
		return domain.FollowUpTask{}, false, err
	}
	return updated, true, nil
}

// SweepPastDue promotes every overdue task that is neither completed nor
// already past due and returns the tasks it changed. A task the store
// rejects is logged and left as is; the rest of the batch still commits. A
// sweep that changes nothing performs no write.
func (s *Service) SweepPastDue(ctx context.Context) ([]domain.FollowUpTask, error) {
	var changed []domain.FollowUpTask
	err := s.run(ctx, "sweep_past_due", "", func(ctx context.Context) (string, error) {
		return "", s.update(ctx, func(tx domain.Transaction) error {
			changed = changed[:0]
			now := tx.Now()
			for _, task := range tx.Snapshot().ListTasks("") {
				if !task.Overdue(now) {
					continue
				}
				updated, err := tx.UpdateTask(task.ID, func(t *domain.FollowUpTask) error {
					t.Status = domain.TaskPastDue
					return nil
				})
				if err != nil {
					s.logger.Warn("past-due sweep skipped task", "task_id", task.ID, "church_id", task.ChurchID, "error", err)
					continue
				}
				changed = append(changed, updated)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	for _, task := range changed {
		s.emit(ctx, notify.Event{
			Kind:     notify.TaskPastDue,
			ChurchID: task.ChurchID,
			EntityID: task.ID,
			Message:  task.Title + " is past due",
			Data:     map[string]string{"assignee_id": task.AssigneeID, "contact_id": task.ContactID},
		})
	}
	return changed, nil
}

// FindTask returns a task by id.
func (s *Service) FindTask(ctx context.Context, id string) (domain.FollowUpTask, bool) {
	var (
		task domain.FollowUpTask
		ok   bool
	)
	_ = s.view(ctx, func(v domain.TransactionView) error {
		task, ok = v.FindTask(id)
		return nil
	})
	return task, ok
}

// TaskFilter narrows ListTasks. Zero fields match everything.
type TaskFilter struct {
	Status     domain.TaskStatus
	AssigneeID string
	ContactID  string
}

// ListTasks returns a church's tasks that match filter, earliest due first.
func (s *Service) ListTasks(ctx context.Context, churchID string, filter TaskFilter) []domain.FollowUpTask {
	var out []domain.FollowUpTask
	_ = s.view(ctx, func(v domain.TransactionView) error {
		if strings.TrimSpace(churchID) == "" {
			return nil
		}
		for _, t := range v.ListTasks(churchID) {
			if filter.Status != "" && t.Status != filter.Status {
				continue
			}
			if filter.AssigneeID != "" && t.AssigneeID != filter.AssigneeID {
				continue
			}
			if filter.ContactID != "" && t.ContactID != filter.ContactID {
				continue
			}
			out = append(out, t)
		}
		return nil
	})
	sortTasksByDue(out)
	return out
}

func sortTasksByDue(tasks []domain.FollowUpTask) {
	slices.SortStableFunc(tasks, func(a, b domain.FollowUpTask) int {
		return a.DueDate.Compare(b.DueDate)
	})
}
