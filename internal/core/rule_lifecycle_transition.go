package core

import (
	"context"
	"fmt"

	"github.com/BKHilton/Ember/pkg/domain"
)

// TaskLifecycleRule blocks illegal follow-up task status transitions.
func TaskLifecycleRule() domain.Rule {
	return taskLifecycleRule{}
}

type taskLifecycleRule struct{}

const taskLifecycleRuleName = "task_lifecycle"

func (taskLifecycleRule) Name() string { return taskLifecycleRuleName }

func (taskLifecycleRule) Evaluate(_ context.Context, _ domain.TransactionView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	block := func(id, msg string) {
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     taskLifecycleRuleName,
			Severity: domain.SeverityBlock,
			Message:  msg,
			Entity:   domain.EntityTask,
			EntityID: id,
		})
	}
	for _, change := range changes {
		if change.Entity != domain.EntityTask {
			continue
		}
		after, ok := change.After.(domain.FollowUpTask)
		if !ok {
			continue
		}
		if !after.Status.Valid() {
			block(after.ID, fmt.Sprintf("task %s is set to invalid status %s", after.ID, after.Status))
			continue
		}
		if before, ok := change.Before.(domain.FollowUpTask); ok && before.Status != after.Status {
			if !domain.CanTransition(before.Status, after.Status) {
				block(after.ID, fmt.Sprintf("cannot move task %s from %s to %s", after.ID, before.Status, after.Status))
				continue
			}
		}
		switch after.Status {
		case domain.TaskCompleted:
			if after.CompletedAt == nil {
				block(after.ID, fmt.Sprintf("completed task %s has no completion time", after.ID))
			}
		case domain.TaskRescheduled:
			if after.RescheduledFor == nil {
				block(after.ID, fmt.Sprintf("rescheduled task %s has no new date", after.ID))
			}
		}
	}
	return res, nil
}
