package domain

import "time"

// TaskStatus enumerates follow-up task workflow states.
type TaskStatus string

// Task statuses. Completed is terminal.
const (
	TaskPending     TaskStatus = "pending"
	TaskInProgress  TaskStatus = "in-progress"
	TaskCompleted   TaskStatus = "completed"
	TaskPastDue     TaskStatus = "past-due"
	TaskRescheduled TaskStatus = "rescheduled"
)

// Valid reports whether s is a recognised task status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskPastDue, TaskRescheduled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted
}

// taskTransitions lists the statuses each non-terminal status may move to.
// Rescheduled tasks can still be swept to past-due once their new date passes.
var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskPending:     {TaskInProgress, TaskCompleted, TaskRescheduled, TaskPastDue},
	TaskInProgress:  {TaskCompleted, TaskRescheduled, TaskPastDue},
	TaskPastDue:     {TaskCompleted},
	TaskRescheduled: {TaskCompleted, TaskPastDue},
}

// CanTransition reports whether a task in status from may move to status to.
// Setting a non-terminal task to its current status is allowed.
func CanTransition(from, to TaskStatus) bool {
	if !to.Valid() || from.Terminal() {
		return false
	}
	if from == to {
		return true
	}
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// NormalizeStatus resolves the status that is actually stored when a task is
// set to requested. A pending task whose due date has already passed is stored
// as past-due.
func NormalizeStatus(requested TaskStatus, due, now time.Time) TaskStatus {
	if requested == TaskPending && !due.IsZero() && due.Before(now) {
		return TaskPastDue
	}
	return requested
}

// Overdue reports whether the sweep should promote t to past-due at now.
func (t FollowUpTask) Overdue(now time.Time) bool {
	if t.Status == TaskCompleted || t.Status == TaskPastDue {
		return false
	}
	return !t.DueDate.IsZero() && t.DueDate.Before(now)
}
