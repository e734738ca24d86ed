package domain

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TaskStatus
		want     bool
	}{
		{TaskPending, TaskCompleted, true},
		{TaskPending, TaskRescheduled, true},
		{TaskPending, TaskPastDue, true},
		{TaskInProgress, TaskCompleted, true},
		{TaskInProgress, TaskRescheduled, true},
		{TaskPastDue, TaskCompleted, true},
		{TaskRescheduled, TaskCompleted, true},
		{TaskRescheduled, TaskPastDue, true},
		{TaskPending, TaskInProgress, true},
		{TaskRescheduled, TaskRescheduled, true},
		{TaskPastDue, TaskInProgress, false},
		{TaskPastDue, TaskPending, false},
		{TaskPastDue, TaskRescheduled, false},
		{TaskRescheduled, TaskPending, false},
		{TaskInProgress, TaskPending, false},
		{TaskCompleted, TaskPending, false},
		{TaskCompleted, TaskCompleted, false},
		{TaskCompleted, TaskPastDue, false},
		{TaskPending, TaskStatus("archived"), false},
	}
	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tc.from, tc.to, got, tc.want)
		}
	}
}

func TestNormalizeStatus(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	if got := NormalizeStatus(TaskPending, yesterday, now); got != TaskPastDue {
		t.Fatalf("expected overdue pending to normalize to past-due, got %s", got)
	}
	if got := NormalizeStatus(TaskPending, tomorrow, now); got != TaskPending {
		t.Fatalf("expected future pending to stay pending, got %s", got)
	}
	if got := NormalizeStatus(TaskInProgress, yesterday, now); got != TaskInProgress {
		t.Fatalf("expected in-progress to be left alone, got %s", got)
	}
	if got := NormalizeStatus(TaskPending, time.Time{}, now); got != TaskPending {
		t.Fatalf("expected task without due date to stay pending, got %s", got)
	}
}

func TestOverdue(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	cases := []struct {
		status TaskStatus
		due    time.Time
		want   bool
	}{
		{TaskPending, past, true},
		{TaskInProgress, past, true},
		{TaskRescheduled, past, true},
		{TaskPastDue, past, false},
		{TaskCompleted, past, false},
		{TaskPending, now.Add(time.Hour), false},
		{TaskPending, time.Time{}, false},
	}
	for _, tc := range cases {
		task := FollowUpTask{Status: tc.status, DueDate: tc.due}
		if got := task.Overdue(now); got != tc.want {
			t.Errorf("Overdue(%s, %s) = %v, want %v", tc.status, tc.due, got, tc.want)
		}
	}
}
