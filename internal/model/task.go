package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the completion state of a task.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ParseStatus accepts the closed status set, case-insensitively.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, nil
	case StatusCompleted:
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Toggled returns the opposite status.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusPending
	}
	return StatusCompleted
}

// Recurrence is an informational repetition label; nothing is generated from it.
type Recurrence string

const (
	RecurNone     Recurrence = "none"
	RecurDaily    Recurrence = "daily"
	RecurWeekly   Recurrence = "weekly"
	RecurBiweekly Recurrence = "biweekly"
	RecurMonthly  Recurrence = "monthly"
)

// Recurrences lists every accepted recurrence in display order.
var Recurrences = []Recurrence{RecurNone, RecurDaily, RecurWeekly, RecurBiweekly, RecurMonthly}

// ParseRecurrence accepts the closed recurrence set, case-insensitively.
func ParseRecurrence(raw string) (Recurrence, error) {
	value := Recurrence(strings.ToLower(strings.TrimSpace(raw)))
	for _, r := range Recurrences {
		if r == value {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown recurrence %q", raw)
}

// Task is a single assignable unit of household work.
type Task struct {
	ID          string     `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Assignee    string     `json:"assignee" yaml:"assignee"`
	DueDate     Date       `json:"dueDate" yaml:"dueDate"`
	Status      Status     `json:"status" yaml:"status"`
	Recurring   Recurrence `json:"recurring" yaml:"recurring"`
	CreatedAt   time.Time  `json:"createdAt" yaml:"createdAt"`
}

// IsCompleted reports whether the task is done.
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Overdue reports whether a pending task's due date is before the day of now.
func (t Task) Overdue(now time.Time) bool {
	if t.IsCompleted() || t.DueDate.IsZero() {
		return false
	}
	return t.DueDate.Before(DateOf(now))
}

// NewTask is the caller-supplied payload for a task; id and createdAt are
// assigned by the store.
type NewTask struct {
	Title       string
	Description string
	Assignee    string
	DueDate     Date
	Status      Status
	Recurring   Recurrence
}

// Patch carries partial overrides. Nil fields are left untouched.
type Patch struct {
	Title       *string     `json:"title,omitempty"`
	Description *string     `json:"description,omitempty"`
	Assignee    *string     `json:"assignee,omitempty"`
	DueDate     *Date       `json:"dueDate,omitempty"`
	Status      *Status     `json:"status,omitempty"`
	Recurring   *Recurrence `json:"recurring,omitempty"`
}

// Apply merges the patch onto t.
func (p Patch) Apply(t *Task) {
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Assignee != nil {
		t.Assignee = *p.Assignee
	}
	if p.DueDate != nil {
		t.DueDate = *p.DueDate
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Recurring != nil {
		t.Recurring = *p.Recurring
	}
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Description == nil && p.Assignee == nil &&
		p.DueDate == nil && p.Status == nil && p.Recurring == nil
}
