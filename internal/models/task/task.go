package task

import (
	"time"
)

type Task struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Title       string     `json:"title" db:"title"`
	Description string     `json:"description" db:"description"`
	Priority    Priority   `json:"priority" db:"priority"`
	Status      Status     `json:"status" db:"status"`
	DueDate     *time.Time `json:"due_date,omitempty" db:"due_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

type Status string
type Priority string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const MaxTitleLength = 200

// Statuses and Priorities are in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusCompleted}
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pending"
	case StatusInProgress:
		return "In Progress"
	case StatusCompleted:
		return "Completed"
	}
	return string(s)
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

func (p Priority) Label() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	}
	return string(p)
}

// New builds a pending, medium-priority task owned by userID and applies opts.
func New(userID int64, opts ...TaskOption) *Task {
	t := &Task{
		UserID:   userID,
		Priority: PriorityMedium,
		Status:   StatusPending,
	}
	t.Apply(opts...)
	return t
}

func (t *Task) Apply(opts ...TaskOption) {
	for _, opt := range opts {
		if opt != nil {
			opt(t)
		}
	}
}

// MarkCompleted re-stamps CompletedAt on every call.
func (t *Task) MarkCompleted(now time.Time) {
	t.Status = StatusCompleted
	completedAt := now
	t.CompletedAt = &completedAt
}

func (t *Task) MarkPending() {
	t.Status = StatusPending
	t.CompletedAt = nil
}

// Toggle flips a completed task back to pending and completes anything else.
func (t *Task) Toggle(now time.Time) {
	if t.IsCompleted() {
		t.MarkPending()
		return
	}
	t.MarkCompleted(now)
}

// SetStatus is the field-edit path. CompletedAt is kept consistent with the
// new status: entering completed stamps it, staying completed keeps the old
// stamp, any other status clears it.
func (t *Task) SetStatus(status Status, now time.Time) {
	switch {
	case status == StatusCompleted && t.Status != StatusCompleted:
		t.MarkCompleted(now)
	case status == StatusCompleted:
		if t.CompletedAt == nil {
			t.MarkCompleted(now)
		}
	default:
		t.Status = status
		t.CompletedAt = nil
	}
}

func (t *Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

func (t *Task) IsOverdue() bool {
	return t.IsOverdueOn(time.Now())
}

// IsOverdueOn compares calendar dates in UTC: a task due today is not overdue.
func (t *Task) IsOverdueOn(now time.Time) bool {
	if t.DueDate == nil || t.IsCompleted() {
		return false
	}
	return t.DueDate.Before(Date(now))
}

// Date truncates ts to midnight UTC of its UTC calendar day.
func Date(ts time.Time) time.Time {
	y, m, d := ts.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (t *Task) String() string {
	return t.Title
}
