package task

import (
	"time"
)

// TaskOption applies one validated field to a task. Options built from empty
// input are nil and skipped by Apply.
type TaskOption func(*Task)

func WithTitle(title string) TaskOption {
	return func(task *Task) {
		task.Title = title
	}
}

func WithDescription(description string) TaskOption {
	return func(task *Task) {
		task.Description = description
	}
}

func WithPriority(priority Priority) TaskOption {
	if priority == "" {
		return nil
	}
	return func(task *Task) {
		task.Priority = priority
	}
}

// WithStatus goes through SetStatus so CompletedAt stays consistent.
func WithStatus(status Status) TaskOption {
	if status == "" {
		return nil
	}
	return func(task *Task) {
		task.SetStatus(status, time.Now())
	}
}

// WithDueDate sets or clears the due date; a nil date clears it.
func WithDueDate(dueDate *time.Time) TaskOption {
	return func(task *Task) {
		if dueDate == nil {
			task.DueDate = nil
			return
		}
		d := Date(*dueDate)
		task.DueDate = &d
	}
}
