package forms

import (
	"net/url"

	"todoTracker/internal/models/task"
)

type TaskForm struct {
	Title       string `form:"title" trim:"true" validate:"required,max=200"`
	Description string `form:"description" trim:"true"`
	Priority    string `form:"priority" validate:"required,oneof=low medium high"`
	Status      string `form:"status" validate:"required,oneof=pending in_progress completed"`
	DueDate     string `form:"due_date" trim:"true" validate:"omitempty,datetime=2006-01-02"`

	Errors Errors `form:"-" validate:"-"`
}

// NewTaskForm is the blank create form.
func NewTaskForm() *TaskForm {
	return &TaskForm{
		Priority: string(task.PriorityMedium),
		Status:   string(task.StatusPending),
		Errors:   Errors{},
	}
}

// TaskFormFrom pre-fills the edit form from t.
func TaskFormFrom(t *task.Task) *TaskForm {
	return &TaskForm{
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		DueDate:     formatDate(t.DueDate),
		Errors:      Errors{},
	}
}

// ParseTaskForm binds and validates a submitted task form.
func ParseTaskForm(values url.Values) *TaskForm {
	f := &TaskForm{Errors: Errors{}}
	bind(f, values, f.Errors)
	return f
}

func (f *TaskForm) Valid() bool {
	return !f.Errors.Any()
}

// Options turns a valid form into task options. Priority and status are
// required choices, so a valid form always sets both.
func (f *TaskForm) Options() []task.TaskOption {
	return []task.TaskOption{
		task.WithTitle(f.Title),
		task.WithDescription(f.Description),
		task.WithPriority(task.Priority(f.Priority)),
		task.WithStatus(task.Status(f.Status)),
		task.WithDueDate(parseDate(f.DueDate)),
	}
}
