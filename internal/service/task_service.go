package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/task"
	repo "todoTracker/internal/repository"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("todoTracker/internal/service")

type TaskService struct {
	repo TaskRepository
	now  func() time.Time
}

func NewTaskService(repo TaskRepository) *TaskService {
	return &TaskService{
		repo: repo,
		now:  time.Now,
	}
}

// TaskPage is one page of an owner's filtered task list plus the aggregate
// counts over all of the owner's tasks.
type TaskPage struct {
	Tasks    []*task.Task
	Filter   task.ListFilter
	Stats    task.Stats
	Total    int
	Page     int
	Pages    int
	PageSize int
}

func (p *TaskPage) HasPrevious() bool { return p.Page > 1 }
func (p *TaskPage) HasNext() bool     { return p.Page < p.Pages }

// LastPage asks ListTasks for the final page whatever its number.
const LastPage = -1

func startSpan(ctx context.Context, name string, ownerID int64) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("owner.id", ownerID)))
}

func (s *TaskService) HealthCheck(ctx context.Context) error {
	if err := s.repo.HealthCheck(ctx); err != nil {
		return fmt.Errorf("service health check: %w", err)
	}
	return nil
}

// ListTasks returns the requested page of the owner's tasks. A page past the
// end (or below 1) is a not-found outcome, except that the first page of an
// empty list always exists.
func (s *TaskService) ListTasks(ctx context.Context, ownerID int64, filter task.ListFilter) (*TaskPage, error) {
	ctx, span := startSpan(ctx, "TaskService.ListTasks", ownerID)
	defer span.End()

	if filter.PageSize < 1 {
		filter.PageSize = task.DefaultPageSize
	}
	requested := filter.Page
	if requested == 0 {
		requested = 1
	}
	if requested < 1 && requested != LastPage {
		return nil, pageNotFound(ownerID, requested)
	}
	filter.Page = requested
	if requested == LastPage {
		filter.Page = 1
	}

	tasks, total, err := s.repo.List(ctx, ownerID, filter)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}

	pages := (total + filter.PageSize - 1) / filter.PageSize
	if pages == 0 {
		pages = 1
	}

	if requested == LastPage && pages > 1 {
		filter.Page = pages
		tasks, _, err = s.repo.List(ctx, ownerID, filter)
		if err != nil {
			return nil, fmt.Errorf("listing tasks: %w", err)
		}
	} else if requested > pages {
		return nil, pageNotFound(ownerID, requested)
	}

	stats, err := s.repo.Stats(ctx, ownerID, s.now())
	if err != nil {
		return nil, fmt.Errorf("counting tasks: %w", err)
	}

	return &TaskPage{
		Tasks:    tasks,
		Filter:   filter,
		Stats:    stats,
		Total:    total,
		Page:     filter.Page,
		Pages:    pages,
		PageSize: filter.PageSize,
	}, nil
}

func pageNotFound(ownerID int64, page int) error {
	logger.Info("Service: Page out of range",
		zap.Int64("owner_id", ownerID),
		zap.Int("page", page))
	return NewBusinessError(CodeNotFound, fmt.Sprintf("page %d not found", page),
		ToDetail("resource", "page"), ToDetail("page", page))
}

func (s *TaskService) Stats(ctx context.Context, ownerID int64) (task.Stats, error) {
	ctx, span := startSpan(ctx, "TaskService.Stats", ownerID)
	defer span.End()

	stats, err := s.repo.Stats(ctx, ownerID, s.now())
	if err != nil {
		return task.Stats{}, fmt.Errorf("counting tasks: %w", err)
	}
	return stats, nil
}

func (s *TaskService) GetTask(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	ctx, span := startSpan(ctx, "TaskService.GetTask", ownerID)
	defer span.End()

	return s.getOwned(ctx, ownerID, id)
}

func (s *TaskService) getOwned(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	t, err := s.repo.GetByID(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Task not found",
				zap.Int64("owner_id", ownerID),
				zap.Int64("task_id", id))
			return nil, NewNotFound("task", id)
		}
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

// CreateTask always assigns ownerID as the owner, whatever opts say.
func (s *TaskService) CreateTask(ctx context.Context, ownerID int64, opts ...task.TaskOption) (*task.Task, error) {
	ctx, span := startSpan(ctx, "TaskService.CreateTask", ownerID)
	defer span.End()

	if ownerID <= 0 {
		return nil, NewValidationError("user", "an authenticated owner is required")
	}

	t := task.New(ownerID, opts...)
	t.UserID = ownerID
	if err := validateTask(t); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, t); err != nil {
		return nil, fmt.Errorf("creating task: %w", err)
	}

	logger.Info("Service: Task created",
		zap.Int64("owner_id", ownerID),
		zap.Int64("task_id", t.ID))
	return t, nil
}

func (s *TaskService) UpdateTask(ctx context.Context, ownerID, id int64, opts ...task.TaskOption) (*task.Task, error) {
	ctx, span := startSpan(ctx, "TaskService.UpdateTask", ownerID)
	defer span.End()

	t, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	t.Apply(opts...)
	t.UserID = ownerID
	if err := validateTask(t); err != nil {
		return nil, err
	}

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskService) DeleteTask(ctx context.Context, ownerID, id int64) error {
	ctx, span := startSpan(ctx, "TaskService.DeleteTask", ownerID)
	defer span.End()

	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			logger.Info("Service: Task to delete not found",
				zap.Int64("owner_id", ownerID),
				zap.Int64("task_id", id))
			return NewNotFound("task", id)
		}
		return fmt.Errorf("deleting task: %w", err)
	}

	logger.Info("Service: Task deleted",
		zap.Int64("owner_id", ownerID),
		zap.Int64("task_id", id))
	return nil
}

// ToggleTask completes a non-completed task and reopens a completed one.
func (s *TaskService) ToggleTask(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	return s.transition(ctx, "TaskService.ToggleTask", ownerID, id, func(t *task.Task) {
		t.Toggle(s.now())
	})
}

func (s *TaskService) MarkCompleted(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	return s.transition(ctx, "TaskService.MarkCompleted", ownerID, id, func(t *task.Task) {
		t.MarkCompleted(s.now())
	})
}

func (s *TaskService) MarkPending(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	return s.transition(ctx, "TaskService.MarkPending", ownerID, id, func(t *task.Task) {
		t.MarkPending()
	})
}

func (s *TaskService) transition(ctx context.Context, name string, ownerID, id int64, apply func(*task.Task)) (*task.Task, error) {
	ctx, span := startSpan(ctx, name, ownerID)
	defer span.End()

	t, err := s.getOwned(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	from := t.Status
	apply(t)

	if err := s.save(ctx, t); err != nil {
		return nil, err
	}

	logger.Info("Service: Task status changed",
		zap.Int64("task_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(t.Status)))
	return t, nil
}

func (s *TaskService) save(ctx context.Context, t *task.Task) error {
	if err := s.repo.Update(ctx, t); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("task", t.ID)
		}
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

// BulkMarkCompleted is the administrative "mark as completed" action.
func (s *TaskService) BulkMarkCompleted(ctx context.Context, ids []int64) (int, error) {
	ctx, span := tracer.Start(ctx, "TaskService.BulkMarkCompleted")
	defer span.End()

	updated, err := s.repo.BulkMarkCompleted(ctx, ids, s.now())
	if err != nil {
		return 0, fmt.Errorf("bulk mark completed: %w", err)
	}
	logger.Info("Service: Tasks marked as completed", zap.Int("updated", updated))
	return updated, nil
}

// BulkMarkPending is the administrative "mark as pending" action.
func (s *TaskService) BulkMarkPending(ctx context.Context, ids []int64) (int, error) {
	ctx, span := tracer.Start(ctx, "TaskService.BulkMarkPending")
	defer span.End()

	updated, err := s.repo.BulkMarkPending(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("bulk mark pending: %w", err)
	}
	logger.Info("Service: Tasks marked as pending", zap.Int("updated", updated))
	return updated, nil
}

// BulkSetHighPriority is the administrative "set high priority" action.
func (s *TaskService) BulkSetHighPriority(ctx context.Context, ids []int64) (int, error) {
	ctx, span := tracer.Start(ctx, "TaskService.BulkSetHighPriority")
	defer span.End()

	updated, err := s.repo.BulkSetPriority(ctx, ids, task.PriorityHigh)
	if err != nil {
		return 0, fmt.Errorf("bulk set priority: %w", err)
	}
	logger.Info("Service: Tasks set to high priority", zap.Int("updated", updated))
	return updated, nil
}

func validateTask(t *task.Task) error {
	switch {
	case t.Title == "":
		return NewValidationError("title", "this field is required")
	case len([]rune(t.Title)) > task.MaxTitleLength:
		return NewValidationError("title", fmt.Sprintf("ensure this value has at most %d characters", task.MaxTitleLength))
	case !t.Priority.Valid():
		return NewValidationError("priority", fmt.Sprintf("%q is not one of the available choices", t.Priority))
	case !t.Status.Valid():
		return NewValidationError("status", fmt.Sprintf("%q is not one of the available choices", t.Status))
	}
	return nil
}
