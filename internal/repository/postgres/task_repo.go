package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/task"
	repo "todoTracker/internal/repository"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TaskStorage struct {
	*Storage
}

const taskColumns = `id, user_id, title, description, priority, status,
	due_date, created_at, updated_at, completed_at`

func scanTask(row pgx.Row) (*task.Task, error) {
	t := &task.Task{}
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.Title,
		&t.Description,
		&t.Priority,
		&t.Status,
		&t.DueDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	start := time.Now()
	defer observe("task.create", start, 50*time.Millisecond)

	query := `INSERT INTO tasks
				(user_id, title, description, priority, status, due_date, completed_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				RETURNING id, created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		taskToCreate.UserID,
		taskToCreate.Title,
		taskToCreate.Description,
		taskToCreate.Priority,
		taskToCreate.Status,
		taskToCreate.DueDate,
		taskToCreate.CompletedAt,
	).Scan(&taskToCreate.ID, &taskToCreate.CreatedAt, &taskToCreate.UpdatedAt)

	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return repo.ErrNotFound
		}
		logger.Error("Repository: Failed to create task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("creating task: %w", err)
	}
	return nil
}

func (s *TaskStorage) GetByID(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	start := time.Now()
	defer observe("task.get", start, 100*time.Millisecond)

	query := `SELECT ` + taskColumns + `
				FROM tasks
				WHERE id = $1 AND user_id = $2`

	t, err := scanTask(s.pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Failed to get task", err, zap.Duration("ms", time.Since(start)))
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return t, nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	start := time.Now()
	defer observe("task.update", start, 100*time.Millisecond)

	query := `UPDATE tasks
			SET title = $1,
				description = $2,
				priority = $3,
				status = $4,
				due_date = $5,
				completed_at = $6,
				updated_at = NOW()
			WHERE id = $7 AND user_id = $8
			RETURNING created_at, updated_at`

	err := s.pool.QueryRow(ctx, query,
		taskToUpdate.Title,
		taskToUpdate.Description,
		taskToUpdate.Priority,
		taskToUpdate.Status,
		taskToUpdate.DueDate,
		taskToUpdate.CompletedAt,
		taskToUpdate.ID,
		taskToUpdate.UserID,
	).Scan(&taskToUpdate.CreatedAt, &taskToUpdate.UpdatedAt)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return repo.ErrNotFound
		}
		logger.Error("Repository: Failed to update task", err)
		return fmt.Errorf("updating task: %w", err)
	}
	return nil
}

func (s *TaskStorage) Delete(ctx context.Context, ownerID, id int64) error {
	start := time.Now()
	defer observe("task.delete", start, 100*time.Millisecond)

	tag, err := s.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, ownerID)
	if err != nil {
		logger.Error("Repository: Failed to delete task", err, zap.Duration("ms", time.Since(start)))
		return fmt.Errorf("deleting task: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// likePattern escapes LIKE wildcards so the search is a plain substring match.
func likePattern(search string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(search) + "%"
}

// listWhere builds the owner-scoped WHERE clause for filter.
func listWhere(ownerID int64, filter task.ListFilter) (string, []any) {
	conds := []string{"user_id = $1"}
	args := []any{ownerID}

	switch filter.Status {
	case task.FilterActive:
		conds = append(conds, "status <> 'completed'")
	case task.FilterCompleted:
		conds = append(conds, "status = 'completed'")
	}
	if filter.Priority != "" {
		args = append(args, filter.Priority)
		conds = append(conds, fmt.Sprintf("priority = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, likePattern(filter.Search))
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	return strings.Join(conds, " AND "), args
}

// orderBy only ever emits whitelisted column names.
func orderBy(sort task.Sort) string {
	if sort.Field == "" {
		sort = task.DefaultSort
	}
	if sort.Desc {
		return sort.Column() + " DESC NULLS FIRST, id DESC"
	}
	return sort.Column() + " ASC NULLS LAST, id DESC"
}

func (s *TaskStorage) List(ctx context.Context, ownerID int64, filter task.ListFilter) ([]*task.Task, int, error) {
	start := time.Now()
	defer observe("task.list", start, 50*time.Millisecond+10*time.Millisecond*time.Duration(filter.Limit()))

	where, args := listWhere(ownerID, filter)

	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks WHERE `+where, args...).Scan(&total); err != nil {
		logger.Error("Repository: Failed to count tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}

	args = append(args, filter.Limit(), filter.Offset())
	query := fmt.Sprintf(`SELECT %s
				FROM tasks
				WHERE %s
				ORDER BY %s
				LIMIT $%d OFFSET $%d`,
		taskColumns, where, orderBy(filter.Sort), len(args)-1, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Failed to list tasks", err, zap.Duration("ms", time.Since(start)))
		return nil, 0, fmt.Errorf("listing tasks: %w", err)
	}

	tasks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*task.Task, error) {
		return scanTask(row)
	})
	if err != nil {
		logger.Error("Repository: Failed to scan tasks", err)
		return nil, 0, fmt.Errorf("scanning tasks: %w", err)
	}
	return tasks, total, nil
}

func (s *TaskStorage) Stats(ctx context.Context, ownerID int64, now time.Time) (task.Stats, error) {
	start := time.Now()
	defer observe("task.stats", start, 100*time.Millisecond)

	query := `SELECT
				COUNT(*),
				COUNT(*) FILTER (WHERE status <> 'completed'),
				COUNT(*) FILTER (WHERE status = 'completed'),
				COUNT(*) FILTER (WHERE status = 'pending'),
				COUNT(*) FILTER (WHERE status = 'in_progress'),
				COUNT(*) FILTER (WHERE priority = 'high'),
				COUNT(*) FILTER (WHERE status <> 'completed' AND due_date < $2)
			FROM tasks
			WHERE user_id = $1`

	var stats task.Stats
	err := s.pool.QueryRow(ctx, query, ownerID, task.Date(now)).Scan(
		&stats.Total,
		&stats.Active,
		&stats.Completed,
		&stats.Pending,
		&stats.InProgress,
		&stats.HighPriority,
		&stats.Overdue,
	)
	if err != nil {
		logger.Error("Repository: Failed to count task stats", err)
		return task.Stats{}, fmt.Errorf("task stats: %w", err)
	}
	return stats, nil
}

func (s *TaskStorage) bulk(ctx context.Context, op, query string, args ...any) (int, error) {
	start := time.Now()
	defer observe(op, start, 100*time.Millisecond)

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		logger.Error("Repository: Bulk update failed", err, zap.String("op", op))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *TaskStorage) BulkMarkCompleted(ctx context.Context, ids []int64, at time.Time) (int, error) {
	return s.bulk(ctx, "task.bulk_complete",
		`UPDATE tasks SET status = 'completed', completed_at = $2, updated_at = NOW() WHERE id = ANY($1)`,
		ids, at)
}

func (s *TaskStorage) BulkMarkPending(ctx context.Context, ids []int64) (int, error) {
	return s.bulk(ctx, "task.bulk_pending",
		`UPDATE tasks SET status = 'pending', completed_at = NULL, updated_at = NOW() WHERE id = ANY($1)`,
		ids)
}

func (s *TaskStorage) BulkSetPriority(ctx context.Context, ids []int64, priority task.Priority) (int, error) {
	return s.bulk(ctx, "task.bulk_priority",
		`UPDATE tasks SET priority = $2, updated_at = NOW() WHERE id = ANY($1)`,
		ids, priority)
}
