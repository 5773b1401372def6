package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"todoTracker/internal/models/task"
	repo "todoTracker/internal/repository"

	"gorm.io/gorm"
)

type TaskStorage struct {
	*Storage
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owners int64
		if err := tx.Model(&userRow{}).Where("id = ?", taskToCreate.UserID).Count(&owners).Error; err != nil {
			return fmt.Errorf("checking owner: %w", err)
		}
		if owners == 0 {
			return repo.ErrNotFound
		}

		row := toTaskRow(taskToCreate)
		if err := tx.Create(row).Error; err != nil {
			return fmt.Errorf("creating task: %w", err)
		}
		taskToCreate.ID = row.ID
		taskToCreate.CreatedAt = row.CreatedAt
		taskToCreate.UpdatedAt = row.UpdatedAt
		return nil
	})
}

func (s *TaskStorage) GetByID(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	var row taskRow
	err := s.db.WithContext(ctx).First(&row, "id = ? AND user_id = ?", id, ownerID).Error
	if err != nil {
		if isNotFound(err) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return row.toTask(), nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&taskRow{}).
		Where("id = ? AND user_id = ?", taskToUpdate.ID, taskToUpdate.UserID).
		Updates(map[string]any{
			"title":            taskToUpdate.Title,
			"description":      taskToUpdate.Description,
			"title_fold":       strings.ToLower(taskToUpdate.Title),
			"description_fold": strings.ToLower(taskToUpdate.Description),
			"priority":         string(taskToUpdate.Priority),
			"status":           string(taskToUpdate.Status),
			"due_date":         utcPtr(taskToUpdate.DueDate),
			"completed_at":     utcPtr(taskToUpdate.CompletedAt),
			"updated_at":       now,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	taskToUpdate.UpdatedAt = now
	return nil
}

func (s *TaskStorage) Delete(ctx context.Context, ownerID, id int64) error {
	result := s.db.WithContext(ctx).Delete(&taskRow{}, "id = ? AND user_id = ?", id, ownerID)
	if err := result.Error; err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (s *TaskStorage) filtered(ctx context.Context, ownerID int64, filter task.ListFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&taskRow{}).Where("user_id = ?", ownerID)

	switch filter.Status {
	case task.FilterActive:
		q = q.Where("status <> ?", string(task.StatusCompleted))
	case task.FilterCompleted:
		q = q.Where("status = ?", string(task.StatusCompleted))
	}
	if filter.Priority != "" {
		q = q.Where("priority = ?", string(filter.Priority))
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		pattern := "%" + strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(search) + "%"
		q = q.Where(`(title_fold LIKE ? ESCAPE '\' OR description_fold LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return q
}

func (s *TaskStorage) List(ctx context.Context, ownerID int64, filter task.ListFilter) ([]*task.Task, int, error) {
	var total int64
	if err := s.filtered(ctx, ownerID, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting tasks: %w", err)
	}

	sort := filter.Sort
	if sort.Field == "" {
		sort = task.DefaultSort
	}
	order := sort.Column() + " ASC NULLS LAST, id DESC"
	if sort.Desc {
		order = sort.Column() + " DESC NULLS FIRST, id DESC"
	}

	var rows []taskRow
	err := s.filtered(ctx, ownerID, filter).
		Order(order).
		Limit(filter.Limit()).
		Offset(filter.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing tasks: %w", err)
	}

	tasks := make([]*task.Task, 0, len(rows))
	for i := range rows {
		tasks = append(tasks, rows[i].toTask())
	}
	return tasks, int(total), nil
}

// Stats is computed in Go so the overdue rule matches task.IsOverdueOn exactly.
func (s *TaskStorage) Stats(ctx context.Context, ownerID int64, now time.Time) (task.Stats, error) {
	var rows []taskRow
	err := s.db.WithContext(ctx).
		Select("status", "priority", "due_date").
		Where("user_id = ?", ownerID).
		Find(&rows).Error
	if err != nil {
		return task.Stats{}, fmt.Errorf("task stats: %w", err)
	}

	var stats task.Stats
	for i := range rows {
		stats.Add(rows[i].toTask(), now)
	}
	return stats, nil
}

func (s *TaskStorage) bulk(ctx context.Context, ids []int64, values map[string]any) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	values["updated_at"] = time.Now().UTC()
	result := s.db.WithContext(ctx).Model(&taskRow{}).Where("id IN ?", ids).Updates(values)
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("bulk update: %w", err)
	}
	return int(result.RowsAffected), nil
}

func (s *TaskStorage) BulkMarkCompleted(ctx context.Context, ids []int64, at time.Time) (int, error) {
	return s.bulk(ctx, ids, map[string]any{
		"status":       string(task.StatusCompleted),
		"completed_at": at.UTC(),
	})
}

func (s *TaskStorage) BulkMarkPending(ctx context.Context, ids []int64) (int, error) {
	return s.bulk(ctx, ids, map[string]any{
		"status":       string(task.StatusPending),
		"completed_at": nil,
	})
}

func (s *TaskStorage) BulkSetPriority(ctx context.Context, ids []int64, priority task.Priority) (int, error) {
	return s.bulk(ctx, ids, map[string]any{
		"priority": string(priority),
	})
}
