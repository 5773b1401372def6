package inmemory

import (
	"context"
	"slices"
	"time"

	"todoTracker/internal/models/task"
	repo "todoTracker/internal/repository"
)

type TaskStorage struct {
	*Storage
}

func (s *TaskStorage) Create(ctx context.Context, taskToCreate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[taskToCreate.UserID]; !ok {
		return repo.ErrNotFound
	}

	now := time.Now()
	s.nextTaskID++
	taskToCreate.ID = s.nextTaskID
	taskToCreate.CreatedAt = now
	taskToCreate.UpdatedAt = now

	s.tasks[taskToCreate.ID] = cloneTask(taskToCreate)
	s.taskIDs = append(s.taskIDs, taskToCreate.ID)
	return nil
}

// owned returns the stored task only when it belongs to ownerID.
func (s *TaskStorage) owned(ownerID, id int64) (*task.Task, bool) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != ownerID {
		return nil, false
	}
	return t, true
}

func (s *TaskStorage) GetByID(ctx context.Context, ownerID, id int64) (*task.Task, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	taskToGet, ok := s.owned(ownerID, id)
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneTask(taskToGet), nil
}

func (s *TaskStorage) Update(ctx context.Context, taskToUpdate *task.Task) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.owned(taskToUpdate.UserID, taskToUpdate.ID)
	if !ok {
		return repo.ErrNotFound
	}

	taskToUpdate.CreatedAt = existing.CreatedAt
	taskToUpdate.UpdatedAt = time.Now()
	s.tasks[taskToUpdate.ID] = cloneTask(taskToUpdate)
	return nil
}

func (s *TaskStorage) Delete(ctx context.Context, ownerID, id int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.owned(ownerID, id); !ok {
		return repo.ErrNotFound
	}
	s.removeTask(id)
	return nil
}

// removeTask expects the write lock to be held.
func (s *TaskStorage) removeTask(id int64) {
	delete(s.tasks, id)
	for ind, val := range s.taskIDs {
		if val == id {
			s.taskIDs = append(s.taskIDs[:ind], s.taskIDs[ind+1:]...)
			break
		}
	}
}

func (s *TaskStorage) List(ctx context.Context, ownerID int64, filter task.ListFilter) ([]*task.Task, int, error) {
	s.mtx.RLock()
	matched := []*task.Task{}
	for _, id := range s.taskIDs {
		t := s.tasks[id]
		if t.UserID == ownerID && filter.Matches(t) {
			matched = append(matched, cloneTask(t))
		}
	}
	s.mtx.RUnlock()

	sort := filter.Sort
	if sort.Field == "" {
		sort = task.DefaultSort
	}
	slices.SortStableFunc(matched, func(a, b *task.Task) int {
		switch {
		case sort.Less(a, b):
			return -1
		case sort.Less(b, a):
			return 1
		}
		return 0
	})

	total := len(matched)
	offset := filter.Offset()
	if offset >= total {
		return []*task.Task{}, total, nil
	}
	end := min(offset+filter.Limit(), total)
	return matched[offset:end], total, nil
}

func (s *TaskStorage) Stats(ctx context.Context, ownerID int64, now time.Time) (task.Stats, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	var stats task.Stats
	for _, t := range s.tasks {
		if t.UserID == ownerID {
			stats.Add(t, now)
		}
	}
	return stats, nil
}

func (s *TaskStorage) bulk(ids []int64, apply func(*task.Task)) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	now := time.Now()
	updated := 0
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		t, ok := s.tasks[id]
		if !ok {
			continue
		}
		apply(t)
		t.UpdatedAt = now
		updated++
	}
	return updated
}

func (s *TaskStorage) BulkMarkCompleted(ctx context.Context, ids []int64, at time.Time) (int, error) {
	return s.bulk(ids, func(t *task.Task) { t.MarkCompleted(at) }), nil
}

func (s *TaskStorage) BulkMarkPending(ctx context.Context, ids []int64) (int, error) {
	return s.bulk(ids, func(t *task.Task) { t.MarkPending() }), nil
}

func (s *TaskStorage) BulkSetPriority(ctx context.Context, ids []int64, priority task.Priority) (int, error) {
	return s.bulk(ids, func(t *task.Task) { t.Priority = priority }), nil
}
