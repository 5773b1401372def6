package inmemory

import (
	"context"
	"sync"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
	"todoTracker/internal/service"
)

// Storage keeps users, profiles and tasks in maps behind one RWMutex, which
// also makes multi-record writes (user + profile) atomic. Records are copied
// in and out so callers never share memory with the store.
type Storage struct {
	mtx *sync.RWMutex

	tasks   map[int64]*task.Task
	taskIDs []int64

	users    map[int64]*user.User
	profiles map[int64]*user.Profile // keyed by user id

	nextTaskID    int64
	nextUserID    int64
	nextProfileID int64
}

func NewStorage() *Storage {
	return &Storage{
		mtx:      &sync.RWMutex{},
		tasks:    make(map[int64]*task.Task),
		taskIDs:  []int64{},
		users:    make(map[int64]*user.User),
		profiles: make(map[int64]*user.Profile),
	}
}

func (s *Storage) Tasks() service.TaskRepository {
	return &TaskStorage{s}
}

func (s *Storage) Users() service.UserRepository {
	return &UserStorage{s}
}

func (s *Storage) Profiles() service.ProfileRepository {
	return &ProfileStorage{s}
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	logger.Debug("Repository: In-memory storage is up")
	return nil
}

func (s *Storage) Close() {}

var _ service.Store = (*Storage)(nil)

func cloneTask(t *task.Task) *task.Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return &c
}

func cloneUser(u *user.User) *user.User {
	c := *u
	if u.LastLogin != nil {
		ts := *u.LastLogin
		c.LastLogin = &ts
	}
	return &c
}

func cloneProfile(p *user.Profile) *user.Profile {
	c := *p
	if p.BirthDate != nil {
		d := *p.BirthDate
		c.BirthDate = &d
	}
	return &c
}
