package service

import (
	"context"
	"time"

	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
)

// TaskRepository is owner-scoped: every lookup, update and delete by id also
// filters on the owner, and a task belonging to someone else is reported as
// repository.ErrNotFound.
type TaskRepository interface {
	HealthCheck(context.Context) error
	Create(context.Context, *task.Task) error
	GetByID(ctx context.Context, ownerID, id int64) (*task.Task, error)
	// Update persists every mutable field of t, matching on t.ID and t.UserID.
	Update(context.Context, *task.Task) error
	Delete(ctx context.Context, ownerID, id int64) error
	// List returns one page of matching tasks and the number of matches overall.
	List(ctx context.Context, ownerID int64, filter task.ListFilter) ([]*task.Task, int, error)
	Stats(ctx context.Context, ownerID int64, now time.Time) (task.Stats, error)

	// Bulk updates ignore ownership and return the number of rows changed.
	BulkMarkCompleted(ctx context.Context, ids []int64, at time.Time) (int, error)
	BulkMarkPending(ctx context.Context, ids []int64) (int, error)
	BulkSetPriority(ctx context.Context, ids []int64, priority task.Priority) (int, error)
}

type UserRepository interface {
	// CreateWithProfile inserts u and p in a single transaction and fills in
	// their ids. Neither row is kept if either insert fails.
	CreateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error
	GetByID(ctx context.Context, id int64) (*user.User, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	// UsernameTaken ignores the user with id excludeID (0 excludes nobody).
	UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error)
	// UpdateWithProfile saves u and p in a single transaction.
	UpdateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error
	SetLastLogin(ctx context.Context, id int64, at time.Time) error
	// Delete removes the user together with their tasks and profile.
	Delete(ctx context.Context, id int64) error
}

type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID int64) (*user.Profile, error)
	// GetOrCreate returns the user's profile, inserting an empty one first
	// when none exists yet.
	GetOrCreate(ctx context.Context, userID int64) (*user.Profile, error)
}

// Store bundles everything the services need from a single backend.
type Store interface {
	Tasks() TaskRepository
	Users() UserRepository
	Profiles() ProfileRepository
	Close()
}
