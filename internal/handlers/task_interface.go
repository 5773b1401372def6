package handlers

import (
	"context"
	"net/http"

	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
	"todoTracker/internal/service"
)

type TaskService interface {
	HealthCheck(context.Context) error
	ListTasks(ctx context.Context, ownerID int64, filter task.ListFilter) (*service.TaskPage, error)
	Stats(ctx context.Context, ownerID int64) (task.Stats, error)
	GetTask(ctx context.Context, ownerID, id int64) (*task.Task, error)
	CreateTask(ctx context.Context, ownerID int64, opts ...task.TaskOption) (*task.Task, error)
	UpdateTask(ctx context.Context, ownerID, id int64, opts ...task.TaskOption) (*task.Task, error)
	DeleteTask(ctx context.Context, ownerID, id int64) error
	ToggleTask(ctx context.Context, ownerID, id int64) (*task.Task, error)
}

type AccountService interface {
	Register(context.Context, service.Registration) (*user.User, error)
	Authenticate(ctx context.Context, username, password string) (*user.User, error)
	CurrentUser(ctx context.Context, id int64) (*user.User, error)
	Profile(ctx context.Context, userID int64) (*user.Profile, error)
	UpdateProfile(ctx context.Context, userID int64, uc service.UserChanges, pc service.ProfileChanges) (*user.User, *user.Profile, error)
}

// Sessions issues and clears the login cookie.
type Sessions interface {
	Login(w http.ResponseWriter, userID int64) error
	Revoke(w http.ResponseWriter, r *http.Request)
}
