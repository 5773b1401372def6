package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"todoTracker/internal/app"
	"todoTracker/internal/config"
	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
	"todoTracker/internal/repository"
	"todoTracker/internal/repository/inmemory"
	"todoTracker/internal/repository/sqlite"
	"todoTracker/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, repoType string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	body := fmt.Sprintf(`repository:
  type: %s
database:
  sqlite_path: %s
media:
  root: %s
`, repoType, filepath.Join(dir, "todo.db"), filepath.Join(dir, "media"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func run(t *testing.T, open storeOpener, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(open)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

type seeded struct {
	store *inmemory.Storage
	owner *user.User
	tasks []*task.Task
}

func seed(t *testing.T) *seeded {
	t.Helper()
	ctx := context.Background()
	store := inmemory.NewStorage()

	owner := &user.User{Username: "owner", IsActive: true}
	require.NoError(t, store.Users().CreateWithProfile(ctx, owner, &user.Profile{}))

	s := &seeded{store: store, owner: owner}
	for i := 1; i <= 3; i++ {
		tk := task.New(owner.ID, task.WithTitle(fmt.Sprintf("Task %d", i)))
		require.NoError(t, store.Tasks().Create(ctx, tk))
		s.tasks = append(s.tasks, tk)
	}
	return s
}

func (s *seeded) opener() storeOpener {
	return func(ctx context.Context, cfg *config.Config) (service.Store, error) {
		return s.store, nil
	}
}

func TestBulkComplete(t *testing.T) {
	s := seed(t)
	cfg := writeConfig(t, config.RepoInMemory)

	out, err := run(t, s.opener(), "--config", cfg, "complete",
		fmt.Sprint(s.tasks[0].ID), fmt.Sprint(s.tasks[1].ID), "999")

	require.NoError(t, err)
	assert.Equal(t, "2 task(s) marked as completed.\n", out)

	got, err := s.store.Tasks().GetByID(context.Background(), s.owner.ID, s.tasks[0].ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusCompleted, got.Status)
	assert.NotNil(t, got.CompletedAt)
}

func TestBulkPendingAndHighPriority(t *testing.T) {
	s := seed(t)
	cfg := writeConfig(t, config.RepoInMemory)
	id := fmt.Sprint(s.tasks[2].ID)

	out, err := run(t, s.opener(), "--config", cfg, "high-priority", id)
	require.NoError(t, err)
	assert.Equal(t, "1 task(s) set to high priority.\n", out)

	out, err = run(t, s.opener(), "--config", cfg, "pending", id)
	require.NoError(t, err)
	assert.Equal(t, "1 task(s) marked as pending.\n", out)

	got, err := s.store.Tasks().GetByID(context.Background(), s.owner.ID, s.tasks[2].ID)
	require.NoError(t, err)
	assert.Equal(t, task.PriorityHigh, got.Priority)
	assert.Equal(t, task.StatusPending, got.Status)
}

func TestBulkRejectsBadIDs(t *testing.T) {
	s := seed(t)
	cfg := writeConfig(t, config.RepoInMemory)

	_, err := run(t, s.opener(), "--config", cfg, "complete", "1", "abc")
	assert.ErrorContains(t, err, `invalid id "abc"`)

	_, err = run(t, s.opener(), "--config", cfg, "complete")
	assert.Error(t, err)
}

func TestDeleteUser(t *testing.T) {
	s := seed(t)
	cfg := writeConfig(t, config.RepoInMemory)

	out, err := run(t, s.opener(), "--config", cfg, "delete-user", fmt.Sprint(s.owner.ID))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("User %d deleted.\n", s.owner.ID), out)

	_, total, err := s.store.Tasks().List(context.Background(), s.owner.ID, task.ListFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = run(t, s.opener(), "--config", cfg, "delete-user", fmt.Sprint(s.owner.ID))
	assert.ErrorContains(t, err, "does not exist")
}

func TestMigrate_InMemory(t *testing.T) {
	s := seed(t)
	cfg := writeConfig(t, config.RepoInMemory)

	out, err := run(t, s.opener(), "--config", cfg, "migrate", "up")
	require.NoError(t, err)
	assert.Contains(t, out, "no schema")

	_, err = run(t, s.opener(), "--config", cfg, "migrate", "down")
	assert.Error(t, err)
}

func TestMigrate_SQLite(t *testing.T) {
	cfg := writeConfig(t, config.RepoSQLite)

	out, err := run(t, app.OpenStore, "--config", cfg, "migrate", "up")

	require.NoError(t, err)
	assert.Equal(t, "Migrations applied.\n", out)

	store, err := sqlite.New(filepath.Join(filepath.Dir(cfg), "todo.db"))
	require.NoError(t, err)
	defer store.Close()
	_, err = store.Users().GetByID(context.Background(), 1)
	assert.ErrorIs(t, err, repository.ErrNotFound, "schema should be in place")
}

func TestUnknownRepositoryType(t *testing.T) {
	cfg := writeConfig(t, "cassandra")

	_, err := run(t, app.OpenStore, "--config", cfg, "migrate", "up")

	assert.ErrorContains(t, err, "unknown repository type")
}
