package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"todoTracker/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, repoType string) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{
			Host:            "127.0.0.1",
			Port:            "0",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    5 * time.Second,
			ShutdownTimeout: 5 * time.Second,
		},
		Database: config.DatabaseConfig{
			SQLitePath:  ":memory:",
			AutoMigrate: true,
		},
		Logging:    config.LoggingConfig{Development: true},
		Repository: config.RepositoryConfig{Type: repoType},
		Auth:       config.AuthConfig{SecretKey: "app-test-secret", BcryptCost: 4},
		Media:      config.MediaConfig{Root: t.TempDir(), MaxAvatarBytes: 1 << 20},
	}
}

func TestInit_ServesHealth(t *testing.T) {
	for _, repoType := range []string{config.RepoInMemory, config.RepoSQLite} {
		t.Run(repoType, func(t *testing.T) {
			a := New(testConfig(t, repoType))
			t.Cleanup(a.Close)
			require.NoError(t, a.Init(context.Background()))

			rec := httptest.NewRecorder()
			a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
		})
	}
}

func TestInit_RequiresLoginForTasks(t *testing.T) {
	a := New(testConfig(t, config.RepoInMemory))
	t.Cleanup(a.Close)
	require.NoError(t, a.Init(context.Background()))

	rec := httptest.NewRecorder()
	a.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks/", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login/?next=%2Ftasks%2F", rec.Header().Get("Location"))
}

func TestOpenStore_UnknownType(t *testing.T) {
	cfg := testConfig(t, "mongo")

	store, err := OpenStore(context.Background(), cfg)

	assert.Error(t, err)
	assert.Nil(t, store)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := New(testConfig(t, config.RepoInMemory))
	t.Cleanup(a.Close)
	require.NoError(t, a.Init(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
