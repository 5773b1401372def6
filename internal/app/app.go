package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"todoTracker/internal/auth"
	"todoTracker/internal/config"
	"todoTracker/internal/handlers"
	"todoTracker/internal/logger"
	"todoTracker/internal/media"
	"todoTracker/internal/middleware"
	"todoTracker/internal/repository/inmemory"
	"todoTracker/internal/repository/postgres"
	"todoTracker/internal/repository/sqlite"
	"todoTracker/internal/service"
	"todoTracker/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config    *config.Config
	server    *http.Server
	router    *chi.Mux
	store     service.Store
	tasks     *service.TaskService
	accounts  *service.AccountService
	worker    *worker.HealthWorker
	shutdowns []func() // run in reverse order by Close
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init builds every dependency. On error whatever was already opened is
// released by Close.
func (a *App) Init(ctx context.Context) error {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: Flushing logs")
		logger.Sync()
	})

	store, err := OpenStore(ctx, a.config)
	if err != nil {
		return err
	}
	a.store = store
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("App: Closing store")
		store.Close()
	})

	avatars, err := media.NewAvatarStore(a.config.Media.Root, a.config.Media.MaxAvatarBytes)
	if err != nil {
		return err
	}

	a.tasks = service.NewTaskService(store.Tasks())
	a.accounts = service.NewAccountService(store.Users(), store.Profiles(),
		auth.NewPasswordHasher(a.config.Auth.BcryptCost), avatars)

	sessions := auth.NewSessionManager(auth.SessionConfig{
		SecretKey: a.config.Auth.SecretKey,
		TTL:       a.config.Auth.SessionTTL,
		Secure:    a.config.Auth.CookieSecure,
	})

	h, err := handlers.New(a.tasks, a.accounts, sessions, handlers.Options{
		Media:          avatars.Fs(),
		MaxAvatarBytes: avatars.MaxBytes(),
		CookieSecure:   a.config.Auth.CookieSecure,
	})
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}

	a.router = a.newRouter(h, sessions)
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      otelhttp.NewHandler(a.router, "todoTracker"),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}

	if a.config.Server.HealthInterval > 0 {
		a.worker = worker.NewHealthWorker(a.tasks, a.config.Server.HealthInterval)
	}

	logger.Info("App: Initialized",
		zap.String("repository", a.config.Repository.Type),
		zap.String("addr", a.server.Addr))
	return nil
}

func (a *App) newRouter(h *handlers.Handler, sessions *auth.SessionManager) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.RateLimit(a.config.RateLimit.RequestsPerMinute))
	if len(a.config.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.config.CORS.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID", middleware.CSRFHeaderName},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.Authenticate(sessions, a.accounts))

	h.Routes(r)
	return r
}

// Router exposes the assembled handler, mostly for tests.
func (a *App) Router() http.Handler {
	return a.router
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts down
// gracefully within the configured timeout.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("App: Server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("App: Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) Close() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}

// OpenStore connects the configured backend and, when auto_migrate is set,
// brings its schema up to date.
func OpenStore(ctx context.Context, cfg *config.Config) (service.Store, error) {
	start := time.Now()

	switch cfg.Repository.Type {
	case config.RepoPostgres:
		store, err := postgres.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(ctx); err != nil {
				store.Close()
				return nil, fmt.Errorf("migrating postgres: %w", err)
			}
		}
		logger.Info("App: Postgres store ready", zap.Duration("ms", time.Since(start)))
		return store, nil

	case config.RepoSQLite:
		store, err := sqlite.New(cfg.Database.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := store.Migrate(); err != nil {
				store.Close()
				return nil, fmt.Errorf("migrating sqlite: %w", err)
			}
		}
		logger.Info("App: SQLite store ready",
			zap.String("path", cfg.Database.SQLitePath),
			zap.Duration("ms", time.Since(start)))
		return store, nil

	case config.RepoInMemory:
		logger.Warn("App: Using in-memory store, data is lost on restart")
		return inmemory.NewStorage(), nil
	}

	return nil, fmt.Errorf("unknown repository type %q", cfg.Repository.Type)
}
