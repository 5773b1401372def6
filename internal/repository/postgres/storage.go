package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoTracker/internal/config"
	"todoTracker/internal/logger"
	"todoTracker/internal/migrations"
	"todoTracker/internal/service"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type Storage struct {
	pool *pgxpool.Pool
	url  string
}

func New(ctx context.Context, cfg config.DatabaseConfig) (*Storage, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		logger.Error("Repository: Failed to parse database config", err)
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = cfg.MaxConnections
	}
	if cfg.MinConnections > 0 {
		poolConfig.MinConns = cfg.MinConnections
	}
	if cfg.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = cfg.IdleTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Error("Repository: Failed to create pool", err)
		return nil, fmt.Errorf("creating pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error("Repository: Ping failed", err)
		return nil, fmt.Errorf("ping: %w", err)
	}

	logger.Info("Repository: Connected to PostgreSQL")
	return &Storage{pool: pool, url: cfg.URL}, nil
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

func (s *Storage) Close() {
	s.pool.Close()
	logger.Info("Repository: PostgreSQL connections closed")
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		logger.Error("Repository: Ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	logger.Debug("Repository: Connection is healthy")
	return nil
}

var _ service.Store = (*Storage)(nil)

func (s *Storage) migrator() (*migrate.Migrate, error) {
	src, err := iofs.New(migrations.Postgres, migrations.PostgresDir)
	if err != nil {
		return nil, fmt.Errorf("opening migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL(s.url))
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}
	return m, nil
}

// migrateURL points golang-migrate at its pgx v5 driver.
func migrateURL(url string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if strings.HasPrefix(url, scheme) {
			return "pgx5://" + strings.TrimPrefix(url, scheme)
		}
	}
	return url
}

func (s *Storage) Migrate(ctx context.Context) error {
	logger.Info("Repository: Applying migrations")

	m, err := s.migrator()
	if err != nil {
		logger.Error("Repository: Migrations unavailable", err)
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Failed to apply migrations", err)
		return fmt.Errorf("applying migrations: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("Repository: Migrations applied", zap.Uint("version", version))
	return nil
}

func (s *Storage) Down(ctx context.Context) error {
	logger.Info("Repository: Rolling back migrations")

	m, err := s.migrator()
	if err != nil {
		logger.Error("Repository: Migrations unavailable", err)
		return err
	}
	defer m.Close()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.Error("Repository: Failed to roll back migrations", err)
		return fmt.Errorf("rolling back migrations: %w", err)
	}

	logger.Info("Repository: Migrations rolled back")
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// observe warns when a query ran longer than limit.
func observe(op string, start time.Time, limit time.Duration) {
	if elapsed := time.Since(start); elapsed > limit {
		logger.Warn("Repository: Slow query",
			zap.String("op", op),
			zap.Duration("ms", elapsed))
	}
}
