// Package sqlite is a single-file backend built on gorm, for running the
// tracker without a Postgres server.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/service"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Storage struct {
	db *gorm.DB
}

// New opens (creating if needed) the database at path. The schema is left
// alone; call Migrate to create or update it. ":memory:" gives a private
// in-memory database.
func New(path string) (*Storage, error) {
	dsn := path
	if path == ":memory:" {
		// Pooled connections share one named in-memory database.
		dsn = "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	if strings.Contains(dsn, "?") {
		dsn += "&_foreign_keys=on"
	} else {
		dsn += "?_foreign_keys=on"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		logger.Error("Repository: Failed to open SQLite database", err)
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	if path == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("sqlite handle: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	logger.Info("Repository: SQLite database opened")
	return &Storage{db: db}, nil
}

func (s *Storage) Migrate() error {
	if err := s.db.AutoMigrate(&userRow{}, &profileRow{}, &taskRow{}); err != nil {
		logger.Error("Repository: SQLite migration failed", err)
		return fmt.Errorf("migrating sqlite: %w", err)
	}
	err := s.db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_username_lower ON users (LOWER(username))`).Error
	if err != nil {
		return fmt.Errorf("creating username index: %w", err)
	}
	return s.backfillFolds()
}

// backfillFolds fills the search columns for rows written before they existed.
func (s *Storage) backfillFolds() error {
	var rows []taskRow
	err := s.db.Select("id", "title", "description").
		Where("title_fold = '' AND title <> ''").
		Find(&rows).Error
	if err != nil {
		return fmt.Errorf("finding unfolded tasks: %w", err)
	}
	for _, row := range rows {
		err := s.db.Model(&taskRow{}).Where("id = ?", row.ID).UpdateColumns(map[string]any{
			"title_fold":       strings.ToLower(row.Title),
			"description_fold": strings.ToLower(row.Description),
		}).Error
		if err != nil {
			return fmt.Errorf("folding task %d: %w", row.ID, err)
		}
	}
	return nil
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
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("sqlite handle: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		logger.Error("Repository: SQLite ping failed", err)
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

func (s *Storage) Close() {
	sqlDB, err := s.db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		logger.Error("Repository: Failed to close SQLite database", err)
		return
	}
	logger.Info("Repository: SQLite database closed")
}

var _ service.Store = (*Storage)(nil)

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
