package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/models/user"
	repo "todoTracker/internal/repository"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type UserStorage struct {
	*Storage
}

const userColumns = `id, username, email, password_hash, first_name, last_name,
	is_staff, is_superuser, is_active, date_joined, last_login`

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&u.IsStaff,
		&u.IsSuperuser,
		&u.IsActive,
		&u.DateJoined,
		&u.LastLogin,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserStorage) CreateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	start := time.Now()
	defer observe("user.create", start, 100*time.Millisecond)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}

	err = tx.QueryRow(ctx, `INSERT INTO users
				(username, email, password_hash, first_name, last_name, is_staff, is_superuser, is_active, date_joined)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
				RETURNING id`,
		u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.IsStaff, u.IsSuperuser, u.IsActive, u.DateJoined,
	).Scan(&u.ID)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Failed to create user", err)
		return fmt.Errorf("creating user: %w", err)
	}

	p.UserID = u.ID
	err = tx.QueryRow(ctx, `INSERT INTO profiles
				(user_id, bio, avatar, phone_number, birth_date)
				VALUES ($1, $2, $3, $4, $5)
				RETURNING id, created_at, updated_at`,
		p.UserID, p.Bio, p.Avatar, p.PhoneNumber, p.BirthDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		logger.Error("Repository: Failed to create profile", err, zap.Int64("user_id", u.ID))
		return fmt.Errorf("creating profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *UserStorage) getOne(ctx context.Context, where string, arg any) (*user.User, error) {
	start := time.Now()
	defer observe("user.get", start, 100*time.Millisecond)

	u, err := scanUser(s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Failed to get user", err)
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func (s *UserStorage) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *UserStorage) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getOne(ctx, "username = $1", username)
}

func (s *UserStorage) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	var taken bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(username) = LOWER($1) AND id <> $2)`,
		username, excludeID,
	).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return taken, nil
}

// UpdateWithProfile writes the editable user columns and upserts the profile.
func (s *UserStorage) UpdateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	start := time.Now()
	defer observe("user.update", start, 100*time.Millisecond)

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `UPDATE users
			SET username = $1,
				email = $2,
				first_name = $3,
				last_name = $4
			WHERE id = $5`,
		u.Username, u.Email, u.FirstName, u.LastName, u.ID)
	if err != nil {
		if pgCode(err) == uniqueViolation {
			return repo.ErrDuplicate
		}
		logger.Error("Repository: Failed to update user", err)
		return fmt.Errorf("updating user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}

	p.UserID = u.ID
	err = tx.QueryRow(ctx, `INSERT INTO profiles (user_id, bio, avatar, phone_number, birth_date)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (user_id) DO UPDATE
				SET bio = EXCLUDED.bio,
					avatar = EXCLUDED.avatar,
					phone_number = EXCLUDED.phone_number,
					birth_date = EXCLUDED.birth_date,
					updated_at = NOW()
				RETURNING id, created_at, updated_at`,
		p.UserID, p.Bio, p.Avatar, p.PhoneNumber, p.BirthDate,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		logger.Error("Repository: Failed to save profile", err, zap.Int64("user_id", u.ID))
		return fmt.Errorf("saving profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *UserStorage) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET last_login = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("setting last login: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Delete relies on ON DELETE CASCADE for the user's tasks and profile.
func (s *UserStorage) Delete(ctx context.Context, id int64) error {
	start := time.Now()
	defer observe("user.delete", start, 100*time.Millisecond)

	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		logger.Error("Repository: Failed to delete user", err)
		return fmt.Errorf("deleting user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repo.ErrNotFound
	}
	return nil
}

type ProfileStorage struct {
	*Storage
}

const profileColumns = `id, user_id, bio, avatar, phone_number, birth_date, created_at, updated_at`

func scanProfile(row pgx.Row) (*user.Profile, error) {
	p := &user.Profile{}
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.Bio,
		&p.Avatar,
		&p.PhoneNumber,
		&p.BirthDate,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *ProfileStorage) GetByUserID(ctx context.Context, userID int64) (*user.Profile, error) {
	p, err := scanProfile(s.pool.QueryRow(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE user_id = $1`, userID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return p, nil
}

func (s *ProfileStorage) GetOrCreate(ctx context.Context, userID int64) (*user.Profile, error) {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO profiles (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		if pgCode(err) == foreignKeyViolation {
			return nil, repo.ErrNotFound
		}
		logger.Error("Repository: Failed to create profile", err, zap.Int64("user_id", userID))
		return nil, fmt.Errorf("creating profile: %w", err)
	}
	return s.GetByUserID(ctx, userID)
}
