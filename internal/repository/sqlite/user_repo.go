package sqlite

import (
	"context"
	"fmt"
	"time"

	"todoTracker/internal/models/user"
	repo "todoTracker/internal/repository"

	"gorm.io/gorm"
)

type UserStorage struct {
	*Storage
}

func (s *UserStorage) CreateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUsername(tx, u.Username, 0); err != nil {
			return err
		}
		if u.DateJoined.IsZero() {
			u.DateJoined = time.Now()
		}
		ur := toUserRow(u)
		if err := tx.Create(ur).Error; err != nil {
			if isDuplicate(err) {
				return repo.ErrDuplicate
			}
			return fmt.Errorf("creating user: %w", err)
		}

		p.UserID = ur.ID
		pr := toProfileRow(p)
		if err := tx.Create(pr).Error; err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}

		u.ID = ur.ID
		p.ID = pr.ID
		p.CreatedAt = pr.CreatedAt
		p.UpdatedAt = pr.UpdatedAt
		return nil
	})
}

func (s *UserStorage) getOne(ctx context.Context, query string, arg any) (*user.User, error) {
	var row userRow
	if err := s.db.WithContext(ctx).First(&row, query, arg).Error; err != nil {
		if isNotFound(err) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return row.toUser(), nil
}

func (s *UserStorage) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.getOne(ctx, "id = ?", id)
}

func (s *UserStorage) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	return s.getOne(ctx, "username = ?", username)
}

func usernameTaken(db *gorm.DB, username string, excludeID int64) (bool, error) {
	var n int64
	err := db.Model(&userRow{}).
		Where("LOWER(username) = LOWER(?) AND id <> ?", username, excludeID).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("checking username: %w", err)
	}
	return n > 0, nil
}

// checkUsername backs up the expression index, whose violation the driver
// may not translate.
func checkUsername(tx *gorm.DB, username string, excludeID int64) error {
	taken, err := usernameTaken(tx, username, excludeID)
	if err != nil {
		return err
	}
	if taken {
		return repo.ErrDuplicate
	}
	return nil
}

func (s *UserStorage) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	return usernameTaken(s.db.WithContext(ctx), username, excludeID)
}

func (s *UserStorage) UpdateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := checkUsername(tx, u.Username, u.ID); err != nil {
			return err
		}
		result := tx.Model(&userRow{}).Where("id = ?", u.ID).Updates(map[string]any{
			"username":   u.Username,
			"email":      u.Email,
			"first_name": u.FirstName,
			"last_name":  u.LastName,
		})
		if err := result.Error; err != nil {
			if isDuplicate(err) {
				return repo.ErrDuplicate
			}
			return fmt.Errorf("updating user: %w", err)
		}
		if result.RowsAffected == 0 {
			return repo.ErrNotFound
		}

		p.UserID = u.ID
		var existing profileRow
		err := tx.First(&existing, "user_id = ?", u.ID).Error
		switch {
		case err == nil:
			p.ID = existing.ID
			p.CreatedAt = existing.CreatedAt
		case isNotFound(err):
			p.ID = 0
		default:
			return fmt.Errorf("loading profile: %w", err)
		}

		pr := toProfileRow(p)
		if err := tx.Save(pr).Error; err != nil {
			return fmt.Errorf("saving profile: %w", err)
		}
		p.ID = pr.ID
		p.CreatedAt = pr.CreatedAt
		p.UpdatedAt = pr.UpdatedAt
		return nil
	})
}

func (s *UserStorage) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	result := s.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).Update("last_login", at.UTC())
	if err := result.Error; err != nil {
		return fmt.Errorf("setting last login: %w", err)
	}
	if result.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// Delete removes dependants explicitly as well, so it does not depend on the
// foreign_keys pragma being honoured.
func (s *UserStorage) Delete(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&taskRow{}).Error; err != nil {
			return fmt.Errorf("deleting tasks: %w", err)
		}
		if err := tx.Where("user_id = ?", id).Delete(&profileRow{}).Error; err != nil {
			return fmt.Errorf("deleting profile: %w", err)
		}
		result := tx.Delete(&userRow{}, "id = ?", id)
		if err := result.Error; err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		if result.RowsAffected == 0 {
			return repo.ErrNotFound
		}
		return nil
	})
}

type ProfileStorage struct {
	*Storage
}

func (s *ProfileStorage) GetByUserID(ctx context.Context, userID int64) (*user.Profile, error) {
	var row profileRow
	if err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error; err != nil {
		if isNotFound(err) {
			return nil, repo.ErrNotFound
		}
		return nil, fmt.Errorf("getting profile: %w", err)
	}
	return row.toProfile(), nil
}

func (s *ProfileStorage) GetOrCreate(ctx context.Context, userID int64) (*user.Profile, error) {
	var row profileRow
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.First(&row, "user_id = ?", userID).Error
		if err == nil {
			return nil
		}
		if !isNotFound(err) {
			return fmt.Errorf("getting profile: %w", err)
		}

		var owners int64
		if err := tx.Model(&userRow{}).Where("id = ?", userID).Count(&owners).Error; err != nil {
			return fmt.Errorf("checking user: %w", err)
		}
		if owners == 0 {
			return repo.ErrNotFound
		}

		row = profileRow{UserID: userID}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("creating profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return row.toProfile(), nil
}
