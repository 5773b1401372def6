package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"todoTracker/internal/logger"
	"todoTracker/internal/media"
	"todoTracker/internal/models/user"
	repo "todoTracker/internal/repository"

	"go.uber.org/zap"
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) bool
}

type AvatarStorage interface {
	Save(ctx context.Context, userID int64, up media.Upload) (string, error)
	Remove(ctx context.Context, name string) error
}

// AccountService covers registration, login and the profile page.
type AccountService struct {
	users    UserRepository
	profiles ProfileRepository
	hasher   PasswordHasher
	avatars  AvatarStorage
	now      func() time.Time
}

func NewAccountService(users UserRepository, profiles ProfileRepository, hasher PasswordHasher, avatars AvatarStorage) *AccountService {
	return &AccountService{
		users:    users,
		profiles: profiles,
		hasher:   hasher,
		avatars:  avatars,
		now:      time.Now,
	}
}

// Registration holds already validated sign-up fields.
type Registration struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
	Password  string
}

// UserChanges and ProfileChanges hold already validated profile page fields.
type UserChanges struct {
	Username  string
	Email     string
	FirstName string
	LastName  string
}

type ProfileChanges struct {
	Bio         string
	PhoneNumber string
	BirthDate   *time.Time
	Avatar      *media.Upload
}

// Register creates the account and its empty profile atomically.
func (s *AccountService) Register(ctx context.Context, reg Registration) (*user.User, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Register")
	defer span.End()

	taken, err := s.users.UsernameTaken(ctx, reg.Username, 0)
	if err != nil {
		return nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, NewValidationError("username", "A user with that username already exists.")
	}

	hash, err := s.hasher.Hash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	u := &user.User{
		Username:     reg.Username,
		Email:        reg.Email,
		FirstName:    reg.FirstName,
		LastName:     reg.LastName,
		PasswordHash: hash,
		IsActive:     true,
		DateJoined:   s.now(),
	}
	p := &user.Profile{}

	if err := s.users.CreateWithProfile(ctx, u, p); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, NewValidationError("username", "A user with that username already exists.")
		}
		return nil, fmt.Errorf("creating account: %w", err)
	}

	logger.Info("Service: Account registered",
		zap.Int64("user_id", u.ID),
		zap.String("username", u.Username))
	return u, nil
}

// Authenticate checks credentials and records the login time.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (*user.User, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Authenticate")
	defer span.End()

	invalid := NewBusinessError(CodeInvalidCredentials,
		"Please enter a correct username and password. Note that both fields may be case-sensitive.")

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// Hash anyway so unknown usernames take as long as wrong passwords.
			_, _ = s.hasher.Hash(password)
			logger.Info("Service: Login for unknown username", zap.String("username", username))
			return nil, invalid
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		logger.Info("Service: Wrong password", zap.Int64("user_id", u.ID))
		return nil, invalid
	}
	// Inactive accounts get the same answer as a wrong password.
	if !u.IsActive {
		logger.Info("Service: Login for inactive user", zap.Int64("user_id", u.ID))
		return nil, invalid
	}

	now := s.now()
	if err := s.users.SetLastLogin(ctx, u.ID, now); err != nil {
		return nil, fmt.Errorf("recording login: %w", err)
	}
	u.LastLogin = &now
	return u, nil
}

// CurrentUser loads the session user; inactive or deleted users are not found.
func (s *AccountService) CurrentUser(ctx context.Context, id int64) (*user.User, error) {
	u, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, NewNotFound("user", id)
		}
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if !u.IsActive {
		return nil, NewNotFound("user", id)
	}
	return u, nil
}

// Profile returns the user's profile, creating an empty one on first visit.
func (s *AccountService) Profile(ctx context.Context, userID int64) (*user.Profile, error) {
	ctx, span := tracer.Start(ctx, "AccountService.Profile")
	defer span.End()

	p, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("loading profile: %w", err)
	}
	return p, nil
}

// UpdateProfile saves the user and profile fields together. A new avatar
// replaces the old file only once the rows are saved.
func (s *AccountService) UpdateProfile(ctx context.Context, userID int64, uc UserChanges, pc ProfileChanges) (*user.User, *user.Profile, error) {
	ctx, span := tracer.Start(ctx, "AccountService.UpdateProfile")
	defer span.End()

	taken, err := s.users.UsernameTaken(ctx, uc.Username, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("checking username: %w", err)
	}
	if taken {
		return nil, nil, NewValidationError("username", "A user with that username already exists.")
	}

	u, err := s.CurrentUser(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	p, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("loading profile: %w", err)
	}

	u.Username = uc.Username
	u.Email = uc.Email
	u.FirstName = uc.FirstName
	u.LastName = uc.LastName

	p.Bio = pc.Bio
	p.PhoneNumber = pc.PhoneNumber
	p.BirthDate = pc.BirthDate

	oldAvatar := p.Avatar
	newAvatar := ""
	if pc.Avatar != nil {
		newAvatar, err = s.avatars.Save(ctx, userID, *pc.Avatar)
		if err != nil {
			if errors.Is(err, media.ErrNotImage) || errors.Is(err, media.ErrTooLarge) || errors.Is(err, media.ErrEmpty) {
				return nil, nil, NewValidationError("avatar", err.Error())
			}
			return nil, nil, fmt.Errorf("storing avatar: %w", err)
		}
		p.Avatar = newAvatar
	}

	if err := s.users.UpdateWithProfile(ctx, u, p); err != nil {
		if newAvatar != "" {
			if rmErr := s.avatars.Remove(ctx, newAvatar); rmErr != nil {
				logger.Warn("Service: Could not remove unused avatar", zap.String("path", newAvatar), zap.Error(rmErr))
			}
		}
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, nil, NewValidationError("username", "A user with that username already exists.")
		}
		if errors.Is(err, repo.ErrNotFound) {
			return nil, nil, NewNotFound("user", userID)
		}
		return nil, nil, fmt.Errorf("saving profile: %w", err)
	}

	if newAvatar != "" && oldAvatar != "" {
		if err := s.avatars.Remove(ctx, oldAvatar); err != nil {
			logger.Warn("Service: Could not remove replaced avatar", zap.String("path", oldAvatar), zap.Error(err))
		}
	}

	logger.Info("Service: Profile updated", zap.Int64("user_id", userID))
	return u, p, nil
}

// DeleteUser removes an account with its tasks and profile.
func (s *AccountService) DeleteUser(ctx context.Context, id int64) error {
	ctx, span := tracer.Start(ctx, "AccountService.DeleteUser")
	defer span.End()

	p, err := s.profiles.GetByUserID(ctx, id)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("loading profile: %w", err)
	}

	if err := s.users.Delete(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return NewNotFound("user", id)
		}
		return fmt.Errorf("deleting user: %w", err)
	}

	if p != nil && p.Avatar != "" {
		if err := s.avatars.Remove(ctx, p.Avatar); err != nil {
			logger.Warn("Service: Could not remove avatar of deleted user", zap.Int64("user_id", id), zap.Error(err))
		}
	}
	logger.Info("Service: User deleted", zap.Int64("user_id", id))
	return nil
}
