package inmemory

import (
	"context"
	"strings"
	"time"

	"todoTracker/internal/models/user"
	repo "todoTracker/internal/repository"
)

type UserStorage struct {
	*Storage
}

// usernameTaken expects at least the read lock to be held.
func (s *UserStorage) usernameTaken(username string, excludeID int64) bool {
	for id, u := range s.users {
		if id != excludeID && strings.EqualFold(u.Username, username) {
			return true
		}
	}
	return false
}

func (s *UserStorage) CreateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.usernameTaken(u.Username, 0) {
		return repo.ErrDuplicate
	}

	now := time.Now()
	s.nextUserID++
	u.ID = s.nextUserID
	if u.DateJoined.IsZero() {
		u.DateJoined = now
	}

	s.nextProfileID++
	p.ID = s.nextProfileID
	p.UserID = u.ID
	p.CreatedAt = now
	p.UpdatedAt = now

	s.users[u.ID] = cloneUser(u)
	s.profiles[u.ID] = cloneProfile(p)
	return nil
}

func (s *UserStorage) GetByID(ctx context.Context, id int64) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStorage) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, u := range s.users {
		if u.Username == username {
			return cloneUser(u), nil
		}
	}
	return nil, repo.ErrNotFound
}

func (s *UserStorage) UsernameTaken(ctx context.Context, username string, excludeID int64) (bool, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.usernameTaken(username, excludeID), nil
}

func (s *UserStorage) UpdateWithProfile(ctx context.Context, u *user.User, p *user.Profile) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	existing, ok := s.users[u.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if s.usernameTaken(u.Username, u.ID) {
		return repo.ErrDuplicate
	}

	// Credentials and flags are not editable through this path.
	updated := cloneUser(u)
	updated.PasswordHash = existing.PasswordHash
	updated.IsActive = existing.IsActive
	updated.IsStaff = existing.IsStaff
	updated.IsSuperuser = existing.IsSuperuser
	updated.DateJoined = existing.DateJoined
	s.users[u.ID] = updated

	now := time.Now()
	p.UserID = u.ID
	if prev, ok := s.profiles[u.ID]; ok {
		p.ID = prev.ID
		p.CreatedAt = prev.CreatedAt
	} else {
		s.nextProfileID++
		p.ID = s.nextProfileID
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.profiles[u.ID] = cloneProfile(p)
	return nil
}

func (s *UserStorage) SetLastLogin(ctx context.Context, id int64, at time.Time) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	u, ok := s.users[id]
	if !ok {
		return repo.ErrNotFound
	}
	u.LastLogin = &at
	return nil
}

// Delete removes the user together with its profile and tasks.
func (s *UserStorage) Delete(ctx context.Context, id int64) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if _, ok := s.users[id]; !ok {
		return repo.ErrNotFound
	}
	delete(s.users, id)
	delete(s.profiles, id)

	tasks := &TaskStorage{s.Storage}
	for taskID, t := range s.tasks {
		if t.UserID == id {
			tasks.removeTask(taskID)
		}
	}
	return nil
}

type ProfileStorage struct {
	*Storage
}

func (s *ProfileStorage) GetByUserID(ctx context.Context, userID int64) (*user.Profile, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	p, ok := s.profiles[userID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return cloneProfile(p), nil
}

func (s *ProfileStorage) GetOrCreate(ctx context.Context, userID int64) (*user.Profile, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if p, ok := s.profiles[userID]; ok {
		return cloneProfile(p), nil
	}
	if _, ok := s.users[userID]; !ok {
		return nil, repo.ErrNotFound
	}

	now := time.Now()
	s.nextProfileID++
	p := &user.Profile{ID: s.nextProfileID, UserID: userID, CreatedAt: now, UpdatedAt: now}
	s.profiles[userID] = p
	return cloneProfile(p), nil
}
