package user

import (
	"strings"
	"time"
)

type User struct {
	ID           int64      `json:"id" db:"id"`
	Username     string     `json:"username" db:"username"`
	Email        string     `json:"email" db:"email"`
	PasswordHash string     `json:"-" db:"password_hash"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	IsStaff      bool       `json:"is_staff" db:"is_staff"`
	IsSuperuser  bool       `json:"is_superuser" db:"is_superuser"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	DateJoined   time.Time  `json:"date_joined" db:"date_joined"`
	LastLogin    *time.Time `json:"last_login,omitempty" db:"last_login"`
}

const (
	MaxUsernameLength = 150
	MaxNameLength     = 30
	MaxBioLength      = 500
	MaxPhoneLength    = 20
)

// FullName is "first last" trimmed, or the username when both are blank.
func (u *User) FullName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Username
	}
	return name
}

func (u *User) String() string {
	return u.Username
}

type Profile struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Bio         string     `json:"bio" db:"bio"`
	Avatar      string     `json:"avatar,omitempty" db:"avatar"`
	PhoneNumber string     `json:"phone_number" db:"phone_number"`
	BirthDate   *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// FullName resolves the profile owner's display name.
func (p *Profile) FullName(owner *User) string {
	if owner == nil {
		return ""
	}
	return owner.FullName()
}

func (p *Profile) HasAvatar() bool {
	return p.Avatar != ""
}
