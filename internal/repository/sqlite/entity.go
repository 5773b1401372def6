package sqlite

import (
	"strings"
	"time"

	"todoTracker/internal/models/task"
	"todoTracker/internal/models/user"
)

// Row types mirror the Postgres schema so both backends hold the same data.

type userRow struct {
	ID           int64     `gorm:"primaryKey;autoIncrement"`
	Username     string    `gorm:"size:150;not null"`
	Email        string    `gorm:"size:254;not null;default:''"`
	PasswordHash string    `gorm:"size:128;not null"`
	FirstName    string    `gorm:"size:30;not null;default:''"`
	LastName     string    `gorm:"size:30;not null;default:''"`
	IsStaff      bool      `gorm:"not null;default:false"`
	IsSuperuser  bool      `gorm:"not null;default:false"`
	IsActive     bool      `gorm:"not null;default:true"`
	DateJoined   time.Time `gorm:"not null"`
	LastLogin    *time.Time

	Profile *profileRow `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	Tasks   []taskRow   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (userRow) TableName() string {
	return "users"
}

type profileRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"not null;uniqueIndex"`
	Bio         string `gorm:"size:500;not null;default:''"`
	Avatar      string `gorm:"size:255;not null;default:''"`
	PhoneNumber string `gorm:"size:20;not null;default:''"`
	BirthDate   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (profileRow) TableName() string {
	return "profiles"
}

type taskRow struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	UserID      int64  `gorm:"not null;index:idx_tasks_user_created,priority:1"`
	Title       string `gorm:"size:200;not null"`
	Description string `gorm:"not null;default:''"`
	Priority    string `gorm:"size:10;not null;default:'medium'"`
	Status      string `gorm:"size:20;not null;default:'pending'"`
	DueDate     *time.Time
	CreatedAt   time.Time `gorm:"index:idx_tasks_user_created,priority:2"`
	UpdatedAt   time.Time
	CompletedAt *time.Time
	// Lowercased copies for search. SQLite's LIKE folds ASCII only.
	TitleFold       string `gorm:"not null;default:''"`
	DescriptionFold string `gorm:"not null;default:''"`
}

func (taskRow) TableName() string {
	return "tasks"
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func toTaskRow(t *task.Task) *taskRow {
	return &taskRow{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Status:      string(t.Status),
		DueDate:     utcPtr(t.DueDate),
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		CompletedAt: utcPtr(t.CompletedAt),

		TitleFold:       strings.ToLower(t.Title),
		DescriptionFold: strings.ToLower(t.Description),
	}
}

func (r *taskRow) toTask() *task.Task {
	return &task.Task{
		ID:          r.ID,
		UserID:      r.UserID,
		Title:       r.Title,
		Description: r.Description,
		Priority:    task.Priority(r.Priority),
		Status:      task.Status(r.Status),
		DueDate:     r.DueDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		CompletedAt: r.CompletedAt,
	}
}

func toUserRow(u *user.User) *userRow {
	return &userRow{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsStaff:      u.IsStaff,
		IsSuperuser:  u.IsSuperuser,
		IsActive:     u.IsActive,
		DateJoined:   u.DateJoined.UTC(),
		LastLogin:    utcPtr(u.LastLogin),
	}
}

func (r *userRow) toUser() *user.User {
	return &user.User{
		ID:           r.ID,
		Username:     r.Username,
		Email:        r.Email,
		PasswordHash: r.PasswordHash,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		IsStaff:      r.IsStaff,
		IsSuperuser:  r.IsSuperuser,
		IsActive:     r.IsActive,
		DateJoined:   r.DateJoined,
		LastLogin:    r.LastLogin,
	}
}

func toProfileRow(p *user.Profile) *profileRow {
	return &profileRow{
		ID:          p.ID,
		UserID:      p.UserID,
		Bio:         p.Bio,
		Avatar:      p.Avatar,
		PhoneNumber: p.PhoneNumber,
		BirthDate:   utcPtr(p.BirthDate),
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (r *profileRow) toProfile() *user.Profile {
	return &user.Profile{
		ID:          r.ID,
		UserID:      r.UserID,
		Bio:         r.Bio,
		Avatar:      r.Avatar,
		PhoneNumber: r.PhoneNumber,
		BirthDate:   r.BirthDate,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}
