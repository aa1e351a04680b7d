// Package domain contains the core business entities and interfaces.
package domain

import (
	"context"
	"time"
)

// Goal is a user's dietary objective.
type Goal string

// Goals.
const (
	GoalWeightLoss  Goal = "weight_loss"
	GoalMuscleGain  Goal = "muscle_gain"
	GoalMaintenance Goal = "maintenance"
)

// Valid reports whether g is a known goal.
func (g Goal) Valid() bool {
	switch g {
	case GoalWeightLoss, GoalMuscleGain, GoalMaintenance:
		return true
	}
	return false
}

// User represents an authenticated user in the system.
type User struct {
	ID           int64       `json:"id"`
	Username     string      `json:"username"`
	PasswordHash string      `json:"-"`
	Goal         Goal        `json:"goal"`
	Allergens    AllergenSet `json:"allergens"`
	HeightCm     float64     `json:"heightCm,omitempty"`
	WeightKg     float64     `json:"weightKg,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Session represents an active user session.
type Session struct {
	Token     string
	UserID    int64
	UserAgent string
	IP        string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserRepository defines the port for user persistence operations.
type UserRepository interface {
	GetByUsername(ctx context.Context, username string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	Create(ctx context.Context, username, passwordHash string) (*User, error)
	Count(ctx context.Context) (int, error)
	UpdateProfile(ctx context.Context, u User) error
}

// SessionRepository defines the port for session persistence operations.
type SessionRepository interface {
	Create(ctx context.Context, s Session) error
	GetByToken(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context) error
}
