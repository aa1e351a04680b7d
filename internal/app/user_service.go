package app

import (
	"context"
	"fmt"
	"math"

	"nutriplan/internal/domain"
)

// ProfileInput holds the user-editable profile fields.
type ProfileInput struct {
	Goal      domain.Goal
	Allergens domain.AllergenSet
	HeightCm  float64
	WeightKg  float64
}

// UserService manages the authenticated user's dietary profile.
type UserService struct {
	users domain.UserRepository
}

// NewUserService creates a UserService.
func NewUserService(users domain.UserRepository) *UserService {
	return &UserService{users: users}
}

// Profile returns the user.
func (s *UserService) Profile(ctx context.Context, userID int64) (*domain.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile replaces the user's goal, allergens and body measurements.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, in ProfileInput) (*domain.User, error) {
	if in.Goal == "" {
		in.Goal = domain.GoalMaintenance
	}
	if !in.Goal.Valid() {
		return nil, fmt.Errorf("%w: unknown goal %q", domain.ErrInvalidInput, in.Goal)
	}
	for _, v := range []float64{in.HeightCm, in.WeightKg} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return nil, fmt.Errorf("%w: measurements must be non-negative", domain.ErrInvalidInput)
		}
	}

	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	u.Goal = in.Goal
	u.Allergens = in.Allergens
	u.HeightCm = in.HeightCm
	u.WeightKg = in.WeightKg
	if err := s.users.UpdateProfile(ctx, *u); err != nil {
		return nil, err
	}
	return u, nil
}
