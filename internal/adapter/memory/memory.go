// Package memory implements in-memory repositories for development and testing.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"nutriplan/internal/domain"
)

// DB implements an in-memory database storage. All repositories share one
// mutex, so every method call is atomic with respect to the others.
type DB struct {
	mu sync.Mutex

	users    []*domain.User
	sessions map[string]domain.Session

	foods        map[int64]domain.Food
	recipes      map[int64]*recipeRow
	replacements map[int64]domain.FoodReplacement
	plans        map[int64]domain.MealPlan
	meals        map[int64]domain.Meal
	mealRecipes  map[int64][]int64

	userIDCounter        int64
	foodIDCounter        int64
	recipeIDCounter      int64
	useIDCounter         int64
	replacementIDCounter int64
	planIDCounter        int64
	mealIDCounter        int64

	now func() time.Time
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		sessions:     make(map[string]domain.Session),
		foods:        make(map[int64]domain.Food),
		recipes:      make(map[int64]*recipeRow),
		replacements: make(map[int64]domain.FoodReplacement),
		plans:        make(map[int64]domain.MealPlan),
		meals:        make(map[int64]domain.Meal),
		mealRecipes:  make(map[int64][]int64),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Ensure interfaces are met.
var (
	_ domain.UserRepository        = (*DB)(nil)
	_ domain.FoodRepository        = (*DB)(nil)
	_ domain.RecipeRepository      = (*DB)(nil)
	_ domain.ReplacementRepository = (*DB)(nil)
	_ domain.MealPlanRepository    = (*DB)(nil)
	_ domain.SessionRepository     = (*SessionRepo)(nil)
)

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %q: %w", username, domain.ErrNotFound)
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("user %d: %w", id, domain.ErrNotFound)
}

// Create creates a new user with the maintenance goal and no allergens.
func (db *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, fmt.Errorf("user %q: %w", username, domain.ErrDuplicate)
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		Goal:         domain.GoalMaintenance,
		CreatedAt:    db.now(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// UpdateProfile stores the user's goal, allergens and measurements.
func (db *DB) UpdateProfile(ctx context.Context, in domain.User) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == in.ID {
			u.Goal = in.Goal
			u.Allergens = in.Allergens
			u.HeightCm = in.HeightCm
			u.WeightKg = in.WeightKg
			return nil
		}
	}
	return fmt.Errorf("user %d: %w", in.ID, domain.ErrNotFound)
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s.CreatedAt.IsZero() {
		s.CreatedAt = r.db.now()
	}
	r.db.sessions[s.Token] = s
	return nil
}

// GetByToken retrieves a live session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if r.db.now().After(s.ExpiresAt) {
		delete(r.db.sessions, token)
		return nil, domain.ErrNotFound
	}
	return &s, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := r.db.now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

func sortedKeys[V any](m map[int64]V) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
