package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"

	"nutriplan/internal/domain"
)

const userColumns = "id, username, password_hash, goal, allergens, height_cm, weight_kg, created_at"

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	var (
		u         domain.User
		goal      string
		allergens []string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &goal, pq.Array(&allergens), &u.HeightCm, &u.WeightKg, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Goal = domain.Goal(goal)
	set, err := domain.ParseAllergenSet(allergens)
	if err != nil {
		return nil, fmt.Errorf("user %d: %w", u.ID, err)
	}
	u.Allergens = set
	return &u, nil
}

func allergenNames(s domain.AllergenSet) []string {
	list := s.List()
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = string(a)
	}
	return out
}

// GetByUsername retrieves a user by username.
func (d *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username = $1", username))
	if err != nil {
		return nil, mapErr(err, "user "+username)
	}
	return u, nil
}

// GetByID retrieves a user by ID.
func (d *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id = $1", id))
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("user %d", id))
	}
	return u, nil
}

// Create creates a new user.
func (d *DB) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	u, err := scanUser(d.sql.QueryRowContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES ($1, $2, $3) RETURNING "+userColumns,
		username, passwordHash, time.Now().UTC(),
	))
	if err != nil {
		return nil, mapErr(err, "user "+username)
	}
	return u, nil
}

// Count returns the total number of users.
func (d *DB) Count(ctx context.Context) (int, error) {
	var count int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&count)
	return count, err
}

// UpdateProfile stores the user's goal, allergens and measurements.
func (d *DB) UpdateProfile(ctx context.Context, u domain.User) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE users SET goal = $1, allergens = $2, height_cm = $3, weight_kg = $4 WHERE id = $5",
		string(u.Goal), pq.Array(allergenNames(u.Allergens)), u.HeightCm, u.WeightKg, u.ID,
	)
	if err != nil {
		return mapErr(err, fmt.Sprintf("user %d", u.ID))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d: %w", u.ID, domain.ErrNotFound)
	}
	return nil
}

// SessionRepo implements session repository operations on DB.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo wraps a DB as a SessionRepository.
func NewSessionRepo(db *DB) *SessionRepo {
	return &SessionRepo{db: db}
}

// Create stores a session.
func (r *SessionRepo) Create(ctx context.Context, s domain.Session) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.sql.ExecContext(ctx,
		"INSERT INTO sessions (token, user_id, user_agent, ip, expires_at, created_at) VALUES ($1, $2, $3, $4, $5, $6)",
		s.Token, s.UserID, s.UserAgent, s.IP, s.ExpiresAt, s.CreatedAt,
	)
	return mapErr(err, "session")
}

// GetByToken retrieves a session by token.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	var s domain.Session
	err := r.db.sql.QueryRowContext(ctx,
		"SELECT token, user_id, user_agent, ip, expires_at, created_at FROM sessions WHERE token = $1",
		token,
	).Scan(&s.Token, &s.UserID, &s.UserAgent, &s.IP, &s.ExpiresAt, &s.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "session")
	}
	return &s, nil
}

// Delete deletes a session by token.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE token = $1", token)
	return err
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	_, err := r.db.sql.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at < $1", time.Now())
	return err
}
