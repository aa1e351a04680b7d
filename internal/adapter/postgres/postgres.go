// Package postgres implements the domain repositories using PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"nutriplan/internal/domain"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
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

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open connects to PostgreSQL and pings it. Call Migrate before use on a
// fresh database.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return &DB{sql: s}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		goal TEXT NOT NULL DEFAULT 'maintenance' CHECK (goal IN ('weight_loss','muscle_gain','maintenance')),
		allergens TEXT[] NOT NULL DEFAULT '{}',
		height_cm DOUBLE PRECISION NOT NULL DEFAULT 0,
		weight_kg DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		user_agent TEXT NOT NULL DEFAULT '',
		ip TEXT NOT NULL DEFAULT '',
		expires_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)`,
	`CREATE TABLE IF NOT EXISTS foods (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		normalized_name TEXT UNIQUE NOT NULL,
		category TEXT NOT NULL CHECK (category IN ('protein','carb','vegetable','fruit','fat','dairy','grain')),
		vitamin_c_mg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (vitamin_c_mg >= 0),
		vitamin_b11_mg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (vitamin_b11_mg >= 0),
		sodium_mg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (sodium_mg >= 0),
		calcium_mg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (calcium_mg >= 0),
		iron_mg DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (iron_mg >= 0),
		carbs_g DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (carbs_g >= 0),
		fat_g DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (fat_g >= 0),
		fiber_g DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (fiber_g >= 0),
		protein_g DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (protein_g >= 0),
		sugar_g DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (sugar_g >= 0),
		calories DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (calories >= 0),
		health_score DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (health_score BETWEEN 0 AND 100),
		created_at TIMESTAMPTZ NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_foods_category ON foods(category)`,
	`CREATE TABLE IF NOT EXISTS recipes (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		portions INTEGER NOT NULL DEFAULT 1 CHECK (portions > 0),
		prep_time_minutes INTEGER NOT NULL DEFAULT 0 CHECK (prep_time_minutes >= 0),
		total_calories DOUBLE PRECISION NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL)`,
	`CREATE TABLE IF NOT EXISTS recipe_ingredients (
		id BIGSERIAL PRIMARY KEY,
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE CASCADE,
		food_id BIGINT NOT NULL REFERENCES foods(id) ON DELETE RESTRICT,
		quantity_g DOUBLE PRECISION NOT NULL CHECK (quantity_g > 0))`,
	`CREATE INDEX IF NOT EXISTS idx_recipe_ingredients_recipe_id ON recipe_ingredients(recipe_id)`,
	`CREATE TABLE IF NOT EXISTS food_replacements (
		id BIGSERIAL PRIMARY KEY,
		recipe_ingredient_id BIGINT REFERENCES recipe_ingredients(id) ON DELETE CASCADE,
		original_food_id BIGINT NOT NULL REFERENCES foods(id) ON DELETE RESTRICT,
		replacement_food_id BIGINT NOT NULL REFERENCES foods(id) ON DELETE RESTRICT,
		quantity_g DOUBLE PRECISION NOT NULL CHECK (quantity_g > 0),
		similarity_score DOUBLE PRECISION NOT NULL CHECK (similarity_score BETWEEN 0 AND 1),
		justification TEXT NOT NULL DEFAULT '',
		reason TEXT NOT NULL CHECK (reason IN ('allergen','healthier','availability','preference')),
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (original_food_id <> replacement_food_id))`,
	`CREATE INDEX IF NOT EXISTS idx_food_replacements_original ON food_replacements(original_food_id)`,
	`CREATE TABLE IF NOT EXISTS meal_plans (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		start_day DATE NOT NULL,
		end_day DATE NOT NULL,
		calorie_goal DOUBLE PRECISION NOT NULL CHECK (calorie_goal > 0),
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		CHECK (start_day <= end_day))`,
	`CREATE INDEX IF NOT EXISTS idx_meal_plans_user_id ON meal_plans(user_id)`,
	`CREATE TABLE IF NOT EXISTS meals (
		id BIGSERIAL PRIMARY KEY,
		plan_id BIGINT NOT NULL REFERENCES meal_plans(id) ON DELETE CASCADE,
		meal_type TEXT NOT NULL CHECK (meal_type IN ('breakfast','lunch','dinner','snack')),
		day DATE NOT NULL,
		created_at TIMESTAMPTZ NOT NULL)`,
	`CREATE INDEX IF NOT EXISTS idx_meals_plan_id ON meals(plan_id)`,
	`CREATE TABLE IF NOT EXISTS meal_recipes (
		meal_id BIGINT NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
		recipe_id BIGINT NOT NULL REFERENCES recipes(id) ON DELETE RESTRICT,
		position SERIAL,
		PRIMARY KEY (meal_id, recipe_id))`,
}

// Migrate creates the schema if it does not exist.
func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// Postgres error codes mapped onto domain errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// mapErr translates driver errors into domain errors so callers never see
// driver types.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeForeignKeyViolation:
			if isInsert(pqErr) {
				return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
			}
			return fmt.Errorf("%s: %w", what, domain.ErrReferentialConflict)
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w", what, domain.ErrDuplicate)
		case codeCheckViolation:
			return fmt.Errorf("%s: %w", what, domain.ErrInvalidInput)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// isInsert reports whether a foreign key violation came from a row pointing
// at a missing parent rather than a delete of a referenced parent.
func isInsert(e *pq.Error) bool {
	return strings.HasPrefix(e.Message, "insert or update")
}

// inReadSnapshot runs fn in a read-only repeatable-read transaction so that
// multi-statement reads observe one snapshot.
func (d *DB) inReadSnapshot(ctx context.Context, fn func(q queryer) error) error {
	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
