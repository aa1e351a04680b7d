package postgres

import (
	"context"
	"fmt"
	"time"

	"nutriplan/internal/domain"
)

const planColumns = "id, user_id, name, to_char(start_day, 'YYYY-MM-DD'), to_char(end_day, 'YYYY-MM-DD'), calorie_goal, notes, created_at"

func planDest(p *domain.MealPlan) []any {
	return []any{&p.ID, &p.UserID, &p.Name, &p.StartDay, &p.EndDay, &p.CalorieGoal, &p.Notes, &p.CreatedAt}
}

const mealColumns = "id, plan_id, meal_type, to_char(day, 'YYYY-MM-DD'), created_at"

func mealDest(m *domain.Meal) []any {
	return []any{&m.ID, &m.PlanID, &m.Type, &m.Day, &m.CreatedAt}
}

// CreatePlan inserts a meal plan.
func (d *DB) CreatePlan(ctx context.Context, p domain.MealPlan) (*domain.MealPlan, error) {
	var out domain.MealPlan
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO meal_plans (user_id, name, start_day, end_day, calorie_goal, notes, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+planColumns,
		p.UserID, p.Name, p.StartDay, p.EndDay, p.CalorieGoal, p.Notes, time.Now().UTC(),
	).Scan(planDest(&out)...)
	if err != nil {
		return nil, mapErr(err, "plan "+p.Name)
	}
	return &out, nil
}

// GetPlan retrieves a plan by ID.
func (d *DB) GetPlan(ctx context.Context, id int64) (*domain.MealPlan, error) {
	var p domain.MealPlan
	if err := d.sql.QueryRowContext(ctx, "SELECT "+planColumns+" FROM meal_plans WHERE id = $1", id).Scan(planDest(&p)...); err != nil {
		return nil, mapErr(err, fmt.Sprintf("plan %d", id))
	}
	return &p, nil
}

// ListPlans lists a user's plans ordered by start day.
func (d *DB) ListPlans(ctx context.Context, userID int64) ([]domain.MealPlan, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+planColumns+" FROM meal_plans WHERE user_id = $1 ORDER BY start_day, id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.MealPlan
	for rows.Next() {
		var p domain.MealPlan
		if err := rows.Scan(planDest(&p)...); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddMeal inserts a meal into a plan.
func (d *DB) AddMeal(ctx context.Context, m domain.Meal) (*domain.Meal, error) {
	var out domain.Meal
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO meals (plan_id, meal_type, day, created_at) VALUES ($1, $2, $3, $4) RETURNING "+mealColumns,
		m.PlanID, string(m.Type), m.Day, time.Now().UTC(),
	).Scan(mealDest(&out)...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("plan %d", m.PlanID))
	}
	return &out, nil
}

// GetMeal retrieves a meal by ID, without its recipes.
func (d *DB) GetMeal(ctx context.Context, id int64) (*domain.Meal, error) {
	var m domain.Meal
	if err := d.sql.QueryRowContext(ctx, "SELECT "+mealColumns+" FROM meals WHERE id = $1", id).Scan(mealDest(&m)...); err != nil {
		return nil, mapErr(err, fmt.Sprintf("meal %d", id))
	}
	return &m, nil
}

// AddRecipeToMeal links a recipe to a meal once.
func (d *DB) AddRecipeToMeal(ctx context.Context, mealID, recipeID int64) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO meal_recipes (meal_id, recipe_id) VALUES ($1, $2)", mealID, recipeID)
	return mapErr(err, fmt.Sprintf("recipe %d in meal %d", recipeID, mealID))
}

// MealsForPlan lists a plan's meals ordered by day then ID.
func (d *DB) MealsForPlan(ctx context.Context, planID int64) ([]domain.Meal, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT "+mealColumns+" FROM meals WHERE plan_id = $1 ORDER BY day, id", planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Meal
	for rows.Next() {
		var m domain.Meal
		if err := rows.Scan(mealDest(&m)...); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecipesForMeal reads the meal's recipes with ingredients and foods from one snapshot.
func (d *DB) RecipesForMeal(ctx context.Context, mealID int64) ([]domain.Recipe, error) {
	var out []domain.Recipe
	err := d.inReadSnapshot(ctx, func(q queryer) error {
		var exists bool
		if err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM meals WHERE id = $1)", mealID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("meal %d: %w", mealID, domain.ErrNotFound)
		}

		rows, err := q.QueryContext(ctx,
			"SELECT recipe_id FROM meal_recipes WHERE meal_id = $1 ORDER BY position", mealID)
		if err != nil {
			return err
		}
		var ids []int64
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		out = make([]domain.Recipe, 0, len(ids))
		for _, id := range ids {
			r, err := loadRecipe(ctx, q, id)
			if err != nil {
				return err
			}
			out = append(out, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
