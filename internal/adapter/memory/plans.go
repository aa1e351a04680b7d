package memory

import (
	"context"
	"fmt"
	"sort"

	"nutriplan/internal/domain"
)

// CreatePlan stores a meal plan.
func (db *DB) CreatePlan(ctx context.Context, p domain.MealPlan) (*domain.MealPlan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.planIDCounter++
	p.ID = db.planIDCounter
	p.CreatedAt = db.now()
	db.plans[p.ID] = p
	return &p, nil
}

// GetPlan retrieves a plan by ID.
func (db *DB) GetPlan(ctx context.Context, id int64) (*domain.MealPlan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	p, ok := db.plans[id]
	if !ok {
		return nil, fmt.Errorf("plan %d: %w", id, domain.ErrNotFound)
	}
	return &p, nil
}

// ListPlans lists a user's plans ordered by start day.
func (db *DB) ListPlans(ctx context.Context, userID int64) ([]domain.MealPlan, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.MealPlan
	for _, id := range sortedKeys(db.plans) {
		if p := db.plans[id]; p.UserID == userID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartDay < out[j].StartDay })
	return out, nil
}

// AddMeal stores a meal in an existing plan.
func (db *DB) AddMeal(ctx context.Context, m domain.Meal) (*domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.plans[m.PlanID]; !ok {
		return nil, fmt.Errorf("plan %d: %w", m.PlanID, domain.ErrNotFound)
	}
	db.mealIDCounter++
	m.ID = db.mealIDCounter
	m.Recipes = nil
	m.TotalCalories = 0
	m.CreatedAt = db.now()
	db.meals[m.ID] = m
	return &m, nil
}

// GetMeal retrieves a meal by ID, without its recipes.
func (db *DB) GetMeal(ctx context.Context, id int64) (*domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	m, ok := db.meals[id]
	if !ok {
		return nil, fmt.Errorf("meal %d: %w", id, domain.ErrNotFound)
	}
	return &m, nil
}

// AddRecipeToMeal links a recipe to a meal once.
func (db *DB) AddRecipeToMeal(ctx context.Context, mealID, recipeID int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.meals[mealID]; !ok {
		return fmt.Errorf("meal %d: %w", mealID, domain.ErrNotFound)
	}
	if _, ok := db.recipes[recipeID]; !ok {
		return fmt.Errorf("recipe %d: %w", recipeID, domain.ErrNotFound)
	}
	for _, id := range db.mealRecipes[mealID] {
		if id == recipeID {
			return fmt.Errorf("recipe %d in meal %d: %w", recipeID, mealID, domain.ErrDuplicate)
		}
	}
	db.mealRecipes[mealID] = append(db.mealRecipes[mealID], recipeID)
	return nil
}

// MealsForPlan lists a plan's meals ordered by day then ID.
func (db *DB) MealsForPlan(ctx context.Context, planID int64) ([]domain.Meal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.Meal
	for _, id := range sortedKeys(db.meals) {
		if m := db.meals[id]; m.PlanID == planID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Day < out[j].Day })
	return out, nil
}

// RecipesForMeal returns the meal's recipes with ingredients and foods.
func (db *DB) RecipesForMeal(ctx context.Context, mealID int64) ([]domain.Recipe, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.meals[mealID]; !ok {
		return nil, fmt.Errorf("meal %d: %w", mealID, domain.ErrNotFound)
	}
	out := make([]domain.Recipe, 0, len(db.mealRecipes[mealID]))
	for _, id := range db.mealRecipes[mealID] {
		if row, ok := db.recipes[id]; ok {
			out = append(out, db.hydrate(row))
		}
	}
	return out, nil
}
