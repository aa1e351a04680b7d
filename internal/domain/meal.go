package domain

import (
	"context"
	"time"
)

// DayLayout is the format of calendar days.
const DayLayout = "2006-01-02"

// MealType is the slot of the day a meal fills.
type MealType string

// Meal types.
const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Valid reports whether t is a known meal type.
func (t MealType) Valid() bool {
	switch t {
	case MealBreakfast, MealLunch, MealDinner, MealSnack:
		return true
	}
	return false
}

// Meal groups recipes eaten together on a day.
type Meal struct {
	ID            int64     `json:"id"`
	PlanID        int64     `json:"planId"`
	Type          MealType  `json:"type"`
	Day           string    `json:"day"`
	Recipes       []Recipe  `json:"recipes,omitempty"`
	TotalCalories float64   `json:"totalCalories"`
	CreatedAt     time.Time `json:"createdAt"`
}

// MealPlan tracks a calorie goal across a date range.
type MealPlan struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Name        string    `json:"name"`
	StartDay    string    `json:"startDay"`
	EndDay      string    `json:"endDay"`
	CalorieGoal float64   `json:"calorieGoal"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Covers reports whether day falls within the plan's date range.
func (p MealPlan) Covers(day string) bool {
	return day >= p.StartDay && day <= p.EndDay
}

// MealPlanRepository is the port for plan and meal persistence.
type MealPlanRepository interface {
	CreatePlan(ctx context.Context, p MealPlan) (*MealPlan, error)
	GetPlan(ctx context.Context, id int64) (*MealPlan, error)
	ListPlans(ctx context.Context, userID int64) ([]MealPlan, error)
	AddMeal(ctx context.Context, m Meal) (*Meal, error)
	GetMeal(ctx context.Context, id int64) (*Meal, error)
	AddRecipeToMeal(ctx context.Context, mealID, recipeID int64) error
	// MealsForPlan returns the plan's meals without their recipes.
	MealsForPlan(ctx context.Context, planID int64) ([]Meal, error)
	// RecipesForMeal returns the meal's recipes with ingredients and foods.
	RecipesForMeal(ctx context.Context, mealID int64) ([]Recipe, error)
}
