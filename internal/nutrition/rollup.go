package nutrition

import (
	"fmt"

	"nutriplan/internal/domain"
)

// ProgressStatus summarizes consumption against a goal.
type ProgressStatus string

// Progress statuses.
const (
	StatusUnder   ProgressStatus = "under"
	StatusOnTrack ProgressStatus = "on_track"
	StatusOver    ProgressStatus = "over"
)

// RollupOptions control which meals count toward a plan and how progress is judged.
type RollupOptions struct {
	// WithinPlanDates restricts the rollup to meals whose day lies in the
	// plan's range. By default every meal linked to the plan counts.
	WithinPlanDates bool
	// Goal, when set, is used to derive PlanProgress.Status.
	Goal domain.Goal
}

// MealNutrition is the computed nutrition of one meal.
type MealNutrition struct {
	MealID  int64             `json:"mealId"`
	Type    domain.MealType   `json:"type"`
	Day     string            `json:"day"`
	Totals  Totals            `json:"totals"`
	Recipes []RecipeNutrition `json:"recipes"`
}

// PlanProgress compares a plan's consumed calories with its goal.
// DeltaPercent is a fraction: 0.15 means 15% over the goal.
type PlanProgress struct {
	PlanID           int64           `json:"planId"`
	ConsumedCalories float64         `json:"consumedCalories"`
	Goal             float64         `json:"goal"`
	DeltaPercent     float64         `json:"deltaPercent"`
	Status           ProgressStatus  `json:"status,omitempty"`
	Totals           Totals          `json:"totals"`
	Meals            []MealNutrition `json:"meals"`
	ExcludedMeals    int             `json:"excludedMeals,omitempty"`
}

// MealProfile aggregates the meal's recipes as stored, without substitution.
func (c *Composer) MealProfile(m domain.Meal) (MealNutrition, error) {
	out := MealNutrition{MealID: m.ID, Type: m.Type, Day: m.Day, Recipes: make([]RecipeNutrition, 0, len(m.Recipes))}
	parts := make([]Totals, 0, len(m.Recipes))
	for _, r := range m.Recipes {
		rn, err := c.RecipeProfile(r, nil)
		if err != nil {
			return MealNutrition{}, fmt.Errorf("meal %d: %w", m.ID, err)
		}
		out.Recipes = append(out.Recipes, rn)
		parts = append(parts, rn.Totals)
	}
	out.Totals = Merge(parts...)
	return out, nil
}

// PlanProgress rolls meals (with their recipes populated) up into plan
// progress. Recipes are aggregated as composed; substitution is not applied.
func (c *Composer) PlanProgress(plan domain.MealPlan, meals []domain.Meal, opts RollupOptions) (PlanProgress, error) {
	if !(plan.CalorieGoal > 0) {
		return PlanProgress{}, fmt.Errorf("plan %d: %w: calorie goal must be positive", plan.ID, domain.ErrInvalidInput)
	}

	out := PlanProgress{PlanID: plan.ID, Goal: plan.CalorieGoal, Meals: make([]MealNutrition, 0, len(meals))}
	parts := make([]Totals, 0, len(meals))
	for _, m := range meals {
		if opts.WithinPlanDates && !plan.Covers(m.Day) {
			out.ExcludedMeals++
			continue
		}
		mn, err := c.MealProfile(m)
		if err != nil {
			return PlanProgress{}, fmt.Errorf("plan %d: %w", plan.ID, err)
		}
		out.Meals = append(out.Meals, mn)
		parts = append(parts, mn.Totals)
	}

	out.Totals = Merge(parts...)
	out.ConsumedCalories = out.Totals.Calories
	out.DeltaPercent = (out.ConsumedCalories - out.Goal) / out.Goal
	if opts.Goal.Valid() {
		out.Status = Assess(opts.Goal, out.DeltaPercent)
	}
	return out, nil
}

// Assess judges a calorie delta against a dietary goal. Maintenance tolerates
// ±5%; weight loss is on track from 20% under up to the goal; muscle gain from
// the goal up to 15% over.
func Assess(goal domain.Goal, delta float64) ProgressStatus {
	lo, hi := -0.05, 0.05
	switch goal {
	case domain.GoalWeightLoss:
		lo, hi = -0.20, 0
	case domain.GoalMuscleGain:
		lo, hi = 0, 0.15
	}
	switch {
	case delta < lo:
		return StatusUnder
	case delta > hi:
		return StatusOver
	}
	return StatusOnTrack
}
