package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

// maxParallelMealLoads bounds concurrent recipe loads during a rollup.
const maxParallelMealLoads = 8

// PlanInput is the data needed to create a meal plan.
type PlanInput struct {
	Name        string
	StartDay    string
	EndDay      string
	CalorieGoal float64
	Notes       string
}

// MealInput is the data needed to add a meal to a plan.
type MealInput struct {
	Type domain.MealType
	Day  string
}

// PlanService encapsulates meal plan use cases. Plans are private to the
// user that created them.
type PlanService struct {
	plans    domain.MealPlanRepository
	recipes  domain.RecipeRepository
	users    domain.UserRepository
	composer *nutrition.Composer
	log      *slog.Logger
}

// NewPlanService creates a PlanService.
func NewPlanService(
	plans domain.MealPlanRepository,
	recipes domain.RecipeRepository,
	users domain.UserRepository,
	composer *nutrition.Composer,
	log *slog.Logger,
) *PlanService {
	return &PlanService{plans: plans, recipes: recipes, users: users, composer: composer, log: orDefault(log)}
}

// CreatePlan validates and stores a plan for userID.
func (s *PlanService) CreatePlan(ctx context.Context, userID int64, in PlanInput) (*domain.MealPlan, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	start, err := parseDay(in.StartDay)
	if err != nil {
		return nil, err
	}
	end, err := parseDay(in.EndDay)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, fmt.Errorf("%w: end day precedes start day", domain.ErrInvalidInput)
	}
	if !(in.CalorieGoal > 0) || math.IsInf(in.CalorieGoal, 0) {
		return nil, fmt.Errorf("%w: calorie goal must be positive", domain.ErrInvalidInput)
	}

	return s.plans.CreatePlan(ctx, domain.MealPlan{
		UserID:      userID,
		Name:        name,
		StartDay:    start.Format(domain.DayLayout),
		EndDay:      end.Format(domain.DayLayout),
		CalorieGoal: in.CalorieGoal,
		Notes:       strings.TrimSpace(in.Notes),
	})
}

// GetPlan returns a plan owned by userID.
func (s *PlanService) GetPlan(ctx context.Context, userID, planID int64) (*domain.MealPlan, error) {
	p, err := s.plans.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, fmt.Errorf("plan %d: %w", planID, domain.ErrNotFound)
	}
	return p, nil
}

// ListPlans returns the plans owned by userID.
func (s *PlanService) ListPlans(ctx context.Context, userID int64) ([]domain.MealPlan, error) {
	return s.plans.ListPlans(ctx, userID)
}

// Meals returns a plan's meals with their recipes.
func (s *PlanService) Meals(ctx context.Context, userID, planID int64) ([]domain.Meal, error) {
	if _, err := s.GetPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	return s.loadMeals(ctx, planID)
}

// AddMeal adds a meal to a plan. The day is not required to fall within the
// plan's range.
func (s *PlanService) AddMeal(ctx context.Context, userID, planID int64, in MealInput) (*domain.Meal, error) {
	if _, err := s.GetPlan(ctx, userID, planID); err != nil {
		return nil, err
	}
	if !in.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown meal type %q", domain.ErrInvalidInput, in.Type)
	}
	day, err := parseDay(in.Day)
	if err != nil {
		return nil, err
	}
	return s.plans.AddMeal(ctx, domain.Meal{PlanID: planID, Type: in.Type, Day: day.Format(domain.DayLayout)})
}

// AddRecipeToMeal links a recipe to a meal of a plan owned by userID.
func (s *PlanService) AddRecipeToMeal(ctx context.Context, userID, mealID, recipeID int64) error {
	m, err := s.plans.GetMeal(ctx, mealID)
	if err != nil {
		return err
	}
	if _, err := s.GetPlan(ctx, userID, m.PlanID); err != nil {
		return fmt.Errorf("meal %d: %w", mealID, domain.ErrNotFound)
	}
	if _, err := s.recipes.GetRecipe(ctx, recipeID); err != nil {
		return fmt.Errorf("recipe %d: %w", recipeID, err)
	}
	return s.plans.AddRecipeToMeal(ctx, mealID, recipeID)
}

// Progress rolls a plan's meals up against its calorie goal. With
// withinDates only meals dated inside the plan's range count. The status is
// judged against the owner's dietary goal.
func (s *PlanService) Progress(ctx context.Context, userID, planID int64, withinDates bool) (_ nutrition.PlanProgress, err error) {
	ctx, span := startSpan(ctx, "PlanService.Progress",
		attribute.Int64("plan.id", planID), attribute.Bool("within_dates", withinDates))
	defer func() { endSpan(span, err) }()

	plan, err := s.GetPlan(ctx, userID, planID)
	if err != nil {
		return nutrition.PlanProgress{}, err
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nutrition.PlanProgress{}, err
	}
	meals, err := s.loadMeals(ctx, planID)
	if err != nil {
		return nutrition.PlanProgress{}, err
	}

	progress, err := s.composer.PlanProgress(*plan, meals, nutrition.RollupOptions{
		WithinPlanDates: withinDates,
		Goal:            user.Goal,
	})
	if err != nil {
		return nutrition.PlanProgress{}, err
	}
	s.log.Debug("plan progress computed",
		"plan_id", planID, "meals", len(progress.Meals), "excluded", progress.ExcludedMeals, "status", progress.Status)
	return progress, nil
}

// loadMeals fetches the plan's meals and loads each meal's recipes in parallel.
func (s *PlanService) loadMeals(ctx context.Context, planID int64) ([]domain.Meal, error) {
	meals, err := s.plans.MealsForPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelMealLoads)
	for i := range meals {
		g.Go(func() error {
			recipes, err := s.plans.RecipesForMeal(gctx, meals[i].ID)
			if err != nil {
				return fmt.Errorf("meal %d: %w", meals[i].ID, err)
			}
			meals[i].Recipes = recipes
			for _, r := range recipes {
				meals[i].TotalCalories += r.TotalCalories
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meals, nil
}

func parseDay(s string) (time.Time, error) {
	t, err := time.Parse(domain.DayLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: day %q must be YYYY-MM-DD", domain.ErrInvalidInput, s)
	}
	return t, nil
}
