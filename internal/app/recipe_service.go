package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

// RecipeInput is the data needed to create a recipe.
type RecipeInput struct {
	Name            string
	Description     string
	Portions        int
	PrepTimeMinutes int
	Ingredients     []IngredientInput
}

// IngredientInput names a food and its mass in grams.
type IngredientInput struct {
	FoodID    int64
	QuantityG float64
}

// RecipeService encapsulates recipe use cases. Every ingredient change
// rewrites the recipe's cached calorie total in the same unit of work.
type RecipeService struct {
	recipes      domain.RecipeRepository
	foods        domain.FoodRepository
	replacements domain.ReplacementRepository
	users        domain.UserRepository
	composer     *nutrition.Composer
	log          *slog.Logger
}

// NewRecipeService creates a RecipeService.
func NewRecipeService(
	recipes domain.RecipeRepository,
	foods domain.FoodRepository,
	replacements domain.ReplacementRepository,
	users domain.UserRepository,
	composer *nutrition.Composer,
	log *slog.Logger,
) *RecipeService {
	return &RecipeService{
		recipes:      recipes,
		foods:        foods,
		replacements: replacements,
		users:        users,
		composer:     composer,
		log:          orDefault(log),
	}
}

// Create stores a recipe and then adds its ingredients, so the cached total
// is derived the same way as for later edits.
func (s *RecipeService) Create(ctx context.Context, in RecipeInput) (*domain.Recipe, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if in.Portions == 0 {
		in.Portions = 1
	}
	if in.Portions < 0 {
		return nil, fmt.Errorf("%w: portions must be positive", domain.ErrInvalidInput)
	}
	if in.PrepTimeMinutes < 0 {
		return nil, fmt.Errorf("%w: prep time cannot be negative", domain.ErrInvalidInput)
	}
	for i, ing := range in.Ingredients {
		if err := checkQuantity(ing.QuantityG); err != nil {
			return nil, fmt.Errorf("ingredient %d: %w", i, err)
		}
		if _, err := s.foods.GetFood(ctx, ing.FoodID); err != nil {
			return nil, fmt.Errorf("ingredient %d: food %d: %w", i, ing.FoodID, err)
		}
	}

	r, err := s.recipes.CreateRecipe(ctx, domain.Recipe{
		Name:            name,
		Description:     strings.TrimSpace(in.Description),
		Portions:        in.Portions,
		PrepTimeMinutes: in.PrepTimeMinutes,
	})
	if err != nil {
		return nil, err
	}
	if len(in.Ingredients) > 0 {
		err = s.mutate(ctx, r.ID, "create", func(tx domain.IngredientTx) error {
			for _, ing := range in.Ingredients {
				if _, err := tx.AddIngredient(ctx, ing.FoodID, ing.QuantityG); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			if derr := s.recipes.DeleteRecipe(ctx, r.ID); derr != nil {
				s.log.Error("failed to remove partially created recipe", "recipe_id", r.ID, "error", derr)
			}
			return nil, err
		}
	}
	return s.recipes.GetRecipe(ctx, r.ID)
}

// Get returns a recipe with its ingredients.
func (s *RecipeService) Get(ctx context.Context, id int64) (*domain.Recipe, error) {
	return s.recipes.GetRecipe(ctx, id)
}

// List returns all recipes without ingredients.
func (s *RecipeService) List(ctx context.Context) ([]domain.Recipe, error) {
	return s.recipes.ListRecipes(ctx)
}

// Delete removes a recipe with its ingredient uses and scoped replacements.
func (s *RecipeService) Delete(ctx context.Context, id int64) error {
	return s.recipes.DeleteRecipe(ctx, id)
}

// AddIngredient appends a food to a recipe.
func (s *RecipeService) AddIngredient(ctx context.Context, recipeID int64, in IngredientInput) (*domain.RecipeIngredientUse, error) {
	if err := checkQuantity(in.QuantityG); err != nil {
		return nil, err
	}
	if _, err := s.foods.GetFood(ctx, in.FoodID); err != nil {
		return nil, fmt.Errorf("food %d: %w", in.FoodID, err)
	}
	var added *domain.RecipeIngredientUse
	err := s.mutate(ctx, recipeID, "add", func(tx domain.IngredientTx) error {
		var err error
		added, err = tx.AddIngredient(ctx, in.FoodID, in.QuantityG)
		return err
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateQuantity changes the mass of one ingredient use.
func (s *RecipeService) UpdateQuantity(ctx context.Context, recipeID, useID int64, quantityG float64) error {
	if err := checkQuantity(quantityG); err != nil {
		return err
	}
	return s.mutate(ctx, recipeID, "update", func(tx domain.IngredientTx) error {
		return tx.SetQuantity(ctx, useID, quantityG)
	})
}

// RemoveIngredient deletes one ingredient use.
func (s *RecipeService) RemoveIngredient(ctx context.Context, recipeID, useID int64) error {
	return s.mutate(ctx, recipeID, "remove", func(tx domain.IngredientTx) error {
		return tx.RemoveIngredient(ctx, useID)
	})
}

// mutate applies change and rewrites the cached total from the resulting
// ingredient set. The total is the last write of the unit.
func (s *RecipeService) mutate(ctx context.Context, recipeID int64, op string, change func(domain.IngredientTx) error) (err error) {
	ctx, span := startSpan(ctx, "RecipeService.mutate",
		attribute.Int64("recipe.id", recipeID), attribute.String("operation", op))
	defer func() { endSpan(span, err) }()

	err = s.recipes.UpdateIngredients(ctx, recipeID, func(tx domain.IngredientTx) error {
		if err := change(tx); err != nil {
			return err
		}
		uses, err := tx.Ingredients(ctx)
		if err != nil {
			return err
		}
		total, err := nutrition.RecipeCalories(uses)
		if err != nil {
			return err
		}
		return tx.SetTotalCalories(ctx, total)
	})
	if err != nil {
		return err
	}
	recipeRecomputes.WithLabelValues(op).Inc()
	return nil
}

// Profile computes a recipe's nutrition. With userID zero the ingredients are
// used as stored; otherwise they are made safe for that user's allergens.
func (s *RecipeService) Profile(ctx context.Context, recipeID, userID int64) (_ nutrition.RecipeNutrition, err error) {
	ctx, span := startSpan(ctx, "RecipeService.Profile",
		attribute.Int64("recipe.id", recipeID), attribute.Bool("safe", userID != 0))
	defer func() { endSpan(span, err) }()

	r, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return nutrition.RecipeNutrition{}, err
	}
	if userID == 0 {
		return s.composer.RecipeProfile(*r, nil)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nutrition.RecipeNutrition{}, err
	}
	req, err := s.substitutionRequest(ctx, *r, user.Allergens)
	if err != nil {
		return nutrition.RecipeNutrition{}, err
	}

	out, err := s.composer.RecipeProfile(*r, req)
	var unresolvable *nutrition.UnresolvableAllergenError
	if errors.As(err, &unresolvable) {
		unresolvableRecipes.Inc()
		s.log.Warn("recipe cannot be made allergen safe",
			"recipe_id", recipeID, "user_id", userID, "use_id", unresolvable.UseID)
		return nutrition.RecipeNutrition{}, err
	}
	if err != nil {
		return nutrition.RecipeNutrition{}, err
	}
	for _, res := range out.Substitutions {
		substitutionOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	}
	return out, nil
}

// substitutionRequest loads candidates only for the ingredients that conflict
// with allergens.
func (s *RecipeService) substitutionRequest(ctx context.Context, r domain.Recipe, allergens domain.AllergenSet) (*nutrition.SubstitutionRequest, error) {
	req := &nutrition.SubstitutionRequest{
		Allergens:  allergens,
		Candidates: make(map[int64][]domain.FoodReplacement),
	}
	table := s.composer.Table()
	for _, use := range r.Ingredients {
		if table.IsAdmissible(use.Food, allergens) {
			continue
		}
		cands, err := s.replacements.ReplacementCandidates(ctx, use.FoodID, use.ID)
		if err != nil {
			return nil, fmt.Errorf("ingredient %d: %w", use.ID, err)
		}
		req.Candidates[use.ID] = cands
	}
	return req, nil
}

func checkQuantity(q float64) error {
	if !(q > 0) || math.IsInf(q, 0) {
		return domain.ErrInvalidQuantity
	}
	return nil
}
