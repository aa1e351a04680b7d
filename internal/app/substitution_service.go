package app

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

// ReplacementInput is the data needed to store a replacement candidate.
type ReplacementInput struct {
	RecipeIngredientUseID *int64
	OriginalFoodID        int64
	ReplacementFoodID     int64
	QuantityG             float64
	SimilarityScore       float64
	Justification         string
	Reason                domain.ReplacementReason
}

// SubstitutionService manages replacement candidates and resolves single
// ingredient substitutions.
type SubstitutionService struct {
	replacements domain.ReplacementRepository
	foods        domain.FoodRepository
	recipes      domain.RecipeRepository
	users        domain.UserRepository
	resolver     *nutrition.Resolver
	log          *slog.Logger
}

// NewSubstitutionService creates a SubstitutionService.
func NewSubstitutionService(
	replacements domain.ReplacementRepository,
	foods domain.FoodRepository,
	recipes domain.RecipeRepository,
	users domain.UserRepository,
	resolver *nutrition.Resolver,
	log *slog.Logger,
) *SubstitutionService {
	return &SubstitutionService{
		replacements: replacements,
		foods:        foods,
		recipes:      recipes,
		users:        users,
		resolver:     resolver,
		log:          orDefault(log),
	}
}

// CreateReplacement validates and stores a candidate record. A scoped record
// must name an ingredient use of the original food.
func (s *SubstitutionService) CreateReplacement(ctx context.Context, in ReplacementInput) (*domain.FoodReplacement, error) {
	if in.OriginalFoodID == in.ReplacementFoodID {
		return nil, fmt.Errorf("%w: a food cannot replace itself", domain.ErrInvalidInput)
	}
	if math.IsNaN(in.SimilarityScore) || in.SimilarityScore < 0 || in.SimilarityScore > 1 {
		return nil, fmt.Errorf("%w: similarity score must be within [0, 1]", domain.ErrInvalidInput)
	}
	if err := checkQuantity(in.QuantityG); err != nil {
		return nil, err
	}
	if in.Reason == "" {
		in.Reason = domain.ReasonAllergen
	}
	if !in.Reason.Valid() {
		return nil, fmt.Errorf("%w: unknown reason %q", domain.ErrInvalidInput, in.Reason)
	}
	if _, err := s.foods.GetFood(ctx, in.OriginalFoodID); err != nil {
		return nil, fmt.Errorf("original food %d: %w", in.OriginalFoodID, err)
	}
	if _, err := s.foods.GetFood(ctx, in.ReplacementFoodID); err != nil {
		return nil, fmt.Errorf("replacement food %d: %w", in.ReplacementFoodID, err)
	}

	return s.replacements.CreateReplacement(ctx, domain.FoodReplacement{
		RecipeIngredientUseID: in.RecipeIngredientUseID,
		OriginalFoodID:        in.OriginalFoodID,
		ReplacementFoodID:     in.ReplacementFoodID,
		QuantityG:             in.QuantityG,
		SimilarityScore:       in.SimilarityScore,
		Justification:         strings.TrimSpace(in.Justification),
		Reason:                in.Reason,
	})
}

// Candidates returns the stored candidates that apply to one ingredient use.
func (s *SubstitutionService) Candidates(ctx context.Context, recipeID, useID int64) ([]domain.FoodReplacement, error) {
	use, err := s.findUse(ctx, recipeID, useID)
	if err != nil {
		return nil, err
	}
	return s.replacements.ReplacementCandidates(ctx, use.FoodID, use.ID)
}

// Resolve decides the substitution of one ingredient use for a user.
func (s *SubstitutionService) Resolve(ctx context.Context, recipeID, useID, userID int64) (_ nutrition.Resolution, err error) {
	ctx, span := startSpan(ctx, "SubstitutionService.Resolve",
		attribute.Int64("recipe.id", recipeID), attribute.Int64("use.id", useID))
	defer func() { endSpan(span, err) }()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nutrition.Resolution{}, err
	}
	use, err := s.findUse(ctx, recipeID, useID)
	if err != nil {
		return nutrition.Resolution{}, err
	}
	cands, err := s.replacements.ReplacementCandidates(ctx, use.FoodID, use.ID)
	if err != nil {
		return nutrition.Resolution{}, err
	}

	res, err := s.resolver.Resolve(*use, cands, user.Allergens)
	if err != nil {
		return nutrition.Resolution{}, err
	}
	substitutionOutcomes.WithLabelValues(res.Outcome.String()).Inc()
	s.log.Debug("resolved substitution",
		"recipe_id", recipeID, "use_id", useID, "outcome", res.Outcome.String(), "candidates", len(cands))
	return res, nil
}

func (s *SubstitutionService) findUse(ctx context.Context, recipeID, useID int64) (*domain.RecipeIngredientUse, error) {
	r, err := s.recipes.GetRecipe(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	for i := range r.Ingredients {
		if r.Ingredients[i].ID == useID {
			return &r.Ingredients[i], nil
		}
	}
	return nil, fmt.Errorf("ingredient %d of recipe %d: %w", useID, recipeID, domain.ErrNotFound)
}
