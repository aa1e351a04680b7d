package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

// FoodInput is the data needed to register a food.
type FoodInput struct {
	Name      string
	Category  domain.FoodCategory
	Nutrients domain.NutrientProfile
}

// FoodService encapsulates food catalog use cases.
type FoodService struct {
	repo  domain.FoodRepository
	table *nutrition.AllergenTable
	log   *slog.Logger
}

// NewFoodService creates a FoodService backed by the given repository.
func NewFoodService(repo domain.FoodRepository, table *nutrition.AllergenTable, log *slog.Logger) *FoodService {
	return &FoodService{repo: repo, table: table, log: orDefault(log)}
}

// Create validates and stores a food. The normalized name must be unused.
func (s *FoodService) Create(ctx context.Context, in FoodInput) (*domain.Food, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", domain.ErrInvalidInput)
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, in.Category)
	}
	if err := in.Nutrients.Validate(); err != nil {
		return nil, err
	}

	normalized := domain.NormalizeName(name)
	existing, err := s.repo.GetFoodByName(ctx, normalized)
	switch {
	case err == nil && existing != nil:
		return nil, fmt.Errorf("food %q: %w", normalized, domain.ErrDuplicate)
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	return s.repo.CreateFood(ctx, domain.Food{
		Name:           name,
		NormalizedName: normalized,
		Category:       in.Category,
		Nutrients:      in.Nutrients,
	})
}

// Get returns a food by ID.
func (s *FoodService) Get(ctx context.Context, id int64) (*domain.Food, error) {
	return s.repo.GetFood(ctx, id)
}

// List returns all foods, or those in category when it is non-empty.
func (s *FoodService) List(ctx context.Context, category domain.FoodCategory) ([]domain.Food, error) {
	if category != "" && !category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", domain.ErrInvalidInput, category)
	}
	return s.repo.ListFoods(ctx, category)
}

// ListByAllergen returns the foods the allergen table tags with a.
func (s *FoodService) ListByAllergen(ctx context.Context, a domain.Allergen) ([]domain.Food, error) {
	if _, err := domain.ParseAllergen(string(a)); err != nil {
		return nil, err
	}
	all, err := s.repo.ListFoods(ctx, "")
	if err != nil {
		return nil, err
	}
	out := make([]domain.Food, 0, len(all))
	for _, f := range all {
		if s.table.Tags(f).Has(a) {
			out = append(out, f)
		}
	}
	return out, nil
}

// Delete removes a food. It fails with domain.ErrReferentialConflict while a
// recipe or replacement record still references it.
func (s *FoodService) Delete(ctx context.Context, id int64) error {
	err := s.repo.DeleteFood(ctx, id)
	if errors.Is(err, domain.ErrReferentialConflict) {
		s.log.Warn("food delete refused", "food_id", id, "error", err)
	}
	return err
}

// GetByName looks a food up by its normalized name.
func (s *FoodService) GetByName(ctx context.Context, name string) (*domain.Food, error) {
	return s.repo.GetFoodByName(ctx, domain.NormalizeName(name))
}
