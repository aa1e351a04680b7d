package memory

import (
	"context"
	"fmt"

	"nutriplan/internal/domain"
)

// CreateFood stores a food. The normalized name must be unused.
func (db *DB) CreateFood(ctx context.Context, f domain.Food) (*domain.Food, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if f.NormalizedName == "" {
		f.NormalizedName = domain.NormalizeName(f.Name)
	}
	for _, existing := range db.foods {
		if existing.NormalizedName == f.NormalizedName {
			return nil, fmt.Errorf("food %q: %w", f.NormalizedName, domain.ErrDuplicate)
		}
	}

	db.foodIDCounter++
	f.ID = db.foodIDCounter
	f.CreatedAt = db.now()
	db.foods[f.ID] = f
	return &f, nil
}

// GetFood retrieves a food by ID.
func (db *DB) GetFood(ctx context.Context, id int64) (*domain.Food, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	f, ok := db.foods[id]
	if !ok {
		return nil, fmt.Errorf("food %d: %w", id, domain.ErrNotFound)
	}
	return &f, nil
}

// GetFoodByName retrieves a food by normalized name.
func (db *DB) GetFoodByName(ctx context.Context, normalizedName string) (*domain.Food, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, f := range db.foods {
		if f.NormalizedName == normalizedName {
			return &f, nil
		}
	}
	return nil, fmt.Errorf("food %q: %w", normalizedName, domain.ErrNotFound)
}

// ListFoods lists foods ordered by ID, optionally restricted to one category.
func (db *DB) ListFoods(ctx context.Context, category domain.FoodCategory) ([]domain.Food, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Food, 0, len(db.foods))
	for _, id := range sortedKeys(db.foods) {
		f := db.foods[id]
		if category == "" || f.Category == category {
			out = append(out, f)
		}
	}
	return out, nil
}

// DeleteFood deletes an unreferenced food.
func (db *DB) DeleteFood(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.foods[id]; !ok {
		return fmt.Errorf("food %d: %w", id, domain.ErrNotFound)
	}
	for _, r := range db.recipes {
		for _, u := range r.uses {
			if u.FoodID == id {
				return fmt.Errorf("food %d used by recipe %d: %w", id, r.recipe.ID, domain.ErrReferentialConflict)
			}
		}
	}
	for _, rep := range db.replacements {
		if rep.OriginalFoodID == id || rep.ReplacementFoodID == id {
			return fmt.Errorf("food %d used by replacement %d: %w", id, rep.ID, domain.ErrReferentialConflict)
		}
	}
	delete(db.foods, id)
	return nil
}
