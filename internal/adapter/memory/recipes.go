package memory

import (
	"context"
	"fmt"

	"nutriplan/internal/domain"
)

type useRow struct {
	ID        int64
	FoodID    int64
	QuantityG float64
}

type recipeRow struct {
	recipe domain.Recipe // Ingredients is always nil here
	uses   []useRow
}

// CreateRecipe stores a recipe without ingredients.
func (db *DB) CreateRecipe(ctx context.Context, r domain.Recipe) (*domain.Recipe, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.recipeIDCounter++
	r.ID = db.recipeIDCounter
	r.Ingredients = nil
	r.TotalCalories = 0
	r.CreatedAt = db.now()
	db.recipes[r.ID] = &recipeRow{recipe: r}
	return &r, nil
}

// GetRecipe retrieves a recipe with its ingredient uses and their foods.
func (db *DB) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	row, ok := db.recipes[id]
	if !ok {
		return nil, fmt.Errorf("recipe %d: %w", id, domain.ErrNotFound)
	}
	r := db.hydrate(row)
	return &r, nil
}

// ListRecipes lists recipes ordered by ID, without ingredients.
func (db *DB) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Recipe, 0, len(db.recipes))
	for _, id := range sortedKeys(db.recipes) {
		out = append(out, db.recipes[id].recipe)
	}
	return out, nil
}

// DeleteRecipe deletes a recipe, its ingredient uses and the replacement
// records scoped to them. A recipe attached to a meal cannot be deleted.
func (db *DB) DeleteRecipe(ctx context.Context, id int64) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	row, ok := db.recipes[id]
	if !ok {
		return fmt.Errorf("recipe %d: %w", id, domain.ErrNotFound)
	}
	for mealID, ids := range db.mealRecipes {
		for _, rid := range ids {
			if rid == id {
				return fmt.Errorf("recipe %d used by meal %d: %w", id, mealID, domain.ErrReferentialConflict)
			}
		}
	}
	for _, u := range row.uses {
		db.dropScopedReplacements(u.ID)
	}
	delete(db.recipes, id)
	return nil
}

// UpdateIngredients runs fn while holding the database lock. Ingredient and
// total changes are applied to a working copy that replaces the stored row
// only when fn succeeds.
func (db *DB) UpdateIngredients(ctx context.Context, recipeID int64, fn func(domain.IngredientTx) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	row, ok := db.recipes[recipeID]
	if !ok {
		return fmt.Errorf("recipe %d: %w", recipeID, domain.ErrNotFound)
	}

	tx := &ingredientTx{
		db:    db,
		row:   recipeRow{recipe: row.recipe, uses: append([]useRow(nil), row.uses...)},
		ctxID: recipeID,
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	*row = tx.row
	for _, useID := range tx.removed {
		db.dropScopedReplacements(useID)
	}
	return nil
}

// hydrate builds a domain recipe with foods attached. Caller holds db.mu.
func (db *DB) hydrate(row *recipeRow) domain.Recipe {
	r := row.recipe
	r.Ingredients = make([]domain.RecipeIngredientUse, 0, len(row.uses))
	for _, u := range row.uses {
		r.Ingredients = append(r.Ingredients, domain.RecipeIngredientUse{
			ID:        u.ID,
			RecipeID:  r.ID,
			FoodID:    u.FoodID,
			QuantityG: u.QuantityG,
			Food:      db.foods[u.FoodID],
		})
	}
	return r
}

// dropScopedReplacements deletes replacement records scoped to useID. Caller holds db.mu.
func (db *DB) dropScopedReplacements(useID int64) {
	for id, rep := range db.replacements {
		if rep.RecipeIngredientUseID != nil && *rep.RecipeIngredientUseID == useID {
			delete(db.replacements, id)
		}
	}
}

// ingredientTx is the working copy of one recipe inside UpdateIngredients.
type ingredientTx struct {
	db      *DB
	row     recipeRow
	ctxID   int64
	removed []int64
}

func (tx *ingredientTx) Ingredients(ctx context.Context) ([]domain.RecipeIngredientUse, error) {
	return tx.db.hydrate(&tx.row).Ingredients, nil
}

func (tx *ingredientTx) AddIngredient(ctx context.Context, foodID int64, quantityG float64) (*domain.RecipeIngredientUse, error) {
	f, ok := tx.db.foods[foodID]
	if !ok {
		return nil, fmt.Errorf("food %d: %w", foodID, domain.ErrNotFound)
	}
	tx.db.useIDCounter++
	u := useRow{ID: tx.db.useIDCounter, FoodID: foodID, QuantityG: quantityG}
	tx.row.uses = append(tx.row.uses, u)
	return &domain.RecipeIngredientUse{
		ID: u.ID, RecipeID: tx.ctxID, FoodID: foodID, QuantityG: quantityG, Food: f,
	}, nil
}

func (tx *ingredientTx) SetQuantity(ctx context.Context, useID int64, quantityG float64) error {
	for i := range tx.row.uses {
		if tx.row.uses[i].ID == useID {
			tx.row.uses[i].QuantityG = quantityG
			return nil
		}
	}
	return fmt.Errorf("ingredient %d of recipe %d: %w", useID, tx.ctxID, domain.ErrNotFound)
}

func (tx *ingredientTx) RemoveIngredient(ctx context.Context, useID int64) error {
	for i := range tx.row.uses {
		if tx.row.uses[i].ID == useID {
			tx.row.uses = append(tx.row.uses[:i], tx.row.uses[i+1:]...)
			tx.removed = append(tx.removed, useID)
			return nil
		}
	}
	return fmt.Errorf("ingredient %d of recipe %d: %w", useID, tx.ctxID, domain.ErrNotFound)
}

func (tx *ingredientTx) SetTotalCalories(ctx context.Context, total float64) error {
	tx.row.recipe.TotalCalories = total
	return nil
}

// --- ReplacementRepository ---

// CreateReplacement stores a replacement record. Both foods and the scoped
// ingredient use, when given, must exist.
func (db *DB) CreateReplacement(ctx context.Context, r domain.FoodReplacement) (*domain.FoodReplacement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.foods[r.OriginalFoodID]; !ok {
		return nil, fmt.Errorf("food %d: %w", r.OriginalFoodID, domain.ErrNotFound)
	}
	repl, ok := db.foods[r.ReplacementFoodID]
	if !ok {
		return nil, fmt.Errorf("food %d: %w", r.ReplacementFoodID, domain.ErrNotFound)
	}
	if r.RecipeIngredientUseID != nil && !db.useExists(*r.RecipeIngredientUseID) {
		return nil, fmt.Errorf("ingredient %d: %w", *r.RecipeIngredientUseID, domain.ErrNotFound)
	}

	r.RecipeIngredientUseID = copyID(r.RecipeIngredientUseID)
	db.replacementIDCounter++
	r.ID = db.replacementIDCounter
	r.CreatedAt = db.now()
	r.Replacement = domain.Food{}
	db.replacements[r.ID] = r

	r.Replacement = repl
	return &r, nil
}

// ReplacementCandidates returns records for originalFoodID that are unscoped
// or scoped to useID, ordered by ID.
func (db *DB) ReplacementCandidates(ctx context.Context, originalFoodID, useID int64) ([]domain.FoodReplacement, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	var out []domain.FoodReplacement
	for _, id := range sortedKeys(db.replacements) {
		r := db.replacements[id]
		if r.OriginalFoodID != originalFoodID {
			continue
		}
		if r.RecipeIngredientUseID != nil && *r.RecipeIngredientUseID != useID {
			continue
		}
		r.RecipeIngredientUseID = copyID(r.RecipeIngredientUseID)
		r.Replacement = db.foods[r.ReplacementFoodID]
		out = append(out, r)
	}
	return out, nil
}

func (db *DB) useExists(useID int64) bool {
	for _, row := range db.recipes {
		for _, u := range row.uses {
			if u.ID == useID {
				return true
			}
		}
	}
	return false
}

func copyID(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
