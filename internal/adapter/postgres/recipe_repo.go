package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"nutriplan/internal/domain"
)

const recipeColumns = "id, name, description, portions, prep_time_minutes, total_calories, created_at"

func recipeDest(r *domain.Recipe) []any {
	return []any{&r.ID, &r.Name, &r.Description, &r.Portions, &r.PrepTimeMinutes, &r.TotalCalories, &r.CreatedAt}
}

// CreateRecipe inserts a recipe without ingredients.
func (d *DB) CreateRecipe(ctx context.Context, r domain.Recipe) (*domain.Recipe, error) {
	var out domain.Recipe
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO recipes (name, description, portions, prep_time_minutes, created_at) VALUES ($1, $2, $3, $4, $5) RETURNING "+recipeColumns,
		r.Name, r.Description, r.Portions, r.PrepTimeMinutes, time.Now().UTC(),
	).Scan(recipeDest(&out)...)
	if err != nil {
		return nil, mapErr(err, "recipe "+r.Name)
	}
	return &out, nil
}

// GetRecipe reads a recipe, its ingredient uses and their foods from one snapshot.
func (d *DB) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	var r *domain.Recipe
	err := d.inReadSnapshot(ctx, func(q queryer) error {
		var err error
		r, err = loadRecipe(ctx, q, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// ListRecipes lists recipes ordered by ID, without ingredients.
func (d *DB) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	rows, err := d.sql.QueryContext(ctx, "SELECT "+recipeColumns+" FROM recipes ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Recipe
	for rows.Next() {
		var r domain.Recipe
		if err := rows.Scan(recipeDest(&r)...); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteRecipe deletes a recipe. Ingredient uses and their scoped
// replacements go with it; a recipe attached to a meal is refused.
func (d *DB) DeleteRecipe(ctx context.Context, id int64) error {
	res, err := d.sql.ExecContext(ctx, "DELETE FROM recipes WHERE id = $1", id)
	if err != nil {
		return mapErr(err, fmt.Sprintf("recipe %d", id))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("recipe %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

// UpdateIngredients locks the recipe row for the duration of fn, so edits
// of one recipe are serialized and its cached total is written in the same
// transaction as the ingredient change.
func (d *DB) UpdateIngredients(ctx context.Context, recipeID int64, fn func(domain.IngredientTx) error) error {
	tx, err := d.sql.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var locked int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM recipes WHERE id = $1 FOR UPDATE", recipeID).Scan(&locked); err != nil {
		return mapErr(err, fmt.Sprintf("recipe %d", recipeID))
	}

	if err := fn(&ingredientTx{tx: tx, recipeID: recipeID}); err != nil {
		return err
	}
	return tx.Commit()
}

type ingredientTx struct {
	tx       *sql.Tx
	recipeID int64
}

func (t *ingredientTx) Ingredients(ctx context.Context) ([]domain.RecipeIngredientUse, error) {
	return loadIngredients(ctx, t.tx, t.recipeID)
}

func (t *ingredientTx) AddIngredient(ctx context.Context, foodID int64, quantityG float64) (*domain.RecipeIngredientUse, error) {
	u := domain.RecipeIngredientUse{RecipeID: t.recipeID, FoodID: foodID, QuantityG: quantityG}
	err := t.tx.QueryRowContext(ctx,
		"INSERT INTO recipe_ingredients (recipe_id, food_id, quantity_g) VALUES ($1, $2, $3) RETURNING id",
		t.recipeID, foodID, quantityG,
	).Scan(&u.ID)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("food %d", foodID))
	}
	err = t.tx.QueryRowContext(ctx, "SELECT "+foodColumns+" FROM foods WHERE id = $1", foodID).Scan(foodDest(&u.Food)...)
	if err != nil {
		return nil, mapErr(err, fmt.Sprintf("food %d", foodID))
	}
	return &u, nil
}

func (t *ingredientTx) SetQuantity(ctx context.Context, useID int64, quantityG float64) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE recipe_ingredients SET quantity_g = $1 WHERE id = $2 AND recipe_id = $3",
		quantityG, useID, t.recipeID)
	return checkAffected(res, err, fmt.Sprintf("ingredient %d of recipe %d", useID, t.recipeID))
}

func (t *ingredientTx) RemoveIngredient(ctx context.Context, useID int64) error {
	res, err := t.tx.ExecContext(ctx,
		"DELETE FROM recipe_ingredients WHERE id = $1 AND recipe_id = $2", useID, t.recipeID)
	return checkAffected(res, err, fmt.Sprintf("ingredient %d of recipe %d", useID, t.recipeID))
}

func (t *ingredientTx) SetTotalCalories(ctx context.Context, total float64) error {
	res, err := t.tx.ExecContext(ctx, "UPDATE recipes SET total_calories = $1 WHERE id = $2", total, t.recipeID)
	return checkAffected(res, err, fmt.Sprintf("recipe %d", t.recipeID))
}

func checkAffected(res sql.Result, err error, what string) error {
	if err != nil {
		return mapErr(err, what)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", what, domain.ErrNotFound)
	}
	return nil
}

func loadRecipe(ctx context.Context, q queryer, id int64) (*domain.Recipe, error) {
	var r domain.Recipe
	if err := q.QueryRowContext(ctx, "SELECT "+recipeColumns+" FROM recipes WHERE id = $1", id).Scan(recipeDest(&r)...); err != nil {
		return nil, mapErr(err, fmt.Sprintf("recipe %d", id))
	}
	uses, err := loadIngredients(ctx, q, id)
	if err != nil {
		return nil, err
	}
	r.Ingredients = uses
	return &r, nil
}

func loadIngredients(ctx context.Context, q queryer, recipeID int64) ([]domain.RecipeIngredientUse, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT ri.id, ri.recipe_id, ri.food_id, ri.quantity_g, "+foodColumnsAs("f")+
			" FROM recipe_ingredients ri JOIN foods f ON f.id = ri.food_id WHERE ri.recipe_id = $1 ORDER BY ri.id",
		recipeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.RecipeIngredientUse{}
	for rows.Next() {
		var u domain.RecipeIngredientUse
		dest := append([]any{&u.ID, &u.RecipeID, &u.FoodID, &u.QuantityG}, foodDest(&u.Food)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// --- ReplacementRepository ---

// CreateReplacement inserts a replacement record and returns it with the
// replacement food attached.
func (d *DB) CreateReplacement(ctx context.Context, r domain.FoodReplacement) (*domain.FoodReplacement, error) {
	var useID sql.NullInt64
	if r.RecipeIngredientUseID != nil {
		useID = sql.NullInt64{Int64: *r.RecipeIngredientUseID, Valid: true}
	}
	err := d.sql.QueryRowContext(ctx,
		"INSERT INTO food_replacements (recipe_ingredient_id, original_food_id, replacement_food_id, quantity_g, similarity_score, justification, reason, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id, created_at",
		useID, r.OriginalFoodID, r.ReplacementFoodID, r.QuantityG, r.SimilarityScore, r.Justification, string(r.Reason), time.Now().UTC(),
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "replacement")
	}
	f, err := d.GetFood(ctx, r.ReplacementFoodID)
	if err != nil {
		return nil, err
	}
	r.Replacement = *f
	return &r, nil
}

// ReplacementCandidates returns records for originalFoodID that are unscoped
// or scoped to useID, ordered by ID.
func (d *DB) ReplacementCandidates(ctx context.Context, originalFoodID, useID int64) ([]domain.FoodReplacement, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT r.id, r.recipe_ingredient_id, r.original_food_id, r.replacement_food_id, r.quantity_g, r.similarity_score, r.justification, r.reason, r.created_at, "+
			foodColumnsAs("f")+
			" FROM food_replacements r JOIN foods f ON f.id = r.replacement_food_id"+
			" WHERE r.original_food_id = $1 AND (r.recipe_ingredient_id IS NULL OR r.recipe_ingredient_id = $2) ORDER BY r.id",
		originalFoodID, useID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.FoodReplacement
	for rows.Next() {
		var (
			r     domain.FoodReplacement
			scope sql.NullInt64
		)
		dest := append([]any{&r.ID, &scope, &r.OriginalFoodID, &r.ReplacementFoodID, &r.QuantityG,
			&r.SimilarityScore, &r.Justification, &r.Reason, &r.CreatedAt}, foodDest(&r.Replacement)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		if scope.Valid {
			r.RecipeIngredientUseID = &scope.Int64
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
