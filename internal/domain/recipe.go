package domain

import (
	"context"
	"time"
)

// RecipeIngredientUse is one ingredient line of a recipe: a food at a mass in grams.
// Food is populated by repository reads.
type RecipeIngredientUse struct {
	ID        int64   `json:"id"`
	RecipeID  int64   `json:"recipeId"`
	FoodID    int64   `json:"foodId"`
	QuantityG float64 `json:"quantityG"`
	Food      Food    `json:"food"`
}

// Recipe is a named composition of ingredient uses. TotalCalories is a cache
// of the aggregate over Ingredients and is rewritten by every ingredient change.
type Recipe struct {
	ID              int64                 `json:"id"`
	Name            string                `json:"name"`
	Description     string                `json:"description,omitempty"`
	Portions        int                   `json:"portions"`
	PrepTimeMinutes int                   `json:"prepTimeMinutes"`
	Ingredients     []RecipeIngredientUse `json:"ingredients"`
	TotalCalories   float64               `json:"totalCalories"`
	CreatedAt       time.Time             `json:"createdAt"`
}

// IngredientTx is a unit of work over one recipe's ingredient set. Every call
// observes the writes made earlier in the same unit, and none of them are
// visible to other readers until the unit commits.
type IngredientTx interface {
	Ingredients(ctx context.Context) ([]RecipeIngredientUse, error)
	AddIngredient(ctx context.Context, foodID int64, quantityG float64) (*RecipeIngredientUse, error)
	SetQuantity(ctx context.Context, useID int64, quantityG float64) error
	RemoveIngredient(ctx context.Context, useID int64) error
	SetTotalCalories(ctx context.Context, total float64) error
}

// RecipeRepository is the port for recipe persistence.
type RecipeRepository interface {
	CreateRecipe(ctx context.Context, r Recipe) (*Recipe, error)
	// GetRecipe returns the recipe with its ingredient uses and their foods,
	// read from a single consistent snapshot.
	GetRecipe(ctx context.Context, id int64) (*Recipe, error)
	ListRecipes(ctx context.Context) ([]Recipe, error)
	DeleteRecipe(ctx context.Context, id int64) error
	// UpdateIngredients runs fn as one unit of work, serialized against other
	// updates of the same recipe. If fn returns an error nothing is applied.
	UpdateIngredients(ctx context.Context, recipeID int64, fn func(tx IngredientTx) error) error
}
