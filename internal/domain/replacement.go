package domain

import (
	"context"
	"time"
)

// ReplacementReason tags why a replacement record exists.
type ReplacementReason string

// Replacement reasons.
const (
	ReasonAllergen     ReplacementReason = "allergen"
	ReasonHealthier    ReplacementReason = "healthier"
	ReasonAvailability ReplacementReason = "availability"
	ReasonPreference   ReplacementReason = "preference"
)

// Valid reports whether r is a known reason.
func (r ReplacementReason) Valid() bool {
	switch r {
	case ReasonAllergen, ReasonHealthier, ReasonAvailability, ReasonPreference:
		return true
	}
	return false
}

// FoodReplacement is a precomputed candidate substitution. When
// RecipeIngredientUseID is set the record applies to that ingredient use only.
// QuantityG is an example quantity, not the use-site quantity.
type FoodReplacement struct {
	ID                    int64             `json:"id"`
	RecipeIngredientUseID *int64            `json:"recipeIngredientUseId,omitempty"`
	OriginalFoodID        int64             `json:"originalFoodId"`
	ReplacementFoodID     int64             `json:"replacementFoodId"`
	QuantityG             float64           `json:"quantityG"`
	SimilarityScore       float64           `json:"similarityScore"`
	Justification         string            `json:"justification"`
	Reason                ReplacementReason `json:"reason"`
	Replacement           Food              `json:"replacement"`
	CreatedAt             time.Time         `json:"createdAt"`
}

// ReplacementRepository is the port for stored replacement candidates.
type ReplacementRepository interface {
	CreateReplacement(ctx context.Context, r FoodReplacement) (*FoodReplacement, error)
	// ReplacementCandidates returns records for originalFoodID that are either
	// unscoped or scoped to useID, with Replacement populated.
	ReplacementCandidates(ctx context.Context, originalFoodID, useID int64) ([]FoodReplacement, error)
}
