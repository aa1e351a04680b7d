package nutrition

import (
	"fmt"
	"math"

	"nutriplan/internal/domain"
)

// Outcome classifies a substitution resolution.
type Outcome int

// Resolution outcomes.
const (
	NoSubstitutionNeeded Outcome = iota
	Substituted
	NoAdmissibleCandidate
)

func (o Outcome) String() string {
	switch o {
	case NoSubstitutionNeeded:
		return "no_substitution_needed"
	case Substituted:
		return "substituted"
	case NoAdmissibleCandidate:
		return "no_admissible_candidate"
	}
	return "unknown"
}

// MarshalText encodes the outcome by name.
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// Resolution is the result of resolving one ingredient use. Candidate, Food
// and QuantityG are only set when Outcome is Substituted.
type Resolution struct {
	Outcome   Outcome                    `json:"outcome"`
	Use       domain.RecipeIngredientUse `json:"use"`
	Conflicts domain.AllergenSet         `json:"conflicts"`
	Candidate *domain.FoodReplacement    `json:"candidate,omitempty"`
	Food      *domain.Food               `json:"food,omitempty"`
	QuantityG float64                    `json:"quantityG,omitempty"`
}

// scoreTolerance is how close two similarity scores must be to count as tied.
const scoreTolerance = 1e-9

// Resolver picks allergen-safe replacements among stored candidate records.
// It holds no mutable state and is safe for concurrent use.
type Resolver struct {
	table *AllergenTable
}

// NewResolver creates a Resolver backed by the given allergen table.
func NewResolver(table *AllergenTable) *Resolver {
	return &Resolver{table: table}
}

// Resolve decides whether use must be substituted for a user with the given
// allergens and, if so, which candidate replaces it and at what quantity.
//
// An admissible ingredient is never substituted. Otherwise candidates scoped
// to the use are preferred over general records for the same food; candidates
// whose replacement is itself inadmissible are discarded; the highest
// similarity wins, and ties go to the stored quantity closest to the
// calorie-preserving quantity. The returned quantity is always recomputed for
// caloric parity at the use-site mass.
func (r *Resolver) Resolve(use domain.RecipeIngredientUse, candidates []domain.FoodReplacement, user domain.AllergenSet) (Resolution, error) {
	if !validQuantity(use.QuantityG) {
		return Resolution{}, fmt.Errorf("ingredient %d: %w", use.ID, domain.ErrInvalidQuantity)
	}

	res := Resolution{Use: use, Conflicts: r.table.Conflicts(use.Food, user)}
	if res.Conflicts.Empty() {
		res.Outcome = NoSubstitutionNeeded
		return res, nil
	}

	var best *domain.FoodReplacement
	var bestDistance float64
	for _, i := range scope(use, candidates) {
		c := &candidates[i]
		if !r.usable(use, c, user) {
			continue
		}
		d := math.Abs(c.QuantityG - CaloricParityQuantity(use.QuantityG, use.Food.Nutrients.Calories, c.Replacement.Nutrients.Calories))
		if best == nil || ranksAbove(c, d, best, bestDistance) {
			best, bestDistance = c, d
		}
	}

	if best == nil {
		res.Outcome = NoAdmissibleCandidate
		return res, nil
	}

	chosen := *best
	food := chosen.Replacement
	res.Outcome = Substituted
	res.Candidate = &chosen
	res.Food = &food
	res.QuantityG = CaloricParityQuantity(use.QuantityG, use.Food.Nutrients.Calories, food.Nutrients.Calories)
	return res, nil
}

// scope returns the indexes of the candidates that apply to use: the records
// scoped to this use when any exist, else every record for the use's food.
func scope(use domain.RecipeIngredientUse, candidates []domain.FoodReplacement) []int {
	var specific, general []int
	for i, c := range candidates {
		if c.OriginalFoodID != use.FoodID {
			continue
		}
		switch {
		case c.RecipeIngredientUseID == nil:
			general = append(general, i)
		case *c.RecipeIngredientUseID == use.ID:
			specific = append(specific, i)
		}
	}
	if len(specific) > 0 {
		return specific
	}
	return general
}

func (r *Resolver) usable(use domain.RecipeIngredientUse, c *domain.FoodReplacement, user domain.AllergenSet) bool {
	// Without the replacement's food record its safety cannot be checked.
	if c.Replacement.ID == 0 || c.Replacement.ID != c.ReplacementFoodID {
		return false
	}
	if c.ReplacementFoodID == use.FoodID {
		return false
	}
	return r.table.IsAdmissible(c.Replacement, user)
}

// ranksAbove reports whether candidate c at parity distance d beats best.
// Remaining ties fall to the lower replacement food ID, then record ID, so the
// choice does not depend on candidate order.
func ranksAbove(c *domain.FoodReplacement, d float64, best *domain.FoodReplacement, bestD float64) bool {
	if diff := c.SimilarityScore - best.SimilarityScore; math.Abs(diff) > scoreTolerance {
		return diff > 0
	}
	if diff := d - bestD; math.Abs(diff) > scoreTolerance {
		return diff < 0
	}
	if c.ReplacementFoodID != best.ReplacementFoodID {
		return c.ReplacementFoodID < best.ReplacementFoodID
	}
	return c.ID < best.ID
}

// CaloricParityQuantity is the replacement mass that supplies the same
// calories as quantityG of the original. When either caloric density is not
// positive no parity exists and the original mass is kept.
func CaloricParityQuantity(quantityG, originalKcal, replacementKcal float64) float64 {
	if originalKcal <= 0 || replacementKcal <= 0 {
		return quantityG
	}
	q := quantityG * (originalKcal / replacementKcal)
	if !validQuantity(q) {
		return quantityG
	}
	return q
}
