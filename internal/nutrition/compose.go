package nutrition

import (
	"fmt"

	"nutriplan/internal/domain"
)

// UnresolvableAllergenError reports the first ingredient of a recipe that
// conflicts with the user's allergens and has no admissible substitute.
type UnresolvableAllergenError struct {
	RecipeID  int64
	UseID     int64
	FoodID    int64
	FoodName  string
	Allergens domain.AllergenSet
}

func (e *UnresolvableAllergenError) Error() string {
	return fmt.Sprintf("recipe %d: ingredient %d (%s) contains %v and has no admissible substitute",
		e.RecipeID, e.UseID, e.FoodName, e.Allergens.List())
}

// Is makes errors.Is(err, domain.ErrUnresolvableAllergen) hold.
func (e *UnresolvableAllergenError) Is(target error) bool {
	return target == domain.ErrUnresolvableAllergen
}

// SubstitutionRequest asks the composer to make a recipe safe for a user.
// Candidates holds the stored replacement records keyed by ingredient use ID;
// uses without an entry have no candidates.
type SubstitutionRequest struct {
	Allergens  domain.AllergenSet
	Candidates map[int64][]domain.FoodReplacement
}

// RecipeNutrition is the computed nutrition of one recipe.
type RecipeNutrition struct {
	RecipeID      int64                  `json:"recipeId"`
	Portions      int                    `json:"portions"`
	Totals        Totals                 `json:"totals"`
	PerPortion    domain.NutrientProfile `json:"perPortion"`
	Substitutions []Resolution           `json:"substitutions,omitempty"`
}

// Composer computes recipe and plan nutrition.
type Composer struct {
	table    *AllergenTable
	resolver *Resolver
}

// NewComposer creates a Composer using the given allergen table for substitutions.
func NewComposer(table *AllergenTable) *Composer {
	return &Composer{table: table, resolver: NewResolver(table)}
}

// Resolver returns the composer's substitution resolver.
func (c *Composer) Resolver() *Resolver { return c.resolver }

// Table returns the composer's allergen table.
func (c *Composer) Table() *AllergenTable { return c.table }

// RecipeProfile aggregates a recipe's ingredients. With a nil request every
// ingredient is used as stored. With a request each ingredient is resolved
// first and replaced where needed; if any cannot be made safe the whole
// computation fails with *UnresolvableAllergenError and no totals.
func (c *Composer) RecipeProfile(r domain.Recipe, subs *SubstitutionRequest) (RecipeNutrition, error) {
	out := RecipeNutrition{RecipeID: r.ID, Portions: r.Portions}
	portions := make([]Portion, 0, len(r.Ingredients))

	for _, use := range r.Ingredients {
		if err := checkFood(use); err != nil {
			return RecipeNutrition{}, fmt.Errorf("recipe %d: %w", r.ID, err)
		}
		p := Portion{Per100g: use.Food.Nutrients, QuantityG: use.QuantityG}

		if subs != nil {
			res, err := c.resolver.Resolve(use, subs.Candidates[use.ID], subs.Allergens)
			if err != nil {
				return RecipeNutrition{}, fmt.Errorf("recipe %d: %w", r.ID, err)
			}
			switch res.Outcome {
			case NoAdmissibleCandidate:
				return RecipeNutrition{}, &UnresolvableAllergenError{
					RecipeID:  r.ID,
					UseID:     use.ID,
					FoodID:    use.FoodID,
					FoodName:  use.Food.Name,
					Allergens: res.Conflicts,
				}
			case Substituted:
				p = Portion{Per100g: res.Food.Nutrients, QuantityG: res.QuantityG}
				out.Substitutions = append(out.Substitutions, res)
			}
		}
		portions = append(portions, p)
	}

	totals, err := Aggregate(portions)
	if err != nil {
		return RecipeNutrition{}, fmt.Errorf("recipe %d: %w", r.ID, err)
	}
	out.Totals = totals
	out.PerPortion = totals.Divide(r.Portions)
	return out, nil
}

// RecipeCalories is the value cached in Recipe.TotalCalories for the given
// ingredient set.
func RecipeCalories(uses []domain.RecipeIngredientUse) (float64, error) {
	portions := make([]Portion, 0, len(uses))
	for _, use := range uses {
		if err := checkFood(use); err != nil {
			return 0, err
		}
		portions = append(portions, Portion{Per100g: use.Food.Nutrients, QuantityG: use.QuantityG})
	}
	t, err := Aggregate(portions)
	if err != nil {
		return 0, err
	}
	return t.Calories, nil
}

func checkFood(use domain.RecipeIngredientUse) error {
	if use.Food.ID == 0 || use.Food.ID != use.FoodID {
		return fmt.Errorf("ingredient %d: food %d: %w", use.ID, use.FoodID, domain.ErrNotFound)
	}
	return nil
}
