// Package nutrition derives nutrient totals for recipes, meals and plans, and
// resolves allergen-safe ingredient substitutions. Everything here is pure:
// callers fetch the data, these functions only compute over it.
package nutrition

import (
	"fmt"
	"math"

	"nutriplan/internal/domain"
)

// Portion is a per-100g nutrient profile eaten at a mass in grams.
type Portion struct {
	Per100g   domain.NutrientProfile
	QuantityG float64
}

// Totals is an aggregate nutrient profile together with the mass it covers.
// HealthScore is the mass-weighted mean of the inputs' scores.
type Totals struct {
	domain.NutrientProfile
	MassG float64 `json:"massG"`
}

// Aggregate folds portions into one Totals. Additive nutrients scale as
// value*quantity/100 and are summed; HealthScore is averaged by mass. An empty
// input yields the zero Totals. Any non-positive quantity fails with
// domain.ErrInvalidQuantity.
func Aggregate(portions []Portion) (Totals, error) {
	var t Totals
	var scoreMass float64
	for i, p := range portions {
		if !validQuantity(p.QuantityG) {
			return Totals{}, fmt.Errorf("portion %d (%vg): %w", i, p.QuantityG, domain.ErrInvalidQuantity)
		}
		t.NutrientProfile = t.NutrientProfile.Plus(amountIn(p.Per100g, p.QuantityG))
		scoreMass += p.Per100g.HealthScore * p.QuantityG
		t.MassG += p.QuantityG
	}
	t.HealthScore = 0
	if t.MassG > 0 {
		t.HealthScore = scoreMass / t.MassG
	}
	return t, nil
}

// Merge combines already aggregated totals. Merging the aggregates of a
// partition equals aggregating the whole, within floating point tolerance.
func Merge(parts ...Totals) Totals {
	var t Totals
	var scoreMass float64
	for _, p := range parts {
		t.NutrientProfile = t.NutrientProfile.Plus(p.NutrientProfile)
		scoreMass += p.HealthScore * p.MassG
		t.MassG += p.MassG
	}
	t.HealthScore = 0
	if t.MassG > 0 {
		t.HealthScore = scoreMass / t.MassG
	}
	return t
}

// AsPortion expresses t as a per-100g profile at its own mass, so it can be
// fed back into Aggregate. It reports false for zero-mass totals.
func (t Totals) AsPortion() (Portion, bool) {
	if t.MassG <= 0 {
		return Portion{}, false
	}
	return Portion{Per100g: t.Scale(100 / t.MassG), QuantityG: t.MassG}, true
}

// Divide returns the additive nutrients split into n equal shares.
func (t Totals) Divide(n int) domain.NutrientProfile {
	if n <= 1 {
		return t.NutrientProfile
	}
	return t.Scale(1 / float64(n))
}

func amountIn(p domain.NutrientProfile, q float64) domain.NutrientProfile {
	return domain.NutrientProfile{
		VitaminCMg:   p.VitaminCMg * q / 100,
		VitaminB11Mg: p.VitaminB11Mg * q / 100,
		SodiumMg:     p.SodiumMg * q / 100,
		CalciumMg:    p.CalciumMg * q / 100,
		IronMg:       p.IronMg * q / 100,
		CarbsG:       p.CarbsG * q / 100,
		FatG:         p.FatG * q / 100,
		FiberG:       p.FiberG * q / 100,
		ProteinG:     p.ProteinG * q / 100,
		SugarG:       p.SugarG * q / 100,
		Calories:     p.Calories * q / 100,
	}
}

func validQuantity(q float64) bool {
	return q > 0 && !math.IsInf(q, 1)
}
