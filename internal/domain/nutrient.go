package domain

import (
	"fmt"
	"math"
)

// NutrientProfile is a nutrient vector. On a Food it is expressed per 100 g;
// on an aggregate it holds absolute totals.
type NutrientProfile struct {
	VitaminCMg   float64 `json:"vitaminCMg"`
	VitaminB11Mg float64 `json:"vitaminB11Mg"`
	SodiumMg     float64 `json:"sodiumMg"`
	CalciumMg    float64 `json:"calciumMg"`
	IronMg       float64 `json:"ironMg"`
	CarbsG       float64 `json:"carbsG"`
	FatG         float64 `json:"fatG"`
	FiberG       float64 `json:"fiberG"`
	ProteinG     float64 `json:"proteinG"`
	SugarG       float64 `json:"sugarG"`
	Calories     float64 `json:"calories"`
	HealthScore  float64 `json:"healthScore"`
}

// Scale returns the additive fields multiplied by factor. HealthScore is a
// quality index, not an amount, and is carried over unchanged.
func (p NutrientProfile) Scale(factor float64) NutrientProfile {
	return NutrientProfile{
		VitaminCMg:   p.VitaminCMg * factor,
		VitaminB11Mg: p.VitaminB11Mg * factor,
		SodiumMg:     p.SodiumMg * factor,
		CalciumMg:    p.CalciumMg * factor,
		IronMg:       p.IronMg * factor,
		CarbsG:       p.CarbsG * factor,
		FatG:         p.FatG * factor,
		FiberG:       p.FiberG * factor,
		ProteinG:     p.ProteinG * factor,
		SugarG:       p.SugarG * factor,
		Calories:     p.Calories * factor,
		HealthScore:  p.HealthScore,
	}
}

// Plus adds the additive fields of o to p. HealthScore is left as p's value;
// callers that combine profiles are responsible for weighting it.
func (p NutrientProfile) Plus(o NutrientProfile) NutrientProfile {
	return NutrientProfile{
		VitaminCMg:   p.VitaminCMg + o.VitaminCMg,
		VitaminB11Mg: p.VitaminB11Mg + o.VitaminB11Mg,
		SodiumMg:     p.SodiumMg + o.SodiumMg,
		CalciumMg:    p.CalciumMg + o.CalciumMg,
		IronMg:       p.IronMg + o.IronMg,
		CarbsG:       p.CarbsG + o.CarbsG,
		FatG:         p.FatG + o.FatG,
		FiberG:       p.FiberG + o.FiberG,
		ProteinG:     p.ProteinG + o.ProteinG,
		SugarG:       p.SugarG + o.SugarG,
		Calories:     p.Calories + o.Calories,
		HealthScore:  p.HealthScore,
	}
}

// Validate reports whether every value is a finite non-negative number and
// HealthScore lies in [0, 100].
func (p NutrientProfile) Validate() error {
	fields := []struct {
		name string
		v    float64
	}{
		{"vitaminCMg", p.VitaminCMg},
		{"vitaminB11Mg", p.VitaminB11Mg},
		{"sodiumMg", p.SodiumMg},
		{"calciumMg", p.CalciumMg},
		{"ironMg", p.IronMg},
		{"carbsG", p.CarbsG},
		{"fatG", p.FatG},
		{"fiberG", p.FiberG},
		{"proteinG", p.ProteinG},
		{"sugarG", p.SugarG},
		{"calories", p.Calories},
		{"healthScore", p.HealthScore},
	}
	for _, f := range fields {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number", ErrInvalidInput, f.name)
		}
	}
	if p.HealthScore > 100 {
		return fmt.Errorf("%w: healthScore must be within [0, 100]", ErrInvalidInput)
	}
	return nil
}
