package nutrition_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

var lactoseOnly = domain.NewAllergenSet(domain.AllergenLactose)

func newResolver() *nutrition.Resolver {
	return nutrition.NewResolver(nutrition.DefaultAllergenTable())
}

func TestResolve_AdmissibleIsNeverSubstituted(t *testing.T) {
	u := use(10, oatMilk, 200)
	// A highly similar candidate exists, but the ingredient is already safe.
	cands := []domain.FoodReplacement{replacement(1, oatMilk, almondMlk, 200, 0.99)}

	res, err := newResolver().Resolve(u, cands, lactoseOnly)
	require.NoError(t, err)
	assert.Equal(t, nutrition.NoSubstitutionNeeded, res.Outcome)
	assert.Nil(t, res.Food)
	assert.Nil(t, res.Candidate)
}

func TestResolve_DairyPicksHighestAdmissible(t *testing.T) {
	u := use(10, milk, 200)

	t.Run("dairy candidate is skipped", func(t *testing.T) {
		cands := []domain.FoodReplacement{
			replacement(1, milk, goatMilk, 200, 0.6),
			replacement(2, milk, oatMilk, 250, 0.9),
		}
		res, err := newResolver().Resolve(u, cands, lactoseOnly)
		require.NoError(t, err)
		require.Equal(t, nutrition.Substituted, res.Outcome)
		assert.Equal(t, oatMilk.ID, res.Food.ID)
		assert.Equal(t, int64(2), res.Candidate.ID)
	})

	t.Run("falls back when the best candidate is unsafe", func(t *testing.T) {
		cands := []domain.FoodReplacement{
			replacement(1, milk, soyMilk, 200, 0.9),
			replacement(2, milk, almondMlk, 700, 0.6),
		}
		allergens := lactoseOnly.Union(domain.NewAllergenSet(domain.AllergenSoy))
		res, err := newResolver().Resolve(u, cands, allergens)
		require.NoError(t, err)
		require.Equal(t, nutrition.Substituted, res.Outcome)
		assert.Equal(t, almondMlk.ID, res.Food.ID)
	})

	t.Run("both safe picks the more similar", func(t *testing.T) {
		cands := []domain.FoodReplacement{
			replacement(1, milk, almondMlk, 700, 0.6),
			replacement(2, milk, oatMilk, 250, 0.9),
		}
		res, err := newResolver().Resolve(u, cands, lactoseOnly)
		require.NoError(t, err)
		require.Equal(t, nutrition.Substituted, res.Outcome)
		assert.Equal(t, oatMilk.ID, res.Food.ID)
	})
}

func TestResolve_QuantityPreservesCalories(t *testing.T) {
	u := use(10, milk, 200)
	cands := []domain.FoodReplacement{replacement(1, milk, oatMilk, 100, 0.9)}

	res, err := newResolver().Resolve(u, cands, lactoseOnly)
	require.NoError(t, err)
	require.Equal(t, nutrition.Substituted, res.Outcome)
	assert.InDelta(t, 200*(61.0/48.0), res.QuantityG, 1e-9)
	assert.InDelta(t, 61*2.0, res.Food.Nutrients.Calories*res.QuantityG/100, 1e-9)
}

func TestResolve_TieBreaksOnParityDistance(t *testing.T) {
	u := use(10, milk, 100)
	// Parity target for oat milk is 127.08g; for almond milk 358.8g.
	cands := []domain.FoodReplacement{
		replacement(1, milk, oatMilk, 300, 0.8),   // 172.9 from target
		replacement(2, milk, almondMlk, 350, 0.8), // 8.8 from target
	}
	res, err := newResolver().Resolve(u, cands, lactoseOnly)
	require.NoError(t, err)
	require.Equal(t, nutrition.Substituted, res.Outcome)
	assert.Equal(t, almondMlk.ID, res.Food.ID)

	// Reordering the candidates does not change the pick.
	cands[0], cands[1] = cands[1], cands[0]
	res2, err := newResolver().Resolve(u, cands, lactoseOnly)
	require.NoError(t, err)
	assert.Equal(t, res.Candidate.ID, res2.Candidate.ID)
}

func TestResolve_ScopedCandidatesWin(t *testing.T) {
	u := use(10, milk, 200)
	scoped := replacement(2, milk, almondMlk, 700, 0.5)
	useID := u.ID
	scoped.RecipeIngredientUseID = &useID
	otherUse := int64(99)
	elsewhere := replacement(3, milk, oatMilk, 250, 0.95)
	elsewhere.RecipeIngredientUseID = &otherUse

	cands := []domain.FoodReplacement{replacement(1, milk, oatMilk, 250, 0.9), scoped, elsewhere}
	res, err := newResolver().Resolve(u, cands, lactoseOnly)
	require.NoError(t, err)
	require.Equal(t, nutrition.Substituted, res.Outcome)
	assert.Equal(t, int64(2), res.Candidate.ID)
}

func TestResolve_NoAdmissibleCandidate(t *testing.T) {
	tests := []struct {
		name  string
		cands []domain.FoodReplacement
	}{
		{"no records", nil},
		{"only unsafe replacements", []domain.FoodReplacement{replacement(1, milk, goatMilk, 200, 0.9)}},
		{"replacement food missing", []domain.FoodReplacement{{ID: 2, OriginalFoodID: milk.ID, ReplacementFoodID: 44, SimilarityScore: 0.9}}},
		{"records for another food", []domain.FoodReplacement{replacement(3, rice, oatMilk, 200, 0.9)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newResolver().Resolve(use(10, milk, 200), tc.cands, lactoseOnly)
			require.NoError(t, err)
			assert.Equal(t, nutrition.NoAdmissibleCandidate, res.Outcome)
			assert.True(t, res.Conflicts.Has(domain.AllergenLactose))
			assert.Nil(t, res.Food)
		})
	}
}

func TestResolve_InvalidQuantity(t *testing.T) {
	_, err := newResolver().Resolve(use(10, milk, 0), nil, lactoseOnly)
	assert.ErrorIs(t, err, domain.ErrInvalidQuantity)
}

func TestResolve_NeverReturnsUnsafeFood(t *testing.T) {
	table := nutrition.DefaultAllergenTable()
	resolver := nutrition.NewResolver(table)
	foods := []domain.Food{chicken, rice, milk, oatMilk, goatMilk, soyMilk, salmon, almondMlk}
	r := rand.New(rand.NewSource(3))

	for trial := 0; trial < 300; trial++ {
		orig := foods[r.Intn(len(foods))]
		allergens := domain.AllergenSet(r.Intn(16))
		var cands []domain.FoodReplacement
		for i := 0; i < r.Intn(5); i++ {
			cands = append(cands, replacement(int64(i+1), orig, foods[r.Intn(len(foods))], 50+r.Float64()*300, r.Float64()))
		}

		res, err := resolver.Resolve(use(1, orig, 100), cands, allergens)
		require.NoError(t, err)
		if table.IsAdmissible(orig, allergens) {
			assert.Equal(t, nutrition.NoSubstitutionNeeded, res.Outcome)
		}
		if res.Outcome == nutrition.Substituted {
			assert.True(t, table.IsAdmissible(*res.Food, allergens), "trial %d returned unsafe %s", trial, res.Food.Name)
			assert.Greater(t, res.QuantityG, 0.0)
		}
	}
}

func TestCaloricParityQuantity(t *testing.T) {
	assert.InDelta(t, 300.0, nutrition.CaloricParityQuantity(150, 200, 100), 1e-9)
	assert.Equal(t, 150.0, nutrition.CaloricParityQuantity(150, 0, 100))
	assert.Equal(t, 150.0, nutrition.CaloricParityQuantity(150, 200, 0))
}

func TestOutcome_String(t *testing.T) {
	assert.Equal(t, "substituted", nutrition.Substituted.String())
	assert.Equal(t, "no_admissible_candidate", nutrition.NoAdmissibleCandidate.String())
	assert.Equal(t, "no_substitution_needed", nutrition.NoSubstitutionNeeded.String())
}
