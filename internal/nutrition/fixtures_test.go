package nutrition_test

import "nutriplan/internal/domain"

func food(id int64, name string, cat domain.FoodCategory, kcal, protein float64) domain.Food {
	return domain.Food{
		ID:             id,
		Name:           name,
		NormalizedName: domain.NormalizeName(name),
		Category:       cat,
		Nutrients:      domain.NutrientProfile{Calories: kcal, ProteinG: protein},
	}
}

func use(id int64, f domain.Food, q float64) domain.RecipeIngredientUse {
	return domain.RecipeIngredientUse{ID: id, RecipeID: 1, FoodID: f.ID, QuantityG: q, Food: f}
}

func replacement(id int64, original domain.Food, repl domain.Food, q, score float64) domain.FoodReplacement {
	return domain.FoodReplacement{
		ID:                id,
		OriginalFoodID:    original.ID,
		ReplacementFoodID: repl.ID,
		QuantityG:         q,
		SimilarityScore:   score,
		Reason:            domain.ReasonAllergen,
		Replacement:       repl,
	}
}

var (
	chicken   = food(1, "Chicken breast", domain.CategoryProtein, 165, 31)
	rice      = food(2, "White rice", domain.CategoryCarb, 130, 2.7)
	milk      = food(3, "Whole milk", domain.CategoryDairy, 61, 3.2)
	oatMilk   = food(4, "Oat milk", domain.CategoryGrain, 48, 1)
	goatMilk  = food(5, "Goat milk", domain.CategoryDairy, 69, 3.6)
	soyMilk   = food(6, "Soy milk", domain.CategoryProtein, 54, 3.3)
	salmon    = food(7, "Salmon", domain.CategoryProtein, 208, 20)
	almondMlk = food(8, "Almond milk", domain.CategoryFat, 17, 0.6)
)
