package app

import (
	"context"

	"nutriplan/internal/domain"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	createFn        func(ctx context.Context, username, passwordHash string) (*domain.User, error)
	countFn         func(ctx context.Context) (int, error)
	updateProfileFn func(ctx context.Context, u domain.User) error
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, username, passwordHash string) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash)
	}
	return &domain.User{ID: 1, Username: username, PasswordHash: passwordHash}, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

func (m *mockUserRepo) UpdateProfile(ctx context.Context, u domain.User) error {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, u)
	}
	return nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, s domain.Session) error
	getByTokenFn    func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, s domain.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, s)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

type mockFoodRepo struct {
	createFn    func(ctx context.Context, f domain.Food) (*domain.Food, error)
	getFn       func(ctx context.Context, id int64) (*domain.Food, error)
	getByNameFn func(ctx context.Context, name string) (*domain.Food, error)
	listFn      func(ctx context.Context, category domain.FoodCategory) ([]domain.Food, error)
	deleteFn    func(ctx context.Context, id int64) error
}

func (m *mockFoodRepo) CreateFood(ctx context.Context, f domain.Food) (*domain.Food, error) {
	if m.createFn != nil {
		return m.createFn(ctx, f)
	}
	f.ID = 1
	return &f, nil
}

func (m *mockFoodRepo) GetFood(ctx context.Context, id int64) (*domain.Food, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &domain.Food{ID: id}, nil
}

func (m *mockFoodRepo) GetFoodByName(ctx context.Context, name string) (*domain.Food, error) {
	if m.getByNameFn != nil {
		return m.getByNameFn(ctx, name)
	}
	return nil, domain.ErrNotFound
}

func (m *mockFoodRepo) ListFoods(ctx context.Context, category domain.FoodCategory) ([]domain.Food, error) {
	if m.listFn != nil {
		return m.listFn(ctx, category)
	}
	return nil, nil
}

func (m *mockFoodRepo) DeleteFood(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// fakeTx records ingredient writes against an in-memory slice.
type fakeTx struct {
	uses   []domain.RecipeIngredientUse
	foods  map[int64]domain.Food
	nextID int64
	total  *float64
	writes []string
}

func (tx *fakeTx) Ingredients(ctx context.Context) ([]domain.RecipeIngredientUse, error) {
	out := make([]domain.RecipeIngredientUse, len(tx.uses))
	copy(out, tx.uses)
	return out, nil
}

func (tx *fakeTx) AddIngredient(ctx context.Context, foodID int64, q float64) (*domain.RecipeIngredientUse, error) {
	f, ok := tx.foods[foodID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	tx.nextID++
	u := domain.RecipeIngredientUse{ID: tx.nextID, FoodID: foodID, QuantityG: q, Food: f}
	tx.uses = append(tx.uses, u)
	tx.writes = append(tx.writes, "add")
	return &u, nil
}

func (tx *fakeTx) SetQuantity(ctx context.Context, useID int64, q float64) error {
	for i := range tx.uses {
		if tx.uses[i].ID == useID {
			tx.uses[i].QuantityG = q
			tx.writes = append(tx.writes, "set")
			return nil
		}
	}
	return domain.ErrNotFound
}

func (tx *fakeTx) RemoveIngredient(ctx context.Context, useID int64) error {
	for i := range tx.uses {
		if tx.uses[i].ID == useID {
			tx.uses = append(tx.uses[:i], tx.uses[i+1:]...)
			tx.writes = append(tx.writes, "remove")
			return nil
		}
	}
	return domain.ErrNotFound
}

func (tx *fakeTx) SetTotalCalories(ctx context.Context, total float64) error {
	tx.total = &total
	tx.writes = append(tx.writes, "total")
	return nil
}

type mockRecipeRepo struct {
	createFn func(ctx context.Context, r domain.Recipe) (*domain.Recipe, error)
	getFn    func(ctx context.Context, id int64) (*domain.Recipe, error)
	listFn   func(ctx context.Context) ([]domain.Recipe, error)
	deleteFn func(ctx context.Context, id int64) error
	tx       *fakeTx
}

func (m *mockRecipeRepo) CreateRecipe(ctx context.Context, r domain.Recipe) (*domain.Recipe, error) {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	r.ID = 1
	return &r, nil
}

func (m *mockRecipeRepo) GetRecipe(ctx context.Context, id int64) (*domain.Recipe, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockRecipeRepo) ListRecipes(ctx context.Context) ([]domain.Recipe, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRecipeRepo) DeleteRecipe(ctx context.Context, id int64) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, id)
	}
	return nil
}

// UpdateIngredients runs fn against a copy of tx and keeps the copy only on success.
func (m *mockRecipeRepo) UpdateIngredients(ctx context.Context, recipeID int64, fn func(domain.IngredientTx) error) error {
	if m.tx == nil {
		return domain.ErrNotFound
	}
	work := *m.tx
	work.uses = append([]domain.RecipeIngredientUse(nil), m.tx.uses...)
	work.writes = nil
	if err := fn(&work); err != nil {
		return err
	}
	*m.tx = work
	return nil
}

type mockReplacementRepo struct {
	createFn     func(ctx context.Context, r domain.FoodReplacement) (*domain.FoodReplacement, error)
	candidatesFn func(ctx context.Context, originalFoodID, useID int64) ([]domain.FoodReplacement, error)
}

func (m *mockReplacementRepo) CreateReplacement(ctx context.Context, r domain.FoodReplacement) (*domain.FoodReplacement, error) {
	if m.createFn != nil {
		return m.createFn(ctx, r)
	}
	r.ID = 1
	return &r, nil
}

func (m *mockReplacementRepo) ReplacementCandidates(ctx context.Context, originalFoodID, useID int64) ([]domain.FoodReplacement, error) {
	if m.candidatesFn != nil {
		return m.candidatesFn(ctx, originalFoodID, useID)
	}
	return nil, nil
}

type mockPlanRepo struct {
	createFn         func(ctx context.Context, p domain.MealPlan) (*domain.MealPlan, error)
	getFn            func(ctx context.Context, id int64) (*domain.MealPlan, error)
	listFn           func(ctx context.Context, userID int64) ([]domain.MealPlan, error)
	addMealFn        func(ctx context.Context, m domain.Meal) (*domain.Meal, error)
	getMealFn        func(ctx context.Context, id int64) (*domain.Meal, error)
	addRecipeFn      func(ctx context.Context, mealID, recipeID int64) error
	mealsForPlanFn   func(ctx context.Context, planID int64) ([]domain.Meal, error)
	recipesForMealFn func(ctx context.Context, mealID int64) ([]domain.Recipe, error)
}

func (m *mockPlanRepo) CreatePlan(ctx context.Context, p domain.MealPlan) (*domain.MealPlan, error) {
	if m.createFn != nil {
		return m.createFn(ctx, p)
	}
	p.ID = 1
	return &p, nil
}

func (m *mockPlanRepo) GetPlan(ctx context.Context, id int64) (*domain.MealPlan, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPlanRepo) ListPlans(ctx context.Context, userID int64) ([]domain.MealPlan, error) {
	if m.listFn != nil {
		return m.listFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockPlanRepo) AddMeal(ctx context.Context, meal domain.Meal) (*domain.Meal, error) {
	if m.addMealFn != nil {
		return m.addMealFn(ctx, meal)
	}
	meal.ID = 1
	return &meal, nil
}

func (m *mockPlanRepo) GetMeal(ctx context.Context, id int64) (*domain.Meal, error) {
	if m.getMealFn != nil {
		return m.getMealFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockPlanRepo) AddRecipeToMeal(ctx context.Context, mealID, recipeID int64) error {
	if m.addRecipeFn != nil {
		return m.addRecipeFn(ctx, mealID, recipeID)
	}
	return nil
}

func (m *mockPlanRepo) MealsForPlan(ctx context.Context, planID int64) ([]domain.Meal, error) {
	if m.mealsForPlanFn != nil {
		return m.mealsForPlanFn(ctx, planID)
	}
	return nil, nil
}

func (m *mockPlanRepo) RecipesForMeal(ctx context.Context, mealID int64) ([]domain.Recipe, error) {
	if m.recipesForMealFn != nil {
		return m.recipesForMealFn(ctx, mealID)
	}
	return nil, nil
}
