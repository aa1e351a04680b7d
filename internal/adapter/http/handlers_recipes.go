package adapthttp

import (
	"net/http"

	"nutriplan/internal/app"
	"nutriplan/internal/domain"
)

type ingredientRequest struct {
	FoodID    int64   `json:"foodId" validate:"required,gt=0"`
	QuantityG float64 `json:"quantityG"`
}

type recipeRequest struct {
	Name            string              `json:"name" validate:"required,max=200"`
	Description     string              `json:"description"`
	Portions        int                 `json:"portions" validate:"gte=0"`
	PrepTimeMinutes int                 `json:"prepTimeMinutes" validate:"gte=0"`
	Ingredients     []ingredientRequest `json:"ingredients" validate:"dive"`
}

func (s *Server) handleListRecipes(w http.ResponseWriter, r *http.Request) {
	recipes, err := s.svc.Recipes.List(r.Context())
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if recipes == nil {
		recipes = []domain.Recipe{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": recipes})
}

func (s *Server) handleCreateRecipe(w http.ResponseWriter, r *http.Request) {
	var req recipeRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	in := app.RecipeInput{
		Name:            req.Name,
		Description:     req.Description,
		Portions:        req.Portions,
		PrepTimeMinutes: req.PrepTimeMinutes,
	}
	for _, ing := range req.Ingredients {
		in.Ingredients = append(in.Ingredients, app.IngredientInput{FoodID: ing.FoodID, QuantityG: ing.QuantityG})
	}

	recipe, err := s.svc.Recipes.Create(r.Context(), in)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, recipe)
}

func (s *Server) handleGetRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	recipe, err := s.svc.Recipes.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func (s *Server) handleDeleteRecipe(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Recipes.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddIngredient(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var req ingredientRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	use, err := s.svc.Recipes.AddIngredient(r.Context(), id, app.IngredientInput{FoodID: req.FoodID, QuantityG: req.QuantityG})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, use)
}

func (s *Server) handleUpdateIngredient(w http.ResponseWriter, r *http.Request) {
	id, useID, ok := recipeUseIDs(w, r)
	if !ok {
		return
	}
	var req struct {
		QuantityG float64 `json:"quantityG"`
	}
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Recipes.UpdateQuantity(r.Context(), id, useID, req.QuantityG); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeRecipe(w, r, id)
}

func (s *Server) handleRemoveIngredient(w http.ResponseWriter, r *http.Request) {
	id, useID, ok := recipeUseIDs(w, r)
	if !ok {
		return
	}
	if err := s.svc.Recipes.RemoveIngredient(r.Context(), id, useID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	s.writeRecipe(w, r, id)
}

// handleRecipeNutrition returns the recipe profile. With ?safe=true the
// profile is computed for the current user's allergens.
func (s *Server) handleRecipeNutrition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var userID int64
	if boolQuery(r, "safe") {
		u, ok := currentUser(w, r)
		if !ok {
			return
		}
		userID = u.ID
	}
	profile, err := s.svc.Recipes.Profile(r.Context(), id, userID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

func (s *Server) handleSubstitution(w http.ResponseWriter, r *http.Request) {
	id, useID, ok := recipeUseIDs(w, r)
	if !ok {
		return
	}
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Substitutions.Resolve(r.Context(), id, useID, u.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReplacementCandidates(w http.ResponseWriter, r *http.Request) {
	id, useID, ok := recipeUseIDs(w, r)
	if !ok {
		return
	}
	cands, err := s.svc.Substitutions.Candidates(r.Context(), id, useID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if cands == nil {
		cands = []domain.FoodReplacement{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": cands})
}

func (s *Server) handleCreateReplacement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RecipeIngredientUseID *int64  `json:"recipeIngredientUseId" validate:"omitempty,gt=0"`
		OriginalFoodID        int64   `json:"originalFoodId" validate:"required,gt=0"`
		ReplacementFoodID     int64   `json:"replacementFoodId" validate:"required,gt=0"`
		QuantityG             float64 `json:"quantityG"`
		SimilarityScore       float64 `json:"similarityScore"`
		Justification         string  `json:"justification"`
		Reason                string  `json:"reason"`
	}
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	rep, err := s.svc.Substitutions.CreateReplacement(r.Context(), app.ReplacementInput{
		RecipeIngredientUseID: req.RecipeIngredientUseID,
		OriginalFoodID:        req.OriginalFoodID,
		ReplacementFoodID:     req.ReplacementFoodID,
		QuantityG:             req.QuantityG,
		SimilarityScore:       req.SimilarityScore,
		Justification:         req.Justification,
		Reason:                domain.ReplacementReason(req.Reason),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rep)
}

func (s *Server) writeRecipe(w http.ResponseWriter, r *http.Request, id int64) {
	recipe, err := s.svc.Recipes.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recipe)
}

func recipeUseIDs(w http.ResponseWriter, r *http.Request) (int64, int64, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, 0, false
	}
	useID, err := pathID(r, "useID")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return 0, 0, false
	}
	return id, useID, true
}
