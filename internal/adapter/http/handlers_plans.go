package adapthttp

import (
	"net/http"

	"nutriplan/internal/app"
	"nutriplan/internal/domain"
)

func (s *Server) handleListPlans(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	plans, err := s.svc.Plans.ListPlans(r.Context(), u.ID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if plans == nil {
		plans = []domain.MealPlan{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": plans})
}

func (s *Server) handleCreatePlan(w http.ResponseWriter, r *http.Request) {
	u, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req struct {
		Name        string  `json:"name" validate:"required,max=200"`
		StartDay    string  `json:"startDay" validate:"required,datetime=2006-01-02"`
		EndDay      string  `json:"endDay" validate:"required,datetime=2006-01-02"`
		CalorieGoal float64 `json:"calorieGoal"`
		Notes       string  `json:"notes"`
	}
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	plan, err := s.svc.Plans.CreatePlan(r.Context(), u.ID, app.PlanInput{
		Name:        req.Name,
		StartDay:    req.StartDay,
		EndDay:      req.EndDay,
		CalorieGoal: req.CalorieGoal,
		Notes:       req.Notes,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	u, id, ok := userAndID(w, r)
	if !ok {
		return
	}
	plan, err := s.svc.Plans.GetPlan(r.Context(), u.ID, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// handlePlanProgress rolls up the plan. ?withinDates=true drops meals whose
// day lies outside the plan's range.
func (s *Server) handlePlanProgress(w http.ResponseWriter, r *http.Request) {
	u, id, ok := userAndID(w, r)
	if !ok {
		return
	}
	progress, err := s.svc.Plans.Progress(r.Context(), u.ID, id, boolQuery(r, "withinDates"))
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	u, id, ok := userAndID(w, r)
	if !ok {
		return
	}
	meals, err := s.svc.Plans.Meals(r.Context(), u.ID, id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if meals == nil {
		meals = []domain.Meal{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": meals})
}

func (s *Server) handleAddMeal(w http.ResponseWriter, r *http.Request) {
	u, id, ok := userAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		Type string `json:"type" validate:"required,oneof=breakfast lunch dinner snack"`
		Day  string `json:"day" validate:"required,datetime=2006-01-02"`
	}
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	meal, err := s.svc.Plans.AddMeal(r.Context(), u.ID, id, app.MealInput{Type: domain.MealType(req.Type), Day: req.Day})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, meal)
}

func (s *Server) handleAddRecipeToMeal(w http.ResponseWriter, r *http.Request) {
	u, mealID, ok := userAndID(w, r)
	if !ok {
		return
	}
	var req struct {
		RecipeID int64 `json:"recipeId" validate:"required,gt=0"`
	}
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Plans.AddRecipeToMeal(r.Context(), u.ID, mealID, req.RecipeID); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"mealId": mealID, "recipeId": req.RecipeID})
}

func userAndID(w http.ResponseWriter, r *http.Request) (*domain.User, int64, bool) {
	u, ok := currentUser(w, r)
	if !ok {
		return nil, 0, false
	}
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return nil, 0, false
	}
	return u, id, true
}
