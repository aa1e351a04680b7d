package adapthttp

import (
	"net/http"

	"nutriplan/internal/app"
	"nutriplan/internal/domain"
)

type foodRequest struct {
	Name      string                 `json:"name" validate:"required,max=200"`
	Category  string                 `json:"category" validate:"required"`
	Nutrients domain.NutrientProfile `json:"nutrients"`
}

// handleListFoods lists the catalog. ?name= looks up a single food,
// ?allergen= lists foods mapped to an allergen, ?category= filters by category.
func (s *Server) handleListFoods(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if name := q.Get("name"); name != "" {
		f, err := s.svc.Foods.GetByName(r.Context(), name)
		if err != nil {
			s.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": []domain.Food{*f}})
		return
	}

	var (
		foods []domain.Food
		err   error
	)
	if raw := q.Get("allergen"); raw != "" {
		a, perr := domain.ParseAllergen(raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, perr)
			return
		}
		foods, err = s.svc.Foods.ListByAllergen(r.Context(), a)
	} else {
		foods, err = s.svc.Foods.List(r.Context(), domain.FoodCategory(q.Get("category")))
	}
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if foods == nil {
		foods = []domain.Food{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": foods})
}

func (s *Server) handleCreateFood(w http.ResponseWriter, r *http.Request) {
	var req foodRequest
	if err := s.decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := s.svc.Foods.Create(r.Context(), app.FoodInput{
		Name:      req.Name,
		Category:  domain.FoodCategory(req.Category),
		Nutrients: req.Nutrients,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (s *Server) handleGetFood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := s.svc.Foods.Get(r.Context(), id)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleDeleteFood(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.svc.Foods.Delete(r.Context(), id); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
