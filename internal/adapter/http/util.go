package adapthttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"nutriplan/internal/app"
	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

// writeDomainError maps service errors onto HTTP status codes. Unknown
// errors are logged and reported as a generic 500.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var unresolvable *nutrition.UnresolvableAllergenError
	switch {
	case errors.As(err, &unresolvable):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     domain.ErrUnresolvableAllergen.Error(),
			"recipeId":  unresolvable.RecipeID,
			"useId":     unresolvable.UseID,
			"foodId":    unresolvable.FoodID,
			"foodName":  unresolvable.FoodName,
			"allergens": unresolvable.Allergens,
		})
	case errors.Is(err, domain.ErrUnresolvableAllergen):
		writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrDuplicate), errors.Is(err, domain.ErrReferentialConflict), errors.Is(err, app.ErrUsersExist):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, errors.New("invalid credentials"))
	default:
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("internal error"))
	}
}

func parseJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

// decode parses the request body into dst and runs its validate tags.
func (s *Server) decode(r *http.Request, dst any) error {
	if err := parseJSON(r, dst); err != nil {
		return err
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("invalid request: %s", strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func boolQuery(r *http.Request, key string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(key))
	return err == nil && v
}

// currentUser returns the authenticated user or writes a 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	u := userFromContext(r.Context())
	if u == nil {
		writeError(w, http.StatusUnauthorized, errors.New("unauthorized"))
		return nil, false
	}
	return u, true
}
