package adapthttp

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nutriplan/internal/app"
	"nutriplan/internal/domain"
)

// Services groups the application services the adapter drives.
type Services struct {
	Foods         *app.FoodService
	Recipes       *app.RecipeService
	Substitutions *app.SubstitutionService
	Plans         *app.PlanService
	Users         *app.UserService
	Auth          *app.AuthService
}

// Server is the driving HTTP adapter that routes requests to application
// services.
type Server struct {
	svc        Services
	oidcConfig OIDCConfig
	sessionTTL time.Duration
	log        *slog.Logger
	validate   *validator.Validate
	ping       func(context.Context) error

	disableAuth bool
	fixedUser   *domain.User
}

// Option configures a Server.
type Option func(*Server)

// WithOIDC enables SSO login through the given provider.
func WithOIDC(c OIDCConfig) Option {
	return func(s *Server) { s.oidcConfig = c }
}

// WithSessionTTL sets the session cookie lifetime.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.sessionTTL = d }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithPing sets the storage liveness check reported by /api/health.
func WithPing(fn func(context.Context) error) Option {
	return func(s *Server) { s.ping = fn }
}

// New creates a Server wired to the given application services.
func New(svc Services, opts ...Option) *Server {
	s := &Server{
		svc:        svc,
		sessionTTL: app.DefaultSessionTTL,
		log:        slog.Default(),
		validate:   validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithoutAuth disables authentication and attributes every request to u.
// Intended for tests and local development.
func (s *Server) WithoutAuth(u *domain.User) *Server {
	s.disableAuth = true
	s.fixedUser = u
	return s
}

// Handler returns the root http.Handler for the application.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/login", s.handleLogin)
	mux.HandleFunc("POST /api/logout", s.handleLogout)
	mux.HandleFunc("POST /api/setup", s.handleSetupUser)
	mux.HandleFunc("GET /api/config", s.handleConfig)
	mux.HandleFunc("GET /api/sso/login", s.handleSSOLogin)
	mux.HandleFunc("GET /api/sso/callback", s.handleSSOCallback)

	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, s.authMiddleware(h))
	}

	protected("GET /api/me", s.handleGetMe)
	protected("PUT /api/me", s.handleUpdateMe)

	protected("GET /api/foods", s.handleListFoods)
	protected("POST /api/foods", s.handleCreateFood)
	protected("GET /api/foods/{id}", s.handleGetFood)
	protected("DELETE /api/foods/{id}", s.handleDeleteFood)

	protected("GET /api/recipes", s.handleListRecipes)
	protected("POST /api/recipes", s.handleCreateRecipe)
	protected("GET /api/recipes/{id}", s.handleGetRecipe)
	protected("DELETE /api/recipes/{id}", s.handleDeleteRecipe)
	protected("POST /api/recipes/{id}/ingredients", s.handleAddIngredient)
	protected("PUT /api/recipes/{id}/ingredients/{useID}", s.handleUpdateIngredient)
	protected("DELETE /api/recipes/{id}/ingredients/{useID}", s.handleRemoveIngredient)
	protected("GET /api/recipes/{id}/nutrition", s.handleRecipeNutrition)
	protected("GET /api/recipes/{id}/ingredients/{useID}/substitution", s.handleSubstitution)
	protected("GET /api/recipes/{id}/ingredients/{useID}/replacements", s.handleReplacementCandidates)

	protected("POST /api/replacements", s.handleCreateReplacement)

	protected("GET /api/plans", s.handleListPlans)
	protected("POST /api/plans", s.handleCreatePlan)
	protected("GET /api/plans/{id}", s.handleGetPlan)
	protected("GET /api/plans/{id}/progress", s.handlePlanProgress)
	protected("GET /api/plans/{id}/meals", s.handleListMeals)
	protected("POST /api/plans/{id}/meals", s.handleAddMeal)
	protected("POST /api/meals/{id}/recipes", s.handleAddRecipeToMeal)

	return s.loggingMiddleware(withNoCache(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ping(ctx); err != nil {
			s.log.Warn("health check failed", "error", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}
