package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	adapthttp "nutriplan/internal/adapter/http"
	"nutriplan/internal/adapter/memory"
	"nutriplan/internal/adapter/postgres"
	"nutriplan/internal/app"
	"nutriplan/internal/config"
	"nutriplan/internal/domain"
	"nutriplan/internal/nutrition"
)

// repository is the full set of ports a storage backend provides.
type repository interface {
	domain.UserRepository
	domain.FoodRepository
	domain.RecipeRepository
	domain.ReplacementRepository
	domain.MealPlanRepository
}

type stores struct {
	repo     repository
	sessions domain.SessionRepository
	ping     func(context.Context) error
	close    func()
}

// openStores opens the configured backend. Postgres is migrated on open.
func openStores(ctx context.Context, cfg config.Config, log *slog.Logger) (*stores, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		db := memory.New()
		log.Warn("using in-memory storage, data is lost on exit")
		return &stores{
			repo:     db,
			sessions: db.NewSessionRepo(),
			ping:     func(context.Context) error { return nil },
			close:    func() {},
		}, nil
	case config.StoragePostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		if err := db.Migrate(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("db migrate: %w", err)
		}
		return &stores{
			repo:     db,
			sessions: postgres.NewSessionRepo(db),
			ping:     db.Ping,
			close: func() {
				if err := db.Close(); err != nil {
					log.Warn("db close failed", "error", err)
				}
			},
		}, nil
	}
	return nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}

// loadAllergenTable reads path, or returns the built-in table when path is empty.
func loadAllergenTable(path string) (*nutrition.AllergenTable, error) {
	if path == "" {
		return nutrition.DefaultAllergenTable(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("allergen table: %w", err)
	}
	defer f.Close() //nolint:errcheck
	table, err := nutrition.LoadAllergenTable(f)
	if err != nil {
		return nil, fmt.Errorf("allergen table %s: %w", path, err)
	}
	return table, nil
}

func buildServices(st *stores, table *nutrition.AllergenTable, sessionTTL time.Duration, log *slog.Logger) adapthttp.Services {
	composer := nutrition.NewComposer(table)
	repo := st.repo
	return adapthttp.Services{
		Foods:         app.NewFoodService(repo, table, log),
		Recipes:       app.NewRecipeService(repo, repo, repo, repo, composer, log),
		Substitutions: app.NewSubstitutionService(repo, repo, repo, repo, composer.Resolver(), log),
		Plans:         app.NewPlanService(repo, repo, repo, composer, log),
		Users:         app.NewUserService(repo),
		Auth:          app.NewAuthService(repo, st.sessions, sessionTTL),
	}
}
