package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	adapthttp "nutriplan/internal/adapter/http"
	"nutriplan/internal/config"
	"nutriplan/internal/logging"
	"nutriplan/internal/telemetry"
)

const (
	shutdownTimeout     = 10 * time.Second
	sessionPurgePeriod  = time.Hour
	readHeaderTimeout   = 5 * time.Second
	migrateQueryTimeout = time.Minute
)

type rootOptions struct {
	envFile string
	cfg     config.Config
	log     *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "nutriplan",
		Short:         "Meal planning service with allergen-safe nutrition",
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			opts.cfg = cfg
			opts.log = logger
			return nil
		},
	}
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "optional dotenv file loaded before reading the environment")

	root.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newProfileCmd(opts))
	return root
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, opts.cfg, opts.log)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	shutdownTracing, err := telemetry.Init(ctx, cfg.TraceExporter, version, os.Stdout)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Warn("trace shutdown failed", "error", err)
		}
	}()

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	table, err := loadAllergenTable(cfg.AllergenTable)
	if err != nil {
		return err
	}
	svc := buildServices(st, table, cfg.SessionTTL, log)

	opts := []adapthttp.Option{
		adapthttp.WithLogger(log),
		adapthttp.WithSessionTTL(cfg.SessionTTL),
		adapthttp.WithPing(st.ping),
	}
	if cfg.OIDC.Enabled() {
		oc, err := adapthttp.NewOIDCConfig(ctx, cfg.OIDC.Issuer, cfg.OIDC.ClientID, cfg.OIDC.ClientSecret, cfg.OIDC.RedirectURL)
		if err != nil {
			return err
		}
		opts = append(opts, adapthttp.WithOIDC(oc))
		log.Info("sso enabled", "issuer", cfg.OIDC.Issuer)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           adapthttp.New(svc, opts...).Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go purgeSessions(ctx, svc, log)

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Addr, "storage", cfg.Storage, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func purgeSessions(ctx context.Context, svc adapthttp.Services, log *slog.Logger) {
	t := time.NewTicker(sessionPurgePeriod)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := svc.Auth.PurgeExpiredSessions(ctx); err != nil {
				log.Warn("session purge failed", "error", err)
			}
		}
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the postgres schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.cfg.Storage != config.StoragePostgres {
				return fmt.Errorf("migrate requires STORAGE=%s", config.StoragePostgres)
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), migrateQueryTimeout)
			defer cancel()

			st, err := openStores(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer st.close()
			opts.log.Info("schema up to date")
			return nil
		},
	}
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	var recipeID, userID int64

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Print a recipe's nutrition as JSON",
		Long: `Print the nutrition of a stored recipe. With --user the recipe is made
safe for that user's allergens first and the command fails when an
ingredient has no admissible substitute.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := openStores(ctx, opts.cfg, opts.log)
			if err != nil {
				return err
			}
			defer st.close()

			table, err := loadAllergenTable(opts.cfg.AllergenTable)
			if err != nil {
				return err
			}
			svc := buildServices(st, table, opts.cfg.SessionTTL, opts.log)

			profile, err := svc.Recipes.Profile(ctx, recipeID, userID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(profile)
		},
	}
	cmd.Flags().Int64Var(&recipeID, "recipe", 0, "recipe id")
	cmd.Flags().Int64Var(&userID, "user", 0, "user id whose allergens must be avoided")
	_ = cmd.MarkFlagRequired("recipe")
	return cmd
}
