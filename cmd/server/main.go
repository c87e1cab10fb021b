package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wakala/renewal-analytics/internal/api"
	"github.com/wakala/renewal-analytics/internal/config"
	"github.com/wakala/renewal-analytics/internal/logging"
)

// Version information (set at build time with -ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:     "renewals",
	Short:   "Contract renewal analytics",
	Long:    `Scores contract renewal health, flags underbilling and detects renewal risks from billing-platform exports.`,
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a full analysis over the database and print the result as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnalyze(cmd.Context())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("renewals %s\n", Version)
		if BuildTime != "unknown" {
			fmt.Printf("Built: %s\n", BuildTime)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, analyzeCmd, versionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads configuration, configures logging and opens the database.
func setup(component string) (*config.Config, *app, error) {
	logging.Init(logging.Config{Format: "console", Level: "info", Component: component})

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	logging.Init(logging.Config{Format: cfg.LogFormat, Level: cfg.LogLevel, Component: component})

	a, err := newApp(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, a, nil
}

func runServer(ctx context.Context) error {
	cfg, a, err := setup("server")
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.seedIfEmpty(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to seed database")
	}

	router := api.NewRouter(a.deps(cfg.ReportingCurrency))
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", "http://localhost:"+cfg.Port).
			Str("api", "/api/v1").
			Str("db", cfg.DBPath).
			Msg("renewal analytics listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func runAnalyze(ctx context.Context) error {
	_, a, err := setup("analyze")
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.analysis.RunFullAnalysis(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(result)
}
