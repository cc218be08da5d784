package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dyluth/leadflow/internal/config"
	"github.com/dyluth/leadflow/internal/printer"
	"github.com/dyluth/leadflow/internal/seed"
	"github.com/dyluth/leadflow/internal/server"
	"github.com/dyluth/leadflow/internal/stimulus"
	"github.com/dyluth/leadflow/pkg/pipeline"
)

var serveConfigPath string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the Leadflow demo backend",
	Long: `Run the Leadflow demo backend: the bootstrap snapshot endpoint, the
lead mutation API, and the per-project WebSocket event stream.

On first run the configured instance is seeded with a demo project. While
running, a periodic stimulus advances a random lead so connected boards stay
in motion; set demo.stimulus_interval to "off" to disable it.

Examples:
  # Run with defaults (local Redis, port 8000)
  leadflow serve

  # Run with a config file
  leadflow serve --config leadflow.yml`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "", "Path to leadflow.yml (defaults apply if omitted)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(serveConfigPath)
	if err != nil {
		return err
	}

	client, err := connectPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	// Seed a demo project on first run
	projectID, err := client.DefaultProjectID(ctx)
	if err != nil {
		if !pipeline.IsNotFound(err) {
			return fmt.Errorf("failed to look up default project: %w", err)
		}
		projectID, err = seed.Project(ctx, client, seed.Options{
			Steps:   cfg.Demo.Steps,
			Sources: cfg.Demo.Sources,
			Leads:   cfg.Demo.Leads,
			Setters: cfg.Demo.Setters,
			Closers: cfg.Demo.Closers,
		})
		if err != nil {
			return fmt.Errorf("failed to seed demo project: %w", err)
		}
		printer.Success("Seeded demo project %s\n", projectID)
	}

	httpServer := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: server.New(client).Handler(),
	}

	// Periodic demo stimulus: advance a random lead so the board keeps moving
	if interval := cfg.StimulusInterval(); interval > 0 {
		go stimulus.Drive(ctx, stimulus.NewTicker(interval), func(ctx context.Context) error {
			_, err := client.AdvanceRandomLead(ctx, projectID)
			return err
		})
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	printer.Info("Leadflow demo backend listening on %s (project %s)\n", cfg.Server.Listen, projectID)

	select {
	case <-ctx.Done():
		printer.Info("\nShutting down...\n")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
		return nil

	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return printer.Error(
				"server failed",
				fmt.Sprintf("Error: %v", err),
				[]string{"Check that the listen address is free:\n  leadflow serve --config leadflow.yml"},
			)
		}
		return nil
	}
}

// loadConfig loads the config file, falling back to defaults when no path is
// given.
func loadConfig(path string) (*config.LeadflowConfig, error) {
	if path == "" {
		return config.Default(), nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, printer.Error(
			"invalid configuration",
			fmt.Sprintf("Error: %v", err),
			[]string{fmt.Sprintf("Check the file:\n  cat %s", path)},
		)
	}
	return cfg, nil
}

// connectPipeline builds a pipeline client from config and verifies
// connectivity.
func connectPipeline(ctx context.Context, cfg *config.LeadflowConfig) (*pipeline.Client, error) {
	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client, err := pipeline.NewClient(redisOpts, cfg.Instance)
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline client: %w", err)
	}

	if err := client.Ping(ctx); err != nil {
		client.Close()
		return nil, printer.Error(
			"Redis connection failed",
			fmt.Sprintf("Could not connect to Redis at %s", cfg.Redis.URL),
			[]string{"Start Redis locally:\n  docker run --rm -p 6379:6379 redis:7"},
		)
	}

	return client, nil
}
