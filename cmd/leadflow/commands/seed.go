package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/dyluth/leadflow/internal/printer"
	"github.com/dyluth/leadflow/internal/seed"
)

var (
	seedConfigPath  string
	seedProjectName string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a demo project",
	Long: `Seed the configured instance with a fresh demo project: pipeline steps,
a team of setters and closers, and a batch of leads spread across sources.

The new project becomes the instance's default project, served by the
bootstrap endpoint. Running seed again creates a new project and repoints
the default at it; old project data stays in Redis.

Examples:
  # Seed with defaults
  leadflow seed

  # Seed a named project from a config file
  leadflow seed --config leadflow.yml --project "Q3 Pipeline"`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().StringVarP(&seedConfigPath, "config", "c", "", "Path to leadflow.yml (defaults apply if omitted)")
	seedCmd.Flags().StringVarP(&seedProjectName, "project", "p", "", "Project display name")
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig(seedConfigPath)
	if err != nil {
		return err
	}

	client, err := connectPipeline(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	projectID, err := seed.Project(ctx, client, seed.Options{
		ProjectName: seedProjectName,
		Steps:       cfg.Demo.Steps,
		Sources:     cfg.Demo.Sources,
		Leads:       cfg.Demo.Leads,
		Setters:     cfg.Demo.Setters,
		Closers:     cfg.Demo.Closers,
	})
	if err != nil {
		return printer.Error(
			"seeding failed",
			err.Error(),
			[]string{"Check Redis connectivity:\n  leadflow serve --config leadflow.yml"},
		)
	}

	printer.Success("Seeded project %s with %d leads (%d setters, %d closers)\n",
		projectID, cfg.Demo.Leads, cfg.Demo.Setters, cfg.Demo.Closers)
	return nil
}
