package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haku/mddecks/internal/build"
	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/d1"
	"github.com/haku/mddecks/internal/export"
	"github.com/haku/mddecks/internal/update"
	"github.com/haku/mddecks/internal/util"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Build the database and publish it to Cloudflare D1",
	Long: `Run the full pipeline: build the local database, export it to a portable
SQL script, and import that script into the configured Cloudflare D1
database.

The target database is located by name, its tables are cleared (the
database itself is never deleted, so Worker bindings survive), and the
script is imported through the D1 bulk import API.

Credentials come from the environment or a local .env file:
D1_ACCOUNT_ID, D1_DATABASE_NAME and D1_API_TOKEN.`,
	RunE: runDeploy,
}

func init() {
	deployCmd.Flags().Bool("update", false, "check for updated data files before building")
	deployCmd.Flags().Bool("force-update", false, "re-download all data files before building")
	rootCmd.AddCommand(deployCmd)
}

func runDeploy(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	paths := config.ResolvePaths()

	// Validate credentials before doing any work.
	d1cfg, err := config.LoadD1FromEnv()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(paths.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	doUpdate, _ := cmd.Flags().GetBool("update")
	forceUpdate, _ := cmd.Flags().GetBool("force-update")
	if doUpdate || forceUpdate {
		updater := update.New(config.URLs, &paths)
		if _, err := updater.Run(forceUpdate); err != nil {
			return fmt.Errorf("data update failed: %w", err)
		}
	}

	builder := build.New(&build.Config{
		DBPath:        paths.DBFile,
		ConstantsPath: paths.Constants,
		SetcodesPath:  paths.Setcodes,
		CardsPath:     paths.CardsFile,
		AliasDBPath:   paths.AliasDB,
		DeckDir:       paths.DeckDir,
	})
	if _, err := builder.Run(); err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	util.InfoLog("Starting deployment to Cloudflare D1")

	if err := export.Dump(paths.DBFile, paths.DumpFile); err != nil {
		return fmt.Errorf("SQL export failed: %w", err)
	}

	client := d1.NewClient(&d1cfg)
	publisher := d1.NewPublisher(client, d1cfg.DatabaseName)

	if err := publisher.Publish(context.Background(), paths.DumpFile); err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	util.SuccessLog("Deployment to Cloudflare D1 successful")
	return nil
}
