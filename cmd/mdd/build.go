package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/haku/mddecks/internal/build"
	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/update"
	"github.com/haku/mddecks/internal/util"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the local deck database from scratch",
	Long: `Build the local SQLite database from the downloaded data files and the
scraped deck exports.

The database file is deleted first, so every build starts clean. Card
constants, setcodes and the alias map are parsed from the data files;
every deck file is validated against the card catalog before insertion.`,
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().Bool("update", false, "check for updated data files before building")
	buildCmd.Flags().Bool("force-update", false, "re-download all data files before building")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	paths := config.ResolvePaths()

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

	result, err := builder.Run()
	if err != nil {
		return fmt.Errorf("build failed: %w", err)
	}

	util.InfoLog("Cards: %d (%d category relations)", result.Cards, result.Relations)
	util.InfoLog("Decks: %d accepted, %d skipped", result.DecksAccepted, result.DecksSkipped)
	util.InfoLog("Database: %s", paths.DBFile)
	return nil
}
