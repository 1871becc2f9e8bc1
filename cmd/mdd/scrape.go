package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/scrape"
	"github.com/haku/mddecks/internal/util"
)

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Download public deck exports",
	Long: `Walk the public deck listing and download every deck not yet on disk.

Each deck is saved as one JSON file named after its deck id, so an
interrupted run picks up where it left off. Requests are rate limited
to stay polite to the upstream API.`,
	RunE: runScrape,
}

func init() {
	scrapeCmd.Flags().Duration("rate-delay", time.Second, "delay between API requests")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	paths := config.ResolvePaths()

	scraper := scrape.New(paths.DeckDir)
	if delay, err := cmd.Flags().GetDuration("rate-delay"); err == nil && delay > 0 {
		scraper.RateDelay = delay
	}

	result, err := scraper.Run()
	if err != nil {
		return err
	}

	util.InfoLog("Deck files: %s", paths.DeckDir)
	if result.Saved > 0 {
		util.InfoLog("Next step: mdd build")
	}
	return nil
}
