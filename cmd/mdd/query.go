package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/haku/mddecks/internal/config"
	"github.com/haku/mddecks/internal/query"
	"github.com/haku/mddecks/internal/store"
)

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Search the local deck database",
	Long: `Search decks by name, contained cards, card categories, likes and dates.

Card and category filters compose: a deck matches only if it satisfies
every given value. Name matches are fuzzy (substring), category matches
are exact.`,
	Example: `  mdd query --deck-name "Blue-Eyes"
  mdd query --en-name "Blue-Eyes" "Chaos Emperor" --sort-by date
  mdd query --race Dragon --likes-ge 100 -n 5`,
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().String("deck-name", "", "fuzzy match on the deck name")
	queryCmd.Flags().StringSlice("cn-name", nil, "fuzzy match on contained cards' Chinese names")
	queryCmd.Flags().StringSlice("en-name", nil, "fuzzy match on contained cards' English names")
	queryCmd.Flags().StringSlice("jp-name", nil, "fuzzy match on contained cards' Japanese names")
	queryCmd.Flags().StringSlice("type", nil, "decks containing cards of these types")
	queryCmd.Flags().StringSlice("race", nil, "decks containing cards of these races")
	queryCmd.Flags().StringSlice("attribute", nil, "decks containing cards of these attributes")
	queryCmd.Flags().StringSlice("setcode", nil, "decks containing cards of these archetypes (fuzzy)")
	queryCmd.Flags().Int64("likes-ge", -1, "minimum number of likes")
	queryCmd.Flags().Int64("likes-le", -1, "maximum number of likes")
	queryCmd.Flags().String("after-date", "", "decks uploaded on or after this date (YYYY-MM-DD)")
	queryCmd.Flags().String("before-date", "", "decks uploaded on or before this date (YYYY-MM-DD)")
	queryCmd.Flags().String("sort-by", query.SortByLikes, "sort order: likes or date")
	queryCmd.Flags().IntP("limit", "n", 10, "maximum number of results")
	queryCmd.Flags().Bool("show-ydk", false, "print each deck's YDK card list")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	applyLogFlags()
	paths := config.ResolvePaths()

	f := filterFromFlags(cmd)
	if f.IsEmpty() {
		return cmd.Help()
	}

	if _, err := os.Stat(paths.DBFile); err != nil {
		return fmt.Errorf("database not found at %s, run 'mdd build' first", paths.DBFile)
	}

	conn := store.NewSQLite(paths.DBFile)
	if err := conn.Connect(); err != nil {
		return err
	}
	defer conn.Close()

	rows, err := query.Run(conn, f)
	if err != nil {
		return err
	}

	showYDK, _ := cmd.Flags().GetBool("show-ydk")
	printDecks(rows, f.SortBy, showYDK)
	return nil
}

func filterFromFlags(cmd *cobra.Command) *query.Filter {
	f := &query.Filter{}
	f.DeckName, _ = cmd.Flags().GetString("deck-name")
	f.CnNames, _ = cmd.Flags().GetStringSlice("cn-name")
	f.EnNames, _ = cmd.Flags().GetStringSlice("en-name")
	f.JpNames, _ = cmd.Flags().GetStringSlice("jp-name")
	f.Types, _ = cmd.Flags().GetStringSlice("type")
	f.Races, _ = cmd.Flags().GetStringSlice("race")
	f.Attributes, _ = cmd.Flags().GetStringSlice("attribute")
	f.Setcodes, _ = cmd.Flags().GetStringSlice("setcode")
	f.AfterDate, _ = cmd.Flags().GetString("after-date")
	f.BeforeDate, _ = cmd.Flags().GetString("before-date")
	f.SortBy, _ = cmd.Flags().GetString("sort-by")
	f.Limit, _ = cmd.Flags().GetInt("limit")

	if ge, _ := cmd.Flags().GetInt64("likes-ge"); ge >= 0 {
		f.LikesGE = &ge
	}
	if le, _ := cmd.Flags().GetInt64("likes-le"); le >= 0 {
		f.LikesLE = &le
	}
	return f
}

// printDecks writes the matched decks to stdout, the only command output
// that is data rather than logging.
func printDecks(rows []store.Row, sortBy string, showYDK bool) {
	if len(rows) == 0 {
		fmt.Println("No decks matched the given filters.")
		return
	}

	fmt.Printf("Found %d matching decks (sorted by %s)\n", len(rows), sortBy)
	for i, row := range rows {
		fmt.Println(strings.Repeat("=", 60))
		fmt.Printf("#%02d | %v\n", i+1, row["deck_name"])
		fmt.Printf("    | likes: %-6v | updated: %s\n", row["deck_like"], formatMillis(row["update_date"]))
		fmt.Printf("    | deck id: %v\n", row["deck_id"])

		if ydk, ok := row["deck_ydk"].(string); ok && showYDK && ydk != "" {
			fmt.Println("--- YDK ---")
			fmt.Println(strings.TrimSpace(ydk))
		}
	}
	fmt.Println(strings.Repeat("=", 60))
}

// formatMillis renders a millisecond timestamp column, which may come back
// as int64 or nil depending on the row.
func formatMillis(v interface{}) string {
	ms, ok := v.(int64)
	if !ok || ms <= 0 {
		return "unknown"
	}
	return time.UnixMilli(ms).Format("2006-01-02 15:04")
}
