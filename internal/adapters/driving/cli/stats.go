package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:         "stats",
	Short:       "Summarise the vector index",
	Args:        cobra.NoArgs,
	Annotations: needs(NeedsIndex),
	RunE:        runStats,
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "output statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, _ []string) error {
	if statsService == nil {
		return fmt.Errorf("stats: %w", errNotConfigured)
	}

	stats, err := statsService.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read index stats: %w", err)
	}

	if statsJSON {
		return outputJSON(cmd, map[string]any{
			"records":      stats.Records,
			"documents":    stats.Documents,
			"dimensions":   stats.Dimensions,
			"repositories": stats.Repositories,
			"languages":    stats.Languages,
		})
	}

	printStats(cmd, newStyles(cmd.OutOrStdout()), stats)
	return nil
}

func printStats(cmd *cobra.Command, st *Styles, stats domain.IndexStats) {
	cmd.Println(st.Title.Render("Index"))
	cmd.Printf("  Chunks: %d\n", stats.Records)
	cmd.Printf("  Documents: %d\n", stats.Documents)
	cmd.Printf("  Dimensions: %d\n", stats.Dimensions)

	printCounts(cmd, st, "Repositories", stats.Repositories)
	printCounts(cmd, st, "Languages", stats.Languages)
}

// printCounts lists counts largest first, ties by name.
func printCounts(cmd *cobra.Command, st *Styles, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})

	cmd.Println()
	cmd.Println(st.Subtitle.Render(title))
	for _, k := range keys {
		cmd.Printf("  %-30s %d\n", k, counts[k])
	}
}
