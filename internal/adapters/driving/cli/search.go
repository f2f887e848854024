package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
	searchRepo  string
	searchLang  string
	searchType  string
)

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Find the chunks most similar to a query",
	Long: `Embeds the query and returns the nearest indexed chunks by cosine
similarity. Filters narrow results by exact metadata match. With --verbose
the full chunk text is printed instead of a snippet.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: needs(NeedsIndex),
	RunE:        runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "top-k", "k", 0, "maximum number of results (default from retrieval.top_k)")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	addFilterFlags(searchCmd, &searchRepo, &searchLang, &searchType)
	rootCmd.AddCommand(searchCmd)
}

func addFilterFlags(cmd *cobra.Command, repo, lang, fileType *string) {
	cmd.Flags().StringVar(repo, "repo", "", "only chunks from this repository")
	cmd.Flags().StringVar(lang, "language", "", "only chunks in this language, e.g. go or markdown")
	cmd.Flags().StringVar(fileType, "file-type", "", "only chunks with this file extension, e.g. .md")
}

func buildFilter(repo, lang, fileType string) domain.MetadataFilter {
	if fileType != "" && !strings.HasPrefix(fileType, ".") {
		fileType = "." + fileType
	}
	return domain.MetadataFilter{
		Repository: repo,
		Language:   strings.ToLower(lang),
		FileType:   strings.ToLower(fileType),
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return fmt.Errorf("search: %w", errNotConfigured)
	}

	query := strings.Join(args, " ")
	opts := domain.SearchOptions{
		TopK:   searchLimit,
		Filter: buildFilter(searchRepo, searchLang, searchType),
	}

	results, err := searchService.Search(cmd.Context(), query, opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputJSON(cmd, toSearchJSON(results))
	}
	return outputSearchTable(cmd, results)
}

type searchResultJSON struct {
	ChunkID    string  `json:"chunk_id"`
	Score      float64 `json:"score"`
	Repository string  `json:"repository"`
	Path       string  `json:"path"`
	SourceURL  string  `json:"source_url,omitempty"`
	Language   string  `json:"language,omitempty"`
	Ordinal    int     `json:"ordinal"`
	Text       string  `json:"text"`
}

func toSearchJSON(results []domain.SearchResult) []searchResultJSON {
	out := make([]searchResultJSON, 0, len(results))
	for _, r := range results {
		out = append(out, searchResultJSON{
			ChunkID:    r.ChunkID,
			Score:      r.Score,
			Repository: r.Chunk.Metadata.Repository,
			Path:       r.Chunk.Metadata.Path,
			SourceURL:  r.Chunk.Metadata.SourceURL,
			Language:   r.Chunk.Metadata.Language,
			Ordinal:    r.Chunk.Ordinal,
			Text:       r.Chunk.Text,
		})
	}
	return out
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, results []domain.SearchResult) error {
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	st := newStyles(cmd.OutOrStdout())

	cmd.Println("Results:")
	cmd.Println()
	for i := range results {
		r := &results[i]
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, st.Title.Render(r.Chunk.Document.String()), r.Score)
		if r.Chunk.Metadata.SourceURL != "" {
			cmd.Printf("      %s\n", st.Muted.Render(r.Chunk.Metadata.SourceURL))
		}
		if verbose {
			cmd.Println(indent(r.Chunk.Text, "      "))
		} else if s := snippet(r.Chunk.Text, 160); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
	return nil
}

// snippet collapses whitespace and cuts text to at most n runes.
func snippet(text string, n int) string {
	s := strings.Join(strings.Fields(text), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func indent(text, prefix string) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
