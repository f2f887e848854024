package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

var (
	queryTopK        int
	queryBudget      int
	queryMaxTokens   int
	queryTemperature float64
	queryJSON        bool
	queryShowContext bool
	queryRepo        string
	queryLang        string
	queryType        string
)

var queryCmd = &cobra.Command{
	Use:     "query <question>",
	Aliases: []string{"ask"},
	Short:   "Answer a question from the indexed documentation",
	Long: `Retrieves the most relevant chunks, assembles them under the token
budget and asks the configured LLM for an answer with citations.

Without an LLM the retrieved context and its citations are still shown.`,
	Args:        cobra.MinimumNArgs(1),
	Annotations: needs(NeedsLLM),
	RunE:        runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "chunks to retrieve (default from retrieval.top_k)")
	queryCmd.Flags().IntVar(&queryBudget, "budget", 0, "prompt token budget (default from context.token_budget)")
	queryCmd.Flags().IntVar(&queryMaxTokens, "max-tokens", 0, "answer token limit (default from llm.max_tokens)")
	queryCmd.Flags().Float64Var(&queryTemperature, "temperature", 0, "sampling temperature (default from llm.temperature)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "output the answer as JSON")
	queryCmd.Flags().BoolVar(&queryShowContext, "show-context", false, "print the assembled context fragments")
	addFilterFlags(queryCmd, &queryRepo, &queryLang, &queryType)
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if ragService == nil {
		return fmt.Errorf("query: %w", errNotConfigured)
	}

	req := domain.QueryRequest{
		Question:    strings.Join(args, " "),
		TopK:        queryTopK,
		Filter:      buildFilter(queryRepo, queryLang, queryType),
		TokenBudget: queryBudget,
		MaxTokens:   queryMaxTokens,
	}
	if cmd.Flags().Changed("temperature") {
		t := queryTemperature
		req.Temperature = &t
	}

	ans, err := ragService.Ask(cmd.Context(), req, nil)
	if queryJSON && ans != nil {
		if jerr := outputJSON(cmd, toAnswerJSON(ans, err)); jerr != nil {
			return jerr
		}
		return err
	}
	return renderAnswer(cmd, ans, err, queryShowContext)
}

// renderAnswer prints an answer. A missing LLM is reported as a warning
// after the retrieved context, other failures are returned.
func renderAnswer(cmd *cobra.Command, ans *domain.Answer, err error, showContext bool) error {
	st := newStyles(cmd.OutOrStdout())
	if ans == nil {
		return err
	}

	noLLM := err != nil && errors.Is(err, domain.ErrLLMUnavailable)
	if err != nil && !noLLM {
		printResults(cmd, st, ans.Results)
		return fmt.Errorf("query failed during %s: %w", ans.FailedStage, err)
	}

	if showContext || noLLM {
		printContext(cmd, st, ans.Bundle)
	}
	if noLLM {
		cmd.Println(st.Warning.Render("No LLM is configured, showing retrieved context only."))
		cmd.Println(st.Muted.Render("Set llm.provider with 'devrag config set' to generate answers."))
		return nil
	}

	cmd.Println(st.Answer.Render(ans.Text))
	if ans.NoContext {
		return nil
	}
	printCitations(cmd, st, ans.Citations)
	return nil
}

// printResults lists the raw retrieval results of a failed query.
func printResults(cmd *cobra.Command, st *Styles, results []domain.SearchResult) {
	if len(results) == 0 {
		return
	}
	cmd.Println(st.Subtitle.Render("Retrieved before the failure:"))
	for i := range results {
		cmd.Printf("  [%d] %s (%.2f)\n", i+1, results[i].Chunk.Document.String(), results[i].Score)
	}
}

func printCitations(cmd *cobra.Command, st *Styles, citations []domain.Citation) {
	if len(citations) == 0 {
		return
	}
	cmd.Println()
	cmd.Println(st.Subtitle.Render("Sources:"))
	for i, c := range citations {
		line := fmt.Sprintf("  [%d] %s", i+1, c.String())
		if c.SourceURL != "" {
			line += " " + st.Muted.Render(c.SourceURL)
		}
		cmd.Println(line)
	}
}

func printContext(cmd *cobra.Command, st *Styles, bundle *domain.ContextBundle) {
	if bundle.IsEmpty() {
		return
	}
	cmd.Println(st.Subtitle.Render(fmt.Sprintf("Context (%d of %d tokens):", bundle.Tokens, bundle.Budget)))
	for i, f := range bundle.Fragments {
		header := fmt.Sprintf("  [%d] %s #%d (%.2f)", i+1, f.Citation.String(), f.Ordinal, f.Score)
		if f.Truncated {
			header += " truncated"
		}
		cmd.Println(st.Muted.Render(header))
		cmd.Printf("      %s\n", snippet(f.Text, 240))
	}
	cmd.Println()
}

type answerJSON struct {
	Question    string         `json:"question"`
	Answer      string         `json:"answer"`
	State       string         `json:"state"`
	FailedStage string         `json:"failed_stage,omitempty"`
	Error       string         `json:"error,omitempty"`
	NoContext   bool           `json:"no_context,omitempty"`
	Citations   []citationJSON `json:"citations"`
	Tokens      int            `json:"context_tokens"`
}

type citationJSON struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	SourceURL  string `json:"source_url,omitempty"`
}

func toAnswerJSON(ans *domain.Answer, err error) answerJSON {
	out := answerJSON{
		Question:    ans.Question,
		Answer:      ans.Text,
		State:       string(ans.State),
		FailedStage: string(ans.FailedStage),
		NoContext:   ans.NoContext,
		Citations:   make([]citationJSON, 0, len(ans.Citations)),
	}
	if err != nil {
		out.Error = err.Error()
	}
	if ans.Bundle != nil {
		out.Tokens = ans.Bundle.Tokens
	}
	for _, c := range ans.Citations {
		out.Citations = append(out.Citations, citationJSON{Repository: c.Repository, Path: c.Path, SourceURL: c.SourceURL})
	}
	return out
}
