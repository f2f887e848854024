package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/connectors"
	"github.com/custodia-labs/devrag-cli/internal/connectors/pathfilter"
	"github.com/custodia-labs/devrag-cli/internal/core/domain"
	"github.com/custodia-labs/devrag-cli/internal/core/ports/driven"
)

var (
	ingestWorkers  int
	ingestMaxSize  int
	ingestMaxFiles int
	ingestToken    string
	ingestGitHub   []string
	ingestRepo     string
	ingestInclude  []string
	ingestExclude  []string
	ingestWatch    bool
	ingestVerbose  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [path...]",
	Short: "Index documentation from GitHub repositories or local paths",
	Long: `Fetches documents from each target, chunks and embeds them, and
writes them to the vector index. Re-ingesting a document replaces its
previous chunks.

Targets:
  --github owner/repo[@ref]       a GitHub repository, repeatable
  github:owner/repo[@ref]         same, as a positional target
  https://github.com/owner/repo   same, by URL
  ./docs                          a local directory or file

Examples:
  devrag ingest --github acme/api
  devrag ingest ./docs --include 'docs/**/*.md' --exclude '**/CHANGELOG.md'
  devrag ingest ./docs --watch`,
	Annotations: needs(NeedsIndex),
	RunE:        runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.IntVarP(&ingestWorkers, "workers", "w", 0, "documents processed in parallel (default from ingest.workers)")
	f.IntVar(&ingestMaxSize, "max-size", 0, "skip files larger than this many bytes (default from ingest.max_file_size)")
	f.IntVar(&ingestMaxFiles, "max-files", 0, "stop each target after this many files (default from ingest.max_files)")
	f.StringSliceVar(&ingestGitHub, "github", nil, "GitHub repository owner/repo[@ref] to ingest, repeatable")
	f.StringVar(&ingestToken, "github-token", "", "GitHub token (default from GITHUB_TOKEN or github.token)")
	f.StringVar(&ingestRepo, "repo", "", "repository name recorded for local paths (default the directory name)")
	f.StringSliceVar(&ingestInclude, "include", nil, "glob of paths to include, repeatable")
	f.StringSliceVar(&ingestExclude, "exclude", nil, "glob of paths to exclude, repeatable")
	f.BoolVar(&ingestWatch, "watch", false, "keep running and re-index local changes")
	f.BoolVar(&ingestVerbose, "details", false, "list every document outcome")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return fmt.Errorf("ingest: %w", errNotConfigured)
	}

	targets := make([]string, 0, len(ingestGitHub)+len(args))
	for _, repo := range ingestGitHub {
		targets = append(targets, "github:"+repo)
	}
	targets = append(targets, args...)
	if len(targets) == 0 {
		return fmt.Errorf("nothing to ingest: give a path or --github owner/repo")
	}

	filter := pathfilter.Default()
	filter.Include = ingestInclude
	filter.Exclude = ingestExclude
	if ingestMaxSize > 0 {
		filter.MaxFileSize = int64(ingestMaxSize)
	}
	if err := filter.Validate(); err != nil {
		return err
	}

	token := ingestToken
	if token == "" {
		token = githubToken
	}
	opts := connectors.Options{
		Filter:      &filter,
		MaxFiles:    ingestMaxFiles,
		Repository:  ingestRepo,
		GitHubToken: token,
	}

	st := newStyles(cmd.OutOrStdout())
	var watchable []driven.WatchableSource
	var failed int

	for _, target := range targets {
		source, err := sourceFactory(cmd.Context(), target, opts)
		if err != nil {
			return fmt.Errorf("source %s: %w", target, err)
		}

		cmd.Println(st.Title.Render("Ingesting " + target))
		report, err := ingestService.Ingest(cmd.Context(), source)
		if report != nil {
			printReport(cmd, st, report, ingestVerbose)
			failed += report.Count(domain.OutcomeFailed)
		}
		if err != nil {
			_ = source.Close()
			return fmt.Errorf("ingest %s: %w", target, err)
		}

		if w, ok := source.(driven.WatchableSource); ok && ingestWatch {
			watchable = append(watchable, w)
			continue
		}
		if ingestWatch {
			cmd.Println(st.Warning.Render(fmt.Sprintf("%s cannot be watched, skipping", target)))
		}
		_ = source.Close()
	}

	if ingestWatch && len(watchable) > 0 {
		return watchSources(cmd, st, watchable)
	}
	if failed > 0 {
		return fmt.Errorf("%d documents failed to ingest", failed)
	}
	return nil
}

func watchSources(cmd *cobra.Command, st *Styles, sources []driven.WatchableSource) error {
	defer func() {
		for _, s := range sources {
			_ = s.Close()
		}
	}()

	cmd.Println(st.Muted.Render("Watching for changes, press Ctrl-C to stop."))
	errs := make(chan error, len(sources))
	for _, s := range sources {
		go func() {
			errs <- ingestService.Watch(cmd.Context(), s, func(o domain.DocumentOutcome) {
				printOutcome(cmd, st, o)
			})
		}()
	}

	var first error
	for range sources {
		if err := <-errs; err != nil && !errors.Is(err, cmd.Context().Err()) && first == nil {
			first = err
		}
	}
	return first
}

func printReport(cmd *cobra.Command, st *Styles, report *domain.IngestReport, details bool) {
	if details {
		outcomes := append([]domain.DocumentOutcome(nil), report.Outcomes...)
		sort.Slice(outcomes, func(i, j int) bool { return outcomes[i].Document < outcomes[j].Document })
		for _, o := range outcomes {
			printOutcome(cmd, st, o)
		}
	} else {
		for _, o := range report.Outcomes {
			if o.Status == domain.OutcomeFailed {
				printOutcome(cmd, st, o)
			}
		}
	}

	cmd.Printf("  indexed %d documents (%d chunks", report.Count(domain.OutcomeIndexed), report.Chunks())
	if n := report.OversizeChunks(); n > 0 {
		cmd.Printf(", %d oversize", n)
	}
	cmd.Printf("), skipped %d, failed %d\n",
		report.Count(domain.OutcomeSkipped), report.Count(domain.OutcomeFailed))
}

func printOutcome(cmd *cobra.Command, st *Styles, o domain.DocumentOutcome) {
	var status string
	switch o.Status {
	case domain.OutcomeIndexed:
		status = st.Success.Render("indexed")
	case domain.OutcomeRemoved:
		status = st.Muted.Render("removed")
	case domain.OutcomeSkipped:
		status = st.Muted.Render("skipped")
	default:
		status = st.Error.Render(string(o.Status))
	}

	line := fmt.Sprintf("  %-8s %s", status, o.Document)
	if o.Status == domain.OutcomeIndexed {
		line += fmt.Sprintf(" (%d chunks)", o.Chunks)
	}
	if o.Reason != "" {
		line += ": " + o.Reason
	}
	cmd.Println(line)
}
