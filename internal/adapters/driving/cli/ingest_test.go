package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

func TestIngestCmd_BuildsSourcesPerTarget(t *testing.T) {
	ts, buf := setupTestServices(t)
	githubToken = "gh-config"
	ts.ingest.report = &domain.IngestReport{Outcomes: []domain.DocumentOutcome{
		{Document: "acme/api:README.md", Status: domain.OutcomeIndexed, Chunks: 3, Oversize: 1},
		{Document: "acme/api:empty.md", Status: domain.OutcomeSkipped, Reason: "empty document"},
	}}

	err := execute("ingest", "github:acme/api", "./docs",
		"--include", "docs/**/*.md", "--include", "*.go",
		"--exclude", "**/vendor/**",
		"--max-size", "2048", "--max-files", "20", "--repo", "handbook")

	require.NoError(t, err)
	assert.Equal(t, []string{"github:acme/api", "./docs"}, ts.targets)
	require.Len(t, ts.opts, 2)

	opts := ts.opts[0]
	require.NotNil(t, opts.Filter)
	assert.Equal(t, []string{"docs/**/*.md", "*.go"}, opts.Filter.Include)
	assert.Equal(t, []string{"**/vendor/**"}, opts.Filter.Exclude)
	assert.Equal(t, int64(2048), opts.Filter.MaxFileSize)
	assert.Equal(t, 20, opts.MaxFiles)
	assert.Equal(t, "handbook", opts.Repository)
	assert.Equal(t, "gh-config", opts.GitHubToken)

	assert.Len(t, ts.ingest.sources, 2)
	for _, s := range ts.sources {
		assert.True(t, s.(*mockSource).closed)
	}

	out := buf.String()
	assert.Contains(t, out, "Ingesting github:acme/api")
	assert.Contains(t, out, "indexed 1 documents (3 chunks, 1 oversize), skipped 1, failed 0")
}

func TestIngestCmd_GitHubFlag(t *testing.T) {
	ts, _ := setupTestServices(t)

	require.NoError(t, execute("ingest", "--github", "acme/api@v2", "--github", "acme/web", "./notes"))

	assert.Equal(t, []string{"github:acme/api@v2", "github:acme/web", "./notes"}, ts.targets)
}

func TestIngestCmd_NoTargets(t *testing.T) {
	ts, _ := setupTestServices(t)

	err := execute("ingest")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to ingest")
	assert.Empty(t, ts.targets)
}

func TestIngestCmd_TokenFlagWins(t *testing.T) {
	ts, _ := setupTestServices(t)
	githubToken = "gh-config"

	require.NoError(t, execute("ingest", "github:acme/api", "--github-token", "gh-flag"))

	assert.Equal(t, "gh-flag", ts.opts[0].GitHubToken)
}

func TestIngestCmd_Details(t *testing.T) {
	ts, buf := setupTestServices(t)
	ts.ingest.report = &domain.IngestReport{Outcomes: []domain.DocumentOutcome{
		{Document: "r:b.md", Status: domain.OutcomeIndexed, Chunks: 2},
		{Document: "r:a.md", Status: domain.OutcomeSkipped, Reason: "unsupported"},
	}}

	require.NoError(t, execute("ingest", "./docs", "--details"))

	out := buf.String()
	assert.Contains(t, out, "r:b.md (2 chunks)")
	assert.Contains(t, out, "r:a.md: unsupported")
	assert.Less(t, strings.Index(out, "r:a.md"), strings.Index(out, "r:b.md"))
}

func TestIngestCmd_FailedDocuments(t *testing.T) {
	ts, buf := setupTestServices(t)
	ts.ingest.report = &domain.IngestReport{Outcomes: []domain.DocumentOutcome{
		{Document: "r:a.md", Status: domain.OutcomeFailed, Reason: "embedding: rate limited"},
	}}

	err := execute("ingest", "./docs")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 documents failed")
	assert.Contains(t, buf.String(), "r:a.md: embedding: rate limited")
}

func TestIngestCmd_IngestError(t *testing.T) {
	ts, _ := setupTestServices(t)
	ts.ingest.err = domain.ErrDimensionMismatch

	err := execute("ingest", "./docs")

	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.True(t, ts.sources[0].(*mockSource).closed)
}

func TestIngestCmd_BadGlob(t *testing.T) {
	ts, _ := setupTestServices(t)

	err := execute("ingest", "./docs", "--include", "docs/[")

	require.Error(t, err)
	assert.True(t, domain.IsConfiguration(err))
	assert.Empty(t, ts.targets)
}

func TestIngestCmd_Watch(t *testing.T) {
	ts, buf := setupTestServices(t)
	ts.watch = true

	require.NoError(t, execute("ingest", "./docs", "--watch"))

	out := buf.String()
	assert.Contains(t, out, "Watching for changes")
	assert.Contains(t, out, "docs:guide.md (2 chunks)")
	assert.True(t, ts.sources[0].(*mockWatchableSource).closed)
}

func TestIngestCmd_NotConfigured(t *testing.T) {
	setupTestServices(t)
	ingestService = nil

	err := execute("ingest", "./docs")

	assert.True(t, errors.Is(err, errNotConfigured))
}
