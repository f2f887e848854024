package cli

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

func TestStatsCmd(t *testing.T) {
	ts, buf := setupTestServices(t)
	ts.stats.stats = domain.IndexStats{
		Records:      40,
		Documents:    6,
		Dimensions:   1536,
		Repositories: map[string]int{"acme/api": 10, "acme/web": 30},
		Languages:    map[string]int{"markdown": 25, "go": 15},
	}

	require.NoError(t, execute("stats"))

	out := buf.String()
	assert.Contains(t, out, "Chunks: 40")
	assert.Contains(t, out, "Documents: 6")
	assert.Contains(t, out, "Dimensions: 1536")
	assert.Less(t, strings.Index(out, "acme/web"), strings.Index(out, "acme/api"), "largest first")
}

func TestStatsCmd_JSON(t *testing.T) {
	ts, buf := setupTestServices(t)
	ts.stats.stats = domain.IndexStats{Records: 2, Repositories: map[string]int{"docs": 2}}

	require.NoError(t, execute("stats", "--json"))

	assert.Contains(t, buf.String(), `"records": 2`)
	assert.Contains(t, buf.String(), `"docs": 2`)
}

func TestStatsCmd_Error(t *testing.T) {
	ts, _ := setupTestServices(t)
	ts.stats.err = errors.New("database is locked")

	err := execute("stats")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}
