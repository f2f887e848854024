package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	flag := mcpCmd.PersistentFlags().Lookup("http")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestMCPServeCmd_RequiresSearch(t *testing.T) {
	setupTestServices(t)
	searchService = nil

	err := execute("mcp", "serve")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service is required")
}
