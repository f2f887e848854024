package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/devrag-cli/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long: `Commands for the Model Context Protocol (MCP) server integration.
Without a subcommand the server is started as with 'mcp serve'.`,
	Annotations: needs(NeedsLLM),
	RunE:        runMCPServe,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
and ask questions about the indexed documentation.

By default the server communicates over stdio using JSON-RPC. Use --http to
serve HTTP instead, which also exposes Prometheus metrics at /metrics.

Examples:
  # Stdio mode (default, for desktop assistants)
  devrag mcp serve

  # HTTP mode (for MCP Inspector, remote access and metrics scraping)
  devrag mcp serve --http :8080

Assistant configuration:
  {
    "mcpServers": {
      "devrag": {
        "command": "/path/to/devrag",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpCmd.PersistentFlags().String("http", "", "HTTP listen address such as :8080 (empty = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	addr, err := cmd.Flags().GetString("http")
	if err != nil {
		return fmt.Errorf("getting http flag: %w", err)
	}

	ports := &mcp.Ports{
		Search: searchService,
		RAG:    ragService,
		Stats:  statsService,
	}

	server, err := mcp.NewServer(ports,
		mcp.WithVersion(version),
		mcp.WithHandler("/metrics", appMetrics.Handler()),
	)
	if err != nil {
		return err
	}

	if addr != "" {
		fmt.Fprintf(cmd.ErrOrStderr(), "MCP server listening on http://%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
