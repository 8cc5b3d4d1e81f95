package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/kcache/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search and
extend the knowledge cache.

By default, the server communicates over stdio using JSON-RPC. Use --port to
serve streamable HTTP instead, which is useful with the MCP Inspector.

Tools:
  search   rank saved passages against a query
  ingest   save a piece of text (disable with --read-only)

Resources:
  kcache://items                  saved items, newest first
  kcache://items/{id}             indexed text of an item
  kcache://items/{id}/chunks      chunks of an item

Examples:
  # Stdio mode (default)
  kcache mcp serve

  # HTTP mode
  kcache mcp serve --port 8080

Client configuration:
  {
    "mcpServers": {
      "kcache": {
        "command": "/path/to/kcache",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().Bool("read-only", false, "do not expose the ingest tool")
	needsEngine(mcpServeCmd)
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	readOnly, err := cmd.Flags().GetBool("read-only")
	if err != nil {
		return fmt.Errorf("getting read-only flag: %w", err)
	}

	ports := &mcp.Ports{
		Search:    searchService,
		Ingest:    ingestService,
		Knowledge: knowledgeService,
	}

	server, err := mcp.NewServer(ports, mcp.WithReadOnly(readOnly))
	if err != nil {
		return err
	}

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
