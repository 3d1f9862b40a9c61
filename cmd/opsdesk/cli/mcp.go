package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/mcp"
	"github.com/opsdesk/opsdesk/internal/metrics"
	"github.com/opsdesk/opsdesk/internal/ticket"
	"github.com/opsdesk/opsdesk/internal/upstream"
)

func newMCPCmd() *cobra.Command {
	var (
		transport string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for AI agents",
		Long: `Start a Model Context Protocol (MCP) server that exposes the dashboard and
ticket triage workflow as tools for AI agents. Supports stdio (default) and
HTTP transports.

In stdio mode, the MCP server communicates over stdin/stdout using JSON-RPC,
suitable for direct integration with MCP desktop clients.

In HTTP mode, the server listens on the specified port using the streamable
HTTP transport.`,
		Example: `  opsdesk mcp                              # stdio mode
  opsdesk mcp --transport http --port 3001 # HTTP mode`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(transport, port)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "stdio", "Transport mode: stdio or http")
	cmd.Flags().IntVar(&port, "port", 3001, "HTTP port (only used with --transport http)")

	return cmd
}

func runMCP(transport string, port int) error {
	// The API server logs to stderr too, but in stdio mode that is mandatory:
	// stdout belongs to the JSON-RPC stream.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	store, err := openConfigStore()
	if err != nil {
		return fmt.Errorf("init config store: %w", err)
	}
	defer store.Close()

	upstreamCfg := upstream.Config{
		BaseURL: resolveUpstreamURL(),
		Timeout: viper.GetDuration("upstream.timeout"),
	}
	tokens := upstream.StoreToken{
		Settings: store,
		Fallback: viper.GetString("upstream.token"),
	}
	client := upstream.New(upstreamCfg, tokens, logger)

	source := metrics.NewMock()
	ctrl := ticket.NewController(client, logger)
	dash := dashboard.New(client, source, logger)

	mcpSrv := mcp.NewMCPServer(dash, ctrl, logger)

	switch transport {
	case "stdio":
		return mcpSrv.ServeStdio()
	case "http":
		return mcpSrv.ServeHTTP(fmt.Sprintf(":%d", port))
	default:
		return fmt.Errorf("unsupported transport %q; use 'stdio' or 'http'", transport)
	}
}
