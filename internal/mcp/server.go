// Package mcp exposes the opsdesk dashboard and ticket triage workflow as
// MCP tools so AI agents can read dashboard state and drive triage actions.
package mcp

import (
	"log/slog"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/opsdesk/opsdesk/internal/dashboard"
	"github.com/opsdesk/opsdesk/internal/ticket"
)

// MCPServer wraps the mcp-go server with opsdesk tool registrations.
type MCPServer struct {
	dash   *dashboard.Service
	ctrl   *ticket.Controller
	logger *slog.Logger
	server *server.MCPServer
}

// NewMCPServer creates an MCPServer pre-loaded with the opsdesk tools. The
// returned server is ready to serve over stdio or HTTP.
func NewMCPServer(dash *dashboard.Service, ctrl *ticket.Controller, logger *slog.Logger) *MCPServer {
	s := &MCPServer{
		dash:   dash,
		ctrl:   ctrl,
		logger: logger,
	}

	mcpServer := server.NewMCPServer(
		"Opsdesk Dashboard",
		"0.1.0",
		server.WithToolCapabilities(true),
	)

	s.registerTools(mcpServer)

	s.server = mcpServer
	return s
}

// Server returns the underlying mcp-go MCPServer instance. Useful for
// advanced configuration or testing.
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// ServeStdio starts the MCP server in stdio mode. This is the primary
// integration path for MCP clients that launch the server as a subprocess.
func (s *MCPServer) ServeStdio() error {
	s.logger.Info("starting MCP server in stdio mode")
	return server.ServeStdio(s.server)
}

// ServeHTTP starts a standalone MCP server in Streamable HTTP mode,
// listening on the given address (e.g. ":3001").
func (s *MCPServer) ServeHTTP(addr string) error {
	httpServer := server.NewStreamableHTTPServer(s.server)
	s.logger.Info("MCP HTTP server starting", "addr", addr)
	return httpServer.Start(addr)
}

// HTTPHandler returns the Streamable HTTP transport as an http.Handler for
// mounting inside the main API server.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.server)
}

func readOnlyAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(true),
	}
}

func mutatingAnnotation() mcp.ToolAnnotation {
	return mcp.ToolAnnotation{
		ReadOnlyHint: boolPtr(false),
	}
}

func boolPtr(b bool) *bool {
	return &b
}
