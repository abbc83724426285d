// Package server provides the MCP server wrapper with lifecycle management.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/raphaelgruber/datachat/internal/tools"
)

// Server wraps the MCP server with dependencies and lifecycle management.
type Server struct {
	mcp    *mcp.Server
	deps   *tools.Dependencies
	logger *slog.Logger
}

// New creates a new MCP server that relays tool calls through deps.
func New(version string, deps *tools.Dependencies) *Server {
	impl := &mcp.Implementation{
		Name:    "datachat",
		Version: version,
	}

	return &Server{
		mcp:    mcp.NewServer(impl, nil),
		deps:   deps,
		logger: deps.Logger,
	}
}

// Setup adds logging middleware and registers the chat tools.
func (s *Server) Setup() {
	s.mcp.AddReceivingMiddleware(LoggingMiddleware(s.logger))
	tools.RegisterAll(s.mcp, s.deps)
}

// Run starts the server on stdio transport and blocks until disconnect or context cancellation.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return s.mcp.Run(ctx, &mcp.StdioTransport{})
}

// MCPServer returns the underlying MCP server, e.g. for in-memory transports in tests.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcp
}
