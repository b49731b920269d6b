// Package mcp exposes running debug sessions to agents over the Model Context
// Protocol (MCP).
//
// The tools work on the sessions IDEs have opened through the DAP server:
//
// Inspection (always available):
//   - session_list: List live sessions and their state
//   - session_breakpoints: Breakpoints of a session, including the entry breakpoint
//   - session_stack: Stack and top-frame locals of a suspended session
//   - session_evaluate: Evaluate an expression (when evaluation is allowed)
//
// Control (full mode only):
//   - session_continue, session_step, session_pause: Execution control
//   - session_disconnect: End a session
package mcp

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ctagard/brs-dap/internal/config"
	"github.com/ctagard/brs-dap/internal/log"
	"github.com/ctagard/brs-dap/internal/session"
	"github.com/ctagard/brs-dap/internal/version"
)

// EndpointPath is where the streamable HTTP endpoint is mounted.
const EndpointPath = "/mcp"

// Server wraps the MCP server with access to the debug sessions.
type Server struct {
	mcpServer *server.MCPServer
	manager   *session.Manager
	config    *config.Config
	logger    *slog.Logger
}

// NewServer creates an MCP server over manager's sessions.
func NewServer(cfg *config.Config, manager *session.Manager, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mcpServer := server.NewMCPServer(
		"brs-dap",
		version.GetVersion(),
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		mcpServer: mcpServer,
		manager:   manager,
		config:    cfg,
		logger:    log.WithComponent(logger, "mcp"),
	}
	s.registerTools()
	return s
}

// Handler returns the streamable HTTP handler.
func (s *Server) Handler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// ListenAndServe serves the MCP endpoint on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle(EndpointPath, s.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info("serving MCP", "addr", addr, "path", EndpointPath, "mode", string(s.config.Mode))
	if err := srv.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("mcp endpoint: %w", err)
	}
	return nil
}
