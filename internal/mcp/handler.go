// Package mcp exposes the operation registry as MCP tools over streamable
// HTTP and stdio.
package mcp

import (
	"context"
	"io"
	"net/http"
	"sync"

	"github.com/bobmcallan/toolsmith/internal/common"
	"github.com/bobmcallan/toolsmith/internal/interfaces"
	"github.com/bobmcallan/toolsmith/internal/models"
	mcpserver "github.com/mark3labs/mcp-go/server"
)

// Options configures the MCP server identity.
type Options struct {
	Name    string
	Version string
}

// Handler is the HTTP handler for the MCP endpoint.
// It wraps mcp-go's StreamableHTTPServer and delegates to it.
type Handler struct {
	server     *mcpserver.MCPServer
	streamable *mcpserver.StreamableHTTPServer
	svc        interfaces.ToolService
	logger     *common.Logger

	syncMu sync.Mutex
}

// NewHandler creates an MCP handler whose tool set follows every registry refresh.
func NewHandler(svc interfaces.ToolService, opts Options, logger *common.Logger) *Handler {
	if opts.Name == "" {
		opts.Name = "toolsmith"
	}
	if opts.Version == "" {
		opts.Version = common.GetVersion()
	}
	mcpSrv := mcpserver.NewMCPServer(
		opts.Name,
		opts.Version,
		mcpserver.WithToolCapabilities(true),
	)

	h := &Handler{server: mcpSrv, svc: svc, logger: logger}
	h.streamable = mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithStateLess(true),
		mcpserver.WithHTTPContextFunc(withRequestCredentials),
	)

	count := h.Sync()
	svc.Subscribe(func(revision int64, diff models.RegistryDiff) {
		n := h.Sync()
		logger.Info().
			Int64("revision", revision).
			Int("tools", n).
			Int("added", len(diff.Added)).
			Int("removed", len(diff.Removed)).
			Msg("MCP tool set replaced")
	})

	logger.Info().Int("tools", count).Str("name", opts.Name).Msg("MCP handler initialized")
	return h
}

// Sync replaces the tool set with the service's current operations and
// returns the number of operation tools.
func (h *Handler) Sync() int {
	h.syncMu.Lock()
	defer h.syncMu.Unlock()
	return RegisterOperations(h.server, h.svc, h.svc.ListOperations("", ""), h.logger)
}

// Server returns the underlying MCP server.
func (h *Handler) Server() *mcpserver.MCPServer {
	return h.server
}

// ServeHTTP delegates to the mcp-go StreamableHTTPServer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.streamable.ServeHTTP(w, r)
}

// ServeStdio serves MCP over in and out until ctx is done or in is closed.
func (h *Handler) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	return mcpserver.NewStdioServer(h.server).Listen(ctx, in, out)
}
