package server

import "net/http"

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// MCP endpoint (JSON-RPC over HTTP)
	if s.app.MCPHandler != nil {
		mux.Handle("/mcp", s.app.MCPHandler)
	}

	if s.app.Metrics != nil {
		mux.Handle("/metrics", s.app.Metrics.Handler())
	}

	// API routes
	mux.HandleFunc("/api/health", s.app.HealthHandler.ServeHTTP)
	mux.HandleFunc("/api/version", s.app.VersionHandler.ServeHTTP)

	ops := s.app.OperationsHandler
	mux.HandleFunc("/api/operations", Methods(MethodRouter{"GET": ops.HandleList}))
	mux.HandleFunc("/api/operations/", Methods(MethodRouter{"GET": ops.ServeItem, "POST": ops.ServeItem}))
	mux.HandleFunc("/api/refresh", Methods(MethodRouter{"POST": ops.HandleRefresh}))
	mux.HandleFunc("/api/status", Methods(MethodRouter{"GET": ops.HandleStatus}))

	// 404 handler for unmatched API routes
	mux.HandleFunc("/api/", s.handleNotFound)

	return mux
}

// handleNotFound returns a JSON 404 for unmatched API routes.
func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`{"error":"Not Found","message":"The requested endpoint does not exist"}`))
}
