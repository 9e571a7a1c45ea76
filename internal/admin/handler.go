// Package admin exposes the management HTTP endpoints served alongside the
// SSE transport: specification reload and health.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openapi-mcp/proxy/internal/proxy"
)

// Handlers holds dependencies for the admin HTTP handlers.
type Handlers struct {
	registry *proxy.Registry
	logger   *slog.Logger
}

// NewHandlers creates a Handlers struct.
func NewHandlers(registry *proxy.Registry, logger *slog.Logger) *Handlers {
	return &Handlers{
		registry: registry,
		logger:   logger.With("component", "admin_handler"),
	}
}

// Register sets up the admin routes on the given mux.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /admin/reload", h.handleReload)
	mux.HandleFunc("GET /healthz", h.handleHealth)
}

// handleReload re-runs the specification loader for the active proxy. Local
// spec files changed on disk are picked up here via the loader's mtime check.
func (h *Handlers) handleReload(w http.ResponseWriter, r *http.Request) {
	p, err := h.registry.Get(r.Context(), nil)
	if err != nil {
		h.logger.Warn("Reload requested before proxy initialization.", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	if err := p.Reload(r.Context()); err != nil {
		h.logger.Error("Failed to reload specification.", slog.Any("error", err))
		http.Error(w, "Failed to reload specification: "+err.Error(), http.StatusBadGateway)
		return
	}

	names := p.ToolNames()
	h.logger.Info("Specification reloaded.", slog.Int("tool_count", len(names)))
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"source": p.Source,
		"tools":  names,
	})
}

func (h *Handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
