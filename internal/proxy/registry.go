package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/openapi-mcp/proxy/internal/config"
	"github.com/openapi-mcp/proxy/internal/spec"
)

// Registry memoizes the single Proxy a process is allowed to run. Once a
// proxy exists for one OpenAPI source, asking for a different source fails
// fast; the process must restart to switch upstreams.
type Registry struct {
	mu     sync.Mutex
	loader *spec.Loader
	logger *slog.Logger
	proxy  *Proxy
}

// NewRegistry creates an empty Registry around a loader.
func NewRegistry(loader *spec.Loader, logger *slog.Logger) *Registry {
	return &Registry{
		loader: loader,
		logger: logger,
	}
}

// Get returns the memoized proxy, building it on first use. A nil cfg
// returns the existing proxy or an error when none has been built yet.
func (r *Registry) Get(ctx context.Context, cfg *config.RuntimeConfig) (*Proxy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.proxy != nil {
		if cfg != nil && cfg.OpenAPISource != r.proxy.Source {
			return nil, fmt.Errorf(
				"proxy already created for OpenAPI source %q; restart the process to switch to %q",
				r.proxy.Source, cfg.OpenAPISource)
		}
		return r.proxy, nil
	}

	if cfg == nil {
		return nil, fmt.Errorf("proxy not initialized; a runtime configuration is required for the first call")
	}

	r.logger.Info("Building proxy.",
		slog.String("component", "registry"),
		slog.String("source", cfg.OpenAPISource),
		slog.String("server_name", cfg.ServerName))
	proxy, err := New(ctx, cfg, r.loader, r.logger)
	if err != nil {
		return nil, err
	}
	r.proxy = proxy
	return proxy, nil
}
