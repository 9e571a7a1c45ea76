// Package proxy assembles the MCP server surface for one OpenAPI upstream:
// tool generation from the loaded document, upstream invocation, and the
// process-wide registry guarding against source switches.
package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/openapi-mcp/proxy/internal/client"
	"github.com/openapi-mcp/proxy/internal/config"
	"github.com/openapi-mcp/proxy/internal/spec"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// Proxy is one assembled MCP server bound to one OpenAPI source.
type Proxy struct {
	Name   string
	Source string
	Server *server.MCPServer

	cfg       *config.RuntimeConfig
	loader    *spec.Loader
	generator *Generator
	invoker   *Invoker
	logger    *slog.Logger
	toolNames []string
}

// New loads the configured document, builds the outbound client and
// registers one MCP tool per operation.
func New(ctx context.Context, cfg *config.RuntimeConfig, loader *spec.Loader, logger *slog.Logger) (*Proxy, error) {
	doc, err := loader.Load(ctx, cfg.OpenAPISource)
	if err != nil {
		return nil, err
	}

	desc, err := client.Build(cfg, doc)
	if err != nil {
		return nil, err
	}

	p := &Proxy{
		Name:      cfg.ServerName,
		Source:    cfg.OpenAPISource,
		Server:    server.NewMCPServer(cfg.ServerName, Version, server.WithToolCapabilities(true)),
		cfg:       cfg,
		loader:    loader,
		generator: NewGenerator(logger),
		invoker:   NewInvoker(desc, logger),
		logger:    logger.With("component", "proxy"),
	}

	if err := p.register(ctx, doc); err != nil {
		return nil, err
	}
	return p, nil
}

// Reload re-runs the loader (local sources honor mtime staleness) and
// re-registers the tool set, dropping tools for operations that disappeared.
func (p *Proxy) Reload(ctx context.Context) error {
	doc, err := p.loader.Load(ctx, p.Source)
	if err != nil {
		return err
	}
	return p.register(ctx, doc)
}

// ToolNames returns the names of the currently registered tools.
func (p *Proxy) ToolNames() []string {
	names := make([]string, len(p.toolNames))
	copy(names, p.toolNames)
	return names
}

func (p *Proxy) register(ctx context.Context, doc spec.Document) error {
	tools, details, err := p.generator.Generate(ctx, doc)
	if err != nil {
		return err
	}
	if len(tools) != len(details) {
		return fmt.Errorf("generator produced %d tools but %d invocation details", len(tools), len(details))
	}

	registered := make(map[string]bool, len(tools))
	names := make([]string, 0, len(tools))
	for idx, tool := range tools {
		p.Server.AddTool(toMCPTool(tool), p.handler(details[idx]))
		registered[tool.Name] = true
		names = append(names, tool.Name)
	}

	var stale []string
	for _, name := range p.toolNames {
		if !registered[name] {
			stale = append(stale, name)
		}
	}
	if len(stale) > 0 {
		p.Server.DeleteTools(stale...)
		p.logger.Info("Removed tools no longer present in the specification.", slog.Int("count", len(stale)))
	}

	p.toolNames = names
	p.logger.Info("Registered tools with MCP server.", slog.Int("tool_count", len(names)))
	return nil
}

func (p *Proxy) handler(details InvocationDetails) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		result, err := p.invoker.Invoke(ctx, details, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		switch v := result.(type) {
		case string:
			return mcp.NewToolResultText(v), nil
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("cannot encode upstream response: %v", err)), nil
			}
			return mcp.NewToolResultText(string(encoded)), nil
		}
	}
}

func toMCPTool(t Tool) mcp.Tool {
	return mcp.Tool{
		Name:        t.Name,
		Description: t.Description,
		InputSchema: mcp.ToolInputSchema{
			Type:       t.InputSchema.Type,
			Properties: t.InputSchema.Properties,
			Required:   t.InputSchema.Required,
		},
	}
}
