package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/openapi-mcp/proxy/internal/client"
)

// Invoker executes upstream HTTP calls for generated tools through the
// configured client descriptor. Credentials and static headers are injected
// by the descriptor's transport, not here.
type Invoker struct {
	desc   *client.Descriptor
	logger *slog.Logger
	tracer trace.Tracer
}

// NewInvoker creates an Invoker bound to one client descriptor.
func NewInvoker(desc *client.Descriptor, logger *slog.Logger) *Invoker {
	return &Invoker{
		desc:   desc,
		logger: logger.With("component", "http_invoker"),
		tracer: otel.Tracer("openapi-mcp-proxy/invoker"),
	}
}

// Invoke maps tool arguments onto the operation's path, query, header and
// body slots and performs the request. Non-2xx responses are errors carrying
// the status and a body snippet.
func (i *Invoker) Invoke(ctx context.Context, details InvocationDetails, args map[string]any) (any, error) {
	log := i.logger.With(slog.String("method", details.Method), slog.String("path", details.Path))

	ctx, span := i.tracer.Start(ctx, "proxy.invoke", trace.WithAttributes(
		attribute.String("http.method", details.Method),
		attribute.String("http.route", details.Path),
	))
	defer span.End()

	if i.desc.BaseURL == "" {
		return nil, fmt.Errorf("no base URL configured; set base_url or add a servers entry to the specification")
	}
	base, err := url.Parse(i.desc.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %s: %w", i.desc.BaseURL, err)
	}

	remaining := make(map[string]any, len(args))
	for k, v := range args {
		remaining[k] = v
	}

	// Path parameters.
	processedPath := details.Path
	for _, name := range details.PathParams {
		value, ok := remaining[name]
		if !ok {
			return nil, fmt.Errorf("missing required path parameter %q", name)
		}
		processedPath = strings.ReplaceAll(processedPath, "{"+name+"}", url.PathEscape(fmt.Sprintf("%v", value)))
		delete(remaining, name)
	}

	target := *base
	target.Path = strings.TrimRight(base.Path, "/") + processedPath

	// Query parameters.
	query := target.Query()
	for _, name := range details.QueryParams {
		if value, ok := remaining[name]; ok {
			query.Set(name, fmt.Sprintf("%v", value))
			delete(remaining, name)
		}
	}
	target.RawQuery = query.Encode()

	// Header parameters.
	headerValues := map[string]string{}
	for _, name := range details.HeaderParams {
		if value, ok := remaining[name]; ok {
			headerValues[name] = fmt.Sprintf("%v", value)
			delete(remaining, name)
		}
	}

	// Request body: either the designated wrapper argument or whatever
	// arguments are left over, for methods that take a body.
	var body io.Reader
	bodyAllowed := details.Method == http.MethodPost || details.Method == http.MethodPut || details.Method == http.MethodPatch
	if bodyAllowed {
		var payload any
		switch {
		case details.BodyParam != "":
			payload = remaining[details.BodyParam]
		case len(remaining) > 0:
			payload = remaining
		}
		if payload != nil {
			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("cannot encode request body: %w", err)
			}
			body = bytes.NewReader(encoded)
		}
	}

	req, err := http.NewRequestWithContext(ctx, details.Method, target.String(), body)
	if err != nil {
		return nil, fmt.Errorf("cannot build request for %s %s: %w", details.Method, target.String(), err)
	}
	if body != nil {
		req.Header.Set("Content-Type", details.ContentType)
	}
	for name, value := range headerValues {
		req.Header.Set(name, value)
	}

	log.Debug("Invoking upstream operation.", slog.String("url", target.String()))
	resp, err := i.desc.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed for %s %s: %w", details.Method, target.String(), err)
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("cannot read upstream response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(responseBody)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		return nil, fmt.Errorf("upstream returned %s for %s %s: %s", resp.Status, details.Method, details.Path, snippet)
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "json") {
		var decoded any
		if err := json.Unmarshal(responseBody, &decoded); err == nil {
			return decoded, nil
		}
		log.Warn("Upstream declared JSON but the body did not decode; returning raw text.")
	}
	return string(responseBody), nil
}
