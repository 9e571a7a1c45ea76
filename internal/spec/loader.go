// Package spec loads OpenAPI documents from local paths, file:// URLs and
// http(s) URLs, caching parsed documents by their normalized source identity.
// Local entries are revalidated by file modification time; HTTP entries are
// valid for the lifetime of the loader.
package spec

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"
)

// DefaultHTTPTimeout bounds a single remote specification download.
const DefaultHTTPTimeout = 10 * time.Second

// Document is the parsed, shape-validated OpenAPI specification. No semantic
// validation happens here; the only guarantee is a mapping at the top level.
type Document map[string]any

// Error reports a specification retrieval or parse failure.
type Error struct {
	msg string
	err error
}

func (e *Error) Error() string {
	if e.err != nil {
		return e.msg + ": " + e.err.Error()
	}
	return e.msg
}

func (e *Error) Unwrap() error { return e.err }

func errorf(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func wrapErr(err error, format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...), err: err}
}

type cacheEntry struct {
	doc      Document
	raw      []byte
	mtime    time.Time
	hasMtime bool

	// Captured for HTTP sources; informational only, entries are never
	// revalidated against the server.
	etag         string
	lastModified string
}

// Loader fetches and parses OpenAPI documents with caching. It is not safe
// for concurrent use; callers needing that must add their own locking.
type Loader struct {
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	cache      map[string]*cacheEntry
}

// NewLoader creates a Loader. A nil client gets a default one with
// DefaultHTTPTimeout.
func NewLoader(client *http.Client, logger *slog.Logger) *Loader {
	if client == nil {
		client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Loader{
		httpClient: client,
		logger:     logger.With("component", "spec_loader"),
		tracer:     otel.Tracer("openapi-mcp-proxy/spec"),
		cache:      make(map[string]*cacheEntry),
	}
}

// Load fetches, parses and caches the document named by source.
func (l *Loader) Load(ctx context.Context, source string) (Document, error) {
	entry, err := l.loadEntry(ctx, source)
	if err != nil {
		return nil, err
	}
	return entry.doc, nil
}

// LoadRaw is Load plus the raw bytes the document was parsed from, for
// consumers that feed the content to their own parser.
func (l *Loader) LoadRaw(ctx context.Context, source string) (Document, []byte, error) {
	entry, err := l.loadEntry(ctx, source)
	if err != nil {
		return nil, nil, err
	}
	return entry.doc, entry.raw, nil
}

func (l *Loader) loadEntry(ctx context.Context, source string) (*cacheEntry, error) {
	src, err := Classify(source)
	if err != nil {
		return nil, err
	}

	if src.Kind == SourceHTTP {
		return l.loadHTTP(ctx, src)
	}
	return l.loadPath(src)
}

func (l *Loader) loadPath(src Source) (*cacheEntry, error) {
	log := l.logger.With(slog.String("path", src.Path))

	info, err := os.Stat(src.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, errorf("OpenAPI specification file does not exist: %s", src.Path)
		}
		return nil, wrapErr(err, "cannot access OpenAPI specification file %s", src.Path)
	}

	mtime := info.ModTime()
	if cached, ok := l.cache[src.Key]; ok && cached.hasMtime && cached.mtime.Equal(mtime) {
		log.Debug("Returning cached specification.", slog.Time("mtime", mtime))
		return cached, nil
	}

	content, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, wrapErr(err, "failed to read OpenAPI specification file %s", src.Path)
	}

	doc, err := parseDocument(content, strings.ToLower(filepath.Ext(src.Path)))
	if err != nil {
		return nil, err
	}

	entry := &cacheEntry{doc: doc, raw: content, mtime: mtime, hasMtime: true}
	l.cache[src.Key] = entry
	log.Info("Loaded OpenAPI specification from file.", slog.Time("mtime", mtime))
	return entry, nil
}

func (l *Loader) loadHTTP(ctx context.Context, src Source) (*cacheEntry, error) {
	log := l.logger.With(slog.String("url", src.Raw))

	if cached, ok := l.cache[src.Key]; ok {
		log.Debug("Returning cached specification.")
		return cached, nil
	}

	ctx, span := l.tracer.Start(ctx, "spec.fetch",
		trace.WithAttributes(attribute.String("spec.source", src.Raw)))
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.Raw, nil)
	if err != nil {
		return nil, wrapErr(err, "failed to create request for %s", src.Raw)
	}

	resp, err := l.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, wrapErr(err, "OpenAPI specification download timed out (%s): %s", l.httpClient.Timeout, src.Raw)
		}
		return nil, wrapErr(err, "failed to download OpenAPI specification: %s", src.Raw)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errorf("failed to download OpenAPI specification: %s\nHTTP error: status %s", src.Raw, resp.Status)
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, wrapErr(err, "failed to read specification response body from %s", src.Raw)
	}

	hint := ""
	if u, parseErr := url.Parse(src.Raw); parseErr == nil {
		hint = strings.ToLower(path.Ext(u.Path))
	}
	doc, err := parseDocument(content, hint)
	if err != nil {
		return nil, err
	}

	entry := &cacheEntry{
		doc:          doc,
		raw:          content,
		etag:         resp.Header.Get("ETag"),
		lastModified: resp.Header.Get("Last-Modified"),
	}
	l.cache[src.Key] = entry
	log.Info("Loaded OpenAPI specification from URL.", slog.Int("bytes", len(content)))
	return entry, nil
}

// parseDocument picks a parser by extension hint. Without a usable hint it
// tries YAML first and falls back to JSON, preserving that order for
// compatibility; this is a heuristic, not content-type detection.
func parseDocument(content []byte, extHint string) (Document, error) {
	switch extHint {
	case ".json":
		return parseJSON(content)
	case ".yaml", ".yml":
		return parseYAML(content)
	}
	doc, err := parseYAML(content)
	if err != nil {
		return parseJSON(content)
	}
	return doc, nil
}

func parseYAML(content []byte) (Document, error) {
	var parsed any
	if err := yaml.Unmarshal(content, &parsed); err != nil {
		return nil, wrapErr(err, "OpenAPI specification is not valid YAML")
	}
	return asDocument(parsed, "YAML")
}

func parseJSON(content []byte) (Document, error) {
	var parsed any
	if err := json.Unmarshal(content, &parsed); err != nil {
		return nil, wrapErr(err, "OpenAPI specification is not valid JSON")
	}
	return asDocument(parsed, "JSON")
}

func asDocument(parsed any, format string) (Document, error) {
	mapping, ok := parsed.(map[string]any)
	if !ok {
		return nil, errorf("OpenAPI specification parsed from %s must be an object at the top level", format)
	}
	return Document(mapping), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
