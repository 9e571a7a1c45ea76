// Package client builds the configured outbound HTTP client handed to the
// proxy assembly: base URL derivation, TLS and proxy settings, credential
// injection and optional retries.
package client

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/openapi-mcp/proxy/internal/auth"
	"github.com/openapi-mcp/proxy/internal/config"
	"github.com/openapi-mcp/proxy/internal/spec"
)

// Descriptor is the fully configured outbound client. HTTPClient already
// injects the static headers, auth credentials and cookies on every request;
// callers only supply method, path and body.
type Descriptor struct {
	HTTPClient *http.Client

	// BaseURL is the effective upstream base URL; empty when neither the
	// configuration nor the document's servers list provides one.
	BaseURL string

	// Headers is the merged static header set (config headers first, auth
	// strategy headers layered on top).
	Headers     map[string]string
	QueryParams map[string]string
	Cookies     map[string]string
	Basic       *auth.BasicAuth
}

// Build assembles a Descriptor from the merged runtime configuration and the
// loaded document. The explicit base_url override wins over the document's
// servers list.
func Build(cfg *config.RuntimeConfig, doc spec.Document) (*Descriptor, error) {
	strategy, err := auth.Resolve(cfg.Auth)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string, len(cfg.Headers)+len(strategy.Headers()))
	for k, v := range cfg.Headers {
		headers[k] = v
	}
	for k, v := range strategy.Headers() {
		headers[k] = v
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DeriveBaseURL(doc)
	}

	transport, err := buildTransport(cfg.Client)
	if err != nil {
		return nil, err
	}

	var rt http.RoundTripper = transport
	if cfg.Client.Retries > 0 {
		rt = newRetryTransport(rt, cfg.Client.Retries)
	}
	rt = &injectTransport{
		next:    rt,
		headers: headers,
		query:   strategy.QueryParams(),
		cookies: strategy.Cookies(),
		basic:   strategy.Basic(),
	}

	return &Descriptor{
		HTTPClient: &http.Client{
			Transport: rt,
			Timeout:   cfg.Client.Timeout,
		},
		BaseURL:     baseURL,
		Headers:     headers,
		QueryParams: strategy.QueryParams(),
		Cookies:     strategy.Cookies(),
		Basic:       strategy.Basic(),
	}, nil
}

// DeriveBaseURL returns the first non-blank url entry from the document's
// servers list, in list order, or the empty string.
func DeriveBaseURL(doc spec.Document) string {
	servers, ok := doc["servers"].([]any)
	if !ok {
		return ""
	}
	for _, candidate := range servers {
		entry, ok := candidate.(map[string]any)
		if !ok {
			continue
		}
		if u, ok := entry["url"].(string); ok {
			if trimmed := strings.TrimSpace(u); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

func buildTransport(cfg config.ClientConfig) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if cfg.Verify.Insecure || cfg.Verify.CABundle != "" {
		tlsCfg := &tls.Config{}
		if cfg.Verify.Insecure {
			tlsCfg.InsecureSkipVerify = true
		}
		if cfg.Verify.CABundle != "" {
			pem, err := os.ReadFile(cfg.Verify.CABundle)
			if err != nil {
				return nil, fmt.Errorf("cannot read CA bundle %s: %w", cfg.Verify.CABundle, err)
			}
			pool := x509.NewCertPool()
			if !pool.AppendCertsFromPEM(pem) {
				return nil, fmt.Errorf("CA bundle %s contains no usable certificates", cfg.Verify.CABundle)
			}
			tlsCfg.RootCAs = pool
		}
		transport.TLSClientConfig = tlsCfg
	}

	if cfg.Proxy != nil {
		proxyFn, err := proxyFunc(cfg.Proxy)
		if err != nil {
			return nil, err
		}
		transport.Proxy = proxyFn
	}

	return transport, nil
}

func proxyFunc(cfg *config.ProxyConfig) (func(*http.Request) (*url.URL, error), error) {
	if cfg.URL != "" {
		proxyURL, err := url.Parse(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q: %w", cfg.URL, err)
		}
		return http.ProxyURL(proxyURL), nil
	}

	perScheme := make(map[string]*url.URL, len(cfg.PerScheme))
	for scheme, target := range cfg.PerScheme {
		proxyURL, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy URL %q for scheme %s: %w", target, scheme, err)
		}
		perScheme[strings.ToLower(scheme)] = proxyURL
	}
	return func(req *http.Request) (*url.URL, error) {
		return perScheme[strings.ToLower(req.URL.Scheme)], nil
	}, nil
}
