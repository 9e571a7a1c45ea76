// Package config assembles the runtime configuration for the proxy from a
// config file, environment variables and CLI flags, merged in that order of
// precedence (later layers overwrite earlier ones per key).
package config

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DefaultServerName is the display name used when none is configured.
	DefaultServerName = "OpenAPI MCP Proxy"

	// EnvPrefix namespaces all environment variables read by Resolve.
	EnvPrefix = "MCP_PROXY_"

	// SpecEnvVar is the legacy bare variable consulted as a fallback for the
	// OpenAPI source.
	SpecEnvVar = "MCP_OPENAPI_SPEC"

	// DefaultTimeout is the outbound HTTP client timeout.
	DefaultTimeout = 30 * time.Second

	// DefaultAPIKeyName is used when api-key auth is configured without a name.
	DefaultAPIKeyName = "X-API-Key"
)

// Authentication schemes understood by the merge engine. Unknown scheme
// strings are kept as-is here and rejected later at strategy resolution.
const (
	SchemeNone   = "none"
	SchemeBearer = "bearer"
	SchemeBasic  = "basic"
	SchemeHeader = "header"
	SchemeAPIKey = "api-key"
)

// API key injection locations.
const (
	LocationHeader = "header"
	LocationQuery  = "query"
	LocationCookie = "cookie"
)

// Error reports a configuration resolution or merge failure. The message
// always names the offending input so the user can self-diagnose.
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

// AuthConfig is the unified description of the desired authentication
// strategy. Scheme selects the variant; only that variant's fields are
// meaningful. ExtraHeaders are applied on top of any scheme for every request.
type AuthConfig struct {
	Scheme         string
	Token          string
	Username       string
	Password       string
	HeaderName     string
	HeaderValue    string
	APIKeyName     string
	APIKeyValue    string
	APIKeyLocation string
	ExtraHeaders   map[string]string
}

// NoAuth returns the default, credential-free auth configuration.
func NoAuth() AuthConfig {
	return AuthConfig{Scheme: SchemeNone, APIKeyLocation: LocationHeader}
}

// NormalizedScheme returns the scheme folded to lower case, with the empty
// string mapped to "none".
func (a AuthConfig) NormalizedScheme() string {
	s := strings.ToLower(strings.TrimSpace(a.Scheme))
	if s == "" {
		return SchemeNone
	}
	return s
}

// Validate checks that the scheme-specific required fields are present.
// This is the single validation point: the merge engine calls it eagerly and
// the strategy resolver calls it again through the same code path. Unknown
// schemes pass here and are rejected only at strategy resolution.
func (a AuthConfig) Validate() error {
	switch a.NormalizedScheme() {
	case SchemeNone:
	case SchemeBearer:
		if a.Token == "" {
			return errorf("bearer authentication requires auth_token")
		}
	case SchemeBasic:
		if a.Username == "" || a.Password == "" {
			return errorf("basic authentication requires auth_username and auth_password")
		}
	case SchemeHeader:
		if a.HeaderName == "" || a.HeaderValue == "" {
			return errorf("header authentication requires at least one auth_header")
		}
	case SchemeAPIKey:
		if a.APIKeyValue == "" {
			return errorf("api-key authentication requires auth_key_value")
		}
		switch a.APIKeyLocation {
		case "", LocationHeader, LocationQuery, LocationCookie:
		default:
			return errorf("api-key location must be one of header/query/cookie, got %q", a.APIKeyLocation)
		}
	}
	return nil
}

// TLSVerify controls TLS certificate verification for the outbound client.
// The zero value verifies against the system pool.
type TLSVerify struct {
	// Insecure disables certificate verification entirely.
	Insecure bool
	// CABundle, when set, is a path to a PEM bundle used instead of the
	// system pool.
	CABundle string
}

// ProxyConfig describes the forward proxy for outbound requests: either a
// single URL or a per-scheme mapping.
type ProxyConfig struct {
	URL       string
	PerScheme map[string]string
}

// ClientConfig holds outbound HTTP client runtime parameters.
type ClientConfig struct {
	Timeout time.Duration
	Verify  TLSVerify
	Retries int
	Proxy   *ProxyConfig
}

// RuntimeConfig is the fully hydrated configuration for one proxy process
// run. It is not mutated after Resolve returns it.
type RuntimeConfig struct {
	OpenAPISource string
	ServerName    string
	BaseURL       string
	Headers       map[string]string
	Auth          AuthConfig
	Client        ClientConfig

	// RawSources retains the per-layer fragments for diagnostics.
	RawSources map[string]map[string]any
}

// parseKeyValue splits a KEY=VALUE or KEY:VALUE string, first separator kind
// wins, both sides trimmed.
func parseKeyValue(raw string) (string, string, error) {
	var key, value string
	switch {
	case strings.Contains(raw, "="):
		parts := strings.SplitN(raw, "=", 2)
		key, value = parts[0], parts[1]
	case strings.Contains(raw, ":"):
		parts := strings.SplitN(raw, ":", 2)
		key, value = parts[0], parts[1]
	default:
		return "", "", errorf("header must be in KEY=VALUE or KEY:VALUE format: %q", raw)
	}
	return strings.TrimSpace(key), strings.TrimSpace(value), nil
}

// parseBool accepts the fixed vocabulary {1,true,yes,on} / {0,false,no,off},
// case-insensitive and trimmed.
func parseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, errorf("cannot parse boolean value: %q", value)
}
