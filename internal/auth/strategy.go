// Package auth resolves a declarative AuthConfig into the concrete request
// augmentations (headers, query parameters, cookies, basic-auth handler) to
// apply to outbound calls.
package auth

import (
	"fmt"

	"github.com/openapi-mcp/proxy/internal/config"
)

// BasicAuth is the opaque challenge-response handler produced for the basic
// scheme; the client transport applies it per request.
type BasicAuth struct {
	Username string
	Password string
}

// Strategy is a side-effect-free bundle of request augmentations. All views
// are independent; empty maps mean nothing to apply.
type Strategy struct {
	headers     map[string]string
	queryParams map[string]string
	cookies     map[string]string
	basic       *BasicAuth
}

func (s *Strategy) Headers() map[string]string     { return s.headers }
func (s *Strategy) QueryParams() map[string]string { return s.queryParams }
func (s *Strategy) Cookies() map[string]string     { return s.cookies }

// Basic returns the basic-auth handler, or nil when the scheme is not basic.
func (s *Strategy) Basic() *BasicAuth { return s.basic }

// Resolve maps an AuthConfig onto a Strategy. Field validation is delegated
// to AuthConfig.Validate (the same check the merge engine runs); the only
// failure unique to this stage is a genuinely unknown scheme.
func Resolve(cfg config.AuthConfig) (*Strategy, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	strategy := &Strategy{
		headers:     map[string]string{},
		queryParams: map[string]string{},
		cookies:     map[string]string{},
	}

	switch cfg.NormalizedScheme() {
	case config.SchemeNone:
	case config.SchemeBearer:
		strategy.headers["Authorization"] = "Bearer " + cfg.Token
	case config.SchemeBasic:
		strategy.basic = &BasicAuth{Username: cfg.Username, Password: cfg.Password}
	case config.SchemeHeader:
		strategy.headers[cfg.HeaderName] = cfg.HeaderValue
	case config.SchemeAPIKey:
		name := cfg.APIKeyName
		if name == "" {
			name = config.DefaultAPIKeyName
		}
		location := cfg.APIKeyLocation
		if location == "" {
			location = config.LocationHeader
		}
		switch location {
		case config.LocationHeader:
			strategy.headers[name] = cfg.APIKeyValue
		case config.LocationQuery:
			strategy.queryParams[name] = cfg.APIKeyValue
		case config.LocationCookie:
			strategy.cookies[name] = cfg.APIKeyValue
		}
	default:
		return nil, fmt.Errorf("unsupported authentication scheme: %q", cfg.Scheme)
	}

	// Extra headers apply on top of whatever the scheme set, overwriting a
	// same-named scheme header.
	for key, value := range cfg.ExtraHeaders {
		strategy.headers[key] = value
	}

	return strategy, nil
}
