package config

import (
	"encoding/json"
	"strconv"
	"strings"
)

// FromEnviron converts an os.Environ style KEY=VALUE slice into a map.
func FromEnviron(environ []string) map[string]string {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		if idx := strings.Index(kv, "="); idx >= 0 {
			env[kv[:idx]] = kv[idx+1:]
		}
	}
	return env
}

// extractEnv reads the MCP_PROXY_* namespace (plus the legacy bare spec
// variable) into a fragment with the same canonical keys as the other layers.
func extractEnv(env map[string]string) (map[string]any, error) {
	data := make(map[string]any)

	specSource := env[EnvPrefix+"SPEC"]
	if specSource == "" {
		specSource = env[SpecEnvVar]
	}
	if specSource != "" {
		data["openapi_spec"] = specSource
	}

	for _, key := range []string{"SERVER_NAME", "BASE_URL", "AUTH_TYPE", "AUTH_TOKEN", "AUTH_USERNAME", "AUTH_PASSWORD", "AUTH_KEY_NAME", "AUTH_KEY_VALUE", "AUTH_KEY_LOCATION"} {
		if v := env[EnvPrefix+key]; v != "" {
			data[strings.ToLower(key)] = v
		}
	}

	if v := env[EnvPrefix+"TIMEOUT"]; v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, errorf("cannot parse %sTIMEOUT value %q as a number", EnvPrefix, v)
		}
		data["timeout"] = f
	}
	if v := env[EnvPrefix+"RETRIES"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errorf("cannot parse %sRETRIES value %q as an integer", EnvPrefix, v)
		}
		data["retries"] = n
	}
	if v := env[EnvPrefix+"VERIFY_SSL"]; v != "" {
		b, err := parseBool(v)
		if err != nil {
			return nil, err
		}
		data["verify_ssl"] = b
	}
	if v := env[EnvPrefix+"PROXIES"]; v != "" {
		proxy, err := parseProxyValue(v)
		if err != nil {
			return nil, err
		}
		data["proxies"] = proxy
	}
	if v := env[EnvPrefix+"HEADERS"]; v != "" {
		data["headers"] = splitKeyValueList(v)
	}
	if v := env[EnvPrefix+"AUTH_HEADERS"]; v != "" {
		data["auth_headers"] = splitKeyValueList(v)
	}

	return data, nil
}

// parseProxyValue interprets a proxy setting: a leading "{" means a JSON
// per-scheme mapping, anything else is an opaque proxy URL.
func parseProxyValue(value string) (*ProxyConfig, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "{") {
		return &ProxyConfig{URL: value}, nil
	}

	var raw map[string]any
	if err := json.Unmarshal([]byte(value), &raw); err != nil {
		return nil, wrapErr(err, "proxy configuration %q is not a valid JSON mapping", value)
	}
	perScheme := make(map[string]string, len(raw))
	for k, v := range raw {
		s, ok := v.(string)
		if !ok {
			return nil, errorf("proxy configuration entry %q must be a string", k)
		}
		perScheme[k] = s
	}
	return &ProxyConfig{PerScheme: perScheme}, nil
}

func splitKeyValueList(raw string) []string {
	var parts []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			parts = append(parts, item)
		}
	}
	return parts
}
