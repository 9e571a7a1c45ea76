package config

import (
	"fmt"
	"strconv"
	"time"

	"dario.cat/mergo"
)

// Resolve merges the config file, environment and CLI fragments into one
// RuntimeConfig under fixed precedence: file < environment < CLI, per key.
// Header lists are appended across layers before being folded into a map, so
// a later layer overwrites a header only when it sets the same key.
// Unrecognized CLI arguments are returned unconsumed.
func Resolve(argv []string, env map[string]string) (*RuntimeConfig, []string, error) {
	cliData, leftover, err := scanArgs(argv)
	if err != nil {
		return nil, nil, err
	}

	configPath, _ := cliData["config_file"].(string)
	delete(cliData, "config_file")
	if configPath == "" {
		configPath = env[EnvPrefix+"CONFIG"]
	}

	fileData := map[string]any{}
	if configPath != "" {
		fileData, err = loadConfigFile(configPath)
		if err != nil {
			return nil, nil, err
		}
	}

	envData, err := extractEnv(env)
	if err != nil {
		return nil, nil, err
	}

	merged := map[string]any{}
	for _, layer := range []map[string]any{fileData, envData, cliData} {
		if err := mergo.Map(&merged, layer, mergo.WithOverride, mergo.WithAppendSlice); err != nil {
			return nil, nil, wrapErr(err, "cannot merge configuration layers")
		}
	}

	source, err := resolveOpenAPISource(merged, env)
	if err != nil {
		return nil, nil, err
	}

	headers, err := buildHeaders(merged)
	if err != nil {
		return nil, nil, err
	}

	auth, err := buildAuthConfig(merged)
	if err != nil {
		return nil, nil, err
	}

	clientCfg, err := buildClientConfig(merged)
	if err != nil {
		return nil, nil, err
	}

	runtime := &RuntimeConfig{
		OpenAPISource: source,
		ServerName:    stringValue(merged, "server_name", DefaultServerName),
		BaseURL:       stringValue(merged, "base_url", ""),
		Headers:       headers,
		Auth:          auth,
		Client:        clientCfg,
		RawSources: map[string]map[string]any{
			"file": fileData,
			"env":  envData,
			"cli":  cliData,
		},
	}

	return runtime, leftover, nil
}

func resolveOpenAPISource(merged map[string]any, env map[string]string) (string, error) {
	if v, ok := merged["openapi_spec"]; ok {
		if s := fmt.Sprintf("%v", v); s != "" {
			return s, nil
		}
	}
	if alias := env[SpecEnvVar]; alias != "" {
		return alias, nil
	}
	return "", errorf(
		"no OpenAPI specification source provided; specify it via the --openapi-spec flag, the %sSPEC/%s environment variable, or a configuration file",
		EnvPrefix, SpecEnvVar)
}

func buildHeaders(merged map[string]any) (map[string]string, error) {
	headers := make(map[string]string)
	list, _ := merged["headers"].([]string)
	for _, raw := range list {
		key, value, err := parseKeyValue(raw)
		if err != nil {
			return nil, err
		}
		headers[key] = value
	}
	return headers, nil
}

func buildAuthConfig(merged map[string]any) (AuthConfig, error) {
	cfg := NoAuth()
	cfg.ExtraHeaders = map[string]string{}
	if v, ok := merged["auth_type"]; ok {
		cfg.Scheme = fmt.Sprintf("%v", v)
	}
	cfg.Scheme = cfg.NormalizedScheme()

	authHeaders, _ := merged["auth_headers"].([]string)

	switch cfg.Scheme {
	case SchemeBearer:
		cfg.Token = stringValue(merged, "auth_token", "")
	case SchemeBasic:
		cfg.Username = stringValue(merged, "auth_username", "")
		cfg.Password = stringValue(merged, "auth_password", "")
	case SchemeHeader:
		for _, raw := range authHeaders {
			key, value, err := parseKeyValue(raw)
			if err != nil {
				return cfg, err
			}
			if cfg.HeaderName == "" {
				cfg.HeaderName, cfg.HeaderValue = key, value
			} else {
				cfg.ExtraHeaders[key] = value
			}
		}
	case SchemeAPIKey:
		cfg.APIKeyValue = stringValue(merged, "auth_key_value", "")
		cfg.APIKeyName = stringValue(merged, "auth_key_name", DefaultAPIKeyName)
		cfg.APIKeyLocation = stringValue(merged, "auth_key_location", LocationHeader)
	}

	// Explicit auth headers apply on any scheme; scheme-specific handling
	// above takes priority for keys it already claimed.
	if cfg.Scheme != SchemeHeader {
		for _, raw := range authHeaders {
			key, value, err := parseKeyValue(raw)
			if err != nil {
				return cfg, err
			}
			if _, exists := cfg.ExtraHeaders[key]; !exists {
				cfg.ExtraHeaders[key] = value
			}
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func buildClientConfig(merged map[string]any) (ClientConfig, error) {
	cfg := ClientConfig{Timeout: DefaultTimeout}

	if v, ok := merged["timeout"]; ok {
		seconds, err := toFloat("timeout", v)
		if err != nil {
			return cfg, err
		}
		cfg.Timeout = time.Duration(seconds * float64(time.Second))
	}
	if v, ok := merged["retries"]; ok {
		n, err := toInt("retries", v)
		if err != nil {
			return cfg, err
		}
		if n < 0 {
			return cfg, errorf("retries must not be negative, got %d", n)
		}
		cfg.Retries = n
	}
	if v, ok := merged["verify_ssl"]; ok {
		switch verify := v.(type) {
		case bool:
			cfg.Verify.Insecure = !verify
		case string:
			cfg.Verify.CABundle = verify
		default:
			return cfg, errorf("verify_ssl must be a boolean or a CA bundle path, got %T", v)
		}
	}
	if v, ok := merged["proxies"]; ok && v != nil {
		proxy, ok := v.(*ProxyConfig)
		if !ok {
			return cfg, errorf("proxies must be a URL string or a scheme mapping, got %T", v)
		}
		cfg.Proxy = proxy
	}

	return cfg, nil
}

func stringValue(merged map[string]any, key, fallback string) string {
	if v, ok := merged[key]; ok && v != nil {
		if s := fmt.Sprintf("%v", v); s != "" {
			return s
		}
	}
	return fallback
}

func toFloat(key string, v any) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0, errorf("cannot parse %s value %q as a number", key, n)
		}
		return f, nil
	}
	return 0, errorf("cannot parse %s value %v as a number", key, v)
}

func toInt(key string, v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0, errorf("cannot parse %s value %q as an integer", key, n)
		}
		return i, nil
	}
	return 0, errorf("cannot parse %s value %v as an integer", key, v)
}
