package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadConfigFile reads a YAML or JSON configuration file into a fragment.
// The format is chosen by extension; with an absent or unrecognized
// extension a YAML parse is attempted first, falling back to JSON.
func loadConfigFile(path string) (map[string]any, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorf("specified configuration file does not exist: %s", path)
		}
		return nil, wrapErr(err, "cannot read configuration file %s", path)
	}

	var parsed any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &parsed); err != nil {
			return nil, wrapErr(err, "configuration file %s is not valid YAML", path)
		}
	case ".json":
		if err := json.Unmarshal(content, &parsed); err != nil {
			return nil, wrapErr(err, "configuration file %s is not valid JSON", path)
		}
	default:
		if yamlErr := yaml.Unmarshal(content, &parsed); yamlErr != nil {
			if jsonErr := json.Unmarshal(content, &parsed); jsonErr != nil {
				return nil, wrapErr(jsonErr, "configuration file %s is neither valid YAML nor valid JSON", path)
			}
		}
	}

	mapping, ok := parsed.(map[string]any)
	if !ok {
		return nil, errorf("configuration file %s content must be an object/mapping structure", path)
	}

	return normalizeFileFragment(mapping)
}

// normalizeFileFragment converts file-parsed values into the canonical
// fragment representation shared by all three layers: header lists become
// []string and proxy settings become *ProxyConfig, so the merge never has to
// reconcile mixed types.
func normalizeFileFragment(mapping map[string]any) (map[string]any, error) {
	data := make(map[string]any, len(mapping))
	for key, value := range mapping {
		switch key {
		case "headers", "auth_headers":
			list, err := toStringList(key, value)
			if err != nil {
				return nil, err
			}
			data[key] = list
		case "proxies":
			switch v := value.(type) {
			case string:
				proxy, err := parseProxyValue(v)
				if err != nil {
					return nil, err
				}
				data[key] = proxy
			case map[string]any:
				perScheme := make(map[string]string, len(v))
				for scheme, target := range v {
					s, ok := target.(string)
					if !ok {
						return nil, errorf("proxy configuration entry %q must be a string", scheme)
					}
					perScheme[scheme] = s
				}
				data[key] = &ProxyConfig{PerScheme: perScheme}
			default:
				return nil, errorf("proxies must be a URL string or a scheme mapping, got %T", value)
			}
		default:
			data[key] = value
		}
	}
	return data, nil
}

func toStringList(key string, value any) ([]string, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []string:
		return v, nil
	case []any:
		list := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, errorf("%s entries must be KEY=VALUE strings, got %v", key, item)
			}
			list = append(list, s)
		}
		return list, nil
	case string:
		return splitKeyValueList(v), nil
	}
	return nil, errorf("%s must be a list of KEY=VALUE strings, got %T", key, value)
}
