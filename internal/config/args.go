package config

import (
	"strconv"
	"strings"
)

type flagKind int

const (
	flagString flagKind = iota
	flagRepeat
	flagFloat
	flagInt
	flagProxy
	flagBoolTrue
	flagBoolFalse
	flagChoice
)

type flagSpec struct {
	key     string
	kind    flagKind
	choices []string
}

// cliFlags maps the recognized flag vocabulary onto canonical fragment keys.
// Anything not listed here passes through unconsumed.
var cliFlags = map[string]flagSpec{
	"--openapi-spec":      {key: "openapi_spec", kind: flagString},
	"--config":            {key: "config_file", kind: flagString},
	"--server-name":       {key: "server_name", kind: flagString},
	"--base-url":          {key: "base_url", kind: flagString},
	"--timeout":           {key: "timeout", kind: flagFloat},
	"--verify-ssl":        {key: "verify_ssl", kind: flagBoolTrue},
	"--no-verify-ssl":     {key: "verify_ssl", kind: flagBoolFalse},
	"--retries":           {key: "retries", kind: flagInt},
	"--proxy":             {key: "proxies", kind: flagProxy},
	"--header":            {key: "headers", kind: flagRepeat},
	"--auth-type":         {key: "auth_type", kind: flagString},
	"--auth-token":        {key: "auth_token", kind: flagString},
	"--auth-username":     {key: "auth_username", kind: flagString},
	"--auth-password":     {key: "auth_password", kind: flagString},
	"--auth-header":       {key: "auth_headers", kind: flagRepeat},
	"--auth-key-name":     {key: "auth_key_name", kind: flagString},
	"--auth-key-value":    {key: "auth_key_value", kind: flagString},
	"--auth-key-location": {key: "auth_key_location", kind: flagChoice, choices: []string{LocationHeader, LocationQuery, LocationCookie}},
}

// scanArgs walks argv consuming the recognized flag vocabulary into a
// fragment map. Unrecognized tokens are returned in order, unconsumed, so
// the caller can hand them to its own flag handling.
func scanArgs(argv []string) (map[string]any, []string, error) {
	data := make(map[string]any)
	var leftover []string

	for i := 0; i < len(argv); i++ {
		token := argv[i]

		name := token
		value := ""
		hasInline := false
		if idx := strings.Index(token, "="); idx >= 0 && strings.HasPrefix(token, "--") {
			name, value = token[:idx], token[idx+1:]
			hasInline = true
		}

		spec, ok := cliFlags[name]
		if !ok {
			leftover = append(leftover, token)
			continue
		}

		switch spec.kind {
		case flagBoolTrue, flagBoolFalse:
			if hasInline {
				return nil, nil, errorf("flag %s does not take a value", name)
			}
			data[spec.key] = spec.kind == flagBoolTrue
			continue
		}

		if !hasInline {
			if i+1 >= len(argv) {
				return nil, nil, errorf("flag %s requires a value", name)
			}
			i++
			value = argv[i]
		}

		switch spec.kind {
		case flagString:
			data[spec.key] = value
		case flagRepeat:
			list, _ := data[spec.key].([]string)
			data[spec.key] = append(list, value)
		case flagFloat:
			f, err := strconv.ParseFloat(value, 64)
			if err != nil {
				return nil, nil, errorf("flag %s expects a number, got %q", name, value)
			}
			data[spec.key] = f
		case flagInt:
			n, err := strconv.Atoi(value)
			if err != nil {
				return nil, nil, errorf("flag %s expects an integer, got %q", name, value)
			}
			data[spec.key] = n
		case flagProxy:
			proxy, err := parseProxyValue(value)
			if err != nil {
				return nil, nil, err
			}
			data[spec.key] = proxy
		case flagChoice:
			valid := false
			for _, c := range spec.choices {
				if value == c {
					valid = true
					break
				}
			}
			if !valid {
				return nil, nil, errorf("flag %s must be one of %s, got %q", name, strings.Join(spec.choices, "/"), value)
			}
			data[spec.key] = value
		}
	}

	return data, leftover, nil
}
