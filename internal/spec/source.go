package spec

import (
	"net/url"
	"path/filepath"
	"strings"
)

// SourceKind classifies where a specification identifier points.
type SourceKind int

const (
	// SourceLocal is a bare filesystem path.
	SourceLocal SourceKind = iota
	// SourceFileURL is a file:// URL.
	SourceFileURL
	// SourceHTTP is an http:// or https:// URL.
	SourceHTTP
)

// Source is a classified specification source together with its normalized
// cache identity. Two spellings of the same local file (relative vs absolute,
// bare path vs file:// URL) share one key.
type Source struct {
	Kind SourceKind

	// Raw is the identifier as given by the caller.
	Raw string

	// Path is the absolute filesystem path for local and file:// sources.
	Path string

	// Key is the cache identity: the literal URL for HTTP sources, the
	// canonical file:// URI otherwise.
	Key string
}

// Classify derives a Source from a heterogeneous identifier: http(s) URLs,
// file:// URLs (hostname must be empty or localhost) and bare paths. Any
// other scheme is an error.
func Classify(raw string) (Source, error) {
	parsed, parseErr := url.Parse(raw)
	if parseErr != nil {
		// Not URL-shaped at all; treat it as a filesystem path.
		return localSource(raw, raw)
	}

	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
		return Source{Kind: SourceHTTP, Raw: raw, Key: raw}, nil
	case "file":
		if host := parsed.Host; host != "" && host != "localhost" {
			return Source{}, errorf("file URLs with hostnames are not supported: %s", raw)
		}
		if parsed.Path == "" {
			return Source{}, errorf("file:// URL does not provide path information: %s", raw)
		}
		src, err := localSource(raw, parsed.Path)
		if err != nil {
			return Source{}, err
		}
		src.Kind = SourceFileURL
		return src, nil
	case "":
		return localSource(raw, raw)
	}
	return Source{}, errorf("unsupported OpenAPI specification source: %s", raw)
}

func localSource(raw, path string) (Source, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Source{}, wrapErr(err, "cannot resolve specification path %s", path)
	}
	abs = filepath.Clean(abs)
	return Source{
		Kind: SourceLocal,
		Raw:  raw,
		Path: abs,
		Key:  "file://" + filepath.ToSlash(abs),
	}, nil
}
