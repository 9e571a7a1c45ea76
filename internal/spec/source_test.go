package spec_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openapi-mcp/proxy/internal/spec"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		raw       string
		wantKind  spec.SourceKind
		wantErr   bool
		errSubstr string
	}{
		{name: "http URL", raw: "http://example.com/openapi.yaml", wantKind: spec.SourceHTTP},
		{name: "https URL", raw: "https://example.com/openapi.json", wantKind: spec.SourceHTTP},
		{name: "scheme is case-insensitive", raw: "HTTPS://example.com/spec", wantKind: spec.SourceHTTP},
		{name: "bare relative path", raw: "specs/openapi.yaml", wantKind: spec.SourceLocal},
		{name: "bare absolute path", raw: "/srv/specs/openapi.yaml", wantKind: spec.SourceLocal},
		{name: "file URL", raw: "file:///srv/specs/openapi.yaml", wantKind: spec.SourceFileURL},
		{name: "file URL with localhost", raw: "file://localhost/srv/openapi.yaml", wantKind: spec.SourceFileURL},
		{name: "file URL with hostname", raw: "file://nfs-server/srv/openapi.yaml", wantErr: true, errSubstr: "hostnames"},
		{name: "file URL without path", raw: "file://", wantErr: true, errSubstr: "path information"},
		{name: "unsupported scheme", raw: "ftp://example.com/openapi.yaml", wantErr: true, errSubstr: "unsupported"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := spec.Classify(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errSubstr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, src.Kind)
			assert.Equal(t, tt.raw, src.Raw)
			assert.NotEmpty(t, src.Key)
		})
	}
}

func TestClassify_LocalSpellingsShareCacheKey(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(dir, "openapi.yaml")
	t.Chdir(dir)

	relative, err := spec.Classify("openapi.yaml")
	require.NoError(t, err)
	absolute, err := spec.Classify(abs)
	require.NoError(t, err)
	fileURL, err := spec.Classify("file://" + filepath.ToSlash(abs))
	require.NoError(t, err)

	assert.Equal(t, absolute.Key, relative.Key)
	assert.Equal(t, absolute.Key, fileURL.Key)
	assert.Equal(t, abs, relative.Path)
}

func TestClassify_HTTPKeyIsLiteralURL(t *testing.T) {
	withSlash, err := spec.Classify("https://example.com/openapi.yaml/")
	require.NoError(t, err)
	withoutSlash, err := spec.Classify("https://example.com/openapi.yaml")
	require.NoError(t, err)

	assert.NotEqual(t, withoutSlash.Key, withSlash.Key)
	assert.Equal(t, "https://example.com/openapi.yaml", withoutSlash.Key)
}
