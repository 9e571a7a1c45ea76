package proxy_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openapi-mcp/proxy/internal/client"
	"github.com/openapi-mcp/proxy/internal/proxy"
)

// echoServer responds with a JSON summary of the request it received.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		query := map[string]string{}
		for key := range r.URL.Query() {
			query[key] = r.URL.Query().Get(key)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"method":  r.Method,
			"path":    r.URL.Path,
			"query":   query,
			"body":    string(body),
			"x_trace": r.Header.Get("X-Trace"),
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newInvoker(baseURL string) *proxy.Invoker {
	desc := &client.Descriptor{HTTPClient: &http.Client{}, BaseURL: baseURL}
	return proxy.NewInvoker(desc, discardLogger())
}

func TestInvoker_PathAndQueryParameters(t *testing.T) {
	server := echoServer(t)
	invoker := newInvoker(server.URL)

	details := proxy.InvocationDetails{
		Method:      http.MethodGet,
		Path:        "/pets/{petId}",
		PathParams:  []string{"petId"},
		QueryParams: []string{"verbose"},
		ContentType: "application/json",
	}

	result, err := invoker.Invoke(context.Background(), details, map[string]any{
		"petId":   "42",
		"verbose": true,
	})
	require.NoError(t, err)

	echoed, ok := result.(map[string]any)
	require.True(t, ok, "expected decoded JSON response")
	assert.Equal(t, "GET", echoed["method"])
	assert.Equal(t, "/pets/42", echoed["path"])
	assert.Equal(t, map[string]any{"verbose": "true"}, echoed["query"])
	assert.Empty(t, echoed["body"])
}

func TestInvoker_MissingPathParameter(t *testing.T) {
	invoker := newInvoker("http://upstream.test")

	details := proxy.InvocationDetails{
		Method:     http.MethodGet,
		Path:       "/pets/{petId}",
		PathParams: []string{"petId"},
	}

	_, err := invoker.Invoke(context.Background(), details, map[string]any{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required path parameter "petId"`)
}

func TestInvoker_LeftoverArgumentsBecomeBody(t *testing.T) {
	server := echoServer(t)
	invoker := newInvoker(server.URL)

	details := proxy.InvocationDetails{
		Method:      http.MethodPost,
		Path:        "/pets",
		ContentType: "application/json",
	}

	result, err := invoker.Invoke(context.Background(), details, map[string]any{"name": "rex"})
	require.NoError(t, err)

	echoed := result.(map[string]any)
	assert.Equal(t, "POST", echoed["method"])
	assert.JSONEq(t, `{"name": "rex"}`, echoed["body"].(string))
}

func TestInvoker_WrapperBodyArgument(t *testing.T) {
	server := echoServer(t)
	invoker := newInvoker(server.URL)

	details := proxy.InvocationDetails{
		Method:      http.MethodPut,
		Path:        "/import",
		BodyParam:   "body",
		ContentType: "application/json",
	}

	result, err := invoker.Invoke(context.Background(), details, map[string]any{"body": "a,b,c"})
	require.NoError(t, err)

	echoed := result.(map[string]any)
	assert.Equal(t, `"a,b,c"`, echoed["body"])
}

func TestInvoker_HeaderParameters(t *testing.T) {
	server := echoServer(t)
	invoker := newInvoker(server.URL)

	details := proxy.InvocationDetails{
		Method:       http.MethodGet,
		Path:         "/pets",
		HeaderParams: []string{"X-Trace"},
	}

	result, err := invoker.Invoke(context.Background(), details, map[string]any{"X-Trace": "abc"})
	require.NoError(t, err)

	echoed := result.(map[string]any)
	assert.Equal(t, "abc", echoed["x_trace"])
}

func TestInvoker_BasePathJoinedWithOperationPath(t *testing.T) {
	server := echoServer(t)
	invoker := newInvoker(server.URL + "/api/v1/")

	details := proxy.InvocationDetails{Method: http.MethodGet, Path: "/pets"}

	result, err := invoker.Invoke(context.Background(), details, nil)
	require.NoError(t, err)

	echoed := result.(map[string]any)
	assert.Equal(t, "/api/v1/pets", echoed["path"])
}

func TestInvoker_NoBaseURL(t *testing.T) {
	invoker := newInvoker("")

	_, err := invoker.Invoke(context.Background(), proxy.InvocationDetails{Method: http.MethodGet, Path: "/pets"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no base URL configured")
}

func TestInvoker_UpstreamErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "pet not found", http.StatusNotFound)
	}))
	t.Cleanup(server.Close)
	invoker := newInvoker(server.URL)

	_, err := invoker.Invoke(context.Background(), proxy.InvocationDetails{Method: http.MethodGet, Path: "/pets/42"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "pet not found")
}

func TestInvoker_NonJSONResponseReturnedAsText(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = io.WriteString(w, "plain result")
	}))
	t.Cleanup(server.Close)
	invoker := newInvoker(server.URL)

	result, err := invoker.Invoke(context.Background(), proxy.InvocationDetails{Method: http.MethodGet, Path: "/pets"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "plain result", result)
}
