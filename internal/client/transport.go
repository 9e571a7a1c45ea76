package client

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/openapi-mcp/proxy/internal/auth"
)

// injectTransport layers the configured static headers, auth query
// parameters, cookies and basic credentials onto each request. Values the
// caller set explicitly on the request always win.
type injectTransport struct {
	next    http.RoundTripper
	headers map[string]string
	query   map[string]string
	cookies map[string]string
	basic   *auth.BasicAuth
}

func (t *injectTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())

	for key, value := range t.headers {
		if req.Header.Get(key) == "" {
			req.Header.Set(key, value)
		}
	}
	if len(t.query) > 0 {
		q := req.URL.Query()
		for key, value := range t.query {
			if !q.Has(key) {
				q.Set(key, value)
			}
		}
		req.URL.RawQuery = q.Encode()
	}
	for name, value := range t.cookies {
		if _, err := req.Cookie(name); err != nil {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
	}
	if t.basic != nil && req.Header.Get("Authorization") == "" {
		req.SetBasicAuth(t.basic.Username, t.basic.Password)
	}

	return t.next.RoundTrip(req)
}

// retryTransport retries transport-level failures (connection errors, not
// HTTP status codes) up to the configured count with exponential backoff.
type retryTransport struct {
	next    http.RoundTripper
	retries int
}

func newRetryTransport(next http.RoundTripper, retries int) *retryTransport {
	return &retryTransport{next: next, retries: retries}
}

func (t *retryTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// A consumed body without GetBody cannot be replayed.
	if req.Body != nil && req.GetBody == nil {
		return t.next.RoundTrip(req)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 100 * time.Millisecond
	policy.MaxInterval = 2 * time.Second

	var resp *http.Response
	attempt := 0
	operation := func() error {
		r := req
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return backoff.Permanent(err)
			}
			r = req.Clone(req.Context())
			r.Body = body
		}
		attempt++

		res, err := t.next.RoundTrip(r)
		if err != nil {
			return err
		}
		resp = res
		return nil
	}

	err := backoff.Retry(operation, backoff.WithContext(
		backoff.WithMaxRetries(policy, uint64(t.retries)), req.Context()))
	if err != nil {
		return nil, err
	}
	return resp, nil
}
