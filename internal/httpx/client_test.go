package httpx_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/Ratio1/odata_sdk_go/internal/httpx"
)

func TestDoAbsoluteURLWithoutBase(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/accounts", r.URL.Path)
		assert.Equal(t, "yes", r.Header.Get("X-Default"))
		assert.Equal(t, "override", r.Header.Get("X-Mode"))
		io.WriteString(w, "ok")
	}))
	defer srv.Close()

	cl, err := httpx.NewClient("", httpx.WithHeaders(http.Header{
		"X-Default": {"yes"},
		"X-Mode":    {"default"},
	}))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), &httpx.Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/api/accounts",
		Header: http.Header{"X-Mode": {"override"}},
	})
	require.NoError(t, err)
	body, err := httpx.ReadAllAndClose(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
}

func TestDoRequiresURL(t *testing.T) {
	cl, err := httpx.NewClient("")
	require.NoError(t, err)
	_, err = cl.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "x"})
	assert.Error(t, err)
}

func TestDoNoRetryByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":"down"}`)
	}))
	defer srv.Close()

	cl, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)

	_, err = cl.Do(context.Background(), &httpx.Request{Method: http.MethodGet, Path: "feed"})
	var httpErr *httpx.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusServiceUnavailable, httpErr.StatusCode)
	assert.True(t, httpErr.Retryable())
	assert.Equal(t, map[string]any{"error": "down"}, httpErr.JSON)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRetriesWhenEnabled(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, `{"a":1}`, string(body))
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, "done")
	}))
	defer srv.Close()

	cl, err := httpx.NewClient(srv.URL, httpx.WithRetryPolicy(httpx.RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
	}))
	require.NoError(t, err)

	resp, err := cl.Do(context.Background(), &httpx.Request{
		Method: http.MethodPost,
		Path:   "/entries",
		Body:   strings.NewReader(`{"a":1}`),
	})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestDoBasicAuth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "test", user)
		assert.Equal(t, "secret", pass)
	}))
	defer srv.Close()

	cl, err := httpx.NewClient(srv.URL)
	require.NoError(t, err)
	resp, err := cl.Do(context.Background(), &httpx.Request{
		Method:    http.MethodGet,
		Path:      "/",
		BasicAuth: &httpx.BasicAuth{User: "test", Password: "secret"},
	})
	require.NoError(t, err)
	resp.Body.Close()
}

func TestDoRateLimiterHonoursContext(t *testing.T) {
	cl, err := httpx.NewClient("http://127.0.0.1:1", httpx.WithRateLimiter(rate.NewLimiter(rate.Every(time.Hour), 1)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = cl.Do(ctx, &httpx.Request{Method: http.MethodGet, Path: "/"})
	assert.Error(t, err)
}

func TestBackoffBounds(t *testing.T) {
	b := httpx.NewBackoff(10*time.Millisecond, 40*time.Millisecond, 0)
	assert.Equal(t, 10*time.Millisecond, b.ForAttempt(0))
	assert.Equal(t, 20*time.Millisecond, b.ForAttempt(1))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(2))
	assert.Equal(t, 40*time.Millisecond, b.ForAttempt(10))
}

func TestMarshalJSONKeepsHTML(t *testing.T) {
	data, err := httpx.MarshalJSON(map[string]string{"name": "<b>&</b>"})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"<b>&</b>"}`, string(data))
}
