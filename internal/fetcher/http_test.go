package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/filmlab/boxrdd/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func testClient(srv *httptest.Server) *HTTPClient {
	u, _ := url.Parse(srv.URL)
	return New(Options{
		UserAgent: "boxrdd-test",
		Retry:     fastRetry(),
		Limiters: map[string]*rate.Limiter{
			u.Host: rate.NewLimiter(rate.Inf, 1),
		},
	})
}

func TestGet_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "boxrdd-test", r.Header.Get("User-Agent"))
		w.Write([]byte("<html>ok</html>"))
	}))
	defer srv.Close()

	body, err := testClient(srv).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "<html>ok</html>", string(body))
}

func TestGet_RetriesOn500(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("recovered"))
	}))
	defer srv.Close()

	body, err := testClient(srv).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(body))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGet_404NoRetry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testClient(srv).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), calls.Load())
}

func TestGet_429Exhausts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := testClient(srv).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetWithHeaders_Override(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "rotated-agent", r.Header.Get("User-Agent"))
		assert.Equal(t, "https://example.com/", r.Header.Get("Referer"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	_, err := testClient(srv).GetWithHeaders(context.Background(), srv.URL, map[string]string{
		"User-Agent": "rotated-agent",
		"Referer":    "https://example.com/",
	})
	require.NoError(t, err)
}

func TestLimiterForDelay_Defaults(t *testing.T) {
	lim := LimiterForDelay(0)
	require.NotNil(t, lim)
	assert.Equal(t, rate.Every(time.Second), lim.Limit())
}
