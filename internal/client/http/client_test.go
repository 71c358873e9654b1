package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpclient "github.com/taxrates/taxrates-api/internal/client/http"
	"github.com/taxrates/taxrates-api/internal/logger"
)

func init() {
	logger.InitLogger("test")
}

func fastRetries() *httpclient.RetryConfig {
	cfg := httpclient.DefaultRetryConfig()
	cfg.InitialInterval = time.Millisecond
	cfg.MaxInterval = 5 * time.Millisecond
	cfg.MaxElapsedTime = time.Second
	return cfg
}

type countingMetrics struct {
	requests atomic.Int32
	errors   atomic.Int32
}

func (m *countingMetrics) RecordRequestDuration(string, int, time.Duration) { m.requests.Add(1) }
func (m *countingMetrics) RecordRequestError(string)                        { m.errors.Add(1) }

func TestFetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "taxrates-updater/1.0", r.Header.Get("User-Agent"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		_, _ = w.Write([]byte("Location,Rate\nSacramento,0.0875\n"))
	}))
	defer srv.Close()

	metrics := &countingMetrics{}
	client := httpclient.NewHTTPClient(
		httpclient.WithRetryConfig(fastRetries()),
		httpclient.WithMetricsCollector(metrics),
		httpclient.WithMiddleware(httpclient.LoggingMiddleware()),
		httpclient.WithDefaultHeader("X-Test", "yes"),
	)

	body, err := client.Fetch(context.Background(), srv.URL+"/rates.csv")

	require.NoError(t, err)
	assert.Equal(t, "Location,Rate\nSacramento,0.0875\n", string(body))
	assert.EqualValues(t, 1, metrics.requests.Load())
	assert.EqualValues(t, 0, metrics.errors.Load())
}

func TestFetch_RetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := httpclient.NewHTTPClient(httpclient.WithRetryConfig(fastRetries()))

	body, err := client.Fetch(context.Background(), srv.URL)

	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_NotFoundIsHTTPError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "no such export", http.StatusNotFound)
	}))
	defer srv.Close()

	client := httpclient.NewHTTPClient(httpclient.WithRetryConfig(fastRetries()))

	_, err := client.Fetch(context.Background(), srv.URL+"/missing.csv")

	var httpErr *httpclient.HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "no such export", httpErr.Body)
	assert.EqualValues(t, 1, calls.Load(), "404 is not retried")
}

func TestFetch_FollowsRedirects(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("moved"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := httpclient.NewHTTPClient(httpclient.WithRetryConfig(nil))

	body, err := client.Fetch(context.Background(), srv.URL+"/old")

	require.NoError(t, err)
	assert.Equal(t, "moved", string(body))
}

func TestFetch_RedirectLoop(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
	}))
	defer srv.Close()

	client := httpclient.NewHTTPClient(httpclient.WithRetryConfig(fastRetries()))

	_, err := client.Fetch(context.Background(), srv.URL+"/loop")

	require.Error(t, err)
	assert.ErrorIs(t, err, httpclient.ErrTooManyRedirects)
}

func TestGet_RequestOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Header.Get("If-None-Match")))
	}))
	defer srv.Close()

	client := httpclient.NewHTTPClient(httpclient.WithRetryConfig(nil))

	resp, err := client.Get(context.Background(), srv.URL, httpclient.WithHeader("If-None-Match", "abc"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFetch_InvalidURL(t *testing.T) {
	client := httpclient.NewHTTPClient()

	_, err := client.Fetch(context.Background(), "ftp://example.com/rates.csv")
	assert.Error(t, err)

	_, err = client.Fetch(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte("late"))
	}))
	defer srv.Close()

	client := httpclient.NewHTTPClient(
		httpclient.WithTimeout(20*time.Millisecond),
		httpclient.WithRetryConfig(nil),
	)

	_, err := client.Fetch(context.Background(), srv.URL)
	assert.Error(t, err)
}
