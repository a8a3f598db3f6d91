package source

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

	"balances/internal/core"
)

const okBody = `{
  "asOf": "2025-06-01T12:00:00Z",
  "accounts": [{"person": "Ann", "account": "ISA", "displayCurrency": "GBP", "total": 10}],
  "summary": {"grand": {"total_gbp": 10}, "byPerson": {"Ann": {"total_gbp": 10}}},
  "grandTotals": {"GBP": 10, "USD": 12.5, "HKD": null}
}`

func TestHTTPFetcherSuccess(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/balances", r.URL.Path)
		assert.Empty(t, r.URL.RawQuery)
		assert.Contains(t, r.Header.Get("Cache-Control"), "no-cache")
		assert.Equal(t, "no-cache", r.Header.Get("Pragma"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL + "/balances")
	snap, err := f.FetchSnapshot(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 1, hits.Load(), "exactly one request per call")
	require.Len(t, snap.Accounts, 1)
	assert.Equal(t, "Ann", snap.Accounts[0].Person)
	_, ok := snap.GrandTotals.Lookup(core.HKD)
	assert.False(t, ok)
}

func TestHTTPFetcherNoRetryOnFailure(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error": "broker session expired"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).FetchSnapshot(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 1, hits.Load())

	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpStatus, le.Op)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.Equal(t, "broker session expired", se.Message)
	assert.Contains(t, err.Error(), "broker session expired")
}

func TestHTTPFetcherStatusWithoutJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>502 Bad Gateway</body></html>"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).FetchSnapshot(context.Background())
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.Code)
	assert.Empty(t, se.Message)
}

func TestHTTPFetcherMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json at all"))
	}))
	defer srv.Close()

	_, err := NewHTTPFetcher(srv.URL).FetchSnapshot(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpDecode, le.Op)
	assert.True(t, errors.Is(err, core.ErrMalformedSnapshot))
}

func TestHTTPFetcherTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := NewHTTPFetcher(url).FetchSnapshot(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpRequest, le.Op)
	assert.Contains(t, err.Error(), url)
}

func TestHTTPFetcherTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	f := NewHTTPFetcher(srv.URL, WithTimeout(50*time.Millisecond))
	_, err := f.FetchSnapshot(context.Background())
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, OpRequest, le.Op)
}

func TestHTTPFetcherContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(okBody))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPFetcher(srv.URL).FetchSnapshot(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestUpstreamMessage(t *testing.T) {
	assert.Equal(t, "boom", upstreamMessage([]byte(`{"error":" boom "}`)))
	assert.Equal(t, "", upstreamMessage([]byte(`{"detail":"x"}`)))
	assert.Equal(t, "service unavailable", upstreamMessage([]byte("service unavailable\n")))
	assert.Equal(t, "", upstreamMessage([]byte("<h1>oops</h1>")))
}
