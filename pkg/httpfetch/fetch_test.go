package httpfetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cedar-pdp/pdp/pkg/pdperrors"
)

func TestFetchJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"hello":"world"}`))
	}))
	defer srv.Close()

	type payload struct {
		Hello string `json:"hello"`
	}

	res, err := FetchJSON[payload](context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "world", res.Data.Hello)
}

func TestGet_HTTPStatusNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := Get(context.Background(), srv.Client(), srv.URL,
		WithRetry(RetryConfig{MaxRetries: 3, RetryDelay: time.Millisecond}))
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindHttpStatus, ""))
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestGet_RetriesOnTransportFailureThenExhausts(t *testing.T) {
	client := &http.Client{Timeout: 10 * time.Millisecond}

	_, _, err := Get(context.Background(), client, "http://127.0.0.1:1/unreachable",
		WithRetry(RetryConfig{MaxRetries: 2, RetryDelay: time.Millisecond}))
	require.Error(t, err)
	assert.True(t, pdperrors.Is(err, pdperrors.KindMaxHttpRetriesReached, ""))
}

func TestWithHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	_, _, err := Get(context.Background(), srv.Client(), srv.URL, WithHeader("Authorization", "Bearer tok"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok", gotAuth)
}
