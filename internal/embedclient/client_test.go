package embedclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
	"github.com/researchgraph/hybridsearch/internal/logging"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{
		BaseURL: srv.URL,
		MinGap:  time.Millisecond,
	}, logging.NewDefault())
	return c, srv
}

func TestEmbed_ReturnsVectorsInOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req embedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := embedResponse{Embeddings: make([][]float32, len(req.Texts))}
		for i := range req.Texts {
			resp.Embeddings[i] = []float32{float32(i), 0, 0}
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	vecs, err := c.Embed(t.Context(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, float32(0), vecs[0][0])
	assert.Equal(t, float32(2), vecs[2][0])
}

func TestEmbedQuery_CachesOnSecondCall(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		resp := embedResponse{Embeddings: [][]float32{{1, 2, 3}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})

	v1, err := c.EmbedQuery(t.Context(), "carbon nanotubes")
	require.NoError(t, err)
	v2, err := c.EmbedQuery(t.Context(), "carbon nanotubes")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEmbed_RetriesOnFailureThenSucceeds(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		resp := embedResponse{Embeddings: [][]float32{{1}}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	})
	c.retryCfg.InitialDelay = time.Millisecond
	c.retryCfg.MaxDelay = 5 * time.Millisecond

	vecs, err := c.Embed(t.Context(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestEmbed_FailsAfterExhaustingRetries(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.retryCfg.MaxRetries = 1
	c.retryCfg.InitialDelay = time.Millisecond
	c.retryCfg.MaxDelay = 2 * time.Millisecond

	_, err := c.Embed(t.Context(), []string{"x"})
	require.Error(t, err)
}

func TestEmbed_EmptyInputReturnsNil(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("should not be called for empty input")
	})

	vecs, err := c.Embed(t.Context(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}

func TestEmbed_TripsCircuitAfterRepeatedFailures(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.retryCfg.MaxRetries = 0
	c.breaker = apperrors.NewCircuitBreaker("embedclient-test", apperrors.WithMaxFailures(2))

	for i := 0; i < 2; i++ {
		_, err := c.Embed(t.Context(), []string{"x"})
		require.Error(t, err)
	}
	assert.True(t, c.CircuitOpen())

	callsBeforeOpenCheck := atomic.LoadInt32(&calls)
	_, err := c.Embed(t.Context(), []string{"x"})
	require.Error(t, err)
	assert.Equal(t, callsBeforeOpenCheck, atomic.LoadInt32(&calls), "open circuit should short-circuit before hitting the server")
}

func TestHealthy_ReflectsServiceStatus(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	})

	assert.True(t, c.Healthy(t.Context()))
}
