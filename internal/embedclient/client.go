// Package embedclient talks to the remote text-embedding service.
//
// It bounds concurrent in-flight requests, paces consecutive calls, retries
// transient failures with exponential backoff, and caches single-text query
// embeddings so repeated searches for the same phrase skip the network call.
package embedclient

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

const (
	// DefaultConcurrency is the fixed cap on in-flight embedding requests.
	DefaultConcurrency = 2
	// DefaultMinGap is the minimum spacing enforced between consecutive requests.
	DefaultMinGap = 100 * time.Millisecond
	// DefaultQueryCacheTTL is how long a single-text query embedding is cached.
	DefaultQueryCacheTTL = 24 * time.Hour
	// DefaultQueryCacheSize bounds the number of cached query embeddings.
	DefaultQueryCacheSize = 4096
	// queryCacheNamespace prefixes query-embedding cache keys.
	queryCacheNamespace = "embed:"
)

// Config configures a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	MaxRetries     int
	Concurrency    int
	MinGap         time.Duration
	QueryCacheTTL  time.Duration
	QueryCacheSize int
}

// Client is the embedding service's HTTP client.
type Client struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger

	sem    chan struct{}
	minGap time.Duration

	mu          sync.Mutex
	lastRequest time.Time

	retryCfg apperrors.RetryConfig
	breaker  *apperrors.CircuitBreaker

	cache *lru.LRU[string, []float32]
}

type embedRequest struct {
	Texts []string `json:"texts"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// New builds a Client with a connection-pooled transport and per-request
// context timeouts, rather than a client-level timeout, so a slow health
// check doesn't cap every subsequent request.
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MinGap <= 0 {
		cfg.MinGap = DefaultMinGap
	}
	if cfg.QueryCacheTTL <= 0 {
		cfg.QueryCacheTTL = DefaultQueryCacheTTL
	}
	if cfg.QueryCacheSize <= 0 {
		cfg.QueryCacheSize = DefaultQueryCacheSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}

	transport := &http.Transport{
		MaxIdleConns:        cfg.Concurrency * 2,
		MaxIdleConnsPerHost: cfg.Concurrency * 2,
		MaxConnsPerHost:     cfg.Concurrency * 2,
		IdleConnTimeout:     10 * time.Second,
	}

	retryCfg := apperrors.DefaultRetryConfig()
	retryCfg.MaxRetries = cfg.MaxRetries

	return &Client{
		baseURL:  cfg.BaseURL,
		http:     &http.Client{Transport: transport},
		log:      log,
		sem:      make(chan struct{}, cfg.Concurrency),
		minGap:   cfg.MinGap,
		retryCfg: retryCfg,
		breaker:  apperrors.NewCircuitBreaker("embedclient"),
		cache:    lru.NewLRU[string, []float32](cfg.QueryCacheSize, nil, cfg.QueryCacheTTL),
	}
}

// Embed returns one vector per input text, in order. Used by the indexing
// pipeline for batch embedding; does not consult the query cache.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.embedRemote(ctx, texts)
}

// EmbedQuery embeds a single query string, consulting and populating the
// query-embedding cache keyed by SHA-256(text).
func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	key := queryCacheKey(text)
	if v, ok := c.cache.Get(key); ok {
		return v, nil
	}

	vecs, err := c.embedRemote(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	vec := vecs[0]

	c.cache.Add(key, vec)
	return vec, nil
}

func queryCacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return queryCacheNamespace + hex.EncodeToString(sum[:])[:16]
}

// embedRemote performs the bounded-concurrency, paced, retried HTTP call.
func (c *Client) embedRemote(ctx context.Context, texts []string) ([][]float32, error) {
	select {
	case <-ctx.Done():
		return nil, apperrors.Cancelled(ctx.Err())
	case c.sem <- struct{}{}:
	}
	defer func() { <-c.sem }()

	c.waitForGap(ctx)

	var result [][]float32
	cbErr := c.breaker.Execute(func() error {
		vecs, err := apperrors.RetryWithResult(ctx, c.retryCfg, func() ([][]float32, error) {
			return c.doEmbedRequest(ctx, texts)
		})
		if err != nil {
			return err
		}
		result = vecs
		return nil
	})
	if cbErr != nil {
		if errors.Is(cbErr, apperrors.ErrCircuitOpen) {
			return nil, apperrors.EmbeddingTimeout("embedding service circuit open", cbErr)
		}
		if ctx.Err() != nil {
			return nil, apperrors.Cancelled(ctx.Err())
		}
		return nil, apperrors.EmbeddingTimeout("embedding service unavailable after retries", cbErr)
	}

	return result, nil
}

// CircuitOpen reports whether repeated embedding timeouts have tripped the
// breaker, surfaced on the health endpoint.
func (c *Client) CircuitOpen() bool {
	return c.breaker.State() == apperrors.StateOpen
}

func (c *Client) waitForGap(ctx context.Context) {
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	wait := c.minGap - elapsed
	c.mu.Unlock()

	if wait > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(wait):
		}
	}

	c.mu.Lock()
	c.lastRequest = time.Now()
	c.mu.Unlock()
}

func (c *Client) doEmbedRequest(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Texts: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embed service returned %d: %s", resp.StatusCode, string(payload))
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(decoded.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed service returned %d vectors for %d texts", len(decoded.Embeddings), len(texts))
	}

	return decoded.Embeddings, nil
}

// Healthy reports whether the embedding service's health endpoint is up.
func (c *Client) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}
