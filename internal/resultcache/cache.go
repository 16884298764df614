// Package resultcache is the Redis-backed cache of full search response
// bodies, keyed deterministically from the normalized request.
package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

const (
	keyNamespace = "search:"
	// DefaultTTL is how long a cached response body is kept.
	DefaultTTL = 5 * time.Minute
)

// Cache is the result-cache client. Read/write failures are logged as
// warnings and never propagate as fatal errors to the caller.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// New parses url (a standard redis:// connection string) and constructs a Cache.
func New(url string, ttl time.Duration, log zerolog.Logger) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrCodeResultCacheIO, "parse redis url", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{client: redis.NewClient(opts), ttl: ttl, log: log}, nil
}

// Close releases the underlying connection pool.
func (c *Cache) Close() error { return c.client.Close() }

// Get returns the cached response body for key, and whether it was present.
// A Redis error is treated the same as a miss, logged as a warning.
func (c *Cache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn().Err(err).Str("key", key).Msg("result cache read failed")
		}
		return "", false
	}
	return val, true
}

// Set stores body under key with the configured TTL, best-effort.
func (c *Cache) Set(ctx context.Context, key, body string) {
	if err := c.client.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("result cache write failed")
	}
}

// KeyInput is the normalized shape a cache key is derived from.
type KeyInput struct {
	Query    string
	Filters  map[string]any
	Sort     string
	Page     int
	PerPage  int
	SearchIn []string
}

// Key computes the deterministic result-cache key: "search:" plus the first
// 16 hex characters of SHA-256 over a stable JSON encoding of in, with
// null/empty filter values dropped and object keys sorted.
func Key(in KeyInput) string {
	cleanFilters := make(map[string]any, len(in.Filters))
	for k, v := range in.Filters {
		if isEmptyFilterValue(v) {
			continue
		}
		cleanFilters[k] = v
	}

	searchIn := append([]string(nil), in.SearchIn...)
	sort.Strings(searchIn)

	// json.Marshal on a map[string]any sorts object keys, giving us stable
	// output without hand-rolling key ordering.
	canonical, _ := json.Marshal(map[string]any{
		"query":     in.Query,
		"filters":   cleanFilters,
		"sort":      in.Sort,
		"page":      in.Page,
		"per_page":  in.PerPage,
		"search_in": searchIn,
	})

	sum := sha256.Sum256(canonical)
	return keyNamespace + hex.EncodeToString(sum[:])[:16]
}

func isEmptyFilterValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == ""
	case []string:
		return len(val) == 0
	case bool:
		return false
	default:
		return false
	}
}
