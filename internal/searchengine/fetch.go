package searchengine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

// Hit is one search-engine result: its engine-assigned id, the score the
// engine assigned, and the projected document (only the fields requested
// via _source are populated).
type Hit struct {
	EngineID string
	Score    float64
	Doc      Document
}

type hitEnvelope struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			ID     string          `json:"_id"`
			Score  float64         `json:"_score"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
	Aggregations json.RawMessage `json:"aggregations"`
}

// Result is the decoded shape of a search-engine response this platform cares
// about: ordered hits, total hit count, and raw aggregation buckets.
type Result struct {
	Hits         []Hit
	Total        int
	Aggregations json.RawMessage
}

// RunQuery executes body against the index and decodes hits/aggregations.
func (c *Client) RunQuery(ctx context.Context, body []byte) (Result, error) {
	resp, err := c.Search(ctx, bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}
	defer resp.Body.Close()

	var env hitEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Result{}, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(env.Hits.Hits))
	for _, h := range env.Hits.Hits {
		var doc Document
		if len(h.Source) > 0 {
			if err := json.Unmarshal(h.Source, &doc); err != nil {
				return Result{}, fmt.Errorf("decode hit source: %w", err)
			}
		}
		hits = append(hits, Hit{EngineID: h.ID, Score: h.Score, Doc: doc})
	}

	return Result{Hits: hits, Total: env.Hits.Total.Value, Aggregations: env.Aggregations}, nil
}

// FetchByAuthoritativeID finds the engine document whose authoritative_id
// field matches id, used to source a vector for the similar-documents query.
func (c *Client) FetchByAuthoritativeID(ctx context.Context, id string) (*Hit, error) {
	body, _ := json.Marshal(map[string]any{
		"size":  1,
		"query": map[string]any{"term": map[string]any{"authoritative_id": id}},
	})

	result, err := c.RunQuery(ctx, body)
	if err != nil {
		return nil, err
	}
	if len(result.Hits) == 0 {
		return nil, apperrors.NotFound("document not found in search engine: " + id)
	}
	return &result.Hits[0], nil
}
