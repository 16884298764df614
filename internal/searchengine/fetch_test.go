package searchengine

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunQuery_DecodesHitsInOrder(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": {
				"total": {"value": 2},
				"hits": [
					{"_id": "e1", "_score": 9.1, "_source": {"authoritative_id": "doc-a", "title": "A"}},
					{"_id": "e2", "_score": 4.3, "_source": {"authoritative_id": "doc-b", "title": "B"}}
				]
			}
		}`))
	})

	result, err := c.RunQuery(t.Context(), []byte(`{}`))
	require.NoError(t, err)
	require.Len(t, result.Hits, 2)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, "doc-a", result.Hits[0].Doc.AuthoritativeID)
	assert.Equal(t, "doc-b", result.Hits[1].Doc.AuthoritativeID)
	assert.Equal(t, 9.1, result.Hits[0].Score)
}

func TestFetchByAuthoritativeID_ReturnsNotFoundOnEmptyHits(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"hits": {"total": {"value": 0}, "hits": []}}`))
	})

	_, err := c.FetchByAuthoritativeID(t.Context(), "doc-missing")
	assert.Error(t, err)
}

func TestFetchByAuthoritativeID_ReturnsFirstHit(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"hits": {
				"total": {"value": 1},
				"hits": [{"_id": "e1", "_score": 1.0, "_source": {"authoritative_id": "doc-a"}}]
			}
		}`))
	})

	hit, err := c.FetchByAuthoritativeID(t.Context(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "doc-a", hit.Doc.AuthoritativeID)
}
