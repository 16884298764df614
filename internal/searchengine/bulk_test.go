package searchengine

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkIndex_EmptyInputReturnsNoError(t *testing.T) {
	c, err := New(Config{Addresses: []string{"http://localhost:9200"}, Index: "research_documents"})
	require.NoError(t, err)

	result, err := c.BulkIndex(t.Context(), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Indexed)
	assert.Empty(t, result.EngineIDs)
}

func TestBulkIndex_PartialFailureCountsIndexedAndErrored(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"errors": true,
			"items": [
				{"index": {"_id": "e1", "status": 201}},
				{"index": {"_id": "e2", "status": 400}}
			]
		}`))
	})

	docs := []Document{
		{AuthoritativeID: "doc-a"},
		{AuthoritativeID: "doc-b"},
	}
	result, err := c.BulkIndex(t.Context(), docs)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Indexed)
	assert.Equal(t, 1, result.Errors)
	assert.Equal(t, "e1", result.EngineIDs["doc-a"])
	assert.NotContains(t, result.EngineIDs, "doc-b")
}

func TestBulkIndex_MismatchedItemCountReturnsError(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"errors": false, "items": [{"index": {"_id": "e1", "status": 201}}]}`))
	})

	docs := []Document{{AuthoritativeID: "doc-a"}, {AuthoritativeID: "doc-b"}}
	_, err := c.BulkIndex(t.Context(), docs)
	assert.Error(t, err)
}
