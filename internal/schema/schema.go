// Package schema manages the search engine's index lifecycle: creating the
// index with its declarative mapping (custom BM25 similarity, n-gram and
// shingle analyzers, HNSW vector field) and dropping it for a full reindex.
package schema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	opensearch "github.com/opensearch-project/opensearch-go/v2"

	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
)

const (
	embeddingDimensions = 768
	efSearch            = 300
	efConstruction      = 512
	hnswM               = 32
	shards              = 3
	replicas            = 1
	bm25K1              = 1.8
	bm25B               = 0.6
)

// Mapping returns the index's declarative settings and mappings body.
func Mapping() map[string]any {
	return map[string]any{
		"settings": map[string]any{
			"index": map[string]any{
				"knn":                true,
				"knn.algo_param":     map[string]any{"ef_search": efSearch},
				"number_of_shards":   shards,
				"number_of_replicas": replicas,
				"similarity": map[string]any{
					"custom_bm25": map[string]any{
						"type": "BM25",
						"k1":   bm25K1,
						"b":    bm25B,
					},
				},
			},
			"analysis": map[string]any{
				"filter": map[string]any{
					"ngram_filter": map[string]any{
						"type":     "ngram",
						"min_gram": 2,
						"max_gram": 4,
					},
					"shingle_filter": map[string]any{
						"type":             "shingle",
						"min_shingle_size": 2,
						"max_shingle_size": 3,
						"output_unigrams":  true,
					},
				},
				"analyzer": map[string]any{
					"ngram_analyzer": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "ngram_filter"},
					},
					"shingle_analyzer": map[string]any{
						"type":      "custom",
						"tokenizer": "standard",
						"filter":    []string{"lowercase", "shingle_filter"},
					},
				},
			},
		},
		"mappings": map[string]any{
			"properties": map[string]any{
				"authoritative_id": map[string]any{"type": "keyword"},
				"title":            textField(),
				"abstract": map[string]any{
					"type":       "text",
					"analyzer":   "english",
					"similarity": "custom_bm25",
					"fields": map[string]any{
						"shingles": map[string]any{"type": "text", "analyzer": "shingle_analyzer"},
					},
				},
				"author_names":         denormalizedTextField(),
				"author_name_variants": denormalizedTextField(),
				"authors": map[string]any{
					"type":       "nested",
					"properties": authorProperties(),
				},
				"publication_year": map[string]any{"type": "integer"},
				"field_associated": denormalizedTextField(),
				"document_type":    map[string]any{"type": "keyword"},
				"subject_area": map[string]any{
					"type": "text",
					"fields": map[string]any{
						"keyword": map[string]any{"type": "keyword"},
						"ngram":   map[string]any{"type": "text", "analyzer": "ngram_analyzer"},
					},
				},
				"subject_area_count": map[string]any{"type": "integer"},
				"citation_count":     map[string]any{"type": "integer"},
				"reference_count":    map[string]any{"type": "integer"},
				"embedding": map[string]any{
					"type":      "knn_vector",
					"dimension": embeddingDimensions,
					"method": map[string]any{
						"name":       "hnsw",
						"space_type": "cosinesimil",
						"engine":     "nmslib",
						"parameters": map[string]any{
							"ef_construction": efConstruction,
							"m":               hnswM,
						},
					},
				},
			},
		},
	}
}

func textField() map[string]any {
	return map[string]any{
		"type":       "text",
		"analyzer":   "english",
		"similarity": "custom_bm25",
		"fields": map[string]any{
			"exact":    map[string]any{"type": "keyword"},
			"shingles": map[string]any{"type": "text", "analyzer": "shingle_analyzer"},
		},
	}
}

func denormalizedTextField() map[string]any {
	return map[string]any{
		"type": "text",
		"fields": map[string]any{
			"keyword": map[string]any{"type": "keyword"},
			"ngram":   map[string]any{"type": "text", "analyzer": "ngram_analyzer"},
		},
	}
}

func authorProperties() map[string]any {
	return map[string]any{
		"author_id":            map[string]any{"type": "keyword"},
		"author_name":          denormalizedTextField(),
		"author_name_variants": denormalizedTextField(),
		"author_position":      map[string]any{"type": "integer"},
		"author_affiliation":   map[string]any{"type": "text"},
		"has_matched_profile":  map[string]any{"type": "boolean"},
	}
}

// Manager creates and drops the engine index.
type Manager struct {
	client *opensearch.Client
	index  string
}

// NewManager builds a schema Manager bound to the raw OpenSearch client.
func NewManager(client *opensearch.Client, index string) *Manager {
	return &Manager{client: client, index: index}
}

// CreateIndex is idempotent: a no-op if the index already exists.
func (m *Manager) CreateIndex(ctx context.Context) error {
	existsResp, err := m.client.Indices.Exists([]string{m.index}, m.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return apperrors.New(apperrors.ErrCodeSchemaCreate, "check index existence", err)
	}
	defer existsResp.Body.Close()
	if existsResp.StatusCode == 200 {
		return nil
	}

	body, err := json.Marshal(Mapping())
	if err != nil {
		return fmt.Errorf("marshal index mapping: %w", err)
	}

	createResp, err := m.client.Indices.Create(
		m.index,
		m.client.Indices.Create.WithContext(ctx),
		m.client.Indices.Create.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return apperrors.New(apperrors.ErrCodeSchemaCreate, "create index", err)
	}
	defer createResp.Body.Close()
	if createResp.IsError() {
		return apperrors.New(apperrors.ErrCodeSchemaCreate, "create index returned error status: "+createResp.Status(), nil)
	}
	return nil
}

// DeleteIndex drops the index wholesale, used by reindex-full.
func (m *Manager) DeleteIndex(ctx context.Context) error {
	resp, err := m.client.Indices.Delete([]string{m.index}, m.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return apperrors.New(apperrors.ErrCodeSchemaCreate, "delete index", err)
	}
	defer resp.Body.Close()
	if resp.IsError() && resp.StatusCode != 404 {
		return apperrors.New(apperrors.ErrCodeSchemaCreate, "delete index returned error status: "+resp.Status(), nil)
	}
	return nil
}
