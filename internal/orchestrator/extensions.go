package orchestrator

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/researchgraph/hybridsearch/internal/docstore"
)

const defaultSimilarPad = 5

// SimilarSource describes the document a similarity search was seeded from.
type SimilarSource struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	SubjectAreas []string `json:"subject_areas"`
}

// SimilarItem is a hydrated document plus its similarity score.
type SimilarItem struct {
	docstore.Document
	SimilarityScore float64 `json:"similarity_score"`
}

// SimilarResponse is returned by Similar.
type SimilarResponse struct {
	Source  SimilarSource `json:"source"`
	Similar []SimilarItem `json:"similar"`
}

// DocumentByID fetches one authoritative record by id, or a NotFoundError.
func (o *Orchestrator) DocumentByID(ctx context.Context, id string) (docstore.Document, error) {
	docs, err := o.store.GetByIDs(ctx, []string{id})
	if err != nil {
		return docstore.Document{}, err
	}
	if len(docs) == 0 {
		return docstore.Document{}, NotFoundError(id)
	}
	return docs[0], nil
}

// DocumentsByAuthor returns a page of documents by an author id, sorted by
// publication year descending.
func (o *Orchestrator) DocumentsByAuthor(ctx context.Context, authorID string, page, perPage int) ([]docstore.Document, int64, error) {
	return o.store.GetByAuthorID(ctx, authorID, page, perPage)
}

// Similar fetches the source document's vector from the engine, runs a k-NN
// search excluding the source itself, and hydrates the results.
func (o *Orchestrator) Similar(ctx context.Context, id string, limit int) (SimilarResponse, error) {
	if limit <= 0 {
		limit = 10
	}

	sourceHit, err := o.engine.FetchByAuthoritativeID(ctx, id)
	if err != nil {
		return SimilarResponse{}, err
	}

	body, err := json.Marshal(map[string]any{
		"size": limit,
		"query": map[string]any{
			"bool": map[string]any{
				"must_not": []map[string]any{{"term": map[string]any{"authoritative_id": id}}},
				"should": []map[string]any{{
					"knn": map[string]any{
						"embedding": map[string]any{
							"vector": sourceHit.Doc.Embedding,
							"k":      limit + defaultSimilarPad,
						},
					},
				}},
				"minimum_should_match": 1,
			},
		},
		"_source": []string{"authoritative_id"},
	})
	if err != nil {
		return SimilarResponse{}, err
	}

	result, err := o.engine.RunQuery(ctx, body)
	if err != nil {
		return SimilarResponse{}, err
	}

	docs, err := o.hydrate(ctx, result.Hits)
	if err != nil {
		return SimilarResponse{}, err
	}
	scoreByID := make(map[string]float64, len(result.Hits))
	for _, h := range result.Hits {
		scoreByID[h.Doc.AuthoritativeID] = h.Score
	}

	items := make([]SimilarItem, len(docs))
	for i, d := range docs {
		items[i] = SimilarItem{Document: d, SimilarityScore: scoreByID[d.ID]}
	}

	return SimilarResponse{
		Source: SimilarSource{
			ID:           sourceHit.Doc.AuthoritativeID,
			Title:        sourceHit.Doc.Title,
			SubjectAreas: sourceHit.Doc.SubjectArea,
		},
		Similar: items,
	}, nil
}

// Collaborator is one co-author aggregated for CollaboratorsResponse.
type Collaborator struct {
	AuthorID    string `json:"author_id"`
	AuthorName  string `json:"author_name"`
	Affiliation string `json:"affiliation"`
	PaperCount  int64  `json:"paper_count"`
}

// CollaboratorsResponse is returned by Collaborators.
type CollaboratorsResponse struct {
	AuthorID      string         `json:"author_id"`
	TotalPapers   int64          `json:"total_papers"`
	Collaborators []Collaborator `json:"collaborators"`
}

const collaboratorsTopN = 50

type topHitSource struct {
	AuthorName        string `json:"author_name"`
	AuthorAffiliation string `json:"author_affiliation"`
}

type collaboratorsAggResponse struct {
	Hits struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
	} `json:"hits"`
	Aggregations struct {
		Authors struct {
			Coauthors struct {
				Buckets []struct {
					Key      string `json:"key"`
					DocCount int64  `json:"doc_count"`
					Sample   struct {
						Hits struct {
							Hits []struct {
								Source topHitSource `json:"_source"`
							} `json:"hits"`
						} `json:"hits"`
					} `json:"sample"`
				} `json:"buckets"`
			} `json:"coauthors"`
		} `json:"authors"`
	} `json:"aggregations"`
}

// Collaborators aggregates nested author ids co-occurring in papers with
// authorID, excluding authorID itself, top 50 by paper count.
func (o *Orchestrator) Collaborators(ctx context.Context, authorID string) (CollaboratorsResponse, error) {
	body, err := json.Marshal(map[string]any{
		"size": 0,
		"query": map[string]any{
			"nested": map[string]any{
				"path":  "authors",
				"query": map[string]any{"term": map[string]any{"authors.author_id": authorID}},
			},
		},
		"aggregations": map[string]any{
			"authors": map[string]any{
				"nested": map[string]any{"path": "authors"},
				"aggregations": map[string]any{
					"coauthors": map[string]any{
						"terms": map[string]any{
							"field":   "authors.author_id",
							"size":    collaboratorsTopN,
							"exclude": []string{authorID},
						},
						"aggregations": map[string]any{
							"sample": map[string]any{
								"top_hits": map[string]any{
									"size":    1,
									"_source": []string{"author_name", "author_affiliation"},
								},
							},
						},
					},
				},
			},
		},
	})
	if err != nil {
		return CollaboratorsResponse{}, err
	}

	resp, err := o.engine.Search(ctx, bytes.NewReader(body))
	if err != nil {
		return CollaboratorsResponse{}, err
	}
	defer resp.Body.Close()

	var decoded collaboratorsAggResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return CollaboratorsResponse{}, err
	}

	collaborators := make([]Collaborator, 0, len(decoded.Aggregations.Authors.Coauthors.Buckets))
	for _, b := range decoded.Aggregations.Authors.Coauthors.Buckets {
		var name, affiliation string
		if len(b.Sample.Hits.Hits) > 0 {
			name = b.Sample.Hits.Hits[0].Source.AuthorName
			affiliation = b.Sample.Hits.Hits[0].Source.AuthorAffiliation
		}
		collaborators = append(collaborators, Collaborator{
			AuthorID:    b.Key,
			AuthorName:  name,
			Affiliation: affiliation,
			PaperCount:  b.DocCount,
		})
	}

	return CollaboratorsResponse{
		AuthorID:      authorID,
		TotalPapers:   decoded.Hits.Total.Value,
		Collaborators: collaborators,
	}, nil
}

// HealthStatus reports the liveness of the orchestrator's backing services.
type HealthStatus struct {
	Engine           string `json:"engine"`
	Embedding        bool   `json:"embedding"`
	EmbeddingCircuit string `json:"embedding_circuit"`
}

// Health checks engine cluster health and the embedding service, including
// whether the embedding client's circuit breaker has tripped on repeated
// timeouts.
func (o *Orchestrator) Health(ctx context.Context) HealthStatus {
	status := HealthStatus{Engine: "red", EmbeddingCircuit: "closed"}
	if s, err := o.engine.Health(ctx); err == nil {
		status.Engine = s
	}
	if healthy, ok := o.embed.(interface{ Healthy(context.Context) bool }); ok {
		status.Embedding = healthy.Healthy(ctx)
	}
	if breaker, ok := o.embed.(interface{ CircuitOpen() bool }); ok && breaker.CircuitOpen() {
		status.EmbeddingCircuit = "open"
	}
	return status
}
