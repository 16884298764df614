// Package orchestrator is the top-level search algorithm: cache lookup,
// query embedding, a cheap BM25 pre-check, engine query execution,
// hydration back to authoritative records, and related-people enrichment.
package orchestrator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/researchgraph/hybridsearch/internal/docstore"
	apperrors "github.com/researchgraph/hybridsearch/internal/errors"
	"github.com/researchgraph/hybridsearch/internal/queryplan"
	"github.com/researchgraph/hybridsearch/internal/resultcache"
	"github.com/researchgraph/hybridsearch/internal/searchengine"
)

// relaxedMinScore replaces the planner's BM25-scale default (5.0) for
// hybrid and impact mode, where that default is too strict in practice.
// Normalized mode's scores are already capped at 1.0 by construction, so
// its floor is left at the planner's own value instead of being relaxed.
const relaxedMinScore = 1.0

func minScoreFor(mode queryplan.Mode) float64 {
	if mode == queryplan.ModeNormalized {
		return queryplan.MinScore(mode)
	}
	return relaxedMinScore
}

var precheckFields = []string{"title", "abstract", "author_names", "subject_area"}

// Embedder is the subset of internal/embedclient.Client the orchestrator needs.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Orchestrator wires together the result cache, embedding client, search
// engine, and authoritative store to answer one search request.
type Orchestrator struct {
	cache         *resultcache.Cache
	embed         Embedder
	engine        *searchengine.Client
	store         *docstore.Store
	log           zerolog.Logger
	relatedPeople bool
}

// New constructs an Orchestrator. relatedPeople toggles the optional
// institutional-email enrichment step.
func New(cache *resultcache.Cache, embed Embedder, engine *searchengine.Client, store *docstore.Store, log zerolog.Logger, relatedPeople bool) *Orchestrator {
	return &Orchestrator{cache: cache, embed: embed, engine: engine, store: store, log: log, relatedPeople: relatedPeople}
}

// SearchRequest is the normalized shape of an incoming search request.
type SearchRequest struct {
	Query    string
	Filters  queryplan.Filters
	Sort     string
	Page     int
	PerPage  int
	SearchIn []string
	Bypass   bool
}

// Bucket is one facet aggregation bucket.
type Bucket struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// Facets are the always-present facet aggregations.
type Facets struct {
	Years         []Bucket `json:"years"`
	YearRanges    []Bucket `json:"year_ranges"`
	DocumentTypes []Bucket `json:"document_types"`
	Fields        []Bucket `json:"fields"`
	SubjectAreas  []Bucket `json:"subject_areas"`
}

// Pagination describes the page returned relative to the total hit count.
type Pagination struct {
	Page       int `json:"page"`
	PerPage    int `json:"per_page"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// Meta carries response metadata not part of the result set itself.
type Meta struct {
	TookMs   int64 `json:"took_ms"`
	CacheHit bool  `json:"cache_hit"`
}

// SearchResponse is the full shape returned to the HTTP layer.
type SearchResponse struct {
	Results       []docstore.Document `json:"results"`
	RelatedPeople []docstore.Person   `json:"related_people,omitempty"`
	Facets        Facets              `json:"facets"`
	Pagination    Pagination          `json:"pagination"`
	Meta          Meta                `json:"meta"`
	Message       string              `json:"message,omitempty"`
}

// Search runs the full orchestration algorithm for req.
func (o *Orchestrator) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	start := time.Now()
	key := resultcache.Key(keyInput(req))

	if !req.Bypass {
		if cached, ok := o.cache.Get(ctx, key); ok {
			var resp SearchResponse
			if err := json.Unmarshal([]byte(cached), &resp); err == nil {
				resp.Meta.CacheHit = true
				resp.Meta.TookMs = time.Since(start).Milliseconds()
				return resp, nil
			}
		}
	}

	vector, err := o.embed.EmbedQuery(ctx, req.Query)
	if err != nil {
		return SearchResponse{}, err
	}

	zeroHits, err := o.precheckZeroHits(ctx, req.Query)
	if err != nil {
		return SearchResponse{}, err
	}
	if zeroHits {
		return SearchResponse{
			Results: []docstore.Document{},
			Facets:  Facets{},
			Pagination: Pagination{
				Page: req.Page, PerPage: req.PerPage,
			},
			Meta:    Meta{TookMs: time.Since(start).Milliseconds(), CacheHit: false},
			Message: "No relevant results found for your query",
		}, nil
	}

	body := queryplan.Build(queryplan.Request{
		Query: req.Query, Filters: req.Filters, Sort: req.Sort,
		Page: req.Page, PerPage: req.PerPage, SearchIn: req.SearchIn,
	}, vector)
	body["min_score"] = minScoreFor(queryplan.ModeForSort(req.Sort))

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return SearchResponse{}, err
	}

	result, err := o.engine.RunQuery(ctx, bodyBytes)
	if err != nil {
		return SearchResponse{}, err
	}

	ordered, err := o.hydrate(ctx, result.Hits)
	if err != nil {
		return SearchResponse{}, err
	}

	var relatedPeople []docstore.Person
	if o.relatedPeople {
		relatedPeople = o.extractRelatedPeople(ctx, ordered)
	}

	resp := SearchResponse{
		Results:       ordered,
		RelatedPeople: relatedPeople,
		Facets:        parseFacets(result.Aggregations),
		Pagination: Pagination{
			Page: req.Page, PerPage: req.PerPage,
			Total: result.Total, TotalPages: totalPages(result.Total, req.PerPage),
		},
		Meta: Meta{TookMs: time.Since(start).Milliseconds(), CacheHit: false},
	}

	if encoded, err := json.Marshal(resp); err == nil {
		o.cache.Set(ctx, key, string(encoded))
	}
	return resp, nil
}

func (o *Orchestrator) precheckZeroHits(ctx context.Context, query string) (bool, error) {
	body, err := json.Marshal(map[string]any{
		"size":  0,
		"query": map[string]any{"multi_match": map[string]any{"query": query, "fields": precheckFields}},
	})
	if err != nil {
		return false, err
	}
	result, err := o.engine.RunQuery(ctx, body)
	if err != nil {
		return false, err
	}
	return result.Total == 0, nil
}

// hydrate fetches authoritative records for the engine's hit order and
// re-emits them in that exact order; ids that fail to hydrate are dropped.
func (o *Orchestrator) hydrate(ctx context.Context, hits []searchengine.Hit) ([]docstore.Document, error) {
	ids := make([]string, len(hits))
	for i, h := range hits {
		ids[i] = h.Doc.AuthoritativeID
	}

	docs, err := o.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]docstore.Document, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	ordered := make([]docstore.Document, 0, len(ids))
	for _, id := range ids {
		if d, ok := byID[id]; ok {
			ordered = append(ordered, d)
		}
	}
	return ordered, nil
}

// extractRelatedPeople scans hydrated authors for matched institutional
// emails and resolves them to person records, deduplicated by person id.
// Failures here are logged and degrade to an empty slice — this is an
// optional enrichment, never fatal to the search response.
func (o *Orchestrator) extractRelatedPeople(ctx context.Context, docs []docstore.Document) []docstore.Person {
	seen := make(map[string]bool)
	var prefixes []string
	for _, d := range docs {
		for _, a := range d.Authors {
			if a.AuthorEmail == "" {
				continue
			}
			prefix, _, found := strings.Cut(a.AuthorEmail, "@")
			if !found || prefix == "" {
				continue
			}
			if !seen[prefix] {
				seen[prefix] = true
				prefixes = append(prefixes, prefix)
			}
		}
	}
	if len(prefixes) == 0 {
		return nil
	}

	people, err := o.store.GetPeopleByEmailPrefixes(ctx, prefixes)
	if err != nil {
		o.log.Warn().Err(err).Msg("related-people lookup failed, omitting from response")
		return nil
	}

	dedup := make(map[string]bool, len(people))
	out := make([]docstore.Person, 0, len(people))
	for _, p := range people {
		if dedup[p.ID] {
			continue
		}
		dedup[p.ID] = true
		out = append(out, p)
	}
	return out
}

func keyInput(req SearchRequest) resultcache.KeyInput {
	searchIn := req.SearchIn
	if len(searchIn) == 0 {
		searchIn = []string{"title", "abstract", "author", "subject_area", "field"}
	}
	return resultcache.KeyInput{
		Query:    req.Query,
		Filters:  filtersToMap(req.Filters),
		Sort:     req.Sort,
		Page:     req.Page,
		PerPage:  req.PerPage,
		SearchIn: searchIn,
	}
}

func filtersToMap(f queryplan.Filters) map[string]any {
	m := map[string]any{
		"field_associated":  f.FieldAssociated,
		"document_type":     f.DocumentType,
		"document_types":    f.DocumentTypes,
		"subject_area":      f.SubjectArea,
		"author_id":         f.AuthorID,
		"affiliation":       f.Affiliation,
		"first_author_only": f.FirstAuthorOnly,
		"interdisciplinary": f.Interdisciplinary,
	}
	if f.YearFrom != nil {
		m["year_from"] = *f.YearFrom
	}
	if f.YearTo != nil {
		m["year_to"] = *f.YearTo
	}
	return m
}

func totalPages(total, perPage int) int {
	if perPage <= 0 {
		return 0
	}
	pages := total / perPage
	if total%perPage != 0 {
		pages++
	}
	return pages
}

type aggBucket struct {
	Key      json.RawMessage `json:"key"`
	KeyAsStr string          `json:"key_as_string"`
	DocCount int64           `json:"doc_count"`
}

type aggTerms struct {
	Buckets []aggBucket `json:"buckets"`
}

type engineAggregations struct {
	Years         aggTerms `json:"years"`
	YearRanges    aggTerms `json:"year_ranges"`
	DocumentTypes aggTerms `json:"document_types"`
	Fields        aggTerms `json:"fields"`
	SubjectAreas  aggTerms `json:"subject_areas"`
}

func parseFacets(raw json.RawMessage) Facets {
	if len(raw) == 0 {
		return Facets{}
	}
	var parsed engineAggregations
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Facets{}
	}
	return Facets{
		Years:         toBuckets(parsed.Years),
		YearRanges:    toBuckets(parsed.YearRanges),
		DocumentTypes: toBuckets(parsed.DocumentTypes),
		Fields:        toBuckets(parsed.Fields),
		SubjectAreas:  toBuckets(parsed.SubjectAreas),
	}
}

func toBuckets(t aggTerms) []Bucket {
	out := make([]Bucket, 0, len(t.Buckets))
	for _, b := range t.Buckets {
		key := b.KeyAsStr
		if key == "" {
			key = strings.Trim(string(b.Key), `"`)
		}
		out = append(out, Bucket{Key: key, Count: b.DocCount})
	}
	return out
}

// NotFoundError wraps apperrors.NotFound for document/similar lookups.
func NotFoundError(id string) error {
	return apperrors.NotFound("document not found: " + id)
}
