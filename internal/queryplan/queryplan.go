// Package queryplan builds the search engine's query body for the three
// ranking modes (hybrid, impact, normalized), including filter compilation,
// boost weighting, phrase boosting, and facet aggregations.
package queryplan

import (
	"strconv"
	"strings"
	"time"
)

// Mode is a ranking mode, selected by the request's sort value.
type Mode string

const (
	ModeHybrid     Mode = "hybrid"
	ModeImpact     Mode = "impact"
	ModeNormalized Mode = "normalized"
)

const (
	defaultKNNCandidates = 100
	phraseSlop           = 2
	phraseBoost          = 2.5
	citationFactor       = 0.3
	impactWeight         = 1.2
	decayWeight          = 0.8
	decayScaleYears      = 5
	decayRate            = 0.5
	normalizedBM25Weight = 0.4
	normalizedVecWeight  = 0.6
	minScoreHybrid       = 5.0
	minScoreImpact       = 5.0
	minScoreNormalized   = 0.3
)

// ModeForSort maps a request's sort value to a ranking mode. The secondary
// ordering within Hybrid mode is chosen separately by secondarySort.
func ModeForSort(sort string) Mode {
	switch sort {
	case "impact":
		return ModeImpact
	case "normalized":
		return ModeNormalized
	default:
		return ModeHybrid
	}
}

// Filters are the compiled request-level filters, all optional.
type Filters struct {
	YearFrom          *int
	YearTo            *int
	FieldAssociated   string
	DocumentType      string
	DocumentTypes     []string
	SubjectArea       []string
	AuthorID          string
	Affiliation       string
	FirstAuthorOnly   bool
	Interdisciplinary bool
}

// Request is the normalized search request the planner builds a query from.
type Request struct {
	Query    string
	Filters  Filters
	Sort     string
	Page     int
	PerPage  int
	SearchIn []string
}

var defaultLogicalFields = []string{"title", "abstract", "author", "subject_area", "field"}

// logicalFieldBoosts maps a logical field to its concrete engine fields and
// default boost weights.
var logicalFieldBoosts = map[string][]fieldBoost{
	"title":        {{"title", 4}, {"title.exact", 5}},
	"abstract":     {{"abstract", 1.5}},
	"author":       {{"author_names", 2}, {"author_names.ngram", 1.5}, {"author_name_variants", 2.5}, {"author_name_variants.ngram", 1.5}},
	"subject_area": {{"subject_area", 3}, {"subject_area.ngram", 2}},
	"field":        {{"field_associated", 2.5}, {"field_associated.ngram", 1.5}},
}

type fieldBoost struct {
	field  string
	weight float64
}

// Build produces the engine query body for req, embedding queryVector into
// the k-NN/script-score clauses where the mode requires it.
func Build(req Request, queryVector []float32) map[string]any {
	mode := ModeForSort(req.Sort)
	fields := resolveSearchIn(req.SearchIn)
	filters := compileFilters(req.Filters)
	phrase := phraseClause(req.Query)

	var query map[string]any
	switch mode {
	case ModeImpact:
		query = buildImpact(req.Query, fields, filters, phrase)
	case ModeNormalized:
		query = buildNormalized(req.Query, fields, filters, phrase, queryVector)
	default:
		query = buildHybrid(req.Query, fields, filters, phrase, queryVector)
	}

	body := map[string]any{
		"query":             query,
		"track_total_hits":  true,
		"_source":           []string{"authoritative_id"},
		"from":              (req.Page - 1) * req.PerPage,
		"size":              req.PerPage,
		"aggregations":      aggregations(),
	}
	if sortClause := secondarySort(mode, req.Sort); sortClause != nil {
		body["sort"] = sortClause
	}
	return body
}

// MinScore returns the mode's default min_score floor. The search
// orchestrator owns the final relaxed value (see internal/orchestrator).
func MinScore(mode Mode) float64 {
	switch mode {
	case ModeImpact:
		return minScoreImpact
	case ModeNormalized:
		return minScoreNormalized
	default:
		return minScoreHybrid
	}
}

func resolveSearchIn(searchIn []string) []fieldBoost {
	logical := defaultLogicalFields
	explicit := false
	if len(searchIn) > 0 {
		logical = searchIn
		explicit = true
	}

	var fields []fieldBoost
	for _, l := range logical {
		for _, fb := range logicalFieldBoosts[l] {
			weight := fb.weight
			if explicit {
				weight *= 1.5
			}
			fields = append(fields, fieldBoost{field: fb.field, weight: weight})
		}
	}
	return fields
}

func multiMatchFieldStrings(fields []fieldBoost) []string {
	out := make([]string, len(fields))
	for i, fb := range fields {
		out[i] = boostedField(fb.field, fb.weight)
	}
	return out
}

func boostedField(field string, weight float64) string {
	return field + "^" + formatFloat(weight)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func compileFilters(f Filters) []map[string]any {
	var clauses []map[string]any

	if f.YearFrom != nil || f.YearTo != nil {
		r := map[string]any{}
		if f.YearFrom != nil {
			r["gte"] = *f.YearFrom
		}
		if f.YearTo != nil {
			r["lte"] = *f.YearTo
		}
		clauses = append(clauses, map[string]any{"range": map[string]any{"publication_year": r}})
	}
	if f.FieldAssociated != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"field_associated.keyword": f.FieldAssociated}})
	}
	if f.DocumentType != "" {
		clauses = append(clauses, map[string]any{"term": map[string]any{"document_type": f.DocumentType}})
	}
	if len(f.DocumentTypes) > 0 {
		clauses = append(clauses, map[string]any{"terms": map[string]any{"document_type": f.DocumentTypes}})
	}
	if len(f.SubjectArea) > 0 {
		clauses = append(clauses, map[string]any{"terms": map[string]any{"subject_area.keyword": f.SubjectArea}})
	}
	if f.AuthorID != "" {
		clauses = append(clauses, nestedAuthorFilter(map[string]any{"term": map[string]any{"authors.author_id": f.AuthorID}}))
	}
	if f.Affiliation != "" {
		clauses = append(clauses, nestedAuthorFilter(map[string]any{"match": map[string]any{"authors.author_affiliation": f.Affiliation}}))
	}
	if f.FirstAuthorOnly {
		clauses = append(clauses, nestedAuthorFilter(map[string]any{"term": map[string]any{"authors.author_position": 1}}))
	}
	if f.Interdisciplinary {
		clauses = append(clauses, map[string]any{"range": map[string]any{"subject_area_count": map[string]any{"gte": 3}}})
	}
	return clauses
}

func nestedAuthorFilter(inner map[string]any) map[string]any {
	return map[string]any{
		"nested": map[string]any{
			"path":  "authors",
			"query": inner,
		},
	}
}

// phraseClause returns the multi-word phrase boost clause, or nil if the
// query is a single token (or empty).
func phraseClause(query string) map[string]any {
	tokens := strings.Fields(strings.TrimSpace(query))
	if len(tokens) < 2 {
		return nil
	}
	return map[string]any{
		"multi_match": map[string]any{
			"query":  query,
			"type":   "phrase",
			"slop":   phraseSlop,
			"fields": []string{"title^5", "abstract^2"},
			"boost":  phraseBoost,
		},
	}
}

func lexicalShoulds(query string, fields []fieldBoost, phrase map[string]any) []map[string]any {
	shoulds := []map[string]any{
		{
			"multi_match": map[string]any{
				"query":      query,
				"fields":     multiMatchFieldStrings(fields),
				"type":       "best_fields",
				"tie_breaker": 0.3,
				"fuzziness":  "AUTO",
			},
		},
		{"match": map[string]any{"subject_area": map[string]any{"query": query, "boost": 2.0}}},
		{"match": map[string]any{"field_associated": map[string]any{"query": query, "boost": 1.5}}},
	}
	if phrase != nil {
		shoulds = append(shoulds, phrase)
	}
	return shoulds
}

func buildHybrid(query string, fields []fieldBoost, filters []map[string]any, phrase map[string]any, vector []float32) map[string]any {
	shoulds := lexicalShoulds(query, fields, phrase)
	if len(vector) > 0 {
		shoulds = append(shoulds, map[string]any{
			"knn": map[string]any{
				"embedding": map[string]any{
					"vector": vector,
					"k":      defaultKNNCandidates,
				},
			},
		})
	}
	return map[string]any{
		"bool": map[string]any{
			"should":               shoulds,
			"minimum_should_match": 1,
			"filter":               filters,
		},
	}
}

func buildImpact(query string, fields []fieldBoost, filters []map[string]any, phrase map[string]any) map[string]any {
	must := map[string]any{
		"multi_match": map[string]any{
			"query":      query,
			"fields":     multiMatchFieldStrings(fields),
			"type":       "best_fields",
			"tie_breaker": 0.3,
			"fuzziness":  "AUTO",
		},
	}
	shoulds := []map[string]any{
		{"match": map[string]any{"subject_area": map[string]any{"query": query, "boost": 2.0}}},
		{"match": map[string]any{"field_associated": map[string]any{"query": query, "boost": 1.5}}},
	}
	if phrase != nil {
		shoulds = append(shoulds, phrase)
	}

	inner := map[string]any{
		"bool": map[string]any{
			"must":   []map[string]any{must},
			"should": shoulds,
			"filter": filters,
		},
	}

	return map[string]any{
		"function_score": map[string]any{
			"query": inner,
			"functions": []map[string]any{
				{
					"field_value_factor": map[string]any{
						"field":    "citation_count",
						"modifier": "log1p",
						"factor":   citationFactor,
					},
					"weight": impactWeight,
				},
				{
					"gauss": map[string]any{
						"publication_year": map[string]any{
							"origin": time.Now().Year(),
							"scale":  decayScaleYears,
							"decay":  decayRate,
						},
					},
					"weight": decayWeight,
				},
			},
			"score_mode": "sum",
			"boost_mode": "multiply",
		},
	}
}

func buildNormalized(query string, fields []fieldBoost, filters []map[string]any, phrase map[string]any, vector []float32) map[string]any {
	shoulds := lexicalShoulds(query, fields, phrase)
	inner := map[string]any{
		"bool": map[string]any{
			"should":               shoulds,
			"minimum_should_match": 1,
			"filter":               filters,
		},
	}

	return map[string]any{
		"script_score": map[string]any{
			"query": inner,
			"script": map[string]any{
				"source": "double bm25_n = _score / (1 + _score); " +
					"double knn_n = (cosineSimilarity(params.query_vector, 'embedding') + 1) / 2; " +
					"return " + formatFloat(normalizedBM25Weight) + " * bm25_n + " + formatFloat(normalizedVecWeight) + " * knn_n;",
				"params": map[string]any{"query_vector": vector},
			},
		},
	}
}

func secondarySort(mode Mode, sort string) []map[string]any {
	if mode != ModeHybrid {
		return nil
	}
	switch sort {
	case "date":
		return []map[string]any{{"publication_year": "desc"}}
	case "citations":
		return []map[string]any{{"citation_count": "desc"}}
	default:
		return nil
	}
}

func aggregations() map[string]any {
	return map[string]any{
		"years": map[string]any{
			"terms": map[string]any{"field": "publication_year", "size": 30, "order": map[string]any{"_key": "desc"}},
		},
		"year_ranges": map[string]any{
			"range": map[string]any{
				"field": "publication_year",
				"ranges": []map[string]any{
					{"key": "<2000", "to": 2000},
					{"key": "2000-2009", "from": 2000, "to": 2010},
					{"key": "2010-2019", "from": 2010, "to": 2020},
					{"key": "2020-Present", "from": 2020},
				},
			},
		},
		"document_types": map[string]any{
			"terms": map[string]any{"field": "document_type", "size": 15},
		},
		"fields": map[string]any{
			"terms": map[string]any{"field": "field_associated.keyword", "size": 30},
		},
		"subject_areas": map[string]any{
			"terms": map[string]any{"field": "subject_area.keyword", "size": 50},
		},
	}
}
