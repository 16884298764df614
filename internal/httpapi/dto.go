package httpapi

import "github.com/researchgraph/hybridsearch/internal/queryplan"

// searchRequestBody is the decoded shape of POST /api/v1/search, per
// spec.md §6.
type searchRequestBody struct {
	Query    string       `json:"query"`
	Filters  *filtersBody `json:"filters"`
	Sort     string       `json:"sort"`
	Page     int          `json:"page"`
	PerPage  int          `json:"per_page"`
	SearchIn []string     `json:"search_in"`
}

type filtersBody struct {
	YearFrom          *int     `json:"year_from"`
	YearTo            *int     `json:"year_to"`
	FieldAssociated   string   `json:"field_associated"`
	DocumentType      string   `json:"document_type"`
	DocumentTypes     []string `json:"document_types"`
	SubjectArea       []string `json:"subject_area"`
	AuthorID          string   `json:"author_id"`
	Affiliation       string   `json:"affiliation"`
	FirstAuthorOnly   bool     `json:"first_author_only"`
	Interdisciplinary bool     `json:"interdisciplinary"`
}

func (b *filtersBody) toFilters() queryplan.Filters {
	if b == nil {
		return queryplan.Filters{}
	}
	return queryplan.Filters{
		YearFrom:          b.YearFrom,
		YearTo:            b.YearTo,
		FieldAssociated:   b.FieldAssociated,
		DocumentType:      b.DocumentType,
		DocumentTypes:     b.DocumentTypes,
		SubjectArea:       b.SubjectArea,
		AuthorID:          b.AuthorID,
		Affiliation:       b.Affiliation,
		FirstAuthorOnly:   b.FirstAuthorOnly,
		Interdisciplinary: b.Interdisciplinary,
	}
}

const (
	defaultPage    = 1
	defaultPerPage = 20
	maxPerPage     = 100
)

func (b searchRequestBody) normalized() (page, perPage int) {
	page, perPage = b.Page, b.PerPage
	if page <= 0 {
		page = defaultPage
	}
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	return page, perPage
}
