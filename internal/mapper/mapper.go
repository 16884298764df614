// Package mapper converts a cached document into its search-engine
// projection. The conversion is pure: no I/O, no external calls.
package mapper

import (
	"strconv"

	"github.com/researchgraph/hybridsearch/internal/doccache"
	"github.com/researchgraph/hybridsearch/internal/docstore"
	"github.com/researchgraph/hybridsearch/internal/searchengine"
)

// ToEngineDocument produces the Engine Document for a cache entry.
func ToEngineDocument(e doccache.Entry) searchengine.Document {
	doc := e.Document

	names := make([]string, 0, len(doc.Authors))
	variants := make([]string, 0, len(doc.Authors))
	authors := make([]searchengine.EngineAuthor, 0, len(doc.Authors))

	for _, a := range doc.Authors {
		names = append(names, a.AuthorName)
		variants = append(variants, a.AuthorAvailableNames...)
		authors = append(authors, searchengine.EngineAuthor{
			AuthorID:          a.AuthorID,
			AuthorName:        a.AuthorName,
			AuthorPosition:    parsePosition(a.AuthorPosition),
			AuthorAffiliation: a.AuthorAffiliation,
			HasMatchedProfile: hasMatchedProfile(a),
		})
	}

	return searchengine.Document{
		AuthoritativeID:    doc.ID,
		Title:              doc.Title,
		Abstract:           doc.Abstract,
		AuthorNames:        names,
		AuthorNameVariants: variants,
		Authors:            authors,
		PublicationYear:    doc.PublicationYear,
		FieldAssociated:    doc.FieldAssociated,
		DocumentType:       doc.DocumentType,
		SubjectArea:        doc.SubjectArea,
		SubjectAreaCount:   len(doc.SubjectArea),
		CitationCount:      doc.CitationCount,
		ReferenceCount:     doc.ReferenceCount,
		Embedding:          e.Embedding,
	}
}

// parsePosition coerces an author's position, which upstream records store
// inconsistently as a number or a numeric string, to an int. Falls back to 0
// when the value can't be interpreted either way.
func parsePosition(v any) int {
	switch p := v.(type) {
	case int:
		return p
	case int32:
		return int(p)
	case int64:
		return int(p)
	case float64:
		return int(p)
	case string:
		n, err := strconv.Atoi(p)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// hasMatchedProfile is true iff the author record carries a matched-profile
// reference. The authoritative store records this directly as a flag rather
// than a profile id, so the projection is a pass-through.
func hasMatchedProfile(a docstore.Author) bool {
	return a.HasMatchedProfile
}
