// Package docstore is the authoritative document store: MongoDB-backed
// persistence for papers and their authors, plus the cross-reference id
// back-synced from the search engine after indexing.
package docstore

// Document is the authoritative record for a single paper.
type Document struct {
	ID              string   `bson:"_id" json:"id"`
	Title           string   `bson:"title" json:"title"`
	Abstract        string   `bson:"abstract" json:"abstract"`
	Authors         []Author `bson:"authors" json:"authors"`
	PublicationYear int      `bson:"publication_year" json:"publication_year"`
	FieldAssociated string   `bson:"field_associated" json:"field_associated"`
	DocumentType    string   `bson:"document_type" json:"document_type"`
	SubjectArea     []string `bson:"subject_area" json:"subject_area"`
	CitationCount   int      `bson:"citation_count" json:"citation_count"`
	ReferenceCount  int      `bson:"reference_count" json:"reference_count"`
	OpenSearchID    string   `bson:"open_search_id,omitempty" json:"open_search_id,omitempty"`
}

// Author is a single paper's author, positioned within the author list.
//
// AuthorPosition is untyped because upstream records disagree on whether
// position is stored as a number or a numeric string; internal/mapper parses
// it defensively and falls back to 0.
type Author struct {
	AuthorID             string   `bson:"author_id" json:"author_id"`
	AuthorName           string   `bson:"author_name" json:"author_name"`
	AuthorAvailableNames []string `bson:"author_available_names" json:"author_available_names"`
	AuthorPosition       any      `bson:"author_position" json:"author_position"`
	AuthorAffiliation    string   `bson:"author_affiliation" json:"author_affiliation"`
	AuthorEmail          string   `bson:"author_email,omitempty" json:"author_email,omitempty"`
	HasMatchedProfile    bool     `bson:"has_matched_profile" json:"has_matched_profile"`
}
