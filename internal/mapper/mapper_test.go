package mapper

import (
	"testing"

	"github.com/researchgraph/hybridsearch/internal/doccache"
	"github.com/researchgraph/hybridsearch/internal/docstore"
)

func entryWithAuthors(authors ...docstore.Author) doccache.Entry {
	return doccache.Entry{
		Document: docstore.Document{
			ID:          "doc-1",
			Title:       "On Carbon Nanotubes",
			SubjectArea: []string{"physics", "materials-science"},
			Authors:     authors,
		},
		Embedding: []float32{0.1, 0.2},
	}
}

func TestToEngineDocument_FlattensAuthorNamesInOrder(t *testing.T) {
	entry := entryWithAuthors(
		docstore.Author{AuthorName: "Ada Lovelace", AuthorPosition: 1},
		docstore.Author{AuthorName: "Alan Turing", AuthorPosition: 2},
	)
	doc := ToEngineDocument(entry)
	want := []string{"Ada Lovelace", "Alan Turing"}
	if len(doc.AuthorNames) != len(want) {
		t.Fatalf("AuthorNames = %v, want %v", doc.AuthorNames, want)
	}
	for i, name := range want {
		if doc.AuthorNames[i] != name {
			t.Errorf("AuthorNames[%d] = %q, want %q", i, doc.AuthorNames[i], name)
		}
	}
}

func TestToEngineDocument_FlattensVariantsPreservingDuplicates(t *testing.T) {
	entry := entryWithAuthors(
		docstore.Author{AuthorName: "Ada Lovelace", AuthorAvailableNames: []string{"A. Lovelace", "Ada King"}},
		docstore.Author{AuthorName: "Alan Turing", AuthorAvailableNames: []string{"A. Lovelace"}},
	)
	doc := ToEngineDocument(entry)
	if len(doc.AuthorNameVariants) != 3 {
		t.Fatalf("AuthorNameVariants = %v, want 3 entries (duplicates preserved)", doc.AuthorNameVariants)
	}
}

func TestToEngineDocument_ParsesStringPositionWithFallback(t *testing.T) {
	entry := entryWithAuthors(
		docstore.Author{AuthorName: "Ada Lovelace", AuthorPosition: "1"},
		docstore.Author{AuthorName: "Alan Turing", AuthorPosition: "not-a-number"},
		docstore.Author{AuthorName: "Grace Hopper", AuthorPosition: int32(3)},
	)
	doc := ToEngineDocument(entry)
	if doc.Authors[0].AuthorPosition != 1 {
		t.Errorf("Authors[0].AuthorPosition = %d, want 1", doc.Authors[0].AuthorPosition)
	}
	if doc.Authors[1].AuthorPosition != 0 {
		t.Errorf("Authors[1].AuthorPosition = %d, want 0 (parse failure fallback)", doc.Authors[1].AuthorPosition)
	}
	if doc.Authors[2].AuthorPosition != 3 {
		t.Errorf("Authors[2].AuthorPosition = %d, want 3", doc.Authors[2].AuthorPosition)
	}
}

func TestToEngineDocument_SubjectAreaCountEqualsLength(t *testing.T) {
	entry := entryWithAuthors()
	doc := ToEngineDocument(entry)
	if doc.SubjectAreaCount != len(doc.SubjectArea) {
		t.Errorf("SubjectAreaCount = %d, want %d", doc.SubjectAreaCount, len(doc.SubjectArea))
	}
}

func TestToEngineDocument_HasMatchedProfilePassesThrough(t *testing.T) {
	entry := entryWithAuthors(
		docstore.Author{AuthorName: "Ada Lovelace", HasMatchedProfile: true},
		docstore.Author{AuthorName: "Alan Turing", HasMatchedProfile: false},
	)
	doc := ToEngineDocument(entry)
	if !doc.Authors[0].HasMatchedProfile {
		t.Error("Authors[0].HasMatchedProfile = false, want true")
	}
	if doc.Authors[1].HasMatchedProfile {
		t.Error("Authors[1].HasMatchedProfile = true, want false")
	}
}
