// Package httpapi mounts the search platform's REST surface: request
// decoding is the only validation performed here, per spec.md §1's explicit
// scope cut — everything else delegates straight into the orchestrator.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/researchgraph/hybridsearch/internal/orchestrator"
)

// Server holds the dependencies HTTP handlers call into.
type Server struct {
	orc *orchestrator.Orchestrator
	log zerolog.Logger
}

// NewRouter builds the chi router mounting every endpoint in spec.md §6.
func NewRouter(orc *orchestrator.Orchestrator, log zerolog.Logger) *chi.Mux {
	s := &Server{orc: orc, log: log}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/search", s.handleSearch)
		r.Get("/document/{id}", s.handleDocument)
		r.Get("/documents/by-author/{authorId}", s.handleDocumentsByAuthor)
		r.Get("/document/{id}/similar", s.handleSimilar)
		r.Get("/author/{id}/collaborators", s.handleCollaborators)
		r.Get("/search/health", s.handleHealth)
	})

	return r
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var body searchRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}
	if body.Query == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request"})
		return
	}
	if body.PerPage > maxPerPage {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "per_page exceeds maximum of 100"})
		return
	}
	page, perPage := body.normalized()

	resp, err := s.orc.Search(r.Context(), orchestrator.SearchRequest{
		Query:    body.Query,
		Filters:  body.Filters.toFilters(),
		Sort:     body.Sort,
		Page:     page,
		PerPage:  perPage,
		SearchIn: body.SearchIn,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("search failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDocument(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	doc, err := s.orc.DocumentByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc})
}

func (s *Server) handleDocumentsByAuthor(w http.ResponseWriter, r *http.Request) {
	authorID := chi.URLParam(r, "authorId")
	page := queryInt(r, "page", defaultPage)
	perPage := queryInt(r, "per_page", defaultPerPage)

	docs, total, err := s.orc.DocumentsByAuthor(r.Context(), authorID, page, perPage)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results": docs,
		"pagination": map[string]any{
			"page": page, "per_page": perPage, "total": total,
		},
	})
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	limit := queryInt(r, "limit", 10)

	resp, err := s.orc.Similar(r.Context(), id, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCollaborators(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	resp, err := s.orc.Collaborators(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := s.orc.Health(r.Context())
	writeJSON(w, http.StatusOK, status)
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
