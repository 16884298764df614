package httpapi

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestHandleSearch_EmptyQueryReturns400(t *testing.T) {
	s := &Server{log: zerolog.Nop()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":""}`))
	rec := httptest.NewRecorder()

	s.handleSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_PerPageOverMaxReturns400(t *testing.T) {
	s := &Server{log: zerolog.Nop()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`{"query":"graphene","per_page":101}`))
	rec := httptest.NewRecorder()

	s.handleSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandleSearch_InvalidBodyReturns400(t *testing.T) {
	s := &Server{log: zerolog.Nop()}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", strings.NewReader(`not json`))
	rec := httptest.NewRecorder()

	s.handleSearch(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
