package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Cemag-pcp/projeto-epi-sub000/internal/lookup"
)

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type validationBody struct {
	lookup.Autofill
	Valid bool `json:"valid"`
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	rec, err := s.lookup.ByNumber(r.Context(), chi.URLParam(r, "number"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := lookup.Query{
		Text:     q.Get("q"),
		Brand:    q.Get("brand"),
		Page:     atoiOr(q.Get("page"), 1),
		PageSize: atoiOr(q.Get("page_size"), lookup.DefaultPageSize),
	}
	page, err := s.lookup.Search(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	fill, err := s.lookup.Validate(r.Context(), chi.URLParam(r, "number"), s.now())
	switch {
	case errors.Is(err, lookup.ErrCertificateExpired):
		writeJSON(w, http.StatusUnprocessableEntity, struct {
			validationBody
			Error string `json:"error"`
		}{validationBody{Autofill: fill}, err.Error()})
	case err != nil:
		s.writeError(w, r, err)
	default:
		writeJSON(w, http.StatusOK, validationBody{Autofill: fill, Valid: true})
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	msg := "internal error"
	switch {
	case errors.Is(err, lookup.ErrNotFound):
		status, msg = http.StatusNotFound, err.Error()
	case errors.Is(err, lookup.ErrCertificateExpired):
		status, msg = http.StatusUnprocessableEntity, err.Error()
	default:
		s.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	}
	writeJSON(w, status, errorBody{Error: msg, RequestID: chimiddleware.GetReqID(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func atoiOr(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
