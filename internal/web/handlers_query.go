package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"consulta/internal/query"
)

type queryRequest struct {
	Identifier string `json:"identifier"`
	Date       string `json:"date"`
}

// handleQuery is the public lookup: an identifier plus a date returns the
// matching records restricted to the visible columns. Configuration faults
// are reported generically; the response never names internal columns.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "QRY_BAD_REQUEST", "invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	req.Date = strings.TrimSpace(req.Date)
	if req.Identifier == "" || req.Date == "" {
		writeError(w, r, http.StatusBadRequest, "QRY_BAD_REQUEST", "identifier and date are required")
		return
	}

	rows, err := s.deps.Engine.Lookup(req.Identifier, req.Date)
	switch {
	case errors.Is(err, query.ErrNoData):
		writeError(w, r, http.StatusServiceUnavailable, "SYS_NO_DATA", "the system is under maintenance, no dataset is loaded")
		return
	case errors.Is(err, query.ErrNotConfigured):
		// Never reveal which column is missing.
		writeError(w, r, http.StatusInternalServerError, "CFG_INCOMPLETE", "the system is not configured for queries")
		return
	case errors.Is(err, query.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "QRY_NOT_FOUND", "no records matched the provided identifier and date")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, rows)
}
