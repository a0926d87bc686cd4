package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"consulta/internal/dataset"
	"consulta/internal/logging"
	"consulta/internal/query"
	"consulta/internal/schema"
)

// handleUpload replaces the active dataset with an uploaded spreadsheet.
// The file is parsed fully before anything is swapped or persisted, so a
// malformed upload leaves the current dataset untouched.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Upload.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, r, http.StatusBadRequest, "UPL_TOO_LARGE", "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "UPL_NO_FILE", "no file provided")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext != ".xlsx" && ext != ".csv" {
		writeError(w, r, http.StatusBadRequest, "UPL_BAD_TYPE", "only .xlsx and .csv files are accepted")
		return
	}

	raw, err := io.ReadAll(file)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	table, err := dataset.Load(raw, header.Filename)
	var loadErr *dataset.LoadError
	if errors.As(err, &loadErr) {
		writeError(w, r, http.StatusBadRequest, "UPL_PARSE", loadErr.Error())
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	rec, err := s.deps.Archive.Save(r.Context(), header.Filename, raw, table)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	s.deps.Tables.Replace(table)

	logging.FromContext(r.Context()).Info("dataset replaced",
		"upload_id", rec.ID,
		"filename", rec.Filename,
		"columns", rec.Columns,
		"rows", rec.Rows,
	)

	writeJSON(w, map[string]any{
		"message":        "dataset uploaded",
		"upload_id":      rec.ID,
		"columns":        table.Columns(),
		"current_config": s.deps.Schema.Get(),
	})
}

// handleUploadHistory lists stored uploads, newest first.
func (s *Server) handleUploadHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.deps.Archive.History(r.Context(), 50)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if records == nil {
		records = []dataset.Record{}
	}
	writeJSON(w, records)
}

// handleGetConfig returns the current column mapping.
func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.deps.Schema.Get())
}

// handleSetConfig updates the column mapping after validating it against
// the active dataset's columns.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	var cfg schema.Config
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, r, http.StatusBadRequest, "CFG_BAD_REQUEST", "invalid request body")
		return
	}

	err := s.deps.Schema.Set(r.Context(), cfg, s.deps.Tables.Current().Columns())
	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) {
		writeError(w, r, http.StatusBadRequest, "CFG_INVALID", validationErr.Error())
		return
	}
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, map[string]string{"message": "configuration updated"})
}

// handleSuggestions returns identifier autocomplete values for the admin
// search box.
func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	fragment := r.URL.Query().Get("fragment")
	if fragment == "" {
		writeJSON(w, []string{})
		return
	}

	matches := s.deps.Engine.Suggest(fragment)
	if matches == nil {
		matches = []string{}
	}
	writeJSON(w, matches)
}

// handleRecord returns the full, unfiltered first record for an identifier.
// Admin-only: this view ignores the visible-column restriction.
func (s *Server) handleRecord(w http.ResponseWriter, r *http.Request) {
	identifier := r.URL.Query().Get("identifier")
	if identifier == "" {
		writeError(w, r, http.StatusBadRequest, "QRY_BAD_REQUEST", "identifier is required")
		return
	}

	record, err := s.deps.Engine.Record(identifier)
	switch {
	case errors.Is(err, query.ErrNoData):
		writeError(w, r, http.StatusServiceUnavailable, "SYS_NO_DATA", "no dataset is loaded")
		return
	case errors.Is(err, query.ErrNotConfigured):
		writeError(w, r, http.StatusBadRequest, "CFG_INCOMPLETE", "identifier column is not configured")
		return
	case errors.Is(err, query.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "QRY_NOT_FOUND", "no record found for that identifier")
		return
	case err != nil:
		writeInternalError(w, r, err)
		return
	}

	writeJSON(w, record)
}
