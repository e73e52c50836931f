package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voxhall/armory/internal/registry"
	"github.com/voxhall/armory/internal/scan"
	"github.com/voxhall/armory/internal/version"
	"github.com/voxhall/armory/internal/webhook"
)

// Error codes returned by the API.
const (
	codeDuplicateDirectory = "duplicate_directory"
	codeValidationFailed   = "validation_failed"
	codeNotFound           = "not_found"
	codeNoValidDirectories = "no_valid_directories"
	codeScanInProgress     = "scan_in_progress"
	codeStorageError       = "storage_error"
	codeInvalidRequest     = "invalid_request"
	codeInternalError      = "internal_error"
)

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": version.Version,
		"commit":  version.Commit,
		"time":    time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encode error", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// writeMappedError translates domain errors into the API error taxonomy.
func (r *Router) writeMappedError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrDuplicate):
		writeError(w, http.StatusConflict, codeDuplicateDirectory, err.Error())
	case errors.Is(err, registry.ErrEmptyPath):
		writeError(w, http.StatusBadRequest, codeValidationFailed, err.Error())
	case errors.Is(err, registry.ErrNotFound), errors.Is(err, webhook.ErrNotFound):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, registry.ErrStorage):
		r.logger.Error("storage failure", "error", err)
		writeError(w, http.StatusInternalServerError, codeStorageError, "storage failure")
	case errors.Is(err, scan.ErrScanInProgress):
		writeError(w, http.StatusConflict, codeScanInProgress, err.Error())
	case errors.Is(err, scan.ErrNoValidDirectories):
		writeError(w, http.StatusConflict, codeNoValidDirectories, err.Error())
	default:
		r.logger.Error("internal error", "error", err)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
