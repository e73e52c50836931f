package api

import (
	"net/http"
	"strconv"

	"github.com/voxhall/armory/internal/scan"
)

func (r *Router) handleScanRun(w http.ResponseWriter, req *http.Request) {
	progress, err := r.coordinator.RunAll(req.Context())
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, progress)
}

func (r *Router) handleScanRunOne(w http.ResponseWriter, req *http.Request) {
	progress, err := r.coordinator.RunOne(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, progress)
}

func (r *Router) handleScanStatus(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.coordinator.Status())
}

// handleScanCancel requests cooperative cancellation. Cancelling when no
// scan is running is a no-op.
func (r *Router) handleScanCancel(w http.ResponseWriter, req *http.Request) {
	r.coordinator.Cancel()
	writeJSON(w, http.StatusOK, r.coordinator.Status())
}

func (r *Router) handleScanHistory(w http.ResponseWriter, req *http.Request) {
	limit := 20
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, codeInvalidRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	batches, err := r.history.List(req.Context(), limit)
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	if batches == nil {
		batches = []scan.Batch{}
	}
	writeJSON(w, http.StatusOK, batches)
}
