package api

import (
	"encoding/json"
	"net/http"

	"github.com/voxhall/armory/internal/registry"
)

func (r *Router) handleListDirectories(w http.ResponseWriter, req *http.Request) {
	entries := r.registry.List()
	if entries == nil {
		entries = []registry.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (r *Router) handleAddDirectory(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}

	result, err := r.registry.Add(req.Context(), body.Path)
	if err != nil {
		r.writeMappedError(w, err)
		return
	}

	// The entry is registered even when validation failed; find it by path.
	var entry registry.Entry
	for _, e := range r.registry.List() {
		if e.Path == body.Path {
			entry = e
			break
		}
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"directory":  entry,
		"validation": result,
	})
}

func (r *Router) handleGetDirectory(w http.ResponseWriter, req *http.Request) {
	entry, ok := r.registry.Get(req.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "directory not found")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (r *Router) handleRemoveDirectory(w http.ResponseWriter, req *http.Request) {
	if err := r.registry.Remove(req.Context(), req.PathValue("id")); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// handleValidatePath previews validation of a path without registering it.
func (r *Router) handleValidatePath(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Path string `json:"path"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	writeJSON(w, http.StatusOK, r.registry.Validate(req.Context(), body.Path))
}

func (r *Router) handleRevalidateDirectory(w http.ResponseWriter, req *http.Request) {
	id := req.PathValue("id")
	result, err := r.registry.Revalidate(req.Context(), id)
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	entry, _ := r.registry.Get(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"directory":  entry,
		"validation": result,
	})
}

func (r *Router) handleToggleDirectory(w http.ResponseWriter, req *http.Request) {
	entry, err := r.registry.ToggleActive(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (r *Router) handleGetSelected(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"selected_directory_id": r.registry.Selected(),
	})
}

func (r *Router) handleSetSelected(w http.ResponseWriter, req *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	if err := r.registry.SetSelected(req.Context(), body.ID); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"selected_directory_id": body.ID,
	})
}

func (r *Router) handleValidating(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, r.registry.Validating())
}
