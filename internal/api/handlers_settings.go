package api

import (
	"encoding/json"
	"net/http"
)

func (r *Router) handleListSettings(w http.ResponseWriter, req *http.Request) {
	all, err := r.settings.All(req.Context())
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	if all == nil {
		all = map[string]string{}
	}
	writeJSON(w, http.StatusOK, all)
}

func (r *Router) handleGetSetting(w http.ResponseWriter, req *http.Request) {
	key := req.PathValue("key")
	value, ok, err := r.settings.Get(req.Context(), key)
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, codeNotFound, "setting not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": value})
}

func (r *Router) handleSetSetting(w http.ResponseWriter, req *http.Request) {
	key := req.PathValue("key")
	var body struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid request body")
		return
	}
	if err := r.settings.Set(req.Context(), key, body.Value); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": key, "value": body.Value})
}

func (r *Router) handleDeleteSetting(w http.ResponseWriter, req *http.Request) {
	if err := r.settings.Delete(req.Context(), req.PathValue("key")); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
