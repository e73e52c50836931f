package api

import (
	"errors"
	"io/fs"
	"net/http"

	"github.com/voxhall/armory/internal/backup"
)

func (r *Router) handleListBackups(w http.ResponseWriter, req *http.Request) {
	backups, err := r.backup.List()
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	if backups == nil {
		backups = []backup.Info{}
	}
	writeJSON(w, http.StatusOK, backups)
}

func (r *Router) handleCreateBackup(w http.ResponseWriter, req *http.Request) {
	info, err := r.backup.Backup(req.Context())
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (r *Router) handleDeleteBackup(w http.ResponseWriter, req *http.Request) {
	filename := req.PathValue("filename")
	if !backup.IsValidBackupFilename(filename) {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "invalid backup filename")
		return
	}
	if err := r.backup.Delete(filename); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, codeNotFound, "backup not found")
			return
		}
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (r *Router) handleMaintenanceStatus(w http.ResponseWriter, req *http.Request) {
	st, err := r.maintenance.Status(req.Context())
	if err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (r *Router) handleMaintenanceOptimize(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Optimize(req.Context()); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (r *Router) handleMaintenanceVacuum(w http.ResponseWriter, req *http.Request) {
	if err := r.maintenance.Vacuum(req.Context()); err != nil {
		r.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
