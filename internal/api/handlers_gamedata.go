package api

import (
	"net/http"

	"github.com/voxhall/armory/internal/gamedata"
)

func (r *Router) handleListWeapons(w http.ResponseWriter, req *http.Request) {
	var weapons []gamedata.WeaponRecord
	if dirID := req.URL.Query().Get("directory"); dirID != "" {
		if _, ok := r.registry.Get(dirID); !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "directory not found")
			return
		}
		weapons = r.cache.WeaponsByDirectory(dirID)
	} else {
		weapons = r.cache.Weapons()
	}
	if weapons == nil {
		weapons = []gamedata.WeaponRecord{}
	}
	writeJSON(w, http.StatusOK, weapons)
}

func (r *Router) handleListItems(w http.ResponseWriter, req *http.Request) {
	var items []gamedata.ItemRecord
	if dirID := req.URL.Query().Get("directory"); dirID != "" {
		if _, ok := r.registry.Get(dirID); !ok {
			writeError(w, http.StatusNotFound, codeNotFound, "directory not found")
			return
		}
		items = r.cache.ItemsByDirectory(dirID)
	} else {
		items = r.cache.Items()
	}
	if items == nil {
		items = []gamedata.ItemRecord{}
	}
	writeJSON(w, http.StatusOK, items)
}

// handleStats reports aggregate counts. Counts include inactive directories
// so users see what their full configuration holds.
func (r *Router) handleStats(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{
		"directories":  len(r.registry.List()),
		"weapon_count": r.registry.TotalWeaponCount(),
		"item_count":   r.registry.TotalItemCount(),
	})
}
