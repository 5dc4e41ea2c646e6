package handlers

import (
	"net/http"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage"
)

// SettingsRequest updates free-form client settings (locale, week start,
// colors). The region selection is managed through /regions.
type SettingsRequest struct {
	Values map[string]string `json:"values" validate:"required,min=1,dive,keys,min=1,max=64,endkeys,max=1024"`
}

// GetSettings returns all stored settings.
func GetSettings(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		settings, err := store.Settings().All(r.Context())
		if err != nil {
			log.Error("failed to load settings", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}

// UpdateSettings stores each key of the request.
func UpdateSettings(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		var req SettingsRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if _, reserved := req.Values[storage.RegionsSettingKey]; reserved {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Regions are changed through /api/regions")
			return
		}

		for key, value := range req.Values {
			if err := store.Settings().Set(ctx, key, value); err != nil {
				log.Error("failed to update setting", err, "key", key)
				middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update settings")
				return
			}
		}

		settings, err := store.Settings().All(ctx)
		if err != nil {
			log.Error("failed to load settings", err)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	}
}
