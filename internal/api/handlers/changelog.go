package handlers

import (
	"net/http"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// ListChangeLog returns change-log entries newest first, for ?region= only
// when given and at most ?limit= of them.
func ListChangeLog(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		region := r.URL.Query().Get("region")
		if region != "" {
			var err error
			if region, err = holiday.NormalizeRegion(region); err != nil {
				writeEngineError(w, err, "list change log")
				return
			}
		}
		limit, err := queryInt(r, "limit", 0)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be a non-negative integer")
			return
		}

		entries, err := engine.Entries(r.Context(), region)
		if err != nil {
			writeEngineError(w, err, "list change log")
			return
		}
		if limit > 0 && len(entries) > limit {
			entries = entries[:limit]
		}
		if entries == nil {
			entries = []models.ChangeLogEntry{}
		}
		writeJSON(w, http.StatusOK, entries)
	}
}
