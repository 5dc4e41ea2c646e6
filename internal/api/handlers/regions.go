package handlers

import (
	"errors"
	"fmt"
	"mime"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage/models"
)

// RegionsResponse describes the region selection and its bounds.
type RegionsResponse struct {
	Selected       []string `json:"selected"`
	WithDefaults   []string `json:"with_defaults"`
	MaxRegions     int      `json:"max_regions"`
	MinimumRegions int      `json:"minimum_regions"`
}

// RegionResult reports a selection change. OK false with status 409 is the
// expected outcome at the selection bounds, not a failure.
type RegionResult struct {
	OK      bool          `json:"ok"`
	Regions []string      `json:"regions"`
	Message string        `json:"message,omitempty"`
	Loaded  []models.Rule `json:"loaded,omitempty"`
}

// AddRegionRequest selects a region, optionally loading its shipped rules.
type AddRegionRequest struct {
	Code         string `json:"code" validate:"required,min=2,max=7"`
	LoadDefaults bool   `json:"load_defaults"`
}

// ListRegions returns the selected regions.
func ListRegions(engine *holiday.Engine, minimum int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, RegionsResponse{
			Selected:       engine.Regions(),
			WithDefaults:   holiday.DefaultRegions(),
			MaxRegions:     holiday.MaxRegions,
			MinimumRegions: minimum,
		})
	}
}

// AddRegion appends a region to the selection.
func AddRegion(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddRegionRequest
		if !decodeBody(w, r, &req) {
			return
		}
		ok, err := engine.AddRegion(r.Context(), req.Code)
		if err != nil {
			writeEngineError(w, err, "add region")
			return
		}
		if !ok {
			writeJSON(w, http.StatusConflict, RegionResult{
				Regions: engine.Regions(),
				Message: fmt.Sprintf("Region is already selected or the selection is full (%d regions)", holiday.MaxRegions),
			})
			return
		}

		res := RegionResult{OK: true}
		if req.LoadDefaults {
			code, _ := holiday.NormalizeRegion(req.Code)
			if holiday.HasDefaults(code) {
				if res.Loaded, err = engine.LoadDefaults(r.Context(), code); err != nil {
					writeEngineError(w, err, "load default rules")
					return
				}
			}
		}
		res.Regions = engine.Regions()
		writeJSON(w, http.StatusOK, res)
	}
}

// RemoveRegion drops /regions/{code} unless fewer than minimum would remain.
func RemoveRegion(engine *holiday.Engine, minimum int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ok, err := engine.RemoveRegion(r.Context(), mux.Vars(r)["code"], minimum)
		if err != nil {
			writeEngineError(w, err, "remove region")
			return
		}
		if !ok {
			writeJSON(w, http.StatusConflict, RegionResult{
				Regions: engine.Regions(),
				Message: fmt.Sprintf("Region is not selected or at least %d must remain", minimum),
			})
			return
		}
		writeJSON(w, http.StatusOK, RegionResult{OK: true, Regions: engine.Regions()})
	}
}

// Notifier pushes a user-facing notification to connected clients.
type Notifier interface {
	BroadcastNotification(level, title, message string)
}

// LoadRegionDefaults inserts the shipped rules of /regions/{code} that are
// not stored yet.
func LoadRegionDefaults(engine *holiday.Engine, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		inserted, err := engine.LoadDefaults(r.Context(), mux.Vars(r)["code"])
		if err != nil {
			writeEngineError(w, err, "load default rules")
			return
		}
		if inserted == nil {
			inserted = []models.Rule{}
		}
		if len(inserted) > 0 {
			notifier.BroadcastNotification("success", "Default rules loaded",
				fmt.Sprintf("%d default rules added for %s", len(inserted), inserted[0].Region))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"inserted": inserted,
			"count":    len(inserted),
		})
	}
}

// ImportRequest names an ICS feed to import.
type ImportRequest struct {
	URL  string          `json:"url" validate:"required,url"`
	Kind models.RuleKind `json:"kind" validate:"omitempty,oneof=public_holiday observance"`
}

// ImportCalendar turns the events of an ICS calendar into custom one-off
// rules of /regions/{code}. The calendar is either the request body
// (Content-Type text/calendar, ?kind= optional) or fetched from the URL in a
// JSON body.
func ImportCalendar(engine *holiday.Engine, fetcher *calendar.Fetcher, notifier Notifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		code := mux.Vars(r)["code"]

		var (
			events []calendar.ImportedEvent
			kind   models.RuleKind
			origin string
			err    error
		)
		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if mediaType == "text/calendar" {
			kind = models.RuleKind(r.URL.Query().Get("kind"))
			if kind != "" && kind != models.KindPublicHoliday && kind != models.KindObservance {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "kind must be public_holiday or observance")
				return
			}
			origin = "uploaded calendar"
			events, err = calendar.ParseFeed(r.Body)
			if errors.Is(err, calendar.ErrFeedTooLarge) {
				middleware.WriteError(w, http.StatusRequestEntityTooLarge, middleware.ErrBadRequest, err.Error())
				return
			}
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
				return
			}
		} else {
			var req ImportRequest
			if !decodeBody(w, r, &req) {
				return
			}
			kind, origin = req.Kind, req.URL
			events, err = fetcher.FetchICS(ctx, req.URL)
			if err != nil {
				middleware.WriteError(w, http.StatusBadGateway, middleware.ErrBadRequest, "Failed to fetch calendar: "+err.Error())
				return
			}
		}

		res, err := engine.ImportOneOffs(ctx, code, kind, events, origin)
		if err != nil {
			writeEngineError(w, err, "import calendar")
			return
		}
		if res.Created == nil {
			res.Created = []models.Rule{}
		}
		notifier.BroadcastNotification("success", "Calendar imported",
			fmt.Sprintf("%d rules created, %d already present, from %s", len(res.Created), res.Skipped, origin))
		writeJSON(w, http.StatusOK, res)
	}
}

// ListDefaults returns the shipped rules of every region that has them, or
// of ?region= only.
func ListDefaults() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		regions := holiday.DefaultRegions()
		if raw := r.URL.Query().Get("region"); raw != "" {
			code, err := holiday.NormalizeRegion(raw)
			if err != nil {
				writeEngineError(w, err, "list defaults")
				return
			}
			regions = []string{code}
		}

		out := make(map[string][]models.Rule, len(regions))
		for _, code := range regions {
			rules, err := holiday.DefaultRules(code)
			if err != nil {
				writeEngineError(w, err, "list defaults")
				return
			}
			out[code] = rules
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// UpgradeDefaults migrates stored defaults to newer shipped revisions.
func UpgradeDefaults(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := engine.UpgradeDefaults(r.Context())
		if err != nil {
			writeEngineError(w, err, "upgrade default rules")
			return
		}
		if entries == nil {
			entries = []models.ChangeLogEntry{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"migrated": entries})
	}
}
