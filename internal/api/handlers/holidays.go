package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/log"
	"github.com/holiday-engine/backend/internal/storage/models"
)

const maxUpcoming = 100

// HolidaysResponse lists the cached occurrences of one year. Cached is false
// when the year lies outside the cached window, in which case the list is
// empty until the cache is rebuilt around it.
type HolidaysResponse struct {
	Year       int                  `json:"year"`
	FocusYear  int                  `json:"focus_year"`
	Generation uint64               `json:"generation"`
	Cached     bool                 `json:"cached"`
	Holidays   []holiday.Occurrence `json:"holidays"`
}

// ListHolidays returns the occurrences of ?year= (default the focus year),
// only red days with ?red=true.
func ListHolidays(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := engine.Snapshot()
		year, err := queryInt(r, "year", snapFocus(snap, engine))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		redOnly := false
		if raw := r.URL.Query().Get("red"); raw != "" {
			if redOnly, err = strconv.ParseBool(raw); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "red must be a boolean")
				return
			}
		}

		resp := HolidaysResponse{
			Year:      year,
			FocusYear: snapFocus(snap, engine),
			Cached:    snap.Covers(year),
			Holidays:  snap.InYear(year, redOnly),
		}
		if snap != nil {
			resp.Generation = snap.Generation
		}
		if resp.Holidays == nil {
			resp.Holidays = []holiday.Occurrence{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// UpcomingHolidays returns up to ?limit= occurrences on or after ?from=
// (default today).
func UpcomingHolidays(engine *holiday.Engine, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from := clock.Today()
		if raw := r.URL.Query().Get("from"); raw != "" {
			d, err := calendar.ParseDate(raw)
			if err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "from must be a YYYY-MM-DD date")
				return
			}
			from = d
		}
		limit, err := queryInt(r, "limit", 10)
		if err != nil || limit < 1 || limit > maxUpcoming {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest,
				fmt.Sprintf("limit must be between 1 and %d", maxUpcoming))
			return
		}

		occs := engine.Upcoming(from, limit)
		if occs == nil {
			occs = []holiday.Occurrence{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"from":     from,
			"holidays": occs,
		})
	}
}

// DayResponse describes one calendar day.
type DayResponse struct {
	Date     calendar.Date        `json:"date"`
	IsRedDay bool                 `json:"is_red_day"`
	Holidays []holiday.Occurrence `json:"holidays"`
}

// HolidaysOn returns the occurrences on /holidays/{date}.
func HolidaysOn(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := calendar.ParseDate(mux.Vars(r)["date"])
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "date must be a real YYYY-MM-DD date")
			return
		}

		resp := DayResponse{Date: d, Holidays: engine.On(d)}
		for _, occ := range resp.Holidays {
			if occ.IsRedDay {
				resp.IsRedDay = true
			}
		}
		if resp.Holidays == nil {
			resp.Holidays = []holiday.Occurrence{}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// RebuildRequest moves the cached window. Year 0 keeps the current focus.
type RebuildRequest struct {
	Year int `json:"year" validate:"omitempty,min=1583,max=9999"`
}

// RebuildResponse summarizes the snapshot in effect after a rebuild.
type RebuildResponse struct {
	Generation uint64   `json:"generation"`
	FocusYear  int      `json:"focus_year"`
	Regions    []string `json:"regions"`
	Dates      int      `json:"dates"`
}

// RebuildHolidays rebuilds the cache, optionally around a new focus year.
func RebuildHolidays(engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req RebuildRequest
		if !decodeBody(w, r, &req) {
			return
		}
		year := req.Year
		if year == 0 {
			year = engine.FocusYear()
		}

		snap, err := engine.Rebuild(r.Context(), year)
		if err != nil {
			writeEngineError(w, err, "rebuild holiday cache")
			return
		}
		writeJSON(w, http.StatusOK, RebuildResponse{
			Generation: snap.Generation,
			FocusYear:  snap.FocusYear,
			Regions:    snap.Regions,
			Dates:      snap.Len(),
		})
	}
}

// ExportICS renders the cached occurrences of ?year= as an ICS download.
func ExportICS(engine *holiday.Engine, clock Clock) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := engine.Snapshot()
		year, err := queryInt(r, "year", snapFocus(snap, engine))
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, err.Error())
			return
		}
		if !snap.Covers(year) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest,
				fmt.Sprintf("year %d is outside the cached window around %d", year, snapFocus(snap, engine)))
			return
		}

		occs := snap.InYear(year, false)
		events := make([]calendar.ExportEvent, 0, len(occs))
		for _, occ := range occs {
			events = append(events, exportEvent(occ))
		}

		var buf bytes.Buffer
		name := fmt.Sprintf("Holidays %d", year)
		if err := calendar.WriteICS(&buf, name, events, clock.now()); err != nil {
			log.Error("exporting calendar", err, "year", year)
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to export calendar")
			return
		}

		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="holidays-%d.ics"`, year))
		w.Write(buf.Bytes())
	}
}

func exportEvent(occ holiday.Occurrence) calendar.ExportEvent {
	ev := calendar.ExportEvent{
		UID:        occ.RuleID + "." + occ.Date.String(),
		Date:       occ.Date,
		Summary:    occ.DisplayTitle,
		Categories: []string{occ.Region, string(occ.Kind)},
	}
	if occ.IsObserved {
		ev.UID += ".observed"
		ev.Summary += " (observed)"
	}
	if occ.Kind == models.KindPublicHoliday {
		ev.Description = "Public holiday"
	}
	return ev
}

func snapFocus(snap *holiday.Snapshot, engine *holiday.Engine) int {
	if snap != nil {
		return snap.FocusYear
	}
	return engine.FocusYear()
}
