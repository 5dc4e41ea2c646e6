// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/holiday-engine/backend/internal/api/handlers"
	"github.com/holiday-engine/backend/internal/api/middleware"
	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage"
	"github.com/holiday-engine/backend/internal/websocket"
)

// Services are the dependencies the handlers are built from. Scheduler may
// be nil; StaticDir empty disables the frontend file server.
type Services struct {
	DB        *storage.DB
	Store     *storage.Store
	Engine    *holiday.Engine
	Hub       *websocket.Hub
	Scheduler *calendar.Scheduler
	Fetcher   *calendar.Fetcher
	Clock     handlers.Clock

	StaticDir      string
	MinimumRegions int
	Version        string
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(s Services) *mux.Router {
	if s.Fetcher == nil {
		s.Fetcher = calendar.NewFetcher(0)
	}

	notifier := websocket.NewBroadcaster(s.Hub)

	r := mux.NewRouter()
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", handlers.HealthCheck(s.DB, s.Engine)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.Engine, s.Hub, s.Scheduler, s.Version)).Methods("GET")
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Holidays
	api.HandleFunc("/holidays", handlers.ListHolidays(s.Engine)).Methods("GET")
	api.HandleFunc("/holidays/upcoming", handlers.UpcomingHolidays(s.Engine, s.Clock)).Methods("GET")
	api.HandleFunc("/holidays/export.ics", handlers.ExportICS(s.Engine, s.Clock)).Methods("GET")
	api.HandleFunc("/holidays/rebuild", handlers.RebuildHolidays(s.Engine)).Methods("POST")
	api.HandleFunc("/holidays/{date:[0-9]{4}-[0-9]{2}-[0-9]{2}}", handlers.HolidaysOn(s.Engine)).Methods("GET")

	// Rules
	api.HandleFunc("/rules", handlers.ListRules(s.Engine)).Methods("GET")
	api.HandleFunc("/rules", handlers.CreateRule(s.Engine)).Methods("POST")
	api.HandleFunc("/rules/{id}", handlers.GetRule(s.Engine)).Methods("GET")
	api.HandleFunc("/rules/{id}", handlers.UpdateRule(s.Engine)).Methods("PUT")
	api.HandleFunc("/rules/{id}", handlers.DeleteRule(s.Engine)).Methods("DELETE")
	api.HandleFunc("/rules/{id}/enable", handlers.SetRuleEnabled(s.Engine, true)).Methods("POST")
	api.HandleFunc("/rules/{id}/disable", handlers.SetRuleEnabled(s.Engine, false)).Methods("POST")
	api.HandleFunc("/rules/{id}/reset", handlers.ResetRule(s.Engine)).Methods("POST")
	api.HandleFunc("/rules/{id}/history", handlers.RuleHistory(s.Engine)).Methods("GET")

	// Regions and defaults
	api.HandleFunc("/regions", handlers.ListRegions(s.Engine, s.MinimumRegions)).Methods("GET")
	api.HandleFunc("/regions", handlers.AddRegion(s.Engine)).Methods("POST")
	api.HandleFunc("/regions/{code}", handlers.RemoveRegion(s.Engine, s.MinimumRegions)).Methods("DELETE")
	api.HandleFunc("/regions/{code}/defaults", handlers.LoadRegionDefaults(s.Engine, notifier)).Methods("POST")
	api.HandleFunc("/regions/{code}/import", handlers.ImportCalendar(s.Engine, s.Fetcher, notifier)).Methods("POST")
	api.HandleFunc("/defaults", handlers.ListDefaults()).Methods("GET")
	api.HandleFunc("/defaults/upgrade", handlers.UpgradeDefaults(s.Engine)).Methods("POST")

	api.HandleFunc("/changelog", handlers.ListChangeLog(s.Engine)).Methods("GET")

	api.HandleFunc("/settings", handlers.GetSettings(s.Store)).Methods("GET")
	api.HandleFunc("/settings", handlers.UpdateSettings(s.Store)).Methods("PUT")

	if s.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(s.StaticDir)))
	}

	return r
}
