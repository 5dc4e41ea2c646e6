package handlers

import (
	"net/http"
	"time"

	"github.com/holiday-engine/backend/internal/calendar"
	"github.com/holiday-engine/backend/internal/holiday"
	"github.com/holiday-engine/backend/internal/storage"
	"github.com/holiday-engine/backend/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status      string `json:"status"`
	DBConnected bool   `json:"db_connected"`
	CacheReady  bool   `json:"cache_ready"`
}

// HealthCheck reports degraded when the database is unreachable or no cache
// has been published yet.
func HealthCheck(db *storage.DB, engine *holiday.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:      "healthy",
			DBConnected: db.PingContext(r.Context()) == nil,
			CacheReady:  engine.Snapshot() != nil,
		}

		status := http.StatusOK
		if !resp.DBConnected || !resp.CacheReady {
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, resp)
	}
}

// StatusResponse represents the system status response.
type StatusResponse struct {
	Version          string     `json:"version"`
	FocusYear        int        `json:"focus_year"`
	CacheGeneration  uint64     `json:"cache_generation"`
	CachedDates      int        `json:"cached_dates"`
	Regions          []string   `json:"regions"`
	RulesCount       int        `json:"rules_count"`
	EnabledRules     int        `json:"enabled_rules"`
	WebSocketClients int        `json:"websocket_clients"`
	NextRolloverAt   *time.Time `json:"next_rollover_at,omitempty"`
	LastRolloverAt   *time.Time `json:"last_rollover_at,omitempty"`
}

// Status summarizes the engine, its cache and connected clients. scheduler
// may be nil.
func Status(engine *holiday.Engine, hub *websocket.Hub, scheduler *calendar.Scheduler, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Version:          version,
			FocusYear:        engine.FocusYear(),
			Regions:          engine.Regions(),
			WebSocketClients: hub.ClientCount(),
		}
		if snap := engine.Snapshot(); snap != nil {
			resp.CacheGeneration = snap.Generation
			resp.CachedDates = snap.Len()
		}
		for _, rule := range engine.Rules("") {
			resp.RulesCount++
			if rule.IsEnabled {
				resp.EnabledRules++
			}
		}
		if scheduler != nil {
			resp.NextRolloverAt = scheduler.NextRun()
			if last := scheduler.LastRun(); !last.IsZero() {
				resp.LastRolloverAt = &last
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
