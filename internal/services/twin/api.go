package twin

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
)

const maxBodyBytes = 1 << 20

// NewHTTPMux wires every twin route. gatherer may be nil to skip /metrics.
func NewHTTPMux(app *App, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", app.handleRoot)
	mux.HandleFunc("POST /api/sensor-data", app.handleSensorData)
	mux.HandleFunc("GET /api/farm-state", app.handleFarmState)
	mux.HandleFunc("GET /api/readings/recent", app.handleRecentReadings)
	mux.HandleFunc("GET /api/blockchain/history", app.handleAuditHistory)
	mux.HandleFunc("POST /api/control/irrigation", app.handleControl)
	mux.HandleFunc("GET /api/predictions/{zoneID}", app.handleZonePredictions)
	mux.HandleFunc("GET /api/zones/{zoneID}", app.handleZone)
	mux.HandleFunc("GET /ws/farm-data", app.handleWebSocket)

	mux.Handle("GET /healthz", NewHealthHandler(app.MQTT, app.Archive))
	mux.Handle("GET /readyz", NewReadyHandler(app.MQTT, app.Archive, 30*time.Second))
	if gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	return withCORS(app.AllowOrigins, mux)
}

func (a *App) handleRoot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message":   "Smart Farm Digital Twin API",
		"status":    "online",
		"zones":     a.Zones.Len(),
		"timestamp": a.now(),
	})
}

// POST /api/sensor-data
func (a *App) handleSensorData(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err)
		return
	}
	res, err := a.Pipeline.Submit(r.Context(), body)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, messages.ErrMalformedPayload):
		writeJSON(w, http.StatusBadRequest, res)
	default:
		// late failures still report what was applied
		writeJSON(w, http.StatusInternalServerError, res)
	}
}

type farmState struct {
	Zones          []entities.Zone             `json:"zones"`
	Sensors        []entities.Sensor           `json:"sensors"`
	RecentReadings []messages.ProcessedReading `json:"recent_readings"`
	Subscribers    int                         `json:"subscribers"`
	SystemStatus   string                      `json:"system_status"`
	LastUpdated    time.Time                   `json:"last_updated"`
}

// GET /api/farm-state
func (a *App) handleFarmState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, farmState{
		Zones:          a.Zones.Snapshot(),
		Sensors:        slices.Clone(a.Sensors),
		RecentReadings: a.Pipeline.Recent(recentReadings),
		Subscribers:    a.Registry.Len(),
		SystemStatus:   "online",
		LastUpdated:    a.now(),
	})
}

// GET /api/readings/recent
func (a *App) handleRecentReadings(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"readings": a.Pipeline.Recent(recentReadings),
		"held":     a.Pipeline.HistoryLen(),
	})
}

type auditHistory struct {
	TotalBlocks  uint64                `json:"total_blocks"`
	Retained     int                   `json:"retained_blocks"`
	RecentBlocks []messages.AuditBlock `json:"recent_blocks"`
	Verified     bool                  `json:"verified"`
}

// GET /api/blockchain/history
func (a *App) handleAuditHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, auditHistory{
		TotalBlocks:  a.Audit.TotalCount(),
		Retained:     len(a.Audit.Retained()),
		RecentBlocks: a.Audit.RecentBlocks(recentBlocks),
		Verified:     a.Audit.Verify(),
	})
}

// POST /api/control/irrigation
func (a *App) handleControl(w http.ResponseWriter, r *http.Request) {
	var cmd messages.ControlCommand
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	res, err := a.Pipeline.ExecuteControl(r.Context(), cmd)
	if err != nil {
		writeError(w, controlStatus(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":           true,
		"message":           res.Message,
		"blockchain_logged": true,
		"result":            res,
	})
}

func controlStatus(err error) int {
	switch {
	case errors.Is(err, ingestion.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, ingestion.ErrInvalidCommand):
		return http.StatusBadRequest
	case errors.Is(err, ingestion.ErrDuplicateCommand):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// GET /api/predictions/{zoneID}
func (a *App) handleZonePredictions(w http.ResponseWriter, r *http.Request) {
	z, ok := a.Zones.Zone(r.PathValue("zoneID"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("zone not found"))
		return
	}
	writeJSON(w, http.StatusOK, a.Pipeline.Predictor().ForecastZone(z))
}

// GET /api/zones/{zoneID}
func (a *App) handleZone(w http.ResponseWriter, r *http.Request) {
	z, ok := a.Zones.Zone(r.PathValue("zoneID"))
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("zone not found"))
		return
	}
	writeJSON(w, http.StatusOK, z)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// withCORS answers browser preflights for the configured dashboard origins.
func withCORS(origins []string, next http.Handler) http.Handler {
	if len(origins) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (slices.Contains(origins, "*") || slices.Contains(origins, origin)) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			h.Set("Access-Control-Allow-Headers", "Content-Type")
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
