package twin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/logging"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/audit"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/zonestore"
)

var testNow = time.Date(2025, 9, 23, 10, 0, 0, 0, time.UTC)

func newTestApp(t *testing.T, opts ...ingestion.Option) *App {
	t.Helper()
	logger := logging.Discard()
	farm := zonestore.DefaultFarm()
	zones := zonestore.New(farm.Zones, logger)
	log := audit.New(audit.DefaultCapacity, audit.WithLogger(logger))
	reg := realtime.NewRegistry(realtime.WithLogger(logger), realtime.WithSendTimeout(time.Second))
	t.Cleanup(reg.CloseAll)

	opts = append([]ingestion.Option{
		ingestion.WithLogger(logger),
		ingestion.WithRandom(ingestion.RandomFunc(func() float64 { return 0.5 })),
		ingestion.WithClock(func() time.Time { return testNow }),
	}, opts...)

	return &App{
		Zones:        zones,
		Audit:        log,
		Registry:     reg,
		Pipeline:     ingestion.New(zones, log, reg, opts...),
		Sensors:      farm.Sensors,
		Logger:       logger,
		Now:          func() time.Time { return testNow },
		AllowOrigins: []string{"http://localhost:3000"},
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestSensorData_UpdatesZoneAndAudit(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	rec := do(t, h, http.MethodPost, "/api/sensor-data", map[string]any{
		"sensor_id": "SM002", "type": "soil_moisture", "zone": "fieldB",
		"value": 22.0, "unit": "%", "timestamp": testNow.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[ingestion.ProcessingResult](t, rec)
	assert.Equal(t, ingestion.StatusDone, res.Status)
	assert.Equal(t, 1, res.ZonesUpdated)
	assert.Equal(t, ingestion.PredictionAvailable, res.PredictionStatus)
	require.NotNil(t, res.Prediction)
	assert.True(t, res.Prediction.IrrigationNeeded)
	require.NotNil(t, res.AuditBlock)
	assert.Equal(t, uint64(1), res.AuditBlock.BlockID)
	assert.GreaterOrEqual(t, res.ConfidenceScore, 0.1)
	assert.LessOrEqual(t, res.ConfidenceScore, 1.0)

	z := decode[map[string]any](t, do(t, h, http.MethodGet, "/api/zones/fieldB", nil))
	assert.Equal(t, 22.0, z["soil_moisture"])

	hist := decode[auditHistory](t, do(t, h, http.MethodGet, "/api/blockchain/history", nil))
	assert.Equal(t, uint64(1), hist.TotalBlocks)
	assert.True(t, hist.Verified)
	require.Len(t, hist.RecentBlocks, 1)
	assert.Equal(t, "SM002", hist.RecentBlocks[0].SensorID)
}

func TestSensorData_Malformed(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	rec := do(t, h, http.MethodPost, "/api/sensor-data", "not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, app.Audit.TotalCount())
}

func TestSensorData_DefaultsMissingFields(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	rec := do(t, h, http.MethodPost, "/api/sensor-data", map[string]any{"value": "31.5"})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[ingestion.ProcessingResult](t, rec)
	assert.Contains(t, res.DefaultedFields, "sensor_id")
	assert.Zero(t, res.ZonesUpdated)
	assert.Equal(t, uint64(1), app.Audit.TotalCount())
}

func TestFarmState(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	do(t, h, http.MethodPost, "/api/sensor-data", map[string]any{
		"sensor_id": "TH001", "type": "temperature", "zone": "weather", "value": 31.0,
	})

	st := decode[farmState](t, do(t, h, http.MethodGet, "/api/farm-state", nil))
	require.Len(t, st.Zones, 3)
	assert.Equal(t, []string{"fieldA", "fieldB", "fieldC"}, []string{st.Zones[0].ID, st.Zones[1].ID, st.Zones[2].ID})
	for _, z := range st.Zones {
		assert.Equal(t, 31.0, z.Temperature, z.ID)
	}
	assert.NotEmpty(t, st.Sensors)
	require.Len(t, st.RecentReadings, 1)
	assert.Equal(t, "online", st.SystemStatus)
	assert.Equal(t, testNow, st.LastUpdated)
}

func TestControl_HTTP(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	rec := do(t, h, http.MethodPost, "/api/control/irrigation", map[string]any{"zone_id": "fieldA", "action": "start"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decode[map[string]any](t, rec)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Irrigation started for fieldA", body["message"])

	z, _ := app.Zones.Zone("fieldA")
	assert.True(t, z.IrrigationActive)
	assert.Equal(t, uint64(1), app.Audit.TotalCount())

	tests := []struct {
		name string
		body map[string]any
		code int
	}{
		{"unknown zone", map[string]any{"zone_id": "fieldZ", "action": "start"}, http.StatusNotFound},
		{"bad action", map[string]any{"zone_id": "fieldA", "action": "flood"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, h, http.MethodPost, "/api/control/irrigation", tc.body)
			assert.Equal(t, tc.code, rec.Code)
		})
	}
	assert.Equal(t, uint64(1), app.Audit.TotalCount(), "rejected commands leave no audit block")
}

func TestControl_DuplicateRequestID(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	cmd := map[string]any{"zone_id": "fieldC", "action": "stop", "request_id": "r-1"}
	assert.Equal(t, http.StatusOK, do(t, h, http.MethodPost, "/api/control/irrigation", cmd).Code)
	assert.Equal(t, http.StatusConflict, do(t, h, http.MethodPost, "/api/control/irrigation", cmd).Code)
}

func TestZonePredictions(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	rec := do(t, h, http.MethodGet, "/api/predictions/fieldB", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	f := decode[messages.ZoneForecast](t, rec)
	assert.Equal(t, "fieldB", f.ZoneID)
	assert.True(t, f.Irrigation.Needed)
	assert.Equal(t, "medium", f.Irrigation.Priority)

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/predictions/nowhere", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/zones/nowhere", nil).Code)
}

func TestRootAndMethods(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	root := decode[map[string]any](t, do(t, h, http.MethodGet, "/", nil))
	assert.Equal(t, "online", root["status"])
	assert.Equal(t, 3.0, root["zones"])

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/api/sensor-data", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/unknown", nil).Code)
}

func TestCORS(t *testing.T) {
	app := newTestApp(t)
	h := NewHTTPMux(app, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/farm-state", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/farm-state", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	app := newTestApp(t, ingestion.WithMetrics(ingestion.NewMetrics(reg)))
	h := NewHTTPMux(app, reg)

	do(t, h, http.MethodPost, "/api/sensor-data", map[string]any{
		"sensor_id": "PH001", "type": "ph", "zone": "fieldA", "value": 6.9,
	})
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "farmtwin_")
}
