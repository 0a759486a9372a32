package ingestion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/logging"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/audit"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/zonestore"
)

var t0 = time.Date(2025, 9, 22, 6, 0, 0, 0, time.UTC)

type recorder struct {
	id   string
	mu   sync.Mutex
	msgs []map[string]any
}

func (r *recorder) ID() string { return r.id }

func (r *recorder) Send(_ context.Context, b []byte) error {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return err
	}
	r.mu.Lock()
	r.msgs = append(r.msgs, m)
	r.mu.Unlock()
	return nil
}

func (r *recorder) Close() error { return nil }

func (r *recorder) messages() []map[string]any {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]map[string]any(nil), r.msgs...)
}

type harness struct {
	zones    *zonestore.Store
	log      *audit.Log
	registry *realtime.Registry
	subs     []*recorder
	pipeline *Pipeline
}

func newHarness(t *testing.T, subscribers int, opts ...Option) *harness {
	t.Helper()
	h := &harness{
		zones:    zonestore.New(zonestore.DefaultZones(), logging.Discard()),
		log:      audit.New(audit.DefaultCapacity, audit.WithLogger(logging.Discard())),
		registry: realtime.NewRegistry(realtime.WithLogger(logging.Discard())),
	}
	for i := 0; i < subscribers; i++ {
		r := &recorder{id: fmt.Sprintf("sub-%d", i)}
		h.subs = append(h.subs, r)
		h.registry.Register(r)
	}
	base := []Option{
		WithRandom(fixed(0.5)),
		WithClock(func() time.Time { return t0 }),
		WithLogger(logging.Discard()),
	}
	h.pipeline = New(h.zones, h.log, h.registry, append(base, opts...)...)
	return h
}

func TestSubmitEndToEnd(t *testing.T) {
	h := newHarness(t, 3)
	h.zones.ApplyReading("fieldB", entities.SoilMoisture, 30)
	before := h.log.TotalCount()

	res, err := h.pipeline.Submit(context.Background(),
		[]byte(`{"sensor_id":"SM002","type":"soil_moisture","zone":"fieldB","value":22}`))
	require.NoError(t, err)

	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, StageDone, res.Stage)
	assert.Equal(t, 1, res.ZonesUpdated)
	assert.Equal(t, PredictionAvailable, res.PredictionStatus)
	require.NotNil(t, res.Prediction)
	assert.Equal(t, messages.SoilMoistureForecast, res.Prediction.Type)
	assert.ElementsMatch(t, []string{"unit", "timestamp"}, res.DefaultedFields)

	z, _ := h.zones.Zone("fieldB")
	assert.Equal(t, 22.0, z.SoilMoisture)

	require.NotNil(t, res.AuditBlock)
	assert.Equal(t, before+1, res.AuditBlock.BlockID)
	assert.Equal(t, before+1, h.log.TotalCount())

	assert.Equal(t, 3, res.Broadcast.Delivered)
	for _, s := range h.subs {
		msgs := s.messages()
		require.Len(t, msgs, 1)
		assert.Equal(t, messages.TypeSensorUpdate, msgs[0]["type"])
		data := msgs[0]["data"].(map[string]any)
		assert.Equal(t, "SM002", data["sensor_id"])
		assert.Equal(t, "available", msgs[0]["prediction_status"])
	}

	recent := h.pipeline.Recent(10)
	require.Len(t, recent, 1)
	assert.Equal(t, "SM002", recent[0].SensorID)
}

func TestSubmitFiftyOneReadings(t *testing.T) {
	h := newHarness(t, 0)
	for i := 0; i < 51; i++ {
		_, err := h.pipeline.SubmitReading(context.Background(), messages.SensorReading{
			SensorID: "SM001", Type: entities.SoilMoisture, ZoneID: "fieldA", Value: float64(20 + i%30),
		})
		require.NoError(t, err)
	}
	blocks := h.log.RecentBlocks(50)
	require.Len(t, blocks, 50)
	assert.Equal(t, uint64(2), blocks[0].BlockID)
	assert.Equal(t, uint64(51), h.log.TotalCount())
	assert.True(t, h.log.Verify())
}

func TestSubmitUnsupportedTypeStillCompletes(t *testing.T) {
	h := newHarness(t, 1)
	res, err := h.pipeline.SubmitReading(context.Background(), messages.SensorReading{
		SensorID: "HU001", Type: entities.Humidity, ZoneID: entities.WeatherZone, Value: 65,
	})
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, 0, res.ZonesUpdated)
	assert.Equal(t, PredictionUnsupported, res.PredictionStatus)
	assert.Nil(t, res.Prediction)

	msgs := h.subs[0].messages()
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0], "predictions")
	assert.Equal(t, "unsupported", msgs[0]["prediction_status"])
}

func TestSubmitWeatherFansOut(t *testing.T) {
	h := newHarness(t, 0)
	res, err := h.pipeline.SubmitReading(context.Background(), messages.SensorReading{
		SensorID: "TH001", Type: entities.Temperature, ZoneID: entities.WeatherZone, Value: 33,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, res.ZonesUpdated)
	for _, z := range h.zones.Snapshot() {
		assert.Equal(t, 33.0, z.Temperature)
	}
}

func TestSubmitMalformedPayload(t *testing.T) {
	h := newHarness(t, 1)
	for _, payload := range []string{`not json`, `[1,2]`, `null`} {
		res, err := h.pipeline.Submit(context.Background(), []byte(payload))
		assert.ErrorIs(t, err, messages.ErrMalformedPayload, payload)
		assert.Equal(t, StatusFailed, res.Status)
		assert.Equal(t, StageReceived, res.Stage)
	}
	assert.Equal(t, uint64(0), h.log.TotalCount())
	assert.Empty(t, h.subs[0].messages())
}

func TestSubmitEmptyObjectDefaultsEverything(t *testing.T) {
	h := newHarness(t, 0)
	res, err := h.pipeline.Submit(context.Background(), []byte(`{}`))
	require.NoError(t, err)
	assert.Equal(t, StatusDone, res.Status)
	assert.Equal(t, 0, res.ZonesUpdated)
	assert.Equal(t, PredictionUnsupported, res.PredictionStatus)
	assert.Contains(t, res.DefaultedFields, "zone")
	assert.Contains(t, res.DefaultedFields, "value")
}

func TestSubmitMissingValueLeavesZoneUntouched(t *testing.T) {
	h := newHarness(t, 1)
	before, _ := h.zones.Zone("fieldA")

	for _, payload := range []string{
		`{"sensor_id":"SM001","type":"soil_moisture","zone":"fieldA"}`,
		`{"sensor_id":"SM001","type":"soil_moisture","zone":"fieldA","value":"dry"}`,
		`{"sensor_id":"TH001","type":"temperature","zone":"weather","value":null}`,
	} {
		res, err := h.pipeline.Submit(context.Background(), []byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, StatusDone, res.Status, payload)
		assert.Contains(t, res.DefaultedFields, "value", payload)
		assert.Equal(t, 0, res.ZonesUpdated, payload)
		require.NotNil(t, res.AuditBlock, payload)
	}

	after, _ := h.zones.Zone("fieldA")
	assert.Equal(t, before, after)
	assert.Equal(t, uint64(3), h.log.TotalCount())
	assert.Len(t, h.subs[0].messages(), 3)
}

type failingAudit struct{ AuditLog }

func (failingAudit) Append(messages.ProcessedReading) (messages.AuditBlock, error) {
	return messages.AuditBlock{}, errors.New("disk on fire")
}

func TestAuditFailureKeepsEarlierEffects(t *testing.T) {
	h := newHarness(t, 1)
	p := New(h.zones, failingAudit{}, h.registry,
		WithRandom(fixed(0.5)), WithLogger(logging.Discard()))

	res, err := p.SubmitReading(context.Background(), messages.SensorReading{
		SensorID: "SM001", Type: entities.SoilMoisture, ZoneID: "fieldA", Value: 18,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStageFailed)
	var se *StageError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageAudited, se.Stage)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, StageAudited, res.Stage)
	assert.Greater(t, res.ConfidenceScore, 0.0)
	assert.Equal(t, PredictionAvailable, res.PredictionStatus)
	assert.Nil(t, res.AuditBlock)
	assert.Contains(t, res.Error, "disk on fire")

	z, _ := h.zones.Zone("fieldA")
	assert.Equal(t, 18.0, z.SoilMoisture, "zone update is not rolled back")
	assert.Empty(t, h.subs[0].messages())
}

type panickingBroadcaster struct{}

func (panickingBroadcaster) Broadcast(context.Context, any) (realtime.BroadcastResult, error) {
	panic("boom")
}

func TestBroadcastPanicIsStageFailure(t *testing.T) {
	h := newHarness(t, 0)
	p := New(h.zones, h.log, panickingBroadcaster{}, WithRandom(fixed(0.5)), WithLogger(logging.Discard()))

	res, err := p.SubmitReading(context.Background(), messages.SensorReading{
		SensorID: "SM003", Type: entities.SoilMoisture, ZoneID: "fieldC", Value: 40,
	})
	require.ErrorIs(t, err, ErrStageFailed)
	assert.Equal(t, StageBroadcast, res.Stage)
	require.NotNil(t, res.AuditBlock)
	assert.Equal(t, uint64(1), h.log.TotalCount())
}

func TestPredictionFailureIsDistinctFromUnsupported(t *testing.T) {
	h := newHarness(t, 0)
	calls := 0
	rnd := RandomFunc(func() float64 {
		calls++
		if calls > 1 {
			panic("entropy exhausted")
		}
		return 0.5
	})
	p := New(h.zones, h.log, h.registry, WithRandom(rnd), WithLogger(logging.Discard()))

	res, err := p.SubmitReading(context.Background(), messages.SensorReading{
		SensorID: "SM001", Type: entities.SoilMoisture, ZoneID: "fieldA", Value: 40,
	})
	require.ErrorIs(t, err, ErrStageFailed)
	assert.Equal(t, StagePredicted, res.Stage)
	assert.Equal(t, PredictionFailed, res.PredictionStatus)
	assert.Nil(t, res.Prediction)
	assert.Equal(t, 1, res.ZonesUpdated)
	assert.Equal(t, uint64(0), h.log.TotalCount())
}

func TestConcurrentSubmissions(t *testing.T) {
	h := newHarness(t, 2, WithRandom(DefaultRandom))
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			zone := []string{"fieldA", "fieldB", "fieldC", entities.WeatherZone}[i%4]
			_, err := h.pipeline.SubmitReading(context.Background(), messages.SensorReading{
				SensorID: fmt.Sprintf("S%02d", i), Type: entities.Temperature, ZoneID: zone, Value: 25,
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, uint64(40), h.log.TotalCount())
	assert.True(t, h.log.Verify())
	for _, s := range h.subs {
		assert.Len(t, s.messages(), 40)
	}
	assert.Equal(t, 40, h.pipeline.HistoryLen())
}

func TestHistoryKeepsNewest(t *testing.T) {
	h := newHarness(t, 0, WithHistorySize(3))
	for i := 0; i < 5; i++ {
		_, err := h.pipeline.SubmitReading(context.Background(), messages.SensorReading{
			SensorID: fmt.Sprintf("S%d", i), Type: entities.PH, ZoneID: "fieldA", Value: 7,
		})
		require.NoError(t, err)
	}
	recent := h.pipeline.Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, "S2", recent[0].SensorID)
	assert.Equal(t, "S4", recent[2].SensorID)
	assert.Equal(t, "S4", h.pipeline.Recent(1)[0].SensorID)
}
