// Package ingestion turns raw sensor readings into twin state: it scores each
// reading, applies it to the zones, forecasts, audits and broadcasts it.
package ingestion

import (
	"context"
	"log/slog"
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/dedup"
)

// Stage is a step of the per-reading state machine.
type Stage string

const (
	StageReceived    Stage = "received"
	StageScored      Stage = "scored"
	StageZoneApplied Stage = "zone_applied"
	StagePredicted   Stage = "predicted"
	StageAudited     Stage = "audited"
	StageBroadcast   Stage = "broadcast"
	StageDone        Stage = "done"
)

type Status string

const (
	StatusDone   Status = "done"
	StatusFailed Status = "failed"
)

// PredictionStatus separates "no model for this type" from "forecasting broke".
type PredictionStatus string

const (
	PredictionAvailable   PredictionStatus = "available"
	PredictionUnsupported PredictionStatus = "unsupported"
	PredictionFailed      PredictionStatus = "failed"
	PredictionSkipped     PredictionStatus = "skipped" // stage never reached
)

// ProcessingResult describes what happened to one reading. On failure Stage
// names the stage that failed and everything before it is still filled in.
type ProcessingResult struct {
	Status           Status                    `json:"status"`
	Stage            Stage                     `json:"stage"`
	Reading          messages.ProcessedReading `json:"data"`
	ConfidenceScore  float64                   `json:"confidence_score"`
	ZonesUpdated     int                       `json:"zones_updated"`
	Prediction       *messages.Prediction      `json:"predictions,omitempty"`
	PredictionStatus PredictionStatus          `json:"prediction_status"`
	AuditBlock       *messages.AuditBlock      `json:"audit_block,omitempty"`
	Broadcast        realtime.BroadcastResult  `json:"broadcast"`
	DefaultedFields  []string                  `json:"defaulted_fields,omitempty"`
	Error            string                    `json:"error,omitempty"`
}

type ZoneStore interface {
	ApplyReading(zoneID string, t entities.ReadingType, value float64) int
	Zone(id string) (entities.Zone, bool)
	SetIrrigation(id string, active bool, at time.Time) (entities.Zone, bool)
}

type AuditLog interface {
	Append(r messages.ProcessedReading) (messages.AuditBlock, error)
	AppendControl(rec messages.ControlRecord) (messages.AuditBlock, error)
}

type Broadcaster interface {
	Broadcast(ctx context.Context, msg any) (realtime.BroadcastResult, error)
}

// Archiver receives every audited reading. Archive must not block.
type Archiver interface {
	Archive(r messages.ProcessedReading)
}

// DeviceNotifier forwards irrigation state changes to the field devices.
type DeviceNotifier interface {
	NotifyStateChange(ctx context.Context, ev messages.StateChangeEvent) error
}

type Option func(*Pipeline)

func WithRandom(r Random) Option { return func(p *Pipeline) { p.rnd = r } }

func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

func WithLogger(l *slog.Logger) Option { return func(p *Pipeline) { p.logger = l } }

func WithMetrics(m *Metrics) Option { return func(p *Pipeline) { p.metrics = m } }

func WithArchiver(a Archiver) Option { return func(p *Pipeline) { p.archiver = a } }

func WithDeviceNotifier(d DeviceNotifier) Option { return func(p *Pipeline) { p.devices = d } }

func WithHistorySize(n int) Option { return func(p *Pipeline) { p.historySize = n } }

// WithCommandDeduper replaces the request-id window used by ExecuteControl.
func WithCommandDeduper(d *dedup.Deduper) Option { return func(p *Pipeline) { p.commands = d } }

type Pipeline struct {
	zones       ZoneStore
	audit       AuditLog
	broadcaster Broadcaster
	archiver    Archiver
	devices     DeviceNotifier

	rnd         Random
	scorer      *Scorer
	predictor   *Predictor
	history     *history
	historySize int
	commands    *dedup.Deduper

	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

func New(zones ZoneStore, audit AuditLog, broadcaster Broadcaster, opts ...Option) *Pipeline {
	p := &Pipeline{
		zones:       zones,
		audit:       audit,
		broadcaster: broadcaster,
		rnd:         DefaultRandom,
		now:         time.Now,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	p.scorer = NewScorer(p.rnd)
	p.predictor = NewPredictor(p.rnd)
	p.history = newHistory(p.historySize)
	if p.commands == nil {
		p.commands = dedup.New(10*time.Minute, 10000, dedup.WithClock(p.now))
	}
	p.logger = p.logger.With("component", "ingestion")
	return p
}

func (p *Pipeline) Predictor() *Predictor { return p.predictor }

// Recent returns up to n of the latest scored readings, oldest first.
func (p *Pipeline) Recent(n int) []messages.ProcessedReading { return p.history.recent(n) }

// HistoryLen is the number of readings currently held in the history.
func (p *Pipeline) HistoryLen() int { return p.history.len() }

// Submit decodes an untrusted payload and processes it. A payload that is not
// a JSON object fails with messages.ErrMalformedPayload before any stage runs.
func (p *Pipeline) Submit(ctx context.Context, payload []byte) (ProcessingResult, error) {
	d, err := messages.DecodeReading(payload, p.now().UTC())
	if err != nil {
		res := ProcessingResult{
			Status:           StatusFailed,
			Stage:            StageReceived,
			PredictionStatus: PredictionSkipped,
			Error:            err.Error(),
		}
		p.metrics.recordResult(res, 0)
		p.logger.Warn("ingestion: rejected payload", "err", err)
		return res, err
	}
	return p.SubmitDecoded(ctx, d)
}

// SubmitDecoded processes a decoded reading and reports the defaulted fields.
func (p *Pipeline) SubmitDecoded(ctx context.Context, d messages.Decoded) (ProcessingResult, error) {
	if len(d.Defaulted) > 0 {
		p.metrics.recordDefaulted(d.Defaulted)
		p.logger.Debug("ingestion: defaulted fields", "sensor", d.Reading.SensorID, "fields", d.Defaulted)
	}
	// a defaulted value is a placeholder, not a measurement of the zone
	res, err := p.submit(ctx, d.Reading, !d.WasDefaulted("value"))
	res.DefaultedFields = d.Defaulted
	return res, err
}

// SubmitReading runs r through every stage in order. A failing stage stops
// the reading; effects of earlier stages are kept.
func (p *Pipeline) SubmitReading(ctx context.Context, r messages.SensorReading) (ProcessingResult, error) {
	return p.submit(ctx, r, true)
}

func (p *Pipeline) submit(ctx context.Context, r messages.SensorReading, applyZone bool) (ProcessingResult, error) {
	start := time.Now()
	res := ProcessingResult{
		Stage:            StageReceived,
		PredictionStatus: PredictionSkipped,
	}
	err := p.process(ctx, r, applyZone, &res)
	if err != nil {
		res.Status = StatusFailed
		res.Error = err.Error()
		p.logger.Error("ingestion: reading failed", "stage", res.Stage, "sensor", r.SensorID, "zone", r.ZoneID, "err", err)
	} else {
		res.Status = StatusDone
		res.Stage = StageDone
	}
	p.metrics.recordResult(res, time.Since(start))
	return res, err
}

func (p *Pipeline) process(ctx context.Context, r messages.SensorReading, applyZone bool, res *ProcessingResult) error {
	var processed messages.ProcessedReading

	if err := p.stage(res, StageScored, func() error {
		score := p.scorer.Score(r)
		processed = messages.ProcessedReading{
			SensorReading:   r,
			ConfidenceScore: score,
			ProcessedAt:     p.now().UTC(),
			QualityLevel:    messages.QualityFor(score),
		}
		res.Reading = processed
		res.ConfidenceScore = score
		p.history.add(processed)
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(res, StageZoneApplied, func() error {
		if !applyZone {
			p.logger.Debug("ingestion: no value, zone left untouched", "sensor", r.SensorID, "zone", r.ZoneID)
			return nil
		}
		n := p.zones.ApplyReading(r.ZoneID, r.Type, r.Value)
		res.ZonesUpdated = n
		p.metrics.recordZones(n)
		if n == 0 {
			p.logger.Debug("ingestion: reading matched no zone field", "zone", r.ZoneID, "type", r.Type)
		}
		return nil
	}); err != nil {
		return err
	}

	if err := p.stage(res, StagePredicted, func() error {
		if !p.predictor.Supports(r.Type) {
			res.PredictionStatus = PredictionUnsupported
			return nil
		}
		pred := p.predictor.Predict(r.Type, r.Value)
		res.Prediction = &pred
		res.PredictionStatus = PredictionAvailable
		return nil
	}); err != nil {
		res.PredictionStatus = PredictionFailed
		return err
	}

	var block messages.AuditBlock
	if err := p.stage(res, StageAudited, func() error {
		var err error
		block, err = p.audit.Append(processed)
		if err != nil {
			return err
		}
		res.AuditBlock = &block
		return nil
	}); err != nil {
		return err
	}
	if p.archiver != nil {
		p.archiver.Archive(processed)
	}

	return p.stage(res, StageBroadcast, func() error {
		br, err := p.broadcaster.Broadcast(ctx, messages.SensorUpdate{
			Type:             messages.TypeSensorUpdate,
			Data:             processed,
			Predictions:      res.Prediction,
			PredictionStatus: string(res.PredictionStatus),
			BlockID:          block.BlockID,
			Timestamp:        p.now().UTC(),
		})
		res.Broadcast = br
		return err
	})
}

// stage runs fn as stage s, turning errors and panics into a *StageError.
func (p *Pipeline) stage(res *ProcessingResult, s Stage, fn func() error) (err error) {
	res.Stage = s
	defer func() {
		if v := recover(); v != nil {
			err = panicError{value: v}
		}
		if err != nil {
			err = &StageError{Stage: s, Err: err}
		}
	}()
	return fn()
}
