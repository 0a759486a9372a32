// Package archive exports processed readings to InfluxDB. The export is
// write-only: the twin never reads it back.
package archive

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/sony/gobreaker"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

// PointWriter is the subset of api.WriteAPIBlocking the writer needs.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

type Config struct {
	QueueSize     int
	BatchSize     int
	FlushInterval time.Duration
	WriteTimeout  time.Duration

	// breaker: open after BreakerFails consecutive failed batches, stay open BreakerOpen
	BreakerFails int
	BreakerOpen  time.Duration
}

func DefaultConfig() Config {
	return Config{
		QueueSize:     1024,
		BatchSize:     10,
		FlushInterval: 200 * time.Millisecond,
		WriteTimeout:  5 * time.Second,
		BreakerFails:  3,
		BreakerOpen:   10 * time.Second,
	}
}

// Writer batches readings onto a PointWriter from a background goroutine and
// tracks the last write error for the health endpoints.
type Writer struct {
	api     PointWriter
	cfg     Config
	queue   chan *write.Point
	cb      *gobreaker.CircuitBreaker
	logger  *slog.Logger
	metrics *Metrics

	mu      sync.RWMutex
	lastErr time.Time

	written atomic.Int64
	dropped atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(api PointWriter, cfg Config, logger *slog.Logger, metrics *Metrics) *Writer {
	def := DefaultConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = def.FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.BreakerFails <= 0 {
		cfg.BreakerFails = def.BreakerFails
	}
	if cfg.BreakerOpen <= 0 {
		cfg.BreakerOpen = def.BreakerOpen
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &Writer{
		api:     api,
		cfg:     cfg,
		queue:   make(chan *write.Point, cfg.QueueSize),
		logger:  logger.With("component", "archive"),
		metrics: metrics,
		lastErr: time.Now().Add(-24 * time.Hour), // "long ago"
		done:    make(chan struct{}),
	}
	w.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "influx-archive",
		Timeout: cfg.BreakerOpen,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= uint32(cfg.BreakerFails)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			w.logger.Warn("archive: breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return w
}

// Start runs the flush loop until ctx ends or Close is called.
func (w *Writer) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
}

// Archive queues r for export. It never blocks; when the queue is full the
// reading is dropped and counted.
func (w *Writer) Archive(r messages.ProcessedReading) {
	if w == nil {
		return
	}
	select {
	case <-w.done:
		w.drop()
		return
	default:
	}
	select {
	case w.queue <- ReadingToPoint(r):
	default:
		w.drop()
	}
}

// Close stops the loop after flushing what is already queued.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.done) })
	w.wg.Wait()
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	batch := make([]*write.Point, 0, w.cfg.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		w.write(batch)
		batch = batch[:0]
	}

	for {
		select {
		case p := <-w.queue:
			batch = append(batch, p)
			if len(batch) >= w.cfg.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-ctx.Done():
			w.drain(&batch)
			flush()
			return
		case <-w.done:
			w.drain(&batch)
			flush()
			return
		}
	}
}

func (w *Writer) drain(batch *[]*write.Point) {
	for {
		select {
		case p := <-w.queue:
			*batch = append(*batch, p)
		default:
			return
		}
	}
}

func (w *Writer) write(points []*write.Point) {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()

	_, err := w.cb.Execute(func() (interface{}, error) {
		return nil, w.api.WritePoint(ctx, points...)
	})
	if err != nil {
		w.mu.Lock()
		w.lastErr = time.Now()
		w.mu.Unlock()
		w.metrics.recordWrite(len(points), err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			w.logger.Debug("archive: breaker open, batch skipped", "points", len(points))
			return
		}
		w.logger.Error("archive: influx write error", "points", len(points), "err", err)
		return
	}
	w.written.Add(int64(len(points)))
	w.metrics.recordWrite(len(points), nil)
}

func (w *Writer) drop() {
	w.dropped.Add(1)
	w.metrics.recordDrop()
}

// LastErrorAge is how long ago the last write failed.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// BreakerState is "closed", "half-open" or "open".
func (w *Writer) BreakerState() string {
	if w == nil {
		return "disabled"
	}
	return w.cb.State().String()
}

func (w *Writer) Written() int64 { return w.written.Load() }

func (w *Writer) Dropped() int64 { return w.dropped.Load() }
