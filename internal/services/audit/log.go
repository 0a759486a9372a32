// Package audit keeps a bounded, hash-linked trail of everything the twin
// accepted. Hashes are for tamper evidence inside one process only.
package audit

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

const (
	DefaultCapacity = 50

	kindReading = "reading"
	kindControl = "control"
)

type Option func(*Log)

func WithClock(now func() time.Time) Option { return func(l *Log) { l.now = now } }

func WithLogger(logger *slog.Logger) Option { return func(l *Log) { l.logger = logger } }

func WithMetrics(m *Metrics) Option { return func(l *Log) { l.metrics = m } }

// Log is the append-only audit trail. Appends are serialised so block ids and
// hash links never interleave; only the newest capacity blocks are retained.
type Log struct {
	mu       sync.Mutex
	blocks   []messages.AuditBlock
	capacity int
	total    uint64
	lastHash messages.Hash

	now     func() time.Time
	logger  *slog.Logger
	metrics *Metrics
}

// New creates an empty log. capacity <= 0 selects DefaultCapacity.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		capacity: capacity,
		blocks:   make([]messages.AuditBlock, 0, capacity),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	l.logger = l.logger.With("component", "audit")
	return l
}

// Append records a processed reading.
func (l *Log) Append(r messages.ProcessedReading) (messages.AuditBlock, error) {
	h, err := ContentHash(r)
	if err != nil {
		l.metrics.recordError()
		return messages.AuditBlock{}, err
	}
	score := r.ConfidenceScore
	return l.link(r.SensorID, h, &score, kindReading), nil
}

// AppendControl records an operator command. Control blocks carry no confidence.
func (l *Log) AppendControl(rec messages.ControlRecord) (messages.AuditBlock, error) {
	h, err := ContentHash(rec)
	if err != nil {
		l.metrics.recordError()
		return messages.AuditBlock{}, err
	}
	return l.link(rec.SensorID, h, nil, kindControl), nil
}

func (l *Log) link(sensorID string, h messages.Hash, score *float64, kind string) messages.AuditBlock {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.total++
	b := messages.AuditBlock{
		BlockID:         l.total,
		Timestamp:       l.now().UTC(),
		SensorID:        sensorID,
		DataHash:        h,
		ConfidenceScore: score,
		Verified:        true,
		PreviousHash:    l.lastHash,
	}
	l.lastHash = h

	if len(l.blocks) == l.capacity {
		copy(l.blocks, l.blocks[1:])
		l.blocks = l.blocks[:len(l.blocks)-1]
	}
	l.blocks = append(l.blocks, b)

	l.metrics.recordAppend(kind, len(l.blocks))
	l.logger.Debug("audit: block appended", "block", b.BlockID, "sensor", sensorID, "hash", h)
	return b
}

// RecentBlocks returns up to n of the newest retained blocks, oldest first.
func (l *Log) RecentBlocks(n int) []messages.AuditBlock {
	l.mu.Lock()
	defer l.mu.Unlock()
	if n <= 0 || n > len(l.blocks) {
		n = len(l.blocks)
	}
	out := make([]messages.AuditBlock, n)
	copy(out, l.blocks[len(l.blocks)-n:])
	return out
}

// Retained returns every block still held, oldest first.
func (l *Log) Retained() []messages.AuditBlock { return l.RecentBlocks(0) }

// TotalCount is the number of blocks ever appended, evicted ones included.
func (l *Log) TotalCount() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.total
}

func (l *Log) Capacity() int { return l.capacity }

// Verify checks that retained blocks have consecutive ids and that every
// block links to the data hash of the one before it.
func (l *Log) Verify() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := 1; i < len(l.blocks); i++ {
		prev, cur := l.blocks[i-1], l.blocks[i]
		if cur.BlockID != prev.BlockID+1 || cur.PreviousHash != prev.DataHash {
			l.logger.Warn("audit: chain broken", "block", cur.BlockID)
			return false
		}
	}
	return true
}
