// Package realtime fans twin updates out to live subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultSendTimeout bounds a single delivery attempt.
const DefaultSendTimeout = 2 * time.Second

var ErrUnknownSubscriber = errors.New("unknown subscriber")

// Subscriber is one live connection. Send must honour ctx's deadline.
type Subscriber interface {
	ID() string
	Send(ctx context.Context, msg []byte) error
	Close() error
}

// BroadcastResult reports how one broadcast went.
type BroadcastResult struct {
	Attempted int      `json:"attempted"`
	Delivered int      `json:"delivered"`
	Failed    int      `json:"failed"`
	Dropped   []string `json:"dropped,omitempty"`
}

type RegistryOption func(*Registry)

func WithSendTimeout(d time.Duration) RegistryOption {
	return func(r *Registry) {
		if d > 0 {
			r.sendTimeout = d
		}
	}
}

func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

func WithMetrics(m *Metrics) RegistryOption {
	return func(r *Registry) { r.metrics = m }
}

// Registry is the set of live subscribers.
type Registry struct {
	mu          sync.RWMutex
	subs        map[string]Subscriber
	sendTimeout time.Duration
	logger      *slog.Logger
	metrics     *Metrics
}

func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		subs:        make(map[string]Subscriber),
		sendTimeout: DefaultSendTimeout,
		logger:      slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	r.logger = r.logger.With("component", "realtime")
	return r
}

// Register adds s. A subscriber already registered under the same id is
// replaced and closed.
func (r *Registry) Register(s Subscriber) {
	r.mu.Lock()
	old, replaced := r.subs[s.ID()]
	r.subs[s.ID()] = s
	n := len(r.subs)
	r.mu.Unlock()

	if replaced && old != s {
		_ = old.Close()
	}
	r.metrics.setSubscribers(n)
	r.logger.Info("realtime: subscriber registered", "id", s.ID(), "subscribers", n)
}

// Unregister removes and closes the subscriber with the given id. It reports
// whether it was present.
func (r *Registry) Unregister(id string) bool {
	r.mu.Lock()
	s, ok := r.subs[id]
	delete(r.subs, id)
	n := len(r.subs)
	r.mu.Unlock()

	if !ok {
		return false
	}
	_ = s.Close()
	r.metrics.setSubscribers(n)
	r.logger.Info("realtime: subscriber removed", "id", id, "subscribers", n)
	return true
}

// unregisterIf removes s only while it is still the entry for its id, so a
// replacement registered during a send survives the failure of the old one.
// s is closed either way.
func (r *Registry) unregisterIf(s Subscriber) bool {
	r.mu.Lock()
	cur, ok := r.subs[s.ID()]
	current := ok && cur == s
	if current {
		delete(r.subs, s.ID())
	}
	n := len(r.subs)
	r.mu.Unlock()

	_ = s.Close()
	if !current {
		return false
	}
	r.metrics.setSubscribers(n)
	r.logger.Info("realtime: subscriber removed", "id", s.ID(), "subscribers", n)
	return true
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.subs)
}

// Broadcast serialises msg once and delivers it to every subscriber present
// when the call starts. Subscribers whose send fails or times out are removed
// after the pass. The only error is a message that cannot be serialised.
func (r *Registry) Broadcast(ctx context.Context, msg any) (BroadcastResult, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return BroadcastResult{}, fmt.Errorf("marshal broadcast: %w", err)
	}
	start := time.Now()

	snapshot := r.snapshot()
	res := BroadcastResult{Attempted: len(snapshot)}
	if len(snapshot) == 0 {
		return res, nil
	}

	// a caller giving up must not look like a dead subscriber
	base := context.WithoutCancel(ctx)

	failed := make([]bool, len(snapshot))
	var wg sync.WaitGroup
	for i, s := range snapshot {
		wg.Add(1)
		go func(i int, s Subscriber) {
			defer wg.Done()
			if err := r.sendOne(base, s, payload); err != nil {
				failed[i] = true
				r.logger.Debug("realtime: send failed", "id", s.ID(), "err", err)
			}
		}(i, s)
	}
	wg.Wait()

	for i, s := range snapshot {
		if !failed[i] {
			res.Delivered++
			continue
		}
		res.Failed++
		res.Dropped = append(res.Dropped, s.ID())
		r.unregisterIf(s)
	}

	r.metrics.recordBroadcast(res, len(payload), time.Since(start))
	return res, nil
}

// SendTo delivers msg to a single subscriber, dropping it on failure.
func (r *Registry) SendTo(ctx context.Context, id string, msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	r.mu.RLock()
	s, ok := r.subs[id]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSubscriber, id)
	}
	if err := r.sendOne(context.WithoutCancel(ctx), s, payload); err != nil {
		r.unregisterIf(s)
		return fmt.Errorf("send to %s: %w", id, err)
	}
	return nil
}

// CloseAll removes every subscriber.
func (r *Registry) CloseAll() {
	for _, s := range r.snapshot() {
		r.Unregister(s.ID())
	}
}

func (r *Registry) snapshot() []Subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Subscriber, 0, len(r.subs))
	for _, s := range r.subs {
		out = append(out, s)
	}
	return out
}

func (r *Registry) sendOne(ctx context.Context, s Subscriber, payload []byte) error {
	ctx, cancel := context.WithTimeout(ctx, r.sendTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.Send(ctx, payload)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
