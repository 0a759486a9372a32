package ingestion

import (
	"sync"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

const DefaultHistorySize = 100

// history is a fixed-size ring of the most recent processed readings.
type history struct {
	mu    sync.RWMutex
	buf   []messages.ProcessedReading
	next  int
	count int
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{buf: make([]messages.ProcessedReading, size)}
}

func (h *history) add(r messages.ProcessedReading) {
	h.mu.Lock()
	h.buf[h.next] = r
	h.next = (h.next + 1) % len(h.buf)
	if h.count < len(h.buf) {
		h.count++
	}
	h.mu.Unlock()
}

// recent returns up to n readings, oldest first.
func (h *history) recent(n int) []messages.ProcessedReading {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > h.count {
		n = h.count
	}
	out := make([]messages.ProcessedReading, n)
	start := (h.next - n + len(h.buf)) % len(h.buf)
	for i := 0; i < n; i++ {
		out[i] = h.buf[(start+i)%len(h.buf)]
	}
	return out
}

func (h *history) len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}
