package twin

import (
	"encoding/json"
	"net/http"
	"time"
)

type healthHandler struct {
	mqtt    Connectivity
	archive ArchiveStatus
}

// NewHealthHandler reports ok, degraded or down. Unconfigured dependencies
// do not count against health.
func NewHealthHandler(m Connectivity, a ArchiveStatus) http.Handler {
	return &healthHandler{mqtt: m, archive: a}
}

func (h *healthHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	type status struct {
		Status          string   `json:"status"`
		MQTTConnected   *bool    `json:"mqtt_connected,omitempty"`
		ArchiveBreaker  string   `json:"archive_breaker,omitempty"`
		LastWriteErrorS *float64 `json:"last_write_error_age_sec,omitempty"`
	}
	st := status{Status: "ok"}
	problems, deps := 0, 0

	if h.mqtt != nil {
		deps++
		ok := h.mqtt.IsConnectionOpen()
		st.MQTTConnected = &ok
		if !ok {
			problems++
		}
	}
	if h.archive != nil {
		deps++
		age := h.archive.LastErrorAge().Seconds()
		st.LastWriteErrorS = &age
		st.ArchiveBreaker = h.archive.BreakerState()
		if h.archive.LastErrorAge() < 30*time.Second {
			problems++
		}
	}

	switch {
	case problems == 0:
		st.Status = "ok"
	case problems < deps:
		st.Status = "degraded"
	default:
		st.Status = "down"
	}

	// the in-memory twin keeps serving either way
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(st)
}

// readyHandler answers 200 only when every configured dependency is healthy.
type readyHandler struct {
	mqtt     Connectivity
	archive  ArchiveStatus
	minError time.Duration
}

func NewReadyHandler(m Connectivity, a ArchiveStatus, minOkErrorAge time.Duration) http.Handler {
	return &readyHandler{mqtt: m, archive: a, minError: minOkErrorAge}
}

func (h *readyHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	ready := Ready(h.mqtt, h.archive, h.minError)
	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	type resp struct {
		Ready bool `json:"ready"`
	}
	_ = json.NewEncoder(w).Encode(resp{Ready: ready})
}

// Ready is the readiness rule shared by /readyz and the gRPC health service.
func Ready(m Connectivity, a ArchiveStatus, minOkErrorAge time.Duration) bool {
	if m != nil && !m.IsConnectionOpen() {
		return false
	}
	if a != nil && a.LastErrorAge() <= minOkErrorAge {
		return false
	}
	return true
}
