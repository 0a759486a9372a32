package messages

import (
	"fmt"
	"strconv"
	"time"
)

// Hash is a non-cryptographic 64-bit content hash. It is rendered as 16 hex
// digits so that JSON consumers do not lose precision.
type Hash uint64

func (h Hash) String() string { return fmt.Sprintf("%016x", uint64(h)) }

func (h Hash) MarshalText() ([]byte, error) { return []byte(h.String()), nil }

func (h *Hash) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return fmt.Errorf("hash %q: %w", b, err)
	}
	*h = Hash(v)
	return nil
}

// AuditBlock is one hash-linked entry of the audit trail.
type AuditBlock struct {
	BlockID         uint64    `json:"block_id"`
	Timestamp       time.Time `json:"timestamp"`
	SensorID        string    `json:"sensor_id"`
	DataHash        Hash      `json:"data_hash"`
	ConfidenceScore *float64  `json:"confidence_score"` // nil for control actions
	Verified        bool      `json:"verified"`
	PreviousHash    Hash      `json:"previous_hash"`
}

// ControlRecord is the audited content of an operator irrigation command.
type ControlRecord struct {
	SensorID  string    `json:"sensor_id"` // IRRIGATION_<zone>
	Type      string    `json:"type"`      // always "control_action"
	Action    string    `json:"value"`
	ZoneID    string    `json:"zone"`
	Timestamp time.Time `json:"timestamp"`
}
