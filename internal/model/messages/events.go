package messages

import (
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
)

// Real-time message types.
const (
	TypeSensorUpdate      = "sensor_update"
	TypeIrrigationControl = "irrigation_control"
	TypeZoneData          = "zone_data"
	TypeError             = "error"

	// client → server
	TypeZoneSelect     = "zone_select"
	TypeControlCommand = "control_command"
)

// SensorUpdate is broadcast once for every reading that reaches the broadcast stage.
type SensorUpdate struct {
	Type             string           `json:"type"`
	Data             ProcessedReading `json:"data"`
	Predictions      *Prediction      `json:"predictions,omitempty"`
	PredictionStatus string           `json:"prediction_status"`
	BlockID          uint64           `json:"block_id"`
	Timestamp        time.Time        `json:"timestamp"`
}

// IrrigationControl is broadcast after an operator command has been applied.
type IrrigationControl struct {
	Type      string                    `json:"type"`
	ZoneID    string                    `json:"zone_id"`
	Action    entities.IrrigationAction `json:"action"`
	Message   string                    `json:"message"`
	TicketID  string                    `json:"ticket_id"`
	BlockID   uint64                    `json:"block_id"`
	Timestamp time.Time                 `json:"timestamp"`
}

// ZoneData answers a zone_select request.
type ZoneData struct {
	Type      string        `json:"type"`
	Zone      entities.Zone `json:"zone"`
	Timestamp time.Time     `json:"timestamp"`
}

// ErrorMessage is sent to a single client whose request could not be served.
type ErrorMessage struct {
	Type      string    `json:"type"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is any request a real-time client may send.
type ClientMessage struct {
	Type    string          `json:"type"`
	ZoneID  string          `json:"zone_id,omitempty"`
	Command *ControlCommand `json:"command,omitempty"`
}

// ControlCommand toggles irrigation for a zone. RequestID is optional; when set,
// repeats of the same id are ignored for a while.
type ControlCommand struct {
	ZoneID    string                    `json:"zone_id"`
	Zone      string                    `json:"zone,omitempty"` // legacy alias of zone_id
	Action    entities.IrrigationAction `json:"action"`
	RequestID string                    `json:"request_id,omitempty"`
}

// Target returns the zone the command addresses.
func (c ControlCommand) Target() string {
	if c.ZoneID != "" {
		return c.ZoneID
	}
	return c.Zone
}
