package messages

import (
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
)

// StateChangeEvent tells the valves of a zone to switch on or off.
type StateChangeEvent struct {
	ZoneID    string               `json:"zone_id"`
	NewState  entities.SensorState `json:"new_state"`
	TicketID  string               `json:"ticket_id"`
	Timestamp time.Time            `json:"timestamp"`
}
