package entities

// SensorState indicates whether the irrigation valve is on or off.
type SensorState string

const (
	StateOff SensorState = "off"
	StateOn  SensorState = "on"
)

// IrrigationAction is the operator command applied to a zone.
type IrrigationAction string

const (
	ActionStart IrrigationAction = "start"
	ActionStop  IrrigationAction = "stop"
)

// Valid reports whether a is a known action.
func (a IrrigationAction) Valid() bool {
	return a == ActionStart || a == ActionStop
}

// State maps the action onto the valve state sent to devices.
func (a IrrigationAction) State() SensorState {
	if a == ActionStart {
		return StateOn
	}
	return StateOff
}

// Point is a position on the farm map.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Sensor is one field device known to the twin. The catalogue is informational:
// readings from sensors missing here are still accepted.
type Sensor struct {
	ID       string      `json:"id" yaml:"id"`
	Name     string      `json:"name" yaml:"name"`
	Type     ReadingType `json:"type" yaml:"type"`
	ZoneID   string      `json:"zone" yaml:"zone"`
	Position Point       `json:"position" yaml:"position"`
	Status   string      `json:"status" yaml:"status"` // active | inactive
}
