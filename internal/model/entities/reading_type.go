package entities

// ReadingType names the metric a sensor measures.
type ReadingType string

const (
	SoilMoisture ReadingType = "soil_moisture"
	Temperature  ReadingType = "temperature"
	Humidity     ReadingType = "humidity"
	PH           ReadingType = "ph"
)

// Known reports whether t is one of the supported reading types.
func (t ReadingType) Known() bool {
	switch t {
	case SoilMoisture, Temperature, Humidity, PH:
		return true
	}
	return false
}

// Unit is the display unit producers normally attach to t.
func (t ReadingType) Unit() string {
	switch t {
	case SoilMoisture, Humidity:
		return "%"
	case Temperature:
		return "°C"
	case PH:
		return "pH"
	}
	return ""
}
