package zonestore

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
)

// Farm is the layout file format: the zones to track and the sensor catalogue.
type Farm struct {
	Zones   []entities.Zone   `yaml:"zones"`
	Sensors []entities.Sensor `yaml:"sensors"`
}

// LoadFarm reads a YAML layout. Sections missing from the file fall back to
// the built-in layout.
func LoadFarm(path string) (Farm, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Farm{}, fmt.Errorf("read farm layout: %w", err)
	}
	var f Farm
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return Farm{}, fmt.Errorf("parse farm layout %s: %w", path, err)
	}
	if len(f.Zones) == 0 {
		f.Zones = DefaultZones()
	}
	if len(f.Sensors) == 0 {
		f.Sensors = DefaultSensors()
	}
	return f, nil
}

// DefaultFarm is the built-in demo layout.
func DefaultFarm() Farm {
	return Farm{Zones: DefaultZones(), Sensors: DefaultSensors()}
}

// DefaultZones returns the three demo fields.
func DefaultZones() []entities.Zone {
	return []entities.Zone{
		{
			ID: "fieldA", Name: "Field A - Rice", Crop: "Rice", Area: "10 hectares",
			Position: entities.Geometry{X: 50, Y: 50, Width: 150, Height: 120},
			Health:   85, SoilMoisture: 35, Temperature: 28.5, PH: 6.8,
			LastIrrigation: time.Date(2025, 9, 22, 6, 0, 0, 0, time.UTC),
		},
		{
			ID: "fieldB", Name: "Field B - Wheat", Crop: "Wheat", Area: "12 hectares",
			Position: entities.Geometry{X: 220, Y: 50, Width: 180, Height: 120},
			Health:   72, SoilMoisture: 22, Temperature: 29.1, PH: 7.2,
			IrrigationActive: true,
			LastIrrigation:   time.Date(2025, 9, 20, 18, 0, 0, 0, time.UTC),
		},
		{
			ID: "fieldC", Name: "Field C - Vegetables", Crop: "Mixed Vegetables", Area: "3 hectares",
			Position: entities.Geometry{X: 50, Y: 200, Width: 120, Height: 150},
			Health:   90, SoilMoisture: 41, Temperature: 27.8, PH: 6.5,
			LastIrrigation: time.Date(2025, 9, 22, 6, 0, 0, 0, time.UTC),
		},
	}
}

// DefaultSensors returns the catalogue matching DefaultZones.
func DefaultSensors() []entities.Sensor {
	return []entities.Sensor{
		{ID: "SM001", Name: "Soil Moisture A1", Type: entities.SoilMoisture, ZoneID: "fieldA", Position: entities.Point{X: 125, Y: 110}, Status: "active"},
		{ID: "SM002", Name: "Soil Moisture B1", Type: entities.SoilMoisture, ZoneID: "fieldB", Position: entities.Point{X: 310, Y: 110}, Status: "active"},
		{ID: "SM003", Name: "Soil Moisture C1", Type: entities.SoilMoisture, ZoneID: "fieldC", Position: entities.Point{X: 110, Y: 275}, Status: "active"},
		{ID: "TH001", Name: "Weather Station", Type: entities.Temperature, ZoneID: entities.WeatherZone, Position: entities.Point{X: 360, Y: 210}, Status: "active"},
		{ID: "HU001", Name: "Humidity Sensor", Type: entities.Humidity, ZoneID: entities.WeatherZone, Position: entities.Point{X: 360, Y: 210}, Status: "active"},
		{ID: "PH001", Name: "pH Probe A1", Type: entities.PH, ZoneID: "fieldA", Position: entities.Point{X: 140, Y: 90}, Status: "active"},
		{ID: "PH002", Name: "pH Probe B1", Type: entities.PH, ZoneID: "fieldB", Position: entities.Point{X: 330, Y: 90}, Status: "active"},
	}
}
