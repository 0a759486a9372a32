// Package twin serves the farm digital twin: ingestion over HTTP and MQTT,
// queries over HTTP, live updates over WebSocket.
package twin

import (
	"log/slog"
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/audit"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/zonestore"
)

const (
	recentReadings = 10
	recentBlocks   = 10
)

// Connectivity is satisfied by mqtt.Client.
type Connectivity interface {
	IsConnectionOpen() bool
}

// ArchiveStatus is satisfied by *archive.Writer.
type ArchiveStatus interface {
	LastErrorAge() time.Duration
	BreakerState() string
}

// App holds the owned state of one twin process. Everything is built once at
// startup and shared by reference.
type App struct {
	Zones    *zonestore.Store
	Audit    *audit.Log
	Registry *realtime.Registry
	Pipeline *ingestion.Pipeline
	Sensors  []entities.Sensor

	// optional; nil means the dependency is not configured
	MQTT    Connectivity
	Archive ArchiveStatus

	Logger       *slog.Logger
	Now          func() time.Time
	AllowOrigins []string
	PingInterval time.Duration
}

func (a *App) now() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

func (a *App) logger() *slog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return slog.Default()
}
