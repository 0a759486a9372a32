// Package zonestore holds the live state of every farm zone.
package zonestore

import (
	"log/slog"
	"sync"
	"time"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
)

// Store is the single owner of zone state. Readers only ever get copies.
type Store struct {
	mu     sync.RWMutex
	zones  []entities.Zone
	index  map[string]int
	logger *slog.Logger
}

// New builds a store seeded with zones. Later duplicates of an id are dropped
// so that there is at most one state per zone.
func New(zones []entities.Zone, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		zones:  make([]entities.Zone, 0, len(zones)),
		index:  make(map[string]int, len(zones)),
		logger: logger.With("component", "zonestore"),
	}
	for _, z := range zones {
		if z.ID == "" || z.ID == entities.WeatherZone {
			s.logger.Warn("zonestore: skipping zone with reserved or empty id", "zone", z.ID)
			continue
		}
		if _, dup := s.index[z.ID]; dup {
			s.logger.Warn("zonestore: duplicate zone id ignored", "zone", z.ID)
			continue
		}
		s.index[z.ID] = len(s.zones)
		s.zones = append(s.zones, z)
	}
	return s
}

// ApplyReading writes value into the field matching t of zone zoneID, or of
// every zone when zoneID is the weather sentinel. It returns how many zones
// changed; unknown zones and types without a zone field yield 0.
func (s *Store) ApplyReading(zoneID string, t entities.ReadingType, value float64) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if zoneID == entities.WeatherZone {
		n := 0
		for i := range s.zones {
			if s.zones[i].SetMetric(t, value) {
				n++
			}
		}
		return n
	}

	i, ok := s.index[zoneID]
	if !ok {
		s.logger.Debug("zonestore: reading for unknown zone ignored", "zone", zoneID, "type", t)
		return 0
	}
	if s.zones[i].SetMetric(t, value) {
		return 1
	}
	return 0
}

// Snapshot returns a copy of all zones in seed order.
func (s *Store) Snapshot() []entities.Zone {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entities.Zone, len(s.zones))
	copy(out, s.zones)
	return out
}

// Zone returns a copy of one zone.
func (s *Store) Zone(id string) (entities.Zone, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return entities.Zone{}, false
	}
	return s.zones[i], true
}

// SetIrrigation switches the irrigation flag of a zone and stamps the time of
// the command. The updated zone is returned.
func (s *Store) SetIrrigation(id string, active bool, at time.Time) (entities.Zone, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i, ok := s.index[id]
	if !ok {
		return entities.Zone{}, false
	}
	s.zones[i].IrrigationActive = active
	s.zones[i].LastIrrigation = at
	return s.zones[i], true
}

// Len is the number of zones held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.zones)
}
