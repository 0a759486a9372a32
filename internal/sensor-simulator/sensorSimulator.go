package sensor_simulator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/broker"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/dedup"
)

// Publisher delivers one reading. *broker.Publisher and *HTTPPublisher
// satisfy it.
type Publisher interface {
	Publish(topic string, v any) error
}

// StateSource delivers valve commands; *broker.Consumer satisfies it.
type StateSource interface {
	SetHandler(h broker.Handler)
	Consume(ctx context.Context)
}

type SensorSimulator struct {
	profiles  []Profile
	generator *DataGenerator
	publisher Publisher
	states    StateSource // optional
	deduper   *dedup.Deduper
	logger    *slog.Logger

	sent int
}

func NewSensorSimulator(states StateSource, publisher Publisher, gen *DataGenerator, profiles []Profile, logger *slog.Logger) *SensorSimulator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SensorSimulator{
		profiles:  profiles,
		generator: gen,
		publisher: publisher,
		states:    states,
		deduper:   dedup.New(2*time.Minute, 10000), // TTL e cap
		logger:    logger.With("component", "simulator"),
	}
}

// Start publishes one reading per profile every interval until ctx ends.
func (s *SensorSimulator) Start(ctx context.Context, interval time.Duration) {
	if s.states != nil {
		s.states.SetHandler(s.handleMessage)
		go s.states.Consume(ctx)
	}

	s.logger.Info("simulator: started", "sensors", len(s.profiles), "interval", interval)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulator: stopped", "sent", s.sent)
			return
		case <-ticker.C:
			s.Tick()
		}
	}
}

// Tick runs one cycle: a reading for every profile, then the weather roll.
func (s *SensorSimulator) Tick() {
	for _, p := range s.profiles {
		r := s.generator.Next(p)
		if err := s.publisher.Publish(ingestion.ReadingTopic(r.ZoneID, r.SensorID), r); err != nil {
			s.logger.Warn("simulator: publish error", "sensor", r.SensorID, "err", err)
			continue
		}
		s.sent++
		s.logger.Debug("simulator: reading sent", "sensor", r.SensorID, "value", r.Value, "unit", r.Unit)
	}
	for _, ev := range s.generator.WeatherEvents() {
		s.logger.Info("simulator: weather event", "event", ev.Type,
			"intensity", ev.Intensity, "condition", ev.Condition, "severity", ev.Severity)
	}
	if n := len(s.profiles); n > 0 && s.sent > 0 && s.sent%(10*n) == 0 {
		s.logger.Info("simulator: status", "sent", s.sent, "sensors", n)
	}
}

// Sent is the number of readings published so far.
func (s *SensorSimulator) Sent() int { return s.sent }

func (s *SensorSimulator) handleMessage(_ string, msg mqtt.Message) error {
	var evt messages.StateChangeEvent
	if err := json.Unmarshal(msg.Payload(), &evt); err != nil {
		return fmt.Errorf("invalid StateChangeEvent: %w", err)
	}
	// QoS1 redeliveries carry the same ticket
	if !s.deduper.ShouldProcess(evt.TicketID) {
		return nil
	}
	zone := evt.ZoneID
	if zone == "" {
		zone = zoneFromTopic(msg.Topic())
	}
	s.generator.ApplyState(zone, evt.NewState)
	s.logger.Info("simulator: valve state", "zone", zone, "state", evt.NewState, "ticket", evt.TicketID)
	return nil
}

func zoneFromTopic(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return ""
}

// HTTPPublisher posts readings to the twin's ingress endpoint instead of the
// broker. The topic is ignored.
type HTTPPublisher struct {
	url    string
	client *http.Client
}

func NewHTTPPublisher(baseURL string, timeout time.Duration) *HTTPPublisher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPublisher{
		url:    strings.TrimRight(baseURL, "/") + "/api/sensor-data",
		client: &http.Client{Timeout: timeout},
	}
}

func (h *HTTPPublisher) Publish(_ string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	resp, err := h.client.Post(h.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("ingress HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
