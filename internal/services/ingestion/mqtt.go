package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

// ReadingTopicPrefix is where producers publish: sensor/reading/{zone}/{sensor}.
const ReadingTopicPrefix = "sensor/reading/"

// ReadingTopic builds the topic a sensor publishes on.
func ReadingTopic(zoneID, sensorID string) string {
	return ReadingTopicPrefix + zoneID + "/" + sensorID
}

// MQTTHandler adapts the pipeline to a broker consumer. Ids missing from the
// payload are taken from the topic.
func (p *Pipeline) MQTTHandler(ctx context.Context) func(topic string, msg mqtt.Message) error {
	return func(_ string, msg mqtt.Message) error {
		var m map[string]any
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			return fmt.Errorf("%s: %w: %v", msg.Topic(), messages.ErrMalformedPayload, err)
		}
		if m == nil {
			return fmt.Errorf("%s: %w: null payload", msg.Topic(), messages.ErrMalformedPayload)
		}
		zoneID, sensorID := idsFromTopic(msg.Topic())
		fillMissing(m, zoneID, "zone", "zone_id")
		fillMissing(m, sensorID, "sensor_id", "sensorId", "id")

		d := messages.DecodeFields(m, p.now().UTC())
		if _, err := p.SubmitDecoded(ctx, d); err != nil {
			return fmt.Errorf("%s: %w", msg.Topic(), err)
		}
		return nil
	}
}

func idsFromTopic(topic string) (zoneID, sensorID string) {
	if !strings.HasPrefix(topic, ReadingTopicPrefix) {
		return "", ""
	}
	parts := strings.Split(strings.TrimPrefix(topic, ReadingTopicPrefix), "/")
	if len(parts) >= 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

func fillMissing(m map[string]any, value string, keys ...string) {
	if value == "" {
		return
	}
	for _, k := range keys {
		if s, ok := m[k].(string); ok && strings.TrimSpace(s) != "" {
			return
		}
	}
	m[keys[0]] = value
}
