package broker

import (
	"encoding/json"
	"fmt"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 5 * time.Second

// Publisher sends JSON messages over a shared client.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// Publish marshals v to JSON unless it already is bytes or a string.
func (p *Publisher) Publish(topic string, v any) error {
	var payload []byte
	switch x := v.(type) {
	case []byte:
		payload = x
	case string:
		payload = []byte(x)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal message for %s: %w", topic, err)
		}
		payload = b
	}

	token := p.client.Publish(topic, QoSFor(topic), false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("failed to publish message to %s: %w", topic, err)
	}
	return nil
}

func (p *Publisher) Connected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}
