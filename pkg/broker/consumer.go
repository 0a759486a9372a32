package broker

import (
	"context"
	"log/slog"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler processes one message. Errors are logged, never retried.
type Handler func(topic string, msg mqtt.Message) error

// QoSFor is at-least-once for device commands, at-most-once for telemetry.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "event/StateChange") {
		return 1
	}
	return 0
}

// Consumer subscribes a handler to one or more topic filters.
type Consumer struct {
	client  mqtt.Client
	topics  []string
	handler Handler
	logger  *slog.Logger
}

func NewConsumer(client mqtt.Client, topics []string, handler Handler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{client: client, topics: topics, handler: handler, logger: logger}
}

func (c *Consumer) SetHandler(h Handler) { c.handler = h }

// Consume subscribes to every topic and blocks until ctx is done, then
// unsubscribes.
func (c *Consumer) Consume(ctx context.Context) {
	for _, topic := range c.topics {
		token := c.client.Subscribe(topic, QoSFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			if c.handler == nil {
				c.logger.Warn("broker: no handler set", "topic", topic)
				return
			}
			if err := c.handler(topic, msg); err != nil {
				c.logger.Warn("broker: handler error", "topic", msg.Topic(), "err", err)
			}
		})
		token.Wait()
		if err := token.Error(); err != nil {
			c.logger.Error("broker: subscribe failed", "topic", topic, "err", err)
			continue
		}
		c.logger.Info("broker: subscribed", "topic", topic)
	}

	<-ctx.Done()

	if len(c.topics) > 0 {
		c.client.Unsubscribe(c.topics...).Wait()
	}
}
