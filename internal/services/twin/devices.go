package twin

import (
	"context"
	"strings"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

// DefaultStateChangeTopic is where zone valves listen for commands.
const DefaultStateChangeTopic = "event/StateChange/{zone}"

// Publisher is satisfied by *broker.Publisher.
type Publisher interface {
	Publish(topic string, v any) error
}

// DeviceNotifier publishes irrigation state changes to the field devices.
type DeviceNotifier struct {
	pub           Publisher
	topicTemplate string
}

func NewDeviceNotifier(pub Publisher, topicTemplate string) *DeviceNotifier {
	if strings.TrimSpace(topicTemplate) == "" {
		topicTemplate = DefaultStateChangeTopic
	}
	return &DeviceNotifier{pub: pub, topicTemplate: topicTemplate}
}

func (d *DeviceNotifier) NotifyStateChange(ctx context.Context, ev messages.StateChangeEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.pub.Publish(formatTopic(d.topicTemplate, ev.ZoneID), ev)
}

func formatTopic(tmpl, zoneID string) string {
	return strings.NewReplacer("{zone}", zoneID, "{field}", zoneID).Replace(tmpl)
}
