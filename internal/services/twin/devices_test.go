package twin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/ingestion"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/broker"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/pkg/broker/brokertest"
)

func TestFormatTopic(t *testing.T) {
	assert.Equal(t, "event/StateChange/fieldA", formatTopic(DefaultStateChangeTopic, "fieldA"))
	assert.Equal(t, "devices/fieldB/cmd", formatTopic("devices/{field}/cmd", "fieldB"))
}

func TestDeviceNotifier_Publishes(t *testing.T) {
	client := brokertest.NewClient()
	n := NewDeviceNotifier(broker.NewPublisher(client), "")

	ev := messages.StateChangeEvent{ZoneID: "fieldA", NewState: entities.StateOn, TicketID: "t-1", Timestamp: testNow}
	require.NoError(t, n.NotifyStateChange(context.Background(), ev))

	pub := client.Published()
	require.Len(t, pub, 1)
	assert.Equal(t, "event/StateChange/fieldA", pub[0].Topic)
	assert.Equal(t, byte(1), pub[0].QoS)
	var got messages.StateChangeEvent
	require.NoError(t, json.Unmarshal(pub[0].Payload, &got))
	assert.Equal(t, ev.TicketID, got.TicketID)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.NotifyStateChange(ctx, ev), context.Canceled)
}

func TestControl_NotifiesDevices(t *testing.T) {
	client := brokertest.NewClient()
	app := newTestApp(t, ingestion.WithDeviceNotifier(NewDeviceNotifier(broker.NewPublisher(client), "")))

	res, err := app.Pipeline.ExecuteControl(context.Background(), messages.ControlCommand{ZoneID: "fieldB", Action: entities.ActionStop})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(client.Published()) == 1 }, time.Second, 5*time.Millisecond)
	var ev messages.StateChangeEvent
	require.NoError(t, json.Unmarshal(client.Published()[0].Payload, &ev))
	assert.Equal(t, "fieldB", ev.ZoneID)
	assert.Equal(t, entities.StateOff, ev.NewState)
	assert.Equal(t, res.TicketID, ev.TicketID)
}
