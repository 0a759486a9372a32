package ingestion

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
)

type fakeMessage struct {
	topic   string
	payload []byte
}

func (m fakeMessage) Duplicate() bool   { return false }
func (m fakeMessage) Qos() byte         { return 0 }
func (m fakeMessage) Retained() bool    { return false }
func (m fakeMessage) Topic() string     { return m.topic }
func (m fakeMessage) MessageID() uint16 { return 1 }
func (m fakeMessage) Payload() []byte   { return m.payload }
func (m fakeMessage) Ack()              {}

func TestMQTTHandlerFillsIDsFromTopic(t *testing.T) {
	h := newHarness(t, 1)
	handle := h.pipeline.MQTTHandler(context.Background())

	err := handle(ReadingTopicPrefix+"#", fakeMessage{
		topic:   ReadingTopic("fieldC", "SM003"),
		payload: []byte(`{"type":"soil_moisture","value":"44.5","unit":"%"}`),
	})
	require.NoError(t, err)

	z, _ := h.zones.Zone("fieldC")
	assert.Equal(t, 44.5, z.SoilMoisture)
	recent := h.pipeline.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "SM003", recent[0].SensorID)
}

func TestMQTTHandlerPayloadIDsWin(t *testing.T) {
	h := newHarness(t, 0)
	handle := h.pipeline.MQTTHandler(context.Background())

	err := handle("", fakeMessage{
		topic:   ReadingTopic("fieldC", "SM003"),
		payload: []byte(`{"sensor_id":"SM001","zone_id":"fieldA","type":"soil_moisture","value":12}`),
	})
	require.NoError(t, err)

	a, _ := h.zones.Zone("fieldA")
	c, _ := h.zones.Zone("fieldC")
	assert.Equal(t, 12.0, a.SoilMoisture)
	assert.Equal(t, 41.0, c.SoilMoisture)
}

func TestMQTTHandlerMalformed(t *testing.T) {
	h := newHarness(t, 0)
	handle := h.pipeline.MQTTHandler(context.Background())

	assert.ErrorIs(t, handle("", fakeMessage{topic: "sensor/reading/fieldA/SM001", payload: []byte("{")}), messages.ErrMalformedPayload)
	assert.ErrorIs(t, handle("", fakeMessage{topic: "sensor/reading/fieldA/SM001", payload: []byte("null")}), messages.ErrMalformedPayload)
}

func TestIDsFromTopic(t *testing.T) {
	z, s := idsFromTopic("sensor/reading/fieldA/SM001")
	assert.Equal(t, "fieldA", z)
	assert.Equal(t, "SM001", s)

	z, s = idsFromTopic("sensor/reading/weather")
	assert.Equal(t, "weather", z)
	assert.Empty(t, s)

	z, s = idsFromTopic("other/topic")
	assert.Empty(t, z)
	assert.Empty(t, s)
}
