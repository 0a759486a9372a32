package twin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// dashboards are served from other origins; HTTP CORS covers the REST side
	CheckOrigin: func(*http.Request) bool { return true },
}

// GET /ws/farm-data
func (a *App) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.logger().Warn("twin: websocket upgrade failed", "err", err)
		return
	}
	conn := realtime.NewConn(ws)
	a.Registry.Register(conn)
	defer a.Registry.Unregister(conn.ID())

	// the request context is cancelled once the handler returns
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()
	go conn.KeepAlive(ctx, a.PingInterval)

	err = conn.ReadLoop(ctx, func(data []byte) {
		a.handleClientMessage(ctx, conn.ID(), data)
	})
	a.logger().Debug("twin: websocket closed", "id", conn.ID(), "err", err)
}

func (a *App) handleClientMessage(ctx context.Context, id string, data []byte) {
	var msg messages.ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		a.replyError(ctx, id, fmt.Errorf("invalid message: %w", err))
		return
	}

	switch msg.Type {
	case messages.TypeZoneSelect:
		z, ok := a.Zones.Zone(msg.ZoneID)
		if !ok {
			a.replyError(ctx, id, fmt.Errorf("zone %q not found", msg.ZoneID))
			return
		}
		a.reply(ctx, id, messages.ZoneData{Type: messages.TypeZoneData, Zone: z, Timestamp: a.now()})

	case messages.TypeControlCommand:
		cmd := messages.ControlCommand{}
		if msg.Command != nil {
			cmd = *msg.Command
		}
		if cmd.Target() == "" {
			cmd.ZoneID = msg.ZoneID
		}
		// success is announced to everyone by the control broadcast
		if _, err := a.Pipeline.ExecuteControl(ctx, cmd); err != nil {
			a.replyError(ctx, id, err)
		}

	default:
		a.logger().Debug("twin: unknown client message", "id", id, "type", msg.Type)
	}
}

func (a *App) reply(ctx context.Context, id string, msg any) {
	if err := a.Registry.SendTo(ctx, id, msg); err != nil {
		a.logger().Debug("twin: reply failed", "id", id, "err", err)
	}
}

func (a *App) replyError(ctx context.Context, id string, err error) {
	a.reply(ctx, id, messages.ErrorMessage{Type: messages.TypeError, Error: err.Error(), Timestamp: a.now()})
}
