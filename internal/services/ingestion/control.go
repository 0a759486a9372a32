package ingestion

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/entities"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/model/messages"
	"github.com/leehanthulluri/smart-farm-digital-twin-v2/internal/services/realtime"
)

const controlRecordType = "control_action"

// ControlResult is what an accepted irrigation command produced.
type ControlResult struct {
	ZoneID     string                    `json:"zone_id"`
	Action     entities.IrrigationAction `json:"action"`
	Message    string                    `json:"message"`
	TicketID   string                    `json:"ticket_id"`
	Zone       entities.Zone             `json:"zone"`
	AuditBlock messages.AuditBlock       `json:"audit_block"`
	Broadcast  realtime.BroadcastResult  `json:"broadcast"`
}

// ControlSensorID is the audit identity of irrigation commands for a zone.
func ControlSensorID(zoneID string) string { return "IRRIGATION_" + zoneID }

// ExecuteControl switches irrigation for a zone. It skips scoring and
// forecasting but shares the audit and broadcast steps with readings.
// Rejected commands have no side effects.
func (p *Pipeline) ExecuteControl(ctx context.Context, cmd messages.ControlCommand) (ControlResult, error) {
	zoneID := cmd.Target()
	action := cmd.Action
	if action == "" {
		action = entities.ActionStart
	}
	if !action.Valid() {
		p.metrics.recordControl("invalid")
		return ControlResult{}, fmt.Errorf("%w: action %q", ErrInvalidCommand, cmd.Action)
	}
	if _, ok := p.zones.Zone(zoneID); !ok {
		p.metrics.recordControl("unknown_zone")
		return ControlResult{}, fmt.Errorf("%w: %q", ErrUnknownZone, zoneID)
	}
	if !p.commands.ShouldProcess(cmd.RequestID) {
		p.metrics.recordControl("duplicate")
		return ControlResult{}, fmt.Errorf("%w: request %s", ErrDuplicateCommand, cmd.RequestID)
	}

	now := p.now().UTC()
	zone, ok := p.zones.SetIrrigation(zoneID, action == entities.ActionStart, now)
	if !ok {
		p.commands.Forget(cmd.RequestID)
		p.metrics.recordControl("unknown_zone")
		return ControlResult{}, fmt.Errorf("%w: %q", ErrUnknownZone, zoneID)
	}

	res := ControlResult{
		ZoneID:   zoneID,
		Action:   action,
		Message:  controlMessage(action, zoneID),
		TicketID: uuid.NewString(),
		Zone:     zone,
	}

	block, err := p.audit.AppendControl(messages.ControlRecord{
		SensorID:  ControlSensorID(zoneID),
		Type:      controlRecordType,
		Action:    string(action),
		ZoneID:    zoneID,
		Timestamp: now,
	})
	if err != nil {
		p.metrics.recordControl("failed")
		p.logger.Error("ingestion: audit control failed", "zone", zoneID, "err", err)
		return res, &StageError{Stage: StageAudited, Err: err}
	}
	res.AuditBlock = block

	br, err := p.broadcaster.Broadcast(ctx, messages.IrrigationControl{
		Type:      messages.TypeIrrigationControl,
		ZoneID:    zoneID,
		Action:    action,
		Message:   res.Message,
		TicketID:  res.TicketID,
		BlockID:   block.BlockID,
		Timestamp: now,
	})
	res.Broadcast = br
	if err != nil {
		p.metrics.recordControl("failed")
		p.logger.Error("ingestion: broadcast control failed", "zone", zoneID, "err", err)
		return res, &StageError{Stage: StageBroadcast, Err: err}
	}

	if p.devices != nil {
		ev := messages.StateChangeEvent{
			ZoneID:    zoneID,
			NewState:  action.State(),
			TicketID:  res.TicketID,
			Timestamp: now,
		}
		if err := p.devices.NotifyStateChange(ctx, ev); err != nil {
			// devices catch up on the next command; the twin state is authoritative
			p.logger.Warn("ingestion: device notification failed", "zone", zoneID, "ticket", res.TicketID, "err", err)
		}
	}

	p.metrics.recordControl("applied")
	p.logger.Info("ingestion: irrigation command applied", "zone", zoneID, "action", action, "block", block.BlockID)
	return res, nil
}

func controlMessage(a entities.IrrigationAction, zoneID string) string {
	verb := "started"
	if a == entities.ActionStop {
		verb = "stopped"
	}
	return fmt.Sprintf("Irrigation %s for %s", verb, zoneID)
}
