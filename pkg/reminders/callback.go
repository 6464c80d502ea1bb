package reminders

import (
	"context"
	"fmt"

	"ricordami/pkg/bus"
	"ricordami/pkg/logger"
)

// BusCallback is the production Callback: it looks up the user's last
// known chat destination and publishes an OutboundNotification for
// whatever NotificationHandler is registered on that channel. A user with
// no known destination (never issued a command through a channel that
// records one) is logged and dropped, not retried.
type BusCallback struct {
	Bus *bus.MessageBus
}

func (c BusCallback) Call(ctx context.Context, userID uint64, reminderID int32, message string) {
	dest, ok := c.Bus.Destination(userID)
	if !ok {
		logger.WarnCF("reminder", "no known destination, notification dropped", map[string]interface{}{
			"user_id":     userID,
			"reminder_id": reminderID,
		})
		return
	}
	c.Bus.PublishOutbound(bus.OutboundNotification{
		Channel: dest.Channel,
		ChatID:  dest.ChatID,
		Message: fmt.Sprintf("Promemoria #%d: %s", reminderID, message),
	})
}

// EventRecorder is the subset of pkg/telemetry.Tracker the engine needs:
// decoupled here so pkg/reminders never imports pkg/telemetry directly.
type EventRecorder interface {
	Record(event string)
}

// TrackedCallback wraps another Callback, recording a fired event before
// delegating delivery.
type TrackedCallback struct {
	Next     Callback
	Recorder EventRecorder
}

func (c TrackedCallback) Call(ctx context.Context, userID uint64, reminderID int32, message string) {
	if c.Recorder != nil {
		c.Recorder.Record("fired")
	}
	if c.Next != nil {
		c.Next.Call(ctx, userID, reminderID, message)
	}
}
