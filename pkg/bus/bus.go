// Package bus carries reminder commands in from external command-dispatch
// surfaces (spec.md §6 treats this as provided externally, "shown here only
// to fix the engine's inputs") and fired-reminder notifications back out to
// whichever channel is registered to deliver them.
package bus

import (
	"context"
	"sync"
	"time"

	"ricordami/pkg/logger"
)

// InboundCommand is a raw "ricordami/scordati/promemoria ..." line received
// from some external channel, not yet tokenized or parsed.
type InboundCommand struct {
	Channel  string
	UserID   uint64
	ChatID   string
	Line     string
	Received time.Time
}

// OutboundNotification is a fired reminder's delivery payload, addressed to
// the channel and chat it should be delivered through.
type OutboundNotification struct {
	Channel string
	ChatID  string
	Message string
}

// NotificationHandler delivers an OutboundNotification through a concrete
// transport (Telegram, a webhook callback, ...). Registered per channel
// name on a MessageBus.
type NotificationHandler interface {
	Deliver(ctx context.Context, n OutboundNotification) error
}

// Destination is where a fired reminder should be delivered: which
// channel handler to use and which chat on that channel.
type Destination struct {
	Channel string
	ChatID  string
}

// MessageBus decouples the reminder engine's Callback from any specific
// transport: Engine.Callback publishes OutboundNotification here, and
// whatever consumes SubscribeOutbound looks up the registered
// NotificationHandler for the target channel and delivers it.
//
// It also tracks the last channel/chat a user issued a command from
// (Destinations), so a Callback that only knows a user id can still
// address the right chat when the reminder eventually fires — the same
// "last active channel" pattern the teacher's sentinel alerting used.
type MessageBus struct {
	inbound  chan InboundCommand
	outbound chan OutboundNotification
	handlers map[string]NotificationHandler
	mu       sync.RWMutex

	destMu sync.RWMutex
	dests  map[uint64]Destination
}

func NewMessageBus() *MessageBus {
	return &MessageBus{
		inbound:  make(chan InboundCommand, 100),
		outbound: make(chan OutboundNotification, 100),
		handlers: make(map[string]NotificationHandler),
		dests:    make(map[uint64]Destination),
	}
}

// SetDestination records where a user's next fired reminder should be
// delivered. Called whenever a command from that user is processed.
func (mb *MessageBus) SetDestination(userID uint64, channel, chatID string) {
	mb.destMu.Lock()
	defer mb.destMu.Unlock()
	mb.dests[userID] = Destination{Channel: channel, ChatID: chatID}
}

// Destination returns the last known delivery target for a user.
func (mb *MessageBus) Destination(userID uint64) (Destination, bool) {
	mb.destMu.RLock()
	defer mb.destMu.RUnlock()
	d, ok := mb.dests[userID]
	return d, ok
}

func (mb *MessageBus) PublishInbound(cmd InboundCommand) {
	select {
	case mb.inbound <- cmd:
	case <-time.After(10 * time.Second):
		logger.ErrorCF("bus", "PublishInbound timed out, command dropped", map[string]interface{}{
			"channel": cmd.Channel,
			"user_id": cmd.UserID,
		})
	}
}

func (mb *MessageBus) ConsumeInbound(ctx context.Context) (InboundCommand, bool) {
	select {
	case cmd := <-mb.inbound:
		return cmd, true
	case <-ctx.Done():
		return InboundCommand{}, false
	}
}

func (mb *MessageBus) PublishOutbound(n OutboundNotification) {
	select {
	case mb.outbound <- n:
	case <-time.After(10 * time.Second):
		logger.ErrorCF("bus", "PublishOutbound timed out, notification dropped", map[string]interface{}{
			"channel": n.Channel,
			"chat_id": n.ChatID,
		})
	}
}

func (mb *MessageBus) SubscribeOutbound(ctx context.Context) (OutboundNotification, bool) {
	select {
	case n := <-mb.outbound:
		return n, true
	case <-ctx.Done():
		return OutboundNotification{}, false
	}
}

func (mb *MessageBus) RegisterHandler(channel string, handler NotificationHandler) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	mb.handlers[channel] = handler
}

func (mb *MessageBus) GetHandler(channel string) (NotificationHandler, bool) {
	mb.mu.RLock()
	defer mb.mu.RUnlock()
	handler, ok := mb.handlers[channel]
	return handler, ok
}

// Dispatch pulls outbound notifications until ctx is cancelled, delivering
// each through its registered channel handler. Missing handlers are logged
// and dropped.
func (mb *MessageBus) Dispatch(ctx context.Context) {
	for {
		n, ok := mb.SubscribeOutbound(ctx)
		if !ok {
			return
		}
		handler, ok := mb.GetHandler(n.Channel)
		if !ok {
			logger.WarnCF("bus", "no handler registered for channel", map[string]interface{}{
				"channel": n.Channel,
			})
			continue
		}
		if err := handler.Deliver(ctx, n); err != nil {
			logger.ErrorCF("bus", "notification delivery failed", map[string]interface{}{
				"channel": n.Channel,
				"error":   err.Error(),
			})
		}
	}
}

// Drain discards remaining messages from both channels before closing.
// Call this during graceful shutdown to unblock any goroutines waiting to
// send.
func (mb *MessageBus) Drain() {
	for {
		select {
		case <-mb.inbound:
		default:
			goto drainOutbound
		}
	}
drainOutbound:
	for {
		select {
		case <-mb.outbound:
		default:
			return
		}
	}
}

func (mb *MessageBus) Close() {
	mb.Drain()
	close(mb.inbound)
	close(mb.outbound)
}
