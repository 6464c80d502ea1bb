// Package notify provides example bus.NotificationHandler implementations
// that deliver fired reminders over a real transport. The message bus only
// depends on the bus.NotificationHandler interface, and the engine only on
// its own reminders.Callback; this package demonstrates wiring concrete
// transports without pulling transport concerns into the engine itself.
package notify

import (
	"context"
	"strconv"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"

	"ricordami/pkg/bus"
	"ricordami/pkg/logger"
)

// TelegramNotifier delivers OutboundNotification values as Telegram
// messages. ChatID is expected to be the string form of a Telegram chat
// id, as recorded for the user by bus.SetDestination upstream.
type TelegramNotifier struct {
	bot *telego.Bot
}

// NewTelegramNotifier constructs a notifier backed by a bot token. An
// empty token means Telegram delivery is disabled; callers should skip
// registering this notifier on the bus in that case.
func NewTelegramNotifier(botToken string) (*TelegramNotifier, error) {
	bot, err := telego.NewBot(botToken)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot}, nil
}

// Deliver implements bus.NotificationHandler.
func (n *TelegramNotifier) Deliver(ctx context.Context, note bus.OutboundNotification) error {
	chatID, err := strconv.ParseInt(note.ChatID, 10, 64)
	if err != nil {
		logger.ErrorCF("notify", "invalid telegram chat id", map[string]interface{}{
			"chat_id": note.ChatID,
			"error":   err.Error(),
		})
		return err
	}

	_, err = n.bot.SendMessage(ctx, tu.Message(tu.ID(chatID), note.Message))
	if err != nil {
		logger.ErrorCF("notify", "telegram delivery failed", map[string]interface{}{
			"chat_id": note.ChatID,
			"error":   err.Error(),
		})
	}
	return err
}
