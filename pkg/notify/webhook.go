package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"

	"ricordami/pkg/bus"
)

// defaultWebhookTimeout bounds a Deliver call when ctx carries no deadline
// of its own, so a hung endpoint can never stall the dispatch loop forever.
const defaultWebhookTimeout = 10 * time.Second

// WebhookNotifier delivers OutboundNotification values as a JSON POST to a
// fixed external endpoint — the simplest possible "push this elsewhere"
// transport, useful for wiring a reminder into a home-automation hook or a
// generic alerting webhook rather than a specific chat platform.
type WebhookNotifier struct {
	URL         string
	BearerToken string
}

func NewWebhookNotifier(url, bearerToken string) *WebhookNotifier {
	return &WebhookNotifier{URL: url, BearerToken: bearerToken}
}

type webhookPayload struct {
	Channel string `json:"channel"`
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// Deliver implements bus.NotificationHandler.
func (n *WebhookNotifier) Deliver(ctx context.Context, note bus.OutboundNotification) error {
	body, err := json.Marshal(webhookPayload{
		Channel: note.Channel,
		ChatID:  note.ChatID,
		Message: note.Message,
	})
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(n.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if n.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+n.BearerToken)
	}
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(defaultWebhookTimeout)
	}
	if err := fasthttp.DoDeadline(req, resp, deadline); err != nil {
		return err
	}
	if resp.StatusCode() >= 300 {
		return fmt.Errorf("notify: webhook returned status %d", resp.StatusCode())
	}
	return nil
}
