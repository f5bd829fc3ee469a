package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
)

// SMSHandler renders customer SMS texts for event tasks.
type SMSHandler struct {
	Sender       common.SMSSender
	MerchantName string
	Logger       zerolog.Logger
}

// ProcessTask implements asynq.Handler.
func (h SMSHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var ev events.Event
	if err := json.Unmarshal(task.Payload(), &ev); err != nil {
		return fmt.Errorf("notify: decode task: %v: %w", err, asynq.SkipRetry)
	}
	payload := map[string]any{}
	if len(ev.Payload) > 0 {
		if err := json.Unmarshal(ev.Payload, &payload); err != nil {
			return fmt.Errorf("notify: decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	phone := stringField(payload, "phone")
	if phone == "" {
		h.Logger.Debug().Str("topic", ev.Topic).Str("event_id", ev.ID).Msg("notify_skip_no_phone")
		return nil
	}
	text := h.messageFor(ev.Topic, payload)
	if text == "" {
		return nil
	}
	if err := h.Sender.Send(ctx, phone, text); err != nil {
		return fmt.Errorf("notify: send sms: %w", err)
	}
	h.Logger.Info().Str("topic", ev.Topic).Str("event_id", ev.ID).Str("phone", common.MaskPhone(phone)).Msg("notify_sms_sent")
	return nil
}

func (h SMSHandler) messageFor(topic string, payload map[string]any) string {
	merchant := h.MerchantName
	if merchant == "" {
		merchant = "Storefront"
	}
	orderRef := shortRef(stringField(payload, "order_id"))
	amount := stringField(payload, "amount")
	switch topic {
	case events.TopicOrderPlaced:
		if stringField(payload, "method") == "COD" {
			return fmt.Sprintf("%s: order %s placed. Please keep %s ready on delivery.", merchant, orderRef, amount)
		}
		return fmt.Sprintf("%s: order %s placed.", merchant, orderRef)
	case events.TopicPaymentVerified:
		return fmt.Sprintf("%s: payment of %s received for order %s.", merchant, amount, orderRef)
	case events.TopicPaymentFailed:
		return fmt.Sprintf("%s: we could not confirm payment for order %s. Contact support if you were charged.", merchant, orderRef)
	case events.TopicReturnRequested:
		return fmt.Sprintf("%s: return request %s received for order %s.", merchant, shortRef(stringField(payload, "return_id")), orderRef)
	case events.TopicReturnCancelled:
		return fmt.Sprintf("%s: return request %s cancelled.", merchant, shortRef(stringField(payload, "return_id")))
	default:
		return ""
	}
}

func stringField(payload map[string]any, key string) string {
	if s, ok := payload[key].(string); ok {
		return strings.TrimSpace(s)
	}
	return ""
}

// shortRef keeps the first block of a uuid, which is what customers see in the app.
func shortRef(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return strings.ToUpper(id[:i])
	}
	return strings.ToUpper(id)
}
