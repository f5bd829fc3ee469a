package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/storefront-checkout/internal/events"
)

// TypeEventSMS is the asynq task type carrying one domain event to the SMS worker.
const TypeEventSMS = "notify:event_sms"

// Enqueuer is the subset of *asynq.Client used to schedule tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskNotifier turns emitted events into asynq tasks.
type TaskNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
	// Topics toggles delivery per topic; topics missing from the map are sent.
	Topics map[string]bool
}

// NewEventTask encodes ev as a TypeEventSMS task.
func NewEventTask(ev events.Event) (*asynq.Task, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("notify: encode event: %w", err)
	}
	return asynq.NewTask(TypeEventSMS, payload), nil
}

// Notify implements events.Notifier.
func (n TaskNotifier) Notify(ctx context.Context, ev events.Event) error {
	if n.Client == nil {
		return nil
	}
	if enabled, ok := n.Topics[ev.Topic]; ok && !enabled {
		return nil
	}
	task, err := NewEventTask(ev)
	if err != nil {
		return err
	}
	opts := []asynq.Option{asynq.TaskID(ev.ID)}
	if n.Queue != "" {
		opts = append(opts, asynq.Queue(n.Queue))
	}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	if _, err := n.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("notify: enqueue %s: %w", ev.Topic, err)
	}
	return nil
}
