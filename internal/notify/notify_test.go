package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/storefront-checkout/internal/common"
	"github.com/noah-isme/storefront-checkout/internal/events"
	"github.com/noah-isme/storefront-checkout/internal/notify"
)

type fakeEnqueuer struct {
	mu    sync.Mutex
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: uuid.NewString()}, nil
}

func event(topic string, payload map[string]any) events.Event {
	raw, _ := json.Marshal(payload)
	return events.Event{ID: uuid.NewString(), Topic: topic, AggregateID: uuid.NewString(), Payload: raw, OccurredAt: time.Now()}
}

func TestTaskNotifierEnqueues(t *testing.T) {
	client := &fakeEnqueuer{}
	n := notify.TaskNotifier{Client: client, Queue: "notifications", MaxRetry: 3}

	ev := event(events.TopicOrderPlaced, map[string]any{"order_id": "abc"})
	require.NoError(t, n.Notify(context.Background(), ev))
	require.Len(t, client.tasks, 1)
	require.Equal(t, notify.TypeEventSMS, client.tasks[0].Type())

	var decoded events.Event
	require.NoError(t, json.Unmarshal(client.tasks[0].Payload(), &decoded))
	require.Equal(t, ev.ID, decoded.ID)
}

func TestTaskNotifierTopicToggleAndConflict(t *testing.T) {
	client := &fakeEnqueuer{}
	n := notify.TaskNotifier{Client: client, Topics: map[string]bool{events.TopicOrderPlaced: false}}
	require.NoError(t, n.Notify(context.Background(), event(events.TopicOrderPlaced, nil)))
	require.Empty(t, client.tasks)

	client.err = asynq.ErrTaskIDConflict
	require.NoError(t, n.Notify(context.Background(), event(events.TopicPaymentVerified, nil)))

	client.err = errors.New("redis down")
	require.ErrorContains(t, n.Notify(context.Background(), event(events.TopicPaymentVerified, nil)), "redis down")
}

func TestSMSHandlerRendersPerTopic(t *testing.T) {
	outbox := &common.InMemorySMS{}
	h := notify.SMSHandler{Sender: outbox, MerchantName: "Kirana", Logger: zerolog.Nop()}

	orderID := "1f2e3d4c-0000-4000-8000-000000000000"
	ev := event(events.TopicOrderPlaced, map[string]any{"phone": "9800000001", "order_id": orderID, "method": "COD", "amount": "INR 490.00"})
	task, err := notify.NewEventTask(ev)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))

	msg, ok := outbox.Last()
	require.True(t, ok)
	require.Equal(t, "9800000001", msg.Phone)
	require.Equal(t, "Kirana: order 1F2E3D4C placed. Please keep INR 490.00 ready on delivery.", msg.Message)

	ev = event(events.TopicPaymentFailed, map[string]any{"phone": "9800000001", "order_id": orderID})
	task, err = notify.NewEventTask(ev)
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	msg, _ = outbox.Last()
	require.Contains(t, msg.Message, "could not confirm payment for order 1F2E3D4C")
}

func TestSMSHandlerSkipsWithoutPhoneAndBadPayload(t *testing.T) {
	outbox := &common.InMemorySMS{}
	h := notify.SMSHandler{Sender: outbox, Logger: zerolog.Nop()}

	task, err := notify.NewEventTask(event(events.TopicPaymentVerified, map[string]any{"order_id": "x"}))
	require.NoError(t, err)
	require.NoError(t, h.ProcessTask(context.Background(), task))
	_, ok := outbox.Last()
	require.False(t, ok)

	err = h.ProcessTask(context.Background(), asynq.NewTask(notify.TypeEventSMS, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}
