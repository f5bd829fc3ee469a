package common

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// SMSSender delivers short text messages to a phone number.
type SMSSender interface {
	Send(ctx context.Context, phone, message string) error
}

// InMemorySMS records messages for tests.
type InMemorySMS struct {
	mu     sync.Mutex
	Outbox []SMS
}

// SMS is a single message captured by InMemorySMS.
type SMS struct {
	Phone   string
	Message string
}

// Send records the message in memory.
func (m *InMemorySMS) Send(_ context.Context, phone, message string) error {
	if m == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outbox = append(m.Outbox, SMS{Phone: phone, Message: message})
	return nil
}

// Last returns the most recent message, if any.
func (m *InMemorySMS) Last() (SMS, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Outbox) == 0 {
		return SMS{}, false
	}
	return m.Outbox[len(m.Outbox)-1], true
}

// LogSMSSender writes messages to the log instead of an SMS provider. Development only.
type LogSMSSender struct {
	Logger zerolog.Logger
}

// Send implements SMSSender.
func (l LogSMSSender) Send(_ context.Context, phone, message string) error {
	l.Logger.Info().Str("phone", MaskPhone(phone)).Str("message", message).Msg("sms_outbound")
	return nil
}

// MaskPhone hides all but the last four digits.
func MaskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	masked := make([]byte, len(phone))
	for i := range phone {
		if i < len(phone)-4 {
			masked[i] = '*'
		} else {
			masked[i] = phone[i]
		}
	}
	return string(masked)
}
