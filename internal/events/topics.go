package events

// Topic constants for domain events emitted by checkout and returns.
const (
	TopicOrderPlaced     = "order.placed"
	TopicPaymentVerified = "payment.verified"
	TopicPaymentFailed   = "payment.failed"
	TopicReturnRequested = "return.requested"
	TopicReturnCancelled = "return.cancelled"
)

// DefaultTopics returns the topics that produce customer notifications.
func DefaultTopics() []string {
	return []string{
		TopicOrderPlaced,
		TopicPaymentVerified,
		TopicPaymentFailed,
		TopicReturnRequested,
		TopicReturnCancelled,
	}
}
