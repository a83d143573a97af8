package queue

// DispatchJob asks the dispatcher to route one outbound message to its
// platform.
type DispatchJob struct {
	MessageID string `json:"message_id"`
}

// NotifyJob asks the notifier to deliver one message to the owning
// brand's webhook.
type NotifyJob struct {
	MessageID string `json:"message_id"`
}
