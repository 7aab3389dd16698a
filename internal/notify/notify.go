package notify

import "context"

// Event names the lifecycle moments that trigger a notification.
type Event string

const (
	EventAssignmentCreated  Event = "assignment.created"
	EventCompletionRecorded Event = "completion.recorded"
	EventSignoffRecorded    Event = "signoff.recorded"
	EventUserProvisioned    Event = "user.provisioned"
)

// Message is one outbound email. Bodies are prepared by the caller; senders
// only deliver.
type Message struct {
	Event    Event
	ToName   string
	ToEmail  string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a single message. A returned error is recorded in the audit
// trail by the caller and never propagated into the mutation that raised the
// event.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
