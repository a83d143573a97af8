// Package transcode maps the unified message content model to and from
// the three provider wire formats. All functions are pure: they never
// call a provider and never mutate persisted state. Malformed content is
// reported as a *ValidationError which the caller converts into the
// message's failed state.
package transcode

import (
	"encoding/json"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

// ValidationError marks content that can never be dispatched. It is
// terminal: the enclosing message fails before any provider call.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// invalidMessage is the generic failure attached to malformed content.
// The wording is part of the tenant-visible contract.
func invalidMessage() *ValidationError {
	return &ValidationError{Reason: "Invalid message"}
}

// IsValidation reports whether err is a content validation failure, as
// opposed to a transient encoding problem.
func IsValidation(err error) bool {
	_, ok := err.(*ValidationError)
	return ok
}

// EventKind classifies a decoded inbound webhook event.
type EventKind string

const (
	// EventNone is an event shape the gateway does not consume.
	// Unrecognized provider additions decode to this, not to an error.
	EventNone EventKind = "none"
	// EventMessage is a new inbound message to store and relay.
	EventMessage EventKind = "message"
	// EventReceipt is a delivery/read signal for a previously sent message.
	EventReceipt EventKind = "receipt"
	// EventCapability is an asynchronous capability callback.
	EventCapability EventKind = "capability"
)

// Receipt correlates a provider receipt with a sent message. Exactly one
// of PlatformMessageID (provider-assigned id) or MessageID (our own id,
// used by providers that echo it back) is set.
type Receipt struct {
	PlatformMessageID string
	MessageID         string
	State             model.MessageState
	ErrorDescription  string
	Metadata          model.Metadata
}

// CapabilityUpdate is a pushed capability result for one address.
type CapabilityUpdate struct {
	MSISDN   string
	Enabled  bool
	Features []string
}

// InboundEvent is one decoded webhook event in the unified model.
type InboundEvent struct {
	Kind    EventKind
	Message *model.Message
	// RefPlatformMessageID is set on postback messages: the provider id
	// of the message the user responded to. The ingestor resolves it to
	// a stored message before persisting.
	RefPlatformMessageID string
	Receipt              Receipt
	Capability           CapabilityUpdate
}

// parseTimestamp accepts the timestamp shapes the providers actually
// send. RFC 3339 with or without sub-second precision covers all three.
func parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func contentString(raw json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", false
	}
	return s, true
}
