package model

import (
	"encoding/json"
	"errors"
	"time"
)

// Direction says which way a message travels relative to the platform.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Channel is one external messaging provider integration.
type Channel string

const (
	ChannelGBM Channel = "google-business-messaging"
	ChannelRCS Channel = "rcs"
	ChannelSMS Channel = "msisdn"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelGBM, ChannelRCS, ChannelSMS:
		return true
	}
	return false
}

// MessageState is the lifecycle state of a message.
type MessageState string

const (
	StateAccepted   MessageState = "accepted"
	StateDispatched MessageState = "dispatched"
	StateDelivered  MessageState = "delivered"
	StateRead       MessageState = "read"
	StateFailed     MessageState = "failed"
)

// rank orders the forward progression accepted < dispatched < delivered < read.
// Failed sits outside the ranking and is handled separately.
func (s MessageState) rank() int {
	switch s {
	case StateAccepted:
		return 0
	case StateDispatched:
		return 1
	case StateDelivered:
		return 2
	case StateRead:
		return 3
	}
	return -1
}

// Terminal reports whether no further transition may leave s.
func (s MessageState) Terminal() bool {
	return s == StateRead || s == StateFailed
}

// CanTransition reports whether moving from → to is a legal state change.
// Failed is reachable from any non-terminal state; everything else must
// move strictly forward in the ranking. Duplicate or stale receipts that
// would move a message backwards are therefore rejected here.
func CanTransition(from, to MessageState) bool {
	if from.Terminal() {
		return false
	}
	if to == StateFailed {
		return true
	}
	return to.rank() > from.rank()
}

// Metadata is the free-form provenance mapping carried on every message
// (locale, transport used, entry point and similar).
type Metadata map[string]string

const (
	// MetaTransport records which transport actually carried the message.
	MetaTransport = "msisdn.transport"
	// MetaTransportOverride is a sender-declared desired transport.
	MetaTransportOverride = "msisdn.transport_override"
	// MetaPostbackData carries the original postback payload on synthetic
	// text replies decoded from suggestion responses.
	MetaPostbackData = "postback_data"
	// MetaVSMS records whether the recipient has Verified SMS enabled.
	MetaVSMS = "msisdn.vsms"
)

const (
	TransportSMS = "sms"
	TransportRCS = "rcs"
)

type Message struct {
	ID                     string          `json:"id"`
	Direction              Direction       `json:"direction"`
	State                  MessageState    `json:"state"`
	BrandID                string          `json:"brand"`
	RepresentativeID       *string         `json:"representative"`
	Channel                Channel         `json:"platform"`
	PlatformConversationID string          `json:"platform_conversation_id"`
	PlatformMessageID      string          `json:"platform_message_id,omitempty"`
	PlatformDedupID        string          `json:"-"`
	ClientMessageID        *string         `json:"client_message_id"`
	Timestamp              time.Time       `json:"timestamp"`
	Metadata               Metadata        `json:"metadata"`
	MediaType              string          `json:"media_type"`
	Content                json.RawMessage `json:"content"`
	ErrorDescription       string          `json:"error_description,omitempty"`
}

// SetMeta assigns a metadata key, allocating the map on first use.
func (m *Message) SetMeta(key, value string) {
	if m.Metadata == nil {
		m.Metadata = Metadata{}
	}
	m.Metadata[key] = value
}

// Meta returns the metadata value for key, or "" when absent.
func (m *Message) Meta(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// MessageCreateRequest is the input for submitting an outgoing message.
type MessageCreateRequest struct {
	BrandID                string
	RepresentativeID       *string
	Channel                Channel
	PlatformConversationID string
	ClientMessageID        *string
	MediaType              string
	Content                json.RawMessage
	Metadata               Metadata
}

func (p MessageCreateRequest) Validate() error {
	if p.BrandID == "" {
		return errors.New("brand is required")
	}
	if !p.Channel.Valid() {
		return errors.New("unknown platform")
	}
	if p.PlatformConversationID == "" {
		return errors.New("platform_conversation_id is required")
	}
	if p.MediaType == "" {
		return errors.New("media_type is required")
	}
	return nil
}

// MessageFilter controls List queries.
type MessageFilter struct {
	BrandID        *string
	Channel        *Channel
	ConversationID *string
	States         []MessageState
	From           *time.Time
	To             *time.Time
	Limit          int
	Offset         int
	Desc           bool
}
