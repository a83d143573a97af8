package transcode

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

// SMSRequest is an outbound message rendered for a carrier SMS/MMS
// API: a text body and an optional media attachment. Skip marks
// content with no SMS representation that should be dropped without
// failing, such as chat states.
type SMSRequest struct {
	Body     string
	MediaURL string
	Skip     bool
}

// EncodeSMS renders an outbound message as carrier SMS content.
// Suggestions have no native form here; options that carry a link or a
// number are appended to the body as "text: value" lines, plain reply
// options are omitted.
func EncodeSMS(msg *model.Message, calendarBase string) (*SMSRequest, error) {
	switch msg.MediaType {
	case model.MediaChatState:
		return &SMSRequest{Skip: true}, nil

	case model.MediaText:
		text, ok := contentString(msg.Content)
		if !ok {
			return nil, invalidMessage()
		}
		return &SMSRequest{Body: text}, nil

	case model.MediaFile:
		var fc model.FileContent
		if err := json.Unmarshal(msg.Content, &fc); err != nil || fc.URL == "" {
			return nil, invalidMessage()
		}
		return &SMSRequest{MediaURL: fc.URL}, nil

	case model.MediaSelect:
		sel, options, err := parseSelect(msg.Content, calendarBase)
		if err != nil {
			return nil, err
		}
		out := &SMSRequest{}
		var body strings.Builder
		switch sel.MediaType {
		case model.MediaText:
			text, ok := contentString(sel.Content)
			if !ok {
				return nil, invalidMessage()
			}
			body.WriteString(text)
			body.WriteString("\n")
		case model.MediaFile:
			var fc model.FileContent
			if err := json.Unmarshal(sel.Content, &fc); err != nil || fc.URL == "" {
				return nil, invalidMessage()
			}
			out.MediaURL = fc.URL
		default:
			return nil, invalidMessage()
		}
		for _, opt := range options {
			line, err := smsOptionLine(opt)
			if err != nil {
				return nil, err
			}
			body.WriteString(line)
		}
		out.Body = body.String()
		return out, nil

	default:
		return nil, invalidMessage()
	}
}

func smsOptionLine(p *ParsedSuggestion) (string, error) {
	switch p.Kind {
	case model.SuggestionText:
		// Reply hints carry no payload worth a line of their own.
		return "", nil
	case model.SuggestionURL:
		return "\n" + p.Text + ": " + p.URL.URL, nil
	case model.SuggestionDial:
		return "\n" + p.Text + ": " + p.Dial.Number, nil
	case model.SuggestionLocation, model.SuggestionCalendar:
		return "\n" + p.Text + ": " + p.FallbackURL, nil
	default:
		// share_location and login_challenge cannot be rendered as text.
		return "", invalidMessage()
	}
}

// DecodeSMS translates an inbound carrier message webhook into an
// incoming text message. sid seeds the dedup key so a redelivered
// webhook maps to the same message.
func DecodeSMS(from, sid, body, brandID string) []InboundEvent {
	msg := &model.Message{
		Direction:              model.DirectionIncoming,
		State:                  model.StateAccepted,
		BrandID:                brandID,
		Channel:                model.ChannelSMS,
		PlatformConversationID: from,
		PlatformDedupID:        "sms-message:" + sid,
		Timestamp:              time.Now().UTC(),
		MediaType:              model.MediaText,
		Content:                model.TextContent(body),
		Metadata:               model.Metadata{model.MetaTransport: model.TransportSMS},
	}
	return []InboundEvent{{Kind: EventMessage, Message: msg}}
}

// DecodeSMSStatus translates a carrier delivery-status callback into a
// receipt keyed by the carrier message SID. Statuses with no state
// mapping decode to no events.
func DecodeSMSStatus(sid, status string) []InboundEvent {
	r := Receipt{PlatformMessageID: sid}
	switch status {
	case "delivered":
		r.State = model.StateDelivered
	case "read":
		r.State = model.StateRead
	case "failed", "undelivered":
		r.State = model.StateFailed
		r.ErrorDescription = "Message delivery failed"
	default:
		return nil
	}
	return []InboundEvent{{Kind: EventReceipt, Receipt: r}}
}
