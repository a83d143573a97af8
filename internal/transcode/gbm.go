package transcode

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

// Business Messages wire structures.
type gbmRepresentative struct {
	RepresentativeType string  `json:"representativeType"`
	DisplayName        string  `json:"displayName,omitempty"`
	AvatarImage        *string `json:"avatarImage,omitempty"`
}

type gbmAgentMessage struct {
	Representative gbmRepresentative `json:"representative"`
	MessageID      string            `json:"messageId,omitempty"`
	Text           string            `json:"text,omitempty"`
	RichCard       json.RawMessage   `json:"richCard,omitempty"`
	EventType      string            `json:"eventType,omitempty"`
}

const (
	GBMKindNone    = ""
	GBMKindMessage = "message"
	GBMKindEvent   = "event"
)

// GBMRequest is an encoded Business Messages call.
type GBMRequest struct {
	Kind string
	Body []byte
}

// EncodeGBM renders an outbound message as a Business Messages request
// body. rep is the sending representative; nil means an unnamed bot.
func EncodeGBM(msg *model.Message, rep *model.Representative) (*GBMRequest, error) {
	out := gbmAgentMessage{Representative: gbmRepresentative{RepresentativeType: "BOT"}}
	if rep != nil {
		if !rep.IsBot {
			out.Representative.RepresentativeType = "HUMAN"
		}
		out.Representative.DisplayName = rep.Name
		if rep.AvatarURL != "" {
			avatar := rep.AvatarURL
			out.Representative.AvatarImage = &avatar
		}
	}

	switch msg.MediaType {
	case model.MediaChatState:
		var cs model.ChatStateContent
		if err := json.Unmarshal(msg.Content, &cs); err != nil {
			return nil, invalidMessage()
		}
		switch cs.State {
		case model.ChatStateComposing:
			out.EventType = "TYPING_STARTED"
		case model.ChatStatePaused:
			out.EventType = "TYPING_STOPPED"
		case model.ChatStateRepresentativeJoined:
			out.EventType = "REPRESENTATIVE_JOINED"
		case model.ChatStateRepresentativeLeft:
			out.EventType = "REPRESENTATIVE_LEFT"
		default:
			return nil, invalidMessage()
		}
		body, _ := json.Marshal(out)
		return &GBMRequest{Kind: GBMKindEvent, Body: body}, nil

	case model.MediaText:
		text, ok := contentString(msg.Content)
		if !ok {
			return nil, invalidMessage()
		}
		out.MessageID = msg.ID
		out.Text = text
		body, _ := json.Marshal(out)
		return &GBMRequest{Kind: GBMKindMessage, Body: body}, nil

	case model.MediaRichCard:
		out.MessageID = msg.ID
		out.RichCard = msg.Content
		body, _ := json.Marshal(out)
		return &GBMRequest{Kind: GBMKindMessage, Body: body}, nil

	default:
		return nil, invalidMessage()
	}
}

// Inbound webhook envelope.
type gbmUserInfo struct {
	DisplayName      string `json:"displayName"`
	UserDeviceLocale string `json:"userDeviceLocale"`
}

type gbmContext struct {
	EntryPoint     string      `json:"entryPoint"`
	PlaceID        string      `json:"placeId"`
	ResolvedLocale string      `json:"resolvedLocale"`
	UserInfo       gbmUserInfo `json:"userInfo"`
}

type gbmInboundMessage struct {
	Name string `json:"name"`
	Text string `json:"text"`
}

type gbmReceipt struct {
	Message     string `json:"message"`
	ReceiptType string `json:"receiptType"`
}

type gbmReceipts struct {
	Receipts []gbmReceipt `json:"receipts"`
}

type gbmUserStatus struct {
	IsTyping           *bool `json:"isTyping"`
	RequestedLiveAgent *bool `json:"requestedLiveAgent"`
}

type gbmSuggestionResponse struct {
	Message      string `json:"message"`
	PostbackData string `json:"postbackData"`
	Text         string `json:"text"`
	Type         string `json:"type"`
}

// GBMEnvelope is the decoded webhook body. The handler uses RequestID
// for dedup and Agent to resolve the receiving brand before decoding
// proceeds.
type GBMEnvelope struct {
	RequestID          string                 `json:"requestId"`
	Agent              string                 `json:"agent"`
	ConversationID     string                 `json:"conversationId"`
	SendTime           string                 `json:"sendTime"`
	Context            gbmContext             `json:"context"`
	Message            *gbmInboundMessage     `json:"message"`
	Receipts           *gbmReceipts           `json:"receipts"`
	UserStatus         *gbmUserStatus         `json:"userStatus"`
	SurveyResponse     json.RawMessage        `json:"surveyResponse"`
	SuggestionResponse *gbmSuggestionResponse `json:"suggestionResponse"`
}

func (e *GBMEnvelope) contextMetadata() model.Metadata {
	md := model.Metadata{
		"user_name":   e.Context.UserInfo.DisplayName,
		"locale":      e.Context.ResolvedLocale,
		"user_locale": e.Context.UserInfo.UserDeviceLocale,
		"gbm.agent":   e.Agent,
	}
	if e.Context.PlaceID != "" {
		md["gbm.place_id"] = e.Context.PlaceID
	}
	if e.Context.EntryPoint != "" && e.Context.EntryPoint != "ENTRY_POINT_UNSPECIFIED" {
		md["gbm.entrypoint"] = e.Context.EntryPoint
	}
	return md
}

// DecodeGBM translates a verified webhook envelope into inbound
// events. Unknown envelope shapes decode to no events.
func DecodeGBM(env *GBMEnvelope, brandID string) ([]InboundEvent, error) {
	ts, ok := parseTimestamp(env.SendTime)
	if !ok {
		ts = time.Now().UTC()
	}

	newMessage := func() *model.Message {
		return &model.Message{
			Direction:              model.DirectionIncoming,
			State:                  model.StateAccepted,
			BrandID:                brandID,
			Channel:                model.ChannelGBM,
			PlatformConversationID: env.ConversationID,
			PlatformDedupID:        env.RequestID,
			Timestamp:              ts,
			Metadata:               env.contextMetadata(),
		}
	}

	switch {
	case env.Message != nil:
		msg := newMessage()
		msg.PlatformMessageID = env.Message.Name
		if u, err := url.Parse(env.Message.Text); err == nil && u.Host == "storage.googleapis.com" {
			msg.MediaType = model.MediaFile
			msg.Content = model.JSONContent(model.FileContent{URL: env.Message.Text})
		} else {
			msg.MediaType = model.MediaText
			msg.Content = model.TextContent(env.Message.Text)
		}
		return []InboundEvent{{Kind: EventMessage, Message: msg}}, nil

	case env.Receipts != nil:
		events := make([]InboundEvent, 0, len(env.Receipts.Receipts))
		for _, r := range env.Receipts.Receipts {
			var state model.MessageState
			switch r.ReceiptType {
			case "DELIVERED":
				state = model.StateDelivered
			case "READ":
				state = model.StateRead
			default:
				continue
			}
			events = append(events, InboundEvent{Kind: EventReceipt, Receipt: Receipt{
				PlatformMessageID: r.Message,
				State:             state,
				Metadata:          env.contextMetadata(),
			}})
		}
		return events, nil

	case env.UserStatus != nil:
		var state string
		switch {
		case env.UserStatus.IsTyping != nil && *env.UserStatus.IsTyping:
			state = model.ChatStateComposing
		case env.UserStatus.IsTyping != nil:
			state = model.ChatStatePaused
		case env.UserStatus.RequestedLiveAgent != nil && *env.UserStatus.RequestedLiveAgent:
			state = model.ChatStateRequestLiveAgent
		default:
			return nil, nil
		}
		msg := newMessage()
		msg.MediaType = model.MediaChatState
		msg.Content = model.JSONContent(model.ChatStateContent{State: state})
		return []InboundEvent{{Kind: EventMessage, Message: msg}}, nil

	case env.SurveyResponse != nil:
		msg := newMessage()
		msg.MediaType = model.MediaSurvey
		msg.Content = env.SurveyResponse
		return []InboundEvent{{Kind: EventMessage, Message: msg}}, nil

	case env.SuggestionResponse != nil:
		var actionType string
		switch env.SuggestionResponse.Type {
		case "REPLY":
			actionType = model.PostbackReply
		case "ACTION":
			actionType = model.PostbackAction
		}
		msg := newMessage()
		msg.MediaType = model.MediaPostback
		msg.Content = model.JSONContent(model.PostbackContent{
			Data:       env.SuggestionResponse.PostbackData,
			Text:       env.SuggestionResponse.Text,
			ActionType: actionType,
		})
		return []InboundEvent{{
			Kind:                 EventMessage,
			Message:              msg,
			RefPlatformMessageID: env.SuggestionResponse.Message,
		}}, nil
	}
	return nil, nil
}
