package transcode

import (
	"encoding/json"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

// RBM wire structures. Field names follow the RCS Business Messaging
// REST surface.
type rbmLatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type rbmReply struct {
	Text         string `json:"text"`
	PostbackData string `json:"postbackData"`
}

type rbmOpenURL struct {
	URL string `json:"url"`
}

type rbmDial struct {
	PhoneNumber string `json:"phoneNumber"`
}

type rbmViewLocation struct {
	LatLong *rbmLatLong `json:"latLong,omitempty"`
	Query   string      `json:"query,omitempty"`
}

type rbmCalendarEvent struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

type rbmAction struct {
	Text            string            `json:"text"`
	PostbackData    string            `json:"postbackData"`
	FallbackURL     string            `json:"fallbackUrl,omitempty"`
	OpenURLAction   *rbmOpenURL       `json:"openUrlAction,omitempty"`
	DialAction      *rbmDial          `json:"dialAction,omitempty"`
	ViewLocation    *rbmViewLocation  `json:"viewLocationAction,omitempty"`
	ShareLocation   *struct{}         `json:"shareLocationAction,omitempty"`
	CreateCalendar  *rbmCalendarEvent `json:"createCalendarEventAction,omitempty"`
}

type rbmOAuth struct {
	ClientID      string   `json:"clientId"`
	CodeChallenge string   `json:"codeChallenge"`
	Scopes        []string `json:"scopes"`
}

type rbmAuthRequest struct {
	OAuth rbmOAuth `json:"oauth"`
}

type rbmSuggestion struct {
	Reply       *rbmReply       `json:"reply,omitempty"`
	Action      *rbmAction      `json:"action,omitempty"`
	AuthRequest *rbmAuthRequest `json:"authenticationRequest,omitempty"`
}

type rbmContentInfo struct {
	FileURL      string `json:"fileUrl"`
	ForceRefresh bool   `json:"forceRefresh"`
}

type rbmContentMessage struct {
	Text        string          `json:"text,omitempty"`
	RichCard    json.RawMessage `json:"richCard,omitempty"`
	ContentInfo *rbmContentInfo `json:"contentInfo,omitempty"`
	Suggestions []rbmSuggestion `json:"suggestions,omitempty"`
}

type rbmAgentMessage struct {
	ContentMessage rbmContentMessage `json:"contentMessage"`
}

type rbmAgentEvent struct {
	EventType string `json:"eventType"`
}

// RCSRequest kinds. KindNone means the message maps to nothing on the
// wire and should be skipped without failing.
const (
	RCSKindNone    = ""
	RCSKindMessage = "message"
	RCSKindEvent   = "event"
)

// RCSRequest is an encoded RBM call: an agent message or an agent
// event, with its serialized body.
type RCSRequest struct {
	Kind string
	Body []byte
}

// EncodeRCS renders an outbound message as an RBM request body.
// clientID seeds login_challenge suggestions; calendarBase seeds
// calendar fallback links. A ValidationError means the message content
// cannot be expressed and the message should be failed.
func EncodeRCS(msg *model.Message, clientID, calendarBase string) (*RCSRequest, error) {
	switch msg.MediaType {
	case model.MediaChatState:
		var cs model.ChatStateContent
		if err := json.Unmarshal(msg.Content, &cs); err != nil {
			return nil, invalidMessage()
		}
		switch cs.State {
		case model.ChatStateComposing:
			body, _ := json.Marshal(rbmAgentEvent{EventType: "IS_TYPING"})
			return &RCSRequest{Kind: RCSKindEvent, Body: body}, nil
		case model.ChatStatePaused, model.ChatStateRepresentativeJoined, model.ChatStateRepresentativeLeft:
			return &RCSRequest{Kind: RCSKindNone}, nil
		default:
			return nil, invalidMessage()
		}

	case model.MediaText:
		text, ok := contentString(msg.Content)
		if !ok {
			return nil, invalidMessage()
		}
		body, _ := json.Marshal(rbmAgentMessage{ContentMessage: rbmContentMessage{Text: text}})
		return &RCSRequest{Kind: RCSKindMessage, Body: body}, nil

	case model.MediaRichCard:
		body, _ := json.Marshal(rbmAgentMessage{ContentMessage: rbmContentMessage{RichCard: msg.Content}})
		return &RCSRequest{Kind: RCSKindMessage, Body: body}, nil

	case model.MediaFile:
		info, err := rcsContentInfo(msg.Content)
		if err != nil {
			return nil, err
		}
		body, _ := json.Marshal(rbmAgentMessage{ContentMessage: rbmContentMessage{ContentInfo: info}})
		return &RCSRequest{Kind: RCSKindMessage, Body: body}, nil

	case model.MediaSelect:
		sel, options, err := parseSelect(msg.Content, calendarBase)
		if err != nil {
			return nil, err
		}
		cm := rbmContentMessage{}
		switch sel.MediaType {
		case model.MediaText:
			text, ok := contentString(sel.Content)
			if !ok {
				return nil, invalidMessage()
			}
			cm.Text = text
		case model.MediaRichCard:
			cm.RichCard = sel.Content
		case model.MediaFile:
			info, err := rcsContentInfo(sel.Content)
			if err != nil {
				return nil, err
			}
			cm.ContentInfo = info
		}
		cm.Suggestions = make([]rbmSuggestion, 0, len(options))
		for _, opt := range options {
			cm.Suggestions = append(cm.Suggestions, encodeRCSSuggestion(opt, clientID))
		}
		body, _ := json.Marshal(rbmAgentMessage{ContentMessage: cm})
		return &RCSRequest{Kind: RCSKindMessage, Body: body}, nil

	default:
		return nil, invalidMessage()
	}
}

func rcsContentInfo(raw json.RawMessage) (*rbmContentInfo, error) {
	var fc model.FileContent
	if err := json.Unmarshal(raw, &fc); err != nil || fc.URL == "" {
		return nil, invalidMessage()
	}
	return &rbmContentInfo{FileURL: fc.URL, ForceRefresh: fc.ForceNew}, nil
}

func encodeRCSSuggestion(p *ParsedSuggestion, clientID string) rbmSuggestion {
	switch p.Kind {
	case model.SuggestionText:
		return rbmSuggestion{Reply: &rbmReply{Text: p.Text, PostbackData: p.Postback}}

	case model.SuggestionURL:
		return rbmSuggestion{Action: &rbmAction{
			Text:          p.Text,
			PostbackData:  p.Postback,
			OpenURLAction: &rbmOpenURL{URL: p.URL.URL},
		}}

	case model.SuggestionDial:
		return rbmSuggestion{Action: &rbmAction{
			Text:         p.Text,
			PostbackData: p.Postback,
			FallbackURL:  p.FallbackURL,
			DialAction:   &rbmDial{PhoneNumber: p.Dial.Number},
		}}

	case model.SuggestionLocation:
		view := &rbmViewLocation{Query: p.Location.Query}
		if p.Location.LatLong != nil {
			view.LatLong = &rbmLatLong{
				Latitude:  p.Location.LatLong.Latitude,
				Longitude: p.Location.LatLong.Longitude,
			}
		}
		return rbmSuggestion{Action: &rbmAction{
			Text:         p.Text,
			PostbackData: p.Postback,
			FallbackURL:  p.FallbackURL,
			ViewLocation: view,
		}}

	case model.SuggestionShareLoc:
		return rbmSuggestion{Action: &rbmAction{
			Text:          p.Text,
			PostbackData:  p.Postback,
			ShareLocation: &struct{}{},
		}}

	case model.SuggestionCalendar:
		return rbmSuggestion{Action: &rbmAction{
			Text:         p.Text,
			PostbackData: p.Postback,
			FallbackURL:  p.FallbackURL,
			CreateCalendar: &rbmCalendarEvent{
				StartTime:   p.CalendarStart.Format("2006-01-02T15:04:05Z"),
				EndTime:     p.CalendarEnd.Format("2006-01-02T15:04:05Z"),
				Title:       p.Calendar.Title,
				Description: p.Calendar.Description,
			},
		}}

	case model.SuggestionLogin:
		return rbmSuggestion{AuthRequest: &rbmAuthRequest{OAuth: rbmOAuth{
			ClientID:      clientID,
			CodeChallenge: loginChallenge(),
			Scopes:        []string{"messaging-oauth"},
		}}}
	}
	return rbmSuggestion{}
}

// Inbound pubsub payloads.
type rbmInboundFilePayload struct {
	FileURI  string `json:"fileUri"`
	FileName string `json:"fileName"`
	MimeType string `json:"mimeType"`
}

type rbmInboundFile struct {
	Payload rbmInboundFilePayload `json:"payload"`
}

type rbmSuggestionResponse struct {
	Text         string `json:"text"`
	PostbackData string `json:"postbackData"`
}

type rbmInboundMessage struct {
	MessageID          string                 `json:"messageId"`
	SenderPhoneNumber  string                 `json:"senderPhoneNumber"`
	SendTime           string                 `json:"sendTime"`
	Text               *string                `json:"text"`
	UserFile           *rbmInboundFile        `json:"userFile"`
	Location           json.RawMessage        `json:"location"`
	SuggestionResponse *rbmSuggestionResponse `json:"suggestionResponse"`
}

type rbmInboundEvent struct {
	EventID           string `json:"eventId"`
	EventType         string `json:"eventType"`
	MessageID         string `json:"messageId"`
	SenderPhoneNumber string `json:"senderPhoneNumber"`
	SendTime          string `json:"sendTime"`
}

type rbmInboundCapabilities struct {
	PhoneNumber string   `json:"phoneNumber"`
	RBMEnabled  bool     `json:"rbmEnabled"`
	Features    []string `json:"features"`
}

// DecodeRCS translates a verified pubsub payload into inbound events.
// attrType is the pubsub message attribute distinguishing user
// messages, agent events and capability callbacks. Unknown payload
// shapes decode to no events rather than an error.
func DecodeRCS(attrType string, data []byte, brandID string) ([]InboundEvent, error) {
	switch attrType {
	case "message":
		var in rbmInboundMessage
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		ts, ok := parseTimestamp(in.SendTime)
		if !ok {
			ts = time.Now().UTC()
		}
		msg := &model.Message{
			Direction:              model.DirectionIncoming,
			State:                  model.StateAccepted,
			BrandID:                brandID,
			Channel:                model.ChannelRCS,
			PlatformConversationID: in.SenderPhoneNumber,
			PlatformDedupID:        in.MessageID,
			Timestamp:              ts,
			Metadata:               model.Metadata{},
		}
		switch {
		case in.Text != nil:
			msg.MediaType = model.MediaText
			msg.Content = model.TextContent(*in.Text)
		case in.UserFile != nil:
			msg.MediaType = model.MediaFile
			msg.Content = model.JSONContent(model.FileContent{
				URL:       in.UserFile.Payload.FileURI,
				MediaType: in.UserFile.Payload.MimeType,
			})
		case in.Location != nil:
			msg.MediaType = model.MediaLocation
			msg.Content = in.Location
		case in.SuggestionResponse != nil:
			msg.MediaType = model.MediaText
			msg.Content = model.TextContent(in.SuggestionResponse.Text)
			msg.SetMeta(model.MetaPostbackData, in.SuggestionResponse.PostbackData)
		default:
			return nil, nil
		}
		return []InboundEvent{{Kind: EventMessage, Message: msg}}, nil

	case "event":
		var in rbmInboundEvent
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		switch in.EventType {
		case "IS_TYPING":
			ts, ok := parseTimestamp(in.SendTime)
			if !ok {
				ts = time.Now().UTC()
			}
			msg := &model.Message{
				Direction:              model.DirectionIncoming,
				State:                  model.StateAccepted,
				BrandID:                brandID,
				Channel:                model.ChannelRCS,
				PlatformConversationID: in.SenderPhoneNumber,
				PlatformDedupID:        in.EventID,
				Timestamp:              ts,
				MediaType:              model.MediaChatState,
				Content:                model.JSONContent(model.ChatStateContent{State: model.ChatStateComposing}),
				Metadata:               model.Metadata{},
			}
			return []InboundEvent{{Kind: EventMessage, Message: msg}}, nil
		case "DELIVERED":
			return []InboundEvent{{Kind: EventReceipt, Receipt: Receipt{
				MessageID: in.MessageID,
				State:     model.StateDelivered,
			}}}, nil
		case "READ":
			return []InboundEvent{{Kind: EventReceipt, Receipt: Receipt{
				MessageID: in.MessageID,
				State:     model.StateRead,
			}}}, nil
		}
		return nil, nil

	case "capabilities":
		var in rbmInboundCapabilities
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, err
		}
		ev := InboundEvent{Kind: EventCapability, Capability: CapabilityUpdate{
			MSISDN:  in.PhoneNumber,
			Enabled: in.RBMEnabled,
		}}
		if in.RBMEnabled {
			ev.Capability.Features = in.Features
		}
		return []InboundEvent{ev}, nil
	}
	return nil, nil
}
