package model

import "encoding/json"

// Media types carried in Message.MediaType. Content shape depends on the
// tag; see the typed payloads below.
const (
	MediaText      = "text"
	MediaRichCard  = "rich_card"
	MediaFile      = "file"
	MediaChatState = "chat_state"
	MediaLocation  = "location"
	MediaPostback  = "postback"
	MediaSelect    = "select"
	MediaSurvey    = "gbm_survey"
	MediaOAuth     = "oauth"
)

// Chat state signals, both directions.
const (
	ChatStateComposing            = "composing"
	ChatStatePaused               = "paused"
	ChatStateRequestLiveAgent     = "request_live_agent"
	ChatStateRepresentativeJoined = "representative_joined"
	ChatStateRepresentativeLeft   = "representative_left"
)

type ChatStateContent struct {
	State string `json:"state"`
}

type FileContent struct {
	URL       string  `json:"url"`
	MediaType string  `json:"media_type,omitempty"`
	Title     *string `json:"title,omitempty"`
	Text      *string `json:"text,omitempty"`
	ForceNew  bool    `json:"force_new,omitempty"`
}

// PostbackContent is an inbound suggestion/action response.
type PostbackContent struct {
	RefMessageID *string `json:"ref_message_id"`
	Data         string  `json:"data"`
	Text         string  `json:"text"`
	ActionType   string  `json:"action_type"`
}

const (
	PostbackReply  = "reply"
	PostbackAction = "action"
)

// OAuthContent is an inbound authentication result.
type OAuthContent struct {
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// SelectContent is a "select" composite: base content plus an ordered
// list of suggestions presented to the recipient.
type SelectContent struct {
	MediaType string          `json:"media_type"`
	Content   json.RawMessage `json:"content"`
	Options   []Suggestion    `json:"options"`
}

// Suggestion kinds carried in Suggestion.MediaType.
const (
	SuggestionText      = "text"
	SuggestionURL       = "url"
	SuggestionDial      = "dial"
	SuggestionLocation  = "location"
	SuggestionShareLoc  = "share_location"
	SuggestionCalendar  = "calendar_event"
	SuggestionLogin     = "login_challenge"
)

// Suggestion is one call-to-action attached to a select message. Content
// shape depends on MediaType. Postback, when set, overrides the default
// postback data for the option.
type Suggestion struct {
	MediaType string          `json:"media_type"`
	Content   json.RawMessage `json:"content"`
	Postback  *string         `json:"postback,omitempty"`
}

type URLAction struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type DialAction struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type LatLong struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type LocationAction struct {
	Text    string   `json:"text"`
	LatLong *LatLong `json:"lat_long,omitempty"`
	Query   string   `json:"query,omitempty"`
}

type CalendarAction struct {
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Text        string `json:"text"`
}

type LoginAction struct {
	Text string `json:"text"`
}

// TextContent marshals a plain string content payload.
func TextContent(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// JSONContent marshals any typed content payload.
func JSONContent(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}
