package transcode

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strconv"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
)

// suggestionFields is the per-variant required-field table. A single
// generic check walks it instead of nesting a conditional per field.
// Variants whose content is a bare string (reply, share_location) have
// no entry. The location variant additionally needs lat_long or query,
// checked after the table.
var suggestionFields = map[string][]string{
	model.SuggestionURL:      {"url", "text"},
	model.SuggestionDial:     {"number", "text"},
	model.SuggestionLocation: {"text"},
	model.SuggestionCalendar: {"start_time", "end_time", "title", "description", "text"},
	model.SuggestionLogin:    {"text"},
}

// ParsedSuggestion is a validated suggestion with its postback data
// resolved and fallback URLs synthesized, ready for any encoder.
type ParsedSuggestion struct {
	Kind     string
	Text     string
	Postback string

	URL      *model.URLAction
	Dial     *model.DialAction
	Location *model.LocationAction
	Calendar *model.CalendarAction

	// CalendarStart/End are the parsed calendar times, UTC.
	CalendarStart time.Time
	CalendarEnd   time.Time

	// FallbackURL is the non-native rendering of the action: a tel: link
	// for dial, a maps search for location, a calendar download link for
	// calendar_event.
	FallbackURL string
}

func checkFields(raw json.RawMessage, required []string) (map[string]json.RawMessage, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false
	}
	for _, f := range required {
		v, ok := fields[f]
		if !ok || string(v) == "null" {
			return nil, false
		}
	}
	return fields, true
}

// ParseSuggestion validates one suggestion against the requirement table
// and resolves its postback data. Validation stops at the first missing
// field; the caller fails the whole enclosing message.
func ParseSuggestion(s model.Suggestion, calendarBase string) (*ParsedSuggestion, error) {
	if s.MediaType == "" || len(s.Content) == 0 {
		return nil, invalidMessage()
	}

	if required, ok := suggestionFields[s.MediaType]; ok {
		if _, ok := checkFields(s.Content, required); !ok {
			return nil, invalidMessage()
		}
	}

	p := &ParsedSuggestion{Kind: s.MediaType}

	switch s.MediaType {
	case model.SuggestionText, model.SuggestionShareLoc:
		text, ok := contentString(s.Content)
		if !ok || text == "" {
			return nil, invalidMessage()
		}
		p.Text = text

	case model.SuggestionURL:
		var a model.URLAction
		if err := json.Unmarshal(s.Content, &a); err != nil {
			return nil, invalidMessage()
		}
		p.URL = &a
		p.Text = a.Text

	case model.SuggestionDial:
		var a model.DialAction
		if err := json.Unmarshal(s.Content, &a); err != nil {
			return nil, invalidMessage()
		}
		p.Dial = &a
		p.Text = a.Text
		p.FallbackURL = "tel:" + a.Number

	case model.SuggestionLocation:
		var a model.LocationAction
		if err := json.Unmarshal(s.Content, &a); err != nil {
			return nil, invalidMessage()
		}
		if a.LatLong == nil && a.Query == "" {
			return nil, invalidMessage()
		}
		p.Location = &a
		p.Text = a.Text
		p.FallbackURL = mapsSearchURL(&a)

	case model.SuggestionCalendar:
		var a model.CalendarAction
		if err := json.Unmarshal(s.Content, &a); err != nil {
			return nil, invalidMessage()
		}
		start, okStart := parseTimestamp(a.StartTime)
		end, okEnd := parseTimestamp(a.EndTime)
		if !okStart || !okEnd {
			return nil, invalidMessage()
		}
		p.Calendar = &a
		p.Text = a.Text
		p.CalendarStart = start.UTC()
		p.CalendarEnd = end.UTC()
		p.FallbackURL = CalendarFallbackURL(calendarBase, &a, start, end)

	case model.SuggestionLogin:
		var a model.LoginAction
		if err := json.Unmarshal(s.Content, &a); err != nil {
			return nil, invalidMessage()
		}
		p.Text = a.Text

	default:
		return nil, invalidMessage()
	}

	if s.Postback != nil {
		p.Postback = *s.Postback
	} else {
		p.Postback = p.Text
	}

	return p, nil
}

// parseSelect validates a select composite: base media type, base
// content and every option, failing fast on the first invalid field.
func parseSelect(raw json.RawMessage, calendarBase string) (*model.SelectContent, []*ParsedSuggestion, error) {
	var sel model.SelectContent
	if err := json.Unmarshal(raw, &sel); err != nil {
		return nil, nil, invalidMessage()
	}
	if sel.MediaType == "" || len(sel.Content) == 0 || sel.Options == nil {
		return nil, nil, invalidMessage()
	}
	switch sel.MediaType {
	case model.MediaText, model.MediaRichCard, model.MediaFile:
	default:
		return nil, nil, invalidMessage()
	}

	parsed := make([]*ParsedSuggestion, 0, len(sel.Options))
	for _, opt := range sel.Options {
		p, err := ParseSuggestion(opt, calendarBase)
		if err != nil {
			return nil, nil, err
		}
		parsed = append(parsed, p)
	}
	return &sel, parsed, nil
}

// mapsSearchURL synthesizes a map-search link from a location action,
// preferring the free-text query over coordinates.
func mapsSearchURL(a *model.LocationAction) string {
	if a.Query != "" {
		return "https://www.google.com/maps/search/?api=1&query=" + url.QueryEscape(a.Query)
	}
	lat := strconv.FormatFloat(a.LatLong.Latitude, 'f', -1, 64)
	lng := strconv.FormatFloat(a.LatLong.Longitude, 'f', -1, 64)
	return "https://www.google.com/maps/search/?api=1&query=" + lat + "," + lng
}

// calendarToken is the opaque payload behind a calendar download link.
type calendarToken struct {
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// CalendarFallbackURL builds the calendar-file download link used on
// channels without a native calendar action. The token is a urlsafe
// base64 encoding of the event's epoch bounds, title and description.
func CalendarFallbackURL(base string, a *model.CalendarAction, start, end time.Time) string {
	data, _ := json.Marshal(calendarToken{
		Start:       start.Unix(),
		End:         end.Unix(),
		Title:       a.Title,
		Description: a.Description,
	})
	return base + "/calendar_event/" + base64.URLEncoding.EncodeToString(data)
}

// DecodeCalendarToken reverses CalendarFallbackURL's token for the
// download endpoint.
func DecodeCalendarToken(token string) (start, end time.Time, title, description string, err error) {
	raw, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, time.Time{}, "", "", err
	}
	var tok calendarToken
	if err := json.Unmarshal(raw, &tok); err != nil {
		return time.Time{}, time.Time{}, "", "", err
	}
	return time.Unix(tok.Start, 0).UTC(), time.Unix(tok.End, 0).UTC(), tok.Title, tok.Description, nil
}

// loginChallenge generates the random per-request challenge token for a
// login_challenge action.
func loginChallenge() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}
