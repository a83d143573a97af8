package transcode

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

const icsTimeLayout = "20060102T150405Z"

// icsEscape escapes text per RFC 5545 §3.3.11.
func icsEscape(s string) string {
	r := strings.NewReplacer("\\", "\\\\", ";", "\\;", ",", "\\,", "\r\n", "\\n", "\n", "\\n")
	return r.Replace(s)
}

// RenderICS renders a calendar token's event as an iCalendar file for
// the download endpoint behind calendar fallback links.
func RenderICS(start, end time.Time, title, description string) []byte {
	var b strings.Builder
	b.WriteString("BEGIN:VCALENDAR\r\n")
	b.WriteString("VERSION:2.0\r\n")
	b.WriteString("PRODID:-//messaging-gateway//EN\r\n")
	b.WriteString("BEGIN:VEVENT\r\n")
	b.WriteString("UID:" + uuid.NewString() + "\r\n")
	b.WriteString("DTSTAMP:" + time.Now().UTC().Format(icsTimeLayout) + "\r\n")
	b.WriteString("DTSTART:" + start.UTC().Format(icsTimeLayout) + "\r\n")
	b.WriteString("DTEND:" + end.UTC().Format(icsTimeLayout) + "\r\n")
	b.WriteString("SUMMARY:" + icsEscape(title) + "\r\n")
	b.WriteString("DESCRIPTION:" + icsEscape(description) + "\r\n")
	b.WriteString("END:VEVENT\r\n")
	b.WriteString("END:VCALENDAR\r\n")
	return []byte(b.String())
}
