package handlers

import (
	"github.com/fasthttp/router"

	"github.com/nimasrn/messaging-gateway/internal/transcode"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
)

// CalendarHandler serves the iCalendar download behind calendar
// fallback links sent over SMS.
type CalendarHandler struct{}

func RegisterCalendarRoutes(e *router.Group, h *CalendarHandler) {
	e.GET("/calendar_event/{token}", h.GetEvent)
}

func NewCalendarHandler() *CalendarHandler {
	return &CalendarHandler{}
}

func (h *CalendarHandler) GetEvent(ctx *xhttp.RequestCtx) {
	token, _ := ctx.UserValue("token").(string)
	start, end, title, description, err := transcode.DecodeCalendarToken(token)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid event token")
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/calendar; charset=utf-8")
	ctx.Response.Header.Set("Content-Disposition", `attachment; filename="event.ics"`)
	ctx.Response.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(transcode.RenderICS(start, end, title, description))
}
