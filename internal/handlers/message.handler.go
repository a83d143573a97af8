package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/services"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
)

type MessageService interface {
	Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error)
	Get(ctx context.Context, id string) (*model.Message, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.CreateMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/{id}", h.GetMessage)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type createMessageRequest struct {
	BrandID                string          `json:"brand"`
	RepresentativeID       *string         `json:"representative"`
	Channel                string          `json:"platform"`
	PlatformConversationID string          `json:"platform_conversation_id"`
	ClientMessageID        *string         `json:"client_message_id"`
	MediaType              string          `json:"media_type"`
	Content                json.RawMessage `json:"content"`
	Metadata               model.Metadata  `json:"metadata"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

func (h *MessageHandler) CreateMessage(ctx *xhttp.RequestCtx) {
	var req createMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	p := model.MessageCreateRequest{
		BrandID:                req.BrandID,
		RepresentativeID:       req.RepresentativeID,
		Channel:                model.Channel(req.Channel),
		PlatformConversationID: req.PlatformConversationID,
		ClientMessageID:        req.ClientMessageID,
		MediaType:              req.MediaType,
		Content:                req.Content,
		Metadata:               req.Metadata,
	}
	msg, err := h.svc.Create(ctx, p)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownBrand),
			errors.Is(err, services.ErrUnknownRepresentative):
			writeError(ctx, xhttp.StatusNotFound, err.Error())
		case errors.Is(err, services.ErrDuplicateClientID):
			writeError(ctx, xhttp.StatusConflict, err.Error())
		default:
			writeError(ctx, xhttp.StatusBadRequest, err.Error())
		}
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, msg)
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	id, _ := ctx.UserValue("id").(string)
	msg, err := h.svc.Get(ctx, id)
	if errors.Is(err, services.ErrNotFound) {
		writeError(ctx, xhttp.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(ctx, xhttp.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, msg)
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f model.MessageFilter

	if v := query(ctx, "brand"); v != "" {
		f.BrandID = &v
	}
	if v := query(ctx, "platform"); v != "" {
		c := model.Channel(v)
		if !c.Valid() {
			writeError(ctx, xhttp.StatusBadRequest, "unknown platform")
			return
		}
		f.Channel = &c
	}
	if v := query(ctx, "conversation"); v != "" {
		f.ConversationID = &v
	}
	if v := query(ctx, "state"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.States = append(f.States, model.MessageState(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeError(ctx, xhttp.StatusBadRequest, err.Error())
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	b, _ := json.Marshal(v)
	ctx.Response.Header.Set("Content-Type", "application/json; charset=utf-8")
	ctx.Response.SetStatusCode(status)
	ctx.Response.SetBodyRaw(b)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	writeJSON(ctx, status, map[string]string{"error": msg})
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
