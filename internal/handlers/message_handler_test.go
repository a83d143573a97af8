package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/services"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
)

type MockMessageService struct {
	mock.Mock
}

func (m *MockMessageService) Create(ctx context.Context, p model.MessageCreateRequest) (*model.Message, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) Get(ctx context.Context, id string) (*model.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Message), args.Error(1)
}

func (m *MockMessageService) List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Message), args.Get(1).(int64), args.Error(2)
}

func setupTestContext(method, path string, body []byte) *xhttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(path)
	if body != nil {
		ctx.Request.SetBody(body)
	}
	return ctx
}

func TestMessageHandler_CreateMessage(t *testing.T) {
	t.Run("successful message creation", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		reqBody := createMessageRequest{
			BrandID:                "brand-1",
			Channel:                "rcs",
			PlatformConversationID: "+447700900123",
			MediaType:              "text/plain",
			Content:                json.RawMessage(`"hello"`),
		}
		bodyBytes, _ := json.Marshal(reqBody)

		expectedMsg := &model.Message{
			ID:      "msg-1",
			State:   model.StateAccepted,
			Channel: model.ChannelRCS,
		}

		svc.On("Create", mock.Anything, mock.MatchedBy(func(p model.MessageCreateRequest) bool {
			return p.BrandID == "brand-1" &&
				p.Channel == model.ChannelRCS &&
				p.PlatformConversationID == "+447700900123"
		})).Return(expectedMsg, nil)

		ctx := setupTestContext("POST", "/messages", bodyBytes)
		handler.CreateMessage(ctx)

		assert.Equal(t, xhttp.StatusCreated, ctx.Response.StatusCode())

		var response model.Message
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "msg-1", response.ID)
		assert.Equal(t, model.StateAccepted, response.State)

		svc.AssertExpectations(t)
	})

	t.Run("invalid JSON", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("POST", "/messages", []byte("invalid json"))
		handler.CreateMessage(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Contains(t, response["error"], "invalid JSON")
	})

	t.Run("unknown brand maps to 404", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrUnknownBrand)

		body, _ := json.Marshal(createMessageRequest{BrandID: "nope"})
		ctx := setupTestContext("POST", "/messages", body)
		handler.CreateMessage(ctx)

		assert.Equal(t, xhttp.StatusNotFound, ctx.Response.StatusCode())
	})

	t.Run("duplicate client id maps to 409", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, services.ErrDuplicateClientID)

		body, _ := json.Marshal(createMessageRequest{BrandID: "brand-1"})
		ctx := setupTestContext("POST", "/messages", body)
		handler.CreateMessage(ctx)

		assert.Equal(t, xhttp.StatusConflict, ctx.Response.StatusCode())
	})

	t.Run("validation error maps to 400", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Create", mock.Anything, mock.Anything).Return(nil, errors.New("media_type is required"))

		body, _ := json.Marshal(createMessageRequest{BrandID: "brand-1"})
		ctx := setupTestContext("POST", "/messages", body)
		handler.CreateMessage(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "media_type is required", response["error"])

		svc.AssertExpectations(t)
	})
}

func TestMessageHandler_GetMessage(t *testing.T) {
	t.Run("found", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, "msg-1").Return(&model.Message{ID: "msg-1"}, nil)

		ctx := setupTestContext("GET", "/messages/msg-1", nil)
		ctx.SetUserValue("id", "msg-1")
		handler.GetMessage(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())

		var response model.Message
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &response))
		assert.Equal(t, "msg-1", response.ID)
	})

	t.Run("not found", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("Get", mock.Anything, "missing").Return(nil, services.ErrNotFound)

		ctx := setupTestContext("GET", "/messages/missing", nil)
		ctx.SetUserValue("id", "missing")
		handler.GetMessage(ctx)

		assert.Equal(t, xhttp.StatusNotFound, ctx.Response.StatusCode())
	})
}

func TestMessageHandler_ListMessages(t *testing.T) {
	t.Run("successful list", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		expectedMessages := []*model.Message{
			{ID: "msg-1", Channel: model.ChannelGBM},
			{ID: "msg-2", Channel: model.ChannelGBM},
		}

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return f.BrandID != nil && *f.BrandID == "brand-1" && f.Limit == 10
		})).Return(expectedMessages, int64(2), nil)

		ctx := setupTestContext("GET", "/messages?brand=brand-1&limit=10", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())

		var response listResponse
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, int64(2), response.Total)
		assert.Len(t, response.Items, 2)

		svc.AssertExpectations(t)
	})

	t.Run("state and time filters", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.MatchedBy(func(f model.MessageFilter) bool {
			return len(f.States) == 2 &&
				f.States[0] == model.StateDelivered &&
				f.States[1] == model.StateRead &&
				f.From != nil && f.To != nil && f.Desc
		})).Return([]*model.Message{}, int64(0), nil)

		ctx := setupTestContext("GET", "/messages?state=delivered,read&from=2024-01-01&to=2024-12-31&order=desc", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		svc.AssertExpectations(t)
	})

	t.Run("unknown platform filter rejected", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		ctx := setupTestContext("GET", "/messages?platform=carrier-pigeon", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})

	t.Run("service error", func(t *testing.T) {
		svc := new(MockMessageService)
		handler := NewMessageHandler(svc)

		svc.On("List", mock.Anything, mock.Anything).
			Return(nil, int64(0), errors.New("database error"))

		ctx := setupTestContext("GET", "/messages", nil)
		handler.ListMessages(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())

		var response map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &response)
		require.NoError(t, err)
		assert.Equal(t, "database error", response["error"])

		svc.AssertExpectations(t)
	})
}

func TestCalendarHandler_GetEvent(t *testing.T) {
	handler := NewCalendarHandler()

	t.Run("renders ics", func(t *testing.T) {
		start := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
		end := start.Add(time.Hour)
		action := &model.CalendarAction{Title: "Review", Description: "Quarterly review"}
		url := transcode.CalendarFallbackURL("https://gateway.example.com", action, start, end)
		token := url[len("https://gateway.example.com/calendar_event/"):]

		ctx := setupTestContext("GET", "/calendar_event/"+token, nil)
		ctx.SetUserValue("token", token)
		handler.GetEvent(ctx)

		assert.Equal(t, xhttp.StatusOK, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "text/calendar")
		body := string(ctx.Response.Body())
		assert.Contains(t, body, "BEGIN:VEVENT")
		assert.Contains(t, body, "SUMMARY:Review")
	})

	t.Run("bad token", func(t *testing.T) {
		ctx := setupTestContext("GET", "/calendar_event/!!!", nil)
		ctx.SetUserValue("token", "!!!")
		handler.GetEvent(ctx)

		assert.Equal(t, xhttp.StatusBadRequest, ctx.Response.StatusCode())
	})
}

func TestHelperFunctions(t *testing.T) {
	t.Run("readJSON", func(t *testing.T) {
		data := map[string]string{"key": "value"}
		bodyBytes, _ := json.Marshal(data)
		ctx := setupTestContext("POST", "/", bodyBytes)

		var result map[string]string
		err := readJSON(ctx, &result)
		require.NoError(t, err)
		assert.Equal(t, "value", result["key"])
	})

	t.Run("writeJSON", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		data := map[string]string{"message": "test"}

		writeJSON(ctx, 200, data)

		assert.Equal(t, 200, ctx.Response.StatusCode())
		assert.Contains(t, string(ctx.Response.Header.Peek("Content-Type")), "application/json")

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "test", result["message"])
	})

	t.Run("writeError", func(t *testing.T) {
		ctx := setupTestContext("GET", "/", nil)
		writeError(ctx, 404, "not found")

		assert.Equal(t, 404, ctx.Response.StatusCode())

		var result map[string]string
		err := json.Unmarshal(ctx.Response.Body(), &result)
		require.NoError(t, err)
		assert.Equal(t, "not found", result["error"])
	})

	t.Run("parseTime RFC3339", func(t *testing.T) {
		parsed, err := parseTime("2024-01-01T12:00:00Z")
		require.NoError(t, err)
		assert.Equal(t, 2024, parsed.Year())
	})

	t.Run("parseTime date only", func(t *testing.T) {
		parsed, err := parseTime("2024-01-01")
		require.NoError(t, err)
		assert.Equal(t, 2024, parsed.Year())
		assert.Equal(t, time.Month(1), parsed.Month())
		assert.Equal(t, 1, parsed.Day())
	})

	t.Run("parseTime invalid", func(t *testing.T) {
		_, err := parseTime("invalid")
		assert.Error(t, err)
	})
}
