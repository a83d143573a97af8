package notifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/pg"
)

type notifierEnv struct {
	t        *testing.T
	messages *repository.MessageRepository
	brands   *repository.BrandRepository
	notifier *Notifier
}

func setupNotifier(t *testing.T) *notifierEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repository.MessageEntity{}, &repository.BrandEntity{}))

	wrapped := pg.NewFromGorm(db, db)
	env := &notifierEnv{
		t:        t,
		messages: repository.NewMessageRepository(wrapped),
		brands:   repository.NewBrandRepository(wrapped),
	}
	env.notifier = New(Config{Timeout: 2 * time.Second}, env.messages, env.brands)
	return env
}

func (e *notifierEnv) seedBrand(webhookURL string) {
	e.t.Helper()
	_, err := e.brands.Create(context.Background(), &model.Brand{
		ID: "brand-1", Name: "Acme", WebhookURL: webhookURL, WebhookSigningSecret: "signing-secret",
	})
	require.NoError(e.t, err)
}

func (e *notifierEnv) seedMessage() *model.Message {
	e.t.Helper()
	msg, err := e.messages.Create(context.Background(), &model.Message{
		ID:                     uuid.NewString(),
		Direction:              model.DirectionIncoming,
		State:                  model.StateDelivered,
		BrandID:                "brand-1",
		Channel:                model.ChannelRCS,
		PlatformConversationID: "+447700900123",
		Timestamp:              time.Now().UTC(),
		MediaType:              model.MediaText,
		Content:                model.TextContent("hello"),
		Metadata:               model.Metadata{model.MetaPostbackData: "pb-1"},
	})
	require.NoError(e.t, err)
	return msg
}

func TestNotifyDeliversSignedPayload(t *testing.T) {
	env := setupNotifier(t)

	var (
		gotBody      []byte
		gotSignature string
		gotUserAgent string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-AS207960-Signature-SHA512")
		gotUserAgent = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env.seedBrand(server.URL)
	msg := env.seedMessage()

	require.NoError(t, env.notifier.Notify(context.Background(), msg.ID))

	assert.Equal(t, Sign("signing-secret", gotBody), gotSignature)
	assert.Equal(t, "messaging-gateway", gotUserAgent)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(gotBody, &payload))
	assert.Equal(t, msg.ID, payload["id"])
	assert.Equal(t, "incoming", payload["direction"])
	assert.Equal(t, "delivered", payload["state"])
	assert.Equal(t, "rcs", payload["platform"])
	assert.Equal(t, "hello", payload["content"])
	assert.NotContains(t, payload, "platform_dedup_id", "internal dedup key must not leak to tenants")
}

func TestNotifyWithoutWebhookURLIsANoOp(t *testing.T) {
	env := setupNotifier(t)
	env.seedBrand("")
	msg := env.seedMessage()

	assert.NoError(t, env.notifier.Notify(context.Background(), msg.ID))
}

func TestNotifyNon2xxIsRetryable(t *testing.T) {
	env := setupNotifier(t)

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env.seedBrand(server.URL)
	msg := env.seedMessage()

	require.Error(t, env.notifier.Notify(context.Background(), msg.ID))
	require.NoError(t, env.notifier.Notify(context.Background(), msg.ID))
	assert.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestNotifyUnreachableEndpoint(t *testing.T) {
	env := setupNotifier(t)
	env.seedBrand("http://127.0.0.1:1/hook")
	msg := env.seedMessage()

	assert.Error(t, env.notifier.Notify(context.Background(), msg.ID))
}
