package webhooks

import (
	"encoding/base64"
	"encoding/json"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

type RCSWebhookConfig struct {
	// WebhookToken answers the RBM endpoint verification handshake and
	// signs deliveries for agents without a token of their own.
	WebhookToken string
}

// rbmPushEnvelope is the Pub/Sub push wrapper RBM deliveries arrive in.
// The payload proper is the base64 data blob; the signature covers the
// decoded blob, not the wrapper.
type rbmPushEnvelope struct {
	Subscription string `json:"subscription"`
	Message      struct {
		Data       string `json:"data"`
		Attributes struct {
			Type string `json:"type"`
		} `json:"attributes"`
	} `json:"message"`

	// Endpoint verification handshake fields.
	ClientToken string  `json:"clientToken"`
	Secret      *string `json:"secret"`
}

// RCSWebhookHandler receives RBM deliveries: inbound messages, typing
// events, delivery receipts and capability pushes.
type RCSWebhookHandler struct {
	config RCSWebhookConfig
	brands *repository.BrandRepository
	ingest *Ingestor
}

func NewRCSWebhookHandler(config RCSWebhookConfig, brands *repository.BrandRepository, ingest *Ingestor) *RCSWebhookHandler {
	return &RCSWebhookHandler{
		config: config,
		brands: brands,
		ingest: ingest,
	}
}

func RegisterRCSWebhookRoutes(e *router.Group, h *RCSWebhookHandler) {
	e.POST("/rcs", h.Receive)
}

func (h *RCSWebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	var env rbmPushEnvelope
	if err := json.Unmarshal(ctx.PostBody(), &env); err != nil {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	if env.ClientToken != "" {
		h.handshake(ctx, env)
		return
	}

	data, err := base64.StdEncoding.DecodeString(env.Message.Data)
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	agent, err := h.brands.GetRCSAgentBySubscription(ctx, env.Subscription)
	if errors.Is(err, repository.ErrNotFound) {
		ctx.SetStatusCode(xhttp.StatusNotFound)
		return
	}
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	token := agent.WebhookToken
	if token == "" {
		token = h.config.WebhookToken
	}
	sig := string(ctx.Request.Header.Peek("X-Goog-Signature"))
	switch err := VerifyGoogleSignature(token, data, sig); {
	case errors.Is(err, ErrSignatureMismatch):
		ctx.SetStatusCode(xhttp.StatusForbidden)
		return
	case err != nil:
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	events, err := transcode.DecodeRCS(env.Message.Attributes.Type, data, agent.BrandID)
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	if err := h.ingest.IngestEvents(ctx, model.ChannelRCS, agent.ID, events); err != nil {
		logger.Error("rcs ingest failed", "subscription", env.Subscription, "error", err)
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(xhttp.StatusAccepted)
}

// handshake answers the RBM endpoint verification challenge by echoing
// the secret back, but only to a caller holding our token.
func (h *RCSWebhookHandler) handshake(ctx *xhttp.RequestCtx, env rbmPushEnvelope) {
	if env.ClientToken != h.config.WebhookToken {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}
	body, _ := json.Marshal(map[string]*string{"secret": env.Secret})
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyRaw(body)
}
