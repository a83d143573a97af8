package webhooks

import (
	"encoding/json"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

type GBMWebhookConfig struct {
	// PartnerKey is the shared secret Google signs every Business
	// Messages delivery with.
	PartnerKey string
}

// GBMWebhookHandler receives Business Messages deliveries: inbound
// messages, receipts, typing status, surveys and suggestion responses.
type GBMWebhookHandler struct {
	config GBMWebhookConfig
	brands *repository.BrandRepository
	ingest *Ingestor
}

func NewGBMWebhookHandler(config GBMWebhookConfig, brands *repository.BrandRepository, ingest *Ingestor) *GBMWebhookHandler {
	return &GBMWebhookHandler{
		config: config,
		brands: brands,
		ingest: ingest,
	}
}

func RegisterGBMWebhookRoutes(e *router.Group, h *GBMWebhookHandler) {
	e.POST("/gbm", h.Receive)
}

func (h *GBMWebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	body := ctx.PostBody()
	sig := string(ctx.Request.Header.Peek("X-Goog-Signature"))

	switch err := VerifyGoogleSignature(h.config.PartnerKey, body, sig); {
	case errors.Is(err, ErrSignatureMismatch):
		ctx.SetStatusCode(xhttp.StatusForbidden)
		return
	case err != nil:
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	var env transcode.GBMEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	agent, err := h.brands.GetGBMAgentByGoogleID(ctx, env.Agent)
	if errors.Is(err, repository.ErrNotFound) {
		// Deliveries for agents we no longer know about are dropped
		// without error so Google stops retrying them.
		ctx.SetStatusCode(xhttp.StatusOK)
		return
	}
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	events, err := transcode.DecodeGBM(&env, agent.BrandID)
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return
	}

	if err := h.ingest.IngestEvents(ctx, model.ChannelGBM, "", events); err != nil {
		logger.Error("business messages ingest failed", "request_id", env.RequestID, "error", err)
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(xhttp.StatusOK)
}
