package webhooks

import (
	"context"

	"github.com/fasthttp/router"
	"github.com/pkg/errors"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	gateway "github.com/nimasrn/messaging-gateway/internal/gateways"
	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/internal/transcode"
	xhttp "github.com/nimasrn/messaging-gateway/pkg/http"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

// twiml is the empty carrier response: no auto-reply.
const twiml = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SMSWebhookHandler receives carrier callbacks: inbound texts, delivery
// status updates and Verified SMS feedback.
type SMSWebhookHandler struct {
	brands   *repository.BrandRepository
	registry *capability.Registry
	ingest   *Ingestor
}

func NewSMSWebhookHandler(brands *repository.BrandRepository, registry *capability.Registry, ingest *Ingestor) *SMSWebhookHandler {
	return &SMSWebhookHandler{
		brands:   brands,
		registry: registry,
		ingest:   ingest,
	}
}

func RegisterSMSWebhookRoutes(e *router.Group, h *SMSWebhookHandler) {
	e.POST("/sms", h.Receive)
	e.POST("/sms/status", h.Status)
	e.POST("/sms/vsms", h.VSMSPostback)
}

// authenticate resolves the posting account and checks the request
// signature against its auth token. A nil return means the response
// status has already been written.
func (h *SMSWebhookHandler) authenticate(ctx *xhttp.RequestCtx, params map[string]string) *model.SMSAgent {
	accountSID := params["AccountSid"]
	if accountSID == "" {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return nil
	}

	agent, err := h.brands.GetSMSAgentByAccountSID(ctx, accountSID)
	if errors.Is(err, repository.ErrNotFound) {
		ctx.SetStatusCode(xhttp.StatusBadRequest)
		return nil
	}
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return nil
	}

	url := "https://" + string(ctx.Host()) + string(ctx.Path())
	sig := string(ctx.Request.Header.Peek("X-Twilio-Signature"))
	if err := VerifyCarrierSignature(agent.AccountToken, url, params, sig); err != nil {
		ctx.SetStatusCode(xhttp.StatusForbidden)
		return nil
	}
	return agent
}

func (h *SMSWebhookHandler) Receive(ctx *xhttp.RequestCtx) {
	params := formParams(ctx)
	if h.authenticate(ctx, params) == nil {
		return
	}

	// The inbound number decides the owning agent: one account may
	// serve several brands on different numbers.
	agent, err := h.brands.GetSMSAgentByMSISDN(ctx, params["To"])
	if errors.Is(err, repository.ErrNotFound) {
		ctx.SetStatusCode(xhttp.StatusNotFound)
		return
	}
	if err != nil {
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	// An inbound text proves the handset is alive; refresh its RCS
	// capability off the request path.
	h.refreshCapability(agent.BrandID, params["From"])

	events := transcode.DecodeSMS(params["From"], params["MessageSid"], params["Body"], agent.BrandID)
	if err := h.ingest.IngestEvents(ctx, model.ChannelSMS, "", events); err != nil {
		logger.Error("sms ingest failed", "sid", params["MessageSid"], "error", err)
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	ctx.Response.Header.Set("Content-Type", "text/xml")
	ctx.SetStatusCode(xhttp.StatusOK)
	ctx.Response.SetBodyString(twiml)
}

func (h *SMSWebhookHandler) Status(ctx *xhttp.RequestCtx) {
	params := formParams(ctx)
	if h.authenticate(ctx, params) == nil {
		return
	}

	events := transcode.DecodeSMSStatus(params["MessageSid"], params["MessageStatus"])
	if err := h.ingest.IngestEvents(ctx, model.ChannelSMS, "", events); err != nil {
		logger.Error("sms status ingest failed", "sid", params["MessageSid"], "error", err)
		ctx.SetStatusCode(xhttp.StatusInternalServerError)
		return
	}

	ctx.SetStatusCode(xhttp.StatusAccepted)
}

// VSMSPostback receives Verified SMS feedback. The payload carries the
// postback data we registered with the message hash; it is logged for
// diagnosis but carries no state we act on.
func (h *SMSWebhookHandler) VSMSPostback(ctx *xhttp.RequestCtx) {
	params := formParams(ctx)
	if postback := params["postbackData"]; postback != "" {
		if messageID, err := gateway.DecodeVSMSPostback(postback); err == nil {
			logger.Debug("verified sms postback", "message_id", messageID)
		}
	}
	ctx.SetStatusCode(xhttp.StatusAccepted)
}

func (h *SMSWebhookHandler) refreshCapability(brandID, msisdn string) {
	rcsAgent, err := h.brands.GetRCSAgentByBrand(context.Background(), brandID)
	if err != nil {
		return
	}
	go func() {
		if _, err := h.registry.Lookup(context.Background(), rcsAgent, msisdn, ""); err != nil {
			logger.Debug("capability refresh failed", "msisdn", msisdn, "error", err)
		}
	}()
}

func formParams(ctx *xhttp.RequestCtx) map[string]string {
	params := map[string]string{}
	ctx.PostArgs().VisitAll(func(key, value []byte) {
		params[string(key)] = string(value)
	})
	return params
}
