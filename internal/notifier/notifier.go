// Package notifier relays messages and their state changes to the
// webhook each brand registered.
package notifier

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/nimasrn/messaging-gateway/internal/repository"
	"github.com/nimasrn/messaging-gateway/pkg/logger"
)

// signatureHeader carries the hex HMAC-SHA512 of the body under the
// brand's signing secret. Tenants verify it before trusting the
// payload.
const signatureHeader = "X-AS207960-Signature-SHA512"

const userAgent = "messaging-gateway"

const defaultTimeout = 15 * time.Second

type Config struct {
	Timeout time.Duration
}

type Notifier struct {
	config   Config
	messages *repository.MessageRepository
	brands   *repository.BrandRepository
	client   *fasthttp.Client
}

func New(config Config, messages *repository.MessageRepository, brands *repository.BrandRepository) *Notifier {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Notifier{
		config:   config,
		messages: messages,
		brands:   brands,
		client:   &fasthttp.Client{Name: userAgent},
	}
}

// Notify delivers one message to its brand's webhook. A non-2xx answer
// or a transport failure returns an error so the surrounding job is
// retried; a brand without a webhook URL is a successful no-op.
func (n *Notifier) Notify(ctx context.Context, messageID string) error {
	msg, err := n.messages.GetByID(ctx, messageID)
	if err != nil {
		return err
	}
	brand, err := n.brands.Get(ctx, msg.BrandID)
	if err != nil {
		return err
	}
	if brand.WebhookURL == "" {
		return nil
	}
	return n.deliver(brand, msg)
}

func (n *Notifier) deliver(brand *model.Brand, msg *model.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(req)
		fasthttp.ReleaseResponse(resp)
	}()

	req.SetRequestURI(brand.WebhookURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.SetUserAgent(userAgent)
	req.Header.Set(signatureHeader, Sign(brand.WebhookSigningSecret, body))
	req.SetBodyRaw(body)

	if err := n.client.DoDeadline(req, resp, time.Now().Add(n.config.Timeout)); err != nil {
		return errors.Wrap(err, "webhook delivery")
	}

	status := resp.StatusCode()
	if status < 200 || status > 299 {
		logger.Warn("webhook delivery rejected", "message_id", msg.ID, "brand_id", brand.ID, "status", status)
		return errors.Errorf("webhook delivery: unexpected status %d", status)
	}
	return nil
}

// Sign computes the callback signature for a serialized payload.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
