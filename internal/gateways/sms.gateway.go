package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/valyala/fasthttp"
)

// SMSConfig configures the carrier messaging client. StatusCallbackURL
// is where the carrier posts delivery-status updates for every message
// sent through this gateway.
type SMSConfig struct {
	BaseURL           string
	StatusCallbackURL string
	Timeout           time.Duration
}

type SMSClient struct {
	config SMSConfig
	client *fasthttp.Client
	health *HealthTracker
}

func NewSMSClient(config SMSConfig) *SMSClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://api.twilio.com"
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &SMSClient{
		config: config,
		client: &fasthttp.Client{},
		health: NewHealthTracker("carrier-sms"),
	}
}

// Health reports the current endpoint health.
func (c *SMSClient) Health() EndpointStats {
	return c.health.Stats()
}

type smsSendResponse struct {
	SID     string `json:"sid"`
	Message string `json:"message"`
}

// Send submits one message on the agent's carrier account and returns
// the carrier message SID.
func (c *SMSClient) Send(ctx context.Context, agent *model.SMSAgent, to, body, mediaURL string) (string, error) {
	if err := c.health.Allow(); err != nil {
		return "", err
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", agent.MSISDN)
	form.Set("Body", body)
	form.Set("ProvideFeedback", "true")
	if mediaURL != "" {
		form.Set("MediaUrl", mediaURL)
	}
	if c.config.StatusCallbackURL != "" {
		form.Set("StatusCallback", c.config.StatusCallbackURL)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + "/2010-04-01/Accounts/" + agent.AccountSID + "/Messages.json")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Basic "+
		base64.StdEncoding.EncodeToString([]byte(agent.AccountSID+":"+agent.AccountToken)))
	req.SetBodyString(form.Encode())

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}
	start := time.Now()
	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		c.health.RecordFailure()
		return "", err
	}
	c.health.RecordSuccess(time.Since(start))

	status := resp.StatusCode()
	var parsed smsSendResponse
	_ = json.Unmarshal(resp.Body(), &parsed)

	if status != fasthttp.StatusOK && status != fasthttp.StatusCreated {
		description := "Message sending failed"
		if parsed.Message != "" {
			description = parsed.Message
		}
		return "", &PlatformError{StatusCode: status, Description: description}
	}
	return parsed.SID, nil
}
