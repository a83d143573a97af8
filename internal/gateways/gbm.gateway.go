package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/valyala/fasthttp"
)

// GBMConfig configures the Business Messages client. AccessToken is
// the partner-level credential shared by every agent.
type GBMConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

type GBMClient struct {
	config GBMConfig
	client *fasthttp.Client
	health *HealthTracker
}

func NewGBMClient(config GBMConfig) *GBMClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://businessmessages.googleapis.com"
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &GBMClient{
		config: config,
		client: &fasthttp.Client{},
		health: NewHealthTracker("business-messages"),
	}
}

// Health reports the current endpoint health.
func (c *GBMClient) Health() EndpointStats {
	return c.health.Stats()
}

type gbmSendResponse struct {
	Name string `json:"name"`
}

// SendMessage posts an agent message into a conversation and returns
// the platform-assigned message name.
func (c *GBMClient) SendMessage(ctx context.Context, conversationID string, body []byte) (string, error) {
	url := c.config.BaseURL + "/v1/conversations/" + conversationID + "/messages"
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost, url, c.config.AccessToken, body)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", platformReject(status, respBody)
	}

	var resp gbmSendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// SendEvent posts a conversation event (typing indicators,
// representative join/leave). Events carry no platform message ID.
func (c *GBMClient) SendEvent(ctx context.Context, conversationID, eventID string, body []byte) error {
	url := c.config.BaseURL + "/v1/conversations/" + conversationID + "/events?eventId=" + eventID
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost, url, c.config.AccessToken, body)
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK {
		return platformReject(status, respBody)
	}
	return nil
}

func platformReject(status int, body []byte) error {
	var parsed platformErrorBody
	description := "Message sending failed"
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Error.Message != "" {
		description = parsed.Error.Message
	}
	return &PlatformError{StatusCode: status, Description: description}
}
