package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nimasrn/messaging-gateway/internal/capability"
	"github.com/nimasrn/messaging-gateway/internal/model"
	"github.com/valyala/fasthttp"
)

// RCSConfig configures the RCS Business Messaging client. BaseURL
// overrides the per-region endpoint and exists for tests; left empty,
// each agent's region selects its regional endpoint.
type RCSConfig struct {
	BaseURL string
	Timeout time.Duration
}

type RCSClient struct {
	config RCSConfig
	client *fasthttp.Client
	health *HealthTracker
}

func NewRCSClient(config RCSConfig) *RCSClient {
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &RCSClient{
		config: config,
		client: &fasthttp.Client{},
		health: NewHealthTracker("rcs-business-messaging"),
	}
}

// Health reports the current endpoint health.
func (c *RCSClient) Health() EndpointStats {
	return c.health.Stats()
}

func (c *RCSClient) baseURL(agent *model.RCSAgent) string {
	if c.config.BaseURL != "" {
		return c.config.BaseURL
	}
	return fmt.Sprintf("https://%s-rcsbusinessmessaging.googleapis.com", agent.Region)
}

type rcsSendResponse struct {
	Name string `json:"name"`
}

// SendMessage posts an agent message to a phone and returns the
// platform-assigned message name.
func (c *RCSClient) SendMessage(ctx context.Context, agent *model.RCSAgent, msisdn, messageID string, body []byte) (string, error) {
	url := c.baseURL(agent) + "/v1/phones/" + msisdn + "/agentMessages?messageId=" + messageID
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost, url, agent.AccessToken, body)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", platformReject(status, respBody)
	}

	var resp rcsSendResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	return resp.Name, nil
}

// SendEvent posts an agent event (typing indicator) to a phone.
func (c *RCSClient) SendEvent(ctx context.Context, agent *model.RCSAgent, msisdn, eventID string, body []byte) error {
	url := c.baseURL(agent) + "/v1/phones/" + msisdn + "/agentEvents?eventId=" + eventID
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost, url, agent.AccessToken, body)
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK {
		return platformReject(status, respBody)
	}
	return nil
}

type rcsCapabilitiesResponse struct {
	Features []string `json:"features"`
}

// Probe asks the platform whether a phone can take RCS traffic.
// Not-found and forbidden are definitive "no" answers; anything else
// non-200 is a transport failure the caller may retry.
func (c *RCSClient) Probe(ctx context.Context, agent *model.RCSAgent, msisdn, requestID string) (*capability.ProbeResult, error) {
	url := c.baseURL(agent) + "/v1/phones/" + msisdn + "/capabilities?requestId=" + requestID
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodGet, url, agent.AccessToken, nil)
	if err != nil {
		return nil, err
	}

	switch status {
	case fasthttp.StatusOK:
		var resp rcsCapabilitiesResponse
		if err := json.Unmarshal(respBody, &resp); err != nil {
			return nil, err
		}
		return &capability.ProbeResult{Supported: true, Features: resp.Features}, nil
	case fasthttp.StatusNotFound, fasthttp.StatusForbidden:
		return &capability.ProbeResult{Supported: false}, nil
	default:
		return nil, platformReject(status, respBody)
	}
}
