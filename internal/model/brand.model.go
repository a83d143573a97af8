package model

// Brand is a tenant. State changes and inbound messages for its
// conversations are relayed to WebhookURL, signed with
// WebhookSigningSecret.
type Brand struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	WebhookURL           string `json:"webhook_url"`
	WebhookSigningSecret string `json:"-"`
	// ClientID identifies the brand to authentication requests issued
	// through login_challenge suggestions.
	ClientID string `json:"client_id,omitempty"`
}

// Representative is the persona attached to outgoing messages on
// channels that display one.
type Representative struct {
	ID        string `json:"id"`
	BrandID   string `json:"brand"`
	Name      string `json:"name"`
	IsBot     bool   `json:"is_bot"`
	AvatarURL string `json:"avatar,omitempty"`
}

// GBMAgent is a brand's Business Messages agent configuration.
type GBMAgent struct {
	ID       string `json:"id"`
	BrandID  string `json:"brand"`
	GoogleID string `json:"google_id"`
	Name     string `json:"name"`
}

// RCS agent regions.
const (
	RegionAsia   = "asia"
	RegionEurope = "europe"
	RegionUS     = "us"
)

// RCSAgent is a brand's RCS business messaging agent configuration.
// AccessToken authenticates calls to the regional endpoint; WebhookToken
// is the shared secret the provider signs push deliveries with.
type RCSAgent struct {
	ID               string `json:"id"`
	BrandID          string `json:"brand"`
	Region           string `json:"region"`
	AccessToken      string `json:"-"`
	WebhookToken     string `json:"-"`
	SubscriptionName string `json:"subscription_name"`
}

// SMSAgent is a brand's SMS sending configuration. The VSMS fields are
// optional; when both the agent private key and a recipient public key
// are known, outbound bodies are registered with Verified SMS before the
// carrier send.
type SMSAgent struct {
	ID                string `json:"id"`
	BrandID           string `json:"brand"`
	MSISDN            string `json:"msisdn"`
	AccountSID        string `json:"account_sid"`
	AccountToken      string `json:"-"`
	VSMSAgentID       string `json:"vsms_agent_id,omitempty"`
	VSMSPrivateKeyPEM string `json:"-"`
}
