package gateway

import (
	"context"
	"crypto/ecdsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"golang.org/x/crypto/hkdf"
)

// vsmsRateLimitSalt is the fixed HKDF info string the platform expects
// for rate-limit tokens.
const vsmsRateLimitSalt = "xELpwbCabRriJEkOYBagfJpHrrmNqlaZMTxsacBQjsLjUHtQexWNQCiMCkrxBzWEifExJkkOJwOziTQQJyRWVUbauuCHZrYlenSAiqtKtT"

// VSMSConfig configures the Verified SMS client.
type VSMSConfig struct {
	BaseURL     string
	AccessToken string
	Timeout     time.Duration
}

type VSMSClient struct {
	config VSMSConfig
	client *fasthttp.Client
	health *HealthTracker
}

func NewVSMSClient(config VSMSConfig) *VSMSClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://verifiedsms.googleapis.com"
	}
	if config.Timeout == 0 {
		config.Timeout = defaultTimeout
	}
	return &VSMSClient{
		config: config,
		client: &fasthttp.Client{},
		health: NewHealthTracker("verified-sms"),
	}
}

type vsmsUserKey struct {
	PhoneNumber string `json:"phoneNumber"`
	PublicKey   string `json:"publicKey"`
}

type vsmsBatchGetResponse struct {
	UserKeys []vsmsUserKey `json:"userKeys"`
}

// GetUserKey asks whether a phone number is enrolled in Verified SMS.
// Both answers are definitive: an enrolled user yields their public
// key and an unenrolled one an empty string.
func (c *VSMSClient) GetUserKey(ctx context.Context, msisdn string) (string, error) {
	body, _ := json.Marshal(map[string][]string{"phoneNumbers": {msisdn}})
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost,
		c.config.BaseURL+"/v1/enabledUserKeys:batchGet", c.config.AccessToken, body)
	if err != nil {
		return "", err
	}
	if status != fasthttp.StatusOK {
		return "", platformReject(status, respBody)
	}

	var resp vsmsBatchGetResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return "", err
	}
	if len(resp.UserKeys) == 0 {
		return "", nil
	}
	return resp.UserKeys[0].PublicKey, nil
}

// VSMSMessage is one entry of a messages:batchCreate call, registering
// an outbound SMS body hash before the carrier send.
type VSMSMessage struct {
	AgentID        string `json:"agentId"`
	Hash           string `json:"hash"`
	RateLimitToken string `json:"rateLimitToken"`
	PostbackData   string `json:"postbackData"`
}

// RegisterMessages registers message hashes so receiving devices can
// verify the sender. Called before the carrier send.
func (c *VSMSClient) RegisterMessages(ctx context.Context, messages []VSMSMessage) error {
	body, _ := json.Marshal(map[string][]VSMSMessage{"messages": messages})
	status, respBody, err := doJSON(ctx, c.client, c.health, c.config.Timeout, fasthttp.MethodPost,
		c.config.BaseURL+"/v1/messages:batchCreate", c.config.AccessToken, body)
	if err != nil {
		return err
	}
	if status != fasthttp.StatusOK {
		return platformReject(status, respBody)
	}
	return nil
}

// DeriveSharedKey performs the ECDH exchange between the agent's
// private key (PEM) and the user's public key (base64 DER).
func DeriveSharedKey(privateKeyPEM, publicKeyB64 string) ([]byte, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("invalid agent private key PEM")
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "parse agent private key")
	}
	ecPriv, ok := parsed.(*ecdsa.PrivateKey)
	if !ok {
		return nil, errors.New("agent private key is not an EC key")
	}
	priv, err := ecPriv.ECDH()
	if err != nil {
		return nil, errors.Wrap(err, "agent private key")
	}

	der, err := base64.StdEncoding.DecodeString(publicKeyB64)
	if err != nil {
		return nil, errors.Wrap(err, "decode user public key")
	}
	parsedPub, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, errors.Wrap(err, "parse user public key")
	}
	ecPub, ok := parsedPub.(*ecdsa.PublicKey)
	if !ok {
		return nil, errors.New("user public key is not an EC key")
	}
	pub, err := ecPub.ECDH()
	if err != nil {
		return nil, errors.Wrap(err, "user public key")
	}

	return priv.ECDH(pub)
}

func hkdfExpand(sharedKey, info []byte) (string, error) {
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sharedKey, nil, info), out); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(out), nil
}

// MessageHash derives the Verified SMS hash of a message body under a
// shared key.
func MessageHash(sharedKey []byte, body string) (string, error) {
	return hkdfExpand(sharedKey, []byte(body))
}

// RateLimitToken derives the per-conversation rate-limit token.
func RateLimitToken(sharedKey []byte) (string, error) {
	return hkdfExpand(sharedKey, []byte(vsmsRateLimitSalt))
}

// EncodeVSMSPostback packs a message ID into the postback payload
// echoed back by the Verified SMS feedback webhook.
func EncodeVSMSPostback(messageID string) string {
	return base64.URLEncoding.EncodeToString([]byte(messageID))
}

// DecodeVSMSPostback recovers the message ID from a postback payload.
func DecodeVSMSPostback(postback string) (string, error) {
	raw, err := base64.URLEncoding.DecodeString(postback)
	if err != nil {
		return "", errors.Wrap(err, "invalid postback data")
	}
	return string(raw), nil
}
