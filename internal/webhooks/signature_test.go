package webhooks

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func googleSign(key string, payload []byte) string {
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyGoogleSignature(t *testing.T) {
	payload := []byte(`{"requestId":"req-1"}`)

	t.Run("valid", func(t *testing.T) {
		assert.NoError(t, VerifyGoogleSignature("key", payload, googleSign("key", payload)))
	})

	t.Run("missing header", func(t *testing.T) {
		assert.ErrorIs(t, VerifyGoogleSignature("key", payload, ""), ErrMissingSignature)
	})

	t.Run("not base64", func(t *testing.T) {
		assert.ErrorIs(t, VerifyGoogleSignature("key", payload, "%%%"), ErrMalformedSignature)
	})

	t.Run("wrong key", func(t *testing.T) {
		assert.ErrorIs(t, VerifyGoogleSignature("key", payload, googleSign("other", payload)),
			ErrSignatureMismatch)
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := googleSign("key", payload)
		tampered := append([]byte{}, payload...)
		tampered[0] ^= 0x01
		assert.ErrorIs(t, VerifyGoogleSignature("key", tampered, sig), ErrSignatureMismatch)
	})
}

func TestCarrierSignature(t *testing.T) {
	params := map[string]string{
		"AccountSid": "AC123",
		"From":       "+447700900123",
		"Body":       "hello",
	}
	url := "https://gateway.example.com/webhooks/sms"

	sig := CarrierSignature("token", url, params)
	require.NoError(t, VerifyCarrierSignature("token", url, params, sig))

	// Parameter order must not matter; the signature sorts keys.
	reordered := map[string]string{
		"Body":       "hello",
		"AccountSid": "AC123",
		"From":       "+447700900123",
	}
	assert.Equal(t, sig, CarrierSignature("token", url, reordered))

	assert.ErrorIs(t, VerifyCarrierSignature("other", url, params, sig), ErrSignatureMismatch)
	assert.ErrorIs(t, VerifyCarrierSignature("token", url, params, ""), ErrMissingSignature)

	params["Body"] = "tampered"
	assert.ErrorIs(t, VerifyCarrierSignature("token", url, params, sig), ErrSignatureMismatch)
}
