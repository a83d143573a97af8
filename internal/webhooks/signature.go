package webhooks

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/base64"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

var (
	ErrMissingSignature   = errors.New("missing signature header")
	ErrMalformedSignature = errors.New("malformed signature header")
	ErrSignatureMismatch  = errors.New("signature mismatch")
)

// VerifyGoogleSignature checks the X-Goog-Signature header: base64 of
// an HMAC-SHA512 over payload under the shared key. A header that does
// not decode is a malformed request, a decoded header that does not
// match is a forgery; callers map the two to different status codes.
func VerifyGoogleSignature(key string, payload []byte, signatureB64 string) error {
	if signatureB64 == "" {
		return ErrMissingSignature
	}
	sig, err := base64.StdEncoding.DecodeString(signatureB64)
	if err != nil {
		return ErrMalformedSignature
	}
	mac := hmac.New(sha512.New, []byte(key))
	mac.Write(payload)
	if !hmac.Equal(sig, mac.Sum(nil)) {
		return ErrSignatureMismatch
	}
	return nil
}

// CarrierSignature computes the carrier webhook signature: HMAC-SHA1
// over the full request URL followed by every form parameter name and
// value in lexicographic order, base64 encoded.
func CarrierSignature(authToken, url string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(url)
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(params[k])
	}

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyCarrierSignature checks the X-Twilio-Signature header against
// the per-account auth token.
func VerifyCarrierSignature(authToken, url string, params map[string]string, signature string) error {
	if signature == "" {
		return ErrMissingSignature
	}
	expected := CarrierSignature(authToken, url, params)
	if !hmac.Equal([]byte(expected), []byte(signature)) {
		return ErrSignatureMismatch
	}
	return nil
}
