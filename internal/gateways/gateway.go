// Package gateway holds the outbound HTTP clients for the messaging
// platforms: Business Messages, RCS Business Messaging, the carrier
// SMS API and Verified SMS.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultTimeout = 15 * time.Second

// PlatformError is a definitive rejection from a platform. The message
// that caused it should be failed with the description, not retried.
type PlatformError struct {
	StatusCode  int
	Description string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("platform rejected request (%d): %s", e.StatusCode, e.Description)
}

// IsPlatformError reports whether err is a definitive platform
// rejection rather than a transport failure worth retrying.
func IsPlatformError(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe)
}

type platformErrorBody struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func doJSON(ctx context.Context, client *fasthttp.Client, health *HealthTracker, timeout time.Duration, method, url, bearer string, body []byte) (int, []byte, error) {
	if err := health.Allow(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(url)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.SetBody(body)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(timeout)
	}

	start := time.Now()
	if err := client.DoDeadline(req, resp, deadline); err != nil {
		health.RecordFailure()
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	// Any response, including a rejection, means the endpoint answered.
	health.RecordSuccess(time.Since(start))

	out := make([]byte, len(resp.Body()))
	copy(out, resp.Body())
	return resp.StatusCode(), out, nil
}
