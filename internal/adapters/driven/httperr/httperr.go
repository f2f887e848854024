// Package httperr classifies failures of the JSON HTTP clients used by the
// embedding and generation adapters into the domain error taxonomy.
package httperr

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/devrag-cli/internal/core/domain"
)

// maxMessage bounds how much of an error body ends up in an error string.
const maxMessage = 300

// FromStatus maps a non-2xx response to a domain error.
//
//	429             RateLimitError with the Retry-After hint
//	413             ErrBatchTooLarge
//	401, 403        ErrUnauthorized
//	404             ConfigurationError wrapping ErrNotFound (unknown model)
//	408, 5xx        ErrTemporary
//	anything else   ErrMalformed
func FromStatus(service string, resp *http.Response, body []byte) error {
	msg := Message(body)

	switch code := resp.StatusCode; {
	case code == http.StatusTooManyRequests:
		return &domain.RateLimitError{Service: service, RetryAfter: RetryAfter(resp.Header, time.Now())}
	case code == http.StatusRequestEntityTooLarge:
		return fmt.Errorf("%s: %w: %s", service, domain.ErrBatchTooLarge, msg)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return fmt.Errorf("%s: %w (status %d): %s", service, domain.ErrUnauthorized, code, msg)
	case code == http.StatusNotFound:
		return &domain.ConfigurationError{Op: service, Err: fmt.Errorf("%w: %s", domain.ErrNotFound, msg)}
	case code == http.StatusRequestTimeout || code >= 500:
		return fmt.Errorf("%s: %w (status %d): %s", service, domain.ErrTemporary, code, msg)
	default:
		return fmt.Errorf("%s: %w (status %d): %s", service, domain.ErrMalformed, code, msg)
	}
}

// FromTransport classifies an error returned by http.Client.Do. The
// caller's context error is passed through; any other transport failure
// (refused connection, client timeout) is temporary.
func FromTransport(ctx context.Context, service string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s: %w", service, ctxErr)
	}
	return fmt.Errorf("%s: %w: %v", service, domain.ErrTemporary, err)
}

// Decode unmarshals a successful response body, reporting ErrMalformed
// on invalid JSON.
func Decode(service string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%s: %w: decode response: %v", service, domain.ErrMalformed, err)
	}
	return nil
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP
// date. It returns zero when the header is absent or unparseable.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}

// Message extracts a human readable error from a provider body. It
// understands {"error":{"message":...}}, {"error":"..."} and
// {"message":"..."}, falling back to the raw text.
func Message(body []byte) string {
	var payload struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		var nested struct {
			Message string `json:"message"`
		}
		var flat string
		switch {
		case len(payload.Error) > 0 && json.Unmarshal(payload.Error, &nested) == nil && nested.Message != "":
			return truncate(nested.Message)
		case len(payload.Error) > 0 && json.Unmarshal(payload.Error, &flat) == nil && flat != "":
			return truncate(flat)
		case payload.Message != "":
			return truncate(payload.Message)
		}
	}
	return truncate(strings.TrimSpace(string(body)))
}

func truncate(s string) string {
	if len(s) <= maxMessage {
		return s
	}
	return s[:maxMessage] + "..."
}
