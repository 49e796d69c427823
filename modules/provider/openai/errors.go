package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/starpal/starpal/internal/provider"
)

var errAuth = errors.New("authentication failed")

// mapHTTPError converts a non-2xx API response into a provider error,
// preferring the sentinel errors the service layer can act on.
func mapHTTPError(status int, body []byte) error {
	var apiErr apiError
	msg := strings.TrimSpace(string(body))
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		msg = apiErr.Error.Message
	}

	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", provider.ErrRateLimit, msg)
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", errAuth, msg)
	case status == http.StatusBadRequest && isContextLength(apiErr, msg):
		return fmt.Errorf("%w: %s", provider.ErrContextLength, msg)
	case status >= 500:
		return fmt.Errorf("%w: status %d: %s", provider.ErrProviderDown, status, msg)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, msg)
	}
}

func isContextLength(apiErr apiError, msg string) bool {
	if apiErr.Error.Code == "context_length_exceeded" {
		return true
	}
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "context length") || strings.Contains(lower, "maximum context")
}

// mapConnectionError classifies transport failures. Context
// cancellation passes through untouched so callers can tell an aborted
// request from a broken provider.
func mapConnectionError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", provider.ErrProviderDown, err)
}
