package gateway

import (
	"net/http"
	"strings"
)

// Classify maps a provider error message and HTTP status to a typed failure.
// Matching is best-effort substring inspection of the message; anything
// unrecognized degrades to KindUpstream with the original status, or 500
// when the status is not usable.
func Classify(providerMessage string, status int) *APIError {
	lower := strings.ToLower(providerMessage)
	switch {
	case strings.Contains(lower, "billing") && strings.Contains(lower, "limit"):
		return &APIError{
			Kind:       KindBillingLimit,
			Status:     http.StatusPaymentRequired,
			Message:    billingMessage,
			Details:    billingDetails,
			Resolution: billingResolution,
		}
	case strings.Contains(lower, "rate") && strings.Contains(lower, "limit"):
		return &APIError{
			Kind:    KindRateLimited,
			Status:  http.StatusTooManyRequests,
			Message: rateLimitMessage,
			Details: providerMessage,
		}
	default:
		if status < 400 {
			status = http.StatusInternalServerError
		}
		return &APIError{
			Kind:    KindUpstream,
			Status:  status,
			Message: providerMessage,
		}
	}
}
