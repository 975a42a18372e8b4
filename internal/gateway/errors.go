package gateway

import "net/http"

// ErrorKind is the classified category of a generation failure.
type ErrorKind string

const (
	// KindMissingPrompt rejects an empty image prompt before any dispatch.
	KindMissingPrompt ErrorKind = "missing_prompt"
	// KindBillingLimit maps provider messages naming a billing limit.
	KindBillingLimit ErrorKind = "billing_limit_exceeded"
	// KindRateLimited maps provider messages naming a rate limit.
	KindRateLimited ErrorKind = "rate_limited"
	// KindUpstream wraps any other provider failure.
	KindUpstream ErrorKind = "upstream_error"
)

// APIError is a classified generation failure. Status carries the HTTP
// status to surface to the caller; Details and Resolution are only set for
// billing and rate-limit failures.
type APIError struct {
	Kind       ErrorKind
	Status     int
	Message    string
	Details    string
	Resolution string
}

func (e *APIError) Error() string { return e.Message }

const (
	billingMessage    = "OpenAI API billing limit reached. Please check your API key's usage limits in your OpenAI account dashboard."
	billingDetails    = "This usually means you've used all your API credits or reached a spending cap."
	billingResolution = "Visit https://platform.openai.com/usage to check your usage and billing status."
	rateLimitMessage  = "Rate limit exceeded. Please try again in a moment."
)

func missingPromptError() *APIError {
	return &APIError{
		Kind:    KindMissingPrompt,
		Status:  http.StatusBadRequest,
		Message: "Prompt is required",
	}
}
