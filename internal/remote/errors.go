package remote

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/suPer8Hu/w3a11y-artisan/internal/apperr"
)

const (
	msgBadRequest   = "Invalid request. Please check your input and try again."
	msgUnauthorized = "Invalid API key. Please check your API key in the plugin settings."
	msgNoCredits    = "Insufficient credits. Please purchase more credits to continue."
	msgForbidden    = "Access forbidden. Your API key does not have permission for this operation."
	msgRateLimited  = "Rate limit exceeded. Please wait before making another request."
	msgServer       = "The AI service encountered an error. Please try again later."
	msgNetwork      = "Could not reach the AI service. Please check your connection and try again."
	msgNoKey        = "API key is not configured. Please add your API key in the plugin settings."
)

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	ResetTime any    `json:"reset_time,omitempty"`
}

// statusError maps a non-200 remote response to the error taxonomy.
func statusError(status int, header http.Header, body []byte) *apperr.AppError {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	remoteMsg := strings.TrimSpace(eb.Error)
	if remoteMsg == "" {
		remoteMsg = strings.TrimSpace(eb.Message)
	}

	var e *apperr.AppError
	switch {
	case status == http.StatusBadRequest:
		e = apperr.Validation(msgBadRequest)
	case status == http.StatusUnauthorized:
		e = apperr.Auth(msgUnauthorized, http.StatusUnauthorized)
	case status == http.StatusPaymentRequired:
		e = apperr.Credit(msgNoCredits)
	case status == http.StatusForbidden:
		e = apperr.Auth(msgForbidden, http.StatusForbidden)
	case status == http.StatusTooManyRequests:
		e = apperr.RateLimit(msgRateLimited)
		reset := header.Get("X-RateLimit-Reset")
		if reset == "" && eb.ResetTime != nil {
			reset = fmt.Sprint(eb.ResetTime)
		}
		if reset != "" {
			e.WithDetails("reset_time", reset)
		}
	case status >= 500:
		e = apperr.Server(nil, msgServer)
	default:
		e = apperr.Server(nil, fmt.Sprintf("Unexpected response from the AI service (status %d).", status))
	}

	e.WithDetails("status", status)
	if remoteMsg != "" {
		e.WithDetails("remote_message", remoteMsg)
	}
	return e
}

// IsInsufficientCredits reports a 402 from the remote service.
func IsInsufficientCredits(err error) bool {
	return apperr.Is(err, apperr.CodeCredit)
}
