package threadkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type ErrorKind string

const (
	ErrorKindNotFound      ErrorKind = "not_found"
	ErrorKindUnauthorized  ErrorKind = "unauthorized"
	ErrorKindInvalidApiKey ErrorKind = "invalid_api_key"
	ErrorKindRateLimited   ErrorKind = "rate_limited"
	ErrorKindNetwork       ErrorKind = "network"
	ErrorKindUnknown       ErrorKind = "unknown"
)

// ApiError is the single error type the gateway surfaces.
// every failure is normalized into exactly one kind. raw transport errors
// never reach callers.
type ApiError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	cause      error
}

func (self *ApiError) Error() string {
	if self.StatusCode != 0 {
		return fmt.Sprintf("api error (%s, status %d): %s", self.Kind, self.StatusCode, self.Message)
	}
	return fmt.Sprintf("api error (%s): %s", self.Kind, self.Message)
}

func (self *ApiError) Unwrap() error {
	return self.cause
}

// NewNetworkError wraps a transport failure where no response was obtained.
func NewNetworkError(cause error) *ApiError {
	return &ApiError{
		Kind:    ErrorKindNetwork,
		Message: cause.Error(),
		cause:   cause,
	}
}

type apiErrorBody struct {
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// classifyStatus maps a non-2xx response to the error taxonomy.
// the body may be a json `{error}`/`{message}` envelope or plain text.
func classifyStatus(statusCode int, body []byte) *ApiError {
	message := strings.TrimSpace(string(body))
	var parsed apiErrorBody
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			message = parsed.Error
		} else if parsed.Message != "" {
			message = parsed.Message
		}
	}

	kind := ErrorKindUnknown
	switch statusCode {
	case http.StatusNotFound:
		kind = ErrorKindNotFound
	case http.StatusUnauthorized, http.StatusForbidden:
		kind = ErrorKindUnauthorized
		// the identity service reports a bad public key with the same
		// status as a bad user token. sniff the message apart.
		lower := strings.ToLower(message)
		if strings.Contains(lower, "api key") || strings.Contains(lower, "project") {
			kind = ErrorKindInvalidApiKey
		}
	case http.StatusTooManyRequests:
		kind = ErrorKindRateLimited
	}

	return &ApiError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
	}
}
