package llm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/joseph-ayodele/writing-eval/internal/common"
)

// ErrorKind classifies provider-level failures.
type ErrorKind string

const (
	KindConfig    ErrorKind = "configuration"
	KindTransport ErrorKind = "transport"
	KindEmpty     ErrorKind = "empty_payload"
	KindMalformed ErrorKind = "malformed_output"
)

// ProviderError is returned by adapters. Its message omits the provider name; the
// orchestrator adds it when building the failure trail.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	StatusCode int
	Message    string
	Cause      error
}

func (e *ProviderError) Error() string {
	msg := string(e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d %s)", e.StatusCode, statusClass(e.StatusCode))
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both the kind sentinel and the underlying cause.
func (e *ProviderError) Unwrap() []error {
	errs := []error{e.sentinel()}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func (e *ProviderError) sentinel() error {
	switch e.Kind {
	case KindConfig:
		return common.ErrProviderConfig
	case KindTransport:
		return common.ErrTransport
	default:
		return common.ErrMalformedOutput
	}
}

// KindOf returns the kind of a provider error, or "" if err is not one.
func KindOf(err error) ErrorKind {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return ""
}

func ConfigError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindConfig, Message: message}
}

func TransportError(provider string, status int, body []byte, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindTransport, StatusCode: status, Message: snippet(body), Cause: cause}
}

func MalformedError(provider, message string, cause error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindMalformed, Message: message, Cause: cause}
}

func EmptyError(provider, message string) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindEmpty, Message: message}
}

// statusClass names the usual meaning of a non-2xx status for operator logs.
func statusClass(status int) string {
	switch status {
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusUnauthorized:
		return "auth"
	case http.StatusForbidden:
		return "permission"
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return "timeout"
	case http.StatusBadRequest:
		return "bad_request"
	default:
		if status >= 500 {
			return "server"
		}
		return "unexpected"
	}
}

func snippet(body []byte) string {
	const limit = 300
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}
