package getclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind says whether a failed call is worth retrying.
type Kind int

const (
	KindFatal Kind = iota
	KindTransient
)

func (k Kind) String() string {
	if k == KindTransient {
		return "transient"
	}
	return "fatal"
}

// ErrMissingResponse is returned when the envelope has neither a response
// nor an exception.
var ErrMissingResponse = errors.New("response did not include response payload")

// transientMarkers is matched case-insensitively against error messages. The
// GET services only report free text, so this is the classification rule.
var transientMarkers = []string{
	"unexpected error",
	"timed out",
	"timeout",
	"temporar",
}

// APIError is a failed GET service call.
type APIError struct {
	Service    string
	Method     string
	Message    string
	StatusCode int
	Kind       Kind
	Exception  json.RawMessage
	Err        error
}

func (e *APIError) Error() string {
	return fmt.Sprintf("GET API %s.%s %s", e.Service, e.Method, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Err
}

func newAPIError(service, method, message string) *APIError {
	return &APIError{
		Service: service,
		Method:  method,
		Message: message,
		Kind:    classify(message),
	}
}

func classify(message string) Kind {
	lower := strings.ToLower(message)
	for _, marker := range transientMarkers {
		if strings.Contains(lower, marker) {
			return KindTransient
		}
	}
	return KindFatal
}

// IsTransient reports whether err is a transient GET failure. Errors that did
// not come from this package are classified by their message.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind == KindTransient
	}
	return classify(err.Error()) == KindTransient
}

// parseException extracts a readable message from an exception payload.
func parseException(raw json.RawMessage) string {
	const unknown = "Unknown GET API error"

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if text == "" {
			return unknown
		}
		return text
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err == nil {
		for _, key := range []string{"message", "detailMessage", "error", "errorMessage", "description"} {
			var msg string
			if v, ok := fields[key]; ok && json.Unmarshal(v, &msg) == nil && msg != "" {
				return msg
			}
		}
		return string(raw)
	}

	return unknown
}

// present reports whether a raw envelope member carries a value.
func present(raw json.RawMessage) bool {
	switch strings.TrimSpace(string(raw)) {
	case "", "null", "false", `""`, "0":
		return false
	}
	return true
}
