package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// GenericErrorMessage is the fallback shown when the backend gives us
// nothing usable.
const GenericErrorMessage = "Something went wrong. Please try again later."

// APIError is a structured HTTP error response from the backend. Bodies come
// in two shapes: {"detail": "..."} or {"field": ["msg", ...]}.
type APIError struct {
	Status int
	Detail string
	Fields map[string][]string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message())
}

// Message normalizes the error into a single human-readable string.
// Priority: detail, then the first field's first message, then the generic
// fallback. Field names are sorted so the choice is deterministic.
func (e *APIError) Message() string {
	if e.Detail != "" {
		return e.Detail
	}

	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if msgs := e.Fields[name]; len(msgs) > 0 && msgs[0] != "" {
			return msgs[0]
		}
	}
	return GenericErrorMessage
}

func parseAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{Status: status}
	if len(body) == 0 {
		return apiErr
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return apiErr
	}

	for name, val := range raw {
		var str string
		if err := json.Unmarshal(val, &str); err == nil {
			if name == "detail" {
				apiErr.Detail = str
				continue
			}
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[name] = []string{str}
			continue
		}

		var msgs []string
		if err := json.Unmarshal(val, &msgs); err == nil {
			if apiErr.Fields == nil {
				apiErr.Fields = make(map[string][]string)
			}
			apiErr.Fields[name] = msgs
		}
	}
	return apiErr
}

// Humanize turns any request error into a message fit for the UI. Transport
// failures never expose internals.
func Humanize(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message()
	}
	return GenericErrorMessage
}
