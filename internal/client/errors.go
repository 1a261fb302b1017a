package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrThrottled is returned when the rate limiter cannot admit a call before
// its deadline.
var ErrThrottled = errors.New("rate limit wait exceeds deadline")

// ResponseTooLargeError is returned when a reply body exceeds the configured
// limit. The body is discarded rather than truncated.
type ResponseTooLargeError struct {
	Limit      int64
	StatusCode int
}

func (e *ResponseTooLargeError) Error() string {
	return fmt.Sprintf("remote response exceeds %d bytes", e.Limit)
}

// StatusError is returned for any remote reply with status 400 or above.
// Body holds the reply verbatim.
type StatusError struct {
	StatusCode int
	Body       []byte
	// ExcType is the Frappe exception class when the body carried one.
	ExcType string
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("remote returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("remote returned %d", e.StatusCode)
}

// frappeError is the error body shape Frappe emits.
type frappeError struct {
	ExcType        string `json:"exc_type"`
	Exception      string `json:"exception"`
	Message        string `json:"message"`
	ServerMessages string `json:"_server_messages"`
	Error          string `json:"error"`
}

func newStatusError(status int, body []byte) *StatusError {
	e := &StatusError{StatusCode: status, Body: body}

	var fe frappeError
	if err := json.Unmarshal(body, &fe); err != nil {
		text := strings.TrimSpace(string(body))
		if len(text) > 200 {
			text = text[:200]
		}
		e.Message = text
		return e
	}

	e.ExcType = fe.ExcType
	switch {
	case fe.Message != "":
		e.Message = fe.Message
	case fe.Exception != "":
		e.Message = fe.Exception
	case fe.Error != "":
		e.Message = fe.Error
	case fe.ServerMessages != "":
		e.Message = serverMessage(fe.ServerMessages)
	}
	if e.ExcType == "" && fe.Exception != "" {
		// "frappe.exceptions.ValidationError: ..." carries the class as a prefix
		if head, _, ok := strings.Cut(fe.Exception, ":"); ok {
			parts := strings.Split(head, ".")
			e.ExcType = parts[len(parts)-1]
		}
	}
	return e
}

// serverMessage extracts the first message of Frappe's double-encoded
// _server_messages list.
func serverMessage(raw string) string {
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil || len(list) == 0 {
		return raw
	}
	var msg struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(list[0]), &msg); err != nil || msg.Message == "" {
		return list[0]
	}
	return msg.Message
}
