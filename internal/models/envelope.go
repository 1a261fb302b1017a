package models

import "encoding/json"

// ResultEnvelope is the uniform result of an execution. Execution never
// returns an error past this boundary.
type ResultEnvelope struct {
	OK            bool            `json:"ok"`
	Operation     string          `json:"operation"`
	Data          json.RawMessage `json:"data,omitempty"`
	ErrorKind     ErrorKind       `json:"error_kind,omitempty"`
	Message       string          `json:"message,omitempty"`
	Details       interface{}     `json:"details,omitempty"`
	Retryable     bool            `json:"retryable"`
	Idempotent    bool            `json:"idempotent"`
	StatusCode    int             `json:"status_code,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// Success wraps a remote payload unchanged.
func Success(operation string, data json.RawMessage) ResultEnvelope {
	return ResultEnvelope{OK: true, Operation: operation, Data: data}
}

// Failure builds a failed envelope from a classified error.
func Failure(operation string, err *Error) ResultEnvelope {
	return ResultEnvelope{
		OK:        false,
		Operation: operation,
		ErrorKind: err.Kind,
		Message:   err.Message,
		Details:   err.Details,
		Retryable: err.Kind == ErrKindTransient,
	}
}
