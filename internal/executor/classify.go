package executor

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"

	"github.com/bobmcallan/toolsmith/internal/client"
	"github.com/bobmcallan/toolsmith/internal/models"
)

// remoteValidationExc are Frappe exception classes raised as 500 that are
// business-rule rejections rather than server faults.
var remoteValidationExc = []string{"ValidationError", "MandatoryError", "DuplicateEntryError"}

// Classify maps a remote call failure onto the error taxonomy. ctx is the
// caller's context so its cancellation can be told apart from a timeout.
// The returned status is 0 when no HTTP reply was received.
func Classify(ctx context.Context, err error) (*models.Error, int) {
	var se *client.StatusError
	if errors.As(err, &se) {
		return classifyStatus(se), se.StatusCode
	}
	var tooLarge *client.ResponseTooLargeError
	if errors.As(err, &tooLarge) {
		e := models.WrapError(models.ErrKindRemote, err, "remote response exceeds %d bytes", tooLarge.Limit)
		e.Details = map[string]interface{}{"max_response_bytes": tooLarge.Limit}
		return e, tooLarge.StatusCode
	}

	switch {
	case errors.Is(ctx.Err(), context.Canceled):
		return models.WrapError(models.ErrKindCanceled, err, "call canceled by caller"), 0
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.WrapError(models.ErrKindTransient, err, "remote call timed out"), 0
	case errors.Is(err, client.ErrThrottled):
		return models.WrapError(models.ErrKindTransient, err, "remote call throttled"), 0
	case errors.Is(err, context.Canceled):
		return models.WrapError(models.ErrKindCanceled, err, "call canceled"), 0
	case isTransportFailure(err):
		return models.WrapError(models.ErrKindTransient, err, "remote unreachable"), 0
	}
	return models.WrapError(models.ErrKindRemote, err, "remote call failed"), 0
}

func isTransportFailure(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF)
}

func classifyStatus(se *client.StatusError) *models.Error {
	msg := se.Message
	if msg == "" {
		msg = http.StatusText(se.StatusCode)
	}

	var kind models.ErrorKind
	switch se.StatusCode {
	case http.StatusUnauthorized:
		kind = models.ErrKindUnauthorized
	case http.StatusForbidden:
		kind = models.ErrKindPermissionDenied
	case http.StatusNotFound:
		kind = models.ErrKindNotFound
	case http.StatusBadRequest, http.StatusConflict, http.StatusExpectationFailed, http.StatusUnprocessableEntity:
		kind = models.ErrKindRemoteValidation
	case http.StatusRequestTimeout, http.StatusTooEarly, http.StatusTooManyRequests,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		kind = models.ErrKindTransient
	case http.StatusInternalServerError:
		kind = models.ErrKindRemote
		for _, exc := range remoteValidationExc {
			if strings.HasSuffix(se.ExcType, exc) {
				kind = models.ErrKindRemoteValidation
				break
			}
		}
	default:
		kind = models.ErrKindRemote
	}

	e := models.WrapError(kind, se, "%s", msg)
	e.Details = remoteBody(se.Body)
	return e
}

// remoteBody returns the remote error body verbatim, as raw JSON when it is
// JSON and as a string otherwise.
func remoteBody(body []byte) interface{} {
	if len(body) == 0 {
		return nil
	}
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}
