package backend

import (
	"context"
	"errors"

	"github.com/matheus3301/souk/internal/httpapi"
)

// User-facing copy for errors that carry no usable server message.
const (
	MsgSessionExpired  = "Your session has expired. Please sign in again."
	MsgForbidden       = "You do not have permission to do that."
	MsgEmailUnverified = "Please verify your email address to continue."
	MsgNotFound        = "The requested item could not be found."
	MsgOffline         = "Cannot reach the server. Check your connection and try again."
	MsgUnavailable     = "The service is temporarily unavailable. Please try again later."
	MsgCancelled       = "The request was cancelled."
)

// UserMessage turns an error into the text a front-end should display.
// Validation and other backend-provided messages pass through verbatim.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return MsgCancelled
	}
	var e *httpapi.Error
	if !errors.As(err, &e) {
		return err.Error()
	}
	switch e.Kind {
	case httpapi.KindAuth:
		return MsgSessionExpired
	case httpapi.KindEmailUnverified:
		if e.HasServerMessage() {
			return e.Message
		}
		return MsgEmailUnverified
	case httpapi.KindForbidden:
		if e.HasServerMessage() {
			return e.Message
		}
		return MsgForbidden
	case httpapi.KindNotFound:
		if e.HasServerMessage() {
			return e.Message
		}
		return MsgNotFound
	case httpapi.KindNetwork:
		return MsgOffline
	case httpapi.KindServer:
		return MsgUnavailable
	default:
		return e.Message
	}
}
