package errors

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated      = fmt.Errorf("missing or invalid authentication token")
	ErrForbiddenParticipant = fmt.Errorf("authenticated identity is not part of the conversation")
	ErrParticipantNotFound  = fmt.Errorf("participant not found")
	ErrInvalidParticipantID = fmt.Errorf("invalid participant id")
	ErrRateLimited          = fmt.Errorf("rate limit exceeded")
	ErrPersistence          = fmt.Errorf("message could not be persisted")
	ErrMessageNotFound      = fmt.Errorf("message not found")
	ErrInvalidKey           = fmt.Errorf("invalid encryption key")
	ErrChannelClosed        = fmt.Errorf("channel closed")
	ErrContentTooLong       = fmt.Errorf("message text exceeds maximum length")
	ErrMalformedFrame       = fmt.Errorf("malformed frame")
	ErrWorkerPanic          = fmt.Errorf("worker panic")
)

// Close codes sent to the client when a session ends or a handshake is refused.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	CloseInternal        = 4000
	CloseSessionReplaced = 4001
	CloseUnauthenticated = 4003
	CloseNotFound        = 4004
	CloseRateLimited     = 4029
)

// MapToCloseCode converts a session-ending error into a close code and a readable reason.
func MapToCloseCode(err error) (int, string) {
	switch {
	case err == nil, errors.Is(err, ErrChannelClosed):
		return CloseNormal, "session closed"
	case errors.Is(err, context.Canceled):
		return CloseGoingAway, "Server shutting down"
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, ErrForbiddenParticipant):
		return CloseUnauthenticated, "Invalid authentication token"
	case errors.Is(err, ErrParticipantNotFound), errors.Is(err, ErrInvalidParticipantID):
		return CloseNotFound, "Participant not found"
	case errors.Is(err, ErrRateLimited):
		return CloseRateLimited, "Rate limit exceeded"
	default:
		return CloseInternal, "Internal server error"
	}
}

// Is and As mirror the standard library so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
