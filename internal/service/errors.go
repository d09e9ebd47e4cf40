package service

import (
	"errors"
	"fmt"
)

var (
	ErrAuthentication      = errors.New("authentication required")
	ErrNotFound            = errors.New("call not found")
	ErrForbidden           = errors.New("not a participant of this call")
	ErrInvalidState        = errors.New("transition not allowed in current call state")
	ErrUpstreamUnavailable = errors.New("recognition service unavailable")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrBadRequest          = errors.New("bad request")
)

// Error kinds as they appear on the wire
const (
	KindAuthentication      = "AuthenticationError"
	KindNotFound            = "NotFoundError"
	KindForbidden           = "ForbiddenError"
	KindInvalidState        = "InvalidStateError"
	KindUpstreamUnavailable = "UpstreamUnavailableError"
	KindRateLimited         = "RateLimitedError"
	KindBadRequest          = "BadRequestError"
	KindInternal            = "InternalError"
)

// ErrorKind classifies err into one of the wire kinds
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrAuthentication):
		return KindAuthentication
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrUpstreamUnavailable):
		return KindUpstreamUnavailable
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrBadRequest):
		return KindBadRequest
	default:
		return KindInternal
	}
}

func badRequest(msg string) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, msg)
}
