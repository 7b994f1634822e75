package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidOrder  = errors.New("invalid order parameters")
	ErrInvalidTrade  = errors.New("invalid simulation trade")
	ErrWSDisconnect  = errors.New("websocket disconnected")
	ErrFeedStopped   = errors.New("feed client disconnected")
	ErrDecode        = errors.New("malformed stream message")
	ErrRequestFailed = errors.New("request failed")
	ErrAuthMissing   = errors.New("auth token unavailable")
)

// RequestError is returned by the backend gateway for non-2xx responses,
// network failures and missing auth tokens. Status is 0 when no response
// was received.
type RequestError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *RequestError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *RequestError) Unwrap() error { return e.Err }

// Is makes every RequestError match ErrRequestFailed.
func (e *RequestError) Is(target error) bool {
	return target == ErrRequestFailed
}
