package service

import "burn.note/internal/store"

// ValidationError is a problem with the caller's input.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

var (
	ErrContentRequired = &ValidationError{Reason: "content required"}
	ErrPayloadTooLarge = &ValidationError{Reason: "payload too large"}
	ErrInvalidKind     = &ValidationError{Reason: "type must be 'text' or 'file'"}
	ErrInvalidTTL      = &ValidationError{Reason: "expiry must be a positive number of seconds"}
)

// ErrNotFound covers never-created, expired and already-read secrets alike.
var ErrNotFound = store.ErrNotFound
