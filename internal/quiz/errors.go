// backend/internal/quiz/errors.go
package quiz

import "errors"

var (
	ErrCollectionNotFound = errors.New("collection not found")
	// ErrEmptyCollection is only ever surfaced as a warning toast.
	ErrEmptyCollection = errors.New("collection has no items")
	ErrReportTimeout   = errors.New("score report timed out")
	ErrReportFailure   = errors.New("score report failed")
	ErrInvalidState    = errors.New("invalid session state")
	ErrSessionNotFound = errors.New("session not found")
	ErrPartyNotFound   = errors.New("party not found")
	ErrForbidden       = errors.New("session belongs to another user")
)
