package store

import "errors"

var (
	// ErrSessionNotFound indicates the referenced session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrMessageNotFound indicates the referenced message does not exist or
	// belongs to a different session.
	ErrMessageNotFound = errors.New("message not found")

	// ErrInvalidRating indicates a feedback rating outside up/down.
	ErrInvalidRating = errors.New("invalid rating")
)
