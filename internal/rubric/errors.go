package rubric

import "errors"

var (
	// ErrInvariant is returned when a distribution would violate its counting invariant.
	ErrInvariant = errors.New("distribution invariant violated")
	// ErrTooManyAnswers is returned when more raw answers than rubric questions are supplied.
	ErrTooManyAnswers = errors.New("too many answers")
	// ErrMalformedAnswers is returned when a stored answer set cannot be decoded.
	ErrMalformedAnswers = errors.New("malformed answer set")
)
