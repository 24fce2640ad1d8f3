// Package analytics holds the covered-call return, statistics, RSI gauge and
// opportunity ranking calculations. Every function is pure and safe for concurrent use.
package analytics

import "errors"

var (
	// ErrInvalidTradeKind is returned when an operation is applied to the wrong trade type.
	ErrInvalidTradeKind = errors.New("invalid trade kind")
	// ErrInvalidDuration is returned for a non-positive holding period.
	ErrInvalidDuration = errors.New("invalid duration")
	// ErrMalformedRecord is returned when paired fields (strike/expiry) are inconsistent.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrDivisionByZero is returned instead of dividing by a zero entry price.
	ErrDivisionByZero = errors.New("division by zero")
	// ErrInvalidThreshold is returned for a confidence threshold outside [0,1].
	ErrInvalidThreshold = errors.New("confidence threshold must be within [0,1]")
)
