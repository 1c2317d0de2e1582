package contracts

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDataUnavailable: provider cannot supply universe/factor/price. Aborts the cycle.
	ErrDataUnavailable = errors.New("data unavailable")

	// ErrConstraintViolation: executor rejected the weight vector. Surfaced, never retried.
	ErrConstraintViolation = errors.New("constraint violation")

	// ErrInvalidWeights: allocator produced a vector breaking weight invariants
	ErrInvalidWeights = errors.New("invalid weight vector")
)

// DataUnavailableError carries where the lookup failed
type DataUnavailableError struct {
	Stage    Stage
	Security Security // empty for universe-level failures
	Date     time.Time
	Err      error
}

// Error implements error
func (e *DataUnavailableError) Error() string {
	where := string(e.Stage)
	if e.Security != "" {
		where += " " + string(e.Security)
	}
	msg := fmt.Sprintf("%s: %s as of %s", ErrDataUnavailable, where, e.Date.Format("2006-01-02"))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the provider error
func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// Is matches ErrDataUnavailable
func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// NewDataUnavailable builds a DataUnavailableError
func NewDataUnavailable(stage Stage, sec Security, date time.Time, err error) *DataUnavailableError {
	return &DataUnavailableError{Stage: stage, Security: sec, Date: date, Err: err}
}

// ConstraintViolationError is returned by executors rejecting a vector
type ConstraintViolationError struct {
	Constraint string  `json:"constraint"`
	Limit      float64 `json:"limit"`
	Actual     float64 `json:"actual"`
	Message    string  `json:"message,omitempty"`
}

// Error implements error
func (e *ConstraintViolationError) Error() string {
	msg := fmt.Sprintf("%s: %s limit %.6f actual %.6f", ErrConstraintViolation, e.Constraint, e.Limit, e.Actual)
	if e.Message != "" {
		msg += " (" + e.Message + ")"
	}
	return msg
}

// Is matches ErrConstraintViolation
func (e *ConstraintViolationError) Is(target error) bool {
	return target == ErrConstraintViolation
}
