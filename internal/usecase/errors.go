package usecase

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrSourceFailure     = errors.New("source failure")
	ErrStorageFailure    = errors.New("storage failure")
	ErrDuplicateRejected = errors.New("duplicate rejected")
)

// SourceError carries an error reported by the stats API unchanged.
type SourceError struct {
	Code       int
	Message    string
	Field      string
	Value      string
	HTTPStatus int
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("stats api error code=%d message=%s", e.Code, e.Message)
	if e.Field != "" {
		msg += " field=" + e.Field
	}
	if e.Value != "" {
		msg += " value=" + e.Value
	}
	if e.HTTPStatus != 0 {
		msg += fmt.Sprintf(" http_status=%d", e.HTTPStatus)
	}
	return msg
}
