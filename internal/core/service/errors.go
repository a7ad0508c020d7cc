package service

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateRequest = errors.New("duplicate request")
	ErrNotReady         = errors.New("order is not ready to submit")
	ErrOrderNotFound    = errors.New("order not found")
	ErrSessionNotFound  = errors.New("session not found")
)

type validationError struct {
	field string
	msg   string
}

func (e *validationError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.msg)
}

func invalid(field, format string, args ...any) error {
	return &validationError{field: field, msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	var v *validationError
	return errors.As(err, &v) || errors.Is(err, ErrNotReady)
}
