package tax

import (
	"errors"
	"fmt"
)

var (
	ErrNegativeAmount    = errors.New("amount must not be negative")
	ErrInvalidPercentage = errors.New("percentage must be between 0 and 100")
	ErrNegativeCount     = errors.New("count must not be negative")
	ErrUnknownCategory   = errors.New("unknown taxpayer category")
	ErrInvalidRules      = errors.New("invalid tax rules")
)

// ValidationError reports the input field that failed validation.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}
