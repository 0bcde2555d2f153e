package services

import "errors"

var (
	// ErrValidation wraps every input problem a caller can fix.
	ErrValidation = errors.New("validation failed")

	ErrUnknownCategory  = errors.New("unknown category")
	ErrCategoryMismatch = errors.New("category type does not match entry type")
)
