package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidState      = errors.New("invalid batch state")
	ErrValidation        = errors.New("validation failed")
	ErrTransport         = errors.New("provider transport failure")
	ErrMalformedResponse = errors.New("malformed provider response")
	ErrGenerationFailed  = errors.New("generation failed")
	ErrProductionTimeout = errors.New("production timed out")
	ErrComposition       = errors.New("composition failed")
)
