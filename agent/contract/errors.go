package contract

import "errors"

var (
	ErrValidation        = errors.New("validation failed")
	ErrGenerationBackend = errors.New("generation backend failed")
	ErrPromptMissing     = errors.New("required prompt is missing")
	ErrUnknownHandler    = errors.New("unknown handler")
)
