package gate

import "errors"

var (
	ErrInvalidLimit = errors.New("gate: limit must be positive")
	ErrUnknownClass = errors.New("gate: unknown dependency class")
)
