package scenario

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrInvalidDuration = errors.ErrorCode("scenario_invalid_duration")
	ErrCancelled       = errors.ErrCancelled
)
