package telemetry

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrWriteTextfile = errors.ErrorCode("telemetry_write_textfile_failed")
)
