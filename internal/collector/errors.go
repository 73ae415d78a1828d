package collector

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrCollectMetrics = errors.ErrCollectMetrics
	ErrExportMetrics  = errors.ErrExportMetrics
	ErrAppendRecord   = errors.ErrorCode("collector_append_record_failed")
	ErrStopTimeout    = errors.ErrorCode("collector_stop_timeout")
)
