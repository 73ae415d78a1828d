package analyzer

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrWriteArtifact = errors.ErrWriteArtifact
	ErrRenderCharts  = errors.ErrorCode("analyzer_render_charts_failed")
)
