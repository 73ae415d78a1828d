package orchestrator

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrUnknownScenario = errors.ErrUnknownScenario
	ErrPersistResults  = errors.ErrPersistResults
	ErrScenarioFailed  = errors.ErrorCode("orchestrator_scenario_failed")
	ErrAnalysisFailed  = errors.ErrorCode("orchestrator_analysis_failed")
)
