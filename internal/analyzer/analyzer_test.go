package analyzer_test

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/edgebench/internal/analyzer"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v + float64(i%7)
	}
	return out
}

func sampleResults() scenario.Results {
	return scenario.Results{
		scenario.IDNormal: {
			{
				ScenarioID: scenario.IDNormal, TasksCompleted: 20, TotalDuration: 60,
				ResponseTimes: repeat(100, 20), AccuracyScores: repeat(88, 20), CPUUsage: []float64{40, 80, 60, 75},
			},
			{
				ScenarioID: scenario.IDNormal, TasksCompleted: 20, TotalDuration: 60,
				ResponseTimes: repeat(110, 20), AccuracyScores: repeat(89, 20), CPUUsage: []float64{50, 55},
			},
		},
		scenario.IDFailover: {
			{
				ScenarioID: scenario.IDFailover, TasksCompleted: 8, Elapsed: 120,
				ResponseTimes: repeat(300, 8),
				Failover: &scenario.FailoverResult{
					FailureDetectionTime: 4, LeaderElectionTime: 1, Downtime: 5,
					DetectionReported: true, TasksBeforeFailure: 5, TasksAfterRecovery: 3,
					ResponseTimesBefore: repeat(300, 5), ResponseTimesAfter: repeat(303, 3),
					PerformanceDegradation: 10, RecoverySuccessRate: 0.6,
				},
			},
			{
				ScenarioID: scenario.IDFailover, TasksCompleted: 3, Elapsed: 40,
				ResponseTimes: repeat(300, 3),
				Failover: &scenario.FailoverResult{
					FailureDetectionTime: 30, LeaderElectionTime: 3, Downtime: 33,
					RecoverySkipped: true, TasksBeforeFailure: 3,
					ResponseTimesBefore: repeat(300, 3), ResponseTimesAfter: []float64{},
				},
			},
		},
		scenario.IDLoadBalance: {
			{
				ScenarioID: scenario.IDLoadBalance, TasksCompleted: 30, TotalDuration: 300,
				ResponseTimes: repeat(500, 30), AccuracyScores: repeat(80, 30), CPUUsage: []float64{},
				LoadBalance: &scenario.LoadBalanceResult{
					LoadSheddingEvents: 12, TasksOnSupervisor: 18, TasksOnPeers: 12,
					LoadDistributionRatio: 0.4, LoadBalancingEffectiveness: 70,
					AvgResponseSupervisor: 480, AvgResponsePeers: 0,
					CPUUsageTimeline: []scenario.TimelineEntry{{SupervisorCPU: 65}, {SupervisorCPU: 85}},
				},
			},
		},
	}
}

func TestSummarize(t *testing.T) {
	a := analyzer.New(t.TempDir(), logger.Nop())
	s := a.Summarize(sampleResults())

	assert.Equal(t, 3, s.Overview.TotalScenarios)
	assert.Equal(t, []string{"S1", "S2", "S3"}, s.Overview.ScenariosAnalyzed)

	s1 := s.Scenarios["S1"]
	assert.Equal(t, 2, s1.Iterations)
	require.NotNil(t, s1.Performance.ResponseTime)
	assert.Equal(t, 40, s1.Performance.ResponseTime.Count)
	require.NotNil(t, s1.Performance.CPU)
	assert.InDelta(t, 2.0/6.0, s1.Performance.CPU.TimeAboveThreshold, 1e-9)
	assert.InDelta(t, 20.0, s1.Throughput, 1e-9)
	require.NotNil(t, s1.Tests.Normality)
	assert.Equal(t, "Shapiro-Wilk", s1.Tests.Normality.Test)
	require.NotNil(t, s1.Tests.ConfidenceInterval)
	assert.Less(t, s1.Tests.ConfidenceInterval.Lower, s1.Performance.ResponseTime.Mean)
	assert.Nil(t, s1.Failover)

	s2 := s.Scenarios["S2"]
	assert.Nil(t, s2.Tests.Normality)
	assert.Nil(t, s2.Performance.Accuracy)
	assert.InDelta(t, 11.0/160.0*60, s2.Throughput, 1e-9)
	require.NotNil(t, s2.Failover)
	assert.InDelta(t, 17.0, s2.Failover.AvgDetectionTime, 1e-9)
	assert.InDelta(t, 19.0, s2.Failover.AvgDowntime, 1e-9)
	assert.Equal(t, 1, s2.Failover.RecoveriesSkipped)
	assert.Equal(t, 1, s2.Failover.DetectionsReported)
	assert.Equal(t, 3, s2.Failover.TasksAfterRecovery)

	s3 := s.Scenarios["S3"]
	require.NotNil(t, s3.Performance.CPU)
	assert.InDelta(t, 75.0, s3.Performance.CPU.Mean, 1e-9)
	assert.InDelta(t, 0.5, s3.Performance.CPU.TimeAboveThreshold, 1e-9)
	require.NotNil(t, s3.LoadBalance)
	assert.InDelta(t, 12.0, s3.LoadBalance.AvgLoadSheddingEvents, 1e-9)
	assert.Zero(t, s3.LoadBalance.AvgResponsePeers)

	// S2 has 11 samples, S1 40 and S3 30: every pair qualifies.
	pairs := s.CrossScenario.PairwiseComparisons
	require.Len(t, pairs, 3)
	assert.Equal(t, "S1", pairs[0].Scenario1)
	assert.Equal(t, "S2", pairs[0].Scenario2)
	assert.True(t, pairs[0].Significant)
	assert.Equal(t, "S3", pairs[2].Scenario2)
}

func TestSummarizeSkipsSmallComparisons(t *testing.T) {
	results := sampleResults()
	results[scenario.IDFailover] = results[scenario.IDFailover][1:]

	s := analyzer.New(t.TempDir(), nil).Summarize(results)
	pairs := s.CrossScenario.PairwiseComparisons
	require.Len(t, pairs, 1)
	assert.Equal(t, "S1", pairs[0].Scenario1)
	assert.Equal(t, "S3", pairs[0].Scenario2)
}

func TestSummarizeEmpty(t *testing.T) {
	s := analyzer.New(t.TempDir(), nil).Summarize(scenario.Results{})
	assert.Zero(t, s.Overview.TotalScenarios)
	assert.Empty(t, s.CrossScenario.PairwiseComparisons)

	s = analyzer.New(t.TempDir(), nil).Summarize(scenario.Results{scenario.IDNormal: {{ScenarioID: scenario.IDNormal}}})
	sc := s.Scenarios["S1"]
	assert.Nil(t, sc.Performance.ResponseTime)
	assert.Zero(t, sc.Throughput)
}

type recordingCharts struct {
	calls int
	err   error
}

func (c *recordingCharts) Render(scenario.Results, analyzer.Summary) error {
	c.calls++
	return c.err
}

func TestAnalyzeWritesArtifacts(t *testing.T) {
	dir := t.TempDir()
	charts := &recordingCharts{err: errors.New("no fonts")}
	a := analyzer.New(dir, logger.Nop(), analyzer.WithCharts(charts))

	require.NoError(t, a.Analyze(sampleResults()))
	assert.Equal(t, 1, charts.calls)

	data, err := os.ReadFile(filepath.Join(dir, "statistical_summary.json"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Contains(t, doc, "experiment_overview")
	assert.Contains(t, doc, "scenario_summaries")
	assert.Contains(t, doc, "cross_scenario_analysis")

	report, err := os.ReadFile(filepath.Join(dir, "evaluation_report.txt"))
	require.NoError(t, err)
	text := string(report)
	assert.Contains(t, text, "SCENARIO S1 SUMMARY")
	assert.Contains(t, text, "Time Above 70%")
	assert.Contains(t, text, "S1 vs S2")
	assert.Contains(t, text, "SIGNIFICANT")
	assert.Contains(t, text, "Failover - Detection: 17.00s")
}

func TestWithThreshold(t *testing.T) {
	s := analyzer.New(t.TempDir(), nil, analyzer.WithThreshold(50)).Summarize(sampleResults())
	assert.InDelta(t, 4.0/6.0, s.Scenarios["S1"].Performance.CPU.TimeAboveThreshold, 1e-9)
}
