package charts_test

import (
	"path/filepath"
	"testing"

	"codeberg.org/mutker/edgebench/internal/analyzer"
	"codeberg.org/mutker/edgebench/internal/analyzer/charts"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderWritesPNGs(t *testing.T) {
	dir := t.TempDir()
	results := scenario.Results{
		scenario.IDNormal: {{
			ScenarioID: scenario.IDNormal, TasksCompleted: 4, TotalDuration: 60,
			ResponseTimes: []float64{100, 120, 90, 110}, AccuracyScores: []float64{88, 90, 91, 87},
			CPUUsage: []float64{40, 60, 75, 50},
		}},
		scenario.IDFailover: {{
			ScenarioID: scenario.IDFailover, TasksCompleted: 2, TotalDuration: 60,
			ResponseTimes: []float64{200, 220},
			Failover: &scenario.FailoverResult{
				FailureDetectionTime: 3, LeaderElectionTime: 1, Downtime: 4,
				ResponseTimesBefore: []float64{200}, ResponseTimesAfter: []float64{220},
			},
		}},
		scenario.IDLoadBalance: {{
			ScenarioID: scenario.IDLoadBalance, TasksCompleted: 3, TotalDuration: 60,
			ResponseTimes: []float64{300, 320, 310},
			LoadBalance: &scenario.LoadBalanceResult{
				ResponseTimesSupervisor: []float64{300, 320}, ResponseTimesPeers: []float64{310},
				LoadBalancingEffectiveness: 80,
				CPUUsageTimeline:           []scenario.TimelineEntry{{SupervisorCPU: 60}, {SupervisorCPU: 82}},
			},
		}},
	}
	summary := analyzer.New(dir, nil).Summarize(results)

	require.NoError(t, charts.New(dir, 70).Render(results, summary))

	for _, name := range []string{
		"response_time_analysis.png",
		"response_time_hist_S1.png",
		"cpu_utilization_analysis.png",
		"accuracy_analysis.png",
		"throughput_analysis.png",
		"failover_analysis.png",
		"load_balancing_analysis.png",
	} {
		assert.FileExists(t, filepath.Join(dir, "plots", name))
	}
}

func TestRenderSkipsEmptyCharts(t *testing.T) {
	dir := t.TempDir()
	results := scenario.Results{scenario.IDNormal: {{ScenarioID: scenario.IDNormal}}}
	summary := analyzer.New(dir, nil).Summarize(results)

	require.NoError(t, charts.New(dir, 0).Render(results, summary))
	assert.NoFileExists(t, filepath.Join(dir, "plots", "response_time_analysis.png"))
	assert.NoFileExists(t, filepath.Join(dir, "plots", "failover_analysis.png"))
	assert.FileExists(t, filepath.Join(dir, "plots", "throughput_analysis.png"))
}
