package analyzer

import (
	"fmt"
	"strings"
	"time"
)

// RenderReport formats a summary as the plain-text evaluation report.
func RenderReport(s Summary) string {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	rule := strings.Repeat("=", 60)
	line("%s", rule)
	line("EDGE DEPLOYMENT EVALUATION REPORT")
	line("%s", rule)
	line("Analysis Date: %s", s.Overview.AnalysisTimestamp.Format(time.RFC3339))
	line("Scenarios Analyzed: %s", strings.Join(s.Overview.ScenariosAnalyzed, ", "))
	line("")

	for _, id := range s.Overview.ScenariosAnalyzed {
		sc := s.Scenarios[id]
		line("SCENARIO %s SUMMARY", id)
		line("%s", strings.Repeat("-", 30))
		line("Iterations: %d", sc.Iterations)
		line("Throughput: %.2f tasks/min", sc.Throughput)

		if rt := sc.Performance.ResponseTime; rt != nil {
			line("Response Time - Mean: %.2fms, P95: %.2fms, P99: %.2fms", rt.Mean, rt.P95, rt.P99)
		}
		if acc := sc.Performance.Accuracy; acc != nil {
			line("Accuracy - Mean: %.2f%%, Std: %.2f%%", acc.Mean, acc.Std)
		}
		if cpu := sc.Performance.CPU; cpu != nil {
			line("CPU Usage - Mean: %.1f%%, Max: %.1f%%, Time Above %.0f%%: %.1f%%",
				cpu.Mean, cpu.Max, s.Overview.LoadThreshold, cpu.TimeAboveThreshold*100)
		}
		if n := sc.Tests.Normality; n != nil {
			verdict := "not normal"
			if n.IsNormal {
				verdict = "normal"
			}
			line("Normality (%s): W=%.4f, p=%.4f (%s)", n.Test, n.Statistic, n.PValue, verdict)
		}
		if ci := sc.Tests.ConfidenceInterval; ci != nil {
			line("95%% CI of mean response time: [%.2fms, %.2fms]", ci.Lower, ci.Upper)
		}
		if f := sc.Failover; f != nil {
			line("Failover - Detection: %.2fs, Election: %.2fs, Downtime: %.2fs",
				f.AvgDetectionTime, f.AvgElectionTime, f.AvgDowntime)
			line("Failover - Degradation: %.1f%%, Recovery Rate: %.2f, Skipped Recoveries: %d",
				f.AvgDegradation, f.AvgRecoverySuccessRate, f.RecoveriesSkipped)
		}
		if l := sc.LoadBalance; l != nil {
			line("Load Balancing - Shedding Events: %.1f, Distribution Ratio: %.2f, Effectiveness: %.1f",
				l.AvgLoadSheddingEvents, l.AvgDistributionRatio, l.AvgEffectiveness)
			line("Load Balancing - Supervisor: %.2fms, Peers: %.2fms",
				l.AvgResponseSupervisor, l.AvgResponsePeers)
		}
		line("")
	}

	if len(s.CrossScenario.PairwiseComparisons) > 0 {
		line("CROSS-SCENARIO STATISTICAL COMPARISONS")
		line("%s", strings.Repeat("-", 40))
		for _, c := range s.CrossScenario.PairwiseComparisons {
			verdict := "Not significant"
			if c.Significant {
				verdict = "SIGNIFICANT"
			}
			line("%s vs %s: t=%.3f, p=%.4f (%s)", c.Scenario1, c.Scenario2, c.TStatistic, c.PValue, verdict)
			line("  Mean response times: %.2fms vs %.2fms", c.Mean1, c.Mean2)
		}
		line("")
	}

	return b.String()
}
