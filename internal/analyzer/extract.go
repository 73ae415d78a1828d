package analyzer

import "codeberg.org/mutker/edgebench/internal/scenario"

// ResponseTimes concatenates the response times of every run.
func ResponseTimes(runs []scenario.Result) []float64 {
	var out []float64
	for _, r := range runs {
		out = append(out, r.ResponseTimes...)
	}
	return out
}

func AccuracyScores(runs []scenario.Result) []float64 {
	var out []float64
	for _, r := range runs {
		out = append(out, r.AccuracyScores...)
	}
	return out
}

// CPUUsage concatenates the CPU samples of every run. A run without
// samples contributes its load monitor timeline instead.
func CPUUsage(runs []scenario.Result) []float64 {
	var out []float64
	for _, r := range runs {
		if len(r.CPUUsage) > 0 {
			out = append(out, r.CPUUsage...)
			continue
		}
		if r.LoadBalance != nil {
			for _, e := range r.LoadBalance.CPUUsageTimeline {
				out = append(out, e.SupervisorCPU)
			}
		}
	}
	return out
}

// FailoverResponseTimes splits failover response times around the failure.
func FailoverResponseTimes(runs []scenario.Result) (before, after []float64) {
	for _, r := range runs {
		if r.Failover == nil {
			continue
		}
		before = append(before, r.Failover.ResponseTimesBefore...)
		after = append(after, r.Failover.ResponseTimesAfter...)
	}
	return before, after
}

// LoadBalanceResponseTimes splits load balancing response times by target.
func LoadBalanceResponseTimes(runs []scenario.Result) (supervisor, peers []float64) {
	for _, r := range runs {
		if r.LoadBalance == nil {
			continue
		}
		supervisor = append(supervisor, r.LoadBalance.ResponseTimesSupervisor...)
		peers = append(peers, r.LoadBalance.ResponseTimesPeers...)
	}
	return supervisor, peers
}

// Throughput is completed tasks per minute of run time. Untagged runs
// count their measured elapsed time.
func Throughput(runs []scenario.Result) float64 {
	tasks, seconds := 0, 0.0
	for _, r := range runs {
		tasks += r.TasksCompleted
		switch {
		case r.TotalDuration > 0:
			seconds += r.TotalDuration
		case r.Elapsed > 0:
			seconds += r.Elapsed
		default:
			seconds += r.Duration
		}
	}
	if seconds <= 0 {
		return 0
	}
	return float64(tasks) / seconds * 60
}

func failoverAggregate(runs []scenario.Result) *FailoverAggregate {
	var detection, election, downtime, degradation, recovery []float64
	agg := &FailoverAggregate{}

	for _, r := range runs {
		f := r.Failover
		if f == nil {
			continue
		}
		detection = append(detection, f.FailureDetectionTime)
		election = append(election, f.LeaderElectionTime)
		downtime = append(downtime, f.Downtime)
		degradation = append(degradation, f.PerformanceDegradation)
		recovery = append(recovery, f.RecoverySuccessRate)

		if f.DetectionReported {
			agg.DetectionsReported++
		}
		if f.RecoverySkipped {
			agg.RecoveriesSkipped++
		}
		agg.TasksBeforeFailure += f.TasksBeforeFailure
		agg.TasksAfterRecovery += f.TasksAfterRecovery
	}
	if len(detection) == 0 {
		return nil
	}

	agg.AvgDetectionTime = meanOf(detection)
	agg.AvgElectionTime = meanOf(election)
	agg.AvgDowntime = meanOf(downtime)
	agg.AvgDegradation = meanOf(degradation)
	agg.AvgRecoverySuccessRate = meanOf(recovery)

	before, after := FailoverResponseTimes(runs)
	agg.ResponseTimeBefore = Describe(before)
	agg.ResponseTimeAfter = Describe(after)
	return agg
}

func loadBalanceAggregate(runs []scenario.Result) *LoadBalanceAggregate {
	var shedding, ratio, effectiveness, respSupervisor, respPeers []float64
	agg := &LoadBalanceAggregate{}

	for _, r := range runs {
		l := r.LoadBalance
		if l == nil {
			continue
		}
		shedding = append(shedding, float64(l.LoadSheddingEvents))
		ratio = append(ratio, l.LoadDistributionRatio)
		effectiveness = append(effectiveness, l.LoadBalancingEffectiveness)
		if l.AvgResponseSupervisor > 0 {
			respSupervisor = append(respSupervisor, l.AvgResponseSupervisor)
		}
		if l.AvgResponsePeers > 0 {
			respPeers = append(respPeers, l.AvgResponsePeers)
		}
		agg.TasksOnSupervisor += l.TasksOnSupervisor
		agg.TasksOnPeers += l.TasksOnPeers
	}
	if len(shedding) == 0 {
		return nil
	}

	agg.AvgLoadSheddingEvents = meanOf(shedding)
	agg.AvgDistributionRatio = meanOf(ratio)
	agg.AvgEffectiveness = meanOf(effectiveness)
	agg.AvgResponseSupervisor = meanOf(respSupervisor)
	agg.AvgResponsePeers = meanOf(respPeers)
	return agg
}
