package scenario

import "time"

// Result is the outcome of one scenario run. Failover and LoadBalance
// carry the variant-specific sub-document.
type Result struct {
	RunID      string    `json:"run_id"`
	Scenario   string    `json:"scenario"`
	ScenarioID ID        `json:"scenario_id"`
	StartedAt  time.Time `json:"started_at"`
	Duration   float64   `json:"duration"`
	Elapsed    float64   `json:"elapsed"`

	TasksCompleted int `json:"tasks_completed"`
	TasksFailed    int `json:"tasks_failed"`

	ResponseTimes     []float64 `json:"response_times"`
	AccuracyScores    []float64 `json:"accuracy_scores"`
	CPUUsage          []float64 `json:"cpu_usage"`
	MemoryUsage       []float64 `json:"memory_usage,omitempty"`
	NetworkOverhead   []float64 `json:"network_overhead,omitempty"`
	EnergyConsumption []float64 `json:"energy_consumption,omitempty"`

	AvgResponseTime float64 `json:"avg_response_time"`
	SuccessRate     float64 `json:"success_rate"`
	AvgCPUUsage     float64 `json:"avg_cpu_usage"`
	TotalEnergy     float64 `json:"total_energy"`

	Iteration     int       `json:"iteration,omitempty"`
	TotalDuration float64   `json:"total_duration,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	Failover    *FailoverResult    `json:"failover,omitempty"`
	LoadBalance *LoadBalanceResult `json:"load_balance,omitempty"`
}

// Results maps each scenario to its iteration results, in run order.
type Results map[ID][]Result

type FailoverResult struct {
	Phase1Duration  float64 `json:"phase_1_duration"`
	Phase3Duration  float64 `json:"phase_3_duration"`
	RecoverySkipped bool    `json:"recovery_skipped"`

	FailureDetectionTime float64 `json:"failure_detection_time"`
	DetectionReported    bool    `json:"detection_reported"`
	DetectedBy           string  `json:"detected_by,omitempty"`
	LeaderElectionTime   float64 `json:"leader_election_time"`
	Leader               string  `json:"leader,omitempty"`
	Downtime             float64 `json:"downtime"`

	TasksBeforeFailure  int       `json:"tasks_before_failure"`
	TasksAfterRecovery  int       `json:"tasks_after_recovery"`
	ResponseTimesBefore []float64 `json:"response_times_before"`
	ResponseTimesAfter  []float64 `json:"response_times_after"`
	AccuracyBefore      []float64 `json:"accuracy_before"`
	AccuracyAfter       []float64 `json:"accuracy_after"`

	PerformanceDegradation float64 `json:"performance_degradation"`
	RecoverySuccessRate    float64 `json:"recovery_success_rate"`
}

type Phase struct {
	Name               string    `json:"phase_name"`
	Duration           float64   `json:"phase_duration"`
	EffectiveDuration  float64   `json:"effective_duration"`
	Rate               int       `json:"task_rate"`
	Complexity         string    `json:"complexity"`
	SupervisorTasks    int       `json:"supervisor_tasks"`
	PeerTasks          int       `json:"rpi_tasks"`
	LoadSheddingEvents int       `json:"load_shedding_events"`
	CPUUsage           []float64 `json:"cpu_usage"`
	Offloaded          []bool    `json:"offloaded"`
	ResponseTimes      []float64 `json:"response_times"`
	AccuracyScores     []float64 `json:"accuracy_scores"`
}

// TimelineEntry is one load monitor sample. A nil latency means the peer
// did not answer the ping.
type TimelineEntry struct {
	Elapsed          float64                   `json:"timestamp"`
	SupervisorCPU    float64                   `json:"supervisor_cpu"`
	SupervisorMemory float64                   `json:"supervisor_memory"`
	PeerMetrics      map[string]map[string]any `json:"rpi_metrics"`
	NetworkLatency   map[string]*float64       `json:"network_latency"`
}

type LoadBalanceResult struct {
	Phases             []Phase         `json:"phases"`
	LoadSheddingEvents int             `json:"load_shedding_events"`
	TasksOnSupervisor  int             `json:"tasks_on_supervisor"`
	TasksOnPeers       int             `json:"tasks_on_rpis"`
	CPUUsageTimeline   []TimelineEntry `json:"cpu_usage_timeline"`

	ResponseTimesSupervisor []float64 `json:"response_times_supervisor"`
	ResponseTimesPeers      []float64 `json:"response_times_rpi"`
	AccuracySupervisor      []float64 `json:"accuracy_supervisor"`
	AccuracyPeers           []float64 `json:"accuracy_rpi"`

	LoadDistributionRatio      float64 `json:"load_distribution_ratio"`
	AvgResponseSupervisor      float64 `json:"avg_response_supervisor"`
	AvgResponsePeers           float64 `json:"avg_response_rpi"`
	LoadBalancingEffectiveness float64 `json:"load_balancing_effectiveness"`
}

func newResult(id ID, runID string, duration time.Duration) Result {
	return Result{
		RunID:          runID,
		Scenario:       id.Name(),
		ScenarioID:     id,
		StartedAt:      time.Now(),
		Duration:       duration.Seconds(),
		ResponseTimes:  []float64{},
		AccuracyScores: []float64{},
		CPUUsage:       []float64{},
	}
}

// finalize fills the derived common fields.
func (r *Result) finalize() {
	r.Elapsed = time.Since(r.StartedAt).Seconds()
	r.AvgResponseTime = mean(r.ResponseTimes)
	if total := r.TasksCompleted + r.TasksFailed; total > 0 {
		r.SuccessRate = float64(r.TasksCompleted) / float64(total)
	} else {
		r.SuccessRate = 0
	}
	r.AvgCPUUsage = mean(r.CPUUsage)
	r.TotalEnergy = sum(r.EnergyConsumption)
}

func (f *FailoverResult) finalize() {
	f.Downtime = f.FailureDetectionTime + f.LeaderElectionTime
	f.TasksBeforeFailure = len(f.ResponseTimesBefore)
	f.TasksAfterRecovery = len(f.ResponseTimesAfter)

	f.PerformanceDegradation = 0
	if len(f.ResponseTimesBefore) > 0 && len(f.ResponseTimesAfter) > 0 {
		before, after := mean(f.ResponseTimesBefore), mean(f.ResponseTimesAfter)
		if before > 0 {
			f.PerformanceDegradation = max(0, (after-before)/before*100)
		}
	}

	f.RecoverySuccessRate = float64(len(f.ResponseTimesAfter)) / float64(max(1, len(f.ResponseTimesBefore)))
}

func (l *LoadBalanceResult) finalize() {
	l.TasksOnSupervisor, l.TasksOnPeers, l.LoadSheddingEvents = 0, 0, 0
	for _, p := range l.Phases {
		l.TasksOnSupervisor += p.SupervisorTasks
		l.TasksOnPeers += p.PeerTasks
		l.LoadSheddingEvents += p.LoadSheddingEvents
	}

	l.LoadDistributionRatio = 0
	if total := l.TasksOnSupervisor + l.TasksOnPeers; total > 0 {
		l.LoadDistributionRatio = float64(l.TasksOnPeers) / float64(total)
	}

	l.AvgResponseSupervisor = mean(l.ResponseTimesSupervisor)
	l.AvgResponsePeers = mean(l.ResponseTimesPeers)
	l.LoadBalancingEffectiveness = Effectiveness(l.CPUUsageTimeline)
}

// Effectiveness scores how well supervisor CPU stayed moderate, 0 to 100.
func Effectiveness(timeline []TimelineEntry) float64 {
	if len(timeline) == 0 {
		return 0
	}

	peak, total := timeline[0].SupervisorCPU, 0.0
	for _, e := range timeline {
		total += e.SupervisorCPU
		peak = max(peak, e.SupervisorCPU)
	}
	avg := total / float64(len(timeline))

	score := 100 - max(0, (avg-50)*2) - max(0, (peak-80)*5)
	return min(100, max(0, score))
}

func sum(values []float64) float64 {
	total := 0.0
	for _, v := range values {
		total += v
	}
	return total
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return sum(values) / float64(len(values))
}
