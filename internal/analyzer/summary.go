package analyzer

import "time"

// Summary is the read-only result of one analysis pass.
type Summary struct {
	Overview      Overview                   `json:"experiment_overview"`
	Scenarios     map[string]ScenarioSummary `json:"scenario_summaries"`
	CrossScenario CrossScenario              `json:"cross_scenario_analysis"`
}

type Overview struct {
	TotalScenarios     int       `json:"total_scenarios"`
	ScenariosAnalyzed  []string  `json:"scenarios_analyzed"`
	AnalysisTimestamp  time.Time `json:"analysis_timestamp"`
	LoadThreshold      float64   `json:"load_threshold"`
	SignificanceLevel  float64   `json:"significance_level"`
	ConfidenceLevel    float64   `json:"confidence_level"`
	MinNormalitySample int       `json:"min_normality_sample"`
}

type ScenarioSummary struct {
	Iterations  int                   `json:"iterations"`
	Performance PerformanceMetrics    `json:"performance_metrics"`
	Tests       StatisticalTests      `json:"statistical_tests"`
	Throughput  float64               `json:"throughput_tasks_per_minute"`
	Failover    *FailoverAggregate    `json:"failover,omitempty"`
	LoadBalance *LoadBalanceAggregate `json:"load_balance,omitempty"`
}

type PerformanceMetrics struct {
	ResponseTime *Distribution `json:"response_time,omitempty"`
	Accuracy     *Distribution `json:"accuracy,omitempty"`
	CPU          *CPUStats     `json:"cpu_utilization,omitempty"`
}

type NormalityTest struct {
	Test      string  `json:"test"`
	Statistic float64 `json:"statistic"`
	PValue    float64 `json:"p_value"`
	IsNormal  bool    `json:"is_normal"`
}

type StatisticalTests struct {
	Normality          *NormalityTest `json:"normality_test,omitempty"`
	ConfidenceInterval *Interval      `json:"confidence_interval_95,omitempty"`
}

type Comparison struct {
	Scenario1   string  `json:"scenario_1"`
	Scenario2   string  `json:"scenario_2"`
	TStatistic  float64 `json:"t_statistic"`
	PValue      float64 `json:"p_value"`
	Significant bool    `json:"significant_difference"`
	Mean1       float64 `json:"mean_1"`
	Mean2       float64 `json:"mean_2"`
}

type CrossScenario struct {
	PairwiseComparisons []Comparison `json:"pairwise_comparisons"`
}

type FailoverAggregate struct {
	AvgDetectionTime       float64       `json:"avg_detection_time"`
	AvgElectionTime        float64       `json:"avg_election_time"`
	AvgDowntime            float64       `json:"avg_downtime"`
	AvgDegradation         float64       `json:"avg_performance_degradation"`
	AvgRecoverySuccessRate float64       `json:"avg_recovery_success_rate"`
	DetectionsReported     int           `json:"detections_reported"`
	RecoveriesSkipped      int           `json:"recoveries_skipped"`
	TasksBeforeFailure     int           `json:"tasks_before_failure"`
	TasksAfterRecovery     int           `json:"tasks_after_recovery"`
	ResponseTimeBefore     *Distribution `json:"response_time_before,omitempty"`
	ResponseTimeAfter      *Distribution `json:"response_time_after,omitempty"`
}

type LoadBalanceAggregate struct {
	AvgLoadSheddingEvents float64 `json:"avg_load_shedding_events"`
	AvgDistributionRatio  float64 `json:"avg_load_distribution_ratio"`
	AvgEffectiveness      float64 `json:"avg_load_balancing_effectiveness"`
	AvgResponseSupervisor float64 `json:"avg_response_supervisor"`
	AvgResponsePeers      float64 `json:"avg_response_rpi"`
	TasksOnSupervisor     int     `json:"tasks_on_supervisor"`
	TasksOnPeers          int     `json:"tasks_on_rpis"`
}
