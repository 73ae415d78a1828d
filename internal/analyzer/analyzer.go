// Package analyzer turns raw scenario results into descriptive statistics,
// significance tests and a plain-text report.
package analyzer

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/scenario"
)

const (
	DefaultLoadThreshold = 70.0
	SignificanceLevel    = 0.05
	ConfidenceLevel      = 0.95
	// MinNormalitySample is the sample size normality tests need to exceed.
	MinNormalitySample = 30
	// MinComparisonSample is the per-scenario size pairwise tests need to exceed.
	MinComparisonSample = 10

	summaryFile     = "statistical_summary.json"
	reportFile      = "evaluation_report.txt"
	defaultDirPerm  = 0o755
	defaultFilePerm = 0o644
)

// ChartSink renders visualizations of an analysis. Failures are logged,
// not returned by Analyze.
type ChartSink interface {
	Render(results scenario.Results, summary Summary) error
}

type Analyzer struct {
	dir       string
	threshold float64
	charts    ChartSink
	log       *logger.Logger
	now       func() time.Time
}

type Option func(*Analyzer)

func WithCharts(c ChartSink) Option {
	return func(a *Analyzer) { a.charts = c }
}

// WithThreshold sets the CPU level counted as overloaded.
func WithThreshold(percent float64) Option {
	return func(a *Analyzer) { a.threshold = percent }
}

func New(dir string, log *logger.Logger, opts ...Option) *Analyzer {
	if log == nil {
		log = logger.Nop()
	}
	a := &Analyzer{
		dir:       dir,
		threshold: DefaultLoadThreshold,
		log:       log.With("analyzer"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze summarizes results and writes statistical_summary.json,
// evaluation_report.txt and the charts.
func (a *Analyzer) Analyze(results scenario.Results) error {
	summary := a.Summarize(results)

	if err := a.writeSummary(summary); err != nil {
		return err
	}
	if err := a.writeReport(summary); err != nil {
		return err
	}

	if a.charts != nil {
		if err := a.charts.Render(results, summary); err != nil {
			a.log.Warn().Err(errors.New().Wrap(ErrRenderCharts, err)).Msg("Chart rendering failed")
		}
	}

	a.log.Info().Str("dir", a.dir).Msg("Analysis complete")
	return nil
}

// Summarize is the pure part of Analyze.
func (a *Analyzer) Summarize(results scenario.Results) Summary {
	ids := orderedIDs(results)

	s := Summary{
		Overview: Overview{
			TotalScenarios:     len(results),
			ScenariosAnalyzed:  make([]string, 0, len(ids)),
			AnalysisTimestamp:  a.now(),
			LoadThreshold:      a.threshold,
			SignificanceLevel:  SignificanceLevel,
			ConfidenceLevel:    ConfidenceLevel,
			MinNormalitySample: MinNormalitySample,
		},
		Scenarios: make(map[string]ScenarioSummary, len(ids)),
	}

	for _, id := range ids {
		s.Overview.ScenariosAnalyzed = append(s.Overview.ScenariosAnalyzed, string(id))
		s.Scenarios[string(id)] = a.summarizeScenario(results[id])
	}
	s.CrossScenario = compare(ids, results)

	return s
}

func (a *Analyzer) summarizeScenario(runs []scenario.Result) ScenarioSummary {
	rt := ResponseTimes(runs)

	ss := ScenarioSummary{
		Iterations: len(runs),
		Performance: PerformanceMetrics{
			ResponseTime: Describe(rt),
			Accuracy:     describeAccuracy(AccuracyScores(runs)),
			CPU:          describeCPU(CPUUsage(runs), a.threshold),
		},
		Throughput:  Throughput(runs),
		Failover:    failoverAggregate(runs),
		LoadBalance: loadBalanceAggregate(runs),
	}

	if len(rt) > MinNormalitySample {
		if w, p, ok := ShapiroWilk(rt); ok {
			ss.Tests.Normality = &NormalityTest{
				Test:      "Shapiro-Wilk",
				Statistic: w,
				PValue:    p,
				IsNormal:  p > SignificanceLevel,
			}
		}
		if ci, ok := ConfidenceInterval(rt, ConfidenceLevel); ok {
			ss.Tests.ConfidenceInterval = &ci
		}
	}

	return ss
}

// describeAccuracy drops the percentiles, which are only reported for
// response times.
func describeAccuracy(values []float64) *Distribution {
	d := Describe(values)
	if d != nil {
		d.P95, d.P99 = 0, 0
	}
	return d
}

// compare runs a t-test between every pair of scenarios, in run order,
// whose response time samples are large enough.
func compare(ids []scenario.ID, results scenario.Results) CrossScenario {
	cs := CrossScenario{PairwiseComparisons: []Comparison{}}

	samples := make(map[scenario.ID][]float64, len(ids))
	for _, id := range ids {
		samples[id] = ResponseTimes(results[id])
	}

	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			a, b := samples[ids[i]], samples[ids[j]]
			if len(a) <= MinComparisonSample || len(b) <= MinComparisonSample {
				continue
			}
			t, p, ok := TTest(a, b)
			if !ok {
				continue
			}
			cs.PairwiseComparisons = append(cs.PairwiseComparisons, Comparison{
				Scenario1:   string(ids[i]),
				Scenario2:   string(ids[j]),
				TStatistic:  t,
				PValue:      p,
				Significant: p < SignificanceLevel,
				Mean1:       meanOf(a),
				Mean2:       meanOf(b),
			})
		}
	}

	return cs
}

// orderedIDs lists S1..S3 first, then any other keys sorted.
func orderedIDs(results scenario.Results) []scenario.ID {
	ids := make([]scenario.ID, 0, len(results))
	for _, id := range scenario.IDs() {
		if _, ok := results[id]; ok {
			ids = append(ids, id)
		}
	}

	var extra []scenario.ID
	for id := range results {
		if !slices.Contains(ids, id) {
			extra = append(extra, id)
		}
	}
	slices.Sort(extra)
	return append(ids, extra...)
}

func (a *Analyzer) writeSummary(s Summary) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.New().Wrap(ErrWriteArtifact, err)
	}
	return a.write(summaryFile, data)
}

func (a *Analyzer) writeReport(s Summary) error {
	return a.write(reportFile, []byte(RenderReport(s)))
}

func (a *Analyzer) write(name string, data []byte) error {
	errFactory := errors.New()
	if err := os.MkdirAll(a.dir, defaultDirPerm); err != nil {
		return errFactory.Wrap(ErrWriteArtifact, err)
	}

	path := filepath.Join(a.dir, name)
	if err := os.WriteFile(path, data, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrWriteArtifact, err)
	}
	a.log.Debug().Str("path", path).Msg("Artifact written")
	return nil
}
