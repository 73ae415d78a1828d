// Package charts renders PNG visualizations of an analysis into plots/.
package charts

import (
	"fmt"
	"os"
	"path/filepath"

	"codeberg.org/mutker/edgebench/internal/analyzer"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	_ "gonum.org/v1/plot/vg/vgimg"
)

const (
	plotsDir = "plots"
	width    = 8 * vg.Inch
	height   = 5 * vg.Inch
	histBins = 30
)

// ErrRender wraps any plotting failure.
const ErrRender = errors.ErrorCode("charts_render_failed")

// Renderer writes one PNG per chart. Charts without data are skipped.
type Renderer struct {
	dir       string
	threshold float64
}

func New(outputDir string, threshold float64) *Renderer {
	if threshold <= 0 {
		threshold = analyzer.DefaultLoadThreshold
	}
	return &Renderer{dir: filepath.Join(outputDir, plotsDir), threshold: threshold}
}

// Render implements analyzer.ChartSink.
func (r *Renderer) Render(results scenario.Results, summary analyzer.Summary) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return errors.New().Wrap(ErrRender, err)
	}

	ids := make([]scenario.ID, 0, len(summary.Overview.ScenariosAnalyzed))
	for _, s := range summary.Overview.ScenariosAnalyzed {
		ids = append(ids, scenario.ID(s))
	}

	steps := []func() error{
		func() error { return r.responseTimeBoxes(ids, results) },
		func() error { return r.responseTimeHistograms(ids, results) },
		func() error { return r.cpuTimelines(ids, results) },
		func() error { return r.accuracyBoxes(ids, results) },
		func() error { return r.throughput(ids, summary) },
		func() error { return r.failover(summary) },
		func() error { return r.loadBalancing(results) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return errors.New().Wrap(ErrRender, err)
		}
	}
	return nil
}

type group struct {
	label  string
	values []float64
}

func (r *Renderer) responseTimeBoxes(ids []scenario.ID, results scenario.Results) error {
	var groups []group
	for _, id := range ids {
		runs := results[id]
		switch id {
		case scenario.IDFailover:
			before, after := analyzer.FailoverResponseTimes(runs)
			groups = append(groups, group{"S2 before", before}, group{"S2 after", after})
		case scenario.IDLoadBalance:
			sup, peers := analyzer.LoadBalanceResponseTimes(runs)
			groups = append(groups, group{"S3 supervisor", sup}, group{"S3 peers", peers})
		default:
			groups = append(groups, group{string(id), analyzer.ResponseTimes(runs)})
		}
	}
	return r.boxes("response_time_analysis.png", "Response Time Comparison", "Response time (ms)", groups)
}

func (r *Renderer) accuracyBoxes(ids []scenario.ID, results scenario.Results) error {
	groups := make([]group, 0, len(ids))
	for _, id := range ids {
		groups = append(groups, group{string(id), analyzer.AccuracyScores(results[id])})
	}
	return r.boxes("accuracy_analysis.png", "Accuracy Distribution by Scenario", "Accuracy score (%)", groups)
}

func (r *Renderer) boxes(file, title, yLabel string, groups []group) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	var names []string
	for _, g := range groups {
		// quartiles need at least two points
		if len(g.values) < 2 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(20), float64(len(names)), plotter.Values(g.values))
		if err != nil {
			return err
		}
		box.FillColor = plotutil.Color(len(names))
		p.Add(box)
		names = append(names, g.label)
	}
	if len(names) == 0 {
		return nil
	}
	p.NominalX(names...)
	return r.save(p, file)
}

func (r *Renderer) responseTimeHistograms(ids []scenario.ID, results scenario.Results) error {
	for _, id := range ids {
		values := analyzer.ResponseTimes(results[id])
		if !spread(values) {
			continue
		}

		h, err := plotter.NewHist(plotter.Values(values), histBins)
		if err != nil {
			return err
		}
		h.FillColor = plotutil.Color(0)

		p := plot.New()
		p.Title.Text = fmt.Sprintf("%s Response Times", id.Name())
		p.X.Label.Text = "Response time (ms)"
		p.Y.Label.Text = "Frequency"
		p.Add(h)

		if err := r.save(p, fmt.Sprintf("response_time_hist_%s.png", id)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Renderer) cpuTimelines(ids []scenario.ID, results scenario.Results) error {
	p := plot.New()
	p.Title.Text = "CPU Usage Over Time"
	p.X.Label.Text = "Sample"
	p.Y.Label.Text = "CPU (%)"

	longest := 0
	for i, id := range ids {
		cpu := analyzer.CPUUsage(results[id])
		if len(cpu) == 0 {
			continue
		}
		pts := make(plotter.XYs, len(cpu))
		for j, v := range cpu {
			pts[j].X, pts[j].Y = float64(j), v
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(string(id), line)
		longest = max(longest, len(cpu))
	}
	if longest == 0 {
		return nil
	}

	threshold := plotter.NewFunction(func(float64) float64 { return r.threshold })
	threshold.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(threshold)
	p.Legend.Add(fmt.Sprintf("threshold (%.0f%%)", r.threshold), threshold)
	p.X.Max = float64(longest - 1)

	return r.save(p, "cpu_utilization_analysis.png")
}

func (r *Renderer) throughput(ids []scenario.ID, summary analyzer.Summary) error {
	values := make(plotter.Values, 0, len(ids))
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, summary.Scenarios[string(id)].Throughput)
		names = append(names, string(id))
	}
	if len(values) == 0 {
		return nil
	}
	return r.bars("throughput_analysis.png", "Throughput by Scenario", "Tasks per minute", names, values)
}

func (r *Renderer) failover(summary analyzer.Summary) error {
	s, ok := summary.Scenarios[string(scenario.IDFailover)]
	if !ok || s.Failover == nil {
		return nil
	}
	f := s.Failover
	return r.bars("failover_analysis.png", "Failover Timeline", "Seconds",
		[]string{"detection", "election", "downtime"},
		plotter.Values{f.AvgDetectionTime, f.AvgElectionTime, f.AvgDowntime})
}

func (r *Renderer) loadBalancing(results scenario.Results) error {
	var values plotter.Values
	var names []string
	for i, run := range results[scenario.IDLoadBalance] {
		if run.LoadBalance == nil {
			continue
		}
		values = append(values, run.LoadBalance.LoadBalancingEffectiveness)
		names = append(names, fmt.Sprintf("run %d", i+1))
	}
	if len(values) == 0 {
		return nil
	}
	return r.bars("load_balancing_analysis.png", "Load Balancing Effectiveness", "Score (0-100)", names, values)
}

func (r *Renderer) bars(file, title, yLabel string, names []string, values plotter.Values) error {
	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(values, vg.Points(30))
	if err != nil {
		return err
	}
	bars.Color = plotutil.Color(0)
	p.Add(bars)
	p.NominalX(names...)

	return r.save(p, file)
}

func (r *Renderer) save(p *plot.Plot, file string) error {
	return p.Save(width, height, filepath.Join(r.dir, file))
}

func spread(values []float64) bool {
	if len(values) < 2 {
		return false
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo, hi = min(lo, v), max(hi, v)
	}
	return hi > lo
}
