package orchestrator_test

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/collector"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/orchestrator"
	"codeberg.org/mutker/edgebench/internal/pid"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"codeberg.org/mutker/edgebench/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEngine struct {
	id    scenario.ID
	err   error
	onRun func()

	mu   sync.Mutex
	runs int
}

func (e *fakeEngine) ID() scenario.ID { return e.id }

func (e *fakeEngine) Run(_ context.Context, duration time.Duration) (scenario.Result, error) {
	e.mu.Lock()
	e.runs++
	e.mu.Unlock()

	if e.onRun != nil {
		e.onRun()
	}
	if e.err != nil {
		return scenario.Result{}, e.err
	}
	return scenario.Result{
		Scenario:       e.id.Name(),
		ScenarioID:     e.id,
		Duration:       duration.Seconds(),
		TasksCompleted: 4,
		ResponseTimes:  []float64{10, 20, 30, 40},
		AccuracyScores: []float64{90, 91, 92, 93},
		SuccessRate:    1,
	}, nil
}

func (e *fakeEngine) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runs
}

type recordingAnalyzer struct {
	calls   int
	results scenario.Results
}

func (a *recordingAnalyzer) Analyze(r scenario.Results) error {
	a.calls++
	a.results = r
	return nil
}

type staticProbe struct{}

func (staticProbe) Sample(context.Context) (hostprobe.Sample, error) {
	return hostprobe.Sample{Timestamp: time.Now(), CPUPercent: 12, MemoryPercent: 34}, nil
}

func engines() (*fakeEngine, *fakeEngine, *fakeEngine) {
	return &fakeEngine{id: scenario.IDNormal}, &fakeEngine{id: scenario.IDFailover}, &fakeEngine{id: scenario.IDLoadBalance}
}

func newOrchestrator(t *testing.T, dir string, a orchestrator.Analyzer, es ...scenario.Engine) *orchestrator.Orchestrator {
	t.Helper()
	coll, err := collector.New(dir, staticProbe{}, logger.Nop())
	require.NoError(t, err)

	return orchestrator.New(orchestrator.Config{OutputDir: dir, Cooldown: -1, SampleInterval: 10 * time.Millisecond},
		es, coll, logger.Nop(),
		orchestrator.WithAnalyzer(a),
		orchestrator.WithTextfile(telemetry.New()),
	)
}

func countLines(t *testing.T, path string) int {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		n++
	}
	return n
}

func TestRunAllPersistsEveryStage(t *testing.T) {
	dir := t.TempDir()
	s1, s2, s3 := engines()
	a := &recordingAnalyzer{}
	o := newOrchestrator(t, dir, a, s3, s1, s2)

	results, err := o.RunAll(context.Background(), 2, time.Second)
	require.NoError(t, err)

	for _, name := range []string{
		"intermediate_S1.json", "intermediate_S2.json", "intermediate_S3.json",
		"final_results.json", "metrics_export.json", "dispatch_metrics.prom",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, "edgebench.pid"))

	data, err := os.ReadFile(filepath.Join(dir, "intermediate_S1.json"))
	require.NoError(t, err)
	var intermediate map[string][]scenario.Result
	require.NoError(t, json.Unmarshal(data, &intermediate))
	assert.Len(t, intermediate, 1)

	data, err = os.ReadFile(filepath.Join(dir, "final_results.json"))
	require.NoError(t, err)
	var final map[string][]scenario.Result
	require.NoError(t, json.Unmarshal(data, &final))
	require.Len(t, final, 3)
	assert.Equal(t, 1, final["S2"][0].Iteration)
	assert.Equal(t, 2, final["S2"][1].Iteration)
	assert.False(t, final["S2"][1].Timestamp.IsZero())

	assert.Equal(t, 2, countLines(t, filepath.Join(dir, "S3_metrics.jsonl")))
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, results, a.results)
	assert.Equal(t, 2, s1.count())
}

func TestRunAllAbortsBatchOnScenarioError(t *testing.T) {
	dir := t.TempDir()
	s1, s2, s3 := engines()
	s2.err = errors.New().New(scenario.ErrCancelled)
	a := &recordingAnalyzer{}
	o := newOrchestrator(t, dir, a, s1, s2, s3)

	_, err := o.RunAll(context.Background(), 3, time.Second)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, orchestrator.ErrScenarioFailed))
	assert.True(t, errors.HasCode(err, scenario.ErrCancelled))

	assert.Equal(t, 3, s1.count())
	assert.Equal(t, 1, s2.count())
	assert.Equal(t, 0, s3.count())
	assert.FileExists(t, filepath.Join(dir, "intermediate_S1.json"))
	assert.NoFileExists(t, filepath.Join(dir, "intermediate_S2.json"))
	assert.NoFileExists(t, filepath.Join(dir, "final_results.json"))
	assert.FileExists(t, filepath.Join(dir, "metrics_export.json"))
	assert.Zero(t, a.calls)
}

func TestRunSingleWritesScenarioFile(t *testing.T) {
	dir := t.TempDir()
	s1, s2, s3 := engines()
	a := &recordingAnalyzer{}
	o := newOrchestrator(t, dir, a, s1, s2, s3)

	results, err := o.RunSingle(context.Background(), "s3", 2, time.Second)
	require.NoError(t, err)
	require.Len(t, results[scenario.IDLoadBalance], 2)
	assert.FileExists(t, filepath.Join(dir, "S3_results.json"))
	assert.NoFileExists(t, filepath.Join(dir, "final_results.json"))
	assert.Equal(t, 0, s1.count())
	assert.Equal(t, 1, a.calls)
}

func TestRunSingleRejectsUnknownScenario(t *testing.T) {
	dir := t.TempDir()
	s1, s2, s3 := engines()
	o := newOrchestrator(t, dir, &recordingAnalyzer{}, s1, s2, s3)

	_, err := o.RunSingle(context.Background(), "S4", 1, time.Second)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, orchestrator.ErrUnknownScenario))
	assert.Equal(t, 0, s1.count()+s2.count()+s3.count())
	assert.NoFileExists(t, filepath.Join(dir, "metrics_export.json"))
}

func TestRunAllRequiresEveryEngine(t *testing.T) {
	s1, _, s3 := engines()
	o := newOrchestrator(t, t.TempDir(), &recordingAnalyzer{}, s1, s3)

	_, err := o.RunAll(context.Background(), 1, time.Second)
	assert.True(t, errors.HasCode(err, orchestrator.ErrUnknownScenario))
	assert.Equal(t, 0, s1.count())
}

func TestRunRejectsInvalidArguments(t *testing.T) {
	s1, s2, s3 := engines()
	o := newOrchestrator(t, t.TempDir(), &recordingAnalyzer{}, s1, s2, s3)

	_, err := o.RunSingle(context.Background(), "S1", 0, time.Second)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	_, err = o.RunAll(context.Background(), 1, 0)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
}

func TestRunRefusedWhileOutputLocked(t *testing.T) {
	dir := t.TempDir()
	lock, err := pid.Acquire(dir)
	require.NoError(t, err)
	defer lock.Release()

	s1, s2, s3 := engines()
	o := newOrchestrator(t, dir, &recordingAnalyzer{}, s1, s2, s3)

	_, err = o.RunSingle(context.Background(), "S1", 1, time.Second)
	assert.True(t, errors.HasCode(err, errors.ErrAlreadyRunning))
	assert.Equal(t, 0, s1.count())
}

func TestCooldownHonoursCancellation(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s1 := &fakeEngine{id: scenario.IDNormal, onRun: cancel}
	coll, err := collector.New(dir, staticProbe{}, logger.Nop())
	require.NoError(t, err)
	o := orchestrator.New(orchestrator.Config{OutputDir: dir, Cooldown: time.Hour}, []scenario.Engine{s1}, coll, nil)

	start := time.Now()
	_, err = o.RunSingle(ctx, "S1", 3, time.Second)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCancelled))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, 1, s1.count())
}
