// Package orchestrator runs scenario iterations, persists raw results and
// hands the complete result set to the analyzer.
package orchestrator

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/pid"
	"codeberg.org/mutker/edgebench/internal/scenario"
)

const (
	DefaultCooldown       = 30 * time.Second
	DefaultSampleInterval = 5 * time.Second

	finalResultsFile = "final_results.json"
	textfileName     = "dispatch_metrics.prom"
	defaultDirPerm   = 0o755
	defaultFilePerm  = 0o644
)

// Metrics is the collector lifecycle the orchestrator drives.
type Metrics interface {
	Start(interval time.Duration)
	Stop() error
	Export() (string, error)
	RecordScenarioMetrics(scenarioID string, metrics any) error
}

// Analyzer consumes the complete result set of a batch.
type Analyzer interface {
	Analyze(results scenario.Results) error
}

// Textfile exports dispatch instrumentation at the end of a batch.
type Textfile interface {
	WriteTextfile(path string) error
}

// Flusher is a durable store flushed after every batch.
type Flusher interface {
	Flush() error
}

type Config struct {
	OutputDir      string
	Cooldown       time.Duration
	SampleInterval time.Duration
}

type Orchestrator struct {
	cfg      Config
	engines  map[scenario.ID]scenario.Engine
	metrics  Metrics
	analyzer Analyzer
	textfile Textfile
	store    Flusher
	log      *logger.Logger
}

type Option func(*Orchestrator)

func WithAnalyzer(a Analyzer) Option {
	return func(o *Orchestrator) { o.analyzer = a }
}

func WithTextfile(t Textfile) Option {
	return func(o *Orchestrator) { o.textfile = t }
}

func WithStore(s Flusher) Option {
	return func(o *Orchestrator) { o.store = s }
}

// New registers engines by their ID. A negative cooldown disables it.
func New(cfg Config, engines []scenario.Engine, metrics Metrics, log *logger.Logger, opts ...Option) *Orchestrator {
	if cfg.Cooldown == 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.SampleInterval <= 0 {
		cfg.SampleInterval = DefaultSampleInterval
	}
	if log == nil {
		log = logger.Nop()
	}

	o := &Orchestrator{
		cfg:     cfg,
		engines: make(map[scenario.ID]scenario.Engine, len(engines)),
		metrics: metrics,
		log:     log.With("orchestrator"),
	}
	for _, e := range engines {
		o.engines[e.ID()] = e
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// RunAll runs S1, S2 and S3 in order. The first failing iteration aborts
// the whole batch.
func (o *Orchestrator) RunAll(ctx context.Context, iterations int, duration time.Duration) (scenario.Results, error) {
	if err := validate(iterations, duration); err != nil {
		return nil, err
	}
	for _, id := range scenario.IDs() {
		if _, ok := o.engines[id]; !ok {
			return nil, errors.New().WithData(ErrUnknownScenario, id)
		}
	}

	o.log.Info().
		Int("iterations", iterations).
		Dur("duration", duration).
		Msg("Starting experiment run")

	results := make(scenario.Results)
	err := o.batch(func() error {
		for _, id := range scenario.IDs() {
			runs, err := o.iterate(ctx, id, iterations, duration)
			if err != nil {
				return err
			}
			results[id] = runs
			if err := o.save(results, "intermediate_"+string(id)+".json"); err != nil {
				return err
			}
		}

		if err := o.save(results, finalResultsFile); err != nil {
			return err
		}
		return o.analyze(results)
	})

	return results, err
}

// RunSingle runs one scenario. An unknown id fails before anything runs.
func (o *Orchestrator) RunSingle(ctx context.Context, name string, iterations int, duration time.Duration) (scenario.Results, error) {
	id, ok := scenario.ParseID(name)
	if !ok {
		return nil, errors.New().WithData(ErrUnknownScenario, name)
	}
	if _, ok := o.engines[id]; !ok {
		return nil, errors.New().WithData(ErrUnknownScenario, name)
	}
	if err := validate(iterations, duration); err != nil {
		return nil, err
	}

	results := make(scenario.Results)
	err := o.batch(func() error {
		runs, err := o.iterate(ctx, id, iterations, duration)
		if err != nil {
			return err
		}
		results[id] = runs

		if err := o.save(results, string(id)+"_results.json"); err != nil {
			return err
		}
		return o.analyze(results)
	})

	return results, err
}

// batch holds the run lock and the collector for the duration of fn, then
// exports the collected metrics.
func (o *Orchestrator) batch(fn func() error) (err error) {
	lock, err := pid.Acquire(o.cfg.OutputDir)
	if err != nil {
		return err
	}
	defer func() {
		if rerr := lock.Release(); rerr != nil && err == nil {
			err = rerr
		}
	}()

	o.metrics.Start(o.cfg.SampleInterval)
	runErr := fn()

	if err := o.metrics.Stop(); err != nil {
		o.log.Warn().Err(err).Msg("Metrics collector did not stop cleanly")
	}
	if _, err := o.metrics.Export(); err != nil && runErr == nil {
		runErr = err
	}
	if o.textfile != nil {
		if err := o.textfile.WriteTextfile(filepath.Join(o.cfg.OutputDir, textfileName)); err != nil && runErr == nil {
			runErr = err
		}
	}
	if o.store != nil {
		if err := o.store.Flush(); err != nil {
			o.log.Warn().Err(err).Msg("Store flush failed")
		}
	}

	return runErr
}

func (o *Orchestrator) iterate(ctx context.Context, id scenario.ID, iterations int, duration time.Duration) ([]scenario.Result, error) {
	engine := o.engines[id]
	runs := make([]scenario.Result, 0, iterations)

	o.log.Info().Str("scenario", string(id)).Msg("Running scenario")

	for i := 0; i < iterations; i++ {
		if i > 0 {
			if err := o.cooldown(ctx); err != nil {
				return runs, err
			}
		}

		o.log.Info().
			Str("scenario", string(id)).
			Int("iteration", i+1).
			Int("of", iterations).
			Msg("Starting iteration")

		start := time.Now()
		res, err := engine.Run(ctx, duration)
		if err != nil {
			err = errors.New().Wrap(ErrScenarioFailed, err).WithMessage(id.Name() + " failed")
			o.log.ErrorWithCode(err).Str("scenario", string(id)).Int("iteration", i+1).Msg("Aborting batch")
			return runs, err
		}

		res.Iteration = i + 1
		res.TotalDuration = time.Since(start).Seconds()
		res.Timestamp = time.Now()

		if err := o.metrics.RecordScenarioMetrics(string(id), res); err != nil {
			return runs, errors.New().Wrap(ErrPersistResults, err)
		}
		runs = append(runs, res)

		o.log.Info().
			Str("scenario", string(id)).
			Int("iteration", res.Iteration).
			Int("completed", res.TasksCompleted).
			Int("failed", res.TasksFailed).
			Float64("success_rate", res.SuccessRate).
			Float64("avg_response_ms", res.AvgResponseTime).
			Msg("Iteration finished")
	}

	return runs, nil
}

func (o *Orchestrator) cooldown(ctx context.Context) error {
	if o.cfg.Cooldown <= 0 {
		return nil
	}
	o.log.Debug().Dur("cooldown", o.cfg.Cooldown).Msg("Cooling down")

	timer := time.NewTimer(o.cfg.Cooldown)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.New().Wrap(errors.ErrCancelled, ctx.Err())
	case <-timer.C:
		return nil
	}
}

// save writes results as indented JSON into the output directory.
func (o *Orchestrator) save(results scenario.Results, name string) error {
	errFactory := errors.New()

	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return errFactory.Wrap(ErrPersistResults, err)
	}
	if err := os.MkdirAll(o.cfg.OutputDir, defaultDirPerm); err != nil {
		return errFactory.Wrap(ErrPersistResults, err)
	}

	path := filepath.Join(o.cfg.OutputDir, name)
	if err := os.WriteFile(path, data, defaultFilePerm); err != nil {
		return errFactory.Wrap(ErrPersistResults, err)
	}

	o.log.Info().Str("path", path).Msg("Results saved")
	return nil
}

func (o *Orchestrator) analyze(results scenario.Results) error {
	if o.analyzer == nil {
		return nil
	}
	if err := o.analyzer.Analyze(results); err != nil {
		return errors.New().Wrap(ErrAnalysisFailed, err)
	}
	return nil
}

func validate(iterations int, duration time.Duration) error {
	if iterations < 1 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "iterations must be at least 1")
	}
	if duration <= 0 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "duration must be positive")
	}
	return nil
}
