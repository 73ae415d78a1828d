package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"codeberg.org/mutker/edgebench/internal/analyzer"
	"codeberg.org/mutker/edgebench/internal/analyzer/charts"
	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/collector"
	"codeberg.org/mutker/edgebench/internal/config"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/orchestrator"
	"codeberg.org/mutker/edgebench/internal/scenario"
	"codeberg.org/mutker/edgebench/internal/sensor"
	"codeberg.org/mutker/edgebench/internal/store"
	"codeberg.org/mutker/edgebench/internal/stream"
	"codeberg.org/mutker/edgebench/internal/telemetry"
	"github.com/google/uuid"
	flag "github.com/spf13/pflag"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Options{Level: cfg.LogLevel, LogDir: cfg.Output})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, log)

	if err := run(ctx, cfg, log); err != nil {
		log.ErrorWithCode(err).Msg("Evaluation failed")
		log.Close()
		os.Exit(1)
	}
	log.Info().Str("output", cfg.Output).Msg("Evaluation complete")
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	runID := uuid.NewString()
	log.Info().
		Str("run_id", runID).
		Str("scenario", cfg.Scenario).
		Int("iterations", cfg.Iterations).
		Int("duration_s", cfg.Duration).
		Str("supervisor", cfg.Supervisor).
		Msg("Starting edge evaluation")

	host := hostprobe.New(log.With("hostprobe"), hostprobe.WithGPU())
	defer host.Close()

	collectorOpts := []collector.Option{collector.WithRunID(runID)}
	var orchOpts []orchestrator.Option

	if cfg.Store.Enabled {
		path := cfg.Store.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Output, path)
		}
		s, err := store.Open(store.DefaultConfig(path), log.With("store"))
		if err != nil {
			return err
		}
		defer s.Close()
		collectorOpts = append(collectorOpts, collector.WithStore(s))
		orchOpts = append(orchOpts, orchestrator.WithStore(s))
	}

	metrics, err := collector.New(cfg.Output, host, log.With("collector"), collectorOpts...)
	if err != nil {
		return err
	}

	tel := telemetry.New()
	c := client.New(client.WithObserver(tel))

	sink, err := stream.New(stream.Config{
		Transport:   cfg.SensorTransport,
		Supervisor:  cfg.Supervisor,
		Broker:      cfg.MQTT.Broker,
		TopicPrefix: cfg.MQTT.TopicPrefix,
		ClientID:    "edgebench-" + runID,
	}, c, log.With("stream"))
	if err != nil {
		return err
	}
	defer sink.Close()

	deps := scenario.Deps{
		Client:     c,
		Generator:  sensor.NewGenerator(),
		Recorder:   metrics,
		Telemetry:  tel,
		Sink:       sink,
		Local:      host.ForDispatch(),
		Log:        log.With("scenario"),
		Supervisor: cfg.Supervisor,
		Peers:      cfg.ScenarioPeers(),
	}
	loadBalance := scenario.NewLoadBalance(deps)
	loadBalance.Threshold = cfg.LoadThreshold
	engines := []scenario.Engine{
		scenario.NewNormal(deps),
		scenario.NewFailover(deps),
		loadBalance,
	}

	a := analyzer.New(cfg.Output, log,
		analyzer.WithThreshold(cfg.LoadThreshold),
		analyzer.WithCharts(charts.New(cfg.Output, cfg.LoadThreshold)))

	cooldown := cfg.Cooldown
	if cooldown == 0 {
		cooldown = -1
	}
	orchOpts = append(orchOpts, orchestrator.WithAnalyzer(a), orchestrator.WithTextfile(tel))
	o := orchestrator.New(orchestrator.Config{
		OutputDir:      cfg.Output,
		Cooldown:       cooldown,
		SampleInterval: cfg.Collector.Interval,
	}, engines, metrics, log, orchOpts...)

	if cfg.RunAll() {
		_, err = o.RunAll(ctx, cfg.Iterations, cfg.IterationDuration())
	} else {
		_, err = o.RunSingle(ctx, cfg.Scenario, cfg.Iterations, cfg.IterationDuration())
	}
	return err
}

func handleSignals(cancel context.CancelFunc, log *logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("Received termination signal.")
	cancel()
}
