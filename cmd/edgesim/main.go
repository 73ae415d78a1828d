package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"codeberg.org/mutker/edgebench/internal/edgesim"
	"codeberg.org/mutker/edgebench/internal/hostprobe"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/telemetry"
	"github.com/gin-gonic/gin"
	flag "github.com/spf13/pflag"
)

var (
	supervisorAddr  = flag.String("supervisor-addr", ":5000", "supervisor listen address")
	peers           = flag.StringSlice("peer", []string{"office=:5001", "kitchen=:5002", "hallway=:5003"}, "peer as location=address, in election order")
	failureDuration = flag.Duration("failure-duration", 3*time.Minute, "how long a simulated supervisor failure lasts (0 = until restored)")
	heartbeat       = flag.Duration("heartbeat", edgesim.DefaultHeartbeatInterval, "peer heartbeat interval")
	hostMetrics     = flag.Bool("host-metrics", false, "report this machine's CPU and memory instead of a synthetic load")
	logLevel        = flag.String("log-level", "info", "log level (debug, info, warning, error)")
	seed            = flag.Int64("seed", 0, "random seed (0 = time based)")
)

func main() {
	flag.Parse()

	log, err := logger.New(logger.Options{Level: *logLevel})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Close()

	gin.SetMode(gin.ReleaseMode)

	specs, err := parsePeers(*peers)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid peer list")
	}

	node := edgesim.NodeConfig{
		Processing: edgesim.DefaultProcessing(),
		Telemetry:  telemetry.New(),
		Seed:       *seed,
	}
	if *hostMetrics {
		host := hostprobe.New(log.With("hostprobe"))
		defer host.Close()
		node.Load = edgesim.NewHostLoad(host)
	}

	d, err := edgesim.NewDeployment(edgesim.DeploymentConfig{
		Node:              node,
		SupervisorAddr:    *supervisorAddr,
		Peers:             specs,
		FailureDuration:   *failureDuration,
		HeartbeatInterval: *heartbeat,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to build deployment")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel, log)

	if err := d.Run(ctx); err != nil {
		log.ErrorWithCode(err).Msg("Deployment stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Exiting...")
}

func parsePeers(values []string) ([]edgesim.PeerSpec, error) {
	specs := make([]edgesim.PeerSpec, 0, len(values))
	for _, v := range values {
		location, addr, ok := strings.Cut(v, "=")
		if !ok || location == "" || addr == "" {
			return nil, fmt.Errorf("peer %q: want location=address", v)
		}
		specs = append(specs, edgesim.PeerSpec{Location: location, Addr: addr})
	}
	return specs, nil
}

func handleSignals(cancel context.CancelFunc, log *logger.Logger) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	log.Info().Msg("Received termination signal.")
	cancel()
}
