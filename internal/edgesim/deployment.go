package edgesim

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"golang.org/x/sync/errgroup"
)

// PeerSpec places one peer on a listen address.
type PeerSpec struct {
	Location string
	Addr     string
}

type DeploymentConfig struct {
	Node              NodeConfig
	SupervisorAddr    string
	Peers             []PeerSpec
	FailureDuration   time.Duration
	HeartbeatInterval time.Duration
}

// Deployment runs a supervisor and its peers in one process.
type Deployment struct {
	Supervisor *Supervisor
	Peers      []*Peer

	servers []*Server
	log     *logger.Logger
}

func NewDeployment(cfg DeploymentConfig, log *logger.Logger) (*Deployment, error) {
	if log == nil {
		log = logger.Nop()
	}

	supervisorURL := localURL(cfg.SupervisorAddr)
	members := make([]Member, 0, len(cfg.Peers))
	for _, p := range cfg.Peers {
		if p.Location == "" || p.Addr == "" {
			return nil, errors.New().WithData(ErrInvalidPeer, p)
		}
		members = append(members, Member{Location: p.Location, Endpoint: localURL(p.Addr)})
	}

	sup := NewSupervisor(cfg.Node, log)
	sup.FailureDuration = cfg.FailureDuration

	d := &Deployment{
		Supervisor: sup,
		log:        log,
		servers:    []*Server{NewServer(ServerConfig{Addr: cfg.SupervisorAddr}, sup.Handler(), log.With("http"))},
	}

	c := client.New()
	for i, spec := range cfg.Peers {
		nodeCfg := cfg.Node
		if nodeCfg.Seed != 0 {
			nodeCfg.Seed += int64(i + 1)
		}
		peer, err := NewPeer(PeerConfig{
			NodeConfig:        nodeCfg,
			Location:          spec.Location,
			Supervisor:        supervisorURL,
			Members:           members,
			HeartbeatInterval: cfg.HeartbeatInterval,
			Client:            c,
		}, log)
		if err != nil {
			return nil, err
		}
		d.Peers = append(d.Peers, peer)
		d.servers = append(d.servers, NewServer(ServerConfig{Addr: spec.Addr}, peer.Handler(), log.With("http")))
	}

	return d, nil
}

// Run serves every node until ctx is cancelled or a server fails.
func (d *Deployment) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	d.Supervisor.Start(ctx)
	defer d.Supervisor.Stop()
	for _, p := range d.Peers {
		p.Start(ctx)
		defer p.Stop()
	}

	for _, srv := range d.servers {
		srv := srv
		g.Go(func() error { return srv.Run(ctx) })
	}

	d.log.Info().
		Int("peers", len(d.Peers)).
		Msg("Simulated deployment running")
	return g.Wait()
}

// localURL turns a listen address into a loopback base URL.
func localURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + strings.TrimPrefix(addr, "http://")
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s", net.JoinHostPort(host, port))
}
