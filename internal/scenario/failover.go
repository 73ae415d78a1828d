package scenario

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"github.com/google/uuid"
)

const (
	failoverPhase1Share      = 0.3
	failoverTaskTimeout      = 10 * time.Second
	coordinateTaskTimeout    = 15 * time.Second
	defaultDetectionWindow   = 60 * time.Second
	defaultDetectionFallback = 30 * time.Second
	defaultMinRecoveryWindow = 30 * time.Second
	detectionPollInterval    = time.Second
)

// Failover runs tasks against the supervisor, takes it offline, measures
// how fast peers detect the failure and elect a leader, then runs tasks
// against the new leader.
type Failover struct {
	deps Deps
	rand *random

	BeforePacing      Pacing
	AfterPacing       Pacing
	DetectionWindow   time.Duration
	DetectionFallback time.Duration
	PollInterval      time.Duration
	MinRecoveryWindow time.Duration
}

func NewFailover(d Deps) *Failover {
	d = d.withDefaults()
	return &Failover{
		deps:              d,
		rand:              newRandom(d.Rand),
		BeforePacing:      Pacing{Min: 3 * time.Second, Max: 7 * time.Second},
		AfterPacing:       Pacing{Min: 4 * time.Second, Max: 10 * time.Second},
		DetectionWindow:   defaultDetectionWindow,
		DetectionFallback: defaultDetectionFallback,
		PollInterval:      detectionPollInterval,
		MinRecoveryWindow: defaultMinRecoveryWindow,
	}
}

func (*Failover) ID() ID { return IDFailover }

type phaseTarget struct {
	endpoint string
	path     string
	location string
	timeout  time.Duration
	pacing   Pacing
	accuracy [2]float64
}

type phaseStats struct {
	failed        int
	responseTimes []float64
	accuracy      []float64
}

func (f *Failover) Run(ctx context.Context, duration time.Duration) (Result, error) {
	if err := validateDuration(duration); err != nil {
		return Result{}, err
	}

	log := f.deps.Log.With("S2")
	defer f.deps.Telemetry.ScenarioStarted(string(IDFailover))()

	res := newResult(IDFailover, uuid.NewString(), duration)
	fo := &FailoverResult{
		ResponseTimesBefore: []float64{},
		ResponseTimesAfter:  []float64{},
		AccuracyBefore:      []float64{},
		AccuracyAfter:       []float64{},
	}
	res.Failover = fo
	start := res.StartedAt

	finish := func(err error) (Result, error) {
		fo.finalize()
		res.TasksCompleted = fo.TasksBeforeFailure + fo.TasksAfterRecovery
		res.ResponseTimes = append(append([]float64{}, fo.ResponseTimesBefore...), fo.ResponseTimesAfter...)
		res.AccuracyScores = append(append([]float64{}, fo.AccuracyBefore...), fo.AccuracyAfter...)
		res.finalize()
		return res, err
	}

	phase1 := time.Duration(float64(duration) * failoverPhase1Share)
	fo.Phase1Duration = phase1.Seconds()
	log.Info().Str("run_id", res.RunID).Dur("phase_1", phase1).Msg("Phase 1: normal operation")

	before := f.runPhase(ctx, phase1, phaseTarget{
		endpoint: f.deps.Supervisor,
		path:     client.PathTask,
		location: "supervisor",
		timeout:  failoverTaskTimeout,
		pacing:   f.BeforePacing,
		accuracy: [2]float64{80, 95},
	})
	fo.ResponseTimesBefore, fo.AccuracyBefore = before.responseTimes, before.accuracy
	res.TasksFailed += before.failed
	if ctx.Err() != nil {
		return finish(cancelled(ctx))
	}

	log.Info().Msg("Phase 2: simulating supervisor failure")
	if err := f.deps.Client.SimulateFailure(ctx, f.deps.Supervisor); err != nil {
		log.Debug().Err(err).Msg("Simulate failure request failed")
	}

	detection, detectedBy := f.detectFailure(ctx)
	fo.FailureDetectionTime = detection.Seconds()
	fo.DetectionReported = detectedBy != ""
	fo.DetectedBy = detectedBy

	election, leader, drain := f.electLeader(ctx)
	defer drain()
	fo.LeaderElectionTime = election.Seconds()
	fo.Leader = leader

	log.Info().
		Float64("detection_s", fo.FailureDetectionTime).
		Float64("election_s", fo.LeaderElectionTime).
		Str("leader", leader).
		Msg("Failover completed")

	if ctx.Err() != nil {
		return finish(cancelled(ctx))
	}

	remaining := duration - time.Since(start)
	if remaining <= f.MinRecoveryWindow {
		fo.RecoverySkipped = true
		log.Info().Dur("remaining", remaining).Msg("Phase 3 skipped, not enough time left")
		return finish(nil)
	}

	fo.Phase3Duration = remaining.Seconds()
	endpoint := f.findLeader(ctx, leader)
	if endpoint == "" {
		log.Warn().Msg("No leader found, phase 3 has no target")
		return finish(nil)
	}

	log.Info().Dur("remaining", remaining).Str("leader_endpoint", endpoint).Msg("Phase 3: peer leader operation")
	after := f.runPhase(ctx, remaining, phaseTarget{
		endpoint: endpoint,
		path:     client.PathCoordinateTask,
		location: leaderLocation(leader),
		timeout:  coordinateTaskTimeout,
		pacing:   f.AfterPacing,
		accuracy: [2]float64{75, 90},
	})
	fo.ResponseTimesAfter, fo.AccuracyAfter = after.responseTimes, after.accuracy
	res.TasksFailed += after.failed

	if ctx.Err() != nil {
		return finish(cancelled(ctx))
	}
	return finish(nil)
}

func leaderLocation(leader string) string {
	if leader == "" {
		return "leader"
	}
	return leader
}

// runPhase dispatches environmental analysis tasks sequentially for d.
func (f *Failover) runPhase(ctx context.Context, d time.Duration, t phaseTarget) phaseStats {
	stats := phaseStats{responseTimes: []float64{}, accuracy: []float64{}}
	start := time.Now()

	for time.Since(start) < d {
		if ctx.Err() != nil {
			return stats
		}

		task := Task{
			ID:        newTaskID(),
			Type:      TaskEnvironmentalAnalysis,
			Location:  pick(f.rand, f.deps.locations()),
			Timestamp: time.Now(),
		}

		out := f.deps.Client.Dispatch(ctx, t.endpoint, t.path, task, t.timeout)
		out.Location = t.location
		if out.Success {
			out.Accuracy = f.rand.uniform(t.accuracy[0], t.accuracy[1])
			stats.responseTimes = append(stats.responseTimes, out.ResponseTime)
			stats.accuracy = append(stats.accuracy, out.Accuracy)
		} else {
			stats.failed++
		}
		f.deps.record(IDFailover, task.Type, out)

		if sleep(ctx, f.rand.between(t.pacing)) != nil {
			return stats
		}
	}

	return stats
}

// detectFailure polls the peers' view of the supervisor. It returns the
// time until the first peer reports it offline and that peer's location,
// or the fallback and "" when no peer reports within the window.
func (f *Failover) detectFailure(ctx context.Context) (time.Duration, string) {
	start := time.Now()

	for time.Since(start) < f.DetectionWindow {
		for _, p := range f.deps.Peers {
			online, err := f.deps.Client.SupervisorStatus(ctx, p.Endpoint)
			if err == nil && !online {
				return time.Since(start), p.Location
			}
		}
		if sleep(ctx, f.PollInterval) != nil {
			break
		}
	}

	return f.DetectionFallback, ""
}

// electLeader starts an election on every peer at once. The election time
// ends at the first leader announcement, or when every peer has answered.
// The returned drain func waits for the remaining calls.
func (f *Failover) electLeader(ctx context.Context) (time.Duration, string, func()) {
	start := time.Now()

	type vote struct {
		election client.Election
		err      error
		peer     Peer
	}

	votes := make(chan vote, len(f.deps.Peers))
	var wg sync.WaitGroup
	for _, p := range f.deps.Peers {
		wg.Add(1)
		go func(p Peer) {
			defer wg.Done()
			e, err := f.deps.Client.LeaderElection(ctx, p.Endpoint, p.Location)
			votes <- vote{election: e, err: err, peer: p}
		}(p)
	}

	leader := ""
	for range f.deps.Peers {
		v := <-votes
		if v.err != nil {
			f.deps.Log.Debug().Err(v.err).Str("peer", v.peer.Location).Msg("Election call failed")
			continue
		}
		if v.election.IsLeader {
			leader = v.election.Location
			if leader == "" {
				leader = v.peer.Location
			}
			break
		}
	}

	return time.Since(start), leader, wg.Wait
}

// findLeader asks each peer for its role in configured order and falls
// back to the elected location.
func (f *Failover) findLeader(ctx context.Context, elected string) string {
	for _, p := range f.deps.Peers {
		status, err := f.deps.Client.Status(ctx, p.Endpoint)
		if err == nil && status.IsLeader {
			return p.Endpoint
		}
	}

	if p, ok := f.deps.peer(elected); ok {
		return p.Endpoint
	}
	return ""
}
