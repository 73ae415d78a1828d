package scenario

import (
	"context"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultLoadThreshold   = 70.0
	supervisorTaskTimeout  = 20 * time.Second
	processTaskTimeout     = 25 * time.Second
	defaultMonitorInterval = 5 * time.Second
	peerUnavailable        = "all peers unavailable"
)

// PhaseSpec describes one load phase.
type PhaseSpec struct {
	Name       string
	Duration   time.Duration
	Rate       int
	Complexity string
}

// DefaultPhases ramps the task rate up and back down.
func DefaultPhases() []PhaseSpec {
	return []PhaseSpec{
		{Name: "normal_load", Duration: 60 * time.Second, Rate: 2, Complexity: ComplexitySimple},
		{Name: "increasing_load", Duration: 90 * time.Second, Rate: 5, Complexity: ComplexityMedium},
		{Name: "high_load", Duration: 90 * time.Second, Rate: 10, Complexity: ComplexityComplex},
		{Name: "recovery", Duration: 60 * time.Second, Rate: 3, Complexity: ComplexitySimple},
	}
}

// LoadBalance drives increasing task rates at the supervisor and offloads
// tasks to peers whenever the supervisor CPU exceeds Threshold.
type LoadBalance struct {
	deps Deps
	rand *random

	Phases          []PhaseSpec
	Threshold       float64
	MonitorInterval time.Duration
	Admission       CPUProbe
	Monitor         LoadProbe
	// NewTask builds the next task of a phase.
	NewTask func(complexity string) Task
}

func NewLoadBalance(d Deps) *LoadBalance {
	d = d.withDefaults()
	probe := NewSupervisorProbe(d.Client, d.Supervisor, d.Local)
	l := &LoadBalance{
		deps:            d,
		rand:            newRandom(d.Rand),
		Phases:          DefaultPhases(),
		Threshold:       DefaultLoadThreshold,
		MonitorInterval: defaultMonitorInterval,
		Admission:       probe,
		Monitor:         probe,
	}
	l.NewTask = l.newTask
	return l
}

func (*LoadBalance) ID() ID { return IDLoadBalance }

func (l *LoadBalance) Run(ctx context.Context, duration time.Duration) (Result, error) {
	if err := validateDuration(duration); err != nil {
		return Result{}, err
	}

	log := l.deps.Log.With("S3")
	defer l.deps.Telemetry.ScenarioStarted(string(IDLoadBalance))()

	res := newResult(IDLoadBalance, uuid.NewString(), duration)
	lb := &LoadBalanceResult{
		Phases:                  []Phase{},
		CPUUsageTimeline:        []TimelineEntry{},
		ResponseTimesSupervisor: []float64{},
		ResponseTimesPeers:      []float64{},
		AccuracySupervisor:      []float64{},
		AccuracyPeers:           []float64{},
	}
	res.LoadBalance = lb
	start := res.StartedAt

	var mu sync.Mutex

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	monitorDone := make(chan struct{})
	go func() {
		defer close(monitorDone)
		l.monitor(monitorCtx, start, &mu, lb)
	}()

	log.Info().Str("run_id", res.RunID).Dur("duration", duration).Msg("Starting load balancing")

	var runErr error
	for _, spec := range l.Phases {
		remaining := duration - time.Since(start)
		if remaining <= 0 {
			break
		}
		if ctx.Err() != nil {
			runErr = cancelled(ctx)
			break
		}

		d := min(spec.Duration, remaining)
		log.Info().Str("phase", spec.Name).Int("rate", spec.Rate).Dur("duration", d).Msg("Starting load phase")

		phase := l.runPhase(ctx, spec, d, &mu, &res)

		mu.Lock()
		lb.Phases = append(lb.Phases, phase)
		mu.Unlock()
	}
	if runErr == nil && ctx.Err() != nil {
		runErr = cancelled(ctx)
	}

	stopMonitor()
	<-monitorDone

	lb.finalize()
	res.CPUUsage = []float64{}
	for _, p := range lb.Phases {
		res.CPUUsage = append(res.CPUUsage, p.CPUUsage...)
	}
	res.finalize()

	log.Info().
		Int("load_shedding_events", lb.LoadSheddingEvents).
		Int("supervisor_tasks", lb.TasksOnSupervisor).
		Int("peer_tasks", lb.TasksOnPeers).
		Float64("effectiveness", lb.LoadBalancingEffectiveness).
		Msg("Load balancing finished")

	return res, runErr
}

// runPhase generates tasks at spec.Rate for d. The offload decision is made
// synchronously per task; execution runs in a pool of 2×rate workers.
func (l *LoadBalance) runPhase(ctx context.Context, spec PhaseSpec, d time.Duration, mu *sync.Mutex, res *Result) Phase {
	phase := Phase{
		Name:              spec.Name,
		Duration:          spec.Duration.Seconds(),
		EffectiveDuration: d.Seconds(),
		Rate:              spec.Rate,
		Complexity:        spec.Complexity,
		CPUUsage:          []float64{},
		Offloaded:         []bool{},
		ResponseTimes:     []float64{},
		AccuracyScores:    []float64{},
	}

	perSecond := max(1, spec.Rate)
	limiter := rate.NewLimiter(rate.Limit(perSecond), 1)

	g := new(errgroup.Group)
	g.SetLimit(perSecond * 2)

	// Wait fails as soon as the next token would land past the phase end.
	pace, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	for limiter.Wait(pace) == nil {
		task := l.NewTask(spec.Complexity)
		cpu := l.Admission.CPUPercent(ctx)
		offload := cpu > l.Threshold
		l.deps.Telemetry.SetAdmissionCPU(cpu)

		mu.Lock()
		phase.CPUUsage = append(phase.CPUUsage, cpu)
		phase.Offloaded = append(phase.Offloaded, offload)
		if offload {
			phase.LoadSheddingEvents++
			phase.PeerTasks++
		} else {
			phase.SupervisorTasks++
		}
		mu.Unlock()

		if offload {
			l.deps.Telemetry.ObserveOffload(string(IDLoadBalance))
		}

		g.Go(func() error {
			var out client.Outcome
			if offload {
				out = l.executeOnPeer(ctx, task)
			} else {
				out = l.executeOnSupervisor(ctx, task)
			}
			l.deps.record(IDLoadBalance, task.Type, out)

			mu.Lock()
			defer mu.Unlock()

			phase.ResponseTimes = append(phase.ResponseTimes, out.ResponseTime)
			phase.AccuracyScores = append(phase.AccuracyScores, out.Accuracy)
			res.ResponseTimes = append(res.ResponseTimes, out.ResponseTime)
			res.AccuracyScores = append(res.AccuracyScores, out.Accuracy)
			if out.Success {
				res.TasksCompleted++
			} else {
				res.TasksFailed++
			}

			lb := res.LoadBalance
			if offload {
				lb.ResponseTimesPeers = append(lb.ResponseTimesPeers, out.ResponseTime)
				lb.AccuracyPeers = append(lb.AccuracyPeers, out.Accuracy)
			} else {
				lb.ResponseTimesSupervisor = append(lb.ResponseTimesSupervisor, out.ResponseTime)
				lb.AccuracySupervisor = append(lb.AccuracySupervisor, out.Accuracy)
			}
			return nil
		})
	}

	_ = g.Wait()
	return phase
}

func (l *LoadBalance) newTask(complexity string) Task {
	size := 10 + l.rand.intn(91)
	if complexity == ComplexityComplex {
		size = 100 + l.rand.intn(9901)
	}

	locations := l.deps.locations()
	reading := l.deps.Generator.Generate(pick(l.rand, locations), time.Time{})

	return Task{
		ID:         newTaskID(),
		Type:       pick(l.rand, taskPools[complexity]),
		Complexity: complexity,
		Location:   pick(l.rand, locations),
		DataSize:   size,
		SensorData: &reading,
		Timestamp:  time.Now(),
	}
}

func (l *LoadBalance) executeOnSupervisor(ctx context.Context, task Task) client.Outcome {
	out := l.deps.Client.Dispatch(ctx, l.deps.Supervisor, client.PathTask, task, supervisorTaskTimeout)
	out.Location = "supervisor"
	if out.Success {
		out.Accuracy = l.rand.uniform(85, 95)
	}
	return out
}

// executeOnPeer tries the task's home peer first, then the others in
// configured order, until one accepts it.
func (l *LoadBalance) executeOnPeer(ctx context.Context, task Task) client.Outcome {
	start := time.Now()

	for _, p := range l.peerOrder(task.Location) {
		out := l.deps.Client.Dispatch(ctx, p.Endpoint, client.PathProcessTask, task, processTaskTimeout)
		if out.Success {
			out.ResponseTime = float64(time.Since(start).Microseconds()) / 1000
			out.Location = p.Location
			out.Accuracy = l.rand.uniform(78, 88)
			return out
		}
		if ctx.Err() != nil {
			break
		}
	}

	out := client.Unavailable(peerUnavailable)
	out.ResponseTime = float64(time.Since(start).Microseconds()) / 1000
	return out
}

func (l *LoadBalance) peerOrder(home string) []Peer {
	order := make([]Peer, 0, len(l.deps.Peers))
	if p, ok := l.deps.peer(home); ok {
		order = append(order, p)
	}
	for _, p := range l.deps.Peers {
		if p.Location != home {
			order = append(order, p)
		}
	}
	return order
}

// monitor samples supervisor and peer load until ctx is done.
func (l *LoadBalance) monitor(ctx context.Context, start time.Time, mu *sync.Mutex, lb *LoadBalanceResult) {
	for {
		entry := l.sampleLoad(ctx, start)
		if ctx.Err() != nil {
			return
		}

		mu.Lock()
		lb.CPUUsageTimeline = append(lb.CPUUsageTimeline, entry)
		mu.Unlock()

		if sleep(ctx, l.MonitorInterval) != nil {
			return
		}
	}
}

func (l *LoadBalance) sampleLoad(ctx context.Context, start time.Time) TimelineEntry {
	entry := TimelineEntry{
		Elapsed:        time.Since(start).Seconds(),
		PeerMetrics:    make(map[string]map[string]any, len(l.deps.Peers)),
		NetworkLatency: make(map[string]*float64, len(l.deps.Peers)),
	}
	entry.SupervisorCPU, entry.SupervisorMemory = l.Monitor.Load(ctx)

	for _, p := range l.deps.Peers {
		metrics, err := l.deps.Client.RawMetrics(ctx, p.Endpoint)
		if err != nil {
			status := "error"
			if f, ok := client.AsFailure(err); ok && f.Kind == client.FailureHTTPStatus {
				status = "offline"
			}
			metrics = map[string]any{"cpu": 0.0, "memory": 0.0, "status": status}
		}
		entry.PeerMetrics[p.Location] = metrics

		if rtt, err := l.deps.Client.Ping(ctx, p.Endpoint); err == nil {
			ms := float64(rtt.Microseconds()) / 1000
			entry.NetworkLatency[p.Location] = &ms
		} else {
			entry.NetworkLatency[p.Location] = nil
		}
	}

	return entry
}
