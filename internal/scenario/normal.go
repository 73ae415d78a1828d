package scenario

import (
	"context"
	"slices"
	"sync"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	normalWorkers      = 3
	normalTaskTimeout  = 30 * time.Second
	sensorInterval     = time.Second
	normalBaseAccuracy = 85
	locationBonus      = 5
)

// Normal submits mixed analytics tasks to the supervisor while streaming
// sensor readings in the background.
type Normal struct {
	deps Deps
	rand *random

	Workers     int
	TaskTimeout time.Duration
	Pacing      Pacing
}

func NewNormal(d Deps) *Normal {
	d = d.withDefaults()
	return &Normal{
		deps:        d,
		rand:        newRandom(d.Rand),
		Workers:     normalWorkers,
		TaskTimeout: normalTaskTimeout,
		Pacing:      Pacing{Min: 2 * time.Second, Max: 8 * time.Second},
	}
}

func (*Normal) ID() ID { return IDNormal }

func (n *Normal) Run(ctx context.Context, duration time.Duration) (Result, error) {
	if err := validateDuration(duration); err != nil {
		return Result{}, err
	}

	log := n.deps.Log.With("S1")
	defer n.deps.Telemetry.ScenarioStarted(string(IDNormal))()

	res := newResult(IDNormal, uuid.NewString(), duration)
	res.MemoryUsage = []float64{}
	res.NetworkOverhead = []float64{}
	res.EnergyConsumption = []float64{}
	start := res.StartedAt

	log.Info().Str("run_id", res.RunID).Dur("duration", duration).Msg("Starting normal operation")

	streamCtx, stopStream := context.WithCancel(ctx)
	streamDone := make(chan struct{})
	go func() {
		defer close(streamDone)
		n.streamSensors(streamCtx, start, duration)
	}()

	var mu sync.Mutex
	g := new(errgroup.Group)
	g.SetLimit(n.Workers)

	var runErr error
	for time.Since(start) < duration {
		if ctx.Err() != nil {
			runErr = cancelled(ctx)
			break
		}

		task := n.newTask()
		g.Go(func() error {
			out := n.execute(ctx, task)
			n.deps.record(IDNormal, task.Type, out)

			mu.Lock()
			defer mu.Unlock()
			if out.Success {
				res.TasksCompleted++
				res.ResponseTimes = append(res.ResponseTimes, out.ResponseTime)
				res.AccuracyScores = append(res.AccuracyScores, out.Accuracy)
			} else {
				res.TasksFailed++
				log.Debug().Str("task_id", task.ID).Str("reason", out.Failure.Error()).Msg("Task failed")
			}
			return nil
		})

		m := n.systemMetrics(ctx)
		mu.Lock()
		res.CPUUsage = append(res.CPUUsage, m.cpu)
		res.MemoryUsage = append(res.MemoryUsage, m.memory)
		res.NetworkOverhead = append(res.NetworkOverhead, m.network)
		res.EnergyConsumption = append(res.EnergyConsumption, m.energy)
		mu.Unlock()

		if err := sleep(ctx, n.rand.between(n.Pacing)); err != nil {
			runErr = cancelled(ctx)
			break
		}
	}

	_ = g.Wait()
	stopStream()
	<-streamDone

	res.finalize()

	log.Info().
		Int("completed", res.TasksCompleted).
		Int("failed", res.TasksFailed).
		Float64("avg_response_ms", res.AvgResponseTime).
		Msg("Normal operation finished")

	return res, runErr
}

func (n *Normal) newTask() Task {
	data := n.deps.Generator.TaskData()
	return Task{
		ID:        newTaskID(),
		Type:      pick(n.rand, normalTaskTypes),
		Location:  pick(n.rand, n.deps.locations()),
		Priority:  pick(n.rand, priorities),
		Data:      &data,
		Timestamp: time.Now(),
	}
}

func (n *Normal) execute(ctx context.Context, task Task) client.Outcome {
	out := n.deps.Client.Dispatch(ctx, n.deps.Supervisor, client.PathTask, task, n.TaskTimeout)
	out.Location = "supervisor"
	if out.Success {
		out.Accuracy = n.accuracy(task)
	}
	return out
}

func (n *Normal) accuracy(task Task) float64 {
	score := float64(normalBaseAccuracy)
	if slices.Contains(n.deps.locations(), task.Location) {
		score += locationBonus
	}
	score += priorityBonus[task.Priority]
	score += n.rand.uniform(-10, 10)
	return min(100, max(0, score))
}

type systemSample struct {
	cpu, memory, network, energy float64
}

// systemMetrics reads the supervisor's metrics, substituting synthetic
// values for anything it does not report.
func (n *Normal) systemMetrics(ctx context.Context) systemSample {
	s := systemSample{
		cpu:     n.rand.uniform(20, 50),
		memory:  n.rand.uniform(30, 60),
		network: n.rand.uniform(100, 500),
		energy:  n.rand.uniform(5, 15),
	}

	m, err := n.deps.Client.Metrics(ctx, n.deps.Supervisor)
	if err != nil {
		return s
	}
	s.cpu, s.memory = m.CPUPercent, m.MemoryPercent
	if m.Network != nil {
		s.network = *m.Network
	}
	if m.Energy != nil {
		s.energy = *m.Energy
	}
	return s
}

// streamSensors sends one reading per location every second. Failures
// are ignored.
func (n *Normal) streamSensors(ctx context.Context, start time.Time, duration time.Duration) {
	if n.deps.Sink == nil {
		return
	}

	for time.Since(start) < duration {
		for _, loc := range n.deps.locations() {
			if ctx.Err() != nil {
				return
			}
			if err := n.deps.Sink.Send(ctx, n.deps.Generator.Generate(loc, time.Time{})); err != nil {
				n.deps.Log.Debug().Err(err).Str("location", loc).Msg("Sensor send failed")
			}
		}
		if sleep(ctx, sensorInterval) != nil {
			return
		}
	}
}
