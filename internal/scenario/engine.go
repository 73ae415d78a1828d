// Package scenario implements the three evaluation scenarios: normal
// operation, supervisor failover and load balancing.
package scenario

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/sensor"
	"codeberg.org/mutker/edgebench/internal/stream"
)

// ID identifies a scenario.
type ID string

const (
	IDNormal      ID = "S1"
	IDFailover    ID = "S2"
	IDLoadBalance ID = "S3"
)

// IDs lists the scenarios in execution order.
func IDs() []ID {
	return []ID{IDNormal, IDFailover, IDLoadBalance}
}

// ParseID accepts S1..S3 in any case.
func ParseID(s string) (ID, bool) {
	id := ID(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range IDs() {
		if id == known {
			return id, true
		}
	}
	return "", false
}

func (id ID) Name() string {
	switch id {
	case IDNormal:
		return "S1_Normal_Operation"
	case IDFailover:
		return "S2_Failover"
	case IDLoadBalance:
		return "S3_Load_Balancing"
	default:
		return string(id)
	}
}

// Engine runs one scenario for a bounded duration. Transient dispatch
// failures are counted in the result; only cancellation or invalid
// arguments produce an error.
type Engine interface {
	ID() ID
	Run(ctx context.Context, duration time.Duration) (Result, error)
}

// Peer is a worker node reachable over HTTP.
type Peer struct {
	Location string
	Endpoint string
}

// Recorder receives per-task records.
type Recorder interface {
	RecordTaskExecution(taskType string, responseTime float64, success bool, location string) error
}

// Instrumentation receives dispatch telemetry.
type Instrumentation interface {
	ObserveTask(scenario string, out client.Outcome)
	ObserveOffload(scenario string)
	SetAdmissionCPU(percent float64)
	ScenarioStarted(scenario string) func()
}

// LocalProbe reads the harness host, used when the supervisor does not
// report its own load.
type LocalProbe interface {
	CPUPercent(ctx context.Context) (float64, error)
	MemoryPercent(ctx context.Context) (float64, error)
}

// Deps are the collaborators shared by all engines.
type Deps struct {
	Client     *client.Client
	Generator  *sensor.Generator
	Recorder   Recorder
	Telemetry  Instrumentation
	Sink       stream.Sink
	Local      LocalProbe
	Log        *logger.Logger
	Supervisor string
	Peers      []Peer
	Rand       *rand.Rand
}

func (d Deps) withDefaults() Deps {
	if d.Client == nil {
		d.Client = client.New()
	}
	if d.Generator == nil {
		d.Generator = sensor.NewGenerator()
	}
	if d.Recorder == nil {
		d.Recorder = nopRecorder{}
	}
	if d.Telemetry == nil {
		d.Telemetry = nopInstrumentation{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	return d
}

// locations returns the peer locations, or the default sensor locations
// when no peers are configured.
func (d Deps) locations() []string {
	if len(d.Peers) == 0 {
		return sensor.DefaultLocations()
	}
	locs := make([]string, len(d.Peers))
	for i, p := range d.Peers {
		locs[i] = p.Location
	}
	return locs
}

func (d Deps) peer(location string) (Peer, bool) {
	for _, p := range d.Peers {
		if p.Location == location {
			return p, true
		}
	}
	return Peer{}, false
}

// record forwards an outcome to telemetry and the recorder.
func (d Deps) record(id ID, taskType string, out client.Outcome) {
	d.Telemetry.ObserveTask(string(id), out)
	if err := d.Recorder.RecordTaskExecution(taskType, out.ResponseTime, out.Success, out.Location); err != nil {
		d.Log.Warn().Err(err).Str("task_type", taskType).Msg("Failed to record task execution")
	}
}

func validateDuration(d time.Duration) error {
	if d <= 0 {
		return errors.New().WithData(ErrInvalidDuration, d.String())
	}
	return nil
}

func cancelled(ctx context.Context) error {
	return errors.New().Wrap(ErrCancelled, ctx.Err())
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopRecorder struct{}

func (nopRecorder) RecordTaskExecution(string, float64, bool, string) error { return nil }

type nopInstrumentation struct{}

func (nopInstrumentation) ObserveTask(string, client.Outcome) {}
func (nopInstrumentation) ObserveOffload(string)              {}
func (nopInstrumentation) SetAdmissionCPU(float64)            {}
func (nopInstrumentation) ScenarioStarted(string) func()      { return func() {} }
