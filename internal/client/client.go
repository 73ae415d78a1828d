// Package client talks HTTP/JSON to the supervisor and peer nodes.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultMaxIdleConns        = 100
	DefaultMaxIdleConnsPerHost = 20
	DefaultIdleConnTimeout     = 90 * time.Second

	SensorTimeout           = 5 * time.Second
	MetricsTimeout          = 5 * time.Second
	SystemMetricsTimeout    = 3 * time.Second
	SimulateFailureTimeout  = 5 * time.Second
	SupervisorStatusTimeout = 2 * time.Second
	ElectionTimeout         = 30 * time.Second
	StatusTimeout           = 5 * time.Second
	PingTimeout             = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// Endpoint paths.
const (
	PathTask             = "/api/task"
	PathSensorData       = "/api/sensor_data"
	PathMetrics          = "/api/metrics"
	PathSystemMetrics    = "/api/system_metrics"
	PathSimulateFailure  = "/admin/simulate_failure"
	PathSupervisorStatus = "/api/supervisor_status"
	PathLeaderElection   = "/api/leader_election"
	PathStatus           = "/api/status"
	PathCoordinateTask   = "/api/coordinate_task"
	PathProcessTask      = "/api/process_task"
	PathPing             = "/api/ping"
)

// Observer is notified of every completed request.
type Observer interface {
	ObserveRequest(path string, elapsed time.Duration, result string)
}

type Client struct {
	http     *http.Client
	observer Observer
}

type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithObserver instruments every request.
func WithObserver(o Observer) Option {
	return func(c *Client) { c.observer = o }
}

// New creates a client. Per-call deadlines come from contexts, so the
// underlying HTTP client carries no global timeout.
func New(opts ...Option) *Client {
	c := &Client{
		http: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        DefaultMaxIdleConns,
				MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
				IdleConnTimeout:     DefaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Dispatch posts a task and measures its response time. Success requires
// HTTP 200 with a JSON body.
func (c *Client) Dispatch(ctx context.Context, endpoint, path string, task any, timeout time.Duration) Outcome {
	start := time.Now()
	body, status, err := c.do(ctx, http.MethodPost, endpoint, path, task, timeout)
	elapsed := float64(time.Since(start).Microseconds()) / 1000

	out := Outcome{ResponseTime: elapsed}
	switch {
	case err != nil:
		out.Failure = err
	case status != http.StatusOK:
		out.Failure = &Failure{Kind: FailureHTTPStatus, StatusCode: status, Message: http.StatusText(status)}
	case !json.Valid(body):
		out.Failure = &Failure{Kind: FailureDecode, StatusCode: status, Message: "response is not JSON"}
	default:
		out.Success = true
		out.Body = body
	}

	return out
}

// SendSensorData posts one reading. The response body is ignored.
func (c *Client) SendSensorData(ctx context.Context, endpoint string, reading any) error {
	_, status, err := c.do(ctx, http.MethodPost, endpoint, PathSensorData, reading, SensorTimeout)
	if err != nil {
		return err
	}
	return statusError(status)
}

// SystemMetrics is the subset of a metrics document the harness reads.
type SystemMetrics struct {
	CPUPercent    float64
	MemoryPercent float64
	Network       *float64
	Energy        *float64
}

type metricsDoc struct {
	CPUPercent    *float64 `json:"cpu_percent"`
	CPU           *float64 `json:"cpu"`
	MemoryPercent *float64 `json:"memory_percent"`
	Memory        *float64 `json:"memory"`
	Network       *float64 `json:"network_usage"`
	NetworkShort  *float64 `json:"network"`
	Energy        *float64 `json:"energy_consumption"`
	EnergyShort   *float64 `json:"energy"`
}

// Metrics reads GET /api/metrics.
func (c *Client) Metrics(ctx context.Context, endpoint string) (SystemMetrics, error) {
	return c.metrics(ctx, endpoint, PathMetrics, MetricsTimeout)
}

// SystemMetrics reads GET /api/system_metrics.
func (c *Client) SystemMetrics(ctx context.Context, endpoint string) (SystemMetrics, error) {
	return c.metrics(ctx, endpoint, PathSystemMetrics, SystemMetricsTimeout)
}

func (c *Client) metrics(ctx context.Context, endpoint, path string, timeout time.Duration) (SystemMetrics, error) {
	var doc metricsDoc
	if err := c.getJSON(ctx, endpoint, path, timeout, &doc); err != nil {
		return SystemMetrics{}, err
	}

	cpu := firstOf(doc.CPUPercent, doc.CPU)
	mem := firstOf(doc.MemoryPercent, doc.Memory)
	if cpu == nil || mem == nil {
		return SystemMetrics{}, &Failure{Kind: FailureDecode, Message: "cpu or memory missing"}
	}

	return SystemMetrics{
		CPUPercent:    *cpu,
		MemoryPercent: *mem,
		Network:       firstOf(doc.Network, doc.NetworkShort),
		Energy:        firstOf(doc.Energy, doc.EnergyShort),
	}, nil
}

// RawMetrics returns the metrics document of a peer as-is.
func (c *Client) RawMetrics(ctx context.Context, endpoint string) (map[string]any, error) {
	doc := make(map[string]any)
	if err := c.getJSON(ctx, endpoint, PathMetrics, MetricsTimeout, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// SimulateFailure asks the supervisor to go offline.
func (c *Client) SimulateFailure(ctx context.Context, endpoint string) error {
	_, status, err := c.do(ctx, http.MethodPost, endpoint, PathSimulateFailure, struct{}{}, SimulateFailureTimeout)
	if err != nil {
		return err
	}
	return statusError(status)
}

// SupervisorStatus reports whether a peer still sees the supervisor.
func (c *Client) SupervisorStatus(ctx context.Context, endpoint string) (bool, error) {
	var doc struct {
		SupervisorOnline *bool `json:"supervisor_online"`
	}
	if err := c.getJSON(ctx, endpoint, PathSupervisorStatus, SupervisorStatusTimeout, &doc); err != nil {
		return false, err
	}
	if doc.SupervisorOnline == nil {
		return false, &Failure{Kind: FailureDecode, Message: "supervisor_online missing"}
	}
	return *doc.SupervisorOnline, nil
}

type Election struct {
	IsLeader bool   `json:"is_leader"`
	Location string `json:"location"`
}

type electionRequest struct {
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
}

// LeaderElection triggers an election round on the peer at location.
func (c *Client) LeaderElection(ctx context.Context, endpoint, location string) (Election, error) {
	var e Election
	req := electionRequest{Location: location, Timestamp: time.Now()}
	body, status, err := c.do(ctx, http.MethodPost, endpoint, PathLeaderElection, req, ElectionTimeout)
	if err != nil {
		return e, err
	}
	if err := statusError(status); err != nil {
		return e, err
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return e, &Failure{Kind: FailureDecode, Message: err.Error()}
	}
	return e, nil
}

type PeerStatus struct {
	IsLeader bool   `json:"is_leader"`
	Location string `json:"location"`
}

// Status reads a peer's role.
func (c *Client) Status(ctx context.Context, endpoint string) (PeerStatus, error) {
	var s PeerStatus
	err := c.getJSON(ctx, endpoint, PathStatus, StatusTimeout, &s)
	return s, err
}

// Ping measures the round trip of GET /api/ping.
func (c *Client) Ping(ctx context.Context, endpoint string) (time.Duration, error) {
	start := time.Now()
	_, status, err := c.do(ctx, http.MethodGet, endpoint, PathPing, nil, PingTimeout)
	if err != nil {
		return 0, err
	}
	if err := statusError(status); err != nil {
		return 0, err
	}
	return time.Since(start), nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, timeout time.Duration, v any) error {
	body, status, err := c.do(ctx, http.MethodGet, endpoint, path, nil, timeout)
	if err != nil {
		return err
	}
	if err := statusError(status); err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Failure{Kind: FailureDecode, Message: err.Error()}
	}
	return nil
}

// do performs one request. A returned *Failure covers transport and
// encoding problems only; the status code is left to the caller.
func (c *Client) do(ctx context.Context, method, endpoint, path string, payload any, timeout time.Duration) ([]byte, int, *Failure) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	body, status, failure := c.roundTrip(ctx, method, endpoint, path, payload)

	if c.observer != nil {
		result := "ok"
		switch {
		case failure != nil:
			result = string(failure.Kind)
		case status != http.StatusOK:
			result = string(FailureHTTPStatus)
		}
		c.observer.ObserveRequest(path, time.Since(start), result)
	}

	return body, status, failure
}

func (c *Client) roundTrip(ctx context.Context, method, endpoint, path string, payload any) ([]byte, int, *Failure) {
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, &Failure{Kind: FailureDecode, Message: err.Error()}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(endpoint, "/")+path, reader)
	if err != nil {
		return nil, 0, &Failure{Kind: FailureConnection, Message: err.Error()}
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, classify(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, classify(ctx, err)
	}

	return body, resp.StatusCode, nil
}

func statusError(status int) error {
	if status == http.StatusOK {
		return nil
	}
	return &Failure{Kind: FailureHTTPStatus, StatusCode: status, Message: http.StatusText(status)}
}

func firstOf(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}
