package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net"

	"codeberg.org/mutker/edgebench/internal/errors"
)

// FailureKind classifies why a call did not succeed.
type FailureKind string

const (
	FailureTimeout     FailureKind = "timeout"
	FailureConnection  FailureKind = "connection"
	FailureHTTPStatus  FailureKind = "http_status"
	FailureDecode      FailureKind = "decode"
	FailureUnavailable FailureKind = "unavailable"
)

// Failure is the typed reason of an unsuccessful call.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	StatusCode int         `json:"status_code,omitempty"`
	Message    string      `json:"message"`
}

func (f *Failure) Error() string {
	if f.StatusCode != 0 {
		return fmt.Sprintf("%s (%d): %s", f.Kind, f.StatusCode, f.Message)
	}
	return fmt.Sprintf("%s: %s", f.Kind, f.Message)
}

// Outcome is the result of dispatching one task. ResponseTime is in
// milliseconds and is measured for failures too.
type Outcome struct {
	ResponseTime float64         `json:"response_time_ms"`
	Accuracy     float64         `json:"accuracy_score"`
	Location     string          `json:"execution_location"`
	Success      bool            `json:"success"`
	Failure      *Failure        `json:"failure,omitempty"`
	Body         json.RawMessage `json:"-"`
}

// Failed builds a failure outcome.
func Failed(location string, f *Failure) Outcome {
	return Outcome{Location: location, Failure: f}
}

// Unavailable is the outcome when no target could be reached.
func Unavailable(msg string) Outcome {
	return Failed("none", &Failure{Kind: FailureUnavailable, Message: msg})
}

// AsFailure extracts a *Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

func classify(ctx context.Context, err error) *Failure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Failure{Kind: FailureTimeout, Message: err.Error()}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Failure{Kind: FailureTimeout, Message: err.Error()}
	}

	return &Failure{Kind: FailureConnection, Message: err.Error()}
}
