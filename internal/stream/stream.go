// Package stream delivers sensor readings to the deployment, either over
// HTTP to the supervisor or through an MQTT broker.
package stream

import (
	"context"
	"strings"

	"codeberg.org/mutker/edgebench/internal/client"
	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/sensor"
)

const (
	TransportHTTP = "http"
	TransportMQTT = "mqtt"
)

// Sink accepts readings. Send failures are reported but callers treat
// them as best effort.
type Sink interface {
	Send(ctx context.Context, r sensor.Reading) error
	Close() error
}

type Config struct {
	Transport   string
	Supervisor  string
	Broker      string
	TopicPrefix string
	ClientID    string
}

// New builds the sink selected by cfg.Transport.
func New(cfg Config, c *client.Client, log *logger.Logger) (Sink, error) {
	switch strings.ToLower(cfg.Transport) {
	case "", TransportHTTP:
		return NewHTTP(c, cfg.Supervisor), nil
	case TransportMQTT:
		return DialMQTT(cfg, log)
	default:
		return nil, errors.New().WithData(ErrUnknownTransport, cfg.Transport)
	}
}

type HTTPSink struct {
	client   *client.Client
	endpoint string
}

func NewHTTP(c *client.Client, endpoint string) *HTTPSink {
	return &HTTPSink{client: c, endpoint: endpoint}
}

func (s *HTTPSink) Send(ctx context.Context, r sensor.Reading) error {
	return s.client.SendSensorData(ctx, s.endpoint, r)
}

func (*HTTPSink) Close() error {
	return nil
}
