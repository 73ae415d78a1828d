package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/sensor"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultTopicPrefix = "edgebench/sensors"
	connectTimeout     = 10 * time.Second
	publishTimeout     = 5 * time.Second
	disconnectQuiesce  = 250
	publishQoS         = 0
)

type MQTTSink struct {
	client mqtt.Client
	prefix string
}

// DialMQTT connects to cfg.Broker and returns a sink publishing readings
// to <prefix>/<location>.
func DialMQTT(cfg Config, log *logger.Logger) (*MQTTSink, error) {
	errFactory := errors.New()

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("edgebench-%d", time.Now().UnixNano())
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(clientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Str("broker", cfg.Broker).Msg("MQTT connection lost")
	})

	c := mqtt.NewClient(opts)
	token := c.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errFactory.WithData(ErrConnectBroker, cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, errFactory.Wrap(ErrConnectBroker, err)
	}

	log.Info().Str("broker", cfg.Broker).Str("client_id", clientID).Msg("Connected to MQTT broker")

	return NewMQTT(c, cfg.TopicPrefix), nil
}

// NewMQTT wraps a connected client.
func NewMQTT(c mqtt.Client, prefix string) *MQTTSink {
	if prefix == "" {
		prefix = defaultTopicPrefix
	}
	return &MQTTSink{client: c, prefix: prefix}
}

func (s *MQTTSink) Topic(location string) string {
	return s.prefix + "/" + location
}

func (s *MQTTSink) Send(ctx context.Context, r sensor.Reading) error {
	errFactory := errors.New()

	payload, err := json.Marshal(r)
	if err != nil {
		return errFactory.Wrap(ErrEncodeReading, err)
	}

	token := s.client.Publish(s.Topic(r.Location), publishQoS, false, payload)

	select {
	case <-token.Done():
	case <-ctx.Done():
		return errFactory.Wrap(ErrPublish, ctx.Err())
	case <-time.After(publishTimeout):
		return errFactory.WithData(ErrPublish, "timeout")
	}

	if err := token.Error(); err != nil {
		return errFactory.Wrap(ErrPublish, err)
	}
	return nil
}

func (s *MQTTSink) Close() error {
	s.client.Disconnect(disconnectQuiesce)
	return nil
}
