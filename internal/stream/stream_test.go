package stream_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"codeberg.org/mutker/edgebench/internal/client"
	apperrors "codeberg.org/mutker/edgebench/internal/errors"
	"codeberg.org/mutker/edgebench/internal/logger"
	"codeberg.org/mutker/edgebench/internal/sensor"
	"codeberg.org/mutker/edgebench/internal/stream"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type doneToken struct {
	err  error
	done chan struct{}
}

func newDoneToken(err error) *doneToken {
	t := &doneToken{err: err, done: make(chan struct{})}
	close(t.done)
	return t
}

func (t *doneToken) Wait() bool                     { return true }
func (t *doneToken) WaitTimeout(time.Duration) bool { return true }
func (t *doneToken) Done() <-chan struct{}          { return t.done }
func (t *doneToken) Error() error                   { return t.err }

type fakeMQTT struct {
	mqtt.Client
	topics   []string
	payloads [][]byte
	err      error
	closed   bool
}

func (f *fakeMQTT) Publish(topic string, _ byte, _ bool, payload interface{}) mqtt.Token {
	f.topics = append(f.topics, topic)
	f.payloads = append(f.payloads, payload.([]byte))
	return newDoneToken(f.err)
}

func (f *fakeMQTT) Disconnect(uint) {
	f.closed = true
}

func TestMQTTSinkPublishesPerLocation(t *testing.T) {
	fake := &fakeMQTT{}
	sink := stream.NewMQTT(fake, "lab/sensors")

	r := sensor.Reading{Location: sensor.Kitchen, Temperature: 24.5, Timestamp: time.Now()}
	require.NoError(t, sink.Send(context.Background(), r))
	require.NoError(t, sink.Close())

	assert.Equal(t, []string{"lab/sensors/kitchen"}, fake.topics)
	var got sensor.Reading
	require.NoError(t, json.Unmarshal(fake.payloads[0], &got))
	assert.Equal(t, 24.5, got.Temperature)
	assert.True(t, fake.closed)
}

func TestMQTTSinkPublishError(t *testing.T) {
	fake := &fakeMQTT{err: errors.New("not connected")}
	sink := stream.NewMQTT(fake, "")

	err := sink.Send(context.Background(), sensor.Reading{Location: sensor.Office})
	assert.True(t, apperrors.HasCode(err, stream.ErrPublish))
	assert.Equal(t, "edgebench/sensors/office", fake.topics[0])
}

func TestHTTPSink(t *testing.T) {
	var got sensor.Reading
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, client.PathSensorData, r.URL.Path)
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	sink, err := stream.New(stream.Config{Transport: "http", Supervisor: srv.URL}, client.New(), logger.Nop())
	require.NoError(t, err)

	require.NoError(t, sink.Send(context.Background(), sensor.Reading{Location: sensor.Hallway, Humidity: 41}))
	assert.Equal(t, sensor.Hallway, got.Location)
	assert.Equal(t, 41.0, got.Humidity)
}

func TestUnknownTransport(t *testing.T) {
	_, err := stream.New(stream.Config{Transport: "carrier-pigeon"}, client.New(), logger.Nop())
	assert.True(t, apperrors.HasCode(err, stream.ErrUnknownTransport))
}
