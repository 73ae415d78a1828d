package stream

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrUnknownTransport = errors.ErrorCode("stream_unknown_transport")
	ErrConnectBroker    = errors.ErrorCode("stream_connect_broker_failed")
	ErrPublish          = errors.ErrorCode("stream_publish_failed")
	ErrEncodeReading    = errors.ErrorCode("stream_encode_reading_failed")
)
