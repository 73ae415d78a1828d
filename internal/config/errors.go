package config

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrInvalidIterations = errors.ErrorCode("config_invalid_iterations")
	ErrInvalidDuration   = errors.ErrorCode("config_invalid_duration")
	ErrInvalidThreshold  = errors.ErrorCode("config_invalid_load_threshold")
	ErrInvalidTransport  = errors.ErrorCode("config_invalid_sensor_transport")
	ErrMissingBroker     = errors.ErrorCode("config_missing_mqtt_broker")
	ErrMissingEndpoint   = errors.ErrorCode("config_missing_endpoint")
	ErrInvalidPeer       = errors.ErrorCode("config_invalid_peer")
)
