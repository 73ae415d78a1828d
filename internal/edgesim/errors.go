package edgesim

import "codeberg.org/mutker/edgebench/internal/errors"

const (
	ErrServerStart    = errors.ErrorCode("edgesim_server_start_failed")
	ErrServerShutdown = errors.ErrorCode("edgesim_server_shutdown_failed")
	ErrInvalidPeer    = errors.ErrorCode("edgesim_invalid_peer")
)
