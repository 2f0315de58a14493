package stream

import "errors"

var (
	// ErrStreamRejected means the stream service refused or never answered
	// the request. No chunk has been delivered when it is returned.
	ErrStreamRejected = errors.New("stream rejected")
	// ErrStreamInterrupted means the transport failed after the stream opened.
	ErrStreamInterrupted = errors.New("stream interrupted")
	// ErrMissingCredential is returned when no bearer credential is available.
	ErrMissingCredential = errors.New("missing credential")
)
