package mqtt

import "errors"

// Connection state.
var (
	// ErrNotConnected means the broker link is down. Sampling keeps running
	// and state publishes are dropped until paho reconnects.
	ErrNotConnected = errors.New("mqtt: broker link down")

	// ErrConnectionFailed means the first connect to the broker did not succeed.
	ErrConnectionFailed = errors.New("mqtt: connect failed")
)

// Broker round trips.
var (
	// ErrTimeout means the broker did not acknowledge a publish, subscribe or
	// unsubscribe in time.
	ErrTimeout = errors.New("mqtt: no acknowledgement from broker")

	// ErrRejected wraps an error reported by paho for a completed token.
	ErrRejected = errors.New("mqtt: request rejected")
)

// Argument checks, reported before anything is sent.
var (
	ErrInvalidTopic    = errors.New("mqtt: invalid topic")
	ErrInvalidQoS      = errors.New("mqtt: QoS must be 0, 1 or 2")
	ErrPayloadTooLarge = errors.New("mqtt: payload too large")
	ErrNilHandler      = errors.New("mqtt: nil message handler")
)
