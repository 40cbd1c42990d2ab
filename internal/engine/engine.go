// Package engine connects to an optional local playback engine that pushes
// playback events, so state can be observed without polling.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/tessro/cassette/internal/core"
)

// Status is the lifecycle of a push source.
type Status int

const (
	StatusUnavailable Status = iota
	StatusPending
	StatusReady
	StatusStreaming
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusReady:
		return "ready"
	case StatusStreaming:
		return "streaming"
	default:
		return "unavailable"
	}
}

// EventKind identifies what a push source is reporting.
type EventKind int

const (
	// EventReady carries the device ID the engine registered as.
	EventReady EventKind = iota
	// EventNotReady means the engine stopped being the playback device.
	EventNotReady
	// EventStateChanged carries a playback observation.
	EventStateChanged
	// EventInitializationError means the engine could not be reached or set up.
	EventInitializationError
	// EventAuthenticationError means the engine rejected its credentials.
	EventAuthenticationError
	// EventAccountError means the account cannot use the engine (for example,
	// it lacks a premium subscription).
	EventAccountError
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventNotReady:
		return "not_ready"
	case EventStateChanged:
		return "state_changed"
	case EventInitializationError:
		return "initialization_error"
	case EventAuthenticationError:
		return "authentication_error"
	case EventAccountError:
		return "account_error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// IsFailure reports whether the event ends the source's usefulness.
func (k EventKind) IsFailure() bool {
	return k == EventInitializationError || k == EventAuthenticationError || k == EventAccountError
}

// Event is one message from a push source.
type Event struct {
	Kind     EventKind
	DeviceID string      // EventReady
	Update   core.Update // EventStateChanged
	Err      error       // failure events
}

// ErrUnavailable is returned by Start on a source that is not configured.
var ErrUnavailable = errors.New("playback engine unavailable")

// Source is a push-based playback event producer.
type Source interface {
	// Available reports whether the source was detected at startup.
	Available() bool
	Status() Status
	// DeviceID is the device the engine registered as, once ready.
	DeviceID() string
	// Start connects and streams events until ctx is done or the source
	// fails. The channel is closed when streaming ends.
	Start(ctx context.Context) (<-chan Event, error)
	Close() error
}

// Unavailable is the Source used when no engine is configured.
type Unavailable struct{}

func (Unavailable) Available() bool  { return false }
func (Unavailable) Status() Status   { return StatusUnavailable }
func (Unavailable) DeviceID() string { return "" }
func (Unavailable) Close() error     { return nil }

func (Unavailable) Start(context.Context) (<-chan Event, error) {
	return nil, ErrUnavailable
}

// Options configures detection.
type Options struct {
	Enabled bool
	URL     string
}

// Detect chooses the push source once at startup.
func Detect(opts Options, libOpts ...LibrespotOption) Source {
	if !opts.Enabled || opts.URL == "" {
		return Unavailable{}
	}
	return NewLibrespot(opts.URL, libOpts...)
}
