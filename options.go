package raft

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Options collects every configuration knob a Node needs: id (override
// identity), uuid (identity generator if no id given),
// minElectionTimeout, maxElectionTimeout, heartbeatInterval, and
// persistence (backend handle) -- plus the ambient logging/metrics/
// observer wiring.
type Options struct {
	// ID overrides the generated identity. Optional.
	ID string

	// IDGen mints an identity when ID is empty. Defaults to
	// DefaultIDGenerator (github.com/google/uuid).
	IDGen IDGenerator

	MinElectionTimeout time.Duration
	MaxElectionTimeout time.Duration
	HeartbeatInterval  time.Duration

	// Persistence is the durable backend; required.
	Persistence Backend

	// Observer, if set, receives OnApplied/OnError events.
	Observer Observer

	// Logger, if set, receives structured diagnostic output. Defaults to
	// a no-op logger.
	Logger *zap.Logger

	// Registerer, if set, receives this node's prometheus collectors.
	Registerer prometheus.Registerer
}

const (
	defaultMinElectionTimeout = 150 * time.Millisecond
	defaultMaxElectionTimeout = 300 * time.Millisecond
	defaultHeartbeatInterval  = 50 * time.Millisecond
)

func (o Options) withDefaults() Options {
	if o.IDGen == nil {
		o.IDGen = DefaultIDGenerator
	}
	if o.MinElectionTimeout == 0 {
		o.MinElectionTimeout = defaultMinElectionTimeout
	}
	if o.MaxElectionTimeout == 0 {
		o.MaxElectionTimeout = defaultMaxElectionTimeout
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = defaultHeartbeatInterval
	}
	if o.Observer == nil {
		o.Observer = noopObserver{}
	}
	return o
}

// validate enforces ErrConfig-worthy constraints, detected at first use
// (Node construction) rather than eagerly at every field assignment.
func (o Options) validate() error {
	if o.MaxElectionTimeout < o.MinElectionTimeout {
		return &ErrConfig{Reason: "maxElectionTimeout must be >= minElectionTimeout"}
	}
	if o.HeartbeatInterval >= o.MinElectionTimeout {
		return &ErrConfig{Reason: "heartbeatInterval must be strictly less than minElectionTimeout"}
	}
	if o.Persistence == nil {
		return &ErrConfig{Reason: "persistence backend is required"}
	}
	return nil
}
