// Package config defines CoreConfig, the explicit struct a caller
// constructs and passes into an AgentController — no package-level
// singleton, no global mutable config, per the design notes' "shared
// mutable global config" guidance.
package config

import "time"

// CoreConfig carries the environment knobs the core cares about (spec §6).
// Loading these values from a config file, flags, or environment variables
// is the caller's responsibility; CoreConfig is merely the typed
// destination such a loader populates.
type CoreConfig struct {
	// SID is the session id; any string identifier, unique per active stream.
	SID string
	// MaxIterations bounds Iteration while the agent is RUNNING. Default 100.
	MaxIterations int
	// MaxBudgetPerTask bounds Metrics.Get(); nil means unlimited.
	MaxBudgetPerTask *float64
	// TickInterval is the step-loop cadence. Default 100ms.
	TickInterval time.Duration
}

// Default returns a CoreConfig with the spec's documented defaults and the
// given session id.
func Default(sid string) CoreConfig {
	return CoreConfig{
		SID:           sid,
		MaxIterations: 100,
		TickInterval:  100 * time.Millisecond,
	}
}
