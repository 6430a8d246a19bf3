// Package events publishes round lifecycle events for external
// observers. Emission is non-critical: the runner logs failures and
// keeps going.
package events

import (
	"context"
	"time"
)

// RoundEvent describes one round's lifecycle transition.
type RoundEvent struct {
	RunID        string    `json:"run_id"`
	Round        int       `json:"round"`
	Strategy     string    `json:"strategy"`
	Participants []int     `json:"participants,omitempty"`
	Loss         float64   `json:"loss,omitempty"`
	Error        string    `json:"error,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// RunEvent describes a completed simulation run.
type RunEvent struct {
	RunID     string    `json:"run_id"`
	Strategy  string    `json:"strategy"`
	NumRounds int       `json:"num_rounds"`
	FinalLoss float64   `json:"final_loss,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Emitter interface {
	EmitRoundStarted(ctx context.Context, event RoundEvent) error
	EmitRoundCompleted(ctx context.Context, event RoundEvent) error
	EmitRoundFailed(ctx context.Context, event RoundEvent) error
	EmitRunCompleted(ctx context.Context, event RunEvent) error
}

// NoopEmitter drops every event. Used when event publishing is
// disabled.
type NoopEmitter struct{}

func NewNoopEmitter() Emitter { return &NoopEmitter{} }

func (e *NoopEmitter) EmitRoundStarted(ctx context.Context, event RoundEvent) error   { return nil }
func (e *NoopEmitter) EmitRoundCompleted(ctx context.Context, event RoundEvent) error { return nil }
func (e *NoopEmitter) EmitRoundFailed(ctx context.Context, event RoundEvent) error    { return nil }
func (e *NoopEmitter) EmitRunCompleted(ctx context.Context, event RunEvent) error     { return nil }
