// Package graphsink defines the interface an optional graph-database
// persistence layer would satisfy (spec.md §6: out of scope, but the
// interface is defined). No implementation ships with this module; NoopSink
// is the default.
package graphsink

import "context"

// Node labels and relationship types a real sink must accept (spec.md §6).
const (
	LabelSimRun = "SimRun"
	LabelBank   = "Bank"
	LabelCCP    = "CCP"
	LabelTick   = "Tick"
	LabelIntent = "Intent"

	RelHasBank      = "HAS_BANK"
	RelHasCCP       = "HAS_CCP"
	RelHasTick      = "HAS_TICK"
	RelStateAt      = "STATE_AT"
	RelEmitted      = "EMITTED"
	RelDefaultedAt  = "DEFAULTED_AT"
	RelMarginCall   = "MARGIN_CALL"
	RelConnectedTo  = "CONNECTED_TO"
	RelAtTick       = "AT_TICK"
)

// Sink persists a completed run's graph. Duplicate intent ids are rejected
// by the sink without aborting the simulation (spec.md §7 error kind 5).
type Sink interface {
	RecordRun(ctx context.Context, runID string, nBanks int) error
	RecordBank(ctx context.Context, runID, bankID string, neighbors []string) error
	RecordTick(ctx context.Context, runID string, tick int) error
	RecordIntent(ctx context.Context, runID string, intentID, agentID, actionType string, tick int) error
	RecordDefault(ctx context.Context, runID, bankID string, tick int) error
	RecordMarginCall(ctx context.Context, runID, bankID string, tick int, amount float64) error
	Close(ctx context.Context) error
}

// NoopSink discards everything; it is the default sink when no graph
// database is configured.
type NoopSink struct{}

func (NoopSink) RecordRun(context.Context, string, int) error                       { return nil }
func (NoopSink) RecordBank(context.Context, string, string, []string) error         { return nil }
func (NoopSink) RecordTick(context.Context, string, int) error                      { return nil }
func (NoopSink) RecordIntent(context.Context, string, string, string, string, int) error {
	return nil
}
func (NoopSink) RecordDefault(context.Context, string, string, int) error            { return nil }
func (NoopSink) RecordMarginCall(context.Context, string, string, int, float64) error { return nil }
func (NoopSink) Close(context.Context) error                                         { return nil }
