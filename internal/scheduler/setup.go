// Package scheduler owns the run setup and the fixed-order per-tick loop
// (spec.md §4.6). Grounded on the teacher's producer/main.go ticker-driven
// loop, generalized from "produce one message per tick" to "run one
// simulation tick".
package scheduler

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/paynet/interbank-ccp/internal/bank"
	"github.com/paynet/interbank-ccp/internal/ccp"
	"github.com/paynet/interbank-ccp/internal/config"
	"github.com/paynet/interbank-ccp/internal/eventbus"
	"github.com/paynet/interbank-ccp/internal/exchange"
	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/graphsink"
	"github.com/paynet/interbank-ccp/internal/metrics"
	"github.com/paynet/interbank-ccp/internal/network"
)

// Scheduler owns the single Simulation record (spec.md §9: "own a single
// Simulation record holding the fabric client, CCP, and bank list; every
// function takes this record explicitly — no process-wide mutable state").
type Scheduler struct {
	cfg      config.Config
	store    fabric.Store
	registry *bank.Registry
	ccp      *ccp.CCP
	exchange *exchange.Exchange
	metrics  *metrics.Registry
	sink     graphsink.Sink
	mirror   *eventbus.Mirror
	onTick   func(tick int)
	rng      *rand.Rand

	tick    int
	Summary Summary
}

// Summary accumulates the run-level report printed at the end (spec.md
// §4.6 "At end: report summary").
type Summary struct {
	TicksRun           int
	DefaultsTotal      int
	FreezeEvents       int
	PanicModeTicks     int
	FinalActiveBanks   int
	FinalTotalExposure float64
}

// Option configures optional collaborators the scheduler treats as external
// (spec.md §1: "out of scope... treated only as an external collaborator
// through the interfaces defined in §6").
type Option func(*Scheduler)

// WithGraphSink installs a graph-database persistence sink. Defaults to
// graphsink.NoopSink.
func WithGraphSink(sink graphsink.Sink) Option {
	return func(s *Scheduler) { s.sink = sink }
}

// WithEventBusMirror installs a Kafka analytics mirror of intents:queue.
// Defaults to nil (disabled).
func WithEventBusMirror(m *eventbus.Mirror) Option {
	return func(s *Scheduler) { s.mirror = m }
}

// WithTickObserver installs a callback invoked once per completed tick,
// for cmd/simulator to drive its ops.Server liveness reporting without the
// scheduler importing internal/ops directly. Defaults to nil (disabled).
func WithTickObserver(fn func(tick int)) Option {
	return func(s *Scheduler) { s.onTick = fn }
}

// WithStore overrides the default in-memory fabric store (e.g. with a
// Redis-backed fabric.RedisStore for a production deployment), wrapped in
// the same fabric-unavailable retry policy as the default store.
func WithStore(store fabric.Store) Option {
	return func(s *Scheduler) { s.store = fabric.NewResilientStore(store) }
}

// New performs the run setup of spec.md §4.6 "At setup": builds the
// interbank graph, instantiates banks and the CCP, clears the fabric, and
// writes the initial market depth.
func New(ctx context.Context, cfg config.Config, reg *metrics.Registry, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Scheduler{
		cfg:     cfg,
		store:   fabric.NewResilientStore(fabric.NewMemStore()),
		ccp:     ccp.New(cfg),
		metrics: reg,
		sink:    graphsink.NoopSink{},
		rng:     rand.New(rand.NewSource(cfg.Seed)),
	}
	for _, opt := range opts {
		opt(s)
	}

	graph, err := network.Build(network.Type(cfg.NetworkType), cfg.NBanks, cfg.ERProb, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("scheduler: build network: %w", err)
	}

	banks := make([]*bank.Bank, cfg.NBanks)
	for i := 0; i < cfg.NBanks; i++ {
		neighbors := graph.Neighbors(i)
		liquidity := uniform(s.rng, cfg.InitLiquidityLo, cfg.InitLiquidityHi)
		capital := uniform(s.rng, cfg.InitCapitalLo, cfg.InitCapitalHi)
		liquidBond := uniform(s.rng, cfg.InitLiquidBondLo, cfg.InitLiquidBondHi)
		illiquid := uniform(s.rng, cfg.InitIlliquidLo, cfg.InitIlliquidHi)
		banks[i] = bank.New(bank.IDFromIndex(i), i, liquidity, capital, liquidBond, illiquid, neighbors)
	}

	// Random initial bilateral exposures, uniform in [5, 30] (spec.md §4.6
	// "At setup"), one independent draw per directed edge.
	for i, b := range banks {
		for _, j := range graph.Neighbors(i) {
			b.Exposure[j] = uniform(s.rng, 5, 30)
		}
	}

	s.registry = bank.NewRegistry(banks)

	if err := s.store.Flush(ctx); err != nil {
		return nil, fmt.Errorf("scheduler: flush fabric: %w", err)
	}
	if err := s.store.StringSet(ctx, fabric.MarketDepthKey(), formatFloat(cfg.MarketDepth)); err != nil {
		return nil, fmt.Errorf("scheduler: write market depth: %w", err)
	}

	s.exchange = exchange.New(exchange.Config{
		BaseVolatility: cfg.BaseVolatility,
		ShockStep:      cfg.VolShockStep,
		MarketDepth:    cfg.MarketDepth,
	}, cfg.Seed+1)

	return s, nil
}

func uniform(rng *rand.Rand, lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Float64()*(hi-lo)
}
