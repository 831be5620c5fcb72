// Package exchange implements the market data process and the
// market-impact sale-pricing engine (spec.md §4.3).
package exchange

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strconv"

	"github.com/paynet/interbank-ccp/internal/fabric"
	"github.com/paynet/interbank-ccp/internal/intent"
)

// Snapshot is the market state mirrored at market:latest each tick.
type Snapshot struct {
	Volatility         float64
	PriceChangeSignal  float64
}

// Config holds the exchange's tunable parameters (spec.md §6).
type Config struct {
	BaseVolatility float64
	ShockStep      int // vol_shock_step; 0 disables
	MarketDepth    float64
}

// Exchange owns the volatility process and pricing engine.
type Exchange struct {
	cfg   Config
	rng   *rand.Rand
	latest Snapshot
}

// New constructs an exchange seeded independently of the bank/network RNGs
// (spec.md §6: seed governs "the network, volatility noise, price signal,
// and all bank-level random choices" — each stream gets a derived seed so a
// fixed top-level seed reproduces every substream identically).
func New(cfg Config, seed int64) *Exchange {
	return &Exchange{
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(seed)),
		latest: Snapshot{Volatility: cfg.BaseVolatility},
	}
}

// Step advances the volatility/price process by one tick and publishes the
// result as a public update_market_data intent, mirroring market:latest
// (spec.md §4.3 paragraph 1).
func (e *Exchange) Step(ctx context.Context, store fabric.Store, tick int) (intent.Envelope, error) {
	noise := e.rng.NormFloat64() * 0.02
	vol := e.latest.Volatility + (e.cfg.BaseVolatility-e.latest.Volatility)*0.3 + noise
	if tick == e.cfg.ShockStep && e.cfg.ShockStep != 0 {
		vol += 0.25
	}
	vol = clamp(vol, 0.05, 0.80)

	priceChange := clamp(-0.01+e.rng.NormFloat64()*0.03, -0.15, 0.15)

	e.latest = Snapshot{Volatility: vol, PriceChangeSignal: priceChange}

	env := intent.New(tick, "exchange", intent.ActionUpdateMarketData, intent.Public, intent.Payload{
		"new_volatility":       vol,
		"price_change_signal":  priceChange,
	})
	if err := fabric.Publish(ctx, store, env); err != nil {
		return env, err
	}
	if err := store.HashSet(ctx, fabric.MarketLatestKey(), map[string]float64{
		"volatility":          vol,
		"price_change_signal": priceChange,
	}); err != nil {
		return env, fmt.Errorf("exchange: mirror market:latest: %w", err)
	}
	return env, nil
}

// Latest returns the most recently computed snapshot.
func (e *Exchange) Latest() Snapshot { return e.latest }

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// SaleKind distinguishes a standard sale from a fire sale for pricing
// purposes (spec.md §4.3 step 1 and 4 differ by kind).
type SaleKind int

const (
	SaleStandard SaleKind = iota
	SaleFire
)

// Price computes the executed unit price for selling q units of asset a at
// tick t with prevailing volatility v (spec.md §4.3 steps 1-6). The
// cumulative-volume increment is applied atomically and after the pressure
// read, so a second concurrent seller observes the first's volume
// (spec.md's causal-ordering requirement and invariant I6).
func Price(ctx context.Context, store fabric.Store, kind SaleKind, tick int, asset string, q, volatility, depth float64) (float64, error) {
	var baseDiscount float64
	var ki, kp float64
	if kind == SaleFire {
		baseDiscount = math.Min(0.45, 0.10+0.4*volatility)
		ki, kp = 0.15, 0.05
	} else {
		baseDiscount = math.Min(0.20, 0.05+0.3*volatility)
		ki, kp = 0.08, 0.02
	}
	basePrice := 1 - baseDiscount

	cBefore, err := cumulativeVolume(ctx, store, tick, asset)
	if err != nil {
		return 0, err
	}
	pressure, err := recentPressure(ctx, store, tick, asset)
	if err != nil {
		return 0, err
	}

	if depth <= 0 {
		depth = 1
	}
	instantaneous := ki * math.Sqrt((cBefore+q)/depth)
	persistent := kp * math.Sqrt(pressure/(3*depth))
	totalImpact := math.Min(0.50, instantaneous+persistent)

	price := math.Max(0.05, basePrice*(1-totalImpact))

	key := fabric.SalesKey(tick, asset)
	if _, err := store.IncrFloat(ctx, key, q); err != nil {
		return 0, fmt.Errorf("exchange: increment sale volume: %w", err)
	}
	if err := store.Expire(ctx, key, fabric.SalesKeyTTL); err != nil {
		return 0, fmt.Errorf("exchange: set sale volume ttl: %w", err)
	}

	return price, nil
}

func cumulativeVolume(ctx context.Context, store fabric.Store, tick int, asset string) (float64, error) {
	v, ok, err := store.StringGet(ctx, fabric.SalesKey(tick, asset))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("exchange: parse sale volume %q: %w", v, err)
	}
	return f, nil
}

// recentPressure sums sales:{t-2..t}:{a}, lookback 3 ticks including current.
func recentPressure(ctx context.Context, store fabric.Store, tick int, asset string) (float64, error) {
	var total float64
	for lag := 0; lag < 3; lag++ {
		t := tick - lag
		if t < 0 {
			continue
		}
		v, err := cumulativeVolume(ctx, store, t, asset)
		if err != nil {
			return 0, err
		}
		total += v
	}
	return total, nil
}
