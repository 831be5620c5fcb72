// Package config loads the simulation configuration: a YAML file covering
// the full surface of spec.md §6, with `flag` overrides for process-level
// knobs — the same two-layer split the teacher uses for `network.json`
// plus `-broker`/`-tps` flags in producer/main.go.
package config

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full recognised parameter set of spec.md §6.
type Config struct {
	NBanks      int     `yaml:"n_banks"`
	NetworkType string  `yaml:"network_type"`
	ERProb      float64 `yaml:"er_prob"`
	Steps       int     `yaml:"steps"`

	InitLiquidityLo   float64 `yaml:"init_liquidity_lo"`
	InitLiquidityHi   float64 `yaml:"init_liquidity_hi"`
	InitCapitalLo     float64 `yaml:"init_capital_lo"`
	InitCapitalHi     float64 `yaml:"init_capital_hi"`
	InitLiquidBondLo  float64 `yaml:"init_liquid_bond_lo"`
	InitLiquidBondHi  float64 `yaml:"init_liquid_bond_hi"`
	InitIlliquidLo    float64 `yaml:"init_illiquid_lo"`
	InitIlliquidHi    float64 `yaml:"init_illiquid_hi"`

	StressThreshold   float64 `yaml:"stress_threshold"`
	MinLiquidity      float64 `yaml:"min_liquidity"`
	StepOperatingCost float64 `yaml:"step_operating_cost"`

	MarginCallThreshold float64 `yaml:"margin_call_threshold"`
	DefaultFundRate     float64 `yaml:"default_fund_rate"`

	CCPInitialDefaultFund float64 `yaml:"ccp_initial_default_fund"`
	CCPBaseMargin         float64 `yaml:"ccp_base_margin"`
	CCPMarginSensitivity  float64 `yaml:"ccp_margin_sensitivity"`
	CCPSafeMultiplier     float64 `yaml:"ccp_safe_multiplier"`
	CCPW1                 float64 `yaml:"ccp_w1"`
	CCPW2                 float64 `yaml:"ccp_w2"`
	CCPW3                 float64 `yaml:"ccp_w3"`
	CCPW4                 float64 `yaml:"ccp_w4"`

	BaseVolatility float64 `yaml:"base_volatility"`
	VolShockStep   int     `yaml:"vol_shock_step"`
	MarketDepth    float64 `yaml:"market_depth"`

	ShockStep      int     `yaml:"shock_step"`
	ShockIntensity float64 `yaml:"shock_intensity"`
	ShockFraction  float64 `yaml:"shock_fraction"`

	Seed int64 `yaml:"seed"`
}

// Default returns the baseline configuration used when no file is supplied,
// matching the magnitudes implied by spec.md's end-to-end scenarios (§8).
func Default() Config {
	return Config{
		NBanks:      10,
		NetworkType: "erdos_renyi",
		ERProb:      0.3,
		Steps:       50,

		InitLiquidityLo:  60,
		InitLiquidityHi:  150,
		InitCapitalLo:    30,
		InitCapitalHi:    80,
		InitLiquidBondLo: 10,
		InitLiquidBondHi: 40,
		InitIlliquidLo:   0,
		InitIlliquidHi:   20,

		StressThreshold:   50,
		MinLiquidity:      10,
		StepOperatingCost: 0.5,

		MarginCallThreshold: 0.5,
		DefaultFundRate:     0.02,

		CCPInitialDefaultFund: 200,
		CCPBaseMargin:         0.05,
		CCPMarginSensitivity:  0.3,
		CCPSafeMultiplier:     3.0,
		CCPW1:                 0.4,
		CCPW2:                 0.3,
		CCPW3:                 0.2,
		CCPW4:                 0.1,

		BaseVolatility: 0.12,
		VolShockStep:   0,
		MarketDepth:    100,

		ShockStep:      0,
		ShockIntensity: 0,
		ShockFraction:  0,

		Seed: 1,
	}
}

// Load reads a YAML config file over the defaults. An empty path returns
// the defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// FlagSet registers the process-level override flags onto fs and returns
// a function that applies them onto cfg after fs.Parse.
func FlagSet(fs *flag.FlagSet, cfg *Config) (configPath *string, apply func()) {
	path := fs.String("config", "", "path to a simulation.yaml config file")
	seed := fs.Int64("seed", 0, "override the configured random seed (0 = use config)")
	steps := fs.Int("steps", 0, "override the configured tick count (0 = use config)")

	apply = func() {
		if *seed != 0 {
			cfg.Seed = *seed
		}
		if *steps != 0 {
			cfg.Steps = *steps
		}
	}
	return path, apply
}

// Validate rejects configs the scheduler cannot run (spec.md invariants
// implicitly assume a positive population and at least one tick).
func (c Config) Validate() error {
	if c.NBanks <= 0 {
		return fmt.Errorf("config: n_banks must be positive, got %d", c.NBanks)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Steps)
	}
	sum := c.CCPW1 + c.CCPW2 + c.CCPW3 + c.CCPW4
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: ccp_w1..w4 must sum to 1, got %.4f", sum)
	}
	return nil
}
