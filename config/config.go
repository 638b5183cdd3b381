// Package config holds the simulator's external interface parameters
// (spec.md §6): agent population counts and rates, strategy parameters,
// and the run's maximum logical time. The interactive parameter-prompt CLI
// itself is out of scope; this package only validates the flags
// cmd/simulate parses with pflag.
package config

import "fmt"

// Params collects every external-interface parameter spec.md §6 lists.
type Params struct {
	NRandom         int
	RandomRate      float64
	Sigma           float64
	NMarketMaker    int
	MarketMakerRate float64
	Spread          float64
	NMomentum       int
	MomentumRate    float64
	Threshold       float64
	MaxTime         float64
}

// Default mirrors the reference's compiled-in defaults: spread 0.02,
// threshold 0.005, as spec.md §6 states, expressed here in cents
// (Spread 2, Threshold 0.5) like every other price parameter.
func Default() Params {
	return Params{
		NRandom:         10,
		RandomRate:      1,
		Sigma:           50,
		NMarketMaker:    2,
		MarketMakerRate: 1,
		Spread:          2,
		NMomentum:       2,
		MomentumRate:    1,
		Threshold:       0.5,
		MaxTime:         10_000,
	}
}

// maxTimeCeiling is spec.md §6's hard cap on max_time.
const maxTimeCeiling = 1e9

// Validate checks every field against spec.md §6's External Interfaces
// constraints: non-negative counts, positive rates, max_time <= 1e9.
func (p Params) Validate() error {
	if p.NRandom < 0 || p.NMarketMaker < 0 || p.NMomentum < 0 {
		return fmt.Errorf("config: agent counts must be non-negative")
	}
	if p.NRandom > 0 && p.RandomRate <= 0 {
		return fmt.Errorf("config: random-rate must be positive")
	}
	if p.NMarketMaker > 0 && p.MarketMakerRate <= 0 {
		return fmt.Errorf("config: market-maker-rate must be positive")
	}
	if p.NMomentum > 0 && p.MomentumRate <= 0 {
		return fmt.Errorf("config: momentum-rate must be positive")
	}
	if p.MaxTime <= 0 || p.MaxTime > maxTimeCeiling {
		return fmt.Errorf("config: max-time must be in (0, %g]", maxTimeCeiling)
	}
	if p.Sigma < 0 {
		return fmt.Errorf("config: sigma must be non-negative")
	}
	if p.Spread <= 0 {
		return fmt.Errorf("config: spread must be positive")
	}
	if p.Threshold <= 0 {
		return fmt.Errorf("config: threshold must be positive")
	}
	return nil
}

// NAgents is the total agent population across all three strategy classes.
func (p Params) NAgents() int {
	return p.NRandom + p.NMarketMaker + p.NMomentum
}
