// Package config holds the process-wide configuration established at
// startup, standing in for the teacher's global chainparams pointer
// (section 9).
package config

import "time"

// RouterConfig is established once at process startup. It is
// intentionally immutable after construction; nothing in this module
// mutates it once the process is running. routing.NewCosterFromConfig
// reads SampleAmount and RiskFactor, and fund.NewOrchestratorWithConfig
// reads LargeChannelLimit; the accelerator package does not take a
// RouterConfig.
type RouterConfig struct {
	// SampleAmount and RiskFactor seed the default Coster used by both
	// the DHC refresher and every pathfinding call.
	SampleAmount uint64
	RiskFactor   float64

	// DeferTime holds a delay between a new block and a DHC refresh.
	// routing.Refresher does not read it; NewRefresher uses
	// routing.DefaultDeferTime.
	DeferTime time.Duration

	// LargeChannelLimit is the channel-capacity ceiling beyond which a
	// destination peer must advertise large-channel support.
	LargeChannelLimit int64

	// DefaultAggression holds a fee-acceleration aggression.
	// accelerator.NewLoop does not read it; a zero aggression there
	// selects accelerator.DefaultAggression.
	DefaultAggression float64
}

// Default returns the package defaults named throughout the spec:
// 1 mBTC sample amount, 10% annual risk factor, a 10s defer time, lnd's
// large-channel limit, and 10% acceleration aggression.
func Default() *RouterConfig {
	return &RouterConfig{
		SampleAmount:      100_000_000,
		RiskFactor:        10.0,
		DeferTime:         10 * time.Second,
		LargeChannelLimit: 16_777_215,
		DefaultAggression: 0.10,
	}
}
