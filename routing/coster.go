package routing

import "github.com/lightningnetwork/lnroute/config"

// blocksPerYear is the nominal number of blocks mined per year, used to
// annualize the risk-factor component of a channel's cost.
const blocksPerYear = 52596

// DefaultSampleAmount is the default probe amount used to evaluate
// proportional fees when no specific payment amount is in play (the DHC
// refresher has no payment to route, only a landmark distance to
// compute).
const DefaultSampleAmount = MilliSatoshi(100_000_000) // 1 mBTC

// DefaultRiskFactor is the default annualized risk-factor, expressed as a
// percentage per annum (10 == 10% per annum).
const DefaultRiskFactor = 10.0

// Coster computes the cost of traversing a half-channel for a fixed
// sample amount and risk preference. The refresher and every pathfinder
// share the same Coster so that the DHC's precomputed distances and a
// live best-first search measure cost on the same metric -- a
// precondition for the differential heuristic to stay admissible.
type Coster struct {
	// SampleAmount is the amount, in msat, used to evaluate proportional
	// fees when computing a channel's cost.
	SampleAmount MilliSatoshi

	// RiskFactor is the annualized preference for trading lockup time
	// against fees, expressed as a percentage per annum (10 == 10%).
	RiskFactor float64
}

// NewCoster returns a Coster configured with the package defaults.
func NewCoster() *Coster {
	return &Coster{
		SampleAmount: DefaultSampleAmount,
		RiskFactor:   DefaultRiskFactor,
	}
}

// NewCosterFromConfig returns a Coster seeded from cfg's SampleAmount and
// RiskFactor, the injection point a live deployment uses in place of the
// package defaults above.
func NewCosterFromConfig(cfg *config.RouterConfig) *Coster {
	return &Coster{
		SampleAmount: MilliSatoshi(cfg.SampleAmount),
		RiskFactor:   cfg.RiskFactor,
	}
}

// Cost returns the cost, in msat, of forwarding the coster's sample
// amount across channel. This is the same cost function used both by
// the refresher (to populate the DHC) and by any pathfinder consuming
// the DHC as a heuristic, so the two stay consistent.
func (c *Coster) Cost(channel *ChannelEdge) uint64 {
	feeCost := uint64(channel.BaseFee) + ceilDiv(
		uint64(c.SampleAmount)*uint64(channel.FeeRate), 1_000_000,
	)

	riskCost := uint64(c.RiskFactor * float64(uint64(c.SampleAmount)*uint64(channel.CLTVDelta)) / float64(blocksPerYear*100))

	return feeCost + riskCost
}

// ceilDiv returns ceil(a/b) for non-negative integers.
func ceilDiv(a, b uint64) uint64 {
	if b == 0 {
		return 0
	}
	return (a + b - 1) / b
}
