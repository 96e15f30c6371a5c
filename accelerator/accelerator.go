// Package accelerator implements the fee acceleration loop of section
// 2/9: a retrying fee-bumping driver that scales its aggression across
// attempts and gates re-wake on block-height advances.
package accelerator

import (
	"context"
	"errors"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btclog"
	"github.com/lightningnetwork/lnd/clock"
)

var log = btclog.Disabled

// UseLogger sets the package-wide logger.
func UseLogger(logger btclog.Logger) {
	log = logger
}

// ErrIDNotFound is returned by Estimator.Execute when the
// transaction this accelerator was tracking has already confirmed or
// otherwise left the backend's tracking set. Per scenario 5, this is
// treated as success.
var ErrIDNotFound = errors.New("ID_NOT_FOUND")

// Estimate is the result of a fee estimation pass.
type Estimate struct {
	TotalFee uint64
	MaxFee   uint64
}

// ExecuteResult is the result of one acceleration attempt.
type ExecuteResult struct {
	DeltaFee uint64
}

// Estimator is the out-of-scope accelerator back-end named in section 6:
// `txaccelerate_start`/`txaccelerate_execute`.
type Estimator interface {
	// EstimateStart begins tracking txid for acceleration, returning an
	// opaque id plus the initial fee estimate.
	EstimateStart(ctx context.Context, txid chainhash.Hash) (accID string, est Estimate, err error)

	// Execute bumps the fee by paying totalFee in aggregate, returning
	// the resulting delta. Returns ErrIDNotFound if the tracked
	// transaction already confirmed.
	Execute(ctx context.Context, accID string, totalFee uint64) (ExecuteResult, error)
}

// ChainBackend is the out-of-scope chain-watching collaborator named in
// section 6.
type ChainBackend interface {
	// WaitBlockHeight blocks until height is reached or timeout elapses.
	WaitBlockHeight(ctx context.Context, height uint32, timeout time.Duration) error
}

// DefaultAggression is the default per-attempt aggression, expressed as
// a fraction of the gap between the current total fee and the caller's
// maximum acceptable fee.
const DefaultAggression = 0.10

// WaitBlockHeightCeiling bounds how long a single waitblockheight call
// may block before the loop re-evaluates, per section 5.
const WaitBlockHeightCeiling = 60 * time.Second

// Loop drives one txaccelerate command to completion: it re-estimates,
// executes an escalating fee bump, and waits for the next block height
// before trying again, until a child of the original transaction
// confirms.
type Loop struct {
	estimator Estimator
	chain     ChainBackend
	clock     clock.Clock

	txid          chainhash.Hash
	maxFee        uint64
	aggression    float64
	attempt       int
	accID         string
}

// NewLoop returns a Loop for txid, bumping fees up to maxFeeSat with the
// given aggression (0 selects DefaultAggression).
func NewLoop(estimator Estimator, chain ChainBackend, txid chainhash.Hash,
	maxFeeSat uint64, aggression float64) *Loop {

	if aggression == 0 {
		aggression = DefaultAggression
	}

	return &Loop{
		estimator:  estimator,
		chain:      chain,
		clock:      clock.NewDefaultClock(),
		txid:       txid,
		maxFee:     maxFeeSat,
		aggression: aggression,
	}
}

// Run executes the acceleration loop until the tracked transaction
// confirms (success) or an unrecoverable error occurs. currentHeight is
// the chain tip as of the call; the loop waits for height+1 between
// attempts.
func (l *Loop) Run(ctx context.Context, currentHeight uint32) error {
	accID, est, err := l.estimator.EstimateStart(ctx, l.txid)
	if err != nil {
		return err
	}
	l.accID = accID

	height := currentHeight

	for {
		l.attempt++

		target := bumpTarget(est.TotalFee, l.maxFee, l.aggression)
		if target > est.MaxFee && est.MaxFee > 0 {
			target = est.MaxFee
		}

		res, err := l.estimator.Execute(ctx, l.accID, target)
		switch {
		case errors.Is(err, ErrIDNotFound):
			log.Infof("txaccelerate: tracked tx %v already confirmed", l.txid)
			return nil
		case err != nil:
			return err
		default:
			log.Debugf("txaccelerate: attempt %d bumped fee by %d sat",
				l.attempt, res.DeltaFee)
		}

		height++
		if err := l.chain.WaitBlockHeight(ctx, height, WaitBlockHeightCeiling); err != nil {
			return err
		}

		// Re-estimate, per the open question decided in DESIGN.md:
		// call the estimator again, update our fee fields, then
		// re-enter the loop.
		_, newEst, err := l.estimator.EstimateStart(ctx, l.txid)
		if err != nil {
			return err
		}
		est = newEst
	}
}

// bumpTarget computes the next attempt's total fee target, scaling
// aggression across the gap between the current estimate and the
// caller's ceiling (scenario 5: total=1000, max=10000, aggression=10% ->
// target=1900).
func bumpTarget(totalFee, maxFee uint64, aggression float64) uint64 {
	if maxFee <= totalFee {
		return maxFee
	}
	gap := float64(maxFee - totalFee)
	return totalFee + uint64(gap*aggression)
}
