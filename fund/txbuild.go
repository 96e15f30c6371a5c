package fund

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcwallet/wallet/txrules"
	"github.com/lightningnetwork/lnroute/lnrouteerrors"
)

// DefaultLargeChannelLimit is the channel-capacity ceiling beyond which a
// peer must advertise large-channel ("wumbo") support, matching lnd's own
// option_support_large_channel gate.
const DefaultLargeChannelLimit = 16_777_215 // 0.16777215 BTC in sats

// RelayFeeRate is the feerate txrules uses to compute the dust threshold
// for a given output script, following the default relay policy.
const RelayFeeRate = txrules.DefaultRelayFeePerKb

// placeholderScript derives a unique, deterministic P2WSH placeholder
// script for a destination during dry-run prepare (section 4.7 step 3):
// hash the peer id so that two dry-run outputs are never accidentally
// identical, without needing a real funding script yet.
func placeholderScript(peerID [33]byte) ([]byte, error) {
	h := sha256.Sum256(peerID[:])
	return txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[:]).
		Script()
}

// validateDestinations checks the structural preconditions of section
// 4.7 step 1 that don't depend on a peer's feature bits: non-empty, at
// most one "all", duplicate peers rejected. The amount-vs-large-channel
// exception depends on each peer's advertised support, which isn't known
// until after connect (step 2), so that check lives in validateAmounts
// instead of here.
func validateDestinations(dests []*Destination) error {
	if len(dests) == 0 {
		return lnrouteerrors.NewParamError("multifundchannel requires at least one destination")
	}

	seen := make(map[[33]byte]struct{}, len(dests))
	allCount := 0

	for _, d := range dests {
		if d.IsAll {
			allCount++
		}
		if _, dup := seen[d.PeerID]; dup {
			return lnrouteerrors.NewParamError("duplicate destination peer %x", d.PeerID)
		}
		seen[d.PeerID] = struct{}{}
	}

	if allCount > 1 {
		return lnrouteerrors.NewParamError("at most one destination may use the \"all\" amount")
	}

	return nil
}

// validateAmounts checks, for every non-"all" destination, that its
// amount clears the dust limit and either stays under largeChannelLimit
// or is backed by a peer that advertised large-channel support. Run
// after connectAll has populated each destination's Features, since the
// large-channel exception is otherwise unreachable (section 4.7 step 1's
// "unless the peer supports large channels"). largeChannelLimit is
// normally config.RouterConfig.LargeChannelLimit, injected by the caller.
func validateAmounts(dests []*Destination, largeChannelLimit int64) error {
	for _, d := range dests {
		if d.IsAll {
			continue
		}

		if dustThreshold := txrules.GetDustThreshold(p2wshDummyLen, RelayFeeRate); int64(d.Amount) < int64(dustThreshold) {
			return &lnrouteerrors.RPCError{
				Code:    lnrouteerrors.CodeDust,
				Kind:    lnrouteerrors.KindParam,
				Message: "destination amount is below the dust limit",
			}
		}

		if int64(d.Amount) > largeChannelLimit && !d.Features.SupportsLargeChannels {
			return &lnrouteerrors.RPCError{
				Code:    lnrouteerrors.CodeExceedsMaxFunding,
				Kind:    lnrouteerrors.KindParam,
				Message: "destination amount exceeds the large-channel limit and peer does not support large channels",
			}
		}
	}

	return nil
}

// p2wshDummyLen is the serialized size of a standard P2WSH output
// script, used only to size the dust-threshold calculation.
const p2wshDummyLen = 34

// buildOutputs constructs the wire.TxOut list for dests, using
// scriptFor to resolve each destination's current output script (the
// placeholder script pre-funding-start, the real funding script
// thereafter).
func buildOutputs(dests []*Destination, scriptFor func(*Destination) ([]byte, error)) ([]*wire.TxOut, error) {
	outputs := make([]*wire.TxOut, 0, len(dests))
	for _, d := range dests {
		script, err := scriptFor(d)
		if err != nil {
			return nil, err
		}

		amt := d.Amount
		if d.IsAll {
			// Dry-run placeholder value; txprepare resolves the
			// real "all" amount for us once this output is the
			// lone remainder of available funds. The orchestrator
			// fills in the real amount once the wallet tells us
			// the output's value.
			amt = 0
		}

		outputs = append(outputs, &wire.TxOut{
			Value:    int64(amt),
			PkScript: script,
		})
	}
	return outputs, nil
}
