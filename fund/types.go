package fund

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnroute/routing"
)

// DestState is a fund destination's state, per section 3/4.7:
// not_started -> started -> done, or not_started -> start_failed, or
// started -> complete_failed. Cleanup moves a started destination it
// cancels to start_failed. A destination never transitions from done
// back to started.
type DestState int

const (
	NotStarted DestState = iota
	Started
	StartFailed
	CompleteFailed
	Done
)

func (s DestState) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case Started:
		return "started"
	case StartFailed:
		return "start_failed"
	case CompleteFailed:
		return "complete_failed"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// allAmountSentinel marks a destination as carrying the special "all"
// amount, resolved during dry-run prepare.
const allAmountSentinel = btcutil.Amount(-1)

// Destination is one target of a multifundchannel command, per section
// 3's Fund destination.
type Destination struct {
	PeerID   routing.Vertex
	Features PeerFeatures

	// Amount is the intended channel capacity. If IsAll is true, Amount
	// starts unresolved and is populated by the dry-run prepare step.
	Amount btcutil.Amount
	IsAll  bool

	Announce bool
	PushMsat routing.MilliSatoshi

	FundingScript  []byte
	FundingAddress btcutil.Address
	Outnum         uint32
	ChannelID      uint64

	State DestState

	// Err records the failure that drove this destination into
	// StartFailed or CompleteFailed, for diagnostics.
	Err error
}

// PeerFeatures is the subset of a peer's feature vector the orchestrator
// cares about.
type PeerFeatures struct {
	SupportsLargeChannels bool
	SupportsTLVOnion      bool
}

// FeeRateSpec is a caller-supplied feerate, in satoshis per kiloweight,
// or zero to let the wallet estimate.
type FeeRateSpec uint64

// Command is the ordered, stateful multifundchannel request of section
// 3's Fund command.
type Command struct {
	Destinations []*Destination
	FeeRate      FeeRateSpec
	MinConf      int32
	Utxos        []wire.OutPoint

	CurrentTxid *chainhash.Hash
	FinalTx     *wire.MsgTx
	FinalTxid   *chainhash.Hash
}

// Result is returned by Orchestrator.Run on success.
type Result struct {
	Tx         *wire.MsgTx
	Txid       chainhash.Hash
	ChannelIDs []uint64
}
