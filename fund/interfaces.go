package fund

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnroute/routing"
)

// PeerClient is the out-of-scope peer-connection manager / channel
// protocol collaborator named in section 6.
type PeerClient interface {
	// Connect opens a connection to every id in parallel, returning
	// each peer's feature bits.
	Connect(ctx context.Context, ids []routing.Vertex) (map[routing.Vertex]PeerFeatures, error)

	// FundChannelStart begins a channel open with id, returning the
	// funding address and scriptPubKey the peer wants paid.
	FundChannelStart(ctx context.Context, id routing.Vertex, amt btcutil.Amount,
		feerate FeeRateSpec, announce bool, pushMsat routing.MilliSatoshi) (btcutil.Address, []byte, error)

	// FundChannelComplete finalizes the channel open once the real
	// funding transaction's outpoint is known, returning the resulting
	// channel id.
	FundChannelComplete(ctx context.Context, id routing.Vertex, txid chainhash.Hash,
		outnum uint32) (uint64, error)

	// FundChannelCancel aborts an in-progress channel open.
	FundChannelCancel(ctx context.Context, id routing.Vertex) error
}

// Wallet is the out-of-scope on-chain wallet / UTXO reservation
// collaborator named in section 6.
type Wallet interface {
	// TxPrepare reserves utxos and builds an unsigned transaction paying
	// outputs, returning its txid and body. Used for both the dry-run
	// placeholder transaction and the final real-output transaction.
	TxPrepare(ctx context.Context, outputs []*wire.TxOut, feerate FeeRateSpec,
		minconf int32, utxos []wire.OutPoint) (chainhash.Hash, *wire.MsgTx, error)

	// TxSend broadcasts a previously prepared transaction.
	TxSend(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, chainhash.Hash, error)

	// TxDiscard releases a previously prepared transaction's UTXO
	// reservation without broadcasting it.
	TxDiscard(ctx context.Context, txid chainhash.Hash) error
}

// WaitBlockHeightTimeout is the ceiling the accelerator (and, in
// principle, any caller) should use for a waitblockheight call, per
// section 5's backpressure note.
const WaitBlockHeightTimeout = 60 * time.Second
