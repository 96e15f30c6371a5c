package fund

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
	"github.com/davecgh/go-spew/spew"
	"github.com/go-errors/errors"
	"github.com/lightningnetwork/lnroute/config"
	"github.com/lightningnetwork/lnroute/lnrouteerrors"
	"github.com/lightningnetwork/lnroute/routing"
	"github.com/lightningnetwork/lnroute/spark"
)

// Orchestrator drives the multi-destination funding pipeline of section
// 4.7: connect, dry-run prepare, per-peer funding-start, real-output
// prepare, per-peer funding-complete, mark done, broadcast, and cleanup.
type Orchestrator struct {
	peers  PeerClient
	wallet Wallet

	largeChannelLimit int64
}

// NewOrchestrator returns an Orchestrator driving peers and wallet, using
// DefaultLargeChannelLimit as the large-channel ceiling.
func NewOrchestrator(peers PeerClient, wallet Wallet) *Orchestrator {
	return &Orchestrator{
		peers:             peers,
		wallet:            wallet,
		largeChannelLimit: DefaultLargeChannelLimit,
	}
}

// NewOrchestratorWithConfig returns an Orchestrator driving peers and
// wallet, with its large-channel ceiling injected from cfg instead of the
// package default.
func NewOrchestratorWithConfig(peers PeerClient, wallet Wallet, cfg *config.RouterConfig) *Orchestrator {
	return &Orchestrator{
		peers:             peers,
		wallet:            wallet,
		largeChannelLimit: cfg.LargeChannelLimit,
	}
}

// Run executes cmd end to end, returning the broadcast result on
// success. Cleanup always runs before Run returns, whether the command
// succeeds or fails (section 4.7's cleanup step, section 8's atomicity
// property).
func (o *Orchestrator) Run(ctx context.Context, cmd *Command) (*Result, error) {
	sc := spark.NewCommand(ctx)
	defer sc.Finish()

	result, runErr := o.run(sc, cmd)

	o.cleanup(sc, cmd)

	return result, runErr
}

func (o *Orchestrator) run(sc *spark.Command, cmd *Command) (*Result, error) {
	// Step 1: validate the structural preconditions.
	if err := validateDestinations(cmd.Destinations); err != nil {
		return nil, err
	}

	// Step 2: connect to all peers in parallel. This is what populates
	// each destination's Features, so the large-channel exception below
	// can only be evaluated once this has run.
	if err := o.connectAll(sc, cmd); err != nil {
		return nil, err
	}

	// Step 2b: validate amounts now that peer features are known.
	if err := validateAmounts(cmd.Destinations, o.largeChannelLimit); err != nil {
		return nil, err
	}

	// Step 3: dry-run prepare, resolving "all".
	if err := o.dryRunPrepare(sc.Context(), cmd); err != nil {
		return nil, err
	}

	// Step 4: per-destination funding-start in parallel.
	if err := o.fundingStartAll(sc, cmd); err != nil {
		return nil, err
	}

	// Step 5: rebuild the transaction with real funding outputs.
	if err := o.realPrepare(sc.Context(), cmd); err != nil {
		return nil, err
	}

	// Step 6: per-destination funding-complete in parallel.
	if err := o.fundingCompleteAll(sc, cmd); err != nil {
		return nil, err
	}

	// Step 7: mark all destinations done before broadcasting, since a
	// broadcast failure is ambiguous.
	for _, d := range cmd.Destinations {
		d.State = Done
	}

	tx, txid, err := o.wallet.TxSend(sc.Context(), *cmd.CurrentTxid)
	if err != nil {
		// Ambiguous: the tx may already be in some mempool. Treated
		// as success for state-machine purposes; destinations stay
		// Done, but the caller still sees the error.
		return nil, lnrouteerrors.NewAmbiguousBroadcast("broadcast failed ambiguously: %v", err)
	}

	cmd.FinalTx = tx
	cmd.FinalTxid = &txid
	cmd.CurrentTxid = nil

	channelIDs := make([]uint64, len(cmd.Destinations))
	for i, d := range cmd.Destinations {
		channelIDs[i] = d.ChannelID
	}

	return &Result{Tx: tx, Txid: txid, ChannelIDs: channelIDs}, nil
}

// connectAll issues one batch Connect call for every destination's peer
// (it starts no sparks; the PeerClient connects to the peers in
// parallel), then maps the resulting features back onto each destination.
func (o *Orchestrator) connectAll(sc *spark.Command, cmd *Command) error {
	ids := make([]routing.Vertex, len(cmd.Destinations))
	for i, d := range cmd.Destinations {
		ids[i] = d.PeerID
	}

	features, err := o.peers.Connect(sc.Context(), ids)
	if err != nil {
		return lnrouteerrors.NewProtocolFailure("connect", "unable to connect to peers: %v", err)
	}

	for _, d := range cmd.Destinations {
		f, ok := features[d.PeerID]
		if !ok {
			return lnrouteerrors.NewProtocolFailure("connect", "peer %v did not respond to connect", d.PeerID)
		}
		d.Features = f
	}

	return nil
}

// dryRunPrepare builds a transaction paying each destination a unique
// placeholder script, reserving UTXOs and (for a destination carrying
// the "all" amount) resolving it from the placeholder output's value.
func (o *Orchestrator) dryRunPrepare(ctx context.Context, cmd *Command) error {
	outputs, err := buildOutputs(cmd.Destinations, func(d *Destination) ([]byte, error) {
		return placeholderScript(d.PeerID)
	})
	if err != nil {
		return err
	}

	txid, tx, err := o.wallet.TxPrepare(ctx, outputs, cmd.FeeRate, cmd.MinConf, cmd.Utxos)
	if err != nil {
		return lnrouteerrors.NewParamError("dry-run txprepare failed: %v", err)
	}
	cmd.CurrentTxid = &txid

	for i, d := range cmd.Destinations {
		if d.IsAll {
			d.Amount = btcutil.Amount(tx.TxOut[i].Value)
		}
	}

	log.Debugf("dry-run prepare: %s", spew.Sdump(tx))

	return nil
}

// fundingStartAll runs fundchannel_start in parallel for every
// destination. Per section 4.7 step 4, a failure does not abort
// immediately: every spark runs to completion, and only then is the
// first failure surfaced.
func (o *Orchestrator) fundingStartAll(sc *spark.Command, cmd *Command) error {
	return spark.Fanout(sc, len(cmd.Destinations), func(ctx context.Context, i int) error {
		d := cmd.Destinations[i]

		addr, script, err := o.peers.FundChannelStart(
			ctx, d.PeerID, d.Amount, cmd.FeeRate, d.Announce, d.PushMsat,
		)
		if err != nil {
			d.State = StartFailed
			d.Err = err
			return lnrouteerrors.NewProtocolFailure("fundchannel_start", "peer %v refused funding start: %v", d.PeerID, err)
		}

		d.FundingAddress = addr
		d.FundingScript = script
		d.State = Started
		return nil
	})
}

// realPrepare discards the dry-run transaction and prepares a new one
// with the same inputs and the real funding outputs, matching each
// destination to its resulting output index by scriptPubKey.
func (o *Orchestrator) realPrepare(ctx context.Context, cmd *Command) error {
	if cmd.CurrentTxid != nil {
		if err := o.wallet.TxDiscard(ctx, *cmd.CurrentTxid); err != nil {
			return lnrouteerrors.NewParamError("unable to discard dry-run tx: %v", err)
		}
		cmd.CurrentTxid = nil
	}

	outputs, err := buildOutputs(cmd.Destinations, func(d *Destination) ([]byte, error) {
		return d.FundingScript, nil
	})
	if err != nil {
		return err
	}
	for i, d := range cmd.Destinations {
		outputs[i].Value = int64(d.Amount)
	}

	txid, tx, err := o.wallet.TxPrepare(ctx, outputs, cmd.FeeRate, cmd.MinConf, cmd.Utxos)
	if err != nil {
		return lnrouteerrors.NewParamError("real txprepare failed: %v", err)
	}
	cmd.CurrentTxid = &txid

	for _, d := range cmd.Destinations {
		idx, ok := findOutputIndex(tx, d.FundingScript)
		if !ok {
			return errors.New("unable to locate funding output for destination " + d.PeerID.String())
		}
		d.Outnum = idx
	}

	return nil
}

// fundingCompleteAll runs fundchannel_complete in parallel for every
// started destination, using the same wait-for-all-then-surface-first
// policy as funding-start.
func (o *Orchestrator) fundingCompleteAll(sc *spark.Command, cmd *Command) error {
	return spark.Fanout(sc, len(cmd.Destinations), func(ctx context.Context, i int) error {
		d := cmd.Destinations[i]
		if d.State != Started {
			return nil
		}

		chanID, err := o.peers.FundChannelComplete(ctx, d.PeerID, *cmd.CurrentTxid, d.Outnum)
		if err != nil {
			d.State = CompleteFailed
			d.Err = err
			return lnrouteerrors.NewProtocolFailure("fundchannel_complete", "peer %v refused funding complete: %v", d.PeerID, err)
		}

		d.ChannelID = chanID
		return nil
	})
}

func findOutputIndex(tx *wire.MsgTx, script []byte) (uint32, bool) {
	for i, out := range tx.TxOut {
		if string(out.PkScript) == string(script) {
			return uint32(i), true
		}
	}
	return 0, false
}
