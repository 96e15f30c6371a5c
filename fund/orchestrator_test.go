package fund

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnroute/routing"
	"github.com/lightningnetwork/lnroute/spark"
	"github.com/stretchr/testify/require"
)

// mockPeers is a PeerClient test double whose per-call behavior is
// configured per peer id, standing in for the out-of-scope channel
// protocol collaborator.
type mockPeers struct {
	mu sync.Mutex

	connectErr        error
	startErr          map[routing.Vertex]error
	completeErr       map[routing.Vertex]error
	cancelled         map[routing.Vertex]int
	nextChanID        uint64
}

func newMockPeers() *mockPeers {
	return &mockPeers{
		startErr:    make(map[routing.Vertex]error),
		completeErr: make(map[routing.Vertex]error),
		cancelled:   make(map[routing.Vertex]int),
		nextChanID:  1,
	}
}

func (p *mockPeers) Connect(ctx context.Context, ids []routing.Vertex) (map[routing.Vertex]PeerFeatures, error) {
	if p.connectErr != nil {
		return nil, p.connectErr
	}
	out := make(map[routing.Vertex]PeerFeatures, len(ids))
	for _, id := range ids {
		out[id] = PeerFeatures{}
	}
	return out, nil
}

func dummyScript(id routing.Vertex) []byte {
	h := id // reuse the node id's last 20 bytes as a unique script body
	s, _ := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(h[13:]).
		Script()
	return s
}

func (p *mockPeers) FundChannelStart(ctx context.Context, id routing.Vertex, amt btcutil.Amount,
	feerate FeeRateSpec, announce bool, pushMsat routing.MilliSatoshi) (btcutil.Address, []byte, error) {

	p.mu.Lock()
	err := p.startErr[id]
	p.mu.Unlock()
	if err != nil {
		return nil, nil, err
	}
	return nil, dummyScript(id), nil
}

func (p *mockPeers) FundChannelComplete(ctx context.Context, id routing.Vertex, txid chainhash.Hash,
	outnum uint32) (uint64, error) {

	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.completeErr[id]; err != nil {
		return 0, err
	}
	id2 := p.nextChanID
	p.nextChanID++
	return id2, nil
}

func (p *mockPeers) FundChannelCancel(ctx context.Context, id routing.Vertex) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled[id]++
	return nil
}

// mockWallet is a Wallet test double building a trivial transaction with
// one output per requested script, standing in for the out-of-scope
// on-chain wallet collaborator.
type mockWallet struct {
	mu          sync.Mutex
	prepareSeq  int
	discarded   map[chainhash.Hash]int
	sendErr     error
	allAmount   btcutil.Amount
}

func newMockWallet() *mockWallet {
	return &mockWallet{discarded: make(map[chainhash.Hash]int), allAmount: 50_000}
}

func (w *mockWallet) TxPrepare(ctx context.Context, outputs []*wire.TxOut, feerate FeeRateSpec,
	minconf int32, utxos []wire.OutPoint) (chainhash.Hash, *wire.MsgTx, error) {

	w.mu.Lock()
	w.prepareSeq++
	seq := w.prepareSeq
	w.mu.Unlock()

	tx := wire.NewMsgTx(2)
	for _, out := range outputs {
		o := *out
		if o.Value == 0 {
			o.Value = int64(w.allAmount)
		}
		tx.AddTxOut(&o)
	}

	var txid chainhash.Hash
	txid[0] = byte(seq)
	return txid, tx, nil
}

func (w *mockWallet) TxSend(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, chainhash.Hash, error) {
	if w.sendErr != nil {
		return nil, chainhash.Hash{}, w.sendErr
	}
	return wire.NewMsgTx(2), txid, nil
}

func (w *mockWallet) TxDiscard(ctx context.Context, txid chainhash.Hash) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.discarded[txid]++
	return nil
}

func twoDestinations() (p1, p2 routing.Vertex, cmd *Command) {
	p1, p2 = vertexN(1), vertexN(2)
	cmd = &Command{
		Destinations: []*Destination{
			{PeerID: p1, Amount: 10_000},
			{PeerID: p2, IsAll: true},
		},
		FeeRate: 253,
		MinConf: 1,
	}
	return p1, p2, cmd
}

func vertexN(b byte) routing.Vertex {
	var v routing.Vertex
	v[0] = 0x02
	v[32] = b
	return v
}

// TestOrchestratorHappyPath drives a full successful multifundchannel run
// and checks the resulting channel ids line up with the destinations in
// order.
func TestOrchestratorHappyPath(t *testing.T) {
	peers := newMockPeers()
	wallet := newMockWallet()
	orch := NewOrchestrator(peers, wallet)

	_, _, cmd := twoDestinations()

	result, err := orch.Run(context.Background(), cmd)
	require.NoError(t, err)
	require.Len(t, result.ChannelIDs, 2)

	for _, d := range cmd.Destinations {
		require.Equal(t, Done, d.State)
	}
}

// TestOrchestratorAtomicityOnCompleteFailure is section 8 scenario 4:
// multifundchannel([P1:10000sat, P2:"all"]) where P2's
// fundchannel_complete fails. The orchestrator must surface the error and
// leave no destination in the Started state once cleanup has run.
func TestOrchestratorAtomicityOnCompleteFailure(t *testing.T) {
	p1, p2, cmd := twoDestinations()

	peers := newMockPeers()
	peers.completeErr[p2] = errors.New("peer rejected funding_locked")
	wallet := newMockWallet()
	orch := NewOrchestrator(peers, wallet)

	result, err := orch.Run(context.Background(), cmd)
	require.Error(t, err)
	require.Nil(t, result)

	for _, d := range cmd.Destinations {
		require.NotEqual(t, Started, d.State)
	}

	// P1 succeeded at funding-complete before P2's failure aborted the
	// run, so cleanup must have cancelled it explicitly.
	require.Equal(t, 1, peers.cancelled[p1])
}

// TestOrchestratorCleanupIdempotent confirms running cleanup twice (as a
// defensive caller might) only cancels each started destination once.
func TestOrchestratorCleanupIdempotent(t *testing.T) {
	p1, _, cmd := twoDestinations()
	cmd.Destinations = cmd.Destinations[:1]

	peers := newMockPeers()
	peers.startErr[p1] = nil
	wallet := newMockWallet()
	orch := NewOrchestrator(peers, wallet)

	cmd.Destinations[0].State = Started

	sc := spark.NewCommand(context.Background())
	orch.cleanup(sc, cmd)
	orch.cleanup(sc, cmd)

	require.Equal(t, 1, peers.cancelled[p1])
}

// TestOrchestratorConnectFailureAborts confirms a connect-stage failure
// never reaches the funding-start stage at all.
func TestOrchestratorConnectFailureAborts(t *testing.T) {
	_, _, cmd := twoDestinations()

	peers := newMockPeers()
	peers.connectErr = errors.New("no route to peer")
	wallet := newMockWallet()
	orch := NewOrchestrator(peers, wallet)

	_, err := orch.Run(context.Background(), cmd)
	require.Error(t, err)

	for _, d := range cmd.Destinations {
		require.Equal(t, NotStarted, d.State)
	}
}
