package routing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// buildChainGraph constructs the four-node chain A->B->C->D of section 8
// scenario 3, plus an alternate node F bridging A and C.
func buildChainGraph() (g *memGraph, a, b, c, d, f Vertex) {
	g = newMemGraph()
	a, b, c, d, f = vertex(1), vertex(2), vertex(3), vertex(4), vertex(5)

	g.addChannel(100, a, b, 1, 0, 40, 0, 0)
	g.addChannel(101, b, c, 1, 0, 40, 0, 0)
	g.addChannel(102, c, d, 1, 0, 40, 0, 0)

	// The alternate bridge used to splice around a failing B.
	g.addChannel(200, a, f, 1, 0, 40, 0, 0)
	g.addChannel(201, f, c, 1, 0, 40, 0, 0)

	return g, a, b, c, d, f
}

func buildChainRoute(g *memGraph, a, b, c, d Vertex) *Route {
	finder := NewRouteFinder(g, nil, &Coster{SampleAmount: 1, RiskFactor: 0})
	route, err := finder.FindRoute(a, d, 1000, 0, nil)
	if err != nil {
		panic(err)
	}
	return route
}

// TestPermuteNodeFailureSplicesAlternate is section 8 scenario 3: route
// [A->B, B->C, C->D], node B fails at erring_index=1. The repair must
// splice A->F->C in place of A->B->C, preserving the C->D suffix.
func TestPermuteNodeFailureSplicesAlternate(t *testing.T) {
	g, a, b, c, d, f := buildChainGraph()
	route := buildChainRoute(g, a, b, c, d)
	require.Len(t, route.Hops, 3)

	// erring_index=1 identifies the B->C hop; node_failure=true means B
	// itself (the node preceding that hop) is gone.
	repaired, err := Permute(g, route, 1, true, a, nil, nil)
	require.NoError(t, err)

	require.Len(t, repaired.Hops, 3)
	require.Equal(t, f, repaired.Hops[0].NextNode)
	require.Equal(t, c, repaired.Hops[1].NextNode)
	require.Equal(t, d, repaired.Hops[2].NextNode)

	// B must not appear anywhere in the repaired route.
	for _, hop := range repaired.Hops {
		require.NotEqual(t, b, hop.NextNode)
	}
}

// TestPermuteChannelFailureKeepsEndpoints exercises a pure channel
// failure (node_failure=false): the node at erring_index is still
// considered usable as a splice endpoint, only the failing channel
// itself is avoided via excludeChans.
func TestPermuteChannelFailureKeepsEndpoints(t *testing.T) {
	g, a, b, c, d, _ := buildChainGraph()
	route := buildChainRoute(g, a, b, c, d)

	excludeChans := map[uint64]struct{}{101: {}}
	repaired, err := Permute(g, route, 1, false, a, nil, excludeChans)

	// No alternate A-bridge to C avoiding channel 101 and node B exists
	// in this graph topology without traversing B, so the only way
	// around is through F; but a pure channel failure still treats B as
	// a valid splice endpoint, and no route from B to C other than the
	// banned channel 101 exists, so repair must fail here.
	require.ErrorIs(t, err, ErrNoAlternate)
	require.Nil(t, repaired)
}

// buildChannelFailureGraph constructs the same A->B->C->D chain as
// buildChainGraph, but bridges B and C through F instead of A and C, so
// a channel failure on the B->C hop (as opposed to a node failure) has
// an alternate to splice through.
func buildChannelFailureGraph() (g *memGraph, a, b, c, d, f Vertex) {
	g = newMemGraph()
	a, b, c, d, f = vertex(1), vertex(2), vertex(3), vertex(4), vertex(5)

	g.addChannel(100, a, b, 1, 0, 40, 0, 0)
	g.addChannel(101, b, c, 1, 0, 40, 0, 0)
	g.addChannel(102, c, d, 1, 0, 40, 0, 0)

	// The alternate bridge used to splice around the failing B->C
	// channel, one hop later than buildChainGraph's A->F->C bridge.
	g.addChannel(103, b, f, 1, 0, 40, 0, 0) // chanBF
	g.addChannel(104, f, c, 1, 0, 40, 0, 0) // chanFC

	return g, a, b, c, d, f
}

// TestPermuteChannelFailureSplicesAlternate is section 8 scenario 3:
// route [A->B, B->C, C->D], a pure channel failure (node_failure=false)
// on the B->C hop at erring_index=1. The repair must splice B->F->C in
// place of the failing B->C channel, producing the four-hop route
// [A->B, B->F, F->C, C->D] and preserving both endpoints.
func TestPermuteChannelFailureSplicesAlternate(t *testing.T) {
	g, a, b, c, d, f := buildChannelFailureGraph()
	route := buildChainRoute(g, a, b, c, d)
	require.Len(t, route.Hops, 3)

	repaired, err := Permute(g, route, 1, false, a, nil, nil)
	require.NoError(t, err)

	require.Len(t, repaired.Hops, 4)
	require.Equal(t, b, repaired.Hops[0].NextNode)
	require.Equal(t, f, repaired.Hops[1].NextNode)
	require.Equal(t, c, repaired.Hops[2].NextNode)
	require.Equal(t, d, repaired.Hops[3].NextNode)

	// The failing B->C channel (101) must not appear in the repair.
	for _, hop := range repaired.Hops {
		require.NotEqual(t, uint64(101), hop.Channel.ChannelID)
	}

	// The repair splice property of section 8: every hop's forwarded
	// amount upstream of (and including) the splice must be able to
	// cover the downstream amount plus fees, so amounts never decrease
	// moving from source to destination.
	for i := 1; i < len(repaired.Hops); i++ {
		require.GreaterOrEqual(t,
			repaired.Hops[i-1].AmountToForward,
			repaired.Hops[i].AmountToForward,
		)
	}
}

// TestPermuteRejectsOutOfRangeIndex guards the bounds-checking invariant.
func TestPermuteRejectsOutOfRangeIndex(t *testing.T) {
	g, a, b, c, d, _ := buildChainGraph()
	route := buildChainRoute(g, a, b, c, d)

	_, err := Permute(g, route, 5, false, a, nil, nil)
	require.Error(t, err)
}

// TestPermutePreservesAmountMonotonicity checks that after a node-failure
// repair the forwarded amounts never increase from one hop to the next,
// moving from source to destination.
func TestPermutePreservesAmountMonotonicity(t *testing.T) {
	g, a, b, c, d, _ := buildChainGraph()
	route := buildChainRoute(g, a, b, c, d)

	repaired, err := Permute(g, route, 1, true, a, nil, nil)
	require.NoError(t, err)

	for i := 1; i < len(repaired.Hops); i++ {
		require.GreaterOrEqual(t,
			repaired.Hops[i-1].AmountToForward,
			repaired.Hops[i].AmountToForward,
		)
	}
}
