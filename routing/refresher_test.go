package routing

import (
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/require"
)

// TestRefresherTerminates exercises the termination property of section 8:
// run() must eventually return done=true for any finite graph, regardless
// of how many times it yields for budget reasons.
func TestRefresherTerminates(t *testing.T) {
	graph, l, _, _, _ := buildScenarioGraph()
	dhc := NewDHC(l)
	coster := NewCoster()

	p := newRefreshProcess(graph, dhc, coster, clock.NewDefaultClock())
	runRefreshToCompletion(t, p)
	require.True(t, p.succeeded())
}

// TestRefresherFailsOnMissingLandmark asserts that a refresh whose
// landmark has vanished from the graph fails cleanly rather than
// panicking or looping forever (section 4.3's Init->Failed transition).
func TestRefresherFailsOnMissingLandmark(t *testing.T) {
	graph := newMemGraph()
	landmark := vertex(1)
	dhc := NewDHC(landmark)
	coster := NewCoster()

	p := newRefreshProcess(graph, dhc, coster, clock.NewDefaultClock())
	runRefreshToCompletion(t, p)
	require.False(t, p.succeeded())
}

// TestRefresherNeverLeavesLandmarkUnvisited checks that once a refresh
// completes, the writer slot has the landmark marked visited at distance
// zero -- the invariant that must hold throughout execution per section 8.
func TestRefresherNeverLeavesLandmarkUnvisited(t *testing.T) {
	graph, l, _, _, _ := buildScenarioGraph()
	dhc := NewDHC(l)
	coster := NewCoster()

	p := newRefreshProcess(graph, dhc, coster, clock.NewDefaultClock())
	runRefreshToCompletion(t, p)
	require.True(t, p.succeeded())

	require.True(t, p.writer.Visited(l))
	require.EqualValues(t, 0, p.writer.Distance(l))
}

// TestRefresherUnreachableNodeStaysMax verifies a node with no path from
// the landmark keeps the sentinel max distance and is never marked
// visited, per the unreachable-node edge case of section 3.
func TestRefresherUnreachableNodeStaysMax(t *testing.T) {
	graph, l, _, _, _ := buildScenarioGraph()
	isolated := vertex(99)
	graph.addNode(isolated)

	dhc := NewDHC(l)
	coster := NewCoster()

	p := newRefreshProcess(graph, dhc, coster, clock.NewDefaultClock())
	runRefreshToCompletion(t, p)
	require.True(t, p.succeeded())

	require.False(t, p.writer.Visited(isolated))
	require.Equal(t, maxDistance, p.writer.Distance(isolated))
}

// TestRefresherSchedulerFlipsOnSuccess drives the Refresher wrapper end
// to end, confirming ImmediateTrigger eventually flips the DHC and
// invokes the completion callback with the coster used.
func TestRefresherSchedulerFlipsOnSuccess(t *testing.T) {
	graph, l, _, _, _ := buildScenarioGraph()
	dhc := NewDHC(l)

	done := make(chan *Coster, 1)
	r := NewRefresher(graph, dhc, func(c *Coster) {
		done <- c
	})

	r.ImmediateTrigger()

	select {
	case c := <-done:
		require.NotNil(t, c)
	case <-time.After(2 * time.Second):
		t.Fatal("refresher did not complete in time")
	}

	require.True(t, dhc.Available())
}
