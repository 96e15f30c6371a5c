package routing

import (
	"time"

	"github.com/lightningnetwork/lnd/clock"
)

// refresherState is one of the refresh process's states, per section 4.3.
type refresherState int

const (
	stateInit refresherState = iota
	stateLoop
	stateCompleted
	stateFailed
)

const (
	// defaultIterationBudget is the number of Dijkstra pops the
	// refresher performs per wake before re-checking the time budget
	// (section 4.3's "K", nominally 16).
	defaultIterationBudget = 16

	// defaultWorkBudget is the wall-clock budget the refresher runs for
	// per wake before yielding back to the event loop.
	defaultWorkBudget = 10 * time.Millisecond

	// defaultYieldDelay is how long the refresher sleeps before its
	// next wake once the work budget is exceeded.
	defaultYieldDelay = 10 * time.Millisecond

	// DefaultDeferTime is how long deferred_trigger waits before
	// calling immediate_trigger, giving gossip time to catch up after a
	// new block.
	DefaultDeferTime = 10 * time.Second
)

// RefreshCallback is invoked once a refresh completes and the DHC has
// been flipped, carrying the coster that produced the new reader slot
// (section 4.3's "publish the completed coster as 'the coster'").
type RefreshCallback func(coster *Coster)

// refreshProcess drives one end-to-end cooperative Dijkstra pass from the
// landmark, rewriting the DHC's inactive (writer) slot.
type refreshProcess struct {
	graph  Graph
	dhc    *DHC
	coster *Coster
	clock  clock.Clock

	state   refresherState
	writer  *DHCWriter
	queue   *priorityQueue
	started time.Time
}

func newRefreshProcess(graph Graph, dhc *DHC, coster *Coster, c clock.Clock) *refreshProcess {
	return &refreshProcess{
		graph:  graph,
		dhc:    dhc,
		coster: coster,
		clock:  c,
		state:  stateInit,
	}
}

// run executes loop iterations until the work budget is exceeded or the
// process terminates, returning whether it is done (Completed or
// Failed) so the caller (Refresher) knows whether to reschedule a wake.
func (p *refreshProcess) run() (done bool) {
	p.started = p.clock.Now()

	if p.state == stateInit {
		if !p.init() {
			p.state = stateFailed
			return true
		}
		p.state = stateLoop
	}

	iterations := 0
	for p.state == stateLoop {
		if !p.step() {
			p.state = stateCompleted
			break
		}

		iterations++
		if iterations >= defaultIterationBudget {
			iterations = 0
			if p.clock.Now().Sub(p.started) >= defaultWorkBudget {
				return false
			}
		}
	}

	return true
}

// init locates the landmark, resets the writer slot, and seeds the
// queue, per section 4.3's Init state.
func (p *refreshProcess) init() bool {
	landmark := p.dhc.Landmark()
	if _, ok := p.graph.Node(landmark); !ok {
		log.Errorf("DHC refresh failed: landmark %v absent from graph",
			landmark)
		return false
	}

	p.writer = p.dhc.Writer()
	if err := p.writer.ClearAll(p.graph); err != nil {
		log.Errorf("DHC refresh failed clearing graph: %v", err)
		return false
	}

	p.writer.SetDistance(landmark, 0)
	p.writer.MarkVisited(landmark)

	p.queue = newPriorityQueue()
	p.queue.push(landmark, 0)

	return true
}

// step performs one pop-and-relax Dijkstra iteration. It returns false
// once the queue has drained (Completed).
func (p *refreshProcess) step() bool {
	node, priority, ok := p.queue.popMin()
	if !ok {
		return false
	}

	// Stale entry: the writer slot's current distance for this node is
	// now lower than the priority this entry was pushed at, so a better
	// path was already processed. Filtering here replaces decrease-key.
	if uint64(p.writer.Distance(node)) < priority {
		return true
	}

	if _, ok := p.graph.Node(node); !ok {
		// The graph forgot this node between our pop and now; skip it
		// rather than fail the whole refresh.
		return true
	}

	d := p.writer.Distance(node)

	for _, channel := range p.graph.Channels(node) {
		if !channel.Active {
			continue
		}

		m := channel.Destination()
		cost := p.coster.Cost(channel)

		newDist := d
		if uint64(d)+cost > uint64(maxDistance) {
			newDist = maxDistance
		} else {
			newDist = d + uint32(cost)
		}

		if !p.writer.Visited(m) || p.writer.Distance(m) > newDist {
			p.writer.MarkVisited(m)
			p.writer.SetDistance(m, newDist)
			p.queue.push(m, uint64(newDist))
		}
	}

	return true
}

// succeeded reports whether the process reached Completed (as opposed to
// Failed).
func (p *refreshProcess) succeeded() bool {
	return p.state == stateCompleted
}
