package routing

import (
	"sync"
	"sync/atomic"
)

// maxDistance is the largest representable distance, encoded in 31 bits
// per section 3's node data model.
const maxDistance uint32 = (1 << 31) - 1

// distSlot is one of a node's two distance-cache slots: a 31-bit distance
// paired with a reachability flag.
type distSlot struct {
	distance  uint32
	reachable bool
}

// newNodeSlot returns the slot pair a newly-created node carries before
// its first refresh: (reachable=true, distance=max) in both slots, so a
// never-yet-refreshed node never appears unreachable.
func newNodeSlot() [2]distSlot {
	s := distSlot{distance: maxDistance, reachable: true}
	return [2]distSlot{s, s}
}

// DHC is the differential-heuristic distance cache: a per-node two-slot
// distance array with a single writer-selector bit, flipped atomically by
// the refresher once a full Dijkstra pass completes. Readers always read
// the slot opposite the current writer slot, so a reader captured before
// a flip continues to observe a stable, fully-written snapshot even while
// a new refresh is in progress.
type DHC struct {
	mu sync.RWMutex

	// slots holds each node's two distance-cache entries.
	slots map[Vertex]*[2]distSlot

	// writerSlot is 0 or 1, flipped atomically by flip().
	writerSlot uint32

	// availableFlag is set once the first refresh completes and never
	// cleared again, per section 4.2's contract.
	availableFlag uint32

	// landmark is the node every distance in this cache is measured
	// from -- the local node.
	landmark Vertex
}

// NewDHC returns an empty DHC for the given landmark node.
func NewDHC(landmark Vertex) *DHC {
	return &DHC{
		slots:    make(map[Vertex]*[2]distSlot),
		landmark: landmark,
	}
}

// Landmark returns the node every distance in this cache is relative to.
func (d *DHC) Landmark() Vertex { return d.landmark }

// Available reports whether at least one refresh has completed.
func (d *DHC) Available() bool {
	return atomic.LoadUint32(&d.availableFlag) == 1
}

// Flip atomically swaps the writer and reader roles. Every reader or
// writer handle captured before the flip is invalidated: readers keep
// whatever slot index they captured, so they continue to observe the
// pre-flip data (section 8, double-buffer isolation) until the first
// refresh pass that starts after the next Flip writes into that slot
// again. Any *new* Reader() call afterwards observes the freshly-written
// slot.
func (d *DHC) Flip() {
	d.mu.Lock()
	defer d.mu.Unlock()

	next := 1 - atomic.LoadUint32(&d.writerSlot)
	atomic.StoreUint32(&d.writerSlot, next)
	atomic.StoreUint32(&d.availableFlag, 1)
}

// slotFor returns (creating if necessary) the two-slot pair for node.
func (d *DHC) slotFor(node Vertex) *[2]distSlot {
	d.mu.Lock()
	defer d.mu.Unlock()

	pair, ok := d.slots[node]
	if !ok {
		s := newNodeSlot()
		pair = &s
		d.slots[node] = pair
	}
	return pair
}

// writerIndex returns the current writer slot index (0 or 1).
func (d *DHC) writerIndex() int {
	return int(atomic.LoadUint32(&d.writerSlot))
}

// readerIndex returns the current reader slot index: the complement of
// the writer's.
func (d *DHC) readerIndex() int {
	return 1 - d.writerIndex()
}

// Reader captures the current reader slot and precomputes the
// landmark-distance of goal, per section 4.2. Precondition: Available().
func (d *DHC) Reader(goal Vertex) *DHCReader {
	idx := d.readerIndex()

	goalPair := d.slotFor(goal)
	d.mu.RLock()
	goalSlot := goalPair[idx]
	d.mu.RUnlock()

	return &DHCReader{
		dhc:         d,
		slotIdx:     idx,
		goal:        goal,
		goalReach:   goalSlot.reachable,
		goalDist:    goalSlot.distance,
	}
}

// DHCReader is a snapshot of the DHC's reader slot, captured at a
// particular goal. It is invalidated (stale, but never unsafe to read)
// by any subsequent Flip. It serves the distances observed at capture
// time until a refresh writes into its captured slot: the first refresh
// pass that starts after the next Flip.
type DHCReader struct {
	dhc       *DHC
	slotIdx   int
	goal      Vertex
	goalReach bool
	goalDist  uint32
}

// Reachable reports whether node was marked reachable as of this
// reader's capture.
func (r *DHCReader) Reachable(node Vertex) bool {
	pair := r.dhc.slotFor(node)
	r.dhc.mu.RLock()
	defer r.dhc.mu.RUnlock()
	return pair[r.slotIdx].reachable
}

// Distance returns the differential-heuristic distance |d(node,L) -
// d(goal,L)|, per section 4.2.
func (r *DHCReader) Distance(node Vertex) uint32 {
	pair := r.dhc.slotFor(node)
	r.dhc.mu.RLock()
	d := pair[r.slotIdx].distance
	r.dhc.mu.RUnlock()

	if d > r.goalDist {
		return d - r.goalDist
	}
	return r.goalDist - d
}

// DHCWriter captures the current writer slot for use by the refresher.
// Only one writer should be active at a time; the refresher enforces
// this by never starting a second refresh process concurrently.
type DHCWriter struct {
	dhc     *DHC
	slotIdx int
}

// Writer captures the current writer slot.
func (d *DHC) Writer() *DHCWriter {
	return &DHCWriter{dhc: d, slotIdx: d.writerIndex()}
}

// ClearAll sets every node currently known to graph to the writer-slot's
// pre-refresh state: unreachable, distance=max. A node first touched
// later in the same refresh is created by slotFor with newNodeSlot's
// defaults instead: reachable, distance=max.
func (w *DHCWriter) ClearAll(graph Graph) error {
	return graph.ForEachNode(func(v Vertex) error {
		pair := w.dhc.slotFor(v)
		w.dhc.mu.Lock()
		pair[w.slotIdx] = distSlot{distance: maxDistance, reachable: false}
		w.dhc.mu.Unlock()
		return nil
	})
}

// Visited reports whether node has been visited in the current writer
// slot's pass.
func (w *DHCWriter) Visited(node Vertex) bool {
	pair := w.dhc.slotFor(node)
	w.dhc.mu.RLock()
	defer w.dhc.mu.RUnlock()
	return pair[w.slotIdx].reachable
}

// MarkVisited marks node reachable in the writer slot.
func (w *DHCWriter) MarkVisited(node Vertex) {
	pair := w.dhc.slotFor(node)
	w.dhc.mu.Lock()
	pair[w.slotIdx].reachable = true
	w.dhc.mu.Unlock()
}

// Distance returns node's current writer-slot distance.
func (w *DHCWriter) Distance(node Vertex) uint32 {
	pair := w.dhc.slotFor(node)
	w.dhc.mu.RLock()
	defer w.dhc.mu.RUnlock()
	return pair[w.slotIdx].distance
}

// SetDistance sets node's writer-slot distance, clamped to maxDistance.
func (w *DHCWriter) SetDistance(node Vertex, d uint32) {
	if d > maxDistance {
		d = maxDistance
	}
	pair := w.dhc.slotFor(node)
	w.dhc.mu.Lock()
	pair[w.slotIdx].distance = d
	w.dhc.mu.Unlock()
}
