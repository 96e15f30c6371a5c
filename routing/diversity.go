package routing

import (
	"sync"

	"github.com/lightningnetwork/lnd/queue"
	"golang.org/x/exp/slices"
)

// banEdge is one node of the diversity tree: the ban chain described in
// section 4.4/9 as a linked chain of (source,destination) edges with
// shared ownership. Every child holds a reference to its parent; an edge
// is destroyed only once every holder has released it, which may cascade
// up the chain.
type banEdge struct {
	src, dst Vertex
	parent   *banEdge
	refs     int32
}

// retain increments the ref count of e, called when a new child edge is
// created under e: each child holds one reference on its parent.
func (e *banEdge) retain() {
	e.refs++
}

// release decrements the ref count of e and, for every ancestor whose
// count reaches zero, detaches it so it can be garbage collected. This
// models the "destroying a child releases its parent, possibly
// cascading" invariant of section 3/8 without manual memory management.
func (e *banEdge) release() {
	b := e
	for b != nil {
		b.refs--
		if b.refs > 0 {
			return
		}
		next := b.parent
		b.parent = nil
		b = next
	}
}

// chain returns every (src,dst) pair from e up to the root, inclusive --
// the full ban-set this tree node represents.
func (e *banEdge) chain() []excludedDirection {
	var out []excludedDirection
	for b := e; b != nil; b = b.parent {
		out = append(out, excludedDirection{Source: b.src, Destination: b.dst})
	}
	return out
}

// routeCache holds every route already emitted for one destination since
// the last queue drain, so duplicates can be rejected (section 4.4 step
// 5).
type routeCache struct {
	routes []*Route
}

func (c *routeCache) contains(r *Route) bool {
	for _, existing := range c.routes {
		if routesEqual(existing, r) {
			return true
		}
	}
	return false
}

func (c *routeCache) insert(r *Route) {
	c.routes = append(c.routes, r)
}

func (c *routeCache) clear() {
	c.routes = nil
}

// routesEqual compares two routes hop-for-hop by channel id, the
// dedup key named in section 8's "diversity no-duplicate" property.
func routesEqual(a, b *Route) bool {
	if len(a.Hops) != len(b.Hops) {
		return false
	}
	aIDs := make([]uint64, len(a.Hops))
	bIDs := make([]uint64, len(b.Hops))
	for i, h := range a.Hops {
		aIDs[i] = h.Channel.ChannelID
	}
	for i, h := range b.Hops {
		bIDs[i] = h.Channel.ChannelID
	}
	return slices.Equal(aIDs, bIDs)
}

// PaymentBudget bounds the fee and CLTV a payment will tolerate, per
// section 4.4 step 6.
type PaymentBudget struct {
	FeeBudget   MilliSatoshi
	CLTVBudget  uint16
}

// diversityRequest is one queued caller waiting on a destination's
// serialized FIFO.
type diversityRequest struct {
	amt       MilliSatoshi
	maxHops   int
	exclude   *ExcludeSet
	budget    PaymentBudget
	replyCh   chan diversityResult
}

type diversityResult struct {
	route *Route
	err   error
}

// diversityDestination is the per-destination state named in section 3:
// a queue of unexpanded ban-edges, a route cache, and a FIFO of waiting
// requests, of which only the head runs at a time.
type diversityDestination struct {
	target Vertex

	mu       sync.Mutex
	edgeQ    *queue.ConcurrentQueue
	cache    *routeCache
	waiting  []*diversityRequest
	running  bool
}

func newDiversityDestination(target Vertex) *diversityDestination {
	q := queue.NewConcurrentQueue(32)
	q.Start()
	return &diversityDestination{
		target: target,
		edgeQ:  q,
		cache:  &routeCache{},
	}
}

// DiversityEngine drives the path-diversity tree traversal of section
// 4.4, wrapping a RouteFinder with progressively-accumulating edge bans
// and payment-level budget enforcement.
type DiversityEngine struct {
	finder *RouteFinder
	source Vertex

	mu   sync.Mutex
	dest map[Vertex]*diversityDestination
}

// NewDiversityEngine returns a diversity engine driving finder's
// shortest-route calls from source.
func NewDiversityEngine(finder *RouteFinder, source Vertex) *DiversityEngine {
	return &DiversityEngine{
		finder: finder,
		source: source,
		dest:   make(map[Vertex]*diversityDestination),
	}
}

// destFor returns (creating if necessary) the per-destination state for
// target.
func (e *DiversityEngine) destFor(target Vertex) *diversityDestination {
	e.mu.Lock()
	defer e.mu.Unlock()

	d, ok := e.dest[target]
	if !ok {
		d = newDiversityDestination(target)
		e.dest[target] = d
	}
	return d
}

// dropDest removes a destination's state once it has no more waiters,
// per section 3's lifecycle ("destroyed when no waiters remain").
func (e *DiversityEngine) dropDest(target Vertex) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if d, ok := e.dest[target]; ok && len(d.waiting) == 0 {
		delete(e.dest, target)
	}
}

// NextRoute requests the next diverse route to target, serialized behind
// any other in-flight request for the same destination (section 4.4).
func (e *DiversityEngine) NextRoute(target Vertex, amt MilliSatoshi,
	maxHops int, paymentExclude *ExcludeSet, budget PaymentBudget) (*Route, error) {

	d := e.destFor(target)

	req := &diversityRequest{
		amt:     amt,
		maxHops: maxHops,
		exclude: paymentExclude,
		budget:  budget,
		replyCh: make(chan diversityResult, 1),
	}

	d.mu.Lock()
	d.waiting = append(d.waiting, req)
	startNow := !d.running
	if startNow {
		d.running = true
	}
	d.mu.Unlock()

	if startNow {
		go e.runHead(d)
	}

	res := <-req.replyCh
	return res.route, res.err
}

// runHead processes the head-of-line request for d, then advances to the
// next waiter (if any), matching the FIFO serialization of section 4.4.
func (e *DiversityEngine) runHead(d *diversityDestination) {
	for {
		d.mu.Lock()
		if len(d.waiting) == 0 {
			d.running = false
			d.mu.Unlock()
			e.dropDest(d.target)
			return
		}
		req := d.waiting[0]
		d.mu.Unlock()

		route, err := e.expand(d, req)

		d.mu.Lock()
		d.waiting = d.waiting[1:]
		d.mu.Unlock()

		req.replyCh <- diversityResult{route: route, err: err}
	}
}

// expand runs the tree-traversal algorithm of section 4.4 for one
// request: pop an edge, expand its ban chain, call the route finder,
// dedup, enforce budgets, and (on success) expand the tree further.
func (e *DiversityEngine) expand(d *diversityDestination, req *diversityRequest) (*Route, error) {
	for {
		var edge *banEdge
		select {
		case raw := <-d.edgeQ.ChanOut():
			edge, _ = raw.(*banEdge)
		default:
			// Queue empty: this is the tree root.
		}

		exclude := combinedExclude(req.exclude, edge)

		route, err := e.finder.FindRoute(e.source, d.target, req.amt, req.maxHops, exclude)
		if err != nil {
			if edge != nil {
				edge.release()
				continue
			}
			return nil, err
		}

		if d.cache.contains(route) {
			if edge != nil {
				edge.release()
				continue
			}

			// The root route duplicating with an empty queue means
			// the tree drained naturally (BFS exhausted, as opposed
			// to the budget-restart path below). Section 3 calls for
			// the cache to clear on any queue drain, so the next
			// request starts a fresh tree instead of being stuck
			// replaying the same cached root forever.
			d.cache.clear()
		}

		fee := route.TotalAmount() - route.FinalAmount()
		delay := route.TotalDelay()

		if fee > req.budget.FeeBudget || delay > req.budget.CLTVBudget {
			if edge == nil {
				e.applyBudgetHint(req.exclude, route, fee > req.budget.FeeBudget)
				return nil, ErrBudgetExceeded
			}

			// Deeper tree nodes only produce longer/more expensive
			// routes: restart from the root.
			e.drainQueue(d)
			d.cache.clear()
			if edge != nil {
				edge.release()
			}
			continue
		}

		depth := 0
		for b := edge; b != nil; b = b.parent {
			depth++
		}
		diversityTreeDepth.Observe(float64(depth))

		d.cache.insert(route)
		e.pushChildren(d, route, edge)

		if edge != nil {
			edge.release()
		}
		return route, nil
	}
}

// pushChildren pushes one child ban-edge per hop of route, each
// inheriting parent as its ancestor (section 4.4 step 7).
func (e *DiversityEngine) pushChildren(d *diversityDestination, route *Route, parent *banEdge) {
	prev := e.source
	for _, hop := range route.Hops {
		child := &banEdge{src: prev, dst: hop.NextNode, parent: parent, refs: 1}
		if parent != nil {
			parent.retain()
		}
		d.edgeQ.ChanIn() <- child
		prev = hop.NextNode
	}
}

// drainQueue empties d's queue, releasing every edge still held by it.
func (e *DiversityEngine) drainQueue(d *diversityDestination) {
	for {
		select {
		case raw := <-d.edgeQ.ChanOut():
			if edge, ok := raw.(*banEdge); ok {
				edge.release()
			}
		default:
			return
		}
	}
}

// applyBudgetHint mutates the payment's exclude set per the policy
// decided in DESIGN.md for the open question in section 9: on a
// fee-budget miss, exclude the most expensive edge of the best route; on
// a CLTV-budget miss, exclude the edge with the largest delay.
func (e *DiversityEngine) applyBudgetHint(paymentExclude *ExcludeSet, route *Route, feeExceeded bool) {
	if paymentExclude == nil || len(route.Hops) == 0 {
		return
	}

	if feeExceeded {
		var worst *Hop
		var worstFee MilliSatoshi
		prevAmt := route.FinalAmount()
		for i := len(route.Hops) - 1; i >= 0; i-- {
			hopFee := route.Hops[i].AmountToForward - prevAmt
			if worst == nil || hopFee > worstFee {
				worst = route.Hops[i]
				worstFee = hopFee
			}
			prevAmt = route.Hops[i].AmountToForward
		}
		if worst != nil {
			paymentExclude.ExcludeDirection(worst.Channel.Source(), worst.Channel.Destination())
		}
		return
	}

	var worst *Hop
	for _, hop := range route.Hops {
		if worst == nil || hop.Channel.CLTVDelta > worst.Channel.CLTVDelta {
			worst = hop
		}
	}
	if worst != nil {
		paymentExclude.ExcludeDirection(worst.Channel.Source(), worst.Channel.Destination())
	}
}

// combinedExclude merges the payment's own excludes with the ban chain
// of edge (and all its ancestors), producing the exclude set for one
// FindRoute call (section 4.4 step 2/3: every parallel channel between a
// banned pair must be excluded).
func combinedExclude(paymentExclude *ExcludeSet, edge *banEdge) *ExcludeSet {
	out := NewExcludeSet()
	if paymentExclude != nil {
		for n := range paymentExclude.Nodes {
			out.ExcludeNode(n)
		}
		for d := range paymentExclude.Channels {
			out.ExcludeDirection(d.Source, d.Destination)
		}
	}
	if edge != nil {
		for _, dir := range edge.chain() {
			out.ExcludeDirection(dir.Source, dir.Destination)
			out.ExcludeDirection(dir.Destination, dir.Source)
		}
	}
	return out
}
