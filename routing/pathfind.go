package routing

import (
	"errors"
)

// ErrNoRouteFound is returned by FindRoute when no path satisfying the
// constraints exists.
var ErrNoRouteFound = errors.New("unable to find a route to destination")

// ExcludeSet names the channel directions and nodes a pathfinding call
// must not traverse, the union of a payment's own excludes and (when
// called from the diversity engine) the accumulated ban-chain of a tree
// node.
type ExcludeSet struct {
	Nodes    map[Vertex]struct{}
	Channels map[excludedDirection]struct{}
}

// excludedDirection identifies one directed half-channel to exclude.
type excludedDirection struct {
	Source, Destination Vertex
}

// NewExcludeSet returns an empty ExcludeSet.
func NewExcludeSet() *ExcludeSet {
	return &ExcludeSet{
		Nodes:    make(map[Vertex]struct{}),
		Channels: make(map[excludedDirection]struct{}),
	}
}

// ExcludeNode adds v to the exclude set.
func (e *ExcludeSet) ExcludeNode(v Vertex) { e.Nodes[v] = struct{}{} }

// ExcludeDirection bans forwarding from src to dst.
func (e *ExcludeSet) ExcludeDirection(src, dst Vertex) {
	e.Channels[excludedDirection{src, dst}] = struct{}{}
}

func (e *ExcludeSet) nodeExcluded(v Vertex) bool {
	if e == nil {
		return false
	}
	_, ok := e.Nodes[v]
	return ok
}

func (e *ExcludeSet) directionExcluded(src, dst Vertex) bool {
	if e == nil {
		return false
	}
	_, ok := e.Channels[excludedDirection{src, dst}]
	return ok
}

// astarEntry tracks the best-known predecessor edge into a node during a
// best-first search, so the winning path can be reconstructed once the
// destination is popped.
type astarEntry struct {
	costSoFar uint64
	via       *ChannelEdge
	prevNode  Vertex
	hasPrev   bool
}

// RouteFinder implements the getroute operation of section 6: a
// best-first search over the graph, using the DHC as an admissible
// heuristic and coster as the edge-cost metric, so that the heuristic
// and the actual cost share a metric (section 4.2).
type RouteFinder struct {
	graph  Graph
	dhc    *DHC
	coster *Coster
}

// NewRouteFinder returns a RouteFinder reading from dhc (if available)
// and costing with coster.
func NewRouteFinder(graph Graph, dhc *DHC, coster *Coster) *RouteFinder {
	return &RouteFinder{graph: graph, dhc: dhc, coster: coster}
}

// FindRoute searches for the lowest-cost path from source to dst
// forwarding amt, honoring maxHops and exclude. If the DHC is not yet
// available, the search degrades to plain Dijkstra (zero heuristic).
func (f *RouteFinder) FindRoute(source, dst Vertex, amt MilliSatoshi,
	maxHops int, exclude *ExcludeSet) (*Route, error) {

	if exclude == nil {
		exclude = NewExcludeSet()
	}

	var reader *DHCReader
	if f.dhc != nil && f.dhc.Available() {
		reader = f.dhc.Reader(dst)
	}

	heuristic := func(n Vertex) uint64 {
		if reader == nil {
			return 0
		}
		return uint64(reader.Distance(n))
	}

	visited := make(map[Vertex]bool)
	best := make(map[Vertex]*astarEntry)
	best[source] = &astarEntry{costSoFar: 0}

	pq := newPriorityQueue()
	pq.push(source, heuristic(source))

	hopCount := map[Vertex]int{source: 0}

	for {
		node, _, ok := pq.popMin()
		if !ok {
			return nil, ErrNoRouteFound
		}
		if visited[node] {
			continue
		}
		visited[node] = true

		if node == dst {
			return f.reconstruct(source, dst, amt, best)
		}

		if maxHops > 0 && hopCount[node] >= maxHops {
			continue
		}

		if exclude.nodeExcluded(node) && node != source {
			continue
		}

		for _, channel := range f.graph.Channels(node) {
			if !channel.Active {
				continue
			}
			neighbor := channel.Destination()

			if exclude.nodeExcluded(neighbor) && neighbor != dst {
				continue
			}
			if exclude.directionExcluded(node, neighbor) {
				continue
			}
			if amt < channel.MinHTLC || (channel.MaxHTLC != 0 && amt > channel.MaxHTLC) {
				continue
			}
			if visited[neighbor] {
				continue
			}

			cost := f.coster.Cost(channel)
			newCost := best[node].costSoFar + cost

			if entry, ok := best[neighbor]; !ok || newCost < entry.costSoFar {
				best[neighbor] = &astarEntry{
					costSoFar: newCost,
					via:       channel,
					prevNode:  node,
					hasPrev:   true,
				}
				hopCount[neighbor] = hopCount[node] + 1
				pq.push(neighbor, newCost+heuristic(neighbor))
			}
		}
	}
}

// reconstruct walks the predecessor map from dst back to source and
// builds the Route's hop list, assigning amounts and CLTV deltas
// outward-in so that the amount at hop i equals the delivered amount
// plus every downstream accumulated fee (section 3).
func (f *RouteFinder) reconstruct(source, dst Vertex, amt MilliSatoshi,
	best map[Vertex]*astarEntry) (*Route, error) {

	type step struct {
		channel *ChannelEdge
		node    Vertex
	}

	var chain []step
	cur := dst
	for cur != source {
		entry, ok := best[cur]
		if !ok || !entry.hasPrev {
			return nil, ErrNoRouteFound
		}
		chain = append([]step{{channel: entry.via, node: cur}}, chain...)
		cur = entry.prevNode
	}

	if len(chain) == 0 {
		return nil, ErrNoRouteFound
	}

	hops := make([]*Hop, len(chain))

	// Walk backwards from the final hop, accumulating fees and CLTV
	// deltas the way every upstream node must be compensated.
	runningAmt := amt
	runningCLTV := uint16(0)

	for i := len(chain) - 1; i >= 0; i-- {
		ch := chain[i].channel

		style := HopStyleLegacy
		if info, ok := f.graph.Node(chain[i].node); ok && info.SupportsTLVOnion {
			style = HopStyleTLV
		}

		hops[i] = &Hop{
			NextNode:        chain[i].node,
			Channel:         ch,
			AmountToForward: runningAmt,
			Delay:           runningCLTV,
			Style:           style,
		}

		runningCLTV += ch.CLTVDelta
		if i > 0 {
			runningAmt = AddFee(runningAmt, ch.BaseFee, ch.FeeRate)
		}
	}

	return &Route{SourceNode: source, Hops: hops}, nil
}
