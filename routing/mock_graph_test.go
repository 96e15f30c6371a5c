package routing

// memGraph is a trivial in-memory Graph used across this package's
// tests, playing the role of the gossip-maintained graph the routing
// core consumes as an out-of-scope collaborator.
type memGraph struct {
	nodes map[Vertex]*NodeInfo
	out   map[Vertex][]*ChannelEdge
	in    map[Vertex][]*ChannelEdge
}

func newMemGraph() *memGraph {
	return &memGraph{
		nodes: make(map[Vertex]*NodeInfo),
		out:   make(map[Vertex][]*ChannelEdge),
		in:    make(map[Vertex][]*ChannelEdge),
	}
}

func (g *memGraph) addNode(v Vertex) {
	if _, ok := g.nodes[v]; !ok {
		g.nodes[v] = &NodeInfo{PubKey: v}
	}
}

// addChannel registers a bidirectional channel with symmetric policy,
// convenient for simple test graphs; asymmetric policies can be added
// via addDirectedChannel.
func (g *memGraph) addChannel(id uint64, a, b Vertex, baseFee MilliSatoshi,
	feeRate uint32, cltv uint16, minHTLC, maxHTLC MilliSatoshi) {

	g.addDirectedChannel(id, a, b, baseFee, feeRate, cltv, minHTLC, maxHTLC)
	g.addDirectedChannel(id, b, a, baseFee, feeRate, cltv, minHTLC, maxHTLC)
}

func (g *memGraph) addDirectedChannel(id uint64, src, dst Vertex, baseFee MilliSatoshi,
	feeRate uint32, cltv uint16, minHTLC, maxHTLC MilliSatoshi) {

	g.addNode(src)
	g.addNode(dst)

	edge := &ChannelEdge{
		ChannelID: id,
		Node1:     src,
		Node2:     dst,
		BaseFee:   baseFee,
		FeeRate:   feeRate,
		CLTVDelta: cltv,
		MinHTLC:   minHTLC,
		MaxHTLC:   maxHTLC,
		Active:    true,
	}
	g.out[src] = append(g.out[src], edge)
	g.in[dst] = append(g.in[dst], edge)
}

func (g *memGraph) removeNode(v Vertex) {
	delete(g.nodes, v)
}

func (g *memGraph) Node(v Vertex) (*NodeInfo, bool) {
	n, ok := g.nodes[v]
	return n, ok
}

func (g *memGraph) Channels(v Vertex) []*ChannelEdge {
	return g.out[v]
}

func (g *memGraph) ChannelsTo(v Vertex) []*ChannelEdge {
	return g.in[v]
}

func (g *memGraph) ForEachNode(cb func(Vertex) error) error {
	for v := range g.nodes {
		if err := cb(v); err != nil {
			return err
		}
	}
	return nil
}

func vertex(b byte) Vertex {
	var v Vertex
	v[0] = 0x02
	v[32] = b
	return v
}
