package routing

import (
	"github.com/go-errors/errors"
)

// ErrNoAlternate is returned when no intermediate node can be spliced in
// before the failing index.
var ErrNoAlternate = errors.New("no alternate route before erring index")

// Permute implements the two-hop route-repair splice of section 4.5.
// route is the failing route, erringIndex the index of the hop that
// failed, nodeFailure distinguishes a node failure (the node at
// erringIndex is gone) from a channel failure (the channel backing hop
// erringIndex failed), and payer is the route's own source (used when
// the failing hop is the very first one).
func Permute(graph Graph, route *Route, erringIndex int, nodeFailure bool,
	payer Vertex, excludeNodes map[Vertex]struct{}, excludeChans map[uint64]struct{}) (*Route, error) {

	if len(route.Hops) == 0 {
		return nil, errors.New("cannot repair an empty route")
	}
	if erringIndex < 0 || erringIndex >= len(route.Hops) {
		return nil, errors.New("erring index out of range")
	}
	if nodeFailure && erringIndex < 1 {
		return nil, errors.New("node failure requires erring index >= 1")
	}

	s, d := splitIndices(erringIndex, nodeFailure)
	if d >= len(route.Hops)+1 {
		return nil, errors.New("erring index out of range")
	}

	sourceNode := hopNodeOrPayer(route, s-1, payer)
	destNode := hopNodeOrPayer(route, d-1, payer)

	exclNodes := map[Vertex]struct{}{payer: {}}
	for _, h := range route.Hops {
		exclNodes[h.NextNode] = struct{}{}
	}
	for n := range excludeNodes {
		exclNodes[n] = struct{}{}
	}

	sourceAmt := hopAmountOrFull(route, s-1, route.Hops[0].AmountToForward)
	destAmt := route.Hops[d-1].AmountToForward
	destDelay := route.Hops[d-1].Delay
	destStyle := route.Hops[d-1].Style

	// Step 2: candidate half-channels leaving sourceNode.
	var srcCandidates []*ChannelEdge
	for _, ch := range graph.Channels(sourceNode) {
		if !ch.Active {
			continue
		}
		if _, excl := excludeChans[ch.ChannelID]; excl {
			continue
		}
		if sourceAmt < ch.MinHTLC || (ch.MaxHTLC != 0 && sourceAmt > ch.MaxHTLC) {
			continue
		}
		if _, excl := exclNodes[ch.Destination()]; excl {
			continue
		}
		srcCandidates = append(srcCandidates, ch)
	}
	if len(srcCandidates) == 0 {
		return nil, ErrNoAlternate
	}

	// Step 3: candidate half-channels arriving at destNode, matched
	// against the source candidates by intermediate node.
	var h1, h2 *ChannelEdge
	for _, dstCh := range graph.ChannelsTo(destNode) {
		if !dstCh.Active {
			continue
		}
		if _, excl := excludeChans[dstCh.ChannelID]; excl {
			continue
		}
		if destAmt < dstCh.MinHTLC || (dstCh.MaxHTLC != 0 && destAmt > dstCh.MaxHTLC) {
			continue
		}

		for _, srcCh := range srcCandidates {
			if srcCh.Destination() == dstCh.Source() {
				h1, h2 = srcCh, dstCh
				break
			}
		}
		if h1 != nil {
			break
		}
	}
	if h1 == nil || h2 == nil {
		return nil, ErrNoAlternate
	}

	intermediate := h1.Destination()

	// A race where the intermediate node vanished between the channel
	// lookup and now must fail the repair, not crash.
	nodeInfo, ok := graph.Node(intermediate)
	if !ok {
		return nil, errors.New("intermediate node disappeared during repair")
	}

	style := HopStyleLegacy
	if nodeInfo.SupportsTLVOnion {
		style = HopStyleTLV
	}

	// Step 4: splice.
	hop2 := &Hop{
		NextNode:        destNode,
		Channel:         h2,
		AmountToForward: destAmt,
		Delay:           destDelay,
		Style:           destStyle,
	}
	hop1Amt := AddFee(hop2.AmountToForward, h2.BaseFee, h2.FeeRate)
	hop1Delay := hop2.Delay + h2.CLTVDelta
	hop1 := &Hop{
		NextNode:        intermediate,
		Channel:         h1,
		AmountToForward: hop1Amt,
		Delay:           hop1Delay,
		Style:           style,
	}

	prefixAmt := AddFee(hop1.AmountToForward, h1.BaseFee, h1.FeeRate)
	prefixDelay := hop1.Delay + h1.CLTVDelta

	// Step 6: assemble the output route.
	out := &Route{SourceNode: route.SourceNode}
	out.Hops = append(out.Hops, route.Hops[:s]...)
	out.Hops = append(out.Hops, hop1, hop2)
	out.Hops = append(out.Hops, route.Hops[d:]...)

	// Re-clone the prefix hops and re-clone the spliced/suffix hops so
	// mutating amounts below never aliases the caller's original route.
	cloned := make([]*Hop, len(out.Hops))
	for i, h := range out.Hops {
		cp := *h
		cloned[i] = &cp
	}
	out.Hops = cloned

	if s > 0 {
		prevAmt := route.Hops[s-1].AmountToForward
		prevDelay := route.Hops[s-1].Delay

		amtDelta := diffNonNegative(prefixAmt, prevAmt)
		delayDelta := diffNonNegativeU16(prefixDelay, prevDelay)

		if amtDelta > 0 || delayDelta > 0 {
			for i := 0; i < s; i++ {
				out.Hops[i].AmountToForward += amtDelta + 1
				out.Hops[i].Delay += delayDelta
			}
		}
	}

	return out, nil
}

func splitIndices(erringIndex int, nodeFailure bool) (s, d int) {
	if nodeFailure {
		return erringIndex - 1, erringIndex + 1
	}
	return erringIndex, erringIndex + 1
}

func hopNodeOrPayer(route *Route, idx int, payer Vertex) Vertex {
	if idx < 0 {
		return payer
	}
	return route.Hops[idx].NextNode
}

func hopAmountOrFull(route *Route, idx int, full MilliSatoshi) MilliSatoshi {
	if idx < 0 {
		return full
	}
	return route.Hops[idx].AmountToForward
}

func diffNonNegative(a, b MilliSatoshi) MilliSatoshi {
	if a > b {
		return a - b
	}
	return 0
}

func diffNonNegativeU16(a, b uint16) uint16 {
	if a > b {
		return a - b
	}
	return 0
}
