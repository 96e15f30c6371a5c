package routing

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/btcec/v2"
)

// MilliSatoshi is an amount expressed in thousandths of a satoshi, the
// native unit of account for channel balances and fees. Defined locally
// since the teacher's lnwire snapshot predates lnwire.MilliSatoshi.
type MilliSatoshi uint64

// Vertex is the compressed serialization of a node's public key, used
// throughout the routing core as the node identity and the key into the
// DHC's per-node distance slots.
type Vertex [33]byte

// NewVertex derives a Vertex from a public key.
func NewVertex(pub *btcec.PublicKey) Vertex {
	var v Vertex
	copy(v[:], pub.SerializeCompressed())
	return v
}

// String returns the hex encoding of the vertex, as node ids are printed
// throughout the teacher's CLI output.
func (v Vertex) String() string {
	return hex.EncodeToString(v[:])
}

// ChannelEdge is a directed half-channel: the forwarding policy one node
// publishes for traffic flowing from it to its peer across one physical
// channel.
type ChannelEdge struct {
	// ChannelID is the short channel id of the underlying channel.
	ChannelID uint64

	// Node1, Node2 are the two endpoints of the underlying channel,
	// Node1 always being the source of this directed half-channel.
	Node1, Node2 Vertex

	// BaseFee is the flat fee, in msat, charged for forwarding across
	// this half-channel.
	BaseFee MilliSatoshi

	// FeeRate is the proportional fee, in parts-per-million of the
	// forwarded amount.
	FeeRate uint32

	// CLTVDelta is the number of blocks this node adds to the outgoing
	// timelock when forwarding.
	CLTVDelta uint16

	// MinHTLC, MaxHTLC bound the amount that may traverse this
	// half-channel.
	MinHTLC, MaxHTLC MilliSatoshi

	// Active reports whether this half-channel is currently usable.
	Active bool
}

// Source returns the origin node of this directed half-channel.
func (c *ChannelEdge) Source() Vertex { return c.Node1 }

// Destination returns the terminal node of this directed half-channel.
func (c *ChannelEdge) Destination() Vertex { return c.Node2 }

// ComputeFee returns the fee this half-channel charges to forward amt.
func (c *ChannelEdge) ComputeFee(amt MilliSatoshi) MilliSatoshi {
	return c.BaseFee + (amt*MilliSatoshi(c.FeeRate))/1_000_000
}

// AddFee returns amt plus the fee this half-channel would charge to
// forward it, per the add_fee formula referenced throughout section 4.5.
func AddFee(amt MilliSatoshi, baseFee MilliSatoshi, feePPM uint32) MilliSatoshi {
	return amt + baseFee + (amt*MilliSatoshi(feePPM))/1_000_000
}

// HopStyle selects the onion payload format a hop expects, per the
// variable-length-onion feature bit of the node it forwards through.
type HopStyle uint8

const (
	// HopStyleLegacy is used for nodes that have not signalled support
	// for the TLV/variable-length onion format.
	HopStyleLegacy HopStyle = iota

	// HopStyleTLV is used for nodes signalling the variable-onion
	// feature.
	HopStyleTLV
)

// Hop is a single forwarding step of a route.
type Hop struct {
	// NextNode is the node this hop forwards to.
	NextNode Vertex

	// Channel is the half-channel used for this hop.
	Channel *ChannelEdge

	// AmountToForward is the amount, in msat, forwarded across this
	// hop -- the delivered amount plus all downstream accumulated fees.
	AmountToForward MilliSatoshi

	// CLTVAbsolute is the absolute block height of this hop's outgoing
	// timelock.
	CLTVAbsolute uint32

	// Delay is the relative number of blocks of timelock remaining at
	// this hop, convenience-derived for the repair splice arithmetic.
	Delay uint16

	// Style is the onion payload format this hop expects.
	Style HopStyle
}

// Route is an ordered sequence of hops from the payer to the final
// destination.
type Route struct {
	// SourceNode is the payer, included so repair and diversity can
	// reconstruct the amount/delay prefix arithmetic without an
	// external reference.
	SourceNode Vertex

	Hops []*Hop
}

// TotalAmount returns the amount the payer must forward at hop 0, which
// equals the delivered amount plus every accumulated downstream fee.
func (r *Route) TotalAmount() MilliSatoshi {
	if len(r.Hops) == 0 {
		return 0
	}
	return r.Hops[0].AmountToForward
}

// TotalDelay returns hop 0's CLTV delay, the aggregate timelock the payer
// must budget for.
func (r *Route) TotalDelay() uint16 {
	if len(r.Hops) == 0 {
		return 0
	}
	return r.Hops[0].Delay
}

// FinalAmount returns the amount delivered to the final node.
func (r *Route) FinalAmount() MilliSatoshi {
	if len(r.Hops) == 0 {
		return 0
	}
	return r.Hops[len(r.Hops)-1].AmountToForward
}

// NodeInfo is the subset of gossiped node data the routing core consumes:
// identity and feature bits (used to pick HopStyleTLV vs HopStyleLegacy).
type NodeInfo struct {
	PubKey Vertex

	// SupportsTLVOnion reports whether this node has signalled the
	// variable-length-onion feature bit.
	SupportsTLVOnion bool
}

// Graph is the interface the routing core consumes from the (out of
// scope) gossip ingest subsystem. Implementations may forget nodes
// between calls; every caller here must tolerate a node disappearing.
type Graph interface {
	// Node looks up a node's gossiped record. ok is false if the node
	// is not currently known to the graph.
	Node(v Vertex) (info *NodeInfo, ok bool)

	// Channels returns every half-channel originating at v.
	Channels(v Vertex) []*ChannelEdge

	// ChannelsTo returns every half-channel terminating at v. Used by
	// repair to find candidate penultimate hops.
	ChannelsTo(v Vertex) []*ChannelEdge

	// ForEachNode iterates every node currently known to the graph.
	// Used by the refresher's clear_all step.
	ForEachNode(cb func(Vertex) error) error
}
