package ice

import "sync"

// ComponentState is the per-component state progression:
// Disconnected -> Gathering -> Connecting -> Connected -> Ready, with
// Failed as a near-universal sink.
type ComponentState int

const (
	// ComponentStateDisconnected is the initial state before gathering
	// starts.
	ComponentStateDisconnected ComponentState = iota + 1
	// ComponentStateGathering is collecting local candidates.
	ComponentStateGathering
	// ComponentStateConnecting has pairs under check, none succeeded yet.
	ComponentStateConnecting
	// ComponentStateConnected has at least one succeeded pair but no
	// nomination yet (full ICE) or is mid-restart-retry (see monotonicity
	// exception below).
	ComponentStateConnected
	// ComponentStateReady has a nominated, selected pair.
	ComponentStateReady
	// ComponentStateFailed is terminal except for the restart exception
	// (Failed -> Gathering) and the Ready -> Connected retry exception.
	ComponentStateFailed
)

func (s ComponentState) String() string {
	switch s {
	case ComponentStateDisconnected:
		return "disconnected"
	case ComponentStateGathering:
		return "gathering"
	case ComponentStateConnecting:
		return "connecting"
	case ComponentStateConnected:
		return "connected"
	case ComponentStateReady:
		return "ready"
	case ComponentStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// pendingPacket is a received datagram buffered because no pair was
// selected yet when it arrived.
type pendingPacket struct {
	data []byte
	from Address
}

// receivedMessage is a datagram delivered to the user, queued on a
// component's inbox so Recv/TryRecv can pull from it without taking the
// component's mutex.
type receivedMessage struct {
	data []byte
	from Address
}

// inboxCapacity bounds the per-component receive queue; once full, the
// newest arrival is dropped rather than blocking the delivering goroutine,
// the same backpressure policy a kernel socket buffer applies.
const inboxCapacity = 256

// Component is the smallest transport unit within a stream — its own
// pair-selection, socket set, and receive state.
type Component struct {
	StreamID int
	ID       int

	state ComponentState

	local  []*Candidate
	remote []*Candidate

	selected *CandidatePair

	turnServers []*TurnServer
	maxTurn     int

	pending []pendingPacket

	reassembler *frameReassembler // non-nil only when Transport is TCP-framed

	ptcp *pseudoTCP // non-nil only when Options.Reliable

	consentLost bool

	notify func(streamID, componentID int, state ComponentState)

	inbox chan receivedMessage

	mu sync.Mutex
}

func newComponent(streamID, id int, maxTurn int, notify func(int, int, ComponentState)) *Component {
	return &Component{
		StreamID: streamID,
		ID:       id,
		state:    ComponentStateDisconnected,
		maxTurn:  maxTurn,
		notify:   notify,
		inbox:    make(chan receivedMessage, inboxCapacity),
	}
}

// deliver pushes a received message to the component's inbox, dropping it
// if the queue is full instead of blocking the caller (the demultiplexer
// or pseudo-TCP readable callback).
func (c *Component) deliver(data []byte, from Address) {
	buf := make([]byte, len(data))
	copy(buf, data)
	select {
	case c.inbox <- receivedMessage{data: buf, from: from}:
	default:
	}
}

// State returns the component's current state.
func (c *Component) State() ComponentState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// setState transitions the component's state, enforcing the monotonicity
// invariant except for two named exceptions: Failed -> Gathering and a
// retried check on the selected pair (Ready -> Connected). It takes the
// component's own mutex and calls notify after releasing it.
// Stream.restart sets Gathering directly instead, from any state.
func (c *Component) setState(next ComponentState) {
	c.mu.Lock()
	prev := c.state
	if prev == next {
		c.mu.Unlock()
		return
	}
	if !isMonotonicTransition(prev, next) {
		c.mu.Unlock()
		return
	}
	c.state = next
	c.mu.Unlock()
	if c.notify != nil {
		c.notify(c.StreamID, c.ID, next)
	}
}

func isMonotonicTransition(prev, next ComponentState) bool {
	if next == ComponentStateFailed {
		return true
	}
	if prev == ComponentStateFailed {
		return next == ComponentStateGathering
	}
	if prev == ComponentStateReady && next == ComponentStateConnected {
		return true
	}
	return next > prev
}

// addLocalCandidate appends c to the component's local list, enforcing
// the no-duplicate invariant.
func (c *Component) addLocalCandidate(cand *Candidate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.local {
		if existing.Equal(cand) {
			return false
		}
	}
	c.local = append(c.local, cand)
	return true
}

func (c *Component) localCandidates() []*Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Candidate, len(c.local))
	copy(out, c.local)
	return out
}

// addRemoteCandidate appends cand to the remote list if not already
// present, returning false when it was a duplicate (set_remote_candidates
// idempotence).
func (c *Component) addRemoteCandidate(cand *Candidate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.remote {
		if existing.Equal(cand) {
			return false
		}
	}
	c.remote = append(c.remote, cand)
	return true
}

func (c *Component) remoteCandidates() []*Candidate {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Candidate, len(c.remote))
	copy(out, c.remote)
	return out
}

// findHostCandidateByBase reports whether a host candidate exists with
// address equal to base, required for every srflx/prflx candidate's
// base_addr.
func (c *Component) findHostCandidateByBase(base Address) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cand := range c.local {
		if cand.Typ == CandidateTypeHost && cand.Addr.Equal(base) {
			return true
		}
	}
	return false
}

// setSelectedPair installs pair as the selected pair, enforcing the
// at-most-one-selected-pair invariant; any buffered pending packets that
// are now known-delivered are flushed. In reliable mode a pending packet
// may be the handshake SYN/SYN-ACK itself, so it is routed through
// pseudo-TCP rather than handed straight to deliverFn (mirrors the
// demultiplexer's own ptcp-vs-user dispatch for post-selection arrivals).
func (c *Component) setSelectedPair(pair *CandidatePair, deliverFn func(data []byte, from Address)) {
	c.mu.Lock()
	c.selected = pair
	queued := c.pending
	c.pending = nil
	ptcp := c.ptcp
	c.mu.Unlock()
	for _, p := range queued {
		if ptcp != nil {
			ptcp.notifyMessage(p.data)
			continue
		}
		deliverFn(p.data, p.from)
	}
}

func (c *Component) selectedPair() *CandidatePair {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// queuePending buffers a datagram that arrived before any pair was
// selected.
func (c *Component) queuePending(data []byte, from Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf := make([]byte, len(data))
	copy(buf, data)
	c.pending = append(c.pending, pendingPacket{data: buf, from: from})
}

// addTurnServer appends a TURN server, bounded by maxTurn.
func (c *Component) addTurnServer(server *TurnServer) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.maxTurn > 0 && len(c.turnServers) >= c.maxTurn {
		return false
	}
	c.turnServers = append(c.turnServers, server)
	return true
}

// close releases every socket owned by this component's candidates and
// any TURN allocations, via each socket's Close.
func (c *Component) close() {
	c.mu.Lock()
	locals := c.local
	c.local = nil
	c.mu.Unlock()
	for _, cand := range locals {
		_ = cand.close()
	}
}
