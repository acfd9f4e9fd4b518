package ice

import "sync/atomic"

// TurnServer describes a TURN server a component may allocate a relayed
// candidate on. It is reference-counted because a pending discovery or
// refresh can outlive the component's own removal of it from a list.
type TurnServer struct {
	Addr       Address
	Username   string
	Password   string
	// DecodedUsername/DecodedPassword hold the pre-decoded credential
	// bytes some dialects (MS/OC2007) require instead of the raw string
	// form.
	DecodedUsername []byte
	DecodedPassword []byte
	Transport       Transport
	Dialect         Dialect
	// Preference is the server's index within the component's configured
	// list; used to order relay discovery when several servers exist.
	Preference int

	refs int32
}

// Equal compares TURN servers by remote address, used by foundation
// assignment to decide whether two relay candidates share a server.
func (t *TurnServer) Equal(other *TurnServer) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Addr.Equal(other.Addr)
}

func (t *TurnServer) retain() { atomic.AddInt32(&t.refs, 1) }

// release decrements the refcount and reports whether it reached zero,
// i.e. whether the caller may now free any resources synthesized for it.
func (t *TurnServer) release() bool {
	return atomic.AddInt32(&t.refs, -1) == 0
}

// Candidate is a potential transport address for a component: host,
// server-reflexive, peer-reflexive, or relayed.
type Candidate struct {
	StreamID    int
	Component   int
	Typ         CandidateType
	Proto       Transport
	Addr        Address
	BaseAddr    Address
	Priority    uint32
	Foundation  string

	// Username/Password are populated only for dialects (OC2007, MSN)
	// that carry per-candidate credentials.
	Username string
	Password string

	// TurnServer is set for relayed candidates; nil otherwise.
	TurnServer *TurnServer

	socket Socket

	lastSent     atomicTime
	lastReceived atomicTime
}

// NewHostCandidate builds a host candidate bound to addr, assigning its
// priority and foundation against the component's existing candidates.
func NewHostCandidate(streamID, component int, proto Transport, addr Address, dialect Dialect, fTable *foundationTable, existing []*Candidate) *Candidate {
	c := &Candidate{
		StreamID:  streamID,
		Component: component,
		Typ:       CandidateTypeHost,
		Proto:     proto,
		Addr:      addr,
		BaseAddr:  addr,
	}
	c.Priority = candidatePriority(dialect, c.Typ, localPreference(addr.IPVersion(), proto.IsReliable()), component)
	c.Foundation = fTable.assignLocal(c, existing)
	return c
}

// NewServerReflexiveCandidate builds a srflx candidate whose base is the
// host candidate that originated the STUN request.
func NewServerReflexiveCandidate(streamID, component int, mapped, base Address, dialect Dialect, fTable *foundationTable, existing []*Candidate) *Candidate {
	c := &Candidate{
		StreamID:  streamID,
		Component: component,
		Typ:       CandidateTypeServerReflexive,
		Proto:     TransportUDP,
		Addr:      mapped,
		BaseAddr:  base,
	}
	c.Priority = candidatePriority(dialect, c.Typ, localPreference(mapped.IPVersion(), false), component)
	c.Foundation = fTable.assignLocal(c, existing)
	return c
}

// NewPeerReflexiveCandidate builds a prflx candidate from the source
// address of an unrecognized incoming connectivity check; priority comes
// from the PRIORITY attribute the peer sent, not a local computation.
func NewPeerReflexiveCandidate(streamID, component int, addr Address, proto Transport, priority uint32, foundation string) *Candidate {
	return &Candidate{
		StreamID:   streamID,
		Component:  component,
		Typ:        CandidateTypePeerReflexive,
		Proto:      proto,
		Addr:       addr,
		BaseAddr:   addr,
		Priority:   priority,
		Foundation: foundation,
	}
}

// NewRelayCandidate builds a relayed candidate from a successful TURN
// Allocate response; base is the relay server's allocated base address.
func NewRelayCandidate(streamID, component int, relayed, base Address, server *TurnServer, dialect Dialect, fTable *foundationTable, existing []*Candidate) *Candidate {
	c := &Candidate{
		StreamID:   streamID,
		Component:  component,
		Typ:        CandidateTypeRelay,
		Proto:      TransportUDP,
		Addr:       relayed,
		BaseAddr:   base,
		TurnServer: server,
	}
	c.Priority = candidatePriority(dialect, c.Typ, localPreference(relayed.IPVersion(), false), component)
	c.Foundation = fTable.assignLocal(c, existing)
	if server != nil {
		server.retain()
	}
	return c
}

// Equal reports candidate equality by (type, transport, addr, base_addr),
// the invariant used for duplicate rejection.
func (c *Candidate) Equal(other *Candidate) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Typ == other.Typ && c.Proto == other.Proto &&
		c.Addr.Equal(other.Addr) && c.BaseAddr.Equal(other.BaseAddr)
}

// String renders an SDP-candidate-line-shaped form; round-tripping this
// (modulo the foundation prefix) is left to the external
// SDP collaborator, but this form is what that collaborator consumes.
func (c *Candidate) String() string {
	return c.Foundation + " " + itoa(c.Component) + " " + c.Proto.String() + " " +
		itoa(int(c.Priority)) + " " + c.Addr.String() + " typ " + c.Typ.String()
}

func (c *Candidate) close() error {
	if c.socket != nil {
		return c.socket.Close()
	}
	return nil
}

func (c *Candidate) seen(sent bool) {
	if sent {
		c.lastSent.store(nowFunc())
	} else {
		c.lastReceived.store(nowFunc())
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
