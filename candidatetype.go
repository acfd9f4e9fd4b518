package ice

// CandidateType represents the type of an ICE candidate.
type CandidateType byte

const (
	// CandidateTypeHost is a candidate obtained by binding to a port on a
	// local interface.
	CandidateTypeHost CandidateType = iota + 1
	// CandidateTypeServerReflexive is a candidate whose public mapping was
	// learned from a STUN Binding response.
	CandidateTypeServerReflexive
	// CandidateTypePeerReflexive is a candidate learned from the source
	// address of an incoming connectivity check.
	CandidateTypePeerReflexive
	// CandidateTypeRelay is a candidate allocated on a TURN server.
	CandidateTypeRelay
)

func (c CandidateType) String() string {
	switch c {
	case CandidateTypeHost:
		return "host"
	case CandidateTypeServerReflexive:
		return "srflx"
	case CandidateTypePeerReflexive:
		return "prflx"
	case CandidateTypeRelay:
		return "relay"
	default:
		return "unknown"
	}
}

// preference returns the RFC 5245 §4.1.2.2 RECOMMENDED type preference,
// as a lookup table.
func (c CandidateType) preference() uint32 {
	switch c {
	case CandidateTypeHost:
		return 126
	case CandidateTypePeerReflexive:
		return 110
	case CandidateTypeServerReflexive:
		return 100
	case CandidateTypeRelay:
		return 0
	default:
		return 0
	}
}

// Transport is the candidate's transport protocol.
type Transport byte

const (
	// TransportUDP is a UDP candidate.
	TransportUDP Transport = iota + 1
	// TransportTCPActive actively opens the TCP connection.
	TransportTCPActive
	// TransportTCPPassive passively accepts the TCP connection.
	TransportTCPPassive
	// TransportTCPSimultaneousOpen performs a simultaneous-open TCP
	// handshake.
	TransportTCPSimultaneousOpen
)

func (t Transport) String() string {
	switch t {
	case TransportUDP:
		return "udp"
	case TransportTCPActive:
		return "tcp-act"
	case TransportTCPPassive:
		return "tcp-pass"
	case TransportTCPSimultaneousOpen:
		return "tcp-so"
	default:
		return "unknown"
	}
}

// IsReliable reports whether the transport variant rides over TCP.
func (t Transport) IsReliable() bool {
	return t != TransportUDP
}

// compatible reports whether a local transport may be paired with a
// remote transport: UDP<->UDP, TCP-active<->TCP-passive
// (and vice versa), simultaneous-open<->simultaneous-open; never UDP<->TCP.
func (t Transport) compatible(remote Transport) bool {
	switch {
	case t == TransportUDP && remote == TransportUDP:
		return true
	case t == TransportTCPActive && remote == TransportTCPPassive:
		return true
	case t == TransportTCPPassive && remote == TransportTCPActive:
		return true
	case t == TransportTCPSimultaneousOpen && remote == TransportTCPSimultaneousOpen:
		return true
	default:
		return false
	}
}

// Role describes which side of the ICE exchange selects the final
// candidate pair.
type Role byte

const (
	// RoleControlling is responsible for nominating the final pair.
	RoleControlling Role = iota + 1
	// RoleControlled waits for the controlling agent to nominate.
	RoleControlled
)

func (r Role) String() string {
	switch r {
	case RoleControlling:
		return "controlling"
	case RoleControlled:
		return "controlled"
	default:
		return "unknown"
	}
}

// opposite returns the other role, used when a role-conflict response
// forces a switch.
func (r Role) opposite() Role {
	if r == RoleControlling {
		return RoleControlled
	}
	return RoleControlling
}
