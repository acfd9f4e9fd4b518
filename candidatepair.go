package ice

import "github.com/pion/stun/v3"

// PairState is the connectivity-check state machine for a candidate pair,
// used during connectivity checks.
type PairState int

const (
	// PairStateFrozen has not yet been unfrozen for checking.
	PairStateFrozen PairState = iota + 1
	// PairStateWaiting is eligible to be picked off the triggered/ordinary
	// check queue.
	PairStateWaiting
	// PairStateInProgress has an outstanding STUN transaction.
	PairStateInProgress
	// PairStateSucceeded completed a connectivity check successfully.
	PairStateSucceeded
	// PairStateFailed exhausted its retransmissions, or its component
	// received a role-conflict it could not recover from.
	PairStateFailed
)

func (s PairState) String() string {
	switch s {
	case PairStateFrozen:
		return "frozen"
	case PairStateWaiting:
		return "waiting"
	case PairStateInProgress:
		return "in-progress"
	case PairStateSucceeded:
		return "succeeded"
	case PairStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// CandidatePair is a (local, remote) candidate combination under check for
// a single component.
type CandidatePair struct {
	Local, Remote *Candidate

	Foundation string
	Priority   uint64
	State      PairState

	Nominated    bool
	UseCandidate bool // set on the outbound Binding Request when nominating

	// renomination is the last-applied NOMINATION attribute counter, used
	// to reject a stale renomination request (see nomination.go).
	renomination uint32

	// transaction tracks the outstanding STUN request for this pair, nil
	// when State is not InProgress.
	transaction *stunTransaction

	// retries counts completed connectivity-check attempts toward
	// Options.StunMaxRetransmits.
	retries int

	// dialSocket is the lazily-dialed connection for a TCP-active local
	// candidate, nil until dialActiveTCP completes; dialing guards
	// against dialing the same pair twice while a dial is in flight.
	dialSocket Socket
	dialing    bool

	lastActivity atomicTime
}

// socket returns the Socket a check for this pair should send over:
// Local.socket directly, except for a TCP-active pairing, which has no
// socket until dialActiveTCP finishes connecting it.
func (p *CandidatePair) socket() Socket {
	if p.Local.Proto == TransportTCPActive {
		return p.dialSocket
	}
	return p.Local.socket
}

// stunTransaction is the minimal per-request tracking record the
// connectivity-check engine keeps until a response or timeout arrives,
// tracked until a response or timeout arrives.
type stunTransaction struct {
	id       stun.TransactionID
	deadline int64 // UnixNano; compared against nowFunc()
	raw      []byte // encoded request, resent verbatim on retransmission
}

// NewCandidatePair builds a pair in PairStateFrozen, computing its
// priority and foundation from the local/remote candidates and role.
func NewCandidatePair(local, remote *Candidate, controlling bool) *CandidatePair {
	p := &CandidatePair{
		Local:      local,
		Remote:     remote,
		Foundation: pairFoundation(local, remote),
		State:      PairStateFrozen,
	}
	if controlling {
		p.Priority = pairPriority(local.Priority, remote.Priority)
	} else {
		p.Priority = pairPriority(remote.Priority, local.Priority)
	}
	return p
}

// Equal compares pairs by their constituent candidates, the identity used
// to de-duplicate the pair list and to find a pair a triggered check or
// inbound response refers to.
func (p *CandidatePair) Equal(other *CandidatePair) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.Local.Equal(other.Local) && p.Remote.Equal(other.Remote)
}

// componentMatch reports whether both candidates belong to componentID,
// used when selecting the best succeeded pair per component.
func (p *CandidatePair) componentMatch(componentID int) bool {
	return p.Local.Component == componentID && p.Remote.Component == componentID
}

func (p *CandidatePair) String() string {
	return p.Local.Addr.String() + " <-> " + p.Remote.Addr.String() + " [" + p.State.String() + "]"
}
