package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestHostCandidate(proto Transport, addr Address, priority uint32, component int) *Candidate {
	return &Candidate{
		Typ:       CandidateTypeHost,
		Proto:     proto,
		Addr:      addr,
		BaseAddr:  addr,
		Priority:  priority,
		Component: component,
	}
}

func TestNewCandidatePairPriorityOrdering(t *testing.T) {
	local := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.1", 5000), 100, 1)
	remote := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.2", 5000), 50, 1)

	controlling := NewCandidatePair(local, remote, true)
	controlled := NewCandidatePair(local, remote, false)

	// pairPriority puts min(G,D) in the high 32 bits in both roles, so the
	// two priorities differ only in the G>D bit: 1 when controlling
	// (G=100, D=50), 0 when controlled (G=50, D=100).
	assert.NotEqual(t, controlling.Priority, controlled.Priority)
	assert.Equal(t, PairStateFrozen, controlling.State)
}

func TestCandidatePairEqual(t *testing.T) {
	local := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.1", 5000), 100, 1)
	remote := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.2", 5000), 50, 1)
	other := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.3", 5000), 50, 1)

	p1 := NewCandidatePair(local, remote, true)
	p2 := NewCandidatePair(local, remote, true)
	p3 := NewCandidatePair(local, other, true)

	assert.True(t, p1.Equal(p2))
	assert.False(t, p1.Equal(p3))
	assert.False(t, p1.Equal(nil))
}

func TestCandidatePairComponentMatch(t *testing.T) {
	local := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.1", 5000), 100, 1)
	remote := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.2", 5000), 50, 1)
	pair := NewCandidatePair(local, remote, true)

	assert.True(t, pair.componentMatch(1))
	assert.False(t, pair.componentMatch(2))
}

func TestCandidatePairSocketUsesDialSocketForTCPActive(t *testing.T) {
	local := newTestHostCandidate(TransportTCPActive, NewAddress("10.0.0.1", 9), 100, 1)
	remote := newTestHostCandidate(TransportTCPPassive, NewAddress("10.0.0.2", 5000), 50, 1)
	pair := NewCandidatePair(local, remote, true)

	assert.Nil(t, pair.socket(), "no dial has happened yet")

	fake := &fakeSocket{}
	pair.dialSocket = fake
	assert.Same(t, Socket(fake), pair.socket())
}

func TestCandidatePairSocketUsesLocalSocketOtherwise(t *testing.T) {
	local := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.1", 5000), 100, 1)
	remote := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.2", 5000), 50, 1)
	pair := NewCandidatePair(local, remote, true)

	fake := &fakeSocket{}
	local.socket = fake
	assert.Same(t, Socket(fake), pair.socket())
}

// fakeSocket is a minimal Socket double for pair-socket-selection tests.
type fakeSocket struct{}

func (f *fakeSocket) SendTo(b []byte, addr Address) (int, error) { return len(b), nil }
func (f *fakeSocket) RecvFrom(b []byte) (int, Address, error)    { return 0, Address{}, nil }
func (f *fakeSocket) LocalAddr() Address                         { return Address{} }
func (f *fakeSocket) Close() error                               { return nil }
