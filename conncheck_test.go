package ice

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestStream(t *testing.T) (*Agent, *Stream) {
	t.Helper()
	agent, err := NewAgent(WithControllingMode(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = agent.Close() })

	streamID, err := agent.CreateStream("test", 1)
	require.NoError(t, err)
	stream := agent.streamByID(streamID)
	require.NotNil(t, stream)
	return agent, stream
}

func TestPickWaitingSkipsPairsCurrentlyDialing(t *testing.T) {
	agent, stream := newTestStream(t)

	activeLocal := newTestHostCandidate(TransportTCPActive, NewAddress("10.0.0.1", 9), 200, 1)
	passiveRemote := newTestHostCandidate(TransportTCPPassive, NewAddress("10.0.0.2", 5000), 50, 1)
	dialingPair := NewCandidatePair(activeLocal, passiveRemote, true)
	dialingPair.State = PairStateWaiting
	dialingPair.dialing = true

	udpLocal := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.1", 6000), 10, 1)
	udpRemote := newTestHostCandidate(TransportUDP, NewAddress("10.0.0.2", 6000), 10, 1)
	readyPair := NewCandidatePair(udpLocal, udpRemote, true)
	readyPair.State = PairStateWaiting

	require.True(t, stream.addPair(dialingPair, 10))
	require.True(t, stream.addPair(readyPair, 10))

	picked := agent.conncheck.pickWaiting(stream)
	require.NotNil(t, picked)
	require.Same(t, readyPair, picked, "the still-dialing TCP-active pair must not starve other Waiting pairs")
}

func TestSendCheckDoesNotRedialWhileOneIsInFlight(t *testing.T) {
	agent, stream := newTestStream(t)

	activeLocal := newTestHostCandidate(TransportTCPActive, NewAddress("10.0.0.1", 9), 200, 1)
	passiveRemote := newTestHostCandidate(TransportTCPPassive, NewAddress("10.0.0.2", 5000), 50, 1)
	pair := NewCandidatePair(activeLocal, passiveRemote, true)
	pair.State = PairStateWaiting
	pair.dialing = true // simulate a dial already started by an earlier tick
	pair.retries = 3

	agent.conncheck.sendCheck(stream, pair, false)

	require.True(t, pair.dialing)
	require.Equal(t, 3, pair.retries, "must not count, or start, a second dial while one is already in flight")
	require.Nil(t, pair.dialSocket)
}

func TestCandidatePairFailsAfterExhaustingDialRetries(t *testing.T) {
	agent, stream := newTestStream(t)

	activeLocal := newTestHostCandidate(TransportTCPActive, NewAddress("10.0.0.1", 9), 200, 1)
	passiveRemote := newTestHostCandidate(TransportTCPPassive, NewAddress("10.0.0.2", 5000), 50, 1)
	pair := NewCandidatePair(activeLocal, passiveRemote, true)
	pair.State = PairStateWaiting
	pair.retries = agent.options.StunMaxRetransmits

	agent.conncheck.sendCheck(stream, pair, false)
	require.Equal(t, PairStateFailed, pair.State)
}
