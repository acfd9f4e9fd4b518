package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCandidateTypePreferenceOrdering(t *testing.T) {
	assert.Greater(t, CandidateTypeHost.preference(), CandidateTypePeerReflexive.preference())
	assert.Greater(t, CandidateTypePeerReflexive.preference(), CandidateTypeServerReflexive.preference())
	assert.Greater(t, CandidateTypeServerReflexive.preference(), CandidateTypeRelay.preference())
}

func TestTransportCompatible(t *testing.T) {
	cases := []struct {
		local, remote Transport
		want          bool
	}{
		{TransportUDP, TransportUDP, true},
		{TransportTCPActive, TransportTCPPassive, true},
		{TransportTCPPassive, TransportTCPActive, true},
		{TransportTCPSimultaneousOpen, TransportTCPSimultaneousOpen, true},
		{TransportUDP, TransportTCPActive, false},
		{TransportTCPActive, TransportTCPActive, false},
		{TransportTCPPassive, TransportTCPPassive, false},
		{TransportTCPActive, TransportTCPSimultaneousOpen, false},
	}
	for _, c := range cases {
		assert.Equalf(t, c.want, c.local.compatible(c.remote), "%s <-> %s", c.local, c.remote)
	}
}

func TestTransportIsReliable(t *testing.T) {
	assert.False(t, TransportUDP.IsReliable())
	assert.True(t, TransportTCPActive.IsReliable())
	assert.True(t, TransportTCPPassive.IsReliable())
	assert.True(t, TransportTCPSimultaneousOpen.IsReliable())
}

func TestRoleOpposite(t *testing.T) {
	assert.Equal(t, RoleControlled, RoleControlling.opposite())
	assert.Equal(t, RoleControlling, RoleControlled.opposite())
}
