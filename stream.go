package ice

import (
	"sync"

	"github.com/pion/randutil"
)

const (
	minUfragLen = 4
	pwdLen      = 22
	ufragLen    = 8
)

// Stream groups components that share a single ICE credential pair: a
// unique id, 1..n components, local/remote ufrag/pwd, a gathering flag,
// a trickle peer-gathering-done flag, the
// conncheck pair list, and a name.
type Stream struct {
	ID   int
	Name string

	agent *Agent

	mu sync.Mutex

	components map[int]*Component

	localUfrag, localPwd   string
	remoteUfrag, remotePwd string

	gathering        bool
	gatheringDone    bool
	peerGatheringDone bool
	gotInitialBindingRequest bool

	pairs []*CandidatePair

	fTable *foundationTable
}

func newStream(agent *Agent, id int, name string, componentCount int) (*Stream, error) {
	ufrag, err := randomUfrag()
	if err != nil {
		return nil, err
	}
	pwd, err := randomPwd()
	if err != nil {
		return nil, err
	}
	s := &Stream{
		ID:         id,
		Name:       name,
		agent:      agent,
		components: make(map[int]*Component),
		localUfrag: ufrag,
		localPwd:   pwd,
		fTable:     newFoundationTable(),
	}
	for i := 1; i <= componentCount; i++ {
		s.components[i] = newComponent(id, i, agent.options.MaxTurnServers, agent.onComponentState)
	}
	return s, nil
}

func randomUfrag() (string, error) {
	return randutil.GenerateCryptoRandomString(ufragLen, randutil.RunesAlpha+randutil.RunesDigit)
}

func randomPwd() (string, error) {
	return randutil.GenerateCryptoRandomString(pwdLen, randutil.RunesAlpha+randutil.RunesDigit)
}

// LocalCredentials returns the stream's local ufrag/pwd.
func (s *Stream) LocalCredentials() (ufrag, pwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.localUfrag, s.localPwd
}

// SetRemoteCredentials installs the peer's ufrag/pwd.
func (s *Stream) SetRemoteCredentials(ufrag, pwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.remoteUfrag, s.remotePwd = ufrag, pwd
}

func (s *Stream) remoteCredentials() (ufrag, pwd string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remoteUfrag, s.remotePwd
}

// Component returns the component with the given id, or nil.
func (s *Stream) Component(id int) *Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.components[id]
}

func (s *Stream) componentList() []*Component {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Component, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c)
	}
	return out
}

func (s *Stream) markGathering() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gathering {
		return false
	}
	s.gathering = true
	return true
}

func (s *Stream) markGatheringDone() {
	s.mu.Lock()
	s.gatheringDone = true
	s.mu.Unlock()
}

func (s *Stream) isGatheringDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gatheringDone
}

// markInitialBindingRequestReceived reports true the first time it is
// called for this stream, false on every call after.
func (s *Stream) markInitialBindingRequestReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gotInitialBindingRequest {
		return false
	}
	s.gotInitialBindingRequest = true
	return true
}

func (s *Stream) markPeerGatheringDone() {
	s.mu.Lock()
	s.peerGatheringDone = true
	s.mu.Unlock()
}

func (s *Stream) isPeerGatheringDone() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerGatheringDone
}

// addPair appends pair to the conncheck list if an equal pair is not
// already present, honoring MaxConnectivityChecks by dropping the
// lowest-priority pair when the list would overflow: with
// max-connectivity-checks = 1, only the top-priority pair is retained.
func (s *Stream) addPair(pair *CandidatePair, max int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.pairs {
		if existing.Equal(pair) {
			return false
		}
	}
	s.pairs = append(s.pairs, pair)
	sortPairsByPriority(s.pairs)
	if max > 0 && len(s.pairs) > max {
		s.pairs = s.pairs[:max]
	}
	return true
}

func (s *Stream) pairList() []*CandidatePair {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*CandidatePair, len(s.pairs))
	copy(out, s.pairs)
	return out
}

func sortPairsByPriority(pairs []*CandidatePair) {
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && pairs[j].Priority > pairs[j-1].Priority; j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
}

// restart regenerates local credentials, clears remote candidates and the
// conncheck list, and moves every component back to Gathering.
func (s *Stream) restart() error {
	ufrag, err := randomUfrag()
	if err != nil {
		return err
	}
	pwd, err := randomPwd()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.localUfrag, s.localPwd = ufrag, pwd
	s.remoteUfrag, s.remotePwd = "", ""
	s.pairs = nil
	s.gathering = false
	s.gatheringDone = false
	s.peerGatheringDone = false
	s.gotInitialBindingRequest = false
	s.fTable = newFoundationTable()
	comps := s.componentListLocked()
	s.mu.Unlock()

	for _, c := range comps {
		c.mu.Lock()
		c.remote = nil
		c.selected = nil
		changed := c.state != ComponentStateGathering
		// Set directly: setState only allows Failed -> Gathering.
		c.state = ComponentStateGathering
		c.mu.Unlock()
		if changed && c.notify != nil {
			c.notify(c.StreamID, c.ID, ComponentStateGathering)
		}
	}
	return nil
}

func (s *Stream) componentListLocked() []*Component {
	out := make([]*Component, 0, len(s.components))
	for _, c := range s.components {
		out = append(out, c)
	}
	return out
}

func (s *Stream) close() {
	for _, c := range s.componentList() {
		c.close()
	}
}
