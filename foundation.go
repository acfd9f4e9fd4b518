package ice

import "strconv"

// foundationTable assigns and remembers local candidate foundations,
// reusing a foundation across candidates that share (type, transport,
// base address ignoring port, and — for relay — TURN server address).
// Remote peer-reflexive foundations come from a
// separate counter ("remote1", "remote2", …) with collision avoidance.
type foundationTable struct {
	next       int
	remoteNext int
	remoteSeen map[string]bool
}

func newFoundationTable() *foundationTable {
	return &foundationTable{remoteSeen: make(map[string]bool)}
}

// assignLocal returns the foundation to use for a newly-gathered local
// candidate, reusing an existing one from existing if the equivalence
// class (type, transport, base IP ignoring port, TURN server) matches.
func (f *foundationTable) assignLocal(c *Candidate, existing []*Candidate) string {
	for _, other := range existing {
		if other.sameFoundationClass(c) {
			return other.Foundation
		}
	}
	f.next++
	return strconv.Itoa(f.next)
}

// assignRemote returns a fresh "remoteN" foundation for a peer-reflexive
// candidate discovered from an unrecognized source address.
func (f *foundationTable) assignRemote() string {
	for {
		f.remoteNext++
		candidate := "remote" + strconv.Itoa(f.remoteNext)
		if !f.remoteSeen[candidate] {
			f.remoteSeen[candidate] = true
			return candidate
		}
	}
}

// noteRemote records a foundation learned via SetRemoteCandidates so a
// later peer-reflexive discovery does not collide with it.
func (f *foundationTable) noteRemote(foundation string) {
	f.remoteSeen[foundation] = true
}

// sameFoundationClass reports whether c and other belong to the same
// foundation equivalence class: equal type, transport, base address
// (ignoring port), and — for relay — the
// same TURN server address.
func (c *Candidate) sameFoundationClass(other *Candidate) bool {
	if c.Typ != other.Typ || c.Proto != other.Proto {
		return false
	}
	if !c.BaseAddr.EqualIgnoringPort(other.BaseAddr) {
		return false
	}
	if c.Typ == CandidateTypeRelay {
		return c.TurnServer.Equal(other.TurnServer)
	}
	return true
}

// pairFoundation forms a pair foundation as "local.foundation:remote.foundation".
func pairFoundation(local, remote *Candidate) string {
	return local.Foundation + ":" + remote.Foundation
}
