package ice

import (
	"sync"

	"github.com/pion/stun/v3"
)

// transactionTable implements transaction tracking: remember/forget/find
// by transaction id, scoped to one agent so that
// responses are correlated without touching the pair list directly.
type transactionTable struct {
	mu    sync.Mutex
	byID  map[stun.TransactionID]*CandidatePair
}

func newTransactionTable() *transactionTable {
	return &transactionTable{byID: make(map[stun.TransactionID]*CandidatePair)}
}

// remember associates id with pair; both the conncheck engine (ordinary
// and triggered checks) and the consent checker (RFC 7675 authenticated
// requests on an already-selected pair) call this once per outstanding
// request, each under its own distinct transaction id.
func (t *transactionTable) remember(id stun.TransactionID, pair *CandidatePair) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byID[id] = pair
}

func (t *transactionTable) forget(id stun.TransactionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.byID, id)
}

func (t *transactionTable) find(id stun.TransactionID) (*CandidatePair, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	pair, ok := t.byID[id]
	return pair, ok
}

// scatterBuffer is a fixed-size 1500-byte message buffer handed out from
// a sync.Pool by acquireScatterBuffer. The socket read loops allocate
// their own buffers and do not use it.
type scatterBuffer struct {
	buf [1500]byte
}

func (s *scatterBuffer) bytes() []byte { return s.buf[:] }

var scatterBufferPool = sync.Pool{
	New: func() any { return new(scatterBuffer) },
}

func acquireScatterBuffer() *scatterBuffer {
	return scatterBufferPool.Get().(*scatterBuffer)
}

func releaseScatterBuffer(b *scatterBuffer) {
	scatterBufferPool.Put(b)
}
