package ice

import (
	"sync/atomic"
	"time"
)

// nowFunc is a seam over time.Now so tests can inject a deterministic
// clock without the agent ever calling time.Now directly.
var nowFunc = time.Now

// atomicTime is a lock-free last-seen timestamp, read concurrently by the
// consent-freshness checker and written by the packet-receive path.
type atomicTime struct {
	v atomic.Int64
}

func (t *atomicTime) store(when time.Time) {
	t.v.Store(when.UnixNano())
}

func (t *atomicTime) load() time.Time {
	ns := t.v.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (t *atomicTime) isZero() bool {
	return t.v.Load() == 0
}
