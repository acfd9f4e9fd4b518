package ice

import (
	"math/rand"
	"time"
)

const (
	consentInterval     = 5 * time.Second
	consentSilenceLimit = 30 * time.Second
	keepaliveInterval   = 25 * time.Second
)

// consentChecker implements RFC 7675 consent freshness for one component:
// once Ready, send authenticated Binding Requests every ~5s (randomized),
// treat any authenticated failure response as immediate
// consent loss, and treat 30s of silence the same way. When consent
// freshness is disabled, the same type instead runs the plain keepalive
// path (Indications every 25s, or Requests-without-failure if
// KeepaliveConncheck is set).
type consentChecker struct {
	agent *Agent
	comp  *Component
	pair  *CandidatePair

	stop chan struct{}
}

func newConsentChecker(agent *Agent, comp *Component, pair *CandidatePair) *consentChecker {
	return &consentChecker{agent: agent, comp: comp, pair: pair, stop: make(chan struct{})}
}

func (c *consentChecker) run() {
	if c.agent.options.ConsentFreshness {
		c.runConsentFreshness()
		return
	}
	c.runKeepalive()
}

func (c *consentChecker) runConsentFreshness() {
	for {
		jitter := time.Duration(rand.Int63n(int64(consentInterval / 2))) //nolint:gosec // jitter only, not security-sensitive
		wait := consentInterval + jitter - consentInterval/4
		select {
		case <-time.After(wait):
		case <-c.stop:
			return
		}
		if c.silentTooLong() {
			c.loseConsent()
			return
		}
		if err := c.sendAuthenticated(); err != nil {
			c.loseConsent()
			return
		}
	}
}

func (c *consentChecker) runKeepalive() {
	for {
		select {
		case <-time.After(keepaliveInterval):
		case <-c.stop:
			return
		}
		if c.agent.options.KeepaliveConncheck {
			_ = c.sendAuthenticated() // failure intentionally ignored; do not fail on timeout
			continue
		}
		msg, err := newBindingIndication()
		if err != nil || c.pair.Local.socket == nil {
			continue
		}
		_, _ = c.pair.Local.socket.SendTo(msg.Raw, c.pair.Remote.Addr)
	}
}

func (c *consentChecker) silentTooLong() bool {
	last := c.pair.lastActivity.load()
	if last.IsZero() {
		return false
	}
	return nowFunc().Sub(last) > consentSilenceLimit
}

// sendAuthenticated sends one consent Binding Request and registers it
// with the connectivity-check transaction table, so the same
// handleBindingSuccess/handleBindingError path that matches ordinary
// checks also matches this one: a success refreshes pair.lastActivity,
// and a genuine (non-role-conflict) failure response fails the
// component immediately instead of waiting out the silence timeout.
func (c *consentChecker) sendAuthenticated() error {
	stream := c.agent.streamByID(c.comp.StreamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	sock := c.pair.socket()
	if sock == nil {
		return ErrClosed
	}
	username := stream.remoteUfragFor() + ":" + stream.localUfragFor()
	_, pwd := stream.remoteCredentials()
	msg, err := newBindingRequest(username, c.pair.Local.Priority, c.agent.role(), c.agent.tieBreaker, false, []byte(pwd), flagsFor(c.agent.options.Compatibility))
	if err != nil {
		return err
	}
	c.agent.conncheck.txns.remember(msg.TransactionID, c.pair)
	_, err = sock.SendTo(msg.Raw, c.pair.Remote.Addr)
	return err
}

func (c *consentChecker) loseConsent() {
	c.comp.consentLost = true
	c.comp.setState(ComponentStateFailed)
}

func (c *consentChecker) close() {
	close(c.stop)
}
