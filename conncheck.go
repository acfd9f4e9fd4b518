package ice

import (
	"github.com/pion/stun/v3"
)

// connCheckEngine builds and drives the per-stream candidate-pair list,
// running the explicit Frozen/Waiting/In-Progress/Succeeded/Failed state
// machine and cross-stream foundation unfreezing.
type connCheckEngine struct {
	agent *Agent
	txns  *transactionTable

	triggered []*CandidatePair
}

func newConnCheckEngine(agent *Agent) *connCheckEngine {
	return &connCheckEngine{agent: agent, txns: newTransactionTable()}
}

// rebuildPairs performs the pair list construction step: cross
// product of local x remote candidates per component with matching
// component id and compatible transport, discarding srflx-as-local (use
// its base instead), computing priority, sorting descending, and
// capping to Options.MaxConnectivityChecks.
func (e *connCheckEngine) rebuildPairs(stream *Stream) {
	controlling := e.agent.isControlling()
	for _, comp := range stream.componentList() {
		locals := comp.localCandidates()
		remotes := comp.remoteCandidates()
		for _, local := range locals {
			if local.Typ == CandidateTypeServerReflexive {
				// Discard pairs whose local candidate is server-reflexive;
				// use its base instead.
				continue
			}
			for _, remote := range remotes {
				if local.Component != remote.Component {
					continue
				}
				if !local.Proto.compatible(remote.Proto) {
					continue
				}
				pair := NewCandidatePair(local, remote, controlling)
				if stream.addPair(pair, e.agent.options.MaxConnectivityChecks) {
					e.freezeOrWait(stream, pair)
				}
			}
		}
	}
}

// freezeOrWait implements freezing: the first pair for a foundation goes
// Waiting; later pairs sharing that foundation go Frozen.
func (e *connCheckEngine) freezeOrWait(stream *Stream, pair *CandidatePair) {
	for _, other := range stream.pairList() {
		if other == pair {
			continue
		}
		if other.Foundation == pair.Foundation && other.State != PairStateFrozen {
			pair.State = PairStateFrozen
			return
		}
	}
	pair.State = PairStateWaiting
}

// unfreeze unfreezes every Frozen pair across all streams sharing
// foundation: a pair succeeding unfreezes every frozen pair with the
// same foundation across all streams.
func (e *connCheckEngine) unfreeze(foundation string) {
	for _, stream := range e.agent.streamList() {
		for _, pair := range stream.pairList() {
			if pair.State == PairStateFrozen && pair.Foundation == foundation {
				pair.State = PairStateWaiting
			}
		}
	}
}

// tick runs one scheduling step: Waiting pick, then triggered, then
// timer housekeeping, then terminal-state evaluation.
func (e *connCheckEngine) tick(stream *Stream) {
	if pair := e.pickWaiting(stream); pair != nil {
		e.sendCheck(stream, pair, false)
		return
	}
	if pair := e.popTriggered(); pair != nil {
		e.sendCheck(stream, pair, true)
		return
	}
	if e.runTimerHousekeeping(stream) {
		return
	}
	e.evaluateTerminal(stream)
}

func (e *connCheckEngine) pickWaiting(stream *Stream) *CandidatePair {
	var best *CandidatePair
	for _, pair := range stream.pairList() {
		if pair.State != PairStateWaiting {
			continue
		}
		if pair.Local.Proto == TransportTCPActive && pair.dialSocket == nil && pair.dialing {
			continue // already dialing; let other pairs take a turn meanwhile
		}
		if best == nil || pair.Priority > best.Priority {
			best = pair
		}
	}
	return best
}

func (e *connCheckEngine) popTriggered() *CandidatePair {
	if len(e.triggered) == 0 {
		return nil
	}
	pair := e.triggered[0]
	e.triggered = e.triggered[1:]
	return pair
}

// triggerCheck enqueues an immediate check for pair, used when an inbound
// Binding Request names a pair that is not already In-Progress.
func (e *connCheckEngine) triggerCheck(pair *CandidatePair) {
	e.triggered = append(e.triggered, pair)
}

func (e *connCheckEngine) sendCheck(stream *Stream, pair *CandidatePair, triggered bool) {
	sock := pair.socket()
	if sock == nil {
		if pair.Local.Proto != TransportTCPActive {
			return
		}
		if pair.retries >= e.agent.options.StunMaxRetransmits {
			pair.State = PairStateFailed
			return
		}
		if !pair.dialing {
			pair.dialing = true
			pair.retries++
			go e.dialActiveTCP(stream, pair)
		}
		return
	}

	useCandidate := e.agent.shouldUseCandidate(stream, pair)
	username := stream.remoteUfragFor() + ":" + stream.localUfragFor()
	_, remotePwd := stream.remoteCredentials()

	var nomination uint32
	if useCandidate {
		nomination = e.agent.nextNomination()
	}
	msg, err := newBindingRequestWithNomination(username, e.agent.peerReflexivePriorityFor(pair), e.agent.role(), e.agent.tieBreaker, useCandidate, nomination, []byte(remotePwd), flagsFor(e.agent.options.Compatibility))
	if err != nil {
		pair.State = PairStateFailed
		return
	}
	pair.State = PairStateInProgress
	pair.transaction = &stunTransaction{id: msg.TransactionID, deadline: nowFunc().Add(e.agent.options.StunInitialTimeout).UnixNano(), raw: msg.Raw}
	e.txns.remember(msg.TransactionID, pair)
	_, _ = sock.SendTo(msg.Raw, pair.Remote.Addr)
}

// dialActiveTCP opens the outbound half of an ICE-TCP active/passive
// pairing (RFC 6544 §5.2): pair.Local is a TCP-active candidate with no
// socket of its own, so the connection is dialed lazily, the first time
// a check would use this specific pair; a failed dial clears
// pair.dialing so a later tick can dial again. Once connected, the
// pair stays Waiting and is picked up again on a later tick.
func (e *connCheckEngine) dialActiveTCP(stream *Stream, pair *CandidatePair) {
	conn, err := dialTCPCandidate(e.agent.options, pair.Remote.Addr)
	if err != nil {
		pair.dialing = false
		return
	}
	comp := stream.Component(pair.Local.Component)
	if comp == nil {
		conn.Close() //nolint:errcheck
		pair.dialing = false
		return
	}
	pair.dialSocket = conn
	e.agent.onTCPAccepted(stream, comp, pair.Local, conn)
	pair.dialing = false
	pair.retries = 0 // dial attempts and check retransmissions are tracked on the same counter, reset on the handoff between them
}

// runTimerHousekeeping retransmits In-Progress pairs whose timer fires,
// or expires them to Failed once the Rc-entry schedule is used up (the
// first transmission plus Rc-1 retransmissions). Returns true if it did
// any work this tick.
func (e *connCheckEngine) runTimerHousekeeping(stream *Stream) bool {
	did := false
	now := nowFunc()
	for _, pair := range stream.pairList() {
		if pair.State != PairStateInProgress || pair.transaction == nil {
			continue
		}
		if now.UnixNano() < pair.transaction.deadline {
			continue
		}
		did = true
		schedule := retransmitSchedule(e.agent.options.StunInitialTimeout, e.agent.options.StunMaxRetransmits)
		pair.retries++
		if pair.retries >= len(schedule) {
			e.txns.forget(pair.transaction.id)
			pair.State = PairStateFailed
			pair.transaction = nil
			continue
		}
		pair.transaction.deadline = now.Add(schedule[pair.retries]).UnixNano()
		if sock := pair.socket(); sock != nil && pair.transaction.raw != nil {
			_, _ = sock.SendTo(pair.transaction.raw, pair.Remote.Addr)
		}
	}
	return did
}

// evaluateTerminal runs once all pairs are terminal: each component with
// no selected pair that is not already Failed is handed to
// maybeFailAfterIdle, which declares it Failed without a grace period.
func (e *connCheckEngine) evaluateTerminal(stream *Stream) {
	pairs := stream.pairList()
	if len(pairs) == 0 {
		return
	}
	for _, pair := range pairs {
		if pair.State == PairStateFrozen || pair.State == PairStateWaiting || pair.State == PairStateInProgress {
			return
		}
	}
	for _, comp := range stream.componentList() {
		if comp.selectedPair() != nil {
			continue
		}
		if comp.State() == ComponentStateFailed {
			continue
		}
		e.agent.maybeFailAfterIdle(stream, comp)
	}
}

// handleBindingRequest handles an inbound Binding Request: authenticate,
// learn a peer-reflexive candidate if the source is unknown, resolve
// role conflicts (487), respond with Binding Success, and nominate when
// applicable.
func (e *connCheckEngine) handleBindingRequest(stream *Stream, comp *Component, msg *stun.Message, from Address) {
	_, localPwd := stream.LocalCredentials()
	if err := slowValidate(msg, []byte(localPwd), true); err != nil {
		return
	}

	if stream.markInitialBindingRequestReceived() {
		e.agent.emitInitialBindingRequestReceived(stream.ID)
	}

	peerRole, tieBreaker, hasRole := getRole(msg)
	if hasRole && peerRole == e.agent.role() {
		if e.agent.winsTieBreak(tieBreaker) {
			resp, err := newRoleConflictResponse(msg.TransactionID, []byte(localPwd))
			if err == nil {
				_, _ = comp.socketFor(from).SendTo(resp.Raw, from)
			}
			return
		}
		e.agent.switchRole()
	}

	pair := e.findOrLearnPair(stream, comp, from, msg)
	if pair != nil {
		pair.lastActivity.store(nowFunc())
	}

	resp, err := newBindingSuccess(msg.TransactionID, from, []byte(localPwd), flagsFor(e.agent.options.Compatibility))
	if err == nil && pair != nil {
		if sock := pair.socket(); sock != nil {
			_, _ = sock.SendTo(resp.Raw, from)
		}
	}

	if pair != nil && pair.State != PairStateInProgress {
		e.triggerCheck(pair)
	}

	useCandidate := hasUseCandidate(msg) || e.agent.options.NominationMode == NominationModeAggressive
	if pair != nil && pair.State == PairStateSucceeded && useCandidate {
		switch current := comp.selectedPair(); {
		case current == nil:
			e.nominate(stream, comp, pair)
		case current != pair:
			if nomination, ok := getNomination(msg); ok && e.agent.acceptRenomination(stream, comp, pair, nomination) {
				e.nominate(stream, comp, pair)
			}
		}
	}
}

// handleBindingError handles an inbound Binding Error response. A 487
// means our tie-breaker lost a role conflict, so we swap role and resume
// checks on the same pair. Any other error code authenticates as a
// genuine failure: if the request was a consent check on the component's
// currently selected pair, that counts as an authenticated failure
// response and fails the component immediately rather than waiting out
// the silence timeout.
func (e *connCheckEngine) handleBindingError(stream *Stream, msg *stun.Message) {
	pair, ok := e.txns.find(msg.TransactionID)
	if !ok {
		return
	}
	e.txns.forget(msg.TransactionID)

	var ec stun.ErrorCodeAttribute
	if err := ec.GetFrom(msg); err == nil && ec.Code == errorCodeRoleConflict {
		e.agent.switchRole()
		pair.transaction = nil
		pair.State = PairStateWaiting
		return
	}

	comp := stream.Component(pair.Local.Component)
	if comp != nil && comp.selectedPair() == pair {
		_ = e.agent.ConsentLost(stream.ID, comp.ID)
		return
	}
	pair.transaction = nil
	pair.State = PairStateFailed
}

// findOrLearnPair locates the pair a Binding Request's source corresponds
// to, learning a peer-reflexive remote candidate first if from is new.
func (e *connCheckEngine) findOrLearnPair(stream *Stream, comp *Component, from Address, msg *stun.Message) *CandidatePair {
	for _, remote := range comp.remoteCandidates() {
		if remote.Addr.Equal(from) {
			return e.findPairFor(stream, comp, from)
		}
	}
	priority, _ := getPriority(msg)
	foundation := stream.fTable.assignRemote()
	prflx := NewPeerReflexiveCandidate(stream.ID, comp.ID, from, TransportUDP, priority, foundation)
	if comp.addRemoteCandidate(prflx) {
		e.agent.emitNewRemoteCandidate(prflx)
	}
	e.rebuildPairs(stream)
	return e.findPairFor(stream, comp, from)
}

func (e *connCheckEngine) findPairFor(stream *Stream, comp *Component, remote Address) *CandidatePair {
	for _, pair := range stream.pairList() {
		if pair.componentMatch(comp.ID) && pair.Remote.Addr.Equal(remote) {
			return pair
		}
	}
	return nil
}

// handleBindingSuccess handles an inbound Binding Success: match by
// transaction id, detect a peer-reflexive local candidate if
// XOR-MAPPED-ADDRESS differs from the sent pair's local address, mark
// Succeeded, unfreeze, and nominate if criteria are met.
func (e *connCheckEngine) handleBindingSuccess(stream *Stream, msg *stun.Message) {
	pair, ok := e.txns.find(msg.TransactionID)
	if !ok {
		return
	}
	e.txns.forget(msg.TransactionID)
	pair.transaction = nil

	var xor stun.XORMappedAddress
	if err := xor.GetFrom(msg); err == nil {
		mapped := Address{IP: xor.IP, Port: xor.Port}
		if !mapped.Equal(pair.Local.Addr) {
			e.agent.handleDiscoveredPeerReflexiveLocal(stream, pair, mapped)
		}
	}

	pair.State = PairStateSucceeded
	pair.lastActivity.store(nowFunc())
	e.unfreeze(pair.Foundation)

	comp := stream.Component(pair.Local.Component)
	if comp == nil {
		return
	}
	if e.agent.shouldNominateOnSuccess(stream, comp, pair) {
		e.nominate(stream, comp, pair)
	}
}

// nominate installs pair as the component's selected pair and
// transitions it to Ready.
func (e *connCheckEngine) nominate(stream *Stream, comp *Component, pair *CandidatePair) {
	pair.Nominated = true
	comp.setSelectedPair(pair, e.agent.deliverToUser(stream.ID, comp.ID))
	comp.setState(ComponentStateReady)
	e.agent.emitNewSelectedPair(stream.ID, comp.ID, pair)
	if !e.agent.options.Reliable {
		e.agent.emitTransportWritable(stream.ID, comp.ID)
	}
}

func (s *Stream) remoteUfragFor() string {
	ufrag, _ := s.remoteCredentials()
	return ufrag
}

func (s *Stream) localUfragFor() string {
	ufrag, _ := s.LocalCredentials()
	return ufrag
}

func (c *Component) socketFor(remote Address) Socket {
	if pair := c.selectedPair(); pair != nil {
		return pair.socket()
	}
	for _, cand := range c.localCandidates() {
		if cand.socket != nil {
			return cand.socket
		}
	}
	return nil
}
