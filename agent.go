package ice

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/stun/v3"
)

// Agent is the ICE agent: a stream registry, a per-agent tie-breaker, the
// discovery/connectivity-check/demultiplex engines, and the
// deferred-signal queue that lets an Observer re-enter the agent without
// deadlocking. Structurally this generalizes a single-stream, single-role
// ICE agent with callbacks wired directly into a PeerConnection into a
// multi-stream library entry point with a typed Observer in place of bare
// closures.
//
// Locking uses fine-grained mutexes rather than one global lock: each
// subsystem (stream registry, discovery transactions, consent checkers)
// owns a narrow mutex instead of funneling everything through a single
// one. What stays load-bearing for correctness — signals never firing
// while internal state is mid-mutation, and an Observer being free to
// call back into the Agent — is preserved via the signalQueue.
type Agent struct {
	options Options

	streamsMu    sync.RWMutex
	streams      map[int]*Stream
	nextStreamID int

	tieBreaker    uint64
	roleBits      atomic.Int32
	nominationSeq atomic.Uint32

	obsMu    sync.Mutex
	observer Observer
	signals  signalQueue

	conncheck *connCheckEngine
	discovery *discoveryEngine
	demux     *demultiplexer

	discoveryMu   sync.Mutex
	discoveryTxns map[stun.TransactionID]*discoveryItem

	consentMu       sync.Mutex
	consentCheckers map[componentKey]*consentChecker

	turnMu   sync.Mutex
	turnByID map[componentKey][]*turnAllocation

	mdns *mdnsObfuscator

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup

	log logging.LeveledLogger
}

type componentKey struct {
	stream    int
	component int
}

// NewAgent constructs an Agent from the supplied Options, generating its
// random tie-breaker and starting the discovery/conncheck pacing loop.
func NewAgent(opts ...Option) (*Agent, error) {
	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.validate(); err != nil {
		return nil, err
	}

	tieBreaker, err := randomUint64()
	if err != nil {
		return nil, &InputInvalidError{Err: err}
	}

	a := &Agent{
		options:         options,
		streams:         make(map[int]*Stream),
		tieBreaker:      tieBreaker,
		discoveryTxns:   make(map[stun.TransactionID]*discoveryItem),
		consentCheckers: make(map[componentKey]*consentChecker),
		turnByID:        make(map[componentKey][]*turnAllocation),
		closeCh:         make(chan struct{}),
		log:             options.LoggerFactory.NewLogger("ice"),
	}
	if options.ControllingMode {
		a.roleBits.Store(int32(RoleControlling))
	} else {
		a.roleBits.Store(int32(RoleControlled))
	}

	a.conncheck = newConnCheckEngine(a)
	a.discovery = newDiscoveryEngine(a)
	a.demux = newDemultiplexer(a)

	if options.MDNSMode == MDNSModeEnabled {
		conn, err := newMDNSConn()
		if err == nil {
			a.mdns = newMDNSObfuscator(conn)
		}
	}

	a.wg.Add(1)
	go a.pacingLoop()

	return a, nil
}

func randomUint64() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b[:]), nil
}

// SetObserver installs the Observer signals are delivered to; nil is
// equivalent to a NopObserver.
func (a *Agent) SetObserver(o Observer) {
	a.obsMu.Lock()
	a.observer = o
	a.obsMu.Unlock()
}

func (a *Agent) obs() Observer {
	a.obsMu.Lock()
	defer a.obsMu.Unlock()
	if a.observer == nil {
		return NopObserver{}
	}
	return a.observer
}

// emit queues fn for delivery once the current call's state mutation is
// complete, then runs the queue immediately: since none of this module's
// internal engines nest one mutation inside another's critical section,
// draining inline rather than at a single top-level unlock is equivalent
// for what matters: the callback is never invoked while the
// candidate/pair/stream map it reads is being mutated, while staying
// simple enough not to require a literal single global mutex.
func (a *Agent) emit(fn func()) {
	a.signals.push(fn)
	runSignals(a.signals.drain())
}

func (a *Agent) emitNewCandidate(cand *Candidate) {
	a.emit(func() { a.obs().OnNewCandidate(cand) })
}

func (a *Agent) emitNewRemoteCandidate(cand *Candidate) {
	a.emit(func() { a.obs().OnNewRemoteCandidate(cand) })
}

func (a *Agent) emitNewSelectedPair(streamID, componentID int, pair *CandidatePair) {
	a.attachPseudoTCP(streamID, componentID, pair)
	a.emit(func() { a.obs().OnNewSelectedPair(streamID, componentID, pair.Local, pair.Remote) })
}

// attachPseudoTCP builds the reliable-stream engine over pair the first
// time a component is selected under Options.Reliable, wiring its output
// to the pair's socket and its readable callback to user delivery. The
// controlling side performs the active open since it is the side that
// just finished nominating.
func (a *Agent) attachPseudoTCP(streamID, componentID int, pair *CandidatePair) {
	if !a.options.Reliable {
		return
	}
	stream := a.streamByID(streamID)
	if stream == nil {
		return
	}
	comp := stream.Component(componentID)
	if comp == nil || comp.ptcp != nil {
		return
	}
	deliver := a.deliverToUser(streamID, componentID)
	engine := newPseudoTCP(func(b []byte) {
		_, _ = pair.Local.socket.SendTo(b, pair.Remote.Addr)
	})
	engine.onReadable = func() {
		buf := make([]byte, 64*1024)
		for {
			n, err := engine.recv(buf)
			if err != nil {
				return
			}
			deliver(buf[:n], pair.Remote.Addr)
		}
	}
	engine.onOpened = func() { a.emitTransportWritable(streamID, componentID) }
	engine.onClosed = func(error) { comp.setState(ComponentStateFailed) }
	comp.ptcp = engine
	if a.isControlling() {
		engine.connect()
	}
}

// emitGatheringDone reports candidate-gathering-done for every stream
// whose discovery items have all completed and that has not already been
// reported, since the discovery engine paces all streams' items on one
// shared schedule rather than one ticker per stream.
func (a *Agent) emitGatheringDone() {
	if !a.discovery.allDone() {
		return
	}
	for _, stream := range a.streamList() {
		if stream.isGatheringDone() {
			continue
		}
		stream.markGatheringDone()
		id := stream.ID
		a.emit(func() { a.obs().OnCandidateGatheringDone(id) })
	}
}

func (a *Agent) emitInitialBindingRequestReceived(streamID int) {
	a.emit(func() { a.obs().OnInitialBindingRequestReceived(streamID) })
}

func (a *Agent) emitTransportWritable(streamID, componentID int) {
	a.emit(func() { a.obs().OnTransportWritable(streamID, componentID) })
}

func (a *Agent) onComponentState(streamID, componentID int, state ComponentState) {
	a.emit(func() { a.obs().OnComponentStateChange(streamID, componentID, state) })
	if state == ComponentStateReady {
		a.startConsentChecker(streamID, componentID)
	}
}

// deliverToUser returns the callback the selected-pair flush and the
// demultiplexer's direct-delivery path use to hand payload bytes to the
// user via the component's inbox.
func (a *Agent) deliverToUser(streamID, componentID int) func(data []byte, from Address) {
	return func(data []byte, from Address) {
		stream := a.streamByID(streamID)
		if stream == nil {
			return
		}
		comp := stream.Component(componentID)
		if comp == nil {
			return
		}
		comp.deliver(data, from)
	}
}

// isControlling / role / tieBreaker / winsTieBreak / switchRole implement
// role-conflict resolution. roleBits is read from socket read-loop
// goroutines and from the consent-checker's independent timer goroutine,
// so it is stored as an atomic rather than guarded by a
// subsystem-specific mutex.
func (a *Agent) isControlling() bool { return a.role() == RoleControlling }

func (a *Agent) role() Role { return Role(a.roleBits.Load()) }

func (a *Agent) winsTieBreak(peerTieBreaker uint64) bool {
	return a.tieBreaker >= peerTieBreaker
}

// nextNomination returns the next NOMINATION counter value to send when
// SupportRenomination is enabled, or 0 (meaning "omit the attribute")
// otherwise.
func (a *Agent) nextNomination() uint32 {
	if !a.options.SupportRenomination {
		return 0
	}
	return a.nominationSeq.Add(1)
}

func (a *Agent) switchRole() {
	next := a.role().opposite()
	a.roleBits.Store(int32(next))
	controlling := next == RoleControlling
	for _, stream := range a.streamList() {
		for _, pair := range stream.pairList() {
			if controlling {
				pair.Priority = pairPriority(pair.Local.Priority, pair.Remote.Priority)
			} else {
				pair.Priority = pairPriority(pair.Remote.Priority, pair.Local.Priority)
			}
		}
	}
}

// peerReflexivePriorityFor computes the PRIORITY attribute value to send
// on an outbound check for pair: the priority this local candidate would
// carry were it discovered as peer-reflexive, per RFC 8445 §5.1.1.
func (a *Agent) peerReflexivePriorityFor(pair *CandidatePair) uint32 {
	local := pair.Local
	pref := localPreference(local.Addr.IPVersion(), local.Proto.IsReliable())
	return candidatePriority(a.options.Compatibility, CandidateTypePeerReflexive, pref, local.Component)
}

// handleDiscoveredPeerReflexiveLocal handles the case where a
// successful check whose XOR-MAPPED-ADDRESS does not match the local
// candidate we sent from indicates our own address is peer-reflexive from
// the remote's vantage point (typically behind a symmetric NAT); the pair
// is rewired onto a newly learned local candidate so later checks and the
// final selected pair report the address the peer actually sees.
func (a *Agent) handleDiscoveredPeerReflexiveLocal(stream *Stream, pair *CandidatePair, mapped Address) {
	comp := stream.Component(pair.Local.Component)
	if comp == nil {
		return
	}
	for _, existing := range comp.localCandidates() {
		if existing.Addr.Equal(mapped) {
			pair.Local = existing
			return
		}
	}
	prflx := NewPeerReflexiveCandidate(stream.ID, comp.ID, mapped, pair.Local.Proto, pair.Local.Priority, pair.Local.Foundation)
	prflx.socket = pair.Local.socket
	if comp.addLocalCandidate(prflx) {
		a.emitNewCandidate(prflx)
	}
	pair.Local = prflx
}

// maybeFailAfterIdle runs once every pair for a component is terminal and
// none succeeded: it declares the component Failed at once, and (with
// trickle ICE) defers that declaration until the peer has signaled
// gathering-done. Options.IdleTimeout is not applied; there is no grace
// period before Failed.
func (a *Agent) maybeFailAfterIdle(stream *Stream, comp *Component) {
	if a.options.ICETrickle && !stream.isPeerGatheringDone() {
		return
	}
	comp.setState(ComponentStateFailed)
}

func (a *Agent) streamList() []*Stream {
	a.streamsMu.RLock()
	defer a.streamsMu.RUnlock()
	out := make([]*Stream, 0, len(a.streams))
	for _, s := range a.streams {
		out = append(out, s)
	}
	return out
}

func (a *Agent) streamByID(id int) *Stream {
	a.streamsMu.RLock()
	defer a.streamsMu.RUnlock()
	return a.streams[id]
}

// CreateStream creates a new media stream with componentCount components.
func (a *Agent) CreateStream(name string, componentCount int) (int, error) {
	if componentCount <= 0 {
		return 0, &InputInvalidError{Err: errString("ice: component count must be positive")}
	}
	a.streamsMu.Lock()
	a.nextStreamID++
	id := a.nextStreamID
	a.streamsMu.Unlock()

	stream, err := newStream(a, id, name, componentCount)
	if err != nil {
		return 0, err
	}

	a.streamsMu.Lock()
	a.streams[id] = stream
	a.streamsMu.Unlock()
	return id, nil
}

// GatherCandidates starts candidate gathering for a stream; starting
// discovery is idempotent per stream (second call is a silent no-op).
func (a *Agent) GatherCandidates(streamID int) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	if !stream.markGathering() {
		return nil
	}
	for _, comp := range stream.componentList() {
		comp.setState(ComponentStateGathering)
		hosts, err := a.discovery.gatherHostCandidates(stream, comp)
		if err != nil {
			continue
		}
		for _, host := range hosts {
			a.discovery.queueReflexiveAndRelay(host)
			go a.runSocketReadLoop(stream, comp, host)
		}
	}
	return nil
}

// RemoveStream detaches the stream synchronously (no further packets are
// dispatched to it) and releases its TURN allocations and sockets.
func (a *Agent) RemoveStream(streamID int) error {
	a.streamsMu.Lock()
	stream, ok := a.streams[streamID]
	if ok {
		delete(a.streams, streamID)
	}
	a.streamsMu.Unlock()
	if !ok {
		return ErrStreamNotFound
	}

	for _, comp := range stream.componentList() {
		a.stopConsentChecker(streamID, comp.ID)
		a.releaseTurnAllocations(streamID, comp.ID)
	}
	stream.close()

	a.emit(func() { a.obs().OnStreamsRemoved([]int{streamID}) })
	return nil
}

// SetRemoteCredentials installs the peer's ufrag/pwd for a stream.
func (a *Agent) SetRemoteCredentials(streamID int, ufrag, pwd string) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	stream.SetRemoteCredentials(ufrag, pwd)
	return nil
}

// LocalCredentials returns a stream's local ufrag/pwd, for the caller to
// hand to its own signaling channel.
func (a *Agent) LocalCredentials(streamID int) (ufrag, pwd string, err error) {
	stream := a.streamByID(streamID)
	if stream == nil {
		return "", "", ErrStreamNotFound
	}
	ufrag, pwd = stream.LocalCredentials()
	return ufrag, pwd, nil
}

// SetRemoteCandidates idempotently merges candidates into the
// component's remote list and rebuilds the conncheck pair list for
// anything newly added.
func (a *Agent) SetRemoteCandidates(streamID, componentID int, candidates []*Candidate) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return ErrComponentNotFound
	}
	added := false
	for _, cand := range candidates {
		if comp.addRemoteCandidate(cand) {
			stream.fTable.noteRemote(cand.Foundation)
			added = true
			a.emitNewRemoteCandidate(cand)
		}
	}
	if added {
		a.conncheck.rebuildPairs(stream)
	}
	return nil
}

// NotifyPeerCandidateGatheringDone records the trickle-ICE
// end-of-candidates signal the application learned from the remote side
// out of band, unblocking maybeFailAfterIdle's deferred Failed rule.
func (a *Agent) NotifyPeerCandidateGatheringDone(streamID int) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	stream.markPeerGatheringDone()
	return nil
}

// Send writes bytes to the component's selected pair, or queues them to
// pseudo-TCP when Options.Reliable engaged it.
func (a *Agent) Send(streamID, componentID int, data []byte) (int, error) {
	stream := a.streamByID(streamID)
	if stream == nil {
		return 0, ErrStreamNotFound
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return 0, ErrComponentNotFound
	}
	if comp.consentLost {
		return 0, &PermissionDeniedError{Err: errString("ice: consent lost")}
	}
	pair := comp.selectedPair()
	if pair == nil {
		return 0, ErrNoCandidatePairs
	}
	if comp.ptcp != nil {
		return comp.ptcp.send(data)
	}
	n, err := pair.Local.socket.SendTo(data, pair.Remote.Addr)
	if err != nil {
		comp.setState(ComponentStateFailed)
		return n, &TransportFailedError{Err: err}
	}
	pair.Local.seen(true)
	return n, nil
}

// Recv blocks until data arrives; cancel unblocks it early with a
// Would-Block-Cancelled-shaped error.
func (a *Agent) Recv(streamID, componentID int, buf []byte, cancel <-chan struct{}) (int, Address, error) {
	stream := a.streamByID(streamID)
	if stream == nil {
		return 0, Address{}, ErrStreamNotFound
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return 0, Address{}, ErrComponentNotFound
	}
	select {
	case msg := <-comp.inbox:
		n := copy(buf, msg.data)
		return n, msg.from, nil
	case <-cancel:
		return 0, Address{}, &WouldBlockError{Err: errString("ice: recv cancelled")}
	case <-a.closeCh:
		return 0, Address{}, &BrokenPipeError{Err: errString("ice: agent closed")}
	}
}

// TryRecv is the non-blocking recv variant.
func (a *Agent) TryRecv(streamID, componentID int, buf []byte) (int, Address, error) {
	stream := a.streamByID(streamID)
	if stream == nil {
		return 0, Address{}, ErrStreamNotFound
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return 0, Address{}, ErrComponentNotFound
	}
	select {
	case msg := <-comp.inbox:
		n := copy(buf, msg.data)
		return n, msg.from, nil
	default:
		return 0, Address{}, &WouldBlockError{Err: errString("ice: no data available")}
	}
}

// Restart performs an ICE restart on every stream.
func (a *Agent) Restart() error {
	for _, stream := range a.streamList() {
		if err := stream.restart(); err != nil {
			return err
		}
	}
	return nil
}

// RestartStream performs an ICE restart on a single stream.
func (a *Agent) RestartStream(streamID int) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	return stream.restart()
}

// ConsentLost forces a component to Failed and stops its consent
// checker, as if silence or an authenticated failure had been observed.
func (a *Agent) ConsentLost(streamID, componentID int) error {
	stream := a.streamByID(streamID)
	if stream == nil {
		return ErrStreamNotFound
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return ErrComponentNotFound
	}
	comp.consentLost = true
	comp.setState(ComponentStateFailed)
	a.stopConsentChecker(streamID, componentID)
	return nil
}

// CloseAsync removes every stream (draining TURN allocations) and stops
// the pacing loop in the background, running callback once teardown
// completes.
func (a *Agent) CloseAsync(callback func()) {
	go func() {
		_ = a.Close()
		if callback != nil {
			callback()
		}
	}()
}

// Close synchronously tears down every stream and stops the pacing loop.
func (a *Agent) Close() error {
	a.closeOnce.Do(func() {
		close(a.closeCh)
	})
	for _, stream := range a.streamList() {
		_ = a.RemoveStream(stream.ID)
	}
	a.wg.Wait()
	if a.mdns != nil {
		_ = a.mdns.close()
	}
	return nil
}

// pacingLoop drives the discovery and connectivity-check engines off a
// shared Ta timer, since both share the same "at most one new
// transmission per Ta" budget.
func (a *Agent) pacingLoop() {
	defer a.wg.Done()
	interval := a.options.StunPacingTimer
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			a.discovery.tick()
			for _, stream := range a.streamList() {
				a.conncheck.tick(stream)
				for _, comp := range stream.componentList() {
					if comp.ptcp != nil {
						comp.ptcp.retransmitDue()
					}
				}
			}
		case <-a.closeCh:
			return
		}
	}
}

// runSocketReadLoop pumps RecvFrom on cand's socket into the
// demultiplexer until the socket closes; one goroutine per gathered
// socket.
func (a *Agent) runSocketReadLoop(stream *Stream, comp *Component, cand *Candidate) {
	buf := make([]byte, 64*1024)
	for {
		n, from, err := cand.socket.RecvFrom(buf)
		if err != nil {
			if _, ok := err.(*WouldBlockError); ok {
				return // passive TCP listen sockets: accepted children get their own loop
			}
			return
		}
		if n == 0 {
			continue
		}
		a.demux.onReadable(stream, comp, cand, buf[:n], from)
	}
}

// onTCPAccepted starts a read loop for a freshly accepted ICE-TCP
// connection, attributing its traffic to the passive candidate that
// listened for it.
func (a *Agent) onTCPAccepted(stream *Stream, comp *Component, cand *Candidate, conn *tcpConnSocket) {
	buf := make([]byte, 64*1024)
	go func() {
		for {
			n, from, err := conn.RecvFrom(buf)
			if err != nil {
				return
			}
			if n == 0 {
				continue
			}
			a.demux.onReadable(stream, comp, cand, buf[:n], from)
		}
	}()
}

// sendSrflxRequest sends (or retransmits) the plain Binding Request for a
// server-reflexive discovery item.
func (a *Agent) sendSrflxRequest(item *discoveryItem) {
	msg, err := newDiscoveryBindingRequest()
	if err != nil {
		item.done = true
		return
	}
	item.transactionID = msg.TransactionID
	a.discoveryMu.Lock()
	a.discoveryTxns[msg.TransactionID] = item
	a.discoveryMu.Unlock()
	_, _ = item.socket.SendTo(msg.Raw, item.serverAddr)
}

// handleDiscoverySuccess matches msg against the discovery transaction
// table; if it matches a pending server-reflexive item, it builds the
// srflx candidate from XOR-MAPPED-ADDRESS and reports true (handled).
func (a *Agent) handleDiscoverySuccess(msg *stun.Message) bool {
	a.discoveryMu.Lock()
	item, ok := a.discoveryTxns[msg.TransactionID]
	if ok {
		delete(a.discoveryTxns, msg.TransactionID)
	}
	a.discoveryMu.Unlock()
	if !ok || item.kind != discoveryItemServerReflexive {
		return false
	}
	item.done = true

	mapped, err := mappedAddressFrom(msg)
	if err != nil {
		return true
	}
	stream := a.streamByID(item.streamID)
	if stream == nil {
		return true
	}
	comp := stream.Component(item.component)
	if comp == nil {
		return true
	}
	base := item.socket.LocalAddr()
	existing := comp.localCandidates()
	cand := NewServerReflexiveCandidate(item.streamID, item.component, mapped, base, a.options.Compatibility, stream.fTable, existing)
	cand.socket = item.socket
	if comp.addLocalCandidate(cand) {
		a.emitNewCandidate(cand)
	}
	return true
}

// handleDiscoveryError marks a discovery item done-but-failed when its
// STUN/TURN server returns a Binding Error.
func (a *Agent) handleDiscoveryError(msg *stun.Message) bool {
	a.discoveryMu.Lock()
	item, ok := a.discoveryTxns[msg.TransactionID]
	if ok {
		delete(a.discoveryTxns, msg.TransactionID)
	}
	a.discoveryMu.Unlock()
	if !ok {
		return false
	}
	item.done = true
	return true
}

// startRelayAllocation performs a TURN Allocate for a relay discovery
// item in its own goroutine (pion/turn/v4's client.Allocate blocks until
// the server responds), then installs the resulting relay candidate on
// success.
func (a *Agent) startRelayAllocation(item *discoveryItem) {
	go func() {
		alloc, err := dialTurn(item.turnServer, a.options.LoggerFactory)
		if err != nil {
			item.done = true
			return
		}
		alloc.scheduleRefresh(10 * time.Minute)

		stream := a.streamByID(item.streamID)
		if stream == nil {
			_ = alloc.turnClient.Close()
			item.done = true
			return
		}
		comp := stream.Component(item.component)
		if comp == nil {
			_ = alloc.turnClient.Close()
			item.done = true
			return
		}
		if !comp.addTurnServer(item.turnServer) {
			_ = alloc.turnClient.Close()
			item.done = true
			return
		}

		relaySocket := newTurnSocket(alloc)
		existing := comp.localCandidates()
		relayed := alloc.relayedAddress()
		cand := NewRelayCandidate(item.streamID, item.component, relayed, item.socket.LocalAddr(), item.turnServer, a.options.Compatibility, stream.fTable, existing)
		cand.socket = relaySocket

		key := componentKey{stream: item.streamID, component: item.component}
		a.turnMu.Lock()
		a.turnByID[key] = append(a.turnByID[key], alloc)
		a.turnMu.Unlock()

		if comp.addLocalCandidate(cand) {
			a.emitNewCandidate(cand)
			go a.runSocketReadLoop(stream, comp, cand)
		}
		item.done = true
	}()
}

// releaseTurnAllocations forgets this component's TURN bookkeeping; the
// allocations themselves are torn down when their relay candidate's
// socket is closed by Component.close (turnSocket.Close stops the
// refresh loop and releases the client), so this must not also close
// them here.
func (a *Agent) releaseTurnAllocations(streamID, componentID int) {
	key := componentKey{stream: streamID, component: componentID}
	a.turnMu.Lock()
	delete(a.turnByID, key)
	a.turnMu.Unlock()
}

// startConsentChecker launches RFC 7675 consent-freshness/keepalive
// traffic for a component the instant it reaches Ready.
func (a *Agent) startConsentChecker(streamID, componentID int) {
	stream := a.streamByID(streamID)
	if stream == nil {
		return
	}
	comp := stream.Component(componentID)
	if comp == nil {
		return
	}
	pair := comp.selectedPair()
	if pair == nil {
		return
	}
	key := componentKey{stream: streamID, component: componentID}
	checker := newConsentChecker(a, comp, pair)
	a.consentMu.Lock()
	if old, ok := a.consentCheckers[key]; ok {
		old.close()
	}
	a.consentCheckers[key] = checker
	a.consentMu.Unlock()
	go checker.run()
}

func (a *Agent) stopConsentChecker(streamID, componentID int) {
	key := componentKey{stream: streamID, component: componentID}
	a.consentMu.Lock()
	checker, ok := a.consentCheckers[key]
	delete(a.consentCheckers, key)
	a.consentMu.Unlock()
	if ok {
		checker.close()
	}
}
