package ice

import (
	"net"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// discoveryItemKind distinguishes the two non-host gathering
// transaction kinds.
type discoveryItemKind int

const (
	discoveryItemServerReflexive discoveryItemKind = iota + 1
	discoveryItemRelay
)

// discoveryItem is a pending gathering transaction: type, target server,
// owning socket, stream/component id, dialect, timer state, transaction
// id, and a done flag.
type discoveryItem struct {
	kind       discoveryItemKind
	streamID   int
	component  int
	socket     Socket
	serverAddr Address
	turnServer *TurnServer

	schedule []time.Duration
	attempt  int
	deadline time.Time
	done     bool

	transactionID [16]byte
}

// discoveryEngine runs the paced gathering loop: enumerate local
// interfaces, build host candidates per enabled transport, then queue
// srflx/relay discovery items and pace their (re)transmission at Ta
// using a token-bucket limiter, which composes cleanly with connectivity
// checks sharing the same tick without a second, conflicting ticker.
type discoveryEngine struct {
	agent   *Agent
	limiter *rate.Limiter

	mu    sync.Mutex
	items []*discoveryItem
}

func newDiscoveryEngine(agent *Agent) *discoveryEngine {
	interval := agent.options.StunPacingTimer
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	return &discoveryEngine{
		agent:   agent,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// gatherHostCandidates enumerates local interface addresses (RFC 8445
// §5.1.1.1 filters host-scope and, for IPv6, deprecated forms), building
// one host candidate per (address, transport) combination the component's
// enabled protocols allow, constrained by the configured port range. This
// attempts UDP, TCP-active, and TCP-passive binds for each address.
func (d *discoveryEngine) gatherHostCandidates(stream *Stream, comp *Component) ([]*Candidate, error) {
	addrs, err := localInterfaceAddresses()
	if err != nil {
		return nil, &DiscoveryFailedError{Err: err}
	}

	var created []*Candidate
	for _, ip := range addrs {
		if ip.IsLoopback() {
			continue
		}
		if ip.To4() == nil && !isSupportedIPv6(ip) {
			continue
		}
		if d.agent.options.ICEUDP {
			cand, err := d.bindHostUDP(stream, comp, ip)
			if err == nil {
				created = append(created, cand)
			}
		}
		if d.agent.options.ICETCP {
			if cand, err := d.bindHostTCP(stream, comp, ip, TransportTCPPassive); err == nil {
				created = append(created, cand)
			}
			if cand, err := d.bindHostTCPActive(stream, comp, ip); err == nil {
				created = append(created, cand)
			}
		}
	}
	return created, nil
}

// bindHostUDP tries ports across [PortMin, PortMax], cycling through the
// range until exhaustion.
func (d *discoveryEngine) bindHostUDP(stream *Stream, comp *Component, ip net.IP) (*Candidate, error) {
	opts := d.agent.options
	conn, err := listenUDPInRange(ip, opts.PortMin, opts.PortMax)
	if err != nil {
		return nil, &DiscoveryFailedError{Err: err}
	}
	addr := AddressFromUDP(conn.LocalAddr().(*net.UDPAddr))
	existing := comp.localCandidates()
	cand := NewHostCandidate(stream.ID, comp.ID, TransportUDP, addr, d.agent.options.Compatibility, stream.fTable, existing)
	cand.socket = newUDPSocket(conn)
	if !comp.addLocalCandidate(cand) {
		conn.Close() //nolint:errcheck
		return nil, &DiscoveryFailedError{Err: errString("ice: redundant host candidate")}
	}
	d.agent.emitNewCandidate(cand)
	return cand, nil
}

// bindHostTCP opens a listening socket for a TCP-passive host candidate
// and installs an accept handler; each accepted connection is promoted
// to a tcpConnSocket and given its own read loop by onTCPAccepted.
func (d *discoveryEngine) bindHostTCP(stream *Stream, comp *Component, ip net.IP, transport Transport) (*Candidate, error) {
	ln, err := listenTCPInRange(ip, d.agent.options.PortMin, d.agent.options.PortMax)
	if err != nil {
		return nil, &DiscoveryFailedError{Err: err}
	}
	addr := AddressFromTCP(ln.Addr().(*net.TCPAddr))
	existing := comp.localCandidates()
	cand := NewHostCandidate(stream.ID, comp.ID, transport, addr, d.agent.options.Compatibility, stream.fTable, existing)
	listenSocket := newTCPListenSocket(ln)
	cand.socket = listenSocket
	if !comp.addLocalCandidate(cand) {
		ln.Close() //nolint:errcheck
		return nil, &DiscoveryFailedError{Err: errString("ice: redundant host candidate")}
	}
	listenSocket.setAcceptHandler(func(child *tcpConnSocket) {
		d.agent.onTCPAccepted(stream, comp, cand, child)
	})
	d.agent.emitNewCandidate(cand)
	return cand, nil
}

// bindHostTCPActive registers a TCP-active host candidate for ip without
// binding any socket up front: RFC 6544 §4.1 fixes its port to the
// discard port 9, since the real local port is whatever the OS picks
// when the connection is actually dialed against a paired TCP-passive
// remote candidate (see connCheckEngine.dialActiveTCP).
func (d *discoveryEngine) bindHostTCPActive(stream *Stream, comp *Component, ip net.IP) (*Candidate, error) {
	addr := Address{IP: ip, Port: 9}
	existing := comp.localCandidates()
	cand := NewHostCandidate(stream.ID, comp.ID, TransportTCPActive, addr, d.agent.options.Compatibility, stream.fTable, existing)
	if !comp.addLocalCandidate(cand) {
		return nil, &DiscoveryFailedError{Err: errString("ice: redundant host candidate")}
	}
	d.agent.emitNewCandidate(cand)
	return cand, nil
}

// queueReflexiveAndRelay builds the srflx/relay discovery items for
// host, excluding link-local hosts and any TCP host candidate: TCP
// host candidates have no bound socket a STUN/TURN request could be
// sent over until a pair actually connects them (TCP-passive listens
// without a peer yet; TCP-active isn't dialed until pairing, see
// connCheckEngine.dialActiveTCP).
func (d *discoveryEngine) queueReflexiveAndRelay(host *Candidate) {
	if host.Addr.IsLinkLocal() {
		return
	}
	isTCP := host.Proto == TransportTCPPassive || host.Proto == TransportTCPActive
	if d.agent.options.STUNServer.IsValid() && !isTCP {
		d.mu.Lock()
		d.items = append(d.items, &discoveryItem{
			kind:       discoveryItemServerReflexive,
			streamID:   host.StreamID,
			component:  host.Component,
			socket:     host.socket,
			serverAddr: d.agent.options.STUNServer,
			schedule:   retransmitSchedule(d.agent.options.StunInitialTimeout, d.agent.options.StunMaxRetransmits),
		})
		d.mu.Unlock()
	}
	if isTCP {
		return
	}
	for i := range d.agent.options.TurnServers {
		cfg := d.agent.options.TurnServers[i]
		if cfg.Addr.IPVersion() != host.Addr.IPVersion() {
			continue
		}
		d.mu.Lock()
		d.items = append(d.items, &discoveryItem{
			kind:       discoveryItemRelay,
			streamID:   host.StreamID,
			component:  host.Component,
			socket:     host.socket,
			serverAddr: cfg.Addr,
			turnServer: &TurnServer{Addr: cfg.Addr, Username: cfg.Username, Password: cfg.Password, Transport: cfg.Transport, Dialect: cfg.Dialect},
			schedule:   retransmitSchedule(d.agent.options.StunInitialTimeout, d.agent.options.StunMaxRetransmits),
		})
		d.mu.Unlock()
	}
}

// tick runs one paced loop step: at most one new transmission per Ta;
// otherwise advance in-progress items' timers.
func (d *discoveryEngine) tick() {
	if !d.limiter.Allow() {
		return
	}
	d.mu.Lock()
	var next *discoveryItem
	for _, item := range d.items {
		if !item.done {
			next = item
			break
		}
	}
	d.mu.Unlock()
	if next == nil {
		if d.allDone() {
			d.agent.emitGatheringDone()
		}
		return
	}
	d.send(next)
}

func (d *discoveryEngine) allDone() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, item := range d.items {
		if !item.done {
			return false
		}
	}
	return true
}

func (d *discoveryEngine) send(item *discoveryItem) {
	switch item.kind {
	case discoveryItemServerReflexive:
		d.agent.sendSrflxRequest(item)
	case discoveryItemRelay:
		d.agent.startRelayAllocation(item)
	}
	item.attempt++
	if item.attempt >= len(item.schedule) {
		item.done = true
	}
}

func localInterfaceAddresses() ([]net.IP, error) {
	ifaces, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var out []net.IP
	for _, a := range ifaces {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		out = append(out, ipNet.IP)
	}
	return out, nil
}

func listenUDPInRange(ip net.IP, minPort, maxPort int) (*net.UDPConn, error) {
	if minPort == 0 && maxPort == 0 {
		return net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: 0})
	}
	for port := minPort; port <= maxPort; port++ {
		conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: ip, Port: port})
		if err == nil {
			return conn, nil
		}
	}
	return nil, errString("ice: port range exhausted")
}

func listenTCPInRange(ip net.IP, minPort, maxPort int) (*net.TCPListener, error) {
	if minPort == 0 && maxPort == 0 {
		return net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: 0})
	}
	for port := minPort; port <= maxPort; port++ {
		ln, err := net.ListenTCP("tcp", &net.TCPAddr{IP: ip, Port: port})
		if err == nil {
			return ln, nil
		}
	}
	return nil, errString("ice: port range exhausted")
}
