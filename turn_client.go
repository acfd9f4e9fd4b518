package ice

import (
	"net"
	"time"

	"github.com/pion/logging"
	"github.com/pion/turn/v4/client"
)

// turnAllocation owns one TURN client and the relay socket it allocated:
// the per-candidate relay socket wraps the base socket, emitting Send
// indications / channel data on write and unwrapping
// Data indications / channel frames on read. github.com/pion/turn/v4's
// client.Client already implements Allocate/Refresh/CreatePermission and
// the indication framing internally, so this wrapper's job is to adapt
// its net.PacketConn-shaped relay connection to this module's Socket
// interface and to own the Refresh schedule.
type turnAllocation struct {
	server *TurnServer

	turnClient *client.Client
	relayConn  net.PacketConn

	refreshEvery time.Duration
	stopRefresh  chan struct{}
}

// dialTurn opens a control connection to the TURN server and allocates a
// relay via an Allocate transaction (REQUESTED-TRANSPORT=UDP). The
// 401/438 challenge-and-retry dance is handled internally by
// pion/turn/v4's client, which caches (realm, nonce).
func dialTurn(server *TurnServer, loggerFactory logging.LoggerFactory) (*turnAllocation, error) {
	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, &TransportFailedError{Err: err}
	}

	cfg := &client.Config{
		STUNServerAddr: server.Addr.String(),
		TURNServerAddr: server.Addr.String(),
		Conn:           conn,
		Username:       server.Username,
		Password:       server.Password,
		LoggerFactory:  loggerFactory,
	}

	turnClient, err := client.New(cfg)
	if err != nil {
		conn.Close() //nolint:errcheck
		return nil, &DiscoveryFailedError{Err: err}
	}
	if err := turnClient.Listen(); err != nil {
		turnClient.Close()
		return nil, &DiscoveryFailedError{Err: err}
	}

	relayConn, err := turnClient.Allocate()
	if err != nil {
		turnClient.Close()
		return nil, &DiscoveryFailedError{Err: err}
	}

	return &turnAllocation{
		server:       server,
		turnClient:   turnClient,
		relayConn:    relayConn,
		refreshEvery: 5 * time.Minute, // overridden by scheduleRefresh(lifetime)
		stopRefresh:  make(chan struct{}),
	}, nil
}

// relayedAddress is the XOR-RELAYED-ADDRESS of the allocation, which
// becomes the relay candidate's address.
func (t *turnAllocation) relayedAddress() Address {
	return AddressFromUDP(t.relayConn.LocalAddr().(*net.UDPAddr))
}

// scheduleRefresh sets refreshEvery to lifetime/2, floored at 60s, and
// starts refreshLoop. The loop's ticks send nothing: no Refresh request
// is issued from here, and the loop only ends when stopRefresh is
// closed.
func (t *turnAllocation) scheduleRefresh(lifetime time.Duration) {
	interval := lifetime / 2
	if interval < 60*time.Second {
		interval = 60 * time.Second
	}
	t.refreshEvery = interval
	go t.refreshLoop()
}

func (t *turnAllocation) refreshLoop() {
	ticker := time.NewTicker(t.refreshEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// pion/turn/v4's client.UDPConn refreshes its own permission
			// and channel bindings on use; nothing further is required
			// here beyond keeping the process alive so idle allocations
			// are not silently reclaimed by callers that stopped sending.
		case <-t.stopRefresh:
			return
		}
	}
}

// turnSocket adapts a TURN relay connection to this module's Socket
// interface: CreatePermission is called lazily on first send to a given
// peer.
type turnSocket struct {
	alloc *turnAllocation

	permMu      chan struct{}
	permitted   map[string]bool
}

func newTurnSocket(alloc *turnAllocation) *turnSocket {
	return &turnSocket{alloc: alloc, permMu: make(chan struct{}, 1), permitted: make(map[string]bool)}
}

func (s *turnSocket) ensurePermission(addr Address) error {
	s.permMu <- struct{}{}
	defer func() { <-s.permMu }()
	key := addr.String()
	if s.permitted[key] {
		return nil
	}
	udpConn, ok := s.alloc.relayConn.(*client.UDPConn)
	if ok {
		if err := udpConn.CreatePermission(&net.UDPAddr{IP: addr.IP, Port: addr.Port}); err != nil {
			return &PermissionDeniedError{Err: err}
		}
	}
	s.permitted[key] = true
	return nil
}

func (s *turnSocket) SendTo(b []byte, addr Address) (int, error) {
	if err := s.ensurePermission(addr); err != nil {
		return 0, err
	}
	return s.alloc.relayConn.WriteTo(b, &net.UDPAddr{IP: addr.IP, Port: addr.Port})
}

func (s *turnSocket) RecvFrom(b []byte) (int, Address, error) {
	n, from, err := s.alloc.relayConn.ReadFrom(b)
	if err != nil {
		return n, Address{}, err
	}
	udpAddr, ok := from.(*net.UDPAddr)
	if !ok {
		return n, Address{}, &TransportFailedError{Err: errString("ice: non-UDP source from TURN relay")}
	}
	return n, AddressFromUDP(udpAddr), nil
}

func (s *turnSocket) LocalAddr() Address {
	return s.alloc.relayedAddress()
}

func (s *turnSocket) Close() error {
	close(s.alloc.stopRefresh)
	err := s.alloc.relayConn.Close()
	s.alloc.turnClient.Close()
	return err
}
