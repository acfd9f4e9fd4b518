package ice

import "net"

// Socket is the per-candidate I/O abstraction the discovery and
// connectivity-check engines read and write through, generalizing the
// net.PacketConn-style interface extended to carry a destination on
// every send the way a UDP socket needs to. Concrete
// implementations: udpSocket (this file), tcpListenSocket and
// tcpConnSocket (socket_tcp.go), turnSocket (turn_client.go), and
// proxySocket (socket_proxy.go).
type Socket interface {
	// SendTo writes b to addr. UDP and TURN relay sockets send to addr; a
	// listening TCP socket uses it to pick the accepted connection; a
	// connected TCP socket ignores it, since its connection already fixes
	// the peer.
	SendTo(b []byte, addr Address) (int, error)

	// RecvFrom blocks until a datagram arrives, returning its length and
	// source address. A listening TCP socket has no direct receive path
	// and returns a WouldBlockError instead.
	RecvFrom(b []byte) (n int, from Address, err error)

	// LocalAddr reports the socket's bound local address.
	LocalAddr() Address

	Close() error
}

// udpSocket is the straightforward net.PacketConn-backed Socket used for
// host and server-reflexive UDP candidates.
type udpSocket struct {
	conn net.PacketConn
	addr Address
}

func newUDPSocket(conn net.PacketConn) *udpSocket {
	return &udpSocket{conn: conn, addr: AddressFromUDP(conn.LocalAddr().(*net.UDPAddr))}
}

func (s *udpSocket) SendTo(b []byte, addr Address) (int, error) {
	return s.conn.WriteTo(b, &net.UDPAddr{IP: addr.IP, Port: addr.Port})
}

func (s *udpSocket) RecvFrom(b []byte) (int, Address, error) {
	n, from, err := s.conn.ReadFrom(b)
	if err != nil {
		return n, Address{}, err
	}
	udpAddr, ok := from.(*net.UDPAddr)
	if !ok {
		return n, Address{}, &TransportFailedError{Err: errString("ice: non-UDP source address on UDP socket")}
	}
	return n, AddressFromUDP(udpAddr), nil
}

func (s *udpSocket) LocalAddr() Address { return s.addr }

func (s *udpSocket) Close() error { return s.conn.Close() }
