package ice

import (
	"encoding/binary"
	"net"
	"sync"
)

// tcpListenSocket implements Socket for a passive (listening) ICE-TCP host
// candidate. Its acceptLoop wraps each accepted connection in a
// tcpConnSocket, records it in accepted, and hands it to the handler
// installed with setAcceptHandler; RecvFrom itself returns a
// WouldBlockError and never yields data.
type tcpListenSocket struct {
	ln net.Listener

	mu       sync.Mutex
	accepted map[string]*tcpConnSocket
	onAccept func(*tcpConnSocket)
}

func newTCPListenSocket(ln net.Listener) *tcpListenSocket {
	s := &tcpListenSocket{ln: ln, accepted: make(map[string]*tcpConnSocket)}
	go s.acceptLoop()
	return s
}

// setAcceptHandler installs fn to be called, outside the listener's own
// lock, whenever a new peer connects; the discovery engine uses this to
// start a read loop for each accepted ICE-TCP connection.
func (s *tcpListenSocket) setAcceptHandler(fn func(*tcpConnSocket)) {
	s.mu.Lock()
	s.onAccept = fn
	s.mu.Unlock()
}

func (s *tcpListenSocket) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return
		}
		remote := AddressFromTCP(conn.(*net.TCPConn).RemoteAddr().(*net.TCPAddr))
		child := newTCPConnSocket(conn, remote)
		s.mu.Lock()
		s.accepted[remote.String()] = child
		handler := s.onAccept
		s.mu.Unlock()
		if handler != nil {
			handler(child)
		}
	}
}

func (s *tcpListenSocket) childFor(remote Address) *tcpConnSocket {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted[remote.String()]
}

func (s *tcpListenSocket) SendTo(b []byte, addr Address) (int, error) {
	if child := s.childFor(addr); child != nil {
		return child.SendTo(b, addr)
	}
	return 0, &WouldBlockError{Err: errString("ice: no accepted TCP connection for peer yet")}
}

func (s *tcpListenSocket) RecvFrom(b []byte) (int, Address, error) {
	return 0, Address{}, &WouldBlockError{Err: errString("ice: passive TCP socket has no direct recv path")}
}

func (s *tcpListenSocket) LocalAddr() Address {
	return AddressFromTCP(s.ln.Addr().(*net.TCPAddr))
}

func (s *tcpListenSocket) Close() error {
	s.mu.Lock()
	for _, c := range s.accepted {
		c.Close() //nolint:errcheck
	}
	s.mu.Unlock()
	return s.ln.Close()
}

// tcpConnSocket implements Socket over a connected TCP stream (active,
// passive-accepted, or simultaneous-open), applying RFC 4571
// 16-bit-length-prefix framing on every send.
// Reads are handled by the demultiplexer's frameReassembler rather than
// here, since a single socket read rarely aligns with frame boundaries.
type tcpConnSocket struct {
	conn   net.Conn
	remote Address

	mu sync.Mutex
}

func newTCPConnSocket(conn net.Conn, remote Address) *tcpConnSocket {
	return &tcpConnSocket{conn: conn, remote: remote}
}

func (s *tcpConnSocket) SendTo(b []byte, _ Address) (int, error) {
	if len(b) > 0xFFFF {
		return 0, &InputInvalidError{Err: errString("ice: frame exceeds RFC 4571 length field")}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var prefix [2]byte
	binary.BigEndian.PutUint16(prefix[:], uint16(len(b)))
	if _, err := s.conn.Write(prefix[:]); err != nil {
		return 0, &TransportFailedError{Err: err}
	}
	n, err := s.conn.Write(b)
	if err != nil {
		return n, &TransportFailedError{Err: err}
	}
	return n, nil
}

func (s *tcpConnSocket) RecvFrom(b []byte) (int, Address, error) {
	n, err := s.conn.Read(b)
	if err != nil {
		return n, Address{}, &TransportFailedError{Err: err}
	}
	return n, s.remote, nil
}

func (s *tcpConnSocket) LocalAddr() Address {
	return AddressFromTCP(s.conn.LocalAddr().(*net.TCPAddr))
}

func (s *tcpConnSocket) Close() error { return s.conn.Close() }
