package ice

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net"
	"strings"

	"github.com/pion/mdns/v2"
	"golang.org/x/net/ipv4"
)

// mdnsObfuscator holds an mDNS connection and can generate ".local"
// names for host addresses (nameFor) and resolve ".local" names back to
// an address. The agent creates one when MDNSMode is MDNSModeEnabled but
// calls neither, so candidates keep their raw addresses (see
// SPEC_FULL.md §4.7).
type mdnsObfuscator struct {
	conn *mdns.Conn

	mu      chanMutex
	names   map[string]string // addr.String() -> generated name
}

type chanMutex chan struct{}

func newChanMutex() chanMutex {
	m := make(chanMutex, 1)
	m <- struct{}{}
	return m
}

func (m chanMutex) Lock()   { <-m }
func (m chanMutex) Unlock() { m <- struct{}{} }

func newMDNSObfuscator(conn *mdns.Conn) *mdnsObfuscator {
	return &mdnsObfuscator{conn: conn, mu: newChanMutex(), names: make(map[string]string)}
}

// nameFor returns a stable, randomly generated ".local" name for addr,
// generating one on first use, per the mDNS ICE candidate extension.
func (m *mdnsObfuscator) nameFor(addr Address) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := addr.String()
	if name, ok := m.names[key]; ok {
		return name, nil
	}
	var raw [16]byte
	if _, err := rand.Read(raw[:]); err != nil {
		return "", &InputInvalidError{Err: err}
	}
	name := strings.ToLower(hex.EncodeToString(raw[:])) + ".local"
	m.names[key] = name
	return name, nil
}

// resolve queries mDNS for a peer-published ".local" name, returning the
// IP it currently answers with. The agent does not call it (see
// mdnsObfuscator).
func (m *mdnsObfuscator) resolve(name string) (net.IP, error) {
	_, addr, err := m.conn.Query(context.Background(), name)
	if err != nil {
		return nil, &DNSFailedError{Err: err}
	}
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil, &DNSFailedError{Err: errString("ice: mdns resolved a non-UDP address")}
	}
	return udpAddr.IP, nil
}

func (m *mdnsObfuscator) close() error {
	return m.conn.Close()
}

// newMDNSConn wires a github.com/pion/mdns/v2 connection for obfuscation
// use, binding the conventional mDNS multicast group.
func newMDNSConn() (*mdns.Conn, error) {
	addr, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddressIPv4)
	if err != nil {
		return nil, err
	}
	socket, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}
	return mdns.Server(ipv4.NewPacketConn(socket), nil, &mdns.Config{})
}
