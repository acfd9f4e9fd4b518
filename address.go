package ice

import (
	"net"
	"strconv"
)

// NetworkType represents the address family and transport a candidate was
// gathered on.
type NetworkType int

const (
	// NetworkTypeUDP4 indicates UDP over IPv4.
	NetworkTypeUDP4 NetworkType = iota + 1
	// NetworkTypeUDP6 indicates UDP over IPv6.
	NetworkTypeUDP6
	// NetworkTypeTCP4 indicates TCP over IPv4.
	NetworkTypeTCP4
	// NetworkTypeTCP6 indicates TCP over IPv6.
	NetworkTypeTCP6
)

func (t NetworkType) String() string {
	switch t {
	case NetworkTypeUDP4:
		return "udp4"
	case NetworkTypeUDP6:
		return "udp6"
	case NetworkTypeTCP4:
		return "tcp4"
	case NetworkTypeTCP6:
		return "tcp6"
	default:
		return "unknown"
	}
}

// IsReliable reports whether the network type rides over a reliable
// (TCP-based) transport.
func (t NetworkType) IsReliable() bool {
	return t == NetworkTypeTCP4 || t == NetworkTypeTCP6
}

// IsIPv4 reports whether the network type is an IPv4 family.
func (t NetworkType) IsIPv4() bool {
	return t == NetworkTypeUDP4 || t == NetworkTypeTCP4
}

// determineNetworkType derives a NetworkType from a short network string
// ("udp"/"tcp") and an IP address.
func determineNetworkType(network string, ip net.IP) (NetworkType, error) {
	ipv4 := ip.To4() != nil
	switch {
	case len(network) >= 3 && (network[:3] == "udp"):
		if ipv4 {
			return NetworkTypeUDP4, nil
		}
		return NetworkTypeUDP6, nil
	case len(network) >= 3 && (network[:3] == "tcp"):
		if ipv4 {
			return NetworkTypeTCP4, nil
		}
		return NetworkTypeTCP6, nil
	}
	return NetworkType(0), &InputInvalidError{Err: errString("ice: unable to determine network type from " + network)}
}

// Address is an opaque IPv4/IPv6 socket address value type: equality,
// port, and family queries. The representation is
// stable because Address values are embedded in Candidate and
// CandidatePair records.
type Address struct {
	IP   net.IP
	Port int
}

// NewAddress builds an Address from a literal IP string and a port; a
// host that is not an IP literal yields a nil IP.
func NewAddress(host string, port int) Address {
	return Address{IP: net.ParseIP(host), Port: port}
}

// AddressFromUDP builds an Address from a *net.UDPAddr.
func AddressFromUDP(a *net.UDPAddr) Address {
	return Address{IP: a.IP, Port: a.Port}
}

// AddressFromTCP builds an Address from a *net.TCPAddr.
func AddressFromTCP(a *net.TCPAddr) Address {
	return Address{IP: a.IP, Port: a.Port}
}

// IsValid reports whether the address carries a parseable, non-nil IP.
func (a Address) IsValid() bool {
	return a.IP != nil && a.Port >= 0 && a.Port <= 65535
}

// Equal is bitwise equality on IP and port.
func (a Address) Equal(b Address) bool {
	return a.IP.Equal(b.IP) && a.Port == b.Port
}

// EqualIgnoringPort is used by foundation assignment: two base addresses
// are the same equivalence class if their IPs match regardless of port.
func (a Address) EqualIgnoringPort(b Address) bool {
	return a.IP.Equal(b.IP)
}

// IPVersion returns 4 or 6, or 0 if the address is invalid.
func (a Address) IPVersion() int {
	if a.IP == nil {
		return 0
	}
	if a.IP.To4() != nil {
		return 4
	}
	return 6
}

// IsLinkLocal reports whether the address is link-local unicast (v4 or
// v6), which host-candidate gathering should usually skip.
func (a Address) IsLinkLocal() bool {
	return a.IP != nil && a.IP.IsLinkLocalUnicast()
}

// IsPrivate reports whether the address falls in RFC 1918 IPv4 space or
// IPv6 unique-local (ULA) space.
func (a Address) IsPrivate() bool {
	if a.IP == nil {
		return false
	}
	if ip4 := a.IP.To4(); ip4 != nil {
		return ip4[0] == 10 ||
			(ip4[0] == 172 && ip4[1]&0xf0 == 16) ||
			(ip4[0] == 192 && ip4[1] == 168)
	}
	return a.IP[0]&0xfe == 0xfc // fc00::/7 ULA
}

// String renders host:port, with an IPv6 host in brackets.
func (a Address) String() string {
	if a.IP == nil {
		return net.JoinHostPort("", strconv.Itoa(a.Port))
	}
	return net.JoinHostPort(a.IP.String(), strconv.Itoa(a.Port))
}

// NetworkType reports the address family paired with "udp", matching the
// convention used when an Address has not yet been associated with a
// transport (candidates carry their own Protocol instead).
func (a Address) NetworkType() NetworkType {
	if a.IP != nil && a.IP.To4() != nil {
		return NetworkTypeUDP4
	}
	return NetworkTypeUDP6
}

// isSupportedIPv6 filters out IPv4-compatible, site-local, and link-local
// IPv6 forms per RFC 8445 §5.1.1.1.
func isSupportedIPv6(ip net.IP) bool {
	if len(ip) != net.IPv6len || isZeros(ip[0:12]) ||
		(ip[0] == 0xfe && ip[1]&0xc0 == 0xc0) ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

func isZeros(ip net.IP) bool {
	for i := 0; i < len(ip); i++ {
		if ip[i] != 0 {
			return false
		}
	}
	return true
}
