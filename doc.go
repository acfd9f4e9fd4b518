// Package ice implements the core of an Interactive Connectivity
// Establishment (ICE) agent as defined in RFC 5245 / RFC 8445: candidate
// gathering, connectivity checks, nomination, consent freshness, and a
// packet demultiplexer that separates STUN control traffic from
// application data. SDP formatting/parsing, UPnP, DNS resolution, and the
// choice of host event loop are left to the caller; see Observer for the
// seam between this package and its host.
package ice
