package ice

import "github.com/netlace/ice/pkg/rtcerr"

// Typed error categories surfaced by public operations. Callers should
// use errors.As against these
// wrapper types rather than comparing error strings.
type (
	// InputInvalidError indicates a stream/component id was not found, a
	// required argument was nil, or a scatter-gather count exceeded the
	// platform maximum. No state change occurs.
	InputInvalidError = rtcerr.InputInvalidError

	// WouldBlockError indicates a non-blocking operation could not
	// complete immediately; distinct from a hard error so blocking
	// wrappers can loop on it.
	WouldBlockError = rtcerr.WouldBlockError

	// BrokenPipeError indicates the component or stream was removed
	// while a blocking receive was outstanding.
	BrokenPipeError = rtcerr.BrokenPipeError

	// PermissionDeniedError indicates a send was attempted after consent
	// was revoked.
	PermissionDeniedError = rtcerr.PermissionDeniedError

	// TransportFailedError indicates the underlying socket returned an
	// error, or the pseudo-TCP engine closed; the owning component moves
	// to StateFailed.
	TransportFailedError = rtcerr.TransportFailedError

	// DiscoveryFailedError indicates a STUN/TURN gathering transaction
	// exhausted its retransmissions. Gathering continues for other
	// candidates; only a component that ends up with zero candidates
	// fails outright.
	DiscoveryFailedError = rtcerr.DiscoveryFailedError

	// DNSFailedError indicates TURN/STUN server name resolution failed.
	// The server is marked failed-to-resolve and discovery proceeds
	// without it.
	DNSFailedError = rtcerr.DNSFailedError
)

var (
	// ErrClosed is returned by a consent-freshness check whose pair has
	// no socket left to send on.
	ErrClosed = &TransportFailedError{Err: errString("ice: agent closed")}

	// ErrStreamNotFound indicates an unknown stream id.
	ErrStreamNotFound = &InputInvalidError{Err: errString("ice: stream not found")}

	// ErrComponentNotFound indicates an unknown component id.
	ErrComponentNotFound = &InputInvalidError{Err: errString("ice: component not found")}

	// ErrAlreadyGathering indicates GatherCandidates was called twice for
	// the same stream. GatherCandidates itself returns nil for the second
	// call, and no code in this package returns this value.
	ErrAlreadyGathering = &InputInvalidError{Err: errString("ice: already gathering")}

	// ErrNoRemoteCredentials indicates connectivity checks were started
	// before remote ufrag/pwd were set.
	ErrNoRemoteCredentials = &InputInvalidError{Err: errString("ice: remote credentials not set")}

	// ErrNoCandidatePairs is returned by Send when the component has no
	// selected pair yet.
	ErrNoCandidatePairs = &WouldBlockError{Err: errString("ice: no valid candidate pairs")}

	// ErrPortRange indicates PortMax < PortMin in Options.
	ErrPortRange = &InputInvalidError{Err: errString("ice: invalid port range")}

	// ErrNoTransportsEnabled indicates both UDP and TCP gathering were
	// disabled in Options.
	ErrNoTransportsEnabled = &InputInvalidError{Err: errString("ice: ice-udp and ice-tcp cannot both be false")}
)

type errString string

func (e errString) Error() string { return string(e) }
