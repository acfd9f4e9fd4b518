package ice

import (
	"time"

	"github.com/pion/logging"
)

// Dialect selects the STUN/TURN wire-compatibility profile, credential
// coding, and priority formula an Agent uses.
type Dialect int

const (
	// DialectRFC5245 is the standard IETF ICE dialect (the default).
	DialectRFC5245 Dialect = iota + 1
	// DialectGoogle is the legacy Google/Jingle dialect.
	DialectGoogle
	// DialectMSN uses the MSN priority/credential variant.
	DialectMSN
	// DialectWLM2009 is the Windows Live Messenger 2009 variant.
	DialectWLM2009
	// DialectOC2007 is Office Communicator 2007.
	DialectOC2007
	// DialectOC2007R2 is Office Communicator 2007 R2. Server-reflexive
	// candidates are kept when a relay pair succeeds; this dialect does
	// no pruning of its own.
	DialectOC2007R2
)

// NominationMode selects how the controlling agent nominates the final
// pair for a component.
type NominationMode int

const (
	// NominationModeRegular: the controlling agent selects a pair as soon
	// as its check succeeds while it is the highest-priority succeeded
	// pair of its component. Checks sent afterwards on that succeeded
	// pair carry USE-CANDIDATE; selection does not wait for one of them
	// to succeed.
	NominationModeRegular NominationMode = iota + 1
	// NominationModeAggressive includes USE-CANDIDATE on every
	// controlling check; the first success wins.
	NominationModeAggressive
)

// MDNSMode controls whether the agent opens an mDNS connection (see
// MDNSModeEnabled).
type MDNSMode int

const (
	// MDNSModeDisabled publishes raw host addresses (libnice behavior).
	MDNSModeDisabled MDNSMode = iota
	// MDNSModeEnabled opens an mDNS connection when the agent is created.
	// Host candidates are still published with their raw addresses, and
	// peer ".local" names are not resolved before pairing.
	MDNSModeEnabled
)

// Options collects every ICE Agent knob into a single struct populated
// by functional options.
type Options struct {
	Compatibility Dialect

	STUNServer     Address
	TurnServers    []TurnServerConfig
	MaxTurnServers int

	ControllingMode bool
	FullMode        bool

	StunPacingTimer time.Duration // Ta, default 20ms

	MaxConnectivityChecks int // default 100 per stream

	NominationMode       NominationMode
	SupportRenomination  bool
	Reliable             bool
	ICEUDP               bool
	ICETCP               bool
	BytestreamTCP        bool
	KeepaliveConncheck   bool
	ForceRelay           bool
	StunMaxRetransmits   int           // Rc, default 7
	StunInitialTimeout   time.Duration // RTO, default 200ms
	StunReliableTimeout  time.Duration // default 7200ms
	ICETrickle           bool
	ConsentFreshness     bool
	IdleTimeout          time.Duration // default 5s
	MaxLocalAddresses    int
	PortMin              int
	PortMax              int
	MDNSMode             MDNSMode

	// Proxy, when set, tunnels every actively-dialed ICE-TCP connection
	// (RFC 6544 TCP-active candidates) through an upstream SOCKS5 or
	// HTTP-CONNECT proxy instead of dialing the peer directly.
	Proxy *ProxyConfig

	LoggerFactory logging.LoggerFactory
}

// TurnServerConfig is the caller-supplied description of a TURN server,
// from which the discovery engine builds a TurnServer record per
// component.
type TurnServerConfig struct {
	Addr       Address
	Username   string
	Password   string
	Transport  Transport
	Dialect    Dialect
}

// Option mutates Options; NewAgent applies a default-populated Options
// and then each Option in order.
type Option func(*Options)

func defaultOptions() Options {
	return Options{
		Compatibility:         DialectRFC5245,
		ControllingMode:       true,
		FullMode:              true,
		StunPacingTimer:       20 * time.Millisecond,
		MaxConnectivityChecks: 100,
		NominationMode:        NominationModeAggressive,
		ICEUDP:                true,
		ICETCP:                true,
		StunMaxRetransmits:    7,
		StunInitialTimeout:    200 * time.Millisecond,
		StunReliableTimeout:   7200 * time.Millisecond,
		IdleTimeout:           5 * time.Second,
		MaxLocalAddresses:     64,
		MaxTurnServers:        8,
		LoggerFactory:         logging.NewDefaultLoggerFactory(),
	}
}

// WithCompatibility sets the STUN/TURN dialect.
func WithCompatibility(d Dialect) Option { return func(o *Options) { o.Compatibility = d } }

// WithSTUNServer configures server-reflexive gathering.
func WithSTUNServer(addr Address) Option { return func(o *Options) { o.STUNServer = addr } }

// WithTurnServer appends a TURN server to the per-agent default list.
func WithTurnServer(cfg TurnServerConfig) Option {
	return func(o *Options) { o.TurnServers = append(o.TurnServers, cfg) }
}

// WithControllingMode sets the initial ICE role.
func WithControllingMode(controlling bool) Option {
	return func(o *Options) { o.ControllingMode = controlling }
}

// WithFullMode records Options.FullMode (true by default). The agent does
// not read it: connectivity checks are initiated in either mode.
func WithFullMode(full bool) Option { return func(o *Options) { o.FullMode = full } }

// WithPacingTimer overrides Ta, the gathering/check pacing interval.
func WithPacingTimer(d time.Duration) Option { return func(o *Options) { o.StunPacingTimer = d } }

// WithMaxConnectivityChecks caps the per-stream pair list length.
func WithMaxConnectivityChecks(n int) Option {
	return func(o *Options) { o.MaxConnectivityChecks = n }
}

// WithNominationMode selects regular or aggressive nomination.
func WithNominationMode(m NominationMode) Option { return func(o *Options) { o.NominationMode = m } }

// WithRenomination enables acceptance of later RENOMINATION attributes.
func WithRenomination(enabled bool) Option {
	return func(o *Options) { o.SupportRenomination = enabled }
}

// WithReliable engages pseudo-TCP over the selected UDP pair.
func WithReliable(enabled bool) Option { return func(o *Options) { o.Reliable = enabled } }

// WithTransports selects which of UDP/TCP gathering are enabled; both may
// not be false.
func WithTransports(udp, tcp bool) Option {
	return func(o *Options) { o.ICEUDP = udp; o.ICETCP = tcp }
}

// WithBytestreamTCP records Options.BytestreamTCP. The agent does not read
// it: ICE-TCP data is delivered one RFC 4571 frame at a time either way.
func WithBytestreamTCP(enabled bool) Option { return func(o *Options) { o.BytestreamTCP = enabled } }

// WithKeepaliveConncheck sends Binding Requests (rather than Indications)
// as keepalives, without failing the pair on timeout.
func WithKeepaliveConncheck(enabled bool) Option {
	return func(o *Options) { o.KeepaliveConncheck = enabled }
}

// WithProxy routes actively-dialed ICE-TCP connections through an
// upstream SOCKS5 or HTTP-CONNECT proxy rather than dialing the peer
// directly.
func WithProxy(cfg ProxyConfig) Option {
	return func(o *Options) { o.Proxy = &cfg }
}

// WithForceRelay restricts the agent to relayed candidates and
// TURN-sourced inbound traffic only.
func WithForceRelay(enabled bool) Option { return func(o *Options) { o.ForceRelay = enabled } }

// WithSTUNRetransmission overrides Rc and RTO.
func WithSTUNRetransmission(maxRetransmits int, initialTimeout time.Duration) Option {
	return func(o *Options) {
		o.StunMaxRetransmits = maxRetransmits
		o.StunInitialTimeout = initialTimeout
	}
}

// WithSTUNReliableTimeout records Options.StunReliableTimeout. The agent
// does not read it: checks over a reliable transport use the same RTO
// retransmission schedule as UDP ones.
func WithSTUNReliableTimeout(d time.Duration) Option {
	return func(o *Options) { o.StunReliableTimeout = d }
}

// WithTrickle defers Failed until peer-gathering-done is signaled.
func WithTrickle(enabled bool) Option { return func(o *Options) { o.ICETrickle = enabled } }

// WithConsentFreshness enables RFC 7675 consent checks.
func WithConsentFreshness(enabled bool) Option {
	return func(o *Options) { o.ConsentFreshness = enabled }
}

// WithIdleTimeout records Options.IdleTimeout. The agent does not read it:
// a component with no succeeded pair is declared Failed as soon as all
// its pairs are terminal (see maybeFailAfterIdle).
func WithIdleTimeout(d time.Duration) Option { return func(o *Options) { o.IdleTimeout = d } }

// WithPortRange restricts host/relay gathering to [min,max].
func WithPortRange(minPort, maxPort int) Option {
	return func(o *Options) { o.PortMin = minPort; o.PortMax = maxPort }
}

// WithMDNSMode sets Options.MDNSMode (see MDNSModeEnabled).
func WithMDNSMode(m MDNSMode) Option { return func(o *Options) { o.MDNSMode = m } }

// WithLoggerFactory overrides the logging.LoggerFactory used for every
// component's structured logger.
func WithLoggerFactory(f logging.LoggerFactory) Option {
	return func(o *Options) { o.LoggerFactory = f }
}

func (o Options) validate() error {
	if o.PortMax != 0 && o.PortMax < o.PortMin {
		return ErrPortRange
	}
	if !o.ICEUDP && !o.ICETCP {
		return ErrNoTransportsEnabled
	}
	return nil
}
