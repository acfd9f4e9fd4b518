package ice

import (
	"time"

	"github.com/pion/stun/v3"
)

// dialectFlags captures the per-Dialect wire-compatibility knobs a STUN
// codec needs to carry: whether FINGERPRINT is appended,
// whether MESSAGE-INTEGRITY is mandatory, and whether CONSENT-FRESHNESS
// rules apply. github.com/pion/stun/v3 already fixes the wire format to
// RFC 5389/8489 (128-bit transaction ids); the legacy dialects below are
// modeled as additional validation relaxations layered on top, since none
// of the pack's example repos target an agent old enough to emit 96-bit
// transaction ids over the wire.
type dialectFlags struct {
	requireFingerprint    bool
	requireIntegrity      bool
	consentFreshnessRules bool
}

func flagsFor(d Dialect) dialectFlags {
	switch d {
	case DialectGoogle:
		return dialectFlags{requireFingerprint: false, requireIntegrity: true}
	case DialectMSN, DialectWLM2009, DialectOC2007, DialectOC2007R2:
		return dialectFlags{requireFingerprint: false, requireIntegrity: true}
	default:
		return dialectFlags{requireFingerprint: true, requireIntegrity: true, consentFreshnessRules: true}
	}
}

// transactionIDSetter overrides the transaction id Build would otherwise
// generate at random, used when a response must echo its request's id.
type transactionIDSetter struct {
	id stun.TransactionID
}

func (s transactionIDSetter) AddTo(m *stun.Message) error {
	m.TransactionID = s.id
	return nil
}

// newBindingRequest builds a Binding Request carrying: USERNAME,
// PRIORITY, the role attribute with its tie-breaker, USE-CANDIDATE when
// nominating, MESSAGE-INTEGRITY keyed by
// the remote password, and FINGERPRINT last (when the dialect wants it).
func newBindingRequest(username string, priority uint32, role Role, tieBreaker uint64, useCandidate bool, key []byte, flags dialectFlags) (*stun.Message, error) {
	return newBindingRequestWithNomination(username, priority, role, tieBreaker, useCandidate, 0, key, flags)
}

// newBindingRequestWithNomination is newBindingRequest plus an optional
// NOMINATION counter (nomination == 0 omits the attribute), for the
// renomination extension's outbound side.
func newBindingRequestWithNomination(username string, priority uint32, role Role, tieBreaker uint64, useCandidate bool, nomination uint32, key []byte, flags dialectFlags) (*stun.Message, error) {
	setters := []stun.Setter{
		stun.TransactionID,
		stun.BindingRequest,
		stun.NewUsername(username),
		priorityAttr(priority),
	}
	if role == RoleControlling {
		setters = append(setters, attrControlling(tieBreaker))
	} else {
		setters = append(setters, attrControlled(tieBreaker))
	}
	if useCandidate {
		setters = append(setters, useCandidateAttr{})
	}
	if nomination != 0 {
		setters = append(setters, nominationAttr(nomination))
	}
	msg, err := stun.Build(setters...)
	if err != nil {
		return nil, err
	}
	if err := messageIntegrity(msg, key); err != nil {
		return nil, err
	}
	if flags.requireFingerprint {
		if err := stun.Fingerprint.AddTo(msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// newBindingIndication builds a keepalive Binding Indication (no
// response expected).
func newBindingIndication() (*stun.Message, error) {
	return stun.Build(stun.TransactionID, stun.BindingIndication)
}

// newDiscoveryBindingRequest builds the plain Binding Request the
// discovery engine sends to a STUN server to learn a server-reflexive
// mapping; unlike a connectivity check it carries no ICE attributes or
// short-term credential, matching RFC 5389 Binding usage against a
// generic STUN server.
func newDiscoveryBindingRequest() (*stun.Message, error) {
	return stun.Build(stun.TransactionID, stun.BindingRequest, stun.Fingerprint)
}

// mappedAddressFrom extracts XOR-MAPPED-ADDRESS from a Binding Success,
// the mapping a server-reflexive candidate is built from.
func mappedAddressFrom(msg *stun.Message) (Address, error) {
	var xor stun.XORMappedAddress
	if err := xor.GetFrom(msg); err != nil {
		return Address{}, err
	}
	return Address{IP: xor.IP, Port: xor.Port}, nil
}

// newBindingSuccess builds a Binding Success carrying XOR-MAPPED-ADDRESS
// of the sender.
func newBindingSuccess(reqID stun.TransactionID, mapped Address, key []byte, flags dialectFlags) (*stun.Message, error) {
	msg, err := stun.Build(
		transactionIDSetter{id: reqID},
		stun.BindingSuccess,
		&stun.XORMappedAddress{IP: mapped.IP, Port: mapped.Port},
	)
	if err != nil {
		return nil, err
	}
	if err := messageIntegrity(msg, key); err != nil {
		return nil, err
	}
	if flags.requireFingerprint {
		if err := stun.Fingerprint.AddTo(msg); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// newRoleConflictResponse builds the 487 Role Conflict error response
// emitted on a losing tie-break.
func newRoleConflictResponse(reqID stun.TransactionID, key []byte) (*stun.Message, error) {
	msg, err := stun.Build(
		transactionIDSetter{id: reqID},
		stun.BindingError,
		&stun.ErrorCodeAttribute{Code: errorCodeRoleConflict, Reason: []byte("Role Conflict")},
	)
	if err != nil {
		return nil, err
	}
	if err := messageIntegrity(msg, key); err != nil {
		return nil, err
	}
	return msg, nil
}

func messageIntegrity(msg *stun.Message, key []byte) error {
	if len(key) == 0 {
		return nil
	}
	return stun.NewShortTermIntegrity(string(key)).AddTo(msg)
}

// fastValidate is the fast validator: inspect only the fixed header
// (minimum size and magic cookie) to classify a buffer as "plausibly
// STUN" before paying
// for the slower fingerprint/integrity checks.
func fastValidate(b []byte) bool {
	return stun.IsMessage(b)
}

// slowValidate is the slow validator: magic cookie, fingerprint if
// present, and integrity against key; it rejects a buffer
// whose embedded length disagrees with its actual size.
func slowValidate(msg *stun.Message, key []byte, requireIntegrity bool) error {
	const headerLen = 20
	if len(msg.Raw) != headerLen+int(msg.Length) {
		return errString("ice: STUN length field disagrees with buffer size")
	}
	if _, err := msg.Get(stun.AttrFingerprint); err == nil {
		if err := stun.Fingerprint.Check(msg); err != nil {
			return err
		}
	}
	if requireIntegrity && len(key) > 0 {
		if err := stun.NewShortTermIntegrity(string(key)).Check(msg); err != nil {
			return err
		}
	}
	return nil
}

// retransmitSchedule computes the STUN retransmission deadlines: RTO,
// 2*RTO, 4*RTO, ... doubling up to Rc-1 retransmits, with the final
// interval RTO*m (m=16, matching RFC 5389's Ti/RTO*m
// final-wait convention) before giving up.
func retransmitSchedule(rto time.Duration, rc int) []time.Duration {
	if rc <= 0 {
		return nil
	}
	schedule := make([]time.Duration, 0, rc)
	interval := rto
	for i := 0; i < rc-1; i++ {
		schedule = append(schedule, interval)
		interval *= 2
	}
	schedule = append(schedule, rto*16)
	return schedule
}
