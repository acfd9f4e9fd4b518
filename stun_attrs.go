package ice

import (
	"encoding/binary"

	"github.com/pion/stun/v3"
)

// ICE-specific STUN attributes from RFC 8445 §16.1, implemented directly
// against pion/stun/v3's generic Message.Add/Get rather than pulling in
// github.com/pion/ice (whose own copy of these this module supersedes).
const (
	attrTypePriority       stun.AttrType = 0x0024
	attrTypeUseCandidate   stun.AttrType = 0x0025
	attrTypeICEControlled  stun.AttrType = 0x8029
	attrTypeICEControlling stun.AttrType = 0x802a
	// attrTypeNomination is the non-standard renomination extension
	// attribute (draft-thatcher-ice-renomination), carrying a 32-bit
	// nomination counter.
	attrTypeNomination stun.AttrType = 0xc001
)

// errorCodeRoleConflict is RFC 8445's 487 Role Conflict, not part of
// RFC 5389's base error-code table so not predefined by pion/stun.
const errorCodeRoleConflict stun.ErrorCode = 487

type priorityAttr uint32

func (p priorityAttr) AddTo(m *stun.Message) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], uint32(p))
	m.Add(attrTypePriority, v[:])
	return nil
}

func getPriority(m *stun.Message) (uint32, error) {
	v, err := m.Get(attrTypePriority)
	if err != nil {
		return 0, err
	}
	if len(v) != 4 {
		return 0, &InputInvalidError{Err: errString("ice: malformed PRIORITY attribute")}
	}
	return binary.BigEndian.Uint32(v), nil
}

type useCandidateAttr struct{}

func (useCandidateAttr) AddTo(m *stun.Message) error {
	m.Add(attrTypeUseCandidate, nil)
	return nil
}

func hasUseCandidate(m *stun.Message) bool {
	_, err := m.Get(attrTypeUseCandidate)
	return err == nil
}

// iceControlAttr carries the 64-bit tie-breaker for either
// ICE-CONTROLLING or ICE-CONTROLLED, selected by typ.
type iceControlAttr struct {
	typ        stun.AttrType
	tieBreaker uint64
}

func (a iceControlAttr) AddTo(m *stun.Message) error {
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], a.tieBreaker)
	m.Add(a.typ, v[:])
	return nil
}

func attrControlling(tieBreaker uint64) stun.Setter {
	return iceControlAttr{typ: attrTypeICEControlling, tieBreaker: tieBreaker}
}

func attrControlled(tieBreaker uint64) stun.Setter {
	return iceControlAttr{typ: attrTypeICEControlled, tieBreaker: tieBreaker}
}

// getRole reports which role attribute msg carries, if either, and its
// tie-breaker value.
func getRole(m *stun.Message) (role Role, tieBreaker uint64, ok bool) {
	if v, err := m.Get(attrTypeICEControlling); err == nil && len(v) == 8 {
		return RoleControlling, binary.BigEndian.Uint64(v), true
	}
	if v, err := m.Get(attrTypeICEControlled); err == nil && len(v) == 8 {
		return RoleControlled, binary.BigEndian.Uint64(v), true
	}
	return 0, 0, false
}

type nominationAttr uint32

func (n nominationAttr) AddTo(m *stun.Message) error {
	var v [4]byte
	binary.BigEndian.PutUint32(v[:], uint32(n))
	m.Add(attrTypeNomination, v[:])
	return nil
}

func getNomination(m *stun.Message) (uint32, bool) {
	v, err := m.Get(attrTypeNomination)
	if err != nil || len(v) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(v), true
}
