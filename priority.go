package ice

// candidatePriority computes the 32-bit candidate priority for the given dialect,
// type, address family/reliability, and component id.
//
// The RFC 5245 formula is
//
//	(2^24)*type_pref + (2^8)*local_pref + (256 - component_id)
//
// Google/Jingle and MSN dialects use distinct formulas, selected here by
// Dialect so the discovery and conncheck engines never special-case the
// compatibility mode themselves.
func candidatePriority(dialect Dialect, typ CandidateType, localPref uint32, componentID int) uint32 {
	switch dialect {
	case DialectGoogle:
		return googlePriority(typ, componentID)
	case DialectMSN, DialectWLM2009:
		return msnPriority(typ, componentID)
	default:
		return standardPriority(typ, localPref, componentID)
	}
}

func standardPriority(typ CandidateType, localPref uint32, componentID int) uint32 {
	typePref := typ.preference()
	return (1<<24)*typePref + (1<<8)*localPref + uint32(256-componentID)
}

// localPreference follows RFC 5245 §4.1.2.1 guidance: prefer IPv6 over
// IPv4 when both are available, and prefer a reliable transport's
// candidates slightly lower since pseudo-TCP already adds overhead.
func localPreference(family int, reliable bool) uint32 {
	pref := uint32(65535)
	if family == 4 {
		pref -= 10
	}
	if reliable {
		pref -= 5
	}
	return pref
}

// googlePriority mirrors the historical libjingle formula: a coarser
// type-preference ladder and no local-preference term.
func googlePriority(typ CandidateType, componentID int) uint32 {
	var typePref uint32
	switch typ {
	case CandidateTypeHost:
		typePref = 2
	case CandidateTypeServerReflexive, CandidateTypePeerReflexive:
		typePref = 1
	case CandidateTypeRelay:
		typePref = 0
	}
	return (typePref << 24) + uint32(1000-componentID)
}

// msnPriority mirrors the MSN/WLM2009 dialect's simpler ladder.
func msnPriority(typ CandidateType, componentID int) uint32 {
	var typePref uint32
	switch typ {
	case CandidateTypeHost:
		typePref = 830
	case CandidateTypeServerReflexive:
		typePref = 730
	case CandidateTypePeerReflexive:
		typePref = 730
	case CandidateTypeRelay:
		typePref = 630
	}
	return (typePref << 16) + uint32(256-componentID)
}

// pairPriority computes the 64-bit (represented as uint64) candidate pair
// priority: for controlling priority G and controlled priority D,
// priority = 2^32*min(G,D) + 2*max(G,D) + (G>D ? 1 : 0).
func pairPriority(controllingPriority, controlledPriority uint32) uint64 {
	g, d := uint64(controllingPriority), uint64(controlledPriority)
	minGD, maxGD := g, d
	if d < g {
		minGD, maxGD = d, g
	}
	extra := uint64(0)
	if g > d {
		extra = 1
	}
	return (1<<32)*minGD + 2*maxGD + extra
}
