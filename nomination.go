package ice

// shouldUseCandidate decides whether an outbound Binding Request for pair
// should carry USE-CANDIDATE.
func (a *Agent) shouldUseCandidate(stream *Stream, pair *CandidatePair) bool {
	if !a.isControlling() {
		return false
	}
	switch a.options.NominationMode {
	case NominationModeAggressive:
		return true
	case NominationModeRegular:
		return pair.State == PairStateSucceeded && a.isHighestPrioritySucceeded(stream, pair)
	default:
		return false
	}
}

// shouldNominateOnSuccess decides, after a pair just transitioned to
// Succeeded, whether the controlling agent selects it now: in aggressive
// mode any success does (its request already carried USE-CANDIDATE); in
// regular mode only the highest-priority succeeded pair of the component
// does, without waiting for a further USE-CANDIDATE check to succeed.
func (a *Agent) shouldNominateOnSuccess(stream *Stream, comp *Component, pair *CandidatePair) bool {
	if comp.selectedPair() != nil {
		return false
	}
	switch a.options.NominationMode {
	case NominationModeAggressive:
		return a.isControlling()
	case NominationModeRegular:
		return a.isControlling() && a.isHighestPrioritySucceeded(stream, pair)
	default:
		return false
	}
}

func (a *Agent) isHighestPrioritySucceeded(stream *Stream, pair *CandidatePair) bool {
	for _, other := range stream.pairList() {
		if other == pair {
			continue
		}
		if !other.componentMatch(pair.Local.Component) {
			continue
		}
		if other.State == PairStateSucceeded && other.Priority > pair.Priority {
			return false
		}
	}
	return true
}

// acceptRenomination implements the optional renomination mode: an
// incoming NOMINATION attribute is honored even after initial selection,
// per the resolution recorded in DESIGN.md
// ("only if its counter is >= the currently selected pair's"), preventing
// a stale reordered request from un-nominating a newer pair.
func (a *Agent) acceptRenomination(stream *Stream, comp *Component, pair *CandidatePair, nomination uint32) bool {
	if !a.options.SupportRenomination {
		return false
	}
	current := comp.selectedPair()
	if current == nil {
		return true
	}
	if current.renomination > nomination {
		return false
	}
	pair.renomination = nomination
	return true
}
