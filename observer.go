package ice

// Observer receives the signals emitted to the host. All methods are
// called after the emitting subsystem has released its own lock (see
// signals.go's deferred-signal queue), so an Observer may
// freely call back into the Agent without deadlocking.
type Observer interface {
	OnComponentStateChange(streamID, componentID int, state ComponentState)
	OnCandidateGatheringDone(streamID int)
	OnNewCandidate(candidate *Candidate)
	OnNewRemoteCandidate(candidate *Candidate)
	OnNewSelectedPair(streamID, componentID int, local, remote *Candidate)
	OnInitialBindingRequestReceived(streamID int)
	OnTransportWritable(streamID, componentID int)
	OnStreamsRemoved(streamIDs []int)
}

// NopObserver implements Observer with no-op methods, so callers only
// interested in a subset of signals can embed it and override the rest.
type NopObserver struct{}

func (NopObserver) OnComponentStateChange(int, int, ComponentState)   {}
func (NopObserver) OnCandidateGatheringDone(int)                      {}
func (NopObserver) OnNewCandidate(*Candidate)                         {}
func (NopObserver) OnNewRemoteCandidate(*Candidate)                   {}
func (NopObserver) OnNewSelectedPair(int, int, *Candidate, *Candidate) {}
func (NopObserver) OnInitialBindingRequestReceived(int)               {}
func (NopObserver) OnTransportWritable(int, int)                      {}
func (NopObserver) OnStreamsRemoved([]int)                            {}
