package ice

import (
	"github.com/netlace/ice/internal/mux"
	"github.com/pion/stun/v3"
	"github.com/pion/turn/v4"
)

// demultiplexer runs the ordered pipeline for a single readable event on
// a component's socket: RFC 4571 deframe (TCP only) -> TURN unwrap ->
// STUN fast/slow validate -> conncheck dispatch -> pseudo-TCP/pending-
// queue -> user delivery. It reuses internal/mux's RFC 7983 byte-range
// classifiers to tell STUN and TURN
// Channel Data apart before paying for a full STUN parse.
type demultiplexer struct {
	agent *Agent
}

func newDemultiplexer(agent *Agent) *demultiplexer {
	return &demultiplexer{agent: agent}
}

// onReadable is invoked by a candidate's reactor registration whenever
// its socket has data; from is already known for UDP sockets and equal to
// the TCP connection's fixed peer for stream sockets.
func (d *demultiplexer) onReadable(stream *Stream, comp *Component, cand *Candidate, raw []byte, from Address) {
	if d.agent.options.ForceRelay && !d.isFromConfiguredTurnServer(comp, from) {
		return
	}

	if cand.Proto.IsReliable() && cand.TurnServer == nil {
		if comp.reassembler == nil {
			comp.reassembler = newFrameReassembler()
		}
		for _, frame := range comp.reassembler.feed(raw) {
			d.process(stream, comp, cand, frame, from)
		}
		return
	}
	d.process(stream, comp, cand, raw, from)
}

func (d *demultiplexer) isFromConfiguredTurnServer(comp *Component, from Address) bool {
	for _, srv := range comp.turnServers {
		if srv.Addr.Equal(from) {
			return true
		}
	}
	return false
}

func (d *demultiplexer) process(stream *Stream, comp *Component, cand *Candidate, data []byte, from Address) {
	payload := data
	source := from

	if cand.TurnServer != nil {
		unwrapped, synthesizedFrom, ok := unwrapTurn(data)
		if !ok {
			return // pure TURN control message; nothing to deliver
		}
		payload = unwrapped
		source = synthesizedFrom
	}

	if mux.MatchSTUN(payload) {
		msg := &stun.Message{Raw: append([]byte(nil), payload...)}
		if err := msg.Decode(); err == nil {
			if d.dispatchSTUN(stream, comp, msg, source) {
				return
			}
		}
	}

	d.deliverApplication(stream, comp, payload, source)
}

// dispatchSTUN hands a successfully decoded STUN message to the
// connectivity-check engine, returning whether it was handled.
func (d *demultiplexer) dispatchSTUN(stream *Stream, comp *Component, msg *stun.Message, from Address) bool {
	switch {
	case msg.Type == stun.BindingRequest:
		d.agent.conncheck.handleBindingRequest(stream, comp, msg, from)
		return true
	case msg.Type == stun.BindingSuccess:
		if d.agent.handleDiscoverySuccess(msg) {
			return true
		}
		d.agent.conncheck.handleBindingSuccess(stream, msg)
		return true
	case msg.Type == stun.BindingError:
		if d.agent.handleDiscoveryError(msg) {
			return true
		}
		d.agent.conncheck.handleBindingError(stream, msg)
		return true
	case msg.Type == stun.BindingIndication:
		return true // keepalive; nothing further to do
	default:
		return false
	}
}

// deliverApplication hands bytes to pseudo-TCP when reliable mode is
// active and a pair is selected, buffer
// them on the pending queue when no pair is selected yet (so a SYN is
// never lost), or deliver directly to the user.
func (d *demultiplexer) deliverApplication(stream *Stream, comp *Component, payload []byte, from Address) {
	if len(payload) == 0 {
		return
	}
	selected := comp.selectedPair()
	if selected == nil {
		comp.queuePending(payload, from)
		return
	}
	selected.lastActivity.store(nowFunc())
	if comp.ptcp != nil {
		comp.ptcp.notifyMessage(payload)
		return
	}
	d.agent.deliverToUser(stream.ID, comp.ID)(payload, from)
}

// unwrapTurn inspects the first bytes of a message received from a TURN
// server: channel-framed data is decoded in place; a Data indication's
// XOR-PEER-ADDRESS becomes the synthesized from address; anything else
// is pure TURN control with no payload to deliver.
func unwrapTurn(data []byte) (payload []byte, from Address, ok bool) {
	if mux.MatchTURN(data) {
		return decodeChannelData(data)
	}
	if mux.MatchSTUN(data) {
		msg := &stun.Message{Raw: append([]byte(nil), data...)}
		if err := msg.Decode(); err != nil {
			return nil, Address{}, false
		}
		if msg.Type.Method != turn.MethodData {
			return nil, Address{}, false
		}
		var xorPeer turn.XORPeerAddress
		if err := xorPeer.GetFrom(msg); err != nil {
			return nil, Address{}, false
		}
		var dataAttr turn.Data
		if err := dataAttr.GetFrom(msg); err != nil {
			return nil, Address{}, false
		}
		return dataAttr, Address{IP: xorPeer.IP, Port: xorPeer.Port}, true
	}
	return nil, Address{}, false
}

// decodeChannelData parses the 4-byte TURN ChannelData header (channel
// number, length) per RFC 5766 §11.4. The channel-to-peer-address mapping
// lookup is owned by the relay socket that allocated it; here we only
// strip the framing, leaving address resolution to the caller's channel
// table when one is wired in (left as a future refinement — channel data
// without an owning turnSocket reference cannot synthesize `from`).
func decodeChannelData(data []byte) ([]byte, Address, bool) {
	if len(data) < 4 {
		return nil, Address{}, false
	}
	length := int(data[2])<<8 | int(data[3])
	if len(data) < 4+length {
		return nil, Address{}, false
	}
	return data[4 : 4+length], Address{}, true
}
