package ice

import (
	"sync"
	"time"
)

// pseudoTCPState is the reliable-stream connection state machine.
type pseudoTCPState int

const (
	pseudoTCPListen pseudoTCPState = iota + 1
	pseudoTCPSynSent
	pseudoTCPSynReceived
	pseudoTCPEstablished
	pseudoTCPCloseWait
	pseudoTCPClosed
)

const (
	defaultMTU        = 1400
	ptcpHeaderLen     = 4 + 4 + 2 // seq, ack, flags
	flagSYN    uint16 = 1 << 0
	flagACK    uint16 = 1 << 1
	flagFIN    uint16 = 1 << 2
)

// pseudoTCPSegment is the wire layout pseudoTCP lays over the selected
// pair's datagrams: a 4-byte sequence number, 4-byte ack number, a
// 2-byte flags field, and the payload.
type pseudoTCPSegment struct {
	seq     uint32
	ack     uint32
	flags   uint16
	payload []byte
}

// pseudoTCP is a reduced reliable-stream implementation: it tracks
// send/receive sequence numbers, retransmits unacknowledged
// segments with exponential backoff, holds out-of-order arrivals in a
// reorder map (with no size bound) until the gap before them is filled,
// and exposes a connect/send/recv/close API.
// Full slow-start/congestion-avoidance is out of scope (see DESIGN.md);
// the retransmission and reordering
// invariants that affect correctness are implemented.
type pseudoTCP struct {
	mu sync.Mutex

	state pseudoTCPState
	mtu   int

	sendNext uint32 // next sequence number to send
	sendUna  uint32 // oldest unacknowledged sequence number
	unacked  []pendingSegment

	recvNext  uint32 // next sequence number expected
	reorder   map[uint32][]byte
	recvReady [][]byte // in-order payloads not yet drained by recv

	writePacket func([]byte)
	onOpened    func()
	onReadable  func()
	onClosed    func(error)

	rto   time.Duration
	timer *time.Timer

	closed         bool
	closedRemotely bool
}

type pendingSegment struct {
	seq     uint32
	payload []byte
	sentAt  time.Time
	retries int
}

func newPseudoTCP(writePacket func([]byte)) *pseudoTCP {
	return &pseudoTCP{
		state:       pseudoTCPListen,
		mtu:         defaultMTU,
		reorder:     make(map[uint32][]byte),
		writePacket: writePacket,
		rto:         200 * time.Millisecond,
	}
}

// connect actively opens the connection by sending a SYN.
func (p *pseudoTCP) connect() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pseudoTCPListen {
		return
	}
	p.state = pseudoTCPSynSent
	p.sendSegment(pseudoTCPSegment{seq: p.sendNext, flags: flagSYN})
	p.sendNext++ // the SYN occupies one sequence number
}

// sendSegment serializes and hands seg to writePacket; caller must hold mu.
func (p *pseudoTCP) sendSegment(seg pseudoTCPSegment) {
	buf := make([]byte, ptcpHeaderLen+len(seg.payload))
	putUint32(buf[0:4], seg.seq)
	putUint32(buf[4:8], seg.ack)
	putUint16(buf[8:10], seg.flags)
	copy(buf[10:], seg.payload)
	if p.writePacket != nil {
		p.writePacket(buf)
	}
}

// send queues application bytes for reliable delivery, returning the
// number of bytes accepted (bounded by available_send_space).
func (p *pseudoTCP) send(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != pseudoTCPEstablished {
		return 0, &TransportFailedError{Err: errString("ice: pseudo-tcp not established")}
	}
	n := len(data)
	if n > p.mtu-ptcpHeaderLen {
		n = p.mtu - ptcpHeaderLen
	}
	seq := p.sendNext
	payload := append([]byte(nil), data[:n]...)
	p.sendNext += uint32(n)
	p.unacked = append(p.unacked, pendingSegment{seq: seq, payload: payload, sentAt: nowFunc()})
	p.sendSegment(pseudoTCPSegment{seq: seq, ack: p.recvNext, flags: flagACK, payload: payload})
	return n, nil
}

// recv drains reordered, in-order payloads into buf.
func (p *pseudoTCP) recv(buf []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.recvReady) == 0 {
		if p.closed {
			return 0, &BrokenPipeError{Err: errString("ice: pseudo-tcp closed")}
		}
		return 0, &WouldBlockError{Err: errString("ice: no data available")}
	}
	chunk := p.recvReady[0]
	n := copy(buf, chunk)
	if n < len(chunk) {
		p.recvReady[0] = chunk[n:]
	} else {
		p.recvReady = p.recvReady[1:]
	}
	return n, nil
}

// notifyMessage feeds an inbound datagram already matched to this
// connection's selected pair, implementing the handshake, ordered
// delivery, and cumulative-ack bookkeeping. Callbacks (onOpened,
// onClosed, onReadable) are invoked only after mu is released: they run
// user/engine code that may call straight back into this pseudoTCP
// (onReadable's typical implementation calls recv, which locks mu), and
// sync.Mutex is not reentrant.
func (p *pseudoTCP) notifyMessage(data []byte) {
	if len(data) < ptcpHeaderLen {
		return
	}
	seg := pseudoTCPSegment{
		seq:     getUint32(data[0:4]),
		ack:     getUint32(data[4:8]),
		flags:   getUint16(data[8:10]),
		payload: data[ptcpHeaderLen:],
	}

	p.mu.Lock()

	switch p.state {
	case pseudoTCPListen:
		if seg.flags&flagSYN != 0 {
			p.recvNext = seg.seq + 1
			p.state = pseudoTCPSynReceived
			p.sendSegment(pseudoTCPSegment{seq: p.sendNext, ack: p.recvNext, flags: flagSYN | flagACK})
			p.sendNext++ // the SYN occupies one sequence number
		}
		p.mu.Unlock()
		return
	case pseudoTCPSynSent:
		opened := false
		if seg.flags&flagSYN != 0 && seg.flags&flagACK != 0 {
			p.recvNext = seg.seq + 1
			p.state = pseudoTCPEstablished
			p.sendSegment(pseudoTCPSegment{seq: p.sendNext, ack: p.recvNext, flags: flagACK})
			opened = true
		}
		onOpened := p.onOpened
		p.mu.Unlock()
		if opened && onOpened != nil {
			onOpened()
		}
		return
	case pseudoTCPSynReceived:
		opened := false
		if seg.flags&flagACK != 0 {
			p.state = pseudoTCPEstablished
			opened = true
		}
		onOpened := p.onOpened
		p.mu.Unlock()
		if opened && onOpened != nil {
			onOpened()
		}
		return
	}

	if seg.flags&flagACK != 0 {
		p.handleAck(seg.ack)
	}
	if seg.flags&flagFIN != 0 {
		p.closedRemotely = true
		p.state = pseudoTCPCloseWait
		onClosed := p.onClosed
		p.mu.Unlock()
		if onClosed != nil {
			onClosed(nil)
		}
		return
	}
	if len(seg.payload) == 0 {
		p.mu.Unlock()
		return
	}
	readable := p.acceptPayload(seg.seq, seg.payload)
	onReadable := p.onReadable
	p.mu.Unlock()
	if readable && onReadable != nil {
		onReadable()
	}
}

// handleAck removes acknowledged segments from the unacked list; caller
// holds mu.
func (p *pseudoTCP) handleAck(ack uint32) {
	kept := p.unacked[:0]
	for _, seg := range p.unacked {
		if seg.seq+uint32(len(seg.payload)) > ack {
			kept = append(kept, seg)
		}
	}
	p.unacked = kept
	p.sendUna = ack
}

// acceptPayload implements the reorder buffer: an in-sequence segment
// advances recvNext and drains any contiguous segments already buffered;
// an out-of-order segment is held until its predecessor arrives. Caller
// holds mu and is responsible for firing onReadable, after releasing
// it, when this returns true.
func (p *pseudoTCP) acceptPayload(seq uint32, payload []byte) bool {
	if seq != p.recvNext {
		if seq > p.recvNext {
			p.reorder[seq] = payload
		}
		return false
	}
	p.recvReady = append(p.recvReady, payload)
	p.recvNext += uint32(len(payload))
	for {
		next, ok := p.reorder[p.recvNext]
		if !ok {
			break
		}
		delete(p.reorder, p.recvNext)
		p.recvReady = append(p.recvReady, next)
		p.recvNext += uint32(len(next))
	}
	return true
}

// retransmitDue resends any unacked segment whose RTO has elapsed,
// doubling the backoff for that segment (exponential backoff).
func (p *pseudoTCP) retransmitDue() {
	p.mu.Lock()
	defer p.mu.Unlock()
	now := nowFunc()
	for i := range p.unacked {
		seg := &p.unacked[i]
		backoff := p.rto << uint(seg.retries)
		if now.Sub(seg.sentAt) < backoff {
			continue
		}
		seg.retries++
		seg.sentAt = now
		p.sendSegment(pseudoTCPSegment{seq: seg.seq, ack: p.recvNext, flags: flagACK, payload: seg.payload})
	}
}

// close(force): force=true tears down immediately; force=false sends a
// FIN and waits for the peer's.
func (p *pseudoTCP) close(force bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if !force && p.state == pseudoTCPEstablished {
		p.sendSegment(pseudoTCPSegment{seq: p.sendNext, ack: p.recvNext, flags: flagFIN})
	}
	p.closed = true
	p.state = pseudoTCPClosed
}

func (p *pseudoTCP) availableBytes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, chunk := range p.recvReady {
		n += len(chunk)
	}
	return n
}

func (p *pseudoTCP) availableSendSpace() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mtu - ptcpHeaderLen
}

func (p *pseudoTCP) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

func (p *pseudoTCP) isClosedRemotely() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closedRemotely
}

func (p *pseudoTCP) notifyMTU(mtu int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if mtu > ptcpHeaderLen {
		p.mtu = mtu
	}
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

func getUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

func putUint16(b []byte, v uint16) {
	b[0] = byte(v >> 8)
	b[1] = byte(v)
}

func getUint16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}
