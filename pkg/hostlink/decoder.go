package hostlink

// LinkState indicates the state of the link.
type LinkState int

const (
	// LinkSyncing means the sequences are not synchronized.
	LinkSyncing LinkState = 0
	// LinkReady means the link is synchronized and ready for frames.
	LinkReady LinkState = 0x01
	// LinkReceiving means a sync or a frame is partially received.
	LinkReceiving LinkState = 0x02
)

// IsReady indicates if the link is ready for frames.
func (s LinkState) IsReady() bool {
	return s&LinkReady != 0
}

// IsReceiving indicates if it's in the middle of syncing or receiving a frame.
func (s LinkState) IsReceiving() bool {
	return s&LinkReceiving != 0
}

// String implements fmt.Stringer.
func (s LinkState) String() string {
	switch s {
	case LinkSyncing:
		return "syncing"
	case LinkSyncing | LinkReceiving:
		return "syncing+receiving"
	case LinkReady:
		return "ready"
	case LinkReady | LinkReceiving:
		return "receiving"
	}
	return "invalid"
}

// TimerAction defines what to do with the sync timer.
type TimerAction int

const (
	// TimerNoChange keeps the timer as-is.
	TimerNoChange TimerAction = iota
	// TimerRestart restarts the timer.
	TimerRestart
	// TimerStop stops the timer.
	TimerStop
)

// Step is the outcome of feeding the decoder.
type Step struct {
	// Sync is the sync byte to send, followed by own sequence, 0 for none.
	Sync  byte
	State LinkState
	Frame *Frame
}

// Timer decides what to do with the sync timer.
func (s Step) Timer() TimerAction {
	if s.State.IsReceiving() || s.Sync == syncREQ {
		return TimerRestart
	}
	if s.State.IsReady() {
		return TimerStop
	}
	return TimerNoChange
}

type decodeState int

const (
	expectSyncAck    decodeState = iota // syncREQ sent, waiting for syncACK
	expectReqSeq                        // got syncREQ, waiting for peer seq
	expectAckSeq                        // got syncACK, waiting for peer seq
	expectFrameSeq                      // idle, waiting for next frame seq
	expectAckSeqIdle                    // got syncACK while idle, validating seq
	expectCode                          // waiting for frame code
	expectLen                           // waiting for extended length
	expectData                          // waiting for frame data
)

const (
	syncREQ byte = 0xff
	syncACK byte = 0xfe
)

// Decoder decodes received bytes into frames.
// The zero value starts unsynchronized.
type Decoder struct {
	peerSeq Seq
	state   decodeState
	frame   *Frame
	recvLen int
}

// State gets the current link state.
func (d *Decoder) State() LinkState {
	switch {
	case d.state == expectSyncAck:
		return LinkSyncing
	case d.state == expectFrameSeq:
		return LinkReady
	case d.state > expectFrameSeq:
		return LinkReady | LinkReceiving
	}
	return LinkSyncing | LinkReceiving
}

// Reset drops partial input and requests a resync.
func (d *Decoder) Reset() Step {
	d.frame = nil
	return d.resync()
}

// Feed consumes one byte.
func (d *Decoder) Feed(b byte) Step {
	s := d.feed(b)
	s.State = d.State()
	return s
}

// Timeout notifies the sync timer expired.
func (d *Decoder) Timeout() Step {
	if d.state != expectFrameSeq {
		return d.resync()
	}
	return Step{State: d.State()}
}

func (d *Decoder) feed(b byte) Step {
	switch d.state {
	case expectSyncAck:
		switch b {
		case syncREQ:
			d.state = expectReqSeq
		case syncACK:
			d.state = expectAckSeq
		}
	case expectReqSeq:
		if !Seq(b).IsValid() {
			return d.resync()
		}
		d.peerSeq, d.state = Seq(b), expectFrameSeq
		return Step{Sync: syncACK}
	case expectAckSeq:
		if !Seq(b).IsValid() {
			return d.resync()
		}
		d.peerSeq, d.state = Seq(b), expectFrameSeq
	case expectFrameSeq:
		switch {
		case b == syncREQ:
			d.state = expectReqSeq
		case b == syncACK:
			d.state = expectAckSeqIdle
		case Seq(b) != d.peerSeq:
			return d.resync()
		default:
			d.frame = &Frame{Seq: d.peerSeq}
			d.peerSeq = d.peerSeq.Next()
			d.state = expectCode
		}
	case expectAckSeqIdle:
		if Seq(b) != d.peerSeq {
			return d.resync()
		}
		d.state = expectFrameSeq
	case expectCode:
		d.frame.Code = b & codeMask
		switch n := (b >> lenShift) & lenExtended; n {
		case 0:
			return d.complete()
		case lenExtended:
			d.state = expectLen
		default:
			d.startData(int(n))
		}
	case expectLen:
		if b > maxDataLen {
			return d.resync()
		}
		if b == 0 {
			return d.complete()
		}
		d.startData(int(b))
	case expectData:
		d.frame.Data[d.recvLen] = b
		if d.recvLen++; d.recvLen >= len(d.frame.Data) {
			return d.complete()
		}
	}
	return Step{}
}

func (d *Decoder) startData(n int) {
	d.frame.Data, d.recvLen = make([]byte, n), 0
	d.state = expectData
}

func (d *Decoder) resync() Step {
	d.state = expectSyncAck
	return Step{Sync: syncREQ, State: LinkSyncing}
}

func (d *Decoder) complete() Step {
	d.state = expectFrameSeq
	f := d.frame
	d.frame = nil
	return Step{Frame: f}
}
