package cec

// MaxMessageLen is the maximum length of a CEC frame in bytes.
const MaxMessageLen = 16

// BroadcastAddr is the broadcast logical address, also the highest one.
const BroadcastAddr = 15

// transfer is a frame being sent and the position of the next bit.
type transfer struct {
	buf  [MaxMessageLen]byte
	bit  uint8
	byte uint8
}

func (t *transfer) reset() {
	t.bit, t.byte = 0, 0
}

// currentBit returns the bit under the cursor, MSB first.
func (t *transfer) currentBit() uint8 {
	if t.byte >= MaxMessageLen {
		return 0
	}
	return (t.buf[t.byte] >> (7 - t.bit)) & 1
}

func (t *transfer) advance() {
	if t.byte >= MaxMessageLen {
		return
	}
	if t.bit++; t.bit == 8 {
		t.bit = 0
		t.byte++
	}
}

// eom is true right after the last bit of a frame with length n.
func (t *transfer) eom(n int) bool {
	return t.bit == 0 && int(t.byte) == n
}

// destination is the follower address from the header.
func (t *transfer) destination() byte {
	return t.buf[0] & 0x0f
}
