// Package hostlink carries host commands and events between the embedded
// controller and its host over a byte stream.
package hostlink

// The link is peer-to-peer (e.g. a serial port or a websocket) and
// recovers from transfer errors by resynchronizing sequence numbers:
// either side sends syncREQ with its next sequence, the peer answers
// syncACK with its own. Every frame carries the sender's sequence and any
// mismatch triggers a resync. There is no checksum, enable parity on the
// serial port if bit errors are a concern.
//
// Frames:
//
//	SEQ CODE [LEN] DATA...
//
// CODE bit 7 marks an event, bits 4-6 hold the data length with 7 meaning
// an extra LEN byte follows, bits 0-3 are the frame code.
//
// A host command is CodeHostCmd with DATA = CMD(le16) PARAMS..., answered by
// CodeHostCmd (FlagError set when failed) with DATA = REQSEQ RES(le16) OUT...
// An event is CodeEvent with DATA = TYPE PAYLOAD....
