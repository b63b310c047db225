package cec

import "strconv"

// State is a state of the CEC state machine.
type State uint32

// Initiator states, in transmit order.
const (
	StateIdle State = iota
	StateFreeTime
	StateStartLow
	StateStartHigh
	StateHeaderInitLow
	StateHeaderInitHigh
	StateHeaderDestLow
	StateHeaderDestHigh
	StateDataLow
	StateDataHigh
	StateEOMLow
	StateEOMHigh
	StateAckLow
	StateAckHigh
	StateAckVerify
)

var stateNames = [...]string{
	StateIdle:           "idle",
	StateFreeTime:       "free-time",
	StateStartLow:       "start-low",
	StateStartHigh:      "start-high",
	StateHeaderInitLow:  "header-init-low",
	StateHeaderInitHigh: "header-init-high",
	StateHeaderDestLow:  "header-dest-low",
	StateHeaderDestHigh: "header-dest-high",
	StateDataLow:        "data-low",
	StateDataHigh:       "data-high",
	StateEOMLow:         "eom-low",
	StateEOMHigh:        "eom-high",
	StateAckLow:         "ack-low",
	StateAckHigh:        "ack-high",
	StateAckVerify:      "ack-verify",
}

// String implements fmt.Stringer.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "state(" + strconv.Itoa(int(s)) + ")"
}

// IsLow indicates the line is driven low while in this state.
func (s State) IsLow() bool {
	switch s {
	case StateStartLow, StateHeaderInitLow, StateHeaderDestLow,
		StateDataLow, StateEOMLow, StateAckLow:
		return true
	}
	return false
}
