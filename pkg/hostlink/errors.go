package hostlink

import (
	"errors"
	"fmt"

	"github.com/robotalks/cec.go/pkg/ec"
)

var (
	// ErrNotReady indicates the link is not synchronized.
	ErrNotReady = errors.New("link not ready")
	// ErrNoReply indicates no reply received from peer.
	// This happens when a reply is received for a latter command, and all
	// previous commands fail with this error.
	ErrNoReply = errors.New("no reply")
	// ErrShortFrame indicates frame data is too short to decode.
	ErrShortFrame = errors.New("short frame")
)

// CommandError is a failing host command result.
type CommandError struct {
	Command ec.Command
	Result  ec.Result
}

// Error implements error.
func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Command, e.Result)
}

// ErrFrameTooLong indicates frame data can't be encoded.
var ErrFrameTooLong = errors.New("frame too long")
