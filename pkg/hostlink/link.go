package hostlink

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/golang/glog"
)

// FrameHandler is called when a frame is received.
type FrameHandler interface {
	HandleFrame(context.Context, *Frame)
}

// HandleFrameFunc is func type of FrameHandler.
type HandleFrameFunc func(context.Context, *Frame)

// HandleFrame implements FrameHandler.
func (f HandleFrameFunc) HandleFrame(ctx context.Context, frame *Frame) {
	f(ctx, frame)
}

// StateNotifier is called when link state changed.
type StateNotifier interface {
	StateChanged(context.Context, LinkState)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, LinkState)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, state LinkState) {
	f(ctx, state)
}

// DefaultSyncTimeout is the default time to wait for the peer during sync.
const DefaultSyncTimeout = 100 * time.Millisecond

// Link sends and receives frames over a byte stream.
type Link struct {
	Stream   io.ReadWriter
	Handler  FrameHandler
	Notifier StateNotifier
	Timeout  time.Duration
	// ReadTimeout is set when Stream.Read itself times out, returning
	// 0 bytes or a timeout error. Otherwise reads run in a goroutine.
	ReadTimeout bool

	seq   Seq
	state LinkState
	lock  sync.RWMutex

	syncTimer <-chan time.Time
	decoder   Decoder
}

// NewLink creates a Link.
func NewLink(stream io.ReadWriter) *Link {
	return &Link{
		Stream:  stream,
		Timeout: DefaultSyncTimeout,
		seq:     NewSeq(),
	}
}

// State gets the link state.
func (l *Link) State() LinkState {
	l.lock.RLock()
	defer l.lock.RUnlock()
	return l.state
}

// Send sends a frame, assigning its sequence.
func (l *Link) Send(f *Frame) error {
	if len(f.Data) > maxDataLen {
		return ErrFrameTooLong
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if !l.state.IsReady() {
		return ErrNotReady
	}
	f.Seq = l.seq
	if _, err := f.WriteTo(l.Stream); err != nil {
		return err
	}
	l.seq = l.seq.Next()
	return nil
}

// Run implements Runnable.
func (l *Link) Run(ctx context.Context) error {
	if err := l.apply(ctx, l.decoder.Reset()); err != nil {
		return err
	}
	if l.ReadTimeout {
		return l.runPolling(ctx)
	}

	byteCh, errCh := make(chan byte), make(chan error, 1)
	readCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go l.readLoop(readCtx, byteCh, errCh)
	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err = <-errCh:
			return err
		case b := <-byteCh:
			err = l.apply(ctx, l.decoder.Feed(b))
		case <-l.syncTimer:
			err = l.apply(ctx, l.decoder.Timeout())
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) runPolling(ctx context.Context) error {
	buf := make([]byte, 1)
	for {
		var err error
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.syncTimer:
			err = l.apply(ctx, l.decoder.Timeout())
		default:
			n, rerr := l.Stream.Read(buf)
			switch {
			case rerr != nil && !os.IsTimeout(rerr):
				return rerr
			case rerr != nil || n == 0:
				err = l.apply(ctx, l.decoder.Timeout())
			default:
				err = l.apply(ctx, l.decoder.Feed(buf[0]))
			}
		}
		if err != nil {
			return err
		}
	}
}

func (l *Link) readLoop(ctx context.Context, byteCh chan<- byte, errCh chan<- error) {
	buf := make([]byte, 1)
	for {
		if _, err := l.Stream.Read(buf); err != nil {
			errCh <- err
			return
		}
		select {
		case byteCh <- buf[0]:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Link) apply(ctx context.Context, s Step) (err error) {
	var notifier StateNotifier
	l.lock.Lock()
	if l.state != s.State {
		glog.V(3).Infof("link %s -> %s", l.state, s.State)
		l.state = s.State
		notifier = l.Notifier
	}
	if s.Sync != 0 {
		_, err = l.Stream.Write([]byte{s.Sync, byte(l.seq)})
	}
	l.lock.Unlock()
	if err != nil {
		return
	}

	timer := s.Timer()
	if l.ReadTimeout {
		// polling reads time out on their own while receiving.
		if s.Sync == syncREQ {
			timer = TimerRestart
		} else {
			timer = TimerStop
		}
	}
	switch timer {
	case TimerRestart:
		l.syncTimer = time.After(l.Timeout)
	case TimerStop:
		l.syncTimer = nil
	}

	if notifier != nil {
		notifier.StateChanged(ctx, s.State)
	}
	if s.Frame != nil {
		if h := l.Handler; h != nil {
			h.HandleFrame(ctx, s.Frame)
		}
	}
	return
}
