package sh

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"github.com/robotalks/cec.go/pkg/cec"
	"github.com/robotalks/cec.go/pkg/ec"
	env "github.com/robotalks/cec.go/pkg/env/connector"
)

// DefaultSendWait is how long send waits for the completion event.
// It covers a 16-byte frame failing all six attempts, about 2.4s on the bus.
const DefaultSendWait = 3 * time.Second

// ParseHex parses a frame written as "04 82", "04:82" or "0482".
func ParseHex(args ...string) ([]byte, error) {
	str := strings.Join(args, "")
	str = strings.NewReplacer(":", "", "-", "", " ", "").Replace(str)
	str = strings.TrimPrefix(strings.ToLower(str), "0x")
	data, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid hex %q: %v", strings.Join(args, " "), err)
	}
	return data, nil
}

func doCommand(c *ishell.Context, cmd ec.Command, params []byte) ([]byte, error) {
	s := ShellFrom(c)
	ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
	defer cancel()
	return s.Conn.Do(ctx, cmd, params)
}

// SendResult is the outcome of sending a frame.
type SendResult struct {
	Frame string `json:"frame"`
	// Events is empty if the frame didn't complete in time.
	Events string `json:"events,omitempty"`
	// Other holds events not completing this frame, including completions
	// of earlier frames which arrived after their wait.
	Other []env.Event `json:"other,omitempty"`
}

// SendFrame writes a CEC frame and waits for its completion event.
func SendFrame(ctx context.Context, conn env.Conn, frame []byte, wait time.Duration) (*SendResult, error) {
	r := &SendResult{Frame: hex.EncodeToString(frame)}
	for pending := true; pending; {
		select {
		case ev := <-conn.Events():
			r.Other = append(r.Other, ev)
		default:
			pending = false
		}
	}
	if _, err := conn.Do(ctx, ec.CmdCECWriteMsg, frame); err != nil {
		return r, err
	}
	timer := time.NewTimer(wait)
	defer timer.Stop()
	for {
		select {
		case ev := <-conn.Events():
			if ev.Type != ec.EventCEC {
				r.Other = append(r.Other, ev)
				continue
			}
			r.Events = cec.EventsFromPayload(ev.Payload).String()
			return r, nil
		case <-timer.C:
			return r, nil
		}
	}
}

// FormatEvent prints an event for display.
func FormatEvent(ev env.Event) string {
	if ev.Type == ec.EventCEC {
		return "cec: " + cec.EventsFromPayload(ev.Payload).String()
	}
	return fmt.Sprintf("event %d: % x", ev.Type, ev.Payload)
}

var (
	// StatusCmd shows the connection.
	StatusCmd = ishell.Cmd{
		Name: "status",
		Help: "",
		Func: func(c *ishell.Context) {
			s := ShellFrom(c)
			if s.Conn == nil {
				c.Println("not connected")
				return
			}
			c.Println(s.Conn.Status())
		},
	}

	// HelloCmd checks the device is alive.
	HelloCmd = ishell.Cmd{
		Name: "hello",
		Help: "[NUMBER]",
		Func: MustBeConnected(func(c *ishell.Context) {
			var in uint64
			if len(c.Args) > 0 {
				var err error
				if in, err = strconv.ParseUint(c.Args[0], 0, 32); err != nil {
					c.Err(err)
					return
				}
			}
			params := make([]byte, 4)
			binary.LittleEndian.PutUint32(params, uint32(in))
			out, err := doCommand(c, ec.CmdHello, params)
			if err != nil {
				c.Err(err)
				return
			}
			if len(out) != 4 {
				c.Err(fmt.Errorf("invalid hello response: % x", out))
				return
			}
			val := binary.LittleEndian.Uint32(out)
			ShellFrom(c).Print(c, val, fmt.Sprintf("0x%08x", val))
		}),
	}

	// SendCmd transmits a CEC frame and waits for its completion.
	SendCmd = ishell.Cmd{
		Name:    "send",
		Aliases: []string{"s"},
		Help:    "HEX...",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			frame, err := ParseHex(c.Args...)
			if err != nil {
				c.Err(err)
				return
			}
			ctx, cancel := context.WithTimeout(context.Background(), s.Config.Timeout)
			defer cancel()
			r, err := SendFrame(ctx, s.Conn, frame, sendWait)
			if !s.OutputJSON {
				for _, ev := range r.Other {
					c.Println(FormatEvent(ev))
				}
			}
			if err != nil {
				c.Err(err)
				return
			}
			text := "OK " + r.Events
			if r.Events == "" {
				text = "OK, no completion in " + sendWait.String()
			}
			s.Print(c, r, text)
		}),
	}

	// EventsCmd prints received events.
	EventsCmd = ishell.Cmd{
		Name:    "events",
		Aliases: []string{"ev"},
		Help:    "[SECONDS]",
		Func: MustBeConnected(func(c *ishell.Context) {
			s := ShellFrom(c)
			var wait time.Duration
			if len(c.Args) > 0 {
				secs, err := strconv.ParseFloat(c.Args[0], 64)
				if err != nil {
					c.Err(err)
					return
				}
				wait = time.Duration(secs * float64(time.Second))
			}
			deadline := time.After(wait)
			for {
				var ev env.Event
				select {
				case ev = <-s.Conn.Events():
				default:
					if wait == 0 {
						return
					}
					select {
					case ev = <-s.Conn.Events():
					case <-deadline:
						return
					}
				}
				s.Print(c, ev, FormatEvent(ev))
			}
		}),
	}
)
