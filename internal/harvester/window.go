package harvester

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/you/tg-harvest/internal/core"
)

// StopReason says why a run ended.
type StopReason int

const (
	StopNone StopReason = iota
	StopCutoff
	StopExhausted
	StopError
)

func (r StopReason) String() string {
	switch r {
	case StopCutoff:
		return "cutoff"
	case StopExhausted:
		return "exhausted"
	case StopError:
		return "error"
	default:
		return "running"
	}
}

// Window wraps a newest-first cursor and ends the sequence at the first
// message older than the cutoff. Older messages are never returned.
type Window struct {
	cur    Cursor
	cutoff time.Time

	reason   StopReason
	boundary *core.Message
}

// NewWindow bounds cur to messages dated at or after cutoff.
func NewWindow(cur Cursor, cutoff time.Time) *Window {
	return &Window{cur: cur, cutoff: cutoff}
}

// Next returns the next in-window message. ok is false once the window has
// stopped, either at the cutoff or because the source ran out.
func (w *Window) Next(ctx context.Context) (core.Message, bool, error) {
	if w.reason != StopNone {
		return core.Message{}, false, nil
	}
	if err := ctx.Err(); err != nil {
		w.reason = StopError
		return core.Message{}, false, err
	}

	msg, err := w.cur.Next(ctx)
	if errors.Is(err, io.EOF) {
		w.reason = StopExhausted
		return core.Message{}, false, nil
	}
	if err != nil {
		w.reason = StopError
		return core.Message{}, false, err
	}
	if msg.Date.Before(w.cutoff) {
		w.reason = StopCutoff
		boundary := msg
		w.boundary = &boundary
		return core.Message{}, false, nil
	}
	return msg, true, nil
}

// Reason reports why the window stopped, or StopNone while still open.
func (w *Window) Reason() StopReason { return w.reason }

// Boundary returns the message that tripped the cutoff, if any.
func (w *Window) Boundary() (core.Message, bool) {
	if w.boundary == nil {
		return core.Message{}, false
	}
	return *w.boundary, true
}
