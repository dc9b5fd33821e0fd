package harvester

import (
	"context"
	"testing"

	"github.com/you/tg-harvest/internal/core"
)

func TestWindowStopsAndStaysStopped(t *testing.T) {
	src := &sliceSource{msgs: []core.Message{
		{ID: 2, Date: daysAgo(1)},
		{ID: 1, Date: daysAgo(91)},
	}}
	cur, _ := src.Iterate(context.Background(), "usersecc")
	win := NewWindow(cur, fixedNow.Add(-DefaultRetention))

	msg, ok, err := win.Next(context.Background())
	if err != nil || !ok || msg.ID != 2 {
		t.Fatalf("first Next = %v %v %v", msg.ID, ok, err)
	}
	if _, ok, err := win.Next(context.Background()); ok || err != nil {
		t.Fatalf("expected window to stop at cutoff, got ok=%v err=%v", ok, err)
	}
	if win.Reason() != StopCutoff {
		t.Fatalf("reason = %s", win.Reason())
	}
	b, ok := win.Boundary()
	if !ok || b.ID != 1 || !b.Date.Equal(daysAgo(91)) {
		t.Fatalf("boundary = %d %s %v", b.ID, b.Date, ok)
	}

	calls := cur.(*sliceCursor).calls
	if _, ok, _ := win.Next(context.Background()); ok {
		t.Fatalf("stopped window returned a message")
	}
	if cur.(*sliceCursor).calls != calls {
		t.Fatalf("stopped window kept pulling from the source")
	}
}

func TestWindowExhausted(t *testing.T) {
	src := &sliceSource{}
	cur, _ := src.Iterate(context.Background(), "usersecc")
	win := NewWindow(cur, fixedNow)

	if _, ok, err := win.Next(context.Background()); ok || err != nil {
		t.Fatalf("expected exhausted window, ok=%v err=%v", ok, err)
	}
	if win.Reason() != StopExhausted {
		t.Fatalf("reason = %s", win.Reason())
	}
	if _, ok := win.Boundary(); ok {
		t.Fatalf("unexpected boundary on exhausted window")
	}
}

func TestWindowMessageAtCutoffIsKept(t *testing.T) {
	cutoff := daysAgo(90)
	src := &sliceSource{msgs: []core.Message{{ID: 1, Date: cutoff}}}
	cur, _ := src.Iterate(context.Background(), "usersecc")
	win := NewWindow(cur, cutoff)

	if _, ok, _ := win.Next(context.Background()); !ok {
		t.Fatalf("message dated exactly at the cutoff must be kept")
	}
}
