package ingesttrace

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTraceIDDeterminism(t *testing.T) {
	first := NewTrace("usersecc", 10, "hello world")
	second := NewTrace("usersecc", 10, "hello world")
	if first.TraceID != second.TraceID {
		t.Fatalf("expected deterministic trace id, got %q and %q", first.TraceID, second.TraceID)
	}

	other := NewTrace("usersecc", 11, "hello world")
	if first.TraceID == other.TraceID {
		t.Fatalf("expected different trace id when message id changes")
	}
}

func TestCounterIncrements(t *testing.T) {
	trace := NewTrace("usersecc", 1, "hi there")

	if got := trace.Count(StageSeenFromSource); got != 1 {
		t.Fatalf("expected seen_from_source seeded to 1, got %d", got)
	}
	if count := trace.IncCounter(StageNormalizedOK); count != 1 {
		t.Fatalf("expected normalized_ok to be 1, got %d", count)
	}
	if count := trace.IncCounter(StageDropped("no_text")); count != 1 {
		t.Fatalf("expected dropped_no_text to be 1, got %d", count)
	}
	if count := trace.IncCounter(StageDropped("no_text")); count != 2 {
		t.Fatalf("expected dropped_no_text to be 2 after increment, got %d", count)
	}
	if StageDropped("no_text") != "dropped_no_text" {
		t.Fatalf("unexpected dropped stage name %q", StageDropped("no_text"))
	}
}

func TestSnippetTruncated(t *testing.T) {
	trace := NewTrace("usersecc", 1, strings.Repeat("я", 200))
	if n := utf8.RuneCountInString(trace.Snippet); n != snippetMaxRunes+1 {
		t.Fatalf("expected truncated snippet of %d runes, got %d", snippetMaxRunes+1, n)
	}
}
