package ingesttrace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"unicode/utf8"
)

// Stage is a step a harvested message passes through.
type Stage string

const (
	StageSeenFromSource Stage = "seen_from_source"
	StageNormalizedOK   Stage = "normalized_ok"
	StageCreated        Stage = "created"
	StageUpdated        Stage = "updated"
	StageWriteFailed    Stage = "write_failed"

	StageDroppedPrefix = "dropped_"
)

const snippetMaxRunes = 64

// StageDropped creates a Stage for a message dropped for the given reason.
func StageDropped(reason string) Stage {
	return Stage(fmt.Sprintf("%s%s", StageDroppedPrefix, reason))
}

// MessageTrace carries per-message metadata through the sync loop.
type MessageTrace struct {
	Channel   string
	MessageID int64
	Snippet   string
	TraceID   string

	mu       sync.Mutex
	counters map[Stage]int64
}

// NewTrace seeds a trace for a message just pulled from the source.
func NewTrace(channel string, messageID int64, text string) *MessageTrace {
	snippet := truncate(text, snippetMaxRunes)
	trace := &MessageTrace{
		Channel:   channel,
		MessageID: messageID,
		Snippet:   snippet,
		TraceID:   computeTraceID(channel, messageID, snippet),
		counters:  make(map[Stage]int64),
	}
	trace.counters[StageSeenFromSource] = 1
	return trace
}

// IncCounter increments the counter for stage and returns the new value.
func (t *MessageTrace) IncCounter(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.counters[stage]++
	return t.counters[stage]
}

// Count returns the current value of a stage counter.
func (t *MessageTrace) Count(stage Stage) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counters[stage]
}

// LogTrace emits the trace at debug level.
func (t *MessageTrace) LogTrace(logger *slog.Logger, msg string) {
	if logger == nil {
		logger = slog.Default()
	}

	logger.Debug(msg,
		"trace_id", t.TraceID,
		"channel", t.Channel,
		"message_id", t.MessageID,
		"snippet", t.Snippet,
		"counters", t.snapshotCounters(),
	)
}

func (t *MessageTrace) snapshotCounters() map[Stage]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[Stage]int64, len(t.counters))
	for stage, count := range t.counters {
		out[stage] = count
	}
	return out
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

func computeTraceID(channel string, messageID int64, snippet string) string {
	digest := sha256.Sum256([]byte(channel + "\x1f" + strconv.FormatInt(messageID, 10) + "\x1f" + snippet))
	return hex.EncodeToString(digest[:])
}
