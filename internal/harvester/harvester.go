package harvester

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"strings"
	"time"

	"github.com/you/tg-harvest/internal/core"
	"github.com/you/tg-harvest/internal/ingesttrace"
	"github.com/you/tg-harvest/internal/metrics"
)

const (
	DefaultRetention = 90 * 24 * time.Hour
	DefaultPace      = time.Second
)

// Source yields a channel's messages newest first.
type Source interface {
	Iterate(ctx context.Context, channel string) (Cursor, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context, channel string) (Cursor, error)

func (f SourceFunc) Iterate(ctx context.Context, channel string) (Cursor, error) {
	return f(ctx, channel)
}

// Cursor is a lazy newest-first sequence. Next returns io.EOF at the end.
type Cursor interface {
	Next(ctx context.Context) (core.Message, error)
}

// Store persists records keyed by (channel_name, message_id).
type Store interface {
	Upsert(ctx context.Context, rec core.Record) (core.Outcome, error)
}

type Options struct {
	Channel   string
	Source    Source
	Store     Store
	Retention time.Duration // defaults to DefaultRetention
	Pace      time.Duration // delay after every considered message; defaults to DefaultPace
	Metrics   *metrics.Metrics
	Logger    *slog.Logger

	// Now and Sleep are overridable for tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) bool
}

type Harvester struct {
	channel   string
	source    Source
	store     Store
	retention time.Duration
	pace      time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) bool
}

// Summary reports the outcome of one run.
type Summary struct {
	Channel  string
	Cutoff   time.Time
	Seen     int
	Created  int
	Updated  int
	Skipped  int
	Failed   int
	Stop     StopReason
	Duration time.Duration
}

func (s Summary) String() string {
	return fmt.Sprintf("channel=%s cutoff=%s seen=%d new=%d updated=%d skipped=%d failed=%d stop=%s took=%s",
		s.Channel, s.Cutoff.Format("2006-01-02"), s.Seen, s.Created, s.Updated, s.Skipped, s.Failed, s.Stop, s.Duration.Round(time.Millisecond))
}

func New(opts Options) (*Harvester, error) {
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		return nil, errors.New("harvester: channel is required")
	}
	if opts.Source == nil {
		return nil, errors.New("harvester: source is required")
	}
	if opts.Store == nil {
		return nil, errors.New("harvester: store is required")
	}
	h := &Harvester{
		channel:   channel,
		source:    opts.Source,
		store:     opts.Store,
		retention: opts.Retention,
		pace:      opts.Pace,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
		sleep:     opts.Sleep,
	}
	if h.retention <= 0 {
		h.retention = DefaultRetention
	}
	if h.pace <= 0 {
		h.pace = DefaultPace
	}
	if h.now == nil {
		h.now = time.Now
	}
	if h.sleep == nil {
		h.sleep = sleepContext
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h, nil
}

// Run walks the channel from the newest message back to the cutoff, upserting
// every text message it meets. A failed write is logged and the walk goes on;
// a source failure ends the run and is returned with the partial summary.
func (h *Harvester) Run(ctx context.Context) (sum Summary, err error) {
	start := h.now().UTC()
	sum = Summary{Channel: h.channel, Cutoff: start.Add(-h.retention)}
	defer func() {
		sum.Duration = h.now().Sub(start)
		h.metrics.ObserveRun(start, sum.Cutoff, sum.Duration)
	}()

	log.Printf("harvester: [%s] collecting messages dated after %s", h.channel, sum.Cutoff.Format("2006-01-02"))

	cur, err := h.source.Iterate(ctx, h.channel)
	if err != nil {
		sum.Stop = StopError
		return sum, fmt.Errorf("iterate %s: %w", h.channel, err)
	}

	win := NewWindow(cur, sum.Cutoff)
	for {
		msg, ok, err := win.Next(ctx)
		if err != nil {
			sum.Stop = StopError
			return sum, fmt.Errorf("next message: %w", err)
		}
		if !ok {
			break
		}
		sum.Seen++
		if h.handle(ctx, msg, &sum) && !h.sleep(ctx, h.pace) {
			sum.Stop = StopError
			return sum, ctx.Err()
		}
	}

	sum.Stop = win.Reason()
	switch sum.Stop {
	case StopCutoff:
		if b, ok := win.Boundary(); ok {
			log.Printf("harvester: reached cutoff at message %d (%s); stopping", b.ID, b.Date.Format(time.RFC3339))
		}
	case StopExhausted:
		log.Printf("harvester: channel history exhausted before cutoff")
	}
	return sum, nil
}

// handle processes one in-window message. It reports whether the message was
// considered (and so must be followed by the pacing delay).
func (h *Harvester) handle(ctx context.Context, msg core.Message, sum *Summary) bool {
	trace := ingesttrace.NewTrace(h.channel, msg.ID, msg.Text)
	defer trace.LogTrace(h.logger, "harvester: message trace")

	if !msg.HasText() {
		sum.Skipped++
		trace.IncCounter(ingesttrace.StageDropped("no_text"))
		h.metrics.IncMessages("skipped")
		log.Printf("harvester: [skip] %d has no text", msg.ID)
		return false
	}

	fwd := core.ResolveForward(msg.Forward)
	rec := core.NewRecord(h.channel, msg, fwd, h.now())
	if fwd.Kind == core.ForwardSentinel {
		log.Printf("harvester: %d forward origin unreadable, stored as %s: %v", msg.ID, core.UnknownForward, fwd.Err)
	}
	trace.IncCounter(ingesttrace.StageNormalizedOK)

	outcome, err := h.store.Upsert(ctx, rec)
	switch {
	case err != nil:
		sum.Failed++
		trace.IncCounter(ingesttrace.StageWriteFailed)
		h.metrics.IncMessages("failed")
		log.Printf("harvester: [error] write %d: %v", msg.ID, err)
	case outcome == core.OutcomeCreated:
		sum.Created++
		trace.IncCounter(ingesttrace.StageCreated)
		h.metrics.IncMessages("created")
		log.Printf("harvester: [new] %d stored", msg.ID)
	default:
		sum.Updated++
		trace.IncCounter(ingesttrace.StageUpdated)
		h.metrics.IncMessages("updated")
		log.Printf("harvester: [dup] %d already present, refreshed", msg.ID)
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
