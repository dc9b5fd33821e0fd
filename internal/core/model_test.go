package core

import (
	"errors"
	"testing"
	"time"
)

func TestMessageURL(t *testing.T) {
	if got := MessageURL("usersecc", 12345); got != "https://t.me/usersecc/12345" {
		t.Fatalf("MessageURL = %q", got)
	}
}

func TestResolveForward(t *testing.T) {
	cases := []struct {
		name      string
		origin    *ForwardOrigin
		kind      ForwardKind
		forwarded bool
		want      *string
	}{
		{name: "not forwarded", origin: nil, kind: ForwardNone},
		{name: "by id", origin: &ForwardOrigin{FromID: "durov", FromName: "Pavel"}, kind: ForwardByID, forwarded: true, want: strPtr("durov")},
		{name: "by name", origin: &ForwardOrigin{FromName: "Hidden User"}, kind: ForwardByName, forwarded: true, want: strPtr("Hidden User")},
		{name: "error", origin: &ForwardOrigin{FromID: "x", Err: errors.New("bad href")}, kind: ForwardSentinel, forwarded: true, want: strPtr(UnknownForward)},
		{name: "empty origin", origin: &ForwardOrigin{}, kind: ForwardAnonymous, forwarded: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := ResolveForward(tc.origin)
			if res.Kind != tc.kind {
				t.Fatalf("kind = %s, want %s", res.Kind, tc.kind)
			}
			if res.Forwarded() != tc.forwarded {
				t.Fatalf("forwarded = %v, want %v", res.Forwarded(), tc.forwarded)
			}
			got := res.Value()
			switch {
			case tc.want == nil && got != nil:
				t.Fatalf("value = %q, want nil", *got)
			case tc.want != nil && got == nil:
				t.Fatalf("value = nil, want %q", *tc.want)
			case tc.want != nil && *got != *tc.want:
				t.Fatalf("value = %q, want %q", *got, *tc.want)
			}
		})
	}
}

func TestNewRecord(t *testing.T) {
	views := int64(42)
	authored := time.Date(2026, 9, 1, 12, 0, 0, 0, time.FixedZone("MSK", 3*3600))
	crawled := time.Date(2026, 10, 17, 8, 0, 0, 0, time.UTC)

	origin := &ForwardOrigin{FromName: "someone"}
	rec := NewRecord("usersecc", Message{
		ID:      7,
		Date:    authored,
		Text:    "hello",
		Views:   &views,
		Forward: origin,
	}, ResolveForward(origin), crawled)

	if rec.ChannelName != "usersecc" || rec.MessageID != 7 {
		t.Fatalf("unexpected key: %s/%d", rec.ChannelName, rec.MessageID)
	}
	if rec.Date.Location() != time.UTC || !rec.Date.Equal(authored) {
		t.Fatalf("date not normalized to UTC: %v", rec.Date)
	}
	if rec.TextTranslated != nil {
		t.Fatalf("text_translated must be nil")
	}
	if rec.Views == nil || *rec.Views != 42 {
		t.Fatalf("views = %v", rec.Views)
	}
	if !rec.IsForwarded || rec.ForwardFrom == nil || *rec.ForwardFrom != "someone" {
		t.Fatalf("forward fields = %v %v", rec.IsForwarded, rec.ForwardFrom)
	}
	if rec.URL != "https://t.me/usersecc/7" {
		t.Fatalf("url = %q", rec.URL)
	}
	if !rec.CrawledAt.Equal(crawled) {
		t.Fatalf("crawled_at = %v", rec.CrawledAt)
	}
}

func TestNewRecordNotForwarded(t *testing.T) {
	rec := NewRecord("usersecc", Message{ID: 1, Date: time.Now(), Text: "x"}, ResolveForward(nil), time.Now())
	if rec.IsForwarded {
		t.Fatalf("expected is_forwarded false")
	}
	if rec.ForwardFrom != nil {
		t.Fatalf("expected forward_from nil, got %q", *rec.ForwardFrom)
	}
}

func strPtr(s string) *string { return &s }
