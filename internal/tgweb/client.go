// Package tgweb reads public Telegram channels through the t.me web preview.
package tgweb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/you/tg-harvest/internal/core"
)

const (
	DefaultBaseURL   = "https://t.me"
	DefaultUserAgent = "Mozilla/5.0 (compatible; tg-harvest/1.0)"

	defaultTimeout = 15 * time.Second
	defaultPageRPS = 1.0
	maxPageBytes   = 5 << 20
)

// ErrChannelRequired is returned by Iterate for an empty channel name.
var ErrChannelRequired = errors.New("tgweb: channel is required")

type Config struct {
	BaseURL   string
	UserAgent string
	PageRPS   float64 // page fetches per second; <= 0 uses the default
	Timeout   time.Duration
	HTTP      *http.Client
	OnPage    func() // called after every fetched page
}

type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	onPage    func()
}

func New(cfg Config) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	ua := strings.TrimSpace(cfg.UserAgent)
	if ua == "" {
		ua = DefaultUserAgent
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	httpClient := cfg.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	rps := cfg.PageRPS
	if rps <= 0 {
		rps = defaultPageRPS
	}
	return &Client{
		baseURL:   base,
		userAgent: ua,
		http:      httpClient,
		limiter:   rate.NewLimiter(rate.Limit(rps), 1),
		onPage:    cfg.OnPage,
	}
}

// NormalizeChannel accepts "name", "@name" or a t.me link and returns "name".
func NormalizeChannel(raw string) string {
	ch := strings.TrimSpace(raw)
	if strings.Contains(ch, "://") {
		if u, err := url.Parse(ch); err == nil {
			ch = u.Path
		}
	}
	ch = strings.Trim(ch, "/")
	ch = strings.TrimPrefix(ch, "s/")
	if i := strings.IndexByte(ch, '/'); i >= 0 {
		ch = ch[:i]
	}
	return strings.TrimPrefix(ch, "@")
}

// Iterate returns a lazy newest-first cursor over the channel. No request is
// made until the first call to Next.
func (c *Client) Iterate(_ context.Context, channel string) (*Cursor, error) {
	ch := NormalizeChannel(channel)
	if ch == "" {
		return nil, ErrChannelRequired
	}
	return &Cursor{client: c, channel: ch}, nil
}

// Cursor pages backwards through a channel's history.
type Cursor struct {
	client  *Client
	channel string

	buf    []core.Message
	before int64 // smallest id seen so far; 0 before the first page
	pages  int
	done   bool
}

// Next returns the next older message, or io.EOF once history is exhausted.
func (cur *Cursor) Next(ctx context.Context) (core.Message, error) {
	for len(cur.buf) == 0 {
		if cur.done {
			return core.Message{}, io.EOF
		}
		if err := cur.fill(ctx); err != nil {
			return core.Message{}, err
		}
	}
	msg := cur.buf[0]
	cur.buf = cur.buf[1:]
	return msg, nil
}

func (cur *Cursor) fill(ctx context.Context) error {
	msgs, err := cur.client.fetchPage(ctx, cur.channel, cur.before)
	if err != nil {
		return err
	}
	cur.pages++

	fresh := msgs[:0]
	for _, m := range msgs {
		if cur.before == 0 || m.ID < cur.before {
			fresh = append(fresh, m)
		}
	}
	if len(fresh) == 0 {
		cur.done = true
		return nil
	}
	cur.buf = fresh
	cur.before = fresh[len(fresh)-1].ID
	if cur.before <= 1 {
		cur.done = true
	}
	return nil
}

// Pages reports how many pages the cursor has fetched.
func (cur *Cursor) Pages() int { return cur.pages }

func (c *Client) pageURL(channel string, before int64) string {
	u := c.baseURL + "/s/" + url.PathEscape(channel)
	if before > 0 {
		u += "?before=" + strconv.FormatInt(before, 10)
	}
	return u
}

func (c *Client) fetchPage(ctx context.Context, channel string, before int64) ([]core.Message, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target := c.pageURL(channel, before)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tgweb: fetch %s: %w", target, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tgweb: fetch %s: unexpected status %s", target, resp.Status)
	}
	// t.me redirects away from /s/ when a channel has no public preview.
	if resp.Request != nil && !strings.HasPrefix(resp.Request.URL.Path, "/s/") {
		return nil, fmt.Errorf("tgweb: channel %s has no public web preview", channel)
	}

	msgs, err := parsePage(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, err
	}
	if c.onPage != nil {
		c.onPage()
	}
	log.Printf("tgweb: fetched %s (%d posts)", target, len(msgs))
	return msgs, nil
}
