package tgweb

import (
	"fmt"
	"io"
	"log"
	"math"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/you/tg-harvest/internal/core"
)

// parsePage extracts the channel posts of one web preview page, newest first.
func parsePage(r io.Reader) ([]core.Message, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("tgweb: parse page: %w", err)
	}

	var out []core.Message
	doc.Find("div.tgme_widget_message[data-post]").Each(func(_ int, s *goquery.Selection) {
		msg, err := parseMessage(s)
		if err != nil {
			log.Printf("tgweb: skipping post: %v", err)
			return
		}
		out = append(out, msg)
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func parseMessage(s *goquery.Selection) (core.Message, error) {
	post, _ := s.Attr("data-post")
	id, err := postID(post)
	if err != nil {
		return core.Message{}, err
	}

	msg := core.Message{ID: id}

	raw, ok := s.Find(".tgme_widget_message_date time[datetime]").First().Attr("datetime")
	if !ok {
		return core.Message{}, fmt.Errorf("post %s: missing date", post)
	}
	date, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return core.Message{}, fmt.Errorf("post %s: bad date %q: %w", post, raw, err)
	}
	msg.Date = date.UTC()

	msg.Text = messageText(s)

	if views, ok := parseViews(s.Find(".tgme_widget_message_views").First().Text()); ok {
		msg.Views = &views
	}

	if fwd := s.Find(".tgme_widget_message_forwarded_from_name").First(); fwd.Length() > 0 {
		msg.Forward = forwardOrigin(fwd)
	}
	return msg, nil
}

// postID takes the numeric id out of a "channel/123" data-post value.
func postID(post string) (int64, error) {
	i := strings.LastIndexByte(post, '/')
	if i < 0 || i == len(post)-1 {
		return 0, fmt.Errorf("malformed data-post %q", post)
	}
	id, err := strconv.ParseInt(post[i+1:], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("malformed data-post %q", post)
	}
	return id, nil
}

// messageText returns the post body, excluding any quoted reply, with line
// breaks kept.
func messageText(s *goquery.Selection) string {
	body := s.Find(".tgme_widget_message_text").FilterFunction(func(_ int, el *goquery.Selection) bool {
		return el.ParentsFiltered(".tgme_widget_message_reply").Length() == 0
	}).First()
	if body.Length() == 0 {
		return ""
	}
	body.Find("br").ReplaceWithHtml("\n")
	return strings.TrimSpace(body.Text())
}

// forwardOrigin reads the "Forwarded from" header. A link names the origin
// channel or user; a bare span only carries a display name.
func forwardOrigin(s *goquery.Selection) *core.ForwardOrigin {
	origin := &core.ForwardOrigin{FromName: strings.TrimSpace(s.Text())}
	if !s.Is("a") {
		return origin
	}
	href, ok := s.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return origin
	}
	id, err := originFromHref(href)
	if err != nil {
		origin.Err = err
		return origin
	}
	origin.FromID = id
	return origin
}

func originFromHref(href string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("forward href %q: %w", href, err)
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) == 0 || segments[0] == "" {
		return "", fmt.Errorf("forward href %q: no origin in path", href)
	}
	if segments[0] == "s" || segments[0] == "c" {
		if len(segments) < 2 || segments[1] == "" {
			return "", fmt.Errorf("forward href %q: no origin in path", href)
		}
		return segments[1], nil
	}
	return segments[0], nil
}

// parseViews decodes counters such as "987", "1.2K" or "3M".
func parseViews(raw string) (int64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	mult := 1.0
	switch suffix := raw[len(raw)-1]; suffix {
	case 'K', 'k':
		mult = 1e3
		raw = raw[:len(raw)-1]
	case 'M', 'm':
		mult = 1e6
		raw = raw[:len(raw)-1]
	case 'B', 'b':
		mult = 1e9
		raw = raw[:len(raw)-1]
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(math.Round(f * mult)), true
}
