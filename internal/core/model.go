package core

import (
	"strconv"
	"time"
)

// MessageHost is the public host used to build permalinks.
const MessageHost = "t.me"

// Message is a single channel post as yielded by a message source.
type Message struct {
	ID      int64
	Date    time.Time // UTC
	Text    string    // empty when the post carries no text
	Views   *int64
	Forward *ForwardOrigin
}

// HasText reports whether the message has a text payload worth persisting.
func (m Message) HasText() bool { return m.Text != "" }

// Record is the document persisted for every harvested message.
type Record struct {
	ChannelName    string    `bson:"channel_name" json:"channel_name"`
	MessageID      int64     `bson:"message_id" json:"message_id"`
	Date           time.Time `bson:"date" json:"date"`
	Text           string    `bson:"text" json:"text"`
	TextTranslated *string   `bson:"text_translated" json:"text_translated"`
	Views          *int64    `bson:"views" json:"views"`
	IsForwarded    bool      `bson:"is_forwarded" json:"is_forwarded"`
	ForwardFrom    *string   `bson:"forward_from" json:"forward_from"`
	URL            string    `bson:"url" json:"url"`
	CrawledAt      time.Time `bson:"crawled_at" json:"crawled_at"`
}

// Outcome reports what an upsert did to the store.
type Outcome int

const (
	OutcomeCreated Outcome = iota + 1
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// MessageURL returns the public permalink of a channel post.
func MessageURL(channel string, id int64) string {
	return "https://" + MessageHost + "/" + channel + "/" + strconv.FormatInt(id, 10)
}

// NewRecord normalizes a source message into the persisted shape, taking the
// forward fields from fwd. text_translated is always left nil.
func NewRecord(channel string, msg Message, fwd ForwardResult, crawledAt time.Time) Record {
	return Record{
		ChannelName: channel,
		MessageID:   msg.ID,
		Date:        msg.Date.UTC(),
		Text:        msg.Text,
		Views:       msg.Views,
		IsForwarded: fwd.Forwarded(),
		ForwardFrom: fwd.Value(),
		URL:         MessageURL(channel, msg.ID),
		CrawledAt:   crawledAt.UTC(),
	}
}
