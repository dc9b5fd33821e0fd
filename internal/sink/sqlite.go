package sink

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pkg/errors"

	"github.com/you/tg-harvest/internal/core"
)

const schema = `CREATE TABLE IF NOT EXISTS messages (
  channel_name TEXT NOT NULL,
  message_id INTEGER NOT NULL,
  date TEXT NOT NULL,
  text TEXT NOT NULL,
  text_translated TEXT,
  views INTEGER,
  is_forwarded INTEGER NOT NULL DEFAULT 0,
  forward_from TEXT,
  url TEXT NOT NULL,
  crawled_at TEXT NOT NULL,
  PRIMARY KEY (channel_name, message_id)
);`

// TuningEnv opts a SQLite store into relaxed durability for bulk harvests.
const TuningEnv = "TGH_SQLITE_TUNING"

var tuning = []string{
	"PRAGMA synchronous=NORMAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA temp_store=MEMORY",
}

type SQLiteSink struct {
	db *sql.DB
}

func OpenSQLite(path string) (*SQLiteSink, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	// One writer; avoids SQLITE_BUSY between the probe and the write.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "apply schema")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=wal;`); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "set WAL")
	}
	if os.Getenv(TuningEnv) == "1" {
		for _, pragma := range tuning {
			// Tuning is best effort; the store works without it.
			if _, err := db.Exec(pragma); err != nil {
				log.Printf("sink: sqlite %s: %v", pragma, err)
			}
		}
	}
	return &SQLiteSink{db: db}, nil
}

func (s *SQLiteSink) Close(context.Context) error { return s.db.Close() }

func (s *SQLiteSink) Ping(ctx context.Context) error {
	return errors.Wrap(s.db.PingContext(ctx), "ping sqlite")
}

// Upsert replaces every column of the (channel_name, message_id) row.
func (s *SQLiteSink) Upsert(ctx context.Context, rec core.Record) (core.Outcome, error) {
	const probe = `SELECT 1 FROM messages WHERE channel_name = ? AND message_id = ?;`
	const q = `INSERT INTO messages (channel_name, message_id, date, text, text_translated, views, is_forwarded, forward_from, url, crawled_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(channel_name, message_id) DO UPDATE SET
  date = excluded.date,
  text = excluded.text,
  text_translated = excluded.text_translated,
  views = excluded.views,
  is_forwarded = excluded.is_forwarded,
  forward_from = excluded.forward_from,
  url = excluded.url,
  crawled_at = excluded.crawled_at;`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin upsert")
	}
	defer func() { _ = tx.Rollback() }()

	outcome := core.OutcomeUpdated
	var one int
	switch err := tx.QueryRowContext(ctx, probe, rec.ChannelName, rec.MessageID).Scan(&one); {
	case errors.Is(err, sql.ErrNoRows):
		outcome = core.OutcomeCreated
	case err != nil:
		return 0, errors.Wrapf(err, "probe message %d", rec.MessageID)
	}

	_, err = tx.ExecContext(ctx, q,
		rec.ChannelName,
		rec.MessageID,
		formatTime(rec.Date),
		rec.Text,
		nullString(rec.TextTranslated),
		nullInt(rec.Views),
		rec.IsForwarded,
		nullString(rec.ForwardFrom),
		rec.URL,
		formatTime(rec.CrawledAt),
	)
	if err != nil {
		return 0, errors.Wrapf(err, "upsert message %d", rec.MessageID)
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit upsert")
	}
	return outcome, nil
}

// Get loads a stored record.
func (s *SQLiteSink) Get(ctx context.Context, channel string, id int64) (core.Record, bool, error) {
	const q = `SELECT channel_name, message_id, date, text, text_translated, views, is_forwarded, forward_from, url, crawled_at
FROM messages WHERE channel_name = ? AND message_id = ?;`
	var (
		rec                 core.Record
		date, crawled       string
		translated, forward sql.NullString
		views               sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, q, channel, id).Scan(
		&rec.ChannelName, &rec.MessageID, &date, &rec.Text, &translated, &views,
		&rec.IsForwarded, &forward, &rec.URL, &crawled,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Record{}, false, nil
	}
	if err != nil {
		return core.Record{}, false, errors.Wrap(err, "get message")
	}
	if t, err := time.Parse(time.RFC3339Nano, date); err == nil {
		rec.Date = t
	}
	if t, err := time.Parse(time.RFC3339Nano, crawled); err == nil {
		rec.CrawledAt = t
	}
	if translated.Valid {
		rec.TextTranslated = &translated.String
	}
	if forward.Valid {
		rec.ForwardFrom = &forward.String
	}
	if views.Valid {
		rec.Views = &views.Int64
	}
	return rec, true, nil
}

// Count returns the number of stored messages for a channel.
func (s *SQLiteSink) Count(ctx context.Context, channel string) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE channel_name = ?;`, channel).Scan(&n); err != nil {
		return 0, errors.Wrap(err, "count")
	}
	return n, nil
}

func (s *SQLiteSink) String() string {
	return fmt.Sprintf("SQLiteSink{%p}", s.db)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullInt(n *int64) sql.NullInt64 {
	if n == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *n, Valid: true}
}
