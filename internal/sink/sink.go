package sink

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/you/tg-harvest/internal/core"
)

// ErrUnknownSink is returned by Open for an unsupported sink name.
var ErrUnknownSink = errors.New("unknown sink")

// Store is a document store keyed by (channel_name, message_id).
type Store interface {
	Upsert(ctx context.Context, rec core.Record) (core.Outcome, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Settings selects and configures a Store.
type Settings struct {
	Name       string // "mongo" or "sqlite"
	Mongo      MongoOptions
	SQLitePath string
}

// Open connects to the configured store and verifies it is reachable.
func Open(ctx context.Context, s Settings) (Store, error) {
	var (
		store Store
		err   error
	)
	switch strings.ToLower(strings.TrimSpace(s.Name)) {
	case "", "mongo", "mongodb":
		store, err = OpenMongo(ctx, s.Mongo)
	case "sqlite":
		store, err = OpenSQLite(s.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSink, s.Name)
	}
	if err != nil {
		return nil, err
	}
	return verified(ctx, store)
}

// verified pings store and closes it when it is unreachable.
func verified(ctx context.Context, store Store) (Store, error) {
	if err := store.Ping(ctx); err != nil {
		if cerr := store.Close(ctx); cerr != nil {
			log.Printf("sink: close after failed ping: %v", cerr)
		}
		return nil, err
	}
	return store, nil
}
