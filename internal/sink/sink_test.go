package sink

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/you/tg-harvest/internal/core"
)

type stubStore struct {
	pingErr error
	closed  int
}

func (s *stubStore) Upsert(context.Context, core.Record) (core.Outcome, error) {
	return core.OutcomeCreated, nil
}
func (s *stubStore) Ping(context.Context) error  { return s.pingErr }
func (s *stubStore) Close(context.Context) error { s.closed++; return nil }

func TestVerifiedClosesUnreachableStore(t *testing.T) {
	stub := &stubStore{pingErr: errors.New("connection refused")}

	store, err := verified(context.Background(), stub)
	require.Error(t, err)
	assert.Nil(t, store)
	assert.Equal(t, 1, stub.closed)
}

func TestVerifiedKeepsReachableStore(t *testing.T) {
	stub := &stubStore{}

	store, err := verified(context.Background(), stub)
	require.NoError(t, err)
	assert.Same(t, stub, store)
	assert.Zero(t, stub.closed)
}

func TestOpenMongoUnreachable(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for server selection")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := Open(ctx, Settings{
		Name: "mongo",
		Mongo: MongoOptions{
			URI:            "mongodb://127.0.0.1:1",
			ConnectTimeout: time.Second,
		},
	})
	require.Error(t, err)
	assert.Nil(t, store)
}
