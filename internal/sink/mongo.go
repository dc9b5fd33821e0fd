package sink

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/you/tg-harvest/internal/core"
)

const (
	DefaultMongoDatabase   = "CTI_DB"
	DefaultMongoCollection = "telegram_logs"

	defaultMongoConnectTimeout = 10 * time.Second
	messageKeyIndex            = "channel_message_uq"
)

type MongoOptions struct {
	URI            string
	Database       string
	Collection     string
	CAFile         string // optional PEM bundle for TLS deployments
	ConnectTimeout time.Duration
}

type MongoSink struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// OpenMongo connects to MongoDB. Reachability is checked by Ping, not here.
func OpenMongo(ctx context.Context, opts MongoOptions) (*MongoSink, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultMongoConnectTimeout
	}
	clientOpts := options.Client().
		ApplyURI(opts.URI).
		SetConnectTimeout(timeout).
		SetServerSelectionTimeout(timeout)

	if opts.CAFile != "" {
		tlsCfg, err := loadCAFile(opts.CAFile)
		if err != nil {
			return nil, err
		}
		clientOpts.SetTLSConfig(tlsCfg)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect mongo")
	}

	database := opts.Database
	if database == "" {
		database = DefaultMongoDatabase
	}
	collection := opts.Collection
	if collection == "" {
		collection = DefaultMongoCollection
	}
	return NewMongoSink(client.Database(database).Collection(collection)), nil
}

// NewMongoSink wraps an existing collection handle.
func NewMongoSink(coll *mongo.Collection) *MongoSink {
	return &MongoSink{client: coll.Database().Client(), coll: coll}
}

func (s *MongoSink) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx, readpref.Primary()), "ping mongo")
}

func (s *MongoSink) Close(ctx context.Context) error {
	return errors.Wrap(s.client.Disconnect(ctx), "disconnect mongo")
}

// EnsureIndexes creates the unique (channel_name, message_id) index. It is a
// no-op when the index already exists.
func (s *MongoSink) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "channel_name", Value: 1},
			{Key: "message_id", Value: 1},
		},
		Options: options.Index().SetUnique(true).SetName(messageKeyIndex),
	})
	return errors.Wrap(err, "create message key index")
}

// Upsert replaces the whole document for (channel_name, message_id), inserting
// it when absent.
func (s *MongoSink) Upsert(ctx context.Context, rec core.Record) (core.Outcome, error) {
	filter := bson.D{
		{Key: "message_id", Value: rec.MessageID},
		{Key: "channel_name", Value: rec.ChannelName},
	}
	res, err := s.coll.ReplaceOne(ctx, filter, rec, options.Replace().SetUpsert(true))
	if err != nil {
		return 0, errors.Wrapf(err, "upsert message %d", rec.MessageID)
	}
	if res.UpsertedCount > 0 || res.UpsertedID != nil {
		return core.OutcomeCreated, nil
	}
	return core.OutcomeUpdated, nil
}

func (s *MongoSink) String() string {
	return fmt.Sprintf("MongoSink{%s.%s}", s.coll.Database().Name(), s.coll.Name())
}

func loadCAFile(path string) (*tls.Config, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read mongo ca file")
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, errors.Errorf("mongo ca file %s: no certificates found", path)
	}
	return &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}
