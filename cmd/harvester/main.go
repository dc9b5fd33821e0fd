package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/you/tg-harvest/internal/config"
	"github.com/you/tg-harvest/internal/harvester"
	"github.com/you/tg-harvest/internal/metrics"
	"github.com/you/tg-harvest/internal/sink"
	"github.com/you/tg-harvest/internal/tgweb"
	"github.com/you/tg-harvest/internal/version"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	var (
		versionFlag     bool
		envFile         string
		channel         string
		sinkName        string
		mongoURI        string
		mongoDB         string
		mongoCollection string
		mongoCAFile     string
		sqlitePath      string
		retentionDays   int
		paceMS          int
		metricsFile     string
	)

	flag.BoolVar(&versionFlag, "version", false, "Print build version and exit")
	flag.StringVar(&envFile, "env-file", ".env", "Optional dotenv file loaded before reading the environment")
	flag.StringVar(&channel, "channel", "", "Public Telegram channel to harvest (name, @name or t.me link)")
	flag.StringVar(&sinkName, "sink", "", "Document store: mongo or sqlite")
	flag.StringVar(&mongoURI, "mongo-uri", "", "MongoDB connection string")
	flag.StringVar(&mongoDB, "mongo-db", "", "MongoDB database name")
	flag.StringVar(&mongoCollection, "mongo-collection", "", "MongoDB collection name")
	flag.StringVar(&mongoCAFile, "mongo-ca-file", "", "PEM bundle used to verify the MongoDB server")
	flag.StringVar(&sqlitePath, "sqlite", "", "Path to SQLite database file (sink=sqlite)")
	flag.IntVar(&retentionDays, "retention-days", 0, "Only collect messages newer than this many days")
	flag.IntVar(&paceMS, "pace-ms", 0, "Delay after each stored message, in milliseconds")
	flag.StringVar(&metricsFile, "metrics-file", "", "Write Prometheus textfile metrics here when the run ends")
	flag.Parse()

	if versionFlag {
		fmt.Printf(
			"harvester version: %s (commit %s, built %s)\n",
			version.Version,
			version.Commit,
			version.BuildTime,
		)
		os.Exit(0)
	}

	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("harvester: env file %s: %v", envFile, err)
		}
	}

	overrides := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		overrides[f.Name] = true
	})

	cfg := config.Load()
	if overrides["channel"] {
		cfg.Channel = strings.TrimSpace(channel)
	}
	if overrides["sink"] {
		cfg.Sink.Name = strings.ToLower(strings.TrimSpace(sinkName))
	}
	if overrides["mongo-uri"] {
		cfg.Sink.Mongo.URI = strings.TrimSpace(mongoURI)
	}
	if overrides["mongo-db"] {
		cfg.Sink.Mongo.Database = strings.TrimSpace(mongoDB)
	}
	if overrides["mongo-collection"] {
		cfg.Sink.Mongo.Collection = strings.TrimSpace(mongoCollection)
	}
	if overrides["mongo-ca-file"] {
		cfg.Sink.Mongo.CAFile = strings.TrimSpace(mongoCAFile)
	}
	if overrides["sqlite"] {
		cfg.Sink.SQLite.Path = strings.TrimSpace(sqlitePath)
		cfg.Sink.Name = "sqlite"
	}
	if overrides["retention-days"] {
		cfg.Sync.RetentionDays = retentionDays
	}
	if overrides["pace-ms"] {
		cfg.Sync.PaceMS = paceMS
	}
	if overrides["metrics-file"] {
		cfg.MetricsFile = strings.TrimSpace(metricsFile)
	}

	cfg.Channel = tgweb.NormalizeChannel(cfg.Channel)
	if cfg.Channel == "" {
		log.Fatal("harvester: channel is required")
	}
	for _, legacy := range cfg.LegacyEnvUsed {
		log.Printf("harvester: using legacy env %s; prefer the TGH_ prefixed name", legacy)
	}
	log.Printf("%s", cfg.SummaryJSON())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Printf("harvester: received %s, shutting down", sig)
		cancel()
	}()

	os.Exit(run(ctx, cfg))
}

// run owns every deferred cleanup so that main can exit with its code.
func run(ctx context.Context, cfg config.Config) int {
	openCtx, cancelOpen := context.WithTimeout(ctx, cfg.MongoConnectTimeout())
	store, err := sink.Open(openCtx, sink.Settings{
		Name: cfg.Sink.Name,
		Mongo: sink.MongoOptions{
			URI:            cfg.Sink.Mongo.URI,
			Database:       cfg.Sink.Mongo.Database,
			Collection:     cfg.Sink.Mongo.Collection,
			CAFile:         cfg.Sink.Mongo.CAFile,
			ConnectTimeout: cfg.MongoConnectTimeout(),
		},
		SQLitePath: cfg.Sink.SQLite.Path,
	})
	cancelOpen()
	if err != nil {
		log.Printf("harvester: store unreachable, aborting: %v", err)
		return 1
	}
	log.Printf("harvester: connected to %s store", cfg.Sink.Name)
	defer func() {
		closeCtx, cancelClose := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelClose()
		if err := store.Close(closeCtx); err != nil {
			log.Printf("harvester: closing store: %v", err)
		}
	}()

	if ms, ok := store.(*sink.MongoSink); ok {
		if err := ms.EnsureIndexes(ctx); err != nil {
			log.Printf("harvester: %v", err)
		}
	}

	m := metrics.New(cfg.Channel)
	web := tgweb.New(tgweb.Config{
		BaseURL:   cfg.Source.BaseURL,
		UserAgent: cfg.Source.UserAgent,
		PageRPS:   cfg.Source.PageRPS,
		Timeout:   cfg.HTTPTimeout(),
		OnPage:    m.IncSourcePages,
	})
	source := harvester.SourceFunc(func(ctx context.Context, channel string) (harvester.Cursor, error) {
		cur, err := web.Iterate(ctx, channel)
		if err != nil {
			return nil, err
		}
		return cur, nil
	})

	har, err := harvester.New(harvester.Options{
		Channel:   cfg.Channel,
		Source:    source,
		Store:     store,
		Retention: cfg.Retention(),
		Pace:      cfg.Pace(),
		Metrics:   m,
	})
	if err != nil {
		log.Printf("harvester: %v", err)
		return 1
	}

	summary, runErr := har.Run(ctx)
	log.Printf("harvester: done: %s", summary)

	if cfg.MetricsFile != "" {
		if err := m.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Printf("harvester: write metrics: %v", err)
		}
	}

	if runErr != nil {
		log.Printf("harvester: run ended early: %v", runErr)
		return 1
	}
	return 0
}
