package config

import (
	"encoding/json"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Channel       string
	Sink          SinkConfig
	Source        SourceConfig
	Sync          SyncConfig
	MetricsFile   string
	LegacyEnvUsed []string
}

type SinkConfig struct {
	Name   string
	Mongo  MongoConfig
	SQLite SQLiteConfig
}

type MongoConfig struct {
	URI                string
	Database           string
	Collection         string
	CAFile             string
	ConnectTimeoutSecs int
}

type SQLiteConfig struct {
	Path string
}

type SourceConfig struct {
	BaseURL         string
	UserAgent       string
	PageRPS         float64
	HTTPTimeoutSecs int
}

type SyncConfig struct {
	RetentionDays int
	PaceMS        int
}

const (
	defaultChannel         = "usersecc"
	defaultSink            = "mongo"
	defaultMongoURI        = "mongodb://localhost:27017"
	defaultMongoDatabase   = "CTI_DB"
	defaultMongoCollection = "telegram_logs"
	defaultMongoTimeout    = 10
	defaultSQLitePath      = "telegram.db"
	defaultBaseURL         = "https://t.me"
	defaultPageRPS         = 1.0
	defaultHTTPTimeout     = 15
	defaultRetentionDays   = 90
	defaultPaceMS          = 1000
)

func Load() Config {
	cfg := Config{}

	cfg.Channel = cfg.readLegacy("TGH_CHANNEL", "TARGET_CHANNEL")
	if cfg.Channel == "" {
		cfg.Channel = defaultChannel
	}

	cfg.Sink.Name = strings.ToLower(strings.TrimSpace(os.Getenv("TGH_SINK")))
	if cfg.Sink.Name == "" {
		cfg.Sink.Name = defaultSink
	}

	cfg.Sink.Mongo.URI = cfg.readLegacy("TGH_MONGO_URI", "MONGO_URI")
	if cfg.Sink.Mongo.URI == "" {
		cfg.Sink.Mongo.URI = defaultMongoURI
	}
	cfg.Sink.Mongo.Database = readString("TGH_MONGO_DATABASE", defaultMongoDatabase)
	cfg.Sink.Mongo.Collection = readString("TGH_MONGO_COLLECTION", defaultMongoCollection)
	cfg.Sink.Mongo.CAFile = strings.TrimSpace(os.Getenv("TGH_MONGO_CA_FILE"))
	cfg.Sink.Mongo.ConnectTimeoutSecs = readInt("TGH_MONGO_CONNECT_TIMEOUT_SECS", defaultMongoTimeout)

	cfg.Sink.SQLite.Path = readString("TGH_SQLITE_PATH", defaultSQLitePath)

	cfg.Source.BaseURL = readString("TGH_SOURCE_BASE_URL", defaultBaseURL)
	cfg.Source.UserAgent = strings.TrimSpace(os.Getenv("TGH_USER_AGENT"))
	cfg.Source.PageRPS = readFloat("TGH_PAGE_RPS", defaultPageRPS)
	cfg.Source.HTTPTimeoutSecs = readInt("TGH_HTTP_TIMEOUT_SECS", defaultHTTPTimeout)

	cfg.Sync.RetentionDays = readInt("TGH_RETENTION_DAYS", defaultRetentionDays)
	cfg.Sync.PaceMS = readInt("TGH_PACE_MS", defaultPaceMS)

	cfg.MetricsFile = strings.TrimSpace(os.Getenv("TGH_METRICS_FILE"))

	return cfg
}

// readLegacy reads name, falling back to the unprefixed legacy variable and
// recording when it does.
func (c *Config) readLegacy(name, legacy string) string {
	if v := strings.TrimSpace(os.Getenv(name)); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv(legacy)); v != "" {
		c.LegacyEnvUsed = append(c.LegacyEnvUsed, legacy)
		return v
	}
	return ""
}

func readString(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func readInt(name string, def int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	if n <= 0 {
		return def
	}
	return n
}

func readFloat(name string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		return def
	}
	return f
}

func (c Config) Retention() time.Duration {
	days := c.Sync.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return time.Duration(days) * 24 * time.Hour
}

func (c Config) Pace() time.Duration {
	if c.Sync.PaceMS <= 0 {
		return time.Duration(defaultPaceMS) * time.Millisecond
	}
	return time.Duration(c.Sync.PaceMS) * time.Millisecond
}

func (c Config) MongoConnectTimeout() time.Duration {
	if c.Sink.Mongo.ConnectTimeoutSecs <= 0 {
		return defaultMongoTimeout * time.Second
	}
	return time.Duration(c.Sink.Mongo.ConnectTimeoutSecs) * time.Second
}

func (c Config) HTTPTimeout() time.Duration {
	if c.Source.HTTPTimeoutSecs <= 0 {
		return defaultHTTPTimeout * time.Second
	}
	return time.Duration(c.Source.HTTPTimeoutSecs) * time.Second
}

type Summary struct {
	Channel       string        `json:"channel"`
	Sink          string        `json:"sink"`
	Mongo         *MongoSummary `json:"mongo,omitempty"`
	SQLitePath    string        `json:"sqlite_path,omitempty"`
	RetentionDays int           `json:"retention_days"`
	PaceMS        int           `json:"pace_ms"`
	PageRPS       float64       `json:"page_rps"`
	MetricsFile   string        `json:"metrics_file,omitempty"`
	LegacyEnv     []string      `json:"legacy_env,omitempty"`
}

type MongoSummary struct {
	URI        string `json:"uri"`
	Database   string `json:"database"`
	Collection string `json:"collection"`
	CAFile     string `json:"ca_file,omitempty"`
}

func (c Config) Summary() Summary {
	s := Summary{
		Channel:       c.Channel,
		Sink:          c.Sink.Name,
		RetentionDays: c.Sync.RetentionDays,
		PaceMS:        c.Sync.PaceMS,
		PageRPS:       c.Source.PageRPS,
		MetricsFile:   c.MetricsFile,
		LegacyEnv:     append([]string(nil), c.LegacyEnvUsed...),
	}
	switch c.Sink.Name {
	case "sqlite":
		s.SQLitePath = c.Sink.SQLite.Path
	default:
		s.Mongo = &MongoSummary{
			URI:        RedactURI(c.Sink.Mongo.URI),
			Database:   c.Sink.Mongo.Database,
			Collection: c.Sink.Mongo.Collection,
			CAFile:     c.Sink.Mongo.CAFile,
		}
	}
	return s
}

func (c Config) SummaryJSON() []byte {
	summary := struct {
		Config Summary `json:"config_summary"`
	}{Config: c.Summary()}
	data, _ := json.Marshal(summary)
	return data
}

// RedactURI masks the password of a connection string.
func RedactURI(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return redactString(raw)
	}
	if u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "REDACTED")
	}
	return u.String()
}

func redactString(value string) string {
	if strings.TrimSpace(value) == "" {
		return ""
	}
	return "***REDACTED*** (len=" + strconv.Itoa(len(value)) + ")"
}
