// Package config loads the server configuration from YAML, then lets
// GOBLIN_* environment variables override it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goblin-trade/goblin-core-v1-sub000/domain/matching"
	"github.com/goblin-trade/goblin-core-v1-sub000/infra/storage"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Market   matching.MarketParams `yaml:"market"`
	Storage  storage.Config        `yaml:"storage"`
	WAL      WAL                   `yaml:"wal"`
	Outbox   Outbox                `yaml:"outbox"`
	Kafka    Kafka                 `yaml:"kafka"`
	GRPC     Listen                `yaml:"grpc"`
	HTTP     Listen                `yaml:"http"`
	Snapshot Snapshot              `yaml:"snapshot"`
	Log      Log                   `yaml:"log"`
}

type WAL struct {
	Dir             string        `yaml:"dir"`
	SegmentSize     int64         `yaml:"segment_size"`
	SegmentDuration time.Duration `yaml:"segment_duration"`
}

type Outbox struct {
	Dir string `yaml:"dir"`
}

type Kafka struct {
	Enabled bool `yaml:"enabled"`

	// Client is "sarama" or "kafka-go".
	Client       string        `yaml:"client"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type Listen struct {
	Addr string `yaml:"addr"`
}

type Snapshot struct {
	Dir      string        `yaml:"dir"`
	Interval time.Duration `yaml:"interval"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default is a single-node setup writing under the working directory.
func Default() Config {
	return Config{
		Market: matching.MarketParams{
			BaseLotsPerBaseUnit:            1,
			TickSizeInQuoteLotsPerBaseUnit: 1,
			BaseLotSize:                    1,
			QuoteLotSize:                   1,
		},
		Storage: storage.Config{Kind: storage.KindPebble, Path: "./state"},
		WAL: WAL{
			Dir:             "./wal_entry",
			SegmentSize:     2 * 1024 * 1024,
			SegmentDuration: time.Minute,
		},
		Outbox: Outbox{Dir: "./wal_exit"},
		Kafka: Kafka{
			Client:       "sarama",
			Brokers:      []string{"localhost:9092"},
			Topic:        "goblin.events",
			PollInterval: 250 * time.Millisecond,
		},
		GRPC:     Listen{Addr: ":50051"},
		HTTP:     Listen{Addr: ":8080"},
		Snapshot: Snapshot{Dir: "./snapshots", Interval: time.Minute},
		Log:      Log{Level: "info"},
	}
}

// Load reads path over the defaults. An empty path uses the defaults alone.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := overrideWithEnv(&cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := c.Market.Validate(); err != nil {
		return err
	}
	switch c.Storage.Kind {
	case storage.KindMemory, storage.KindPebble, storage.KindSQLite:
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}
	if storage.Durable(c.Storage.Kind) && c.Storage.Path == "" {
		return fmt.Errorf("storage %s needs a path", c.Storage.Kind)
	}
	if c.WAL.Dir == "" || c.WAL.SegmentSize <= 0 {
		return fmt.Errorf("wal needs a dir and a positive segment size")
	}
	if c.Kafka.Enabled {
		if len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "" {
			return fmt.Errorf("kafka needs brokers and a topic")
		}
		if c.Kafka.Client != "sarama" && c.Kafka.Client != "kafka-go" {
			return fmt.Errorf("unknown kafka client %q", c.Kafka.Client)
		}
	}
	return nil
}

// overrideWithEnv applies GOBLIN_* variables. lookup is os.LookupEnv
// outside tests.
func overrideWithEnv(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("GOBLIN_STORAGE_PATH", &cfg.Storage.Path)
	str("GOBLIN_WAL_DIR", &cfg.WAL.Dir)
	str("GOBLIN_OUTBOX_DIR", &cfg.Outbox.Dir)
	str("GOBLIN_KAFKA_TOPIC", &cfg.Kafka.Topic)
	str("GOBLIN_KAFKA_CLIENT", &cfg.Kafka.Client)
	str("GOBLIN_GRPC_ADDR", &cfg.GRPC.Addr)
	str("GOBLIN_HTTP_ADDR", &cfg.HTTP.Addr)
	str("GOBLIN_SNAPSHOT_DIR", &cfg.Snapshot.Dir)
	str("GOBLIN_LOG_LEVEL", &cfg.Log.Level)

	if v, ok := lookup("GOBLIN_STORAGE_KIND"); ok && v != "" {
		cfg.Storage.Kind = storage.Kind(v)
	}
	if v, ok := lookup("GOBLIN_KAFKA_BROKERS"); ok && v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v, ok := lookup("GOBLIN_KAFKA_ENABLED"); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: GOBLIN_KAFKA_ENABLED: %w", err)
		}
		cfg.Kafka.Enabled = b
	}
	if v, ok := lookup("GOBLIN_SNAPSHOT_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("config: GOBLIN_SNAPSHOT_INTERVAL: %w", err)
		}
		cfg.Snapshot.Interval = d
	}
	return nil
}
