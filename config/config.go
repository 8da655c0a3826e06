// Package config loads process configuration once at startup. Nothing
// else in the tree reads the environment.
package config

import (
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"clob/errs"
)

// Config is the complete runtime configuration, constructed once and
// passed to the components that need it.
type Config struct {
	// Port the WebSocket listener binds to. Required: an invalid or
	// missing port fails startup instead of being papered over.
	Port string `env:"PORT,required"`

	// DataDir holds the pebble durable log.
	DataDir string `env:"DATA_DIR" envDefault:"./data"`

	// PersistQueueDepth bounds the persistence queue; when it fills,
	// the engine blocks rather than growing memory without limit.
	PersistQueueDepth int `env:"PERSIST_QUEUE_DEPTH" envDefault:"1024"`

	Kafka KafkaConfig `envPrefix:"KAFKA_"`
}

// KafkaConfig configures the trade broadcaster and depth publisher.
// Both are optional; the engine runs standalone when disabled.
type KafkaConfig struct {
	Enabled       bool          `env:"ENABLED" envDefault:"false"`
	Brokers       []string      `env:"BROKERS" envDefault:"localhost:9092"`
	TradeTopic    string        `env:"TRADE_TOPIC" envDefault:"clob.trades"`
	DepthTopic    string        `env:"DEPTH_TOPIC" envDefault:"clob.depth"`
	DepthInterval time.Duration `env:"DEPTH_INTERVAL" envDefault:"2s"`
	DepthLevels   int           `env:"DEPTH_LEVELS" envDefault:"10"`
}

// Load reads .env (if present) and the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errs.E(errs.Config, "config.Load", err)
	}
	if err := validatePort(cfg.Port); err != nil {
		return Config{}, err
	}
	if cfg.PersistQueueDepth <= 0 {
		return Config{}, errs.Errorf(errs.Config, "config.Load", "PERSIST_QUEUE_DEPTH must be positive, got %d", cfg.PersistQueueDepth)
	}
	return cfg, nil
}

func validatePort(port string) error {
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return errs.Errorf(errs.Config, "config.Load", "invalid PORT %q", port)
	}
	return nil
}
