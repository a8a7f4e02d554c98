// Package config loads service configuration from an optional config file,
// an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. TOKENXFER_HTTP_ADDR.
const EnvPrefix = "TOKENXFER"

// Storage backends.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the full service configuration.
type Config struct {
	Solana     SolanaConfig     `mapstructure:"solana"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Kafka      KafkaConfig      `mapstructure:"kafka"`
	Log        LogConfig        `mapstructure:"log"`
}

// SolanaConfig selects the cluster endpoints, the signing wallet and the
// confirmation policy.
type SolanaConfig struct {
	RPCEndpoint         string        `mapstructure:"rpc_endpoint"`
	WSEndpoint          string        `mapstructure:"ws_endpoint"` // empty: confirm by polling
	KeypairPath         string        `mapstructure:"keypair_path"`
	Owner               string        `mapstructure:"owner"` // read-only identity when no keypair
	RPCMaxRetries       int           `mapstructure:"rpc_max_retries"`
	ConfirmPollInterval time.Duration `mapstructure:"confirm_poll_interval"`
	ConfirmTimeout      time.Duration `mapstructure:"confirm_timeout"`
}

// HTTPConfig configures the web server.
type HTTPConfig struct {
	Addr         string   `mapstructure:"addr"`
	CORSOrigins  []string `mapstructure:"cors_origins"`
	ImageDomains []string `mapstructure:"image_domains"` // empty allows every host
}

// EnrichmentConfig bounds metadata and image resolution.
type EnrichmentConfig struct {
	Concurrency     int           `mapstructure:"concurrency"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
}

// StorageConfig selects the transfer history backend and the metadata
// cache, and tunes the shared postgres pool.
type StorageConfig struct {
	Backend             string        `mapstructure:"backend"`        // memory | postgres
	MetadataCache       string        `mapstructure:"metadata_cache"` // memory | postgres | redis
	CacheTTL            time.Duration `mapstructure:"cache_ttl"`      // 0 keeps entries forever
	PostgresDSN         string        `mapstructure:"postgres_dsn"`
	PostgresMaxConns    int32         `mapstructure:"postgres_max_conns"`
	PostgresMaxConnIdle time.Duration `mapstructure:"postgres_max_conn_idle"`
	PostgresHealthCheck time.Duration `mapstructure:"postgres_health_check"`
}

// RedisConfig locates the redis metadata cache.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// KafkaConfig enables publishing transfer events.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"` // empty: publish to the log only
	Topic   string   `mapstructure:"topic"`
}

// LogConfig configures the logrus logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text | json
}

// legacyEnv maps plain environment names onto config keys.
var legacyEnv = map[string]string{
	"solana.rpc_endpoint":  "SOLANA_RPC_ENDPOINT",
	"solana.ws_endpoint":   "SOLANA_WS_ENDPOINT",
	"solana.keypair_path":  "SOLANA_KEYPAIR",
	"storage.postgres_dsn": "POSTGRES_DSN",
	"redis.addr":           "REDIS_ADDR",
	"kafka.brokers":        "KAFKA_BROKERS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("solana.rpc_endpoint", "https://api.devnet.solana.com")
	v.SetDefault("solana.ws_endpoint", "")
	v.SetDefault("solana.keypair_path", "")
	v.SetDefault("solana.owner", "")
	v.SetDefault("solana.rpc_max_retries", 3)
	v.SetDefault("solana.confirm_poll_interval", 500*time.Millisecond)
	v.SetDefault("solana.confirm_timeout", 60*time.Second)

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.cors_origins", []string{"*"})
	v.SetDefault("http.image_domains", []string{"w7.pngwing.com"})

	v.SetDefault("enrichment.concurrency", 8)
	v.SetDefault("enrichment.metadata_timeout", 5*time.Second)

	v.SetDefault("storage.backend", BackendMemory)
	v.SetDefault("storage.metadata_cache", BackendMemory)
	v.SetDefault("storage.cache_ttl", 24*time.Hour)
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.postgres_max_conns", 10)
	v.SetDefault("storage.postgres_max_conn_idle", 5*time.Minute)
	v.SetDefault("storage.postgres_health_check", time.Minute)

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "token-transfers")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Load reads configuration. configFile may be empty; a .env file in the
// working directory is loaded first when present. Existing environment
// variables win over .env entries.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return LoadWith(viper.New(), configFile)
}

// LoadWith reads configuration into v. Flags bound on v take precedence.
func LoadWith(v *viper.Viper, configFile string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		if err := v.BindEnv(key, EnvPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Solana.RPCEndpoint == "" {
		return errors.New("config: solana.rpc_endpoint is required")
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("config: unknown storage.backend %q", c.Storage.Backend)
	}

	switch c.Storage.MetadataCache {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("config: storage.postgres_dsn is required for the postgres metadata cache")
		}
	case BackendRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis.addr is required for the redis metadata cache")
		}
	default:
		return fmt.Errorf("config: unknown storage.metadata_cache %q", c.Storage.MetadataCache)
	}

	if c.Storage.CacheTTL < 0 {
		return fmt.Errorf("config: storage.cache_ttl must not be negative, got %s", c.Storage.CacheTTL)
	}
	if c.Storage.PostgresMaxConns < 0 {
		return fmt.Errorf("config: storage.postgres_max_conns must not be negative, got %d", c.Storage.PostgresMaxConns)
	}
	if c.Enrichment.Concurrency <= 0 {
		return fmt.Errorf("config: enrichment.concurrency must be positive, got %d", c.Enrichment.Concurrency)
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		return errors.New("config: kafka.topic is required when brokers are set")
	}
	return nil
}

// UsesPostgres reports whether any component needs a postgres pool.
func (c *Config) UsesPostgres() bool {
	return c.Storage.Backend == BackendPostgres || c.Storage.MetadataCache == BackendPostgres
}
