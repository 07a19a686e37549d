package config

import (
	"fmt"
	"time"

	"auction-trust/internal/domain"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Log         LogConfig         `mapstructure:"log"`
	Store       StoreConfig       `mapstructure:"store"`
	Redis       RedisConfig       `mapstructure:"redis"`
	MySQL       MySQLConfig       `mapstructure:"mysql"`
	Leader      LeaderConfig      `mapstructure:"leader"`
	Instance    InstanceConfig    `mapstructure:"instance"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Moderation  ModerationConfig  `mapstructure:"moderation"`
	Sweeper     SweeperConfig     `mapstructure:"sweeper"`
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// StoreConfig selects the document store backend: "redis", "mysql" or "memory".
// A positive CacheTTL enables the read cache in front of it, holding at most
// CacheSize documents.
type StoreConfig struct {
	Driver    string        `mapstructure:"driver"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`
	CacheSize int           `mapstructure:"cache_size"`
}

// RedisConfig.ReindexOnStart rebuilds the document store's secondary indexes at
// startup, for documents written by other producers.
type RedisConfig struct {
	Address        string `mapstructure:"address"`
	Password       string `mapstructure:"password"`
	DB             int    `mapstructure:"db"`
	ReindexOnStart bool   `mapstructure:"reindex_on_start"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type LeaderConfig struct {
	Key string        `mapstructure:"key"`
	TTL time.Duration `mapstructure:"ttl"`
}

type InstanceConfig struct {
	ID string `mapstructure:"id"`
}

type EligibilityConfig struct {
	MinAccountAge       time.Duration `mapstructure:"min_account_age"`
	MaxFailedBids       int           `mapstructure:"max_failed_bids"`
	MinMessages         int           `mapstructure:"min_messages"`
	EnforceSellerBlocks bool          `mapstructure:"enforce_seller_blocks"`
}

type ModerationConfig struct {
	CooldownStepDays int `mapstructure:"cooldown_step_days"`
}

type SweeperConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("store.driver", "redis")
	viper.SetDefault("store.cache_ttl", 0)
	viper.SetDefault("store.cache_size", 10000)
	viper.SetDefault("redis.address", "localhost:6379")
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.reindex_on_start", false)
	viper.SetDefault("mysql.dsn", "trust_user:trust_pass@tcp(localhost:3306)/trust_db?parseTime=true")
	viper.SetDefault("mysql.max_open_conns", 25)
	viper.SetDefault("mysql.max_idle_conns", 10)
	viper.SetDefault("mysql.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("leader.key", "trust_sweeper_leader")
	viper.SetDefault("leader.ttl", 30*time.Second)
	viper.SetDefault("instance.id", "trust-service-1")
	viper.SetDefault("eligibility.min_account_age", 7*24*time.Hour)
	viper.SetDefault("eligibility.max_failed_bids", 5)
	viper.SetDefault("eligibility.min_messages", 5)
	viper.SetDefault("eligibility.enforce_seller_blocks", true)
	viper.SetDefault("moderation.cooldown_step_days", 3)
	viper.SetDefault("sweeper.enabled", true)
	viper.SetDefault("sweeper.schedule", "@every 5m")
}

func Load() (*Config, error) {
	setDefaults()

	// Configuration file settings
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/auction-trust/")

	// Environment variable support
	viper.AutomaticEnv()

	// Environment variable mappings
	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.host", "SERVER_HOST")
	viper.BindEnv("log.level", "LOG_LEVEL")
	viper.BindEnv("store.driver", "STORE_DRIVER")
	viper.BindEnv("store.cache_ttl", "STORE_CACHE_TTL")
	viper.BindEnv("store.cache_size", "STORE_CACHE_SIZE")
	viper.BindEnv("redis.address", "REDIS_ADDRESS")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")
	viper.BindEnv("redis.reindex_on_start", "REDIS_REINDEX_ON_START")
	viper.BindEnv("mysql.dsn", "MYSQL_DSN")
	viper.BindEnv("mysql.max_open_conns", "MYSQL_MAX_OPEN_CONNS")
	viper.BindEnv("mysql.max_idle_conns", "MYSQL_MAX_IDLE_CONNS")
	viper.BindEnv("mysql.conn_max_lifetime", "MYSQL_CONN_MAX_LIFETIME")
	viper.BindEnv("leader.key", "LEADER_KEY")
	viper.BindEnv("leader.ttl", "LEADER_TTL")
	viper.BindEnv("instance.id", "INSTANCE_ID")
	viper.BindEnv("eligibility.min_account_age", "ELIGIBILITY_MIN_ACCOUNT_AGE")
	viper.BindEnv("eligibility.max_failed_bids", "ELIGIBILITY_MAX_FAILED_BIDS")
	viper.BindEnv("eligibility.min_messages", "ELIGIBILITY_MIN_MESSAGES")
	viper.BindEnv("eligibility.enforce_seller_blocks", "ELIGIBILITY_ENFORCE_SELLER_BLOCKS")
	viper.BindEnv("moderation.cooldown_step_days", "MODERATION_COOLDOWN_STEP_DAYS")
	viper.BindEnv("sweeper.enabled", "SWEEPER_ENABLED")
	viper.BindEnv("sweeper.schedule", "SWEEPER_SCHEDULE")

	// Read configuration file (optional - will use defaults/env vars if not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(configPath string) (*Config, error) {
	setDefaults()
	viper.SetConfigFile(configPath)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "redis", "mysql", "memory":
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Moderation.CooldownStepDays <= 0 {
		return fmt.Errorf("moderation.cooldown_step_days must be positive, got %d", c.Moderation.CooldownStepDays)
	}
	return nil
}

func (c *Config) EligibilityPolicy() domain.EligibilityPolicy {
	return domain.EligibilityPolicy{
		MinAccountAge:      c.Eligibility.MinAccountAge,
		MaxFailedBids:      c.Eligibility.MaxFailedBids,
		MinMessages:        c.Eligibility.MinMessages,
		EnforceSellerBlock: c.Eligibility.EnforceSellerBlocks,
	}
}

func (c *Config) CooldownPolicy() domain.CooldownPolicy {
	return domain.CooldownPolicy{StepDays: c.Moderation.CooldownStepDays}
}

// GetConfigString returns a formatted string representation of the config
func (c *Config) GetConfigString() string {
	return fmt.Sprintf(
		"Server: %s:%d, Store: %s, Redis: %s, Instance: %s",
		c.Server.Host,
		c.Server.Port,
		c.Store.Driver,
		c.Redis.Address,
		c.Instance.ID,
	)
}
