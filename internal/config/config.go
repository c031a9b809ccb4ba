package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	DB         DBConfig         `mapstructure:"db"`
	Cron       CronConfig       `mapstructure:"cron"`
	Platform   PlatformConfig   `mapstructure:"platform"`
	Sync       SyncConfig       `mapstructure:"sync"`
	Allocation AllocationConfig `mapstructure:"allocation"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	Timezone        string        `mapstructure:"timezone"`
}

type CronConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	ArticleSync     string `mapstructure:"article_sync"`
	CategorySync    string `mapstructure:"category_sync"`
	AttributeSync   string `mapstructure:"attribute_sync"`
	OrderSync       string `mapstructure:"order_sync"`
	AllocationBatch string `mapstructure:"allocation_batch"`
}

type PlatformConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SyncConfig carries one StreamConfig per ingestion stream. Stream defaults are
// what LoadResumePoint falls back to when no successful cursor exists yet.
type SyncConfig struct {
	Articles   StreamConfig `mapstructure:"articles"`
	Categories StreamConfig `mapstructure:"categories"`
	Attributes StreamConfig `mapstructure:"attributes"`
	Orders     StreamConfig `mapstructure:"orders"`
}

type StreamConfig struct {
	PageSize     int           `mapstructure:"page_size"`
	StartPage    int           `mapstructure:"start_page"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	UseWatermark bool          `mapstructure:"use_watermark"`
}

type AllocationConfig struct {
	TransferEnabled    bool   `mapstructure:"transfer_enabled"`
	BatchSize          int    `mapstructure:"batch_size"`
	DefaultWarehouseID uint64 `mapstructure:"default_warehouse_id"`
}

func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", false)
	v.SetDefault("db.max_open_conns", 20)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", "30m")
	v.SetDefault("db.conn_max_idle_time", "5m")
	v.SetDefault("db.timezone", "UTC")
	v.SetDefault("cron.enabled", true)
	v.SetDefault("cron.article_sync", "@every 30m")
	v.SetDefault("cron.category_sync", "@every 6h")
	v.SetDefault("cron.attribute_sync", "@every 6h")
	v.SetDefault("cron.order_sync", "@every 10m")
	v.SetDefault("cron.allocation_batch", "@every 5m")
	v.SetDefault("platform.base_url", "")
	v.SetDefault("platform.token", "")
	v.SetDefault("platform.timeout", "30s")

	for _, stream := range []string{"articles", "categories", "attributes", "orders"} {
		v.SetDefault("sync."+stream+".page_size", 50)
		v.SetDefault("sync."+stream+".start_page", 1)
		v.SetDefault("sync."+stream+".max_attempts", 3)
		v.SetDefault("sync."+stream+".retry_backoff", "2s")
	}
	v.SetDefault("sync.articles.page_size", 100)
	v.SetDefault("sync.articles.use_watermark", true)
	v.SetDefault("sync.orders.use_watermark", true)

	v.SetDefault("allocation.transfer_enabled", true)
	v.SetDefault("allocation.batch_size", 50)
	v.SetDefault("allocation.default_warehouse_id", 1)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// StreamFor returns the stream config for an entity kind, defaulting to the
// articles stream when the kind is unknown.
func (c SyncConfig) StreamFor(entityKind string) StreamConfig {
	switch entityKind {
	case "category":
		return c.Categories
	case "attribute":
		return c.Attributes
	case "order":
		return c.Orders
	default:
		return c.Articles
	}
}
