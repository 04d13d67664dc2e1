package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"validator-commission-alerts/internal/classifier"
	"validator-commission-alerts/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Logging    logging.Config   `mapstructure:"logging"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Scheduler  SchedulerConfig  `mapstructure:"scheduler"`
	Solana     SolanaConfig     `mapstructure:"solana"`
	Jito       JitoConfig       `mapstructure:"jito"`
	Classifier ClassifierConfig `mapstructure:"classifier"`
	Alerting   AlertingConfig   `mapstructure:"alerting"`
	API        APIConfig        `mapstructure:"api"`
	Export     ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs check cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
	Workers         int           `mapstructure:"workers"`
}

// SolanaConfig covers chain RPC access.
type SolanaConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	Commitment     string        `mapstructure:"commitment"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// JitoConfig captures MEV commission API connectivity.
type JitoConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// ClassifierConfig holds the severity tier boundaries. Values are percentage
// points.
type ClassifierConfig struct {
	RugThreshold     float64 `mapstructure:"rug_threshold"`
	CautionThreshold float64 `mapstructure:"caution_threshold"`
	MaxCommission    float64 `mapstructure:"max_commission"`
	RugAtMax         bool    `mapstructure:"rug_at_max"`
	MevRugAtMax      bool    `mapstructure:"mev_rug_at_max"`
}

// Thresholds converts the section into the classifier's value type.
func (c ClassifierConfig) Thresholds() classifier.Thresholds {
	return classifier.Thresholds{
		Rug:           decimal.NewFromFloat(c.RugThreshold),
		Caution:       decimal.NewFromFloat(c.CautionThreshold),
		MaxCommission: decimal.NewFromFloat(c.MaxCommission),
		RugAtMax:      c.RugAtMax,
		MevRugAtMax:   c.MevRugAtMax,
	}
}

// AlertingConfig defines notification routing.
type AlertingConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Mailer   MailerConfig   `mapstructure:"mailer"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// MailerConfig covers the HTTP mail provider used for subscriber
// notifications.
type MailerConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BaseURL        string        `mapstructure:"base_url"`
	APIKey         string        `mapstructure:"api_key"`
	From           string        `mapstructure:"from"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// TelegramConfig 描述 Telegram 公共频道广播参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// APIConfig controls the read-only HTTP surface.
type APIConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("VALWATCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "valwatcher")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x76616c77))
	v.SetDefault("scheduler.startup_delay", "0s")
	v.SetDefault("scheduler.workers", 16)

	v.SetDefault("solana.rpc_url", "https://api.mainnet-beta.solana.com")
	v.SetDefault("solana.commitment", "finalized")
	v.SetDefault("solana.request_timeout", "30s")

	v.SetDefault("jito.base_url", "https://kobe.mainnet.jito.network")
	v.SetDefault("jito.request_timeout", "15s")
	v.SetDefault("jito.user_agent", "valwatcher/1.0")
	v.SetDefault("jito.cache_ttl", "5m")

	v.SetDefault("classifier.rug_threshold", 50.0)
	v.SetDefault("classifier.caution_threshold", 5.0)
	v.SetDefault("classifier.max_commission", 100.0)
	v.SetDefault("classifier.rug_at_max", true)
	v.SetDefault("classifier.mev_rug_at_max", true)

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.mailer.enabled", false)
	v.SetDefault("alerting.mailer.request_timeout", "10s")
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("api.enabled", false)
	v.SetDefault("api.listen", ":8080")

	v.SetDefault("export.max_data_points", 100000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Scheduler.Workers <= 0 {
		return fmt.Errorf("scheduler.workers must be greater than zero")
	}
	if c.Classifier.CautionThreshold <= 0 {
		return fmt.Errorf("classifier.caution_threshold must be greater than zero")
	}
	if c.Classifier.RugThreshold <= c.Classifier.CautionThreshold {
		return fmt.Errorf("classifier.rug_threshold must be greater than classifier.caution_threshold")
	}
	if c.Classifier.MaxCommission <= 0 {
		return fmt.Errorf("classifier.max_commission must be greater than zero")
	}
	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("export.max_data_points must be greater than zero")
	}
	if c.Alerting.Mailer.Enabled {
		if c.Alerting.Mailer.BaseURL == "" {
			return fmt.Errorf("alerting.mailer.base_url is required when the mailer is enabled")
		}
		if c.Alerting.Mailer.From == "" {
			return fmt.Errorf("alerting.mailer.from is required when the mailer is enabled")
		}
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	if c.API.Enabled && c.API.Listen == "" {
		return fmt.Errorf("api.listen is required when the api is enabled")
	}
	return nil
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
