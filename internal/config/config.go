package config

import (
	"fmt"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"spreadwatch/internal/exchange"
	"spreadwatch/internal/logging"
)

// Exchange kinds understood by the app wiring.
const (
	KindBitstamp  = "bitstamp"
	KindKraken    = "kraken"
	KindUniswapV2 = "uniswap_v2"
	KindStatic    = "static"
)

// Action names accepted in monitor.actions.
const (
	ActionLog           = "log"
	ActionPriceHistory  = "price_history"
	ActionSpreadHistory = "spread_history"
	ActionDatabase      = "database"
	ActionAlert         = "alert"
	ActionKafka         = "kafka"
	ActionRedis         = "redis"
)

var knownActions = []string{ActionLog, ActionPriceHistory, ActionSpreadHistory, ActionDatabase, ActionAlert, ActionKafka, ActionRedis}

// minInterval mirrors scheduler.MinInterval; config must not import the scheduler.
const minInterval = 5 * time.Second

// Config materialises application configuration.
type Config struct {
	App       AppConfig        `mapstructure:"app"`
	Logging   logging.Config   `mapstructure:"logging"`
	Monitor   MonitorConfig    `mapstructure:"monitor"`
	Exchanges []ExchangeConfig `mapstructure:"exchanges"`
	History   HistoryConfig    `mapstructure:"history"`
	Database  DatabaseConfig   `mapstructure:"database"`
	Ethereum  EthereumConfig   `mapstructure:"ethereum"`
	Alerting  AlertingConfig   `mapstructure:"alerting"`
	Kafka     KafkaConfig      `mapstructure:"kafka"`
	Redis     RedisConfig      `mapstructure:"redis"`
	Export    ExportConfig     `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// MonitorConfig governs the update loop.
type MonitorConfig struct {
	CurrencyPair      string        `mapstructure:"currency_pair"`
	Interval          time.Duration `mapstructure:"interval"`
	RunFor            time.Duration `mapstructure:"run_for"`
	MaxCycles         int           `mapstructure:"max_cycles"`
	Actions           []string      `mapstructure:"actions"`
	BestEffortActions []string      `mapstructure:"best_effort_actions"`
}

// ExchangeConfig describes one price source. Fields beyond name/kind apply to
// particular kinds only.
type ExchangeConfig struct {
	Name           string        `mapstructure:"name"`
	Kind           string        `mapstructure:"kind"`
	BaseURL        string        `mapstructure:"base_url"`
	Symbol         string        `mapstructure:"symbol"`
	Timeout        time.Duration `mapstructure:"timeout"`
	TolerateErrors bool          `mapstructure:"tolerate_errors"`

	PairAddress   string `mapstructure:"pair_address"`
	BaseIsToken0  bool   `mapstructure:"base_is_token0"`
	BaseDecimals  int32  `mapstructure:"base_decimals"`
	QuoteDecimals int32  `mapstructure:"quote_decimals"`
	FeeBps        int64  `mapstructure:"fee_bps"`

	Ask float64 `mapstructure:"ask"`
	Bid float64 `mapstructure:"bid"`
}

// HistoryConfig names the append-only CSV outputs.
type HistoryConfig struct {
	PriceFile  string `mapstructure:"price_file"`
	SpreadFile string `mapstructure:"spread_file"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	Retention       time.Duration `mapstructure:"retention"`
}

// EthereumConfig covers on-chain data access.
type EthereumConfig struct {
	RPCURL         string        `mapstructure:"rpc_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// AlertingConfig defines alert thresholds and routing.
type AlertingConfig struct {
	ThresholdPct float64        `mapstructure:"threshold_pct"`
	Cooldown     time.Duration  `mapstructure:"cooldown"`
	Telegram     TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig carries Telegram bot credentials.
type TelegramConfig struct {
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// KafkaConfig configures the spread publisher.
type KafkaConfig struct {
	Brokers      []string      `mapstructure:"brokers"`
	Topic        string        `mapstructure:"topic"`
	EnsureTopic  bool          `mapstructure:"ensure_topic"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RedisConfig configures the latest-state publisher.
type RedisConfig struct {
	Addr      string        `mapstructure:"addr"`
	Password  string        `mapstructure:"password"`
	DB        int           `mapstructure:"db"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	Channel   string        `mapstructure:"channel"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxDataPoints int `mapstructure:"max_data_points"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SPREADWATCH")
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
	v.SetDefault("app.name", "spreadwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("monitor.currency_pair", "BTC/EUR")
	v.SetDefault("monitor.interval", "30s")
	v.SetDefault("monitor.run_for", "0s")
	v.SetDefault("monitor.max_cycles", 0)
	v.SetDefault("monitor.actions", []string{ActionLog, ActionPriceHistory, ActionSpreadHistory})
	v.SetDefault("monitor.best_effort_actions", []string{})

	v.SetDefault("exchanges", []map[string]any{
		{"name": "bitstamp", "kind": KindBitstamp},
		{"name": "kraken", "kind": KindKraken},
	})

	v.SetDefault("history.price_file", "data/price_history.csv")
	v.SetDefault("history.spread_file", "data/spread_history.csv")

	v.SetDefault("ethereum.request_timeout", "10s")

	v.SetDefault("alerting.threshold_pct", 0.5)
	v.SetDefault("alerting.cooldown", "30m")
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("kafka.topic", "spreads")
	v.SetDefault("kafka.ensure_topic", false)
	v.SetDefault("kafka.batch_timeout", "200ms")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "spreadwatch")
	v.SetDefault("redis.channel", "spreadwatch:snapshots")
	v.SetDefault("redis.ttl", "10m")

	v.SetDefault("export.max_data_points", 10000)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.advisory_lock_key", int64(0x73707264))
	v.SetDefault("database.retention", "0s")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			secondsToDurationHookFunc(),
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// secondsToDurationHookFunc reads bare numbers as seconds, so `interval: 30`
// means thirty seconds rather than thirty nanoseconds.
func secondsToDurationHookFunc() mapstructure.DecodeHookFuncType {
	durationType := reflect.TypeOf(time.Duration(0))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != durationType {
			return data, nil
		}
		switch v := data.(type) {
		case int:
			return time.Duration(v) * time.Second, nil
		case int64:
			return time.Duration(v) * time.Second, nil
		case uint64:
			return time.Duration(v) * time.Second, nil
		case float64:
			return time.Duration(v * float64(time.Second)), nil
		default:
			return data, nil
		}
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Monitor.Interval < minInterval {
		return fmt.Errorf("%w: monitor.interval must be at least %s, got %s", exchange.ErrConfiguration, minInterval, c.Monitor.Interval)
	}
	if c.Monitor.RunFor < 0 {
		return fmt.Errorf("%w: monitor.run_for cannot be negative", exchange.ErrConfiguration)
	}
	if c.Monitor.MaxCycles < 0 {
		return fmt.Errorf("%w: monitor.max_cycles cannot be negative", exchange.ErrConfiguration)
	}
	if _, err := exchange.ParseCurrencyPair(c.Monitor.CurrencyPair); err != nil {
		return err
	}

	if len(c.Exchanges) < 2 {
		return fmt.Errorf("%w: at least two exchanges are required, got %d", exchange.ErrConfiguration, len(c.Exchanges))
	}
	names := make(map[string]struct{}, len(c.Exchanges))
	for i, ex := range c.Exchanges {
		if ex.Name == "" {
			return fmt.Errorf("%w: exchanges[%d].name is required", exchange.ErrConfiguration, i)
		}
		if _, dup := names[ex.Name]; dup {
			return fmt.Errorf("%w: duplicate exchange name %q", exchange.ErrConfiguration, ex.Name)
		}
		names[ex.Name] = struct{}{}
		if err := ex.validate(); err != nil {
			return err
		}
		if ex.Kind == KindUniswapV2 && c.Ethereum.RPCURL == "" {
			return fmt.Errorf("%w: ethereum.rpc_url is required by exchange %q", exchange.ErrConfiguration, ex.Name)
		}
	}

	for _, name := range c.Monitor.Actions {
		if !slices.Contains(knownActions, name) {
			return fmt.Errorf("%w: unknown action %q", exchange.ErrConfiguration, name)
		}
	}
	for _, name := range c.Monitor.BestEffortActions {
		if !slices.Contains(c.Monitor.Actions, name) {
			return fmt.Errorf("%w: best effort action %q is not in monitor.actions", exchange.ErrConfiguration, name)
		}
	}

	if c.HasAction(ActionPriceHistory) && c.History.PriceFile == "" {
		return fmt.Errorf("%w: history.price_file must be set", exchange.ErrConfiguration)
	}
	if c.HasAction(ActionSpreadHistory) && c.History.SpreadFile == "" {
		return fmt.Errorf("%w: history.spread_file must be set", exchange.ErrConfiguration)
	}
	if c.HasAction(ActionDatabase) && c.Database.DSN == "" {
		return fmt.Errorf("%w: database.dsn is required by the database action", exchange.ErrConfiguration)
	}
	if c.HasAction(ActionAlert) {
		if c.Alerting.ThresholdPct < 0 {
			return fmt.Errorf("%w: alerting.threshold_pct cannot be negative", exchange.ErrConfiguration)
		}
		if c.Alerting.Telegram.BotToken == "" || c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("%w: alerting.telegram.bot_token and chat_id are required by the alert action", exchange.ErrConfiguration)
		}
	}
	if c.HasAction(ActionKafka) && (len(c.Kafka.Brokers) == 0 || c.Kafka.Topic == "") {
		return fmt.Errorf("%w: kafka.brokers and kafka.topic are required by the kafka action", exchange.ErrConfiguration)
	}
	if c.HasAction(ActionRedis) && c.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr is required by the redis action", exchange.ErrConfiguration)
	}

	if c.Export.MaxDataPoints <= 0 {
		return fmt.Errorf("%w: export.max_data_points must be greater than zero", exchange.ErrConfiguration)
	}
	return nil
}

func (e ExchangeConfig) validate() error {
	switch e.Kind {
	case KindBitstamp, KindKraken:
	case KindUniswapV2:
		if e.PairAddress == "" {
			return fmt.Errorf("%w: exchange %q needs pair_address", exchange.ErrConfiguration, e.Name)
		}
	case KindStatic:
		if e.Ask <= 0 || e.Bid <= 0 {
			return fmt.Errorf("%w: static exchange %q needs positive ask and bid", exchange.ErrConfiguration, e.Name)
		}
	default:
		return fmt.Errorf("%w: exchange %q has unknown kind %q", exchange.ErrConfiguration, e.Name, e.Kind)
	}
	return nil
}

// CurrencyPair returns the parsed monitor.currency_pair. Validate guarantees it parses.
func (c *Config) CurrencyPair() exchange.CurrencyPair {
	pair, _ := exchange.ParseCurrencyPair(c.Monitor.CurrencyPair)
	return pair
}

// HasAction reports whether name is listed in monitor.actions.
func (c *Config) HasAction(name string) bool {
	return slices.Contains(c.Monitor.Actions, name)
}

// IsBestEffort reports whether failures of the named action should only be logged.
func (c *Config) IsBestEffort(name string) bool {
	return slices.Contains(c.Monitor.BestEffortActions, name)
}

// ResolveMaxPoints returns either the CLI override or config default.
func (c *Config) ResolveMaxPoints(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxDataPoints
}
