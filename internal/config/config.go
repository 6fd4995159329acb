// Package config loads service configuration from a YAML file and
// PNS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"pepu-name-service/internal/logging"
	"pepu-name-service/internal/payment"
)

// EnvPrefix prefixes every environment override, e.g. PNS_PAYMENT_TREASURY.
const EnvPrefix = "PNS"

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Payment  PaymentConfig  `mapstructure:"payment"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Registry RegistryConfig `mapstructure:"registry"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Log      logging.Config `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Listen          string        `mapstructure:"listen" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
	RateLimit       float64       `mapstructure:"rate_limit" validate:"gte=0"` // requests per second per client; 0 disables
	RateBurst       int           `mapstructure:"rate_burst" validate:"gte=0"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
}

// ChainConfig configures the JSON-RPC node.
type ChainConfig struct {
	RPCURL     string        `mapstructure:"rpc_url" validate:"required,url"`
	ChainID    int64         `mapstructure:"chain_id" validate:"gte=0"`
	Timeout    time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" validate:"gte=0"`

	// Backoff between retries starts at RetryDelay and is capped at MaxRetryDelay.
	RetryDelay    time.Duration `mapstructure:"retry_delay" validate:"gt=0"`
	MaxRetryDelay time.Duration `mapstructure:"max_retry_delay" validate:"gtefield=RetryDelay"`
}

// PaymentConfig describes the registration price and where it is paid.
type PaymentConfig struct {
	Strategy       string        `mapstructure:"strategy" validate:"oneof=native token"`
	Treasury       string        `mapstructure:"treasury" validate:"required,eth_addr"`
	Asset          string        `mapstructure:"asset" validate:"required_if=Strategy token,omitempty,eth_addr"`
	AssetSymbol    string        `mapstructure:"asset_symbol"`
	Amount         string        `mapstructure:"amount" validate:"required"` // human units, e.g. "5"
	Decimals       int32         `mapstructure:"decimals" validate:"gte=0,lte=36"`
	PollEnabled    bool          `mapstructure:"poll_enabled"`
	PollMaxWait    time.Duration `mapstructure:"poll_max_wait" validate:"gt=0"`
	PollInterval   time.Duration `mapstructure:"poll_interval" validate:"gt=0"`
	LookbackBlocks uint64        `mapstructure:"lookback_blocks" validate:"gt=0"`
}

// StoreConfig selects the registration store.
type StoreConfig struct {
	Driver      string `mapstructure:"driver" validate:"oneof=memory postgres"`
	PostgresDSN string `mapstructure:"postgres_dsn" validate:"required_if=Driver postgres"`
	MaxConns    int32  `mapstructure:"max_conns" validate:"gte=0"`
}

// CacheConfig selects the taken-name cache.
type CacheConfig struct {
	Backend  string        `mapstructure:"backend" validate:"oneof=none lru redis"`
	LRUSize  int           `mapstructure:"lru_size" validate:"gte=0"`
	RedisURL string        `mapstructure:"redis_url" validate:"required_if=Backend redis"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// RegistryConfig bounds registration.
type RegistryConfig struct {
	MaxDomains    int64         `mapstructure:"max_domains" validate:"gte=0"` // 0 disables the cap
	NotifyTimeout time.Duration `mapstructure:"notify_timeout" validate:"gt=0"`
}

// NotifyConfig configures the Telegram channel. Both values must be set to enable it.
type NotifyConfig struct {
	TelegramToken  string `mapstructure:"telegram_token"`
	TelegramChatID string `mapstructure:"telegram_chat_id"`
}

// TelegramEnabled reports whether Telegram credentials are present.
func (n NotifyConfig) TelegramEnabled() bool {
	return n.TelegramToken != "" && n.TelegramChatID != ""
}

// NewViper returns a viper instance with defaults and environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("server.rate_limit", 5.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.allowed_origins", []string{})

	v.SetDefault("chain.rpc_url", "https://rpc-pepu-v2-mainnet-0.t.conduit.xyz")
	v.SetDefault("chain.chain_id", 97741)
	v.SetDefault("chain.timeout", 10*time.Second)
	v.SetDefault("chain.max_retries", 2)
	v.SetDefault("chain.retry_delay", 500*time.Millisecond)
	v.SetDefault("chain.max_retry_delay", 5*time.Second)

	v.SetDefault("payment.strategy", string(payment.StrategyToken))
	v.SetDefault("payment.treasury", "0x5359d161d3cdBCfA6C38A387b7F685ebe354368f")
	v.SetDefault("payment.asset", "0xA0b86a33E6441b8435b662C0c5b90FdF0Be3D55b")
	v.SetDefault("payment.asset_symbol", "USDC")
	v.SetDefault("payment.amount", "5")
	v.SetDefault("payment.decimals", 6)
	v.SetDefault("payment.poll_enabled", false)
	v.SetDefault("payment.poll_max_wait", payment.DefaultPollMaxWait)
	v.SetDefault("payment.poll_interval", payment.DefaultPollInterval)
	v.SetDefault("payment.lookback_blocks", payment.DefaultLookbackBlocks)

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("store.max_conns", 10)

	v.SetDefault("cache.backend", "lru")
	v.SetDefault("cache.lru_size", 4096)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.ttl", time.Duration(0))

	v.SetDefault("registry.max_domains", 1000)
	v.SetDefault("registry.notify_timeout", 10*time.Second)

	v.SetDefault("notify.telegram_token", "")
	v.SetDefault("notify.telegram_chat_id", "")

	def := logging.DefaultConfig()
	v.SetDefault("log.level", def.Level)
	v.SetDefault("log.format", def.Format)
	v.SetDefault("log.file", def.File)
	v.SetDefault("log.max_size_mb", def.MaxSizeMB)
	v.SetDefault("log.max_backups", def.MaxBackups)
	v.SetDefault("log.max_age_days", def.MaxAgeDays)
	v.SetDefault("log.compress", def.Compress)
}

// Load reads the optional YAML file at path into v and returns the
// validated configuration.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
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

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and derived values.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Payment.RequiredAmount(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Price returns the configured amount in human units.
func (p PaymentConfig) Price() (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(p.Amount))
	if err != nil {
		return decimal.Zero, fmt.Errorf("payment.amount %q: %w", p.Amount, err)
	}
	if !d.IsPositive() {
		return decimal.Zero, fmt.Errorf("payment.amount must be positive")
	}
	return d, nil
}

// RequiredAmount converts the human amount to the asset's smallest unit.
func (p PaymentConfig) RequiredAmount() (*big.Int, error) {
	d, err := p.Price()
	if err != nil {
		return nil, err
	}
	units := d.Shift(p.Decimals)
	if !units.Equal(units.Truncate(0)) {
		return nil, fmt.Errorf("payment.amount %s has more than %d decimal places", p.Amount, p.Decimals)
	}
	return units.BigInt(), nil
}

// ToPayment builds the payment.Config the validator consumes.
func (c *Config) ToPayment() (payment.Config, error) {
	amount, err := c.Payment.RequiredAmount()
	if err != nil {
		return payment.Config{}, err
	}
	pc := payment.Config{
		TreasuryAddress: common.HexToAddress(c.Payment.Treasury),
		RequiredAmount:  amount,
		Strategy:        payment.Strategy(c.Payment.Strategy),
	}
	if c.Payment.Asset != "" {
		pc.AssetContract = common.HexToAddress(c.Payment.Asset)
	}
	if c.Chain.ChainID > 0 {
		pc.ChainID = big.NewInt(c.Chain.ChainID)
	}
	return pc, pc.Validate()
}

// PollPolicy returns the payment polling bounds.
func (c *Config) PollPolicy() payment.RetryPolicy {
	return payment.RetryPolicy{MaxWait: c.Payment.PollMaxWait, Interval: c.Payment.PollInterval}
}
