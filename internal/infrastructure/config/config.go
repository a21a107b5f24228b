package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the relayer
type Config struct {
	Environment string                   `mapstructure:"environment"`
	LogLevel    string                   `mapstructure:"log_level"`
	Server      ServerConfig             `mapstructure:"server"`
	Relayer     RelayerConfig            `mapstructure:"relayer"`
	Chains      map[string]ChainOverride `mapstructure:"chains"`
	ExtraChains []ExtraChain             `mapstructure:"extra_chains"`
	Redis       RedisConfig              `mapstructure:"redis"`
	Idempotency IdempotencyConfig        `mapstructure:"idempotency"`
	Tracing     TracingConfig            `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

// RelayerConfig covers the relayer credential and the fan-out timings
type RelayerConfig struct {
	PrivateKey          string `mapstructure:"private_key"`
	PrivateKeyEncrypted string `mapstructure:"private_key_encrypted"`
	EncryptionKey       string `mapstructure:"encryption_key"`

	// SecretsProvider is "env" or "aws"
	SecretsProvider      string `mapstructure:"secrets_provider"`
	AWSSecretsRegion     string `mapstructure:"aws_secrets_region"`
	AWSSecretsPrefix     string `mapstructure:"aws_secrets_prefix"`
	PrivateKeySecretName string `mapstructure:"private_key_secret_name"`

	RegistrarAddress        string `mapstructure:"registrar_address"`
	TestnetRegistrarAddress string `mapstructure:"testnet_registrar_address"`

	BroadcastTimeout    time.Duration `mapstructure:"broadcast_timeout"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	ReceiptPollInterval time.Duration `mapstructure:"receipt_poll_interval"`
	MaxConcurrency      int           `mapstructure:"max_concurrency"`
	GasLimit            uint64        `mapstructure:"gas_limit"`
	RPCRequestsPerSec   float64       `mapstructure:"rpc_requests_per_second"`

	StrictNameNormalization bool          `mapstructure:"strict_name_normalization"`
	DefaultSignatureTTL     time.Duration `mapstructure:"default_signature_ttl"`
	VerifyChainsOnStartup   bool          `mapstructure:"verify_chains_on_startup"`

	LowBalanceThresholdETH string `mapstructure:"low_balance_threshold_eth"`
	BalanceCheckSchedule   string `mapstructure:"balance_check_schedule"`

	PerAddressLimit  int64         `mapstructure:"per_address_limit"`
	PerAddressWindow time.Duration `mapstructure:"per_address_window"`
	GlobalLimit      int64         `mapstructure:"global_limit"`
	GlobalWindow     time.Duration `mapstructure:"global_window"`
}

// ChainOverride adjusts a built-in chain, keyed by slug
type ChainOverride struct {
	RPCURL              string        `mapstructure:"rpc_url"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	RegistrarAddress    string        `mapstructure:"registrar_address"`
	Enabled             *bool         `mapstructure:"enabled"`
}

// ExtraChain registers a chain that is not in the built-in table
type ExtraChain struct {
	Name                string        `mapstructure:"name"`
	Slug                string        `mapstructure:"slug"`
	ChainID             uint64        `mapstructure:"chain_id"`
	RPCURL              string        `mapstructure:"rpc_url"`
	Testnet             bool          `mapstructure:"testnet"`
	ConfirmationTimeout time.Duration `mapstructure:"confirmation_timeout"`
	RegistrarAddress    string        `mapstructure:"registrar_address"`
}

type RedisConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"`
	MaxRetries int    `mapstructure:"max_retries"`
	PoolSize   int    `mapstructure:"pool_size"`
}

type IdempotencyConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	TTL     time.Duration `mapstructure:"ttl"`
}

type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	CollectorURL string  `mapstructure:"collector_url"`
	SampleRate   float64 `mapstructure:"sample_rate"`
	Insecure     bool    `mapstructure:"insecure"`
}

// Load reads configuration from .env, config.yaml and the environment.
// A missing relayer key is not an error; set-reverse then reports it per request.
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	overrideFromEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", 30)
	v.SetDefault("server.write_timeout", 120)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_per_min", 60)

	// Relayer defaults
	v.SetDefault("relayer.secrets_provider", "env")
	v.SetDefault("relayer.private_key_secret_name", "relayer-private-key")
	v.SetDefault("relayer.broadcast_timeout", 15*time.Second)
	v.SetDefault("relayer.confirmation_timeout", 60*time.Second)
	v.SetDefault("relayer.receipt_poll_interval", 2*time.Second)
	v.SetDefault("relayer.max_concurrency", 0)
	v.SetDefault("relayer.gas_limit", 0)
	v.SetDefault("relayer.rpc_requests_per_second", 10)
	v.SetDefault("relayer.strict_name_normalization", false)
	v.SetDefault("relayer.default_signature_ttl", time.Hour)
	v.SetDefault("relayer.verify_chains_on_startup", true)
	v.SetDefault("relayer.low_balance_threshold_eth", "0.01")
	v.SetDefault("relayer.balance_check_schedule", "@every 5m")
	v.SetDefault("relayer.per_address_limit", 10)
	v.SetDefault("relayer.per_address_window", time.Hour)
	v.SetDefault("relayer.global_limit", 0)
	v.SetDefault("relayer.global_window", time.Minute)

	// Redis defaults
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_retries", 3)
	v.SetDefault("redis.pool_size", 10)

	// Idempotency defaults
	v.SetDefault("idempotency.enabled", true)
	v.SetDefault("idempotency.ttl", 24*time.Hour)

	// Tracing defaults
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.collector_url", "localhost:4317")
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.insecure", false)
}

const rpcURLEnvPrefix = "RPC_URL_"

func overrideFromEnv(v *viper.Viper) {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("server.port", p)
		}
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		v.Set("server.allowed_origins", splitList(origins))
	}

	// Relayer credential
	if key := os.Getenv("RELAYER_PRIVATE_KEY"); key != "" {
		v.Set("relayer.private_key", key)
	}
	if key := os.Getenv("RELAYER_PRIVATE_KEY_ENCRYPTED"); key != "" {
		v.Set("relayer.private_key_encrypted", key)
	}
	if encKey := os.Getenv("ENCRYPTION_KEY"); encKey != "" {
		v.Set("relayer.encryption_key", encKey)
	}
	if provider := os.Getenv("SECRETS_PROVIDER"); provider != "" {
		v.Set("relayer.secrets_provider", provider)
	}
	if region := os.Getenv("AWS_REGION"); region != "" && v.GetString("relayer.aws_secrets_region") == "" {
		v.Set("relayer.aws_secrets_region", region)
	}

	// Timings
	if secs := os.Getenv("CONFIRMATION_TIMEOUT_SECONDS"); secs != "" {
		if n, err := strconv.Atoi(secs); err == nil {
			v.Set("relayer.confirmation_timeout", time.Duration(n)*time.Second)
		}
	}

	// Per-chain RPC endpoints, e.g. RPC_URL_BASE or RPC_URL_ARBITRUM_SEPOLIA
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || value == "" || !strings.HasPrefix(name, rpcURLEnvPrefix) {
			continue
		}
		slug := strings.ToLower(strings.TrimPrefix(name, rpcURLEnvPrefix))
		if slug != "" {
			v.Set("chains."+slug+".rpc_url", value)
		}
	}

	// Redis
	if host := os.Getenv("REDIS_HOST"); host != "" {
		v.Set("redis.host", host)
		v.Set("redis.enabled", true)
	}
	if port := os.Getenv("REDIS_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			v.Set("redis.port", p)
		}
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		v.Set("redis.password", password)
	}

	// Tracing
	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		v.Set("tracing.collector_url", endpoint)
		v.Set("tracing.enabled", true)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func validate(config *Config) error {
	r := config.Relayer

	if r.BroadcastTimeout <= 0 {
		return fmt.Errorf("relayer.broadcast_timeout must be positive")
	}
	if r.ConfirmationTimeout <= 0 {
		return fmt.Errorf("relayer.confirmation_timeout must be positive")
	}
	if r.ReceiptPollInterval <= 0 {
		return fmt.Errorf("relayer.receipt_poll_interval must be positive")
	}
	if r.MaxConcurrency < 0 {
		return fmt.Errorf("relayer.max_concurrency must not be negative")
	}

	for name, addr := range map[string]string{
		"relayer.registrar_address":         r.RegistrarAddress,
		"relayer.testnet_registrar_address": r.TestnetRegistrarAddress,
	} {
		if addr != "" && !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address", name)
		}
	}

	if r.PrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(r.PrivateKey), "0x")); err != nil {
			return fmt.Errorf("relayer.private_key is invalid")
		}
	}
	if r.PrivateKeyEncrypted != "" && r.EncryptionKey == "" {
		return fmt.Errorf("relayer.encryption_key is required to decrypt relayer.private_key_encrypted")
	}

	switch r.SecretsProvider {
	case "env", "aws":
	default:
		return fmt.Errorf("relayer.secrets_provider must be env or aws, got %q", r.SecretsProvider)
	}

	longest := r.ConfirmationTimeout
	for slug, o := range config.Chains {
		if o.ConfirmationTimeout < 0 {
			return fmt.Errorf("chains.%s.confirmation_timeout must not be negative", slug)
		}
		if o.RegistrarAddress != "" && !common.IsHexAddress(o.RegistrarAddress) {
			return fmt.Errorf("chains.%s.registrar_address is not a valid address", slug)
		}
		if o.ConfirmationTimeout > longest {
			longest = o.ConfirmationTimeout
		}
	}

	for i, extra := range config.ExtraChains {
		if extra.ChainID == 0 || extra.Slug == "" || extra.RPCURL == "" {
			return fmt.Errorf("extra_chains[%d] needs chain_id, slug and rpc_url", i)
		}
		if extra.RegistrarAddress != "" && !common.IsHexAddress(extra.RegistrarAddress) {
			return fmt.Errorf("extra_chains[%d].registrar_address is not a valid address", i)
		}
		if extra.ConfirmationTimeout > longest {
			longest = extra.ConfirmationTimeout
		}
	}

	// Lower bound only; the container re-checks once the chain count is known
	if err := config.CheckWriteTimeout(1, r.BroadcastTimeout+longest); err != nil {
		return err
	}

	if config.Redis.Enabled && config.Redis.Host == "" {
		return fmt.Errorf("redis.host is required when redis is enabled")
	}

	return nil
}

// BroadcastBudget is the worst-case time a set-reverse request stays open when it
// targets chains chains and one attempt takes at most perChain.
// max_concurrency runs the chains in rounds.
func (c *Config) BroadcastBudget(chains int, perChain time.Duration) time.Duration {
	rounds := 1
	if limit := c.Relayer.MaxConcurrency; limit > 0 && chains > limit {
		rounds = (chains + limit - 1) / limit
	}
	return time.Duration(rounds) * perChain
}

// CheckWriteTimeout fails when the HTTP write timeout would cut a full broadcast short
func (c *Config) CheckWriteTimeout(chains int, perChain time.Duration) error {
	if c.Server.WriteTimeout <= 0 {
		return nil
	}
	write := time.Duration(c.Server.WriteTimeout) * time.Second
	if need := c.BroadcastBudget(chains, perChain); write < need {
		return fmt.Errorf("server.write_timeout (%s) must cover broadcast plus confirmation across %d chains at max_concurrency %d (%s)",
			write, chains, c.Relayer.MaxConcurrency, need)
	}
	return nil
}

// IsProduction returns true for production and staging
func (c *Config) IsProduction() bool {
	return c.Environment == "production" || c.Environment == "staging"
}

// ChainEnabled reports whether a built-in chain stays registered
func (o ChainOverride) ChainEnabled() bool {
	return o.Enabled == nil || *o.Enabled
}
