package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pattonkan/sui-go/suiclient/conn"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/waapdemo/sui-demo-backend/internal/suikeys"
	"github.com/waapdemo/sui-demo-backend/pkg/kv"
)

var knownNetworks = []string{"mainnet", "testnet", "devnet", "localnet"}

type Config struct {
	Env      string `mapstructure:"WAAP_ENV"`
	LogLevel string `mapstructure:"WAAP_LOG_LEVEL"`
	HTTPAddr string `mapstructure:"WAAP_HTTP_ADDR"`

	Sui      SuiConfig      `mapstructure:",squash"`
	Wallet   WalletConfig   `mapstructure:",squash"`
	Cache    CacheConfig    `mapstructure:",squash"`
	Security SecurityConfig `mapstructure:",squash"`
}

type SuiConfig struct {
	DefaultNetwork string `mapstructure:"WAAP_DEFAULT_NETWORK"`
	EnableLocalnet bool   `mapstructure:"WAAP_ENABLE_LOCALNET"`

	// BalancePollInterval paces balance updates on the stream; 0 disables them.
	BalancePollInterval time.Duration `mapstructure:"WAAP_BALANCE_POLL_INTERVAL"`

	MainnetRPCURL  string `mapstructure:"WAAP_MAINNET_RPC_URL"`
	TestnetRPCURL  string `mapstructure:"WAAP_TESTNET_RPC_URL"`
	DevnetRPCURL   string `mapstructure:"WAAP_DEVNET_RPC_URL"`
	LocalnetRPCURL string `mapstructure:"WAAP_LOCALNET_RPC_URL"`

	TestnetFaucetURL  string `mapstructure:"WAAP_TESTNET_FAUCET_URL"`
	DevnetFaucetURL   string `mapstructure:"WAAP_DEVNET_FAUCET_URL"`
	LocalnetFaucetURL string `mapstructure:"WAAP_LOCALNET_FAUCET_URL"`
}

type WalletConfig struct {
	KeyScheme     string   `mapstructure:"WAAP_KEY_SCHEME"`
	PrivateKeyHex string   `mapstructure:"WAAP_PRIVATE_KEY_HEX"`
	Mnemonic      string   `mapstructure:"WAAP_MNEMONIC"`
	UseStaging    bool     `mapstructure:"WAAP_USE_STAGING"`
	Socials       []string `mapstructure:"WAAP_ALLOWED_SOCIALS"`
	AuthMethods   []string `mapstructure:"WAAP_AUTH_METHODS"`
	DarkMode      bool     `mapstructure:"WAAP_DARK_MODE"`
	ReferralCode  string   `mapstructure:"WAAP_REFERRAL_CODE"`
	Email         string   `mapstructure:"WAAP_EMAIL"`
	EmailConsent  bool     `mapstructure:"WAAP_EMAIL_CONSENT"`
	RememberLogin bool     `mapstructure:"WAAP_REMEMBER_LOGIN"`
	AutoConnect   bool     `mapstructure:"WAAP_AUTO_CONNECT"`
}

type CacheConfig struct {
	Backend  string `mapstructure:"WAAP_KV_BACKEND"`
	RedisURL string `mapstructure:"WAAP_REDIS_URL"`
}

type SecurityConfig struct {
	RateLimitRPM       int           `mapstructure:"WAAP_RATE_LIMIT_RPM"`
	CORSAllowedOrigins []string      `mapstructure:"WAAP_CORS_ALLOWED_ORIGINS"`
	RequestTimeout     time.Duration `mapstructure:"WAAP_REQUEST_TIMEOUT"`
}

// NetworkEndpoint is a resolved network entry.
type NetworkEndpoint struct {
	Name      string
	RPCURL    string
	FaucetURL string
}

func loadDotEnvFiles() {
	candidates := []string{
		".env",
		filepath.Join("..", ".env"),
	}

	seen := make(map[string]struct{})
	for _, path := range candidates {
		abs := path
		if resolved, err := filepath.Abs(path); err == nil {
			abs = resolved
		}
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}

		if _, err := os.Stat(path); err == nil {
			_ = gotenv.Load(path) // variables already set take precedence
		}
	}
}

func Load() (*Config, error) {
	loadDotEnvFiles()

	v := viper.New()
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)
	setDefaults(v)

	for _, key := range []string{"WAAP_ALLOWED_SOCIALS", "WAAP_AUTH_METHODS", "WAAP_CORS_ALLOWED_ORIGINS"} {
		v.Set(key, splitList(v.GetString(key)))
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Sui.DefaultNetwork = strings.ToLower(strings.TrimSpace(cfg.Sui.DefaultNetwork))

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("WAAP_ENV", "dev")
	v.SetDefault("WAAP_LOG_LEVEL", "")
	v.SetDefault("WAAP_HTTP_ADDR", ":8080")

	v.SetDefault("WAAP_DEFAULT_NETWORK", "testnet")
	v.SetDefault("WAAP_ENABLE_LOCALNET", false)
	v.SetDefault("WAAP_BALANCE_POLL_INTERVAL", "15s")
	v.SetDefault("WAAP_MAINNET_RPC_URL", "https://fullnode.mainnet.sui.io")
	v.SetDefault("WAAP_TESTNET_RPC_URL", "https://fullnode.testnet.sui.io")
	v.SetDefault("WAAP_DEVNET_RPC_URL", "https://fullnode.devnet.sui.io")
	v.SetDefault("WAAP_LOCALNET_RPC_URL", conn.LocalnetEndpointUrl)
	v.SetDefault("WAAP_TESTNET_FAUCET_URL", "https://faucet.testnet.sui.io/v2/gas")
	v.SetDefault("WAAP_DEVNET_FAUCET_URL", "https://faucet.devnet.sui.io/v2/gas")
	v.SetDefault("WAAP_LOCALNET_FAUCET_URL", conn.LocalnetFaucetUrl)

	v.SetDefault("WAAP_KEY_SCHEME", "secp256k1")
	v.SetDefault("WAAP_PRIVATE_KEY_HEX", "")
	v.SetDefault("WAAP_MNEMONIC", "")
	v.SetDefault("WAAP_USE_STAGING", false)
	v.SetDefault("WAAP_ALLOWED_SOCIALS", "google,twitter")
	v.SetDefault("WAAP_AUTH_METHODS", "email,social")
	v.SetDefault("WAAP_DARK_MODE", false)
	v.SetDefault("WAAP_REFERRAL_CODE", "waap-sui-demo")
	v.SetDefault("WAAP_EMAIL", "")
	v.SetDefault("WAAP_EMAIL_CONSENT", false)
	v.SetDefault("WAAP_REMEMBER_LOGIN", true)
	v.SetDefault("WAAP_AUTO_CONNECT", true)

	v.SetDefault("WAAP_KV_BACKEND", string(kv.BackendMemory))
	v.SetDefault("WAAP_REDIS_URL", "redis://127.0.0.1:6379/0")

	v.SetDefault("WAAP_RATE_LIMIT_RPM", 120)
	v.SetDefault("WAAP_CORS_ALLOWED_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("WAAP_REQUEST_TIMEOUT", "30s")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) validate() error {
	if c.HTTPAddr == "" {
		return fmt.Errorf("WAAP_HTTP_ADDR is required")
	}

	found := false
	for _, n := range c.Networks() {
		if n.RPCURL == "" {
			return fmt.Errorf("RPC URL for %s is required", n.Name)
		}
		if n.Name == c.Sui.DefaultNetwork {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("invalid WAAP_DEFAULT_NETWORK %q (must be one of %s)",
			c.Sui.DefaultNetwork, strings.Join(c.networkNames(), ", "))
	}

	if _, err := suikeys.ParseScheme(c.Wallet.KeyScheme); err != nil {
		return fmt.Errorf("WAAP_KEY_SCHEME: %w", err)
	}
	switch {
	case c.Wallet.PrivateKeyHex != "" && c.Wallet.Mnemonic != "":
		return fmt.Errorf("set only one of WAAP_PRIVATE_KEY_HEX and WAAP_MNEMONIC")
	case c.Wallet.PrivateKeyHex != "":
		if _, err := c.Keypair(); err != nil {
			return fmt.Errorf("WAAP_PRIVATE_KEY_HEX: %w", err)
		}
	case c.Wallet.Mnemonic != "":
		if _, err := c.Keypair(); err != nil {
			return fmt.Errorf("WAAP_MNEMONIC: %w", err)
		}
	}

	switch kv.Backend(c.Cache.Backend) {
	case kv.BackendMemory:
	case kv.BackendRedis:
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("WAAP_REDIS_URL is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid WAAP_KV_BACKEND %q (must be memory or redis)", c.Cache.Backend)
	}

	if c.Sui.BalancePollInterval < 0 {
		return fmt.Errorf("WAAP_BALANCE_POLL_INTERVAL must not be negative")
	}
	if c.Security.RateLimitRPM < 0 {
		return fmt.Errorf("WAAP_RATE_LIMIT_RPM must not be negative")
	}
	return nil
}

func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// Networks lists mainnet, testnet and devnet, plus localnet when enabled or
// chosen as the default.
func (c *Config) Networks() []NetworkEndpoint {
	out := make([]NetworkEndpoint, 0, len(knownNetworks))
	for _, name := range knownNetworks {
		if name == "localnet" && !c.Sui.EnableLocalnet && c.Sui.DefaultNetwork != "localnet" {
			continue
		}
		out = append(out, c.endpoint(name))
	}
	return out
}

func (c *Config) networkNames() []string {
	var names []string
	for _, n := range c.Networks() {
		names = append(names, n.Name)
	}
	return names
}

func (c *Config) endpoint(name string) NetworkEndpoint {
	switch name {
	case "mainnet":
		return NetworkEndpoint{Name: name, RPCURL: c.Sui.MainnetRPCURL}
	case "testnet":
		return NetworkEndpoint{Name: name, RPCURL: c.Sui.TestnetRPCURL, FaucetURL: c.Sui.TestnetFaucetURL}
	case "devnet":
		return NetworkEndpoint{Name: name, RPCURL: c.Sui.DevnetRPCURL, FaucetURL: c.Sui.DevnetFaucetURL}
	default:
		return NetworkEndpoint{Name: name, RPCURL: c.Sui.LocalnetRPCURL, FaucetURL: c.Sui.LocalnetFaucetURL}
	}
}

// Keypair restores the configured wallet key from a hex secret or a
// mnemonic. It returns nil when neither is set so the wallet generates an
// ephemeral one.
func (c *Config) Keypair() (*suikeys.Keypair, error) {
	if c.Wallet.PrivateKeyHex == "" && c.Wallet.Mnemonic == "" {
		return nil, nil
	}
	scheme, err := suikeys.ParseScheme(c.Wallet.KeyScheme)
	if err != nil {
		return nil, err
	}
	if c.Wallet.PrivateKeyHex == "" {
		return suikeys.KeypairFromMnemonic(scheme, strings.TrimSpace(c.Wallet.Mnemonic))
	}
	secret, err := hex.DecodeString(strings.TrimPrefix(c.Wallet.PrivateKeyHex, "0x"))
	if err != nil {
		return nil, fmt.Errorf("private key is not hex: %w", err)
	}
	return suikeys.NewKeypair(scheme, secret)
}

// KVConfig maps the cache settings onto the kv factory.
func (c *Config) KVConfig() kv.Config {
	return kv.Config{
		Backend:  kv.Backend(c.Cache.Backend),
		RedisURL: c.Cache.RedisURL,
	}
}
