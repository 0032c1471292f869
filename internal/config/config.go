// Package config loads settings from the environment (optionally seeded
// from a .env file) with an optional YAML overlay for non-secret values.
package config

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is fixed at startup; nothing reloads it.
type Config struct {
	RPCURL          string
	ProjectID       string
	TokenAddress    common.Address
	GameAddress     common.Address
	PrivateKey      string
	PlayerAddress   common.Address // used when no PrivateKey is set
	ChainID         *big.Int       // nil means ask the node
	ApproveAmount   *big.Int
	TokenDecimals   int
	Port            string
	IsProduction    bool
	ReceiptTimeout  time.Duration // zero waits forever
	ReceiptPoll     time.Duration
	ReadCacheTTL    time.Duration
	SessionTimeout  time.Duration
	CookieMaxAge    time.Duration
	StaticCacheAge  time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	SessionDir      string
	LogLevel        string
	LogFile         string
	ConfigFile      string
	MaxNotification int
}

// fileConfig mirrors the YAML overlay. Pointers distinguish unset from zero.
type fileConfig struct {
	RPCURL         string         `yaml:"rpcUrl"`
	ProjectID      string         `yaml:"projectId"`
	TokenAddress   string         `yaml:"tokenAddress"`
	GameAddress    string         `yaml:"gameAddress"`
	ChainID        *int64         `yaml:"chainId"`
	Port           string         `yaml:"port"`
	ReceiptTimeout *time.Duration `yaml:"receiptTimeout"`
	ReceiptPoll    *time.Duration `yaml:"receiptPollInterval"`
	ReadCacheTTL   *time.Duration `yaml:"readCacheTTL"`
	SessionDir     string         `yaml:"sessionDir"`
	LogLevel       string         `yaml:"logLevel"`
	LogFile        string         `yaml:"logFile"`
}

var (
	ErrMissingRPC     = errors.New("RPC_URL is required")
	ErrMissingAddress = errors.New("WORDLE_TOKEN_ADDRESS and WORDLE_GAME_ADDRESS are required")
	ErrBadAddress     = errors.New("invalid contract address")
)

// Default returns the built-in settings.
func Default() Config {
	return Config{
		RPCURL:          "http://127.0.0.1:8545",
		ApproveAmount:   new(big.Int).Mul(big.NewInt(5), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)),
		TokenDecimals:   18,
		Port:            "8080",
		ReceiptTimeout:  5 * time.Minute,
		ReceiptPoll:     2 * time.Second,
		ReadCacheTTL:    30 * time.Second,
		SessionTimeout:  2 * time.Hour,
		CookieMaxAge:    2 * time.Hour,
		StaticCacheAge:  5 * time.Minute,
		RateLimitRPS:    5,
		RateLimitBurst:  10,
		SessionDir:      "data/sessions",
		LogLevel:        "info",
		MaxNotification: 20,
	}
}

// Load reads .env (if present), then the YAML file named by CONFIG_FILE,
// then environment variables. Later sources win.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := mergeFile(&cfg, path); err != nil {
			return cfg, err
		}
		cfg.ConfigFile = path
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate checks the settings needed to reach the contracts.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return ErrMissingRPC
	}
	if c.TokenAddress == (common.Address{}) || c.GameAddress == (common.Address{}) {
		return ErrMissingAddress
	}
	return nil
}

func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if fc.RPCURL != "" {
		cfg.RPCURL = fc.RPCURL
	}
	if fc.ProjectID != "" {
		cfg.ProjectID = fc.ProjectID
	}
	if fc.TokenAddress != "" {
		if cfg.TokenAddress, err = parseAddress(fc.TokenAddress); err != nil {
			return err
		}
	}
	if fc.GameAddress != "" {
		if cfg.GameAddress, err = parseAddress(fc.GameAddress); err != nil {
			return err
		}
	}
	if fc.ChainID != nil {
		cfg.ChainID = big.NewInt(*fc.ChainID)
	}
	if fc.Port != "" {
		cfg.Port = fc.Port
	}
	if fc.ReceiptTimeout != nil {
		cfg.ReceiptTimeout = *fc.ReceiptTimeout
	}
	if fc.ReceiptPoll != nil {
		cfg.ReceiptPoll = *fc.ReceiptPoll
	}
	if fc.ReadCacheTTL != nil {
		cfg.ReadCacheTTL = *fc.ReadCacheTTL
	}
	if fc.SessionDir != "" {
		cfg.SessionDir = fc.SessionDir
	}
	if fc.LogLevel != "" {
		cfg.LogLevel = fc.LogLevel
	}
	if fc.LogFile != "" {
		cfg.LogFile = fc.LogFile
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var err error
	if v := env("RPC_URL"); v != "" {
		cfg.RPCURL = v
	}
	if v := env("PUBLIC_PROJECT_ID"); v != "" {
		cfg.ProjectID = v
	}
	if v := env("WORDLE_TOKEN_ADDRESS"); v != "" {
		if cfg.TokenAddress, err = parseAddress(v); err != nil {
			return err
		}
	}
	if v := env("WORDLE_GAME_ADDRESS"); v != "" {
		if cfg.GameAddress, err = parseAddress(v); err != nil {
			return err
		}
	}
	if v := env("CHAIN_ID"); v != "" {
		id, ok := new(big.Int).SetString(v, 10)
		if !ok {
			return fmt.Errorf("invalid CHAIN_ID %q", v)
		}
		cfg.ChainID = id
	}
	cfg.PrivateKey = strings.TrimPrefix(env("PRIVATE_KEY"), "0x")
	if v := env("PLAYER_ADDRESS"); v != "" {
		if cfg.PlayerAddress, err = parseAddress(v); err != nil {
			return err
		}
	}
	if v := env("PORT"); v != "" {
		cfg.Port = v
	}
	cfg.IsProduction = os.Getenv("GIN_MODE") == "release" || os.Getenv("ENV") == "production"
	cfg.ReceiptTimeout = envDuration("RECEIPT_TIMEOUT", cfg.ReceiptTimeout)
	cfg.ReceiptPoll = envDuration("RECEIPT_POLL_INTERVAL", cfg.ReceiptPoll)
	cfg.ReadCacheTTL = envDuration("READ_CACHE_TTL", cfg.ReadCacheTTL)
	cfg.SessionTimeout = envDuration("SESSION_TIMEOUT", cfg.SessionTimeout)
	cfg.CookieMaxAge = envDuration("COOKIE_MAX_AGE", cfg.CookieMaxAge)
	cfg.StaticCacheAge = envDuration("STATIC_CACHE_AGE", cfg.StaticCacheAge)
	cfg.RateLimitRPS = envInt("RATE_LIMIT_RPS", cfg.RateLimitRPS)
	cfg.RateLimitBurst = envInt("RATE_LIMIT_BURST", cfg.RateLimitBurst)
	if v := env("SESSION_DIR"); v != "" {
		cfg.SessionDir = v
	}
	if v := env("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := env("LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	return nil
}

func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q", ErrBadAddress, s)
	}
	return common.HexToAddress(s), nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func envDuration(key string, fallback time.Duration) time.Duration {
	val := env(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return d
}

func envInt(key string, fallback int) int {
	val := env(key)
	if val == "" {
		return fallback
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return i
}
