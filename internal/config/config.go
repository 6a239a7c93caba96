package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/holiman/uint256"

	"guess-reward-backend/internal/models"
)

// Config is read from the environment (and an optional .env file loaded by
// main). Amounts are decimal strings in base units (18 decimals).
type Config struct {
	Env      string `env:"ENV" envDefault:"development"`
	Port     string `env:"PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret     string        `env:"JWT_SECRET"`
	JWTTTL        time.Duration `env:"JWT_TTL" envDefault:"24h"`
	AuthIssuerKey string        `env:"AUTH_ISSUER_KEY"`

	OwnerPrincipal       string `env:"OWNER_PRINCIPAL" envDefault:"owner"`
	EnginePrincipal      string `env:"ENGINE_PRINCIPAL" envDefault:"guess-engine"`
	DistributorPrincipal string `env:"DISTRIBUTOR_PRINCIPAL" envDefault:"reward-distributor"`

	// 1,000,000 GUESS
	InitialSupply string `env:"INITIAL_SUPPLY" envDefault:"1000000000000000000000000"`
	// 50,000 GUESS
	RewardPoolAllowance string `env:"REWARD_POOL_ALLOWANCE" envDefault:"50000000000000000000000"`
	// 10 GUESS
	BaseReward   string `env:"BASE_REWARD" envDefault:"10000000000000000000"`
	EntryFee     string `env:"ENTRY_FEE" envDefault:"0"`
	WinThreshold uint8  `env:"WIN_THRESHOLD" envDefault:"20"`
	ServerSeed   string `env:"SERVER_SEED"`

	RewardCategories     string `env:"REWARD_CATEGORIES" envDefault:"quiz-beginner:5000000000000000000,quiz-intermediate:10000000000000000000,quiz-expert:25000000000000000000"`
	DistributorMode      string `env:"DISTRIBUTOR_MODE" envDefault:"mint"`
	DistributorAllowance string `env:"DISTRIBUTOR_ALLOWANCE" envDefault:"0"`

	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"30s"`
	RateLimitPlays   int           `env:"RATE_LIMIT_PLAYS" envDefault:"30"`
	EventLogSize     int           `env:"EVENT_LOG_SIZE" envDefault:"1000"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if c.AuthIssuerKey == "" {
			return fmt.Errorf("AUTH_ISSUER_KEY is required in production")
		}
		if c.ServerSeed == "" {
			return fmt.Errorf("SERVER_SEED is required in production")
		}
	}
	for name, v := range map[string]string{
		"INITIAL_SUPPLY":        c.InitialSupply,
		"REWARD_POOL_ALLOWANCE": c.RewardPoolAllowance,
		"BASE_REWARD":           c.BaseReward,
		"ENTRY_FEE":             c.EntryFee,
		"DISTRIBUTOR_ALLOWANCE": c.DistributorAllowance,
	} {
		if _, err := models.ParseAmount(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if _, err := c.Categories(); err != nil {
		return err
	}
	if c.DistributorMode != "mint" && c.DistributorMode != "transfer" {
		return fmt.Errorf("DISTRIBUTOR_MODE must be mint or transfer, got %q", c.DistributorMode)
	}
	return nil
}

// Category is one parsed entry of REWARD_CATEGORIES.
type Category struct {
	Name   string
	Reward *uint256.Int
}

// Categories parses REWARD_CATEGORIES ("name:amount,name:amount").
func (c *Config) Categories() ([]Category, error) {
	var out []Category
	for _, item := range strings.Split(c.RewardCategories, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, amount, ok := strings.Cut(item, ":")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("REWARD_CATEGORIES: malformed entry %q", item)
		}
		reward, err := models.ParseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("REWARD_CATEGORIES: %s: %w", name, err)
		}
		out = append(out, Category{Name: strings.TrimSpace(name), Reward: reward})
	}
	return out, nil
}

// Amount parses a validated amount field; Validate guarantees no error.
func Amount(v string) *uint256.Int {
	a, err := models.ParseAmount(v)
	if err != nil {
		return new(uint256.Int)
	}
	return a
}
