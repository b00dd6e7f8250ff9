// Package config loads planner settings from a YAML file and lets the
// environment override the deployment ones.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	yaml "gopkg.in/yaml.v3"

	"cylroute/internal/opt"
)

type Config struct {
	Profile opt.Profile `yaml:"profile"`
	Weights opt.Weights `yaml:"weights"`
	Origin  opt.Point   `yaml:"origin"`
	Router  Router      `yaml:"router"`
	API     API         `yaml:"api"`
	Store   Store       `yaml:"store"`
	Tune    Tune        `yaml:"tune"`
}

type Router struct {
	Policy    string `yaml:"policy"`
	MaxPasses int    `yaml:"maxPasses"`
}

type API struct {
	Port          string  `yaml:"port"`
	RateRPS       float64 `yaml:"rateRps"` // 0 disables rate limiting
	RateBurst     int     `yaml:"rateBurst"`
	ReplayDelayMs int     `yaml:"replayDelayMs"`
	MaxPasses     int     `yaml:"maxPasses"` // 2-opt pass cap for API requests, 0 disables
	RedisURL      string  `yaml:"redisUrl"`
}

type Store struct {
	DatabaseURL string `yaml:"databaseUrl"`
	SQLitePath  string `yaml:"sqlitePath"`
	Migrate     bool   `yaml:"migrate"`
}

type Tune struct {
	Trials  int   `yaml:"trials"`
	Workers int   `yaml:"workers"`
	Seed    int64 `yaml:"seed"`
}

// Default is the configuration used when no file is given.
func Default() Config {
	return Config{
		Profile: opt.DefaultProfile(),
		Weights: opt.DefaultWeights(),
		Router:  Router{Policy: "nearest"},
		API:     API{Port: "8080", RateBurst: 20, ReplayDelayMs: 100, MaxPasses: 20},
		Store:   Store{Migrate: true},
		Tune:    Tune{Trials: 1000, Workers: 8, Seed: 1},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path loads the defaults only.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := decode(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides deployment settings from the environment.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	envOr := func(key, fallback string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return fallback
	}
	c.API.Port = envOr("PORT", c.API.Port)
	c.API.RedisURL = envOr("REDIS_URL", c.API.RedisURL)
	c.Store.DatabaseURL = envOr("DATABASE_URL", c.Store.DatabaseURL)
	c.Store.SQLitePath = envOr("SQLITE_PATH", c.Store.SQLitePath)
	c.Router.Policy = envOr("ROUTER_POLICY", c.Router.Policy)
	if v := getenv("DB_MIGRATE"); v != "" {
		c.Store.Migrate = v != "false"
	}
	if v := getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("RATE_RPS: %w", err)
		}
		c.API.RateRPS = f
	}
	if v := getenv("RATE_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RATE_BURST: %w", err)
		}
		c.API.RateBurst = n
	}
	return nil
}

// Validate checks the engine parameters.
func (c Config) Validate() error {
	if err := c.Profile.Validate(); err != nil {
		return err
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if _, ok := opt.ParseBlockerPolicy(c.Router.Policy); !ok {
		return fmt.Errorf("config: unknown router policy %q", c.Router.Policy)
	}
	if c.API.RateRPS < 0 || c.API.RateBurst < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if c.Router.MaxPasses < 0 || c.API.MaxPasses < 0 {
		return errors.New("config: pass limits must be >= 0")
	}
	return nil
}

// Planner builds the planner described by c.
func (c Config) Planner() opt.Planner {
	policy, _ := opt.ParseBlockerPolicy(c.Router.Policy)
	return opt.Planner{Profile: c.Profile, Weights: c.Weights, Policy: policy, MaxPasses: c.Router.MaxPasses}
}

// Addr is the listen address for the API.
func (c Config) Addr() string {
	return ":" + c.API.Port
}
