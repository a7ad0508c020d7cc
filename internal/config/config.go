// Package config reads the server settings from the environment, optionally
// seeded from a .env file outside production.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	HTTPAddr string
	GRPCAddr string

	DBDriver    string
	DatabaseURL string
	RedisAddr   string

	WorkerCount int
	QueueSize   int

	DiscordWebhookURL string
	AdminToken        string

	AdminPollInterval time.Duration
	MenuCacheTTL      time.Duration
	SessionTTL        time.Duration

	SimPreparingAfter time.Duration
	SimDispatchAfter  time.Duration
	SimCompleteAfter  time.Duration
}

// Production reports whether ENV is "production".
func (c Config) Production() bool { return c.Env == "production" }

// Load overlays envFile on the process environment (unless ENV is
// production) and parses the result. A missing envFile is not an error;
// loaded reports whether it was read.
func Load(envFile string) (cfg Config, loaded bool, err error) {
	if os.Getenv("ENV") != "production" && envFile != "" {
		if err := godotenv.Overload(envFile); err == nil {
			loaded = true
		} else if !errors.Is(err, os.ErrNotExist) {
			return Config{}, false, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	cfg, err = FromEnv(os.Getenv)
	return cfg, loaded, err
}

// FromEnv parses the settings through getenv, applying defaults for unset
// keys.
func FromEnv(getenv func(string) string) (Config, error) {
	p := parser{getenv: getenv}
	cfg := Config{
		Env:               p.str("ENV", "development"),
		HTTPAddr:          p.str("HTTP_ADDR", ":8080"),
		GRPCAddr:          p.str("GRPC_ADDR", ":50051"),
		DBDriver:          p.str("DB_DRIVER", "mysql"),
		DatabaseURL:       p.str("DATABASE_URL", "root:root@tcp(localhost:3306)/pizzeria?parseTime=true"),
		RedisAddr:         p.str("REDIS_ADDR", "localhost:6379"),
		WorkerCount:       p.positive("WORKER_COUNT", 10),
		QueueSize:         p.positive("QUEUE_SIZE", 1000),
		DiscordWebhookURL: p.str("DISCORD_WEBHOOK_URL", ""),
		AdminToken:        p.str("ADMIN_TOKEN", ""),
		AdminPollInterval: p.duration("ADMIN_POLL_INTERVAL", 30*time.Second),
		MenuCacheTTL:      p.duration("MENU_CACHE_TTL", 5*time.Minute),
		SessionTTL:        p.duration("SESSION_TTL", 2*time.Hour),
		SimPreparingAfter: p.duration("SIM_PREPARING_AFTER", 5*time.Second),
		SimDispatchAfter:  p.duration("SIM_DISPATCH_AFTER", 15*time.Second),
		SimCompleteAfter:  p.duration("SIM_COMPLETE_AFTER", 25*time.Second),
	}
	switch cfg.DBDriver {
	case "mysql", "pgx":
	default:
		p.errs = append(p.errs, fmt.Errorf("DB_DRIVER: unsupported driver %q", cfg.DBDriver))
	}
	if !(cfg.SimPreparingAfter <= cfg.SimDispatchAfter && cfg.SimDispatchAfter <= cfg.SimCompleteAfter) {
		p.errs = append(p.errs, errors.New("SIM_*_AFTER: offsets must be non-decreasing"))
	}
	return cfg, errors.Join(p.errs...)
}

type parser struct {
	getenv func(string) string
	errs   []error
}

func (p *parser) str(key, def string) string {
	if v := p.getenv(key); v != "" {
		return v
	}
	return def
}

func (p *parser) positive(key string, def int) int {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		p.errs = append(p.errs, fmt.Errorf("%s: want a positive integer, got %q", key, v))
		return def
	}
	return n
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.errs = append(p.errs, fmt.Errorf("%s: want a positive duration, got %q", key, v))
		return def
	}
	return d
}
