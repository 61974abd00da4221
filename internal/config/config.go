package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all application configuration
type Config struct {
	Debug bool

	// Server
	Port           int
	HealthPort     string // empty disables the health server
	MaxConnections int
	AcceptRate     float64
	AcceptBurst    int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration

	// Downloader
	FetchTimeout time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		Debug: getEnvBool("DEBUG", false),

		Port:           getEnvInt("FETCHGATE_PORT", 42069),
		HealthPort:     getEnv("FETCHGATE_HEALTH_PORT", ""),
		MaxConnections: getEnvInt("FETCHGATE_MAX_CONNECTIONS", 0),
		AcceptRate:     getEnvFloat("FETCHGATE_ACCEPT_RATE", 0),
		AcceptBurst:    getEnvInt("FETCHGATE_ACCEPT_BURST", 1),
		ReadTimeout:    getEnvDuration("FETCHGATE_READ_TIMEOUT", 0),
		WriteTimeout:   getEnvDuration("FETCHGATE_WRITE_TIMEOUT", 0),

		FetchTimeout: getEnvDuration("FETCHGATE_FETCH_TIMEOUT", 30*time.Second),
		MaxBodyBytes: int64(getEnvInt("FETCHGATE_MAX_BODY_BYTES", 10*1024*1024)),
		UserAgent:    getEnv("FETCHGATE_USER_AGENT", "fetchgate/1.0"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// BindFlags registers command-line overrides whose defaults are the current
// values of cfg.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.BoolVar(&c.Debug, "debug", c.Debug, "enable debug logging")
	fs.IntVarP(&c.Port, "port", "p", c.Port, "port to listen on (0.0.0.0)")
	fs.StringVar(&c.HealthPort, "health-port", c.HealthPort, "port for /health and /ready (empty disables)")
	fs.IntVar(&c.MaxConnections, "max-connections", c.MaxConnections, "maximum simultaneous connections (0 = unlimited)")
	fs.Float64Var(&c.AcceptRate, "accept-rate", c.AcceptRate, "accepted connections per second (0 = unlimited)")
	fs.IntVar(&c.AcceptBurst, "accept-burst", c.AcceptBurst, "burst size for --accept-rate")
	fs.DurationVar(&c.ReadTimeout, "read-timeout", c.ReadTimeout, "time allowed for a client to send its request (0 = none)")
	fs.DurationVar(&c.WriteTimeout, "write-timeout", c.WriteTimeout, "time allowed to send the reply (0 = none)")
	fs.DurationVar(&c.FetchTimeout, "fetch-timeout", c.FetchTimeout, "upstream download timeout")
	fs.Int64Var(&c.MaxBodyBytes, "max-body-bytes", c.MaxBodyBytes, "largest upstream body accepted")
	fs.StringVar(&c.UserAgent, "user-agent", c.UserAgent, "User-Agent sent upstream")
}

// Validate ensures configuration is coherent
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d (must be 0-65535)", c.Port)
	}
	if c.HealthPort != "" {
		hp, err := strconv.Atoi(c.HealthPort)
		if err != nil || hp < 0 || hp > 65535 {
			return fmt.Errorf("invalid health port %q", c.HealthPort)
		}
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max connections must not be negative")
	}
	if c.AcceptRate < 0 || c.AcceptBurst < 0 {
		return fmt.Errorf("accept rate and burst must not be negative")
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.FetchTimeout < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max body bytes must be positive")
	}
	return nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
