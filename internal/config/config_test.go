package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromEnvDefaults(t *testing.T) {
	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 42069, cfg.Port)
	assert.Empty(t, cfg.HealthPort)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, int64(10*1024*1024), cfg.MaxBodyBytes)
	assert.Equal(t, 1, cfg.AcceptBurst)
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("FETCHGATE_PORT", "8081")
	t.Setenv("FETCHGATE_MAX_CONNECTIONS", "16")
	t.Setenv("FETCHGATE_ACCEPT_RATE", "2.5")
	t.Setenv("FETCHGATE_READ_TIMEOUT", "3s")
	t.Setenv("FETCHGATE_HEALTH_PORT", "9090")
	t.Setenv("DEBUG", "true")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 8081, cfg.Port)
	assert.Equal(t, 16, cfg.MaxConnections)
	assert.Equal(t, 2.5, cfg.AcceptRate)
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "9090", cfg.HealthPort)
	assert.True(t, cfg.Debug)
}

func TestLoadFromEnvIgnoresUnparsable(t *testing.T) {
	t.Setenv("FETCHGATE_PORT", "not-a-port")
	t.Setenv("FETCHGATE_FETCH_TIMEOUT", "soon")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, 42069, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
}

func TestLoadFromEnvValidation(t *testing.T) {
	t.Setenv("FETCHGATE_PORT", "70000")
	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{Port: 1, MaxBodyBytes: 1}
	}
	require.NoError(t, valid().Validate())

	for name, mutate := range map[string]func(*Config){
		"negative port":        func(c *Config) { c.Port = -1 },
		"bad health port":      func(c *Config) { c.HealthPort = "abc" },
		"health port too big":  func(c *Config) { c.HealthPort = "65536" },
		"negative connections": func(c *Config) { c.MaxConnections = -1 },
		"negative rate":        func(c *Config) { c.AcceptRate = -1 },
		"negative timeout":     func(c *Config) { c.ReadTimeout = -time.Second },
		"zero body cap":        func(c *Config) { c.MaxBodyBytes = 0 },
	} {
		c := valid()
		mutate(c)
		assert.Error(t, c.Validate(), name)
	}
}

func TestBindFlagsOverrideEnv(t *testing.T) {
	t.Setenv("FETCHGATE_PORT", "8081")
	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	fs := pflag.NewFlagSet("fetchgate", pflag.ContinueOnError)
	cfg.BindFlags(fs)
	require.NoError(t, fs.Parse([]string{"-p", "9000", "--max-connections=4", "--fetch-timeout", "5s"}))

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 4, cfg.MaxConnections)
	assert.Equal(t, 5*time.Second, cfg.FetchTimeout)

	// Unset flags keep the env value.
	fs = pflag.NewFlagSet("fetchgate", pflag.ContinueOnError)
	cfg2, err := LoadFromEnv()
	require.NoError(t, err)
	cfg2.BindFlags(fs)
	require.NoError(t, fs.Parse(nil))
	assert.Equal(t, 8081, cfg2.Port)
}
