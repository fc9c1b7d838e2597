package bedrud

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := DefaultConfig()
	cfg.Backend.BaseURL = "http://127.0.0.1:8090/api"
	return cfg
}

func TestDefaultConfigNeedsOnlyBaseURL(t *testing.T) {
	cfg := DefaultConfig()
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	require.NoError(t, cfg.Validate())
	require.Equal(t, "auth_data", cfg.Session.TokenKey)
	require.Equal(t, "user_data", cfg.Session.ProfileKey)
	require.Equal(t, "ws://127.0.0.1:7880", cfg.Media.URL)
	require.Zero(t, cfg.Session.RefreshSkew)
}

func TestConfigValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"negative timeout":     func(c *Config) { c.Backend.Timeout = -time.Second },
		"empty token key":      func(c *Config) { c.Session.TokenKey = "" },
		"same keys":            func(c *Config) { c.Session.ProfileKey = c.Session.TokenKey },
		"zero refresh timeout": func(c *Config) { c.Session.RefreshTimeout = 0 },
		"huge skew":            func(c *Config) { c.Session.RefreshSkew = time.Hour },
		"negative skew":        func(c *Config) { c.Session.RefreshSkew = -time.Second },
		"negative redis ttl":   func(c *Config) { c.Session.RedisTTL = -time.Second },
		"events without buffer": func(c *Config) {
			c.Events.Enabled = true
			c.Events.BufferSize = 0
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}

	var nilCfg *Config
	require.Error(t, nilCfg.Validate())
}
