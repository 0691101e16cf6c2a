package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "csa-client.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
server:
  host: wdoor.c.u-tokyo.ac.jp
  port: 4081
  keepalive: true
  keepidle: 10s
user: tester
password: secret
repeat: 3
ponder: true
time:
  margin: 2s
  max_per_move: 5s
engine:
  path: /usr/local/bin/engine
  options:
    USI_Hash: "256"
result:
  csv: out/results.csv
  record_encoding: sjis
  webhook_url: http://127.0.0.1:8080/games
  webhook_timeout: 3s
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wdoor.c.u-tokyo.ac.jp", cfg.Server.Host)
	assert.Equal(t, "tcp", cfg.Server.Transport, "defaults survive a partial file")
	assert.True(t, cfg.Server.KeepAlive)
	assert.Equal(t, 10*time.Second, cfg.Server.KeepAliveIdle)
	assert.Equal(t, 3, cfg.Repeat)
	assert.True(t, cfg.Ponder)
	assert.Equal(t, 2*time.Second, cfg.Time.Margin)
	assert.Equal(t, "256", cfg.Engine.Options["USI_Hash"])
	assert.Equal(t, "out/results.csv", cfg.Result.CSV)
	assert.Equal(t, "records", cfg.Result.RecordDir)
	assert.Equal(t, "sjis", cfg.Result.Encoding)
	assert.Equal(t, 3*time.Second, cfg.Result.WebhookTimeout)
}

func TestEnvOverrides(t *testing.T) {
	path := writeConfig(t, "user: tester\npassword: secret\nengine:\n  path: engine\n")
	t.Setenv("CSA_HOST", "example.org")
	t.Setenv("CSA_PORT", "4082")
	t.Setenv("CSA_USER", "bot")
	t.Setenv("CSA_PONDER", "true")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "example.org", cfg.Server.Host)
	assert.Equal(t, 4082, cfg.Server.Port)
	assert.Equal(t, "bot", cfg.User)
	assert.True(t, cfg.Ponder)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Result.RedisURL)
}

func TestEnvBadNumber(t *testing.T) {
	path := writeConfig(t, "user: tester\npassword: secret\nengine:\n  path: engine\n")
	t.Setenv("CSA_PORT", "http")

	_, err := Load(path)
	var cfgErr *Error
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "CSA_PORT", cfgErr.Field)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := Default()
		c.User, c.Password, c.Engine.Path = "tester", "secret", "engine"
		return c
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"no user", func(c *Config) { c.User = "" }, "user"},
		{"blank in user", func(c *Config) { c.User = "a b" }, "user"},
		{"no password", func(c *Config) { c.Password = "" }, "password"},
		{"port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"transport", func(c *Config) { c.Server.Transport = "udp" }, "server.transport"},
		{"ws url", func(c *Config) { c.Server.Transport = "websocket"; c.Server.URL = "http://x" }, "server.url"},
		{"repeat", func(c *Config) { c.Repeat = 0 }, "repeat"},
		{"engine", func(c *Config) { c.Engine.Path = "" }, "engine.path"},
		{"encoding", func(c *Config) { c.Result.Encoding = "euc-jp" }, "result.record_encoding"},
		{"margin", func(c *Config) { c.Time.Margin = -time.Second }, "time"},
		{"webhook timeout", func(c *Config) { c.Result.WebhookTimeout = -time.Second }, "result.webhook_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			var cfgErr *Error
			require.ErrorAs(t, c.Validate(), &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}

	c := valid()
	c.Server.Transport, c.Server.URL = "websocket", "wss://example.org/csa"
	assert.NoError(t, c.Validate())
}
