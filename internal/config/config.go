package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is named and it exists.
const DefaultPath = "csa-client.yml"

type Config struct {
	Server   ServerConfig `yaml:"server"`
	User     string       `yaml:"user"`
	Password string       `yaml:"password"`
	Repeat   int          `yaml:"repeat"`
	Ponder   bool         `yaml:"ponder"`
	Verbose  bool         `yaml:"verbose"`

	Time   TimeConfig   `yaml:"time"`
	Book   BookConfig   `yaml:"book"`
	Engine EngineConfig `yaml:"engine"`
	Result ResultConfig `yaml:"result"`
	Log    LogConfig    `yaml:"log"`
}

type ServerConfig struct {
	Transport string `yaml:"transport"` // tcp or websocket
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	URL       string `yaml:"url"`

	KeepAlive         bool          `yaml:"keepalive"`
	KeepAliveIdle     time.Duration `yaml:"keepidle"`
	KeepAliveInterval time.Duration `yaml:"keepintvl"`
	KeepAliveCount    int           `yaml:"keepcnt"`
}

type TimeConfig struct {
	Margin     time.Duration `yaml:"margin"`
	MaxPerMove time.Duration `yaml:"max_per_move"`
}

type BookConfig struct {
	Path string `yaml:"path"`
}

type EngineConfig struct {
	Path    string            `yaml:"path"`
	Args    []string          `yaml:"args,omitempty"`
	Options map[string]string `yaml:"options,omitempty"`
}

type ResultConfig struct {
	CSV       string `yaml:"csv"`
	RecordDir string `yaml:"record_dir"`
	RecordExt string `yaml:"record_ext"`
	Encoding  string `yaml:"record_encoding"`

	RedisURL    string `yaml:"redis_url,omitempty"`
	DatabaseURL string `yaml:"database_url,omitempty"`
	WebhookURL  string `yaml:"webhook_url,omitempty"`
	// WebhookTimeout bounds each webhook attempt; zero keeps the client default.
	WebhookTimeout time.Duration `yaml:"webhook_timeout,omitempty"`
}

type LogConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // legacy, console or json
	Console *bool  `yaml:"console,omitempty"`
	File    string `yaml:"file"`
	Caller  bool   `yaml:"caller"`
}

// Error reports an unusable setting.
type Error struct {
	Field  string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{Transport: "tcp", Host: "localhost", Port: 4081},
		Repeat: 1,
		Time:   TimeConfig{Margin: time.Second, MaxPerMove: 10 * time.Second},
		Result: ResultConfig{CSV: "results.csv", RecordDir: "records", RecordExt: "csa", Encoding: "utf-8"},
		Log:    LogConfig{Level: "info", Format: "legacy"},
	}
}

// Load reads path (or DefaultPath when path is empty and the file exists),
// applies environment overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	explicit := strings.TrimSpace(path) != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	str("CSA_TRANSPORT", &c.Server.Transport)
	str("CSA_HOST", &c.Server.Host)
	str("CSA_URL", &c.Server.URL)
	str("CSA_USER", &c.User)
	str("CSA_PASS", &c.Password)
	str("CSA_ENGINE", &c.Engine.Path)
	str("CSA_BOOK_PATH", &c.Book.Path)
	str("CSA_RESULT_CSV", &c.Result.CSV)
	str("CSA_RECORD_DIR", &c.Result.RecordDir)
	str("REDIS_URL", &c.Result.RedisURL)
	str("DATABASE_URL", &c.Result.DatabaseURL)
	str("WEBHOOK_URL", &c.Result.WebhookURL)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FORMAT", &c.Log.Format)
	str("LOG_FILE", &c.Log.File)

	if v, ok := lookup("CSA_PORT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "CSA_PORT", Reason: "not a number"}
		}
		c.Server.Port = n
	}
	if v, ok := lookup("CSA_REPEAT"); ok && strings.TrimSpace(v) != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "CSA_REPEAT", Reason: "not a number"}
		}
		c.Repeat = n
	}
	if v, ok := lookup("CSA_PONDER"); ok && strings.TrimSpace(v) != "" {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return &Error{Field: "CSA_PONDER", Reason: "not a boolean"}
		}
		c.Ponder = b
	}
	return nil
}

// Validate checks what must hold before any connection is made.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Server.Transport) {
	case "", "tcp":
		if strings.TrimSpace(c.Server.Host) == "" {
			return &Error{Field: "server.host", Reason: "required"}
		}
		if c.Server.Port < 1 || c.Server.Port > 65535 {
			return &Error{Field: "server.port", Reason: fmt.Sprintf("out of range: %d", c.Server.Port)}
		}
	case "websocket":
		if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
			return &Error{Field: "server.url", Reason: "ws:// or wss:// url required"}
		}
	default:
		return &Error{Field: "server.transport", Reason: "unknown transport " + strconv.Quote(c.Server.Transport)}
	}
	if c.Server.KeepAliveCount < 0 || c.Server.KeepAliveIdle < 0 || c.Server.KeepAliveInterval < 0 {
		return &Error{Field: "server.keepalive", Reason: "negative value"}
	}
	if strings.TrimSpace(c.User) == "" {
		return &Error{Field: "user", Reason: "required"}
	}
	if strings.ContainsAny(c.User, " \t") || strings.ContainsAny(c.Password, " \t") {
		return &Error{Field: "user", Reason: "user and password must not contain blanks"}
	}
	if c.Password == "" {
		return &Error{Field: "password", Reason: "required"}
	}
	if c.Repeat < 1 {
		return &Error{Field: "repeat", Reason: "must be at least 1"}
	}
	if c.Time.Margin < 0 || c.Time.MaxPerMove < 0 {
		return &Error{Field: "time", Reason: "negative duration"}
	}
	if c.Result.WebhookTimeout < 0 {
		return &Error{Field: "result.webhook_timeout", Reason: "negative duration"}
	}
	if strings.TrimSpace(c.Engine.Path) == "" {
		return &Error{Field: "engine.path", Reason: "required"}
	}
	switch strings.ToLower(c.Result.Encoding) {
	case "", "utf-8", "utf8", "sjis":
	default:
		return &Error{Field: "result.record_encoding", Reason: "want utf-8 or sjis"}
	}
	return nil
}
