package obslog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects where and how the client logs. Console and file output
// can be combined.
type Options struct {
	Level   string
	Format  string // legacy, console or json
	Console bool
	// File is appended to when set.
	File   string
	Caller bool
	// Stdout replaces os.Stdout for the console core.
	Stdout io.Writer
}

// New builds a logger writing to every configured destination. The returned
// close function releases the log file.
func New(o Options) (*zap.Logger, func() error, error) {
	level := parseLevel(o.Level)
	format := normalizeFormat(o.Format)
	closeFn := func() error { return nil }

	var cores []zapcore.Core
	if o.Console {
		out := o.Stdout
		if out == nil {
			out = os.Stdout
		}
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(out), level))
	}

	if path := strings.TrimSpace(o.File); path != "" {
		if err := ensureDir(filepath.Dir(path)); err != nil {
			return nil, nil, err
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		closeFn = f.Close
		cores = append(cores, zapcore.NewCore(newEncoder(format), zapcore.AddSync(f), level))
	}

	if len(cores) == 0 {
		return zap.NewNop(), closeFn, nil
	}

	logger := zap.New(zapcore.NewTee(cores...))
	if o.Caller || format == "legacy" {
		logger = logger.WithOptions(zap.AddCaller())
	}
	logger = logger.WithOptions(zap.AddStacktrace(zapcore.ErrorLevel))
	return logger, closeFn, nil
}

func normalizeFormat(f string) string {
	f = strings.ToLower(strings.TrimSpace(f))
	if f != "legacy" && f != "json" && f != "console" {
		return "legacy"
	}
	return f
}

func newEncoder(format string) zapcore.Encoder {
	switch format {
	case "json":
		return zapcore.NewJSONEncoder(jsonEncoderConfig())
	case "console":
		return zapcore.NewConsoleEncoder(consoleEncoderConfig(false))
	default:
		return zapcore.NewConsoleEncoder(legacyEncoderConfig())
	}
}

func ensureDir(dir string) error {
	if strings.TrimSpace(dir) == "" || dir == "." {
		return nil
	}
	if _, err := os.Stat(dir); err == nil {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func parseLevel(s string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

func legacyEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	cfg.ConsoleSeparator = " | "
	return cfg
}

func consoleEncoderConfig(color bool) zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	if color {
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	}
	return cfg
}

func jsonEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
	return cfg
}
