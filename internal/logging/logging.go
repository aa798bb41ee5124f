// Package logging builds the process logger: a zap core exposed through slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	slogzap "github.com/samber/slog-zap/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config controls encoding and verbosity.
type Config struct {
	Level     string // debug | info | warn | error
	Format    string // json | console
	AddSource bool
	Output    io.Writer
}

// New returns a slog.Logger backed by zap.
// The returned sync function flushes buffered zap output and should be deferred.
func New(cfg Config) (*slog.Logger, func() error) {
	zl := buildZapLogger(cfg)

	handler := slogzap.Option{
		Level:     ParseLevel(cfg.Level),
		Logger:    zl,
		AddSource: cfg.AddSource,
	}.NewZapHandler()

	return slog.New(handler), zl.Sync
}

// ParseLevel maps a textual level to slog.Level. Unknown values mean info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildZapLogger(cfg Config) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.TimeKey = "time"

	var encoder zapcore.Encoder
	if strings.EqualFold(cfg.Format, "console") {
		encoder = zapcore.NewConsoleEncoder(encoderCfg)
	} else {
		encoder = zapcore.NewJSONEncoder(encoderCfg)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), zapLevel(ParseLevel(cfg.Level)))

	options := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if cfg.AddSource {
		options = append(options, zap.AddCaller())
	}
	return zap.New(core, options...)
}

func zapLevel(l slog.Level) zapcore.Level {
	switch {
	case l <= slog.LevelDebug:
		return zapcore.DebugLevel
	case l <= slog.LevelInfo:
		return zapcore.InfoLevel
	case l <= slog.LevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}
