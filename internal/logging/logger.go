package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"
	"go.uber.org/zap/zapcore"

	"github.com/joseph-ayodele/invoice-extractor/internal/common"
)

// New builds the process logger. The returned func flushes buffered output
// and should be deferred by main.
func New(cfg common.LogConfig) (*slog.Logger, func()) {
	return newWithWriter(cfg, os.Stdout)
}

func newWithWriter(cfg common.LogConfig, w io.Writer) (*slog.Logger, func()) {
	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), func() {}
	case "zap":
		zl := newZap(level, w)
		return slog.New(zapslog.NewHandler(zl.Core())), func() { _ = zl.Sync() }
	default:
		return slog.New(slog.NewTextHandler(w, opts)), func() {}
	}
}

func newZap(level slog.Level, w io.Writer) *zap.Logger {
	encCfg := zap.NewProductionEncoderConfig()
	encCfg.TimeKey = "timestamp"
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.MessageKey = "message"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encCfg),
		zapcore.AddSync(w),
		zap.NewAtomicLevelAt(toZapLevel(level)),
	)
	return zap.New(core)
}

// ParseLevel accepts debug|info|warn|error; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

func toZapLevel(l slog.Level) zapcore.Level {
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
