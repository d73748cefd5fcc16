package logger

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a zap.Logger configured for structured JSON logging to the
// given output paths. With no paths it logs to stderr.
func New(level string, outputPaths ...string) (*zap.Logger, error) {
	zapLevel := zapcore.InfoLevel
	if err := zapLevel.Set(strings.ToLower(level)); err != nil {
		return nil, err
	}

	if len(outputPaths) == 0 {
		outputPaths = []string{"stderr"}
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zapLevel),
		Development: false,
		Encoding:    "json",
		EncoderConfig: zapcore.EncoderConfig{
			TimeKey:        "ts",
			LevelKey:       "level",
			NameKey:        "logger",
			CallerKey:      "caller",
			MessageKey:     "msg",
			StacktraceKey:  "stacktrace",
			LineEnding:     zapcore.DefaultLineEnding,
			EncodeLevel:    zapcore.LowercaseLevelEncoder,
			EncodeTime:     zapcore.ISO8601TimeEncoder,
			EncodeDuration: zapcore.SecondsDurationEncoder,
			EncodeCaller:   zapcore.ShortCallerEncoder,
		},
		OutputPaths:      outputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	return cfg.Build()
}

// ForCommand builds a logger that writes to stderr and to a per-run log file
// in dir, and returns the file path alongside it.
func ForCommand(level, dir, command string, now time.Time) (*zap.Logger, string, error) {
	path := filepath.Join(dir, FileName(command, now))
	logr, err := New(level, path, "stderr")
	if err != nil {
		return nil, "", fmt.Errorf("open log file %s: %w", path, err)
	}
	return logr, path, nil
}

// FileName returns "{command}-{YYYYmmdd}-{unix seconds}.log".
func FileName(command string, now time.Time) string {
	return fmt.Sprintf("%s-%s-%d.log", command, now.Format("20060102"), now.Unix())
}
