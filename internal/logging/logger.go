package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options selects the level and destination of the process logger.
type Options struct {
	Level string
	// File receives JSON lines when set; otherwise logs go to stderr.
	File string
}

// New builds the process logger. Logs written to a file use the production
// JSON encoder so they can be inspected after the terminal closes; stderr
// logs use the console encoder.
func New(opts Options) (*zap.Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	path := strings.TrimSpace(opts.File)
	if path == "" {
		encoderCfg := zap.NewDevelopmentEncoderConfig()
		encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encoderCfg),
			zapcore.Lock(os.Stderr),
			level,
		)
		return zap.New(core), nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(level)
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: open log file: %w", err)
	}
	return logger, nil
}

// ParseLevel maps debug, info, warn and error to zap levels. Empty means info.
func ParseLevel(value string) (zapcore.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "info":
		return zapcore.InfoLevel, nil
	case "debug":
		return zapcore.DebugLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("logging: unknown level %q", value)
	}
}

// Printf adapts a zap logger to components that only need a one-method
// Printf logger.
type Printf struct {
	logger *zap.Logger
}

// NewPrintf wraps logger; a nil logger discards everything.
func NewPrintf(logger *zap.Logger) Printf {
	if logger == nil {
		logger = zap.NewNop()
	}
	return Printf{logger: logger}
}

// Printf writes a single info line.
func (p Printf) Printf(format string, args ...any) {
	if p.logger == nil {
		return
	}
	line := strings.TrimRight(fmt.Sprintf(format, args...), "\n")
	p.logger.Info(line)
}
