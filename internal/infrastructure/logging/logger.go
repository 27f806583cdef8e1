package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Service is attached to every entry written by the daemon logger
const Service = "vatomsync"

// Logger wraps zap.Logger for the daemon.
type Logger struct {
	*zap.Logger
}

// Config selects level, encoding and sinks.
type Config struct {
	Level       string // "debug", "info", "warn", "error"
	Development bool
	OutputPaths []string
}

// FromSettings turns the logging section of the settings into a Config.
// Development mode logs at debug in console format to stdout; otherwise JSON
// at info goes to stderr. An explicit level wins in both cases.
func FromSettings(level string, development bool) Config {
	cfg := Config{Level: "info", OutputPaths: []string{"stderr"}}
	if development {
		cfg = Config{Level: "debug", Development: true, OutputPaths: []string{"stdout"}}
	}
	if level != "" {
		cfg.Level = level
	}
	return cfg
}

// New builds the daemon logger.
func New(cfg Config) (*Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	zapCfg := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Development,
		Encoding:          "json",
		EncoderConfig:     zap.NewProductionEncoderConfig(),
		OutputPaths:       cfg.OutputPaths,
		ErrorOutputPaths:  []string{"stderr"},
		DisableStacktrace: !cfg.Development,
		InitialFields:     map[string]any{"service": Service},
	}
	if cfg.Development {
		zapCfg.Encoding = "console"
		zapCfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.InitialFields = nil
	} else {
		zapCfg.EncoderConfig.TimeKey = "timestamp"
		zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	if len(zapCfg.OutputPaths) == 0 {
		zapCfg.OutputPaths = []string{"stderr"}
	}

	logger, err := zapCfg.Build()
	if err != nil {
		return nil, err
	}
	return &Logger{Logger: logger}, nil
}

// Component returns a named child logger for one engine component.
// A nil logger yields a no-op logger so components never nil-check.
func Component(base *zap.Logger, name string, fields ...zap.Field) *zap.Logger {
	if base == nil {
		return zap.NewNop()
	}
	return base.Named(name).With(fields...)
}
