package logger

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger for the given environment.
// prod uses JSON output, local/dev/docker use colored console output.
// levelOverride (if non-empty) overrides the log level: debug, info, warn, error.
func NewLogger(env string, levelOverride ...string) (*zap.Logger, error) {
	var cfg zap.Config
	switch env {
	case "prod":
		cfg = zap.NewProductionConfig()
	case "local", "dev", "docker":
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	default:
		return nil, fmt.Errorf("unknown environment %q for logger", env)
	}

	if err := applyLevel(&cfg, levelOverride...); err != nil {
		return nil, err
	}

	l, err := cfg.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

// NewCLILogger writes console logs to stderr so stdout stays free for command
// output. Verbose lowers the level to debug; the default is warn.
func NewCLILogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.TimeKey = ""
	level := "warn"
	if verbose {
		level = "debug"
	}
	if err := applyLevel(&cfg, level); err != nil {
		return nil, err
	}
	l, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return l, nil
}

func applyLevel(cfg *zap.Config, levelOverride ...string) error {
	if len(levelOverride) == 0 || levelOverride[0] == "" {
		return nil
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(levelOverride[0])); err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelOverride[0], err)
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return nil
}
