package env

import (
	"fmt"

	zap "go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MakeLogger builds a JSON logger that logs at level and above. An empty
// level means info.
func MakeLogger(level string) (*zap.Logger, error) {
	var l zapcore.Level
	if level != "" {
		if err := l.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("invalid log level '%s': %w", level, err)
		}
	}

	logConfig := zap.NewProductionConfig()
	logConfig.Level = zap.NewAtomicLevelAt(l)
	logConfig.Encoding = "json"

	return logConfig.Build()
}
