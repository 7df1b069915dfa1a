package logger

import (
	"fmt"

	"go.uber.org/zap"
)

// Initialize builds a production zap logger at the given level and installs it
// as the global logger returned by zap.L().
func Initialize(level string) error {
	atomicLevel, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return fmt.Errorf("parse log level %q: %w", level, err)
	}

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = atomicLevel

	log, err := zapConfig.Build()
	if err != nil {
		return fmt.Errorf("build zap logger: %w", err)
	}

	zap.ReplaceGlobals(log)

	return nil
}
