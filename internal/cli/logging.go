package cli

import (
	"fmt"

	"go.uber.org/zap"
)

// buildLogger returns a development logger on stderr when verbose is set, and
// a no-op logger otherwise so normal command output stays clean.
func buildLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
