package app

import (
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"swap-risk-lab/internal/config"
	"swap-risk-lab/internal/logging"
)

// Bootstrap loads the configuration from fs and builds the logger it
// names. Configuration errors are returned before anything is opened.
func Bootstrap(fs *pflag.FlagSet) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(fs)
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}
