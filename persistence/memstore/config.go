package memstore

import (
	"fmt"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/base/bconfig"
)

// Config defines the configuration for Store
type Config struct {
	bconfig.Header `yaml:",inline"`
	MaxLogsInGroup int `yaml:"maxLogsInGroup"` // max numbers of logs for each group, 0 for unlimited
}

// NewPersistence creates a Store
func (cfg *Config) NewPersistence(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.PersistenceStore, error) {
	return NewStore(parentLogger, metricCreator, cfg.MaxLogsInGroup), nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.MaxLogsInGroup < 0 {
		return fmt.Errorf(".maxLogsInGroup is negative: %d", cfg.MaxLogsInGroup)
	}
	return nil
}
