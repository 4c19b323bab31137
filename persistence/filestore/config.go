package filestore

import (
	"fmt"
	"os"
	"strings"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/base/bconfig"
)

// Config defines the configuration for Store
type Config struct {
	bconfig.Header `yaml:",inline"`
	RootPath       string            `yaml:"rootPath"`       // root path on top of group dirs, may contain environment variables
	MaxStorageSize datasize.ByteSize `yaml:"maxStorageSize"` // max total size of log files for each group
	Compress       bool              `yaml:"compress"`       // compress larger logs by LZ4
	SyncWrites     bool              `yaml:"syncWrites"`     // flush each log file to disk before returning from PutLog
}

// NewPersistence creates a Store
func (cfg *Config) NewPersistence(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.PersistenceStore, error) {
	rootPath := os.ExpandEnv(cfg.RootPath)
	if strings.Contains(rootPath, "$") {
		parentLogger.Warnf("possibly misconfigured .rootPath: '%s'", rootPath)
	}
	if err := os.MkdirAll(rootPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create root dir: %w", err)
	}
	return NewStore(parentLogger, rootPath, metricCreator, int64(cfg.MaxStorageSize.Bytes()), cfg.Compress, cfg.SyncWrites), nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if len(cfg.RootPath) == 0 {
		return fmt.Errorf(".rootPath is unspecified")
	}
	if cfg.MaxStorageSize.Bytes() == 0 {
		return fmt.Errorf(".maxStorageSize is unspecified")
	}
	return nil
}
