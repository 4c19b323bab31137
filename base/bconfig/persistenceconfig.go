package bconfig

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
)

// PersistenceConfig provides an interface for the configuration of base.PersistenceStore(s)
//
// All the implementations should support YAML unmarshalling
type PersistenceConfig interface {
	BaseConfig

	// NewPersistence creates a store, which may contain logs left from previous runs
	NewPersistence(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.PersistenceStore, error)

	VerifyConfig() error
}

// PersistenceConfigHolder holds PersistenceConfig
type PersistenceConfigHolder = ConfigHolder[PersistenceConfig]

// PersistenceConfigCreatorTable defines the table of constructors for PersistenceConfig implementations
type PersistenceConfigCreatorTable = ConfigCreatorTable[PersistenceConfig]
