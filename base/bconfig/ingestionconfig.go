package bconfig

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
)

// IngestionConfig provides an interface for the configuration of base.IngestionClient(s)
//
// All the implementations should support YAML unmarshalling
type IngestionConfig interface {
	BaseConfig

	NewIngestion(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.IngestionClient, error)

	VerifyConfig() error
}

// IngestionConfigHolder holds IngestionConfig
type IngestionConfigHolder = ConfigHolder[IngestionConfig]

// IngestionConfigCreatorTable defines the table of constructors for IngestionConfig implementations
type IngestionConfigCreatorTable = ConfigCreatorTable[IngestionConfig]
