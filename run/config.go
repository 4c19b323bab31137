package run

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/relex/logchannel/base/bconfig"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/ingestion"
	"github.com/relex/logchannel/persistence"
	"github.com/relex/logchannel/util"
	"github.com/samber/lo"
)

// Config defines the root of logchannel config file
type Config struct {
	AppSecret   string                          `yaml:"appSecret"`
	InstallID   string                          `yaml:"installId"` // UUID, generated and kept in prefs if empty
	Groups      []GroupConfig                   `yaml:"groups"`
	Persistence bconfig.PersistenceConfigHolder `yaml:"persistence"`
	Ingestion   bconfig.IngestionConfigHolder   `yaml:"ingestion"`
	Analytics   AnalyticsConfig                 `yaml:"analytics"`
}

// GroupConfig defines the batching of one channel group
type GroupConfig struct {
	Name               string        `yaml:"name"`
	Threshold          int           `yaml:"threshold"`
	Interval           time.Duration `yaml:"interval"`
	MaxParallelBatches int           `yaml:"maxParallelBatches"`
}

// AnalyticsConfig defines the analytics feature
//
// The analytics group takes its batching from the entry named group_analytics in .groups if present
type AnalyticsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	PrefsPath string `yaml:"prefsPath"` // optional file to keep preferences, e.g. enabled state of analytics
}

func init() {
	persistence.Register()
	ingestion.Register()
}

// LoadConfigFile loads config from the path and verifies all sections
func LoadConfigFile(filepath string) (*Config, error) {
	cref := &Config{}
	if err := util.UnmarshalYamlFile(filepath, cref); err != nil {
		return nil, err
	}
	if err := cref.VerifyConfig(); err != nil {
		return nil, err
	}
	return cref, nil
}

// VerifyConfig checks all sections
func (cfg *Config) VerifyConfig() error {
	if len(cfg.AppSecret) == 0 {
		return fmt.Errorf("appSecret is unspecified")
	}
	if len(cfg.InstallID) > 0 {
		if _, err := uuid.Parse(cfg.InstallID); err != nil {
			return fmt.Errorf("installId: %w", err)
		}
	}
	for i, group := range cfg.Groups {
		if err := group.VerifyConfig(); err != nil {
			return fmt.Errorf("groups[%d]: %w", i, err)
		}
	}
	if dups := lo.FindDuplicates(lo.Map(cfg.Groups, func(g GroupConfig, _ int) string { return g.Name })); len(dups) > 0 {
		return fmt.Errorf("groups: duplicate names %v", dups)
	}
	if cfg.Persistence.Value == nil {
		return fmt.Errorf("persistence is unspecified")
	}
	if err := cfg.Persistence.Value.VerifyConfig(); err != nil {
		return fmt.Errorf("persistence: %w", err)
	}
	if cfg.Ingestion.Value == nil {
		return fmt.Errorf("ingestion is unspecified")
	}
	if err := cfg.Ingestion.Value.VerifyConfig(); err != nil {
		return fmt.Errorf("ingestion: %w", err)
	}
	return nil
}

// FindGroup finds the config of the named group, or nil
func (cfg *Config) FindGroup(name string) *GroupConfig {
	for i := range cfg.Groups {
		if cfg.Groups[i].Name == name {
			return &cfg.Groups[i]
		}
	}
	return nil
}

// VerifyConfig checks the group and fills defaults
func (cfg *GroupConfig) VerifyConfig() error {
	if len(cfg.Name) == 0 {
		return fmt.Errorf(".name is unspecified")
	}
	if cfg.Threshold < 0 {
		return fmt.Errorf(".threshold is negative")
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = defs.AnalyticsBatchSize
	}
	if cfg.Interval < 0 {
		return fmt.Errorf(".interval is negative")
	}
	if cfg.Interval == 0 {
		cfg.Interval = defs.AnalyticsFlushInterval
	}
	if cfg.MaxParallelBatches < 0 {
		return fmt.Errorf(".maxParallelBatches is negative")
	}
	if cfg.MaxParallelBatches == 0 {
		cfg.MaxParallelBatches = defs.MaxParallelBatches
	}
	return nil
}
