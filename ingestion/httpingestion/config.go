package httpingestion

import (
	"fmt"
	"net/url"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/base/bconfig"
	"github.com/relex/logchannel/defs"
)

// Config defines the configuration for Client
type Config struct {
	bconfig.Header `yaml:",inline"`
	ServerURL      string        `yaml:"serverUrl"`      // base URL of ingestion, without path
	RequestTimeout time.Duration `yaml:"requestTimeout"` // optional, default to defs.IngestionRequestTimeout
	Compress       bool          `yaml:"compress"`       // gzip request bodies
}

// NewIngestion creates a Client
func (cfg *Config) NewIngestion(parentLogger logger.Logger, metricCreator promreg.MetricCreator) (base.IngestionClient, error) {
	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = defs.IngestionRequestTimeout
	}
	return NewClient(parentLogger, metricCreator, cfg.ServerURL, timeout, cfg.Compress), nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if len(cfg.ServerURL) == 0 {
		return fmt.Errorf(".serverUrl is unspecified")
	}
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return fmt.Errorf(".serverUrl is invalid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf(".serverUrl has unsupported scheme: '%s'", u.Scheme)
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf(".requestTimeout is negative: %s", cfg.RequestTimeout)
	}
	return nil
}
