// Package ingestion registers the list of all Ingestion implementations
package ingestion

import (
	"github.com/relex/logchannel/base/bconfig"
	"github.com/relex/logchannel/ingestion/httpingestion"
)

func init() {
	bconfig.RegisterConfigConstructors(bconfig.IngestionConfigCreatorTable{
		"http": func() bconfig.IngestionConfig { return &httpingestion.Config{} },
	})
}

// Register registers all ingestion config types
func Register() {
	// trigger init()
}
