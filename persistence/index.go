// Package persistence registers the list of all Persistence implementations
package persistence

import (
	"github.com/relex/logchannel/base/bconfig"
	"github.com/relex/logchannel/persistence/filestore"
	"github.com/relex/logchannel/persistence/memstore"
)

func init() {
	bconfig.RegisterConfigConstructors(bconfig.PersistenceConfigCreatorTable{
		"file":   func() bconfig.PersistenceConfig { return &filestore.Config{} },
		"memory": func() bconfig.PersistenceConfig { return &memstore.Config{} },
	})
}

// Register registers all persistence config types
func Register() {
	// trigger init()
}
