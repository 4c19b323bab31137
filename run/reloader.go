package run

import (
	"fmt"
	"sync"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/defs"
)

// Reloader overrides Loader to support reloading of group settings
//
// Only .groups are applied at reload. Other sections require restart and their changes are ignored with warnings
type Reloader struct {
	*Loader

	loadingLock sync.Mutex
}

// NewReloaderFromConfigFile creates a Reloader. It fails if config file is invalid at startup, but not when reloading
func NewReloaderFromConfigFile(filepath string, metricPrefix string) (*Reloader, error) {
	loader, loaderErr := NewLoaderFromConfigFile(filepath, metricPrefix)
	if loaderErr != nil {
		return nil, loaderErr
	}
	return &Reloader{
		Loader: loader,
	}, nil
}

// Reload reloads config file and applies group changes to the launched channel
func (reloader *Reloader) Reload(launched *Launched) error {
	reloader.loadingLock.Lock()
	defer reloader.loadingLock.Unlock()

	rlogger := logger.WithField(defs.LabelComponent, "Reloader")
	newConfig, newErr := LoadConfigFile(reloader.filepath)
	if newErr != nil {
		reloadFailureCounter.Inc()
		rlogger.Error("failed to reload: ", newErr)
		return newErr
	}
	if newConfig.AppSecret != reloader.AppSecret || newConfig.InstallID != reloader.Config.InstallID {
		rlogger.Warn("changes of appSecret or installId require restart")
	}
	if newConfig.Analytics != reloader.Config.Analytics {
		rlogger.Warn("changes of analytics require restart")
	}

	reloader.Config.Groups = newConfig.Groups
	if err := reloader.ApplyGroups(launched); err != nil {
		reloadFailureCounter.Inc()
		rlogger.Error("failed to apply groups: ", err)
		return fmt.Errorf("failed to apply groups: %w", err)
	}
	reloadSuccessCounter.Inc()
	rlogger.Infof("reloaded groups: %d", len(newConfig.Groups))
	return nil
}
