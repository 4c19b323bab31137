package run

import (
	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/defs"
)

// GroupStatus is the backlog of one group found in persistence
type GroupStatus struct {
	Name       string
	NumLogs    int
	Configured bool // whether the group is in config file
}

// LoadStatus opens the configured persistence and reports groups with persisted logs
func LoadStatus(configFile string, metricPrefix string) ([]GroupStatus, error) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, metricPrefix)
	if loaderErr != nil {
		return nil, loaderErr
	}
	store, storeErr := loader.Persistence.Value.NewPersistence(statusLogger(), loader.MetricFactory)
	if storeErr != nil {
		return nil, storeErr
	}
	defer store.Close()

	groups := store.ListGroups()
	result := make([]GroupStatus, 0, len(groups))
	for _, group := range groups {
		result = append(result, GroupStatus{
			Name:       group,
			NumLogs:    store.CountLogs(group),
			Configured: loader.FindGroup(group) != nil || (group == defs.AnalyticsGroup && loader.Config.Analytics.Enabled),
		})
	}
	return result, nil
}

func statusLogger() logger.Logger {
	return logger.WithField(defs.LabelPart, "status")
}
