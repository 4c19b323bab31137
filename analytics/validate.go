package analytics

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/util"
	"github.com/samber/lo"
	"golang.org/x/exp/slices"
)

func newTrackedLog(parentLogger logger.Logger, logType string, name string, properties map[string]string) (*base.Log, error) {
	if name == "" {
		return nil, fmt.Errorf("name is empty")
	}
	if len([]rune(name)) > defs.AnalyticsMaxNameLength {
		return nil, fmt.Errorf("name is longer than %d characters: '%s...'", defs.AnalyticsMaxNameLength,
			util.TruncateUTF8(name, 32))
	}
	return &base.Log{
		Type:       logType,
		ID:         uuid.NewString(),
		Name:       name,
		Properties: validateProperties(parentLogger, logType+" '"+name+"'", properties),
	}, nil
}

// validateProperties copies properties with the numbers of entries and the length of keys and values limited
//
// Entries are picked in the order of keys. Entries with empty key are skipped
func validateProperties(parentLogger logger.Logger, subject string, properties map[string]string) map[string]string {
	if len(properties) == 0 {
		return nil
	}
	keys := lo.Keys(properties)
	slices.Sort(keys)

	result := make(map[string]string, util.MinInt(len(properties), defs.AnalyticsMaxProperties))
	for _, key := range keys {
		if len(result) >= defs.AnalyticsMaxProperties {
			parentLogger.Warnf("%s: properties over %d are dropped", subject, defs.AnalyticsMaxProperties)
			break
		}
		if key == "" {
			parentLogger.Warnf("%s: property with empty key is dropped", subject)
			continue
		}
		value := properties[key]
		truncatedKey := util.TruncateUTF8(key, defs.AnalyticsMaxPropertyLength)
		if truncatedKey != key {
			parentLogger.Warnf("%s: property key '%s' is truncated", subject, truncatedKey)
		}
		if _, exists := result[truncatedKey]; exists {
			parentLogger.Warnf("%s: property key '%s' is duplicated after truncation", subject, truncatedKey)
			continue
		}
		truncatedValue := util.TruncateUTF8(value, defs.AnalyticsMaxPropertyLength)
		if truncatedValue != value {
			parentLogger.Warnf("%s: value of property '%s' is truncated", subject, truncatedKey)
		}
		result[truncatedKey] = truncatedValue
	}
	return result
}
