package defs

import (
	"time"
)

var (
	// AnalyticsBatchSize is the default threshold of pending logs in the analytics group to trigger a batch
	AnalyticsBatchSize = 50

	// AnalyticsFlushInterval is the default interval to flush the analytics group below threshold
	AnalyticsFlushInterval = 3 * time.Second

	// ErrorBatchSize is the default threshold of the error group, where every log is sent as soon as possible
	ErrorBatchSize = 1

	// ErrorFlushInterval is the default interval to flush the error group below threshold
	ErrorFlushInterval = 1 * time.Second

	// MaxParallelBatches is the default maximum numbers of in-flight batches per group
	MaxParallelBatches = 3

	// ChannelShutdownTimeout is how long to wait for in-flight batches to complete at shutdown
	//
	// Batches not completed in time stay in persistence and are sent again at next start
	ChannelShutdownTimeout = IngestionRequestTimeout + 5*time.Second
)

var (
	// IngestionRequestTimeout is the timeout of one HTTP request to the ingestion endpoint, including reading response
	IngestionRequestTimeout = 60 * time.Second

	// IngestionMaxResponseBytes is the max length of response body to read and keep for error reporting
	IngestionMaxResponseBytes = 64 * 1024

	// IngestionCloseTimeout is how long to wait for outstanding requests when closing ingestion
	IngestionCloseTimeout = IngestionRequestTimeout + 5*time.Second
)

var (
	// StorageMaxLogBytes is the max encoded size of one persisted log
	//
	// Larger logs are rejected by persistence and dropped by the channel
	StorageMaxLogBytes = 1 * 1024 * 1024

	// StorageCompressMinBytes is the minimum encoded size of a log to attempt compression
	StorageCompressMinBytes = 256
)

var (
	// AnalyticsMaxNameLength is the max length of event and page names
	AnalyticsMaxNameLength = 256

	// AnalyticsMaxProperties is the max numbers of properties attached to one event or page
	AnalyticsMaxProperties = 5

	// AnalyticsMaxPropertyLength is the max length of each property key or value, longer ones are truncated
	AnalyticsMaxPropertyLength = 64
)

// EnableTestMode turns on test mode with very short timeout and minimal delays
func EnableTestMode() {
	AnalyticsFlushInterval = 100 * time.Millisecond
	ErrorFlushInterval = 100 * time.Millisecond
	IngestionRequestTimeout = 2 * time.Second
	IngestionCloseTimeout = 3 * time.Second
	ChannelShutdownTimeout = 3 * time.Second
}
