package channel

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
)

// channelMetrics defines metrics of one channel, shared by all groups
type channelMetrics struct {
	enqueuedLogsTotal       promext.RWCounter
	droppedLogsDisabled     promext.RWCounter
	droppedLogsUnknownGroup promext.RWCounter
	droppedLogsPersistError promext.RWCounter
	suppressedLogsTotal     promext.RWCounter
	pendingLogs             promext.RWGauge // Current numbers of persisted logs not yet deleted, including logs in flight
	inFlightBatches         promext.RWGauge // Current numbers of batches being sent
	dispatchedBatchesTotal  promext.RWCounter
	dispatchedLogsTotal     promext.RWCounter
	succeededBatchesTotal   promext.RWCounter
	recoverableBatchesTotal promext.RWCounter
	fatalBatchesTotal       promext.RWCounter
	droppedLogsFatal        promext.RWCounter
	disabledByFailureTotal  promext.RWCounter
}

func newChannelMetrics(metricCreator promreg.MetricCreator) channelMetrics {
	channelMetricCreator := metricCreator.AddOrGetPrefix("channel_", nil, nil)
	droppedLogs := channelMetricCreator.AddOrGetCounterVec("dropped_logs_total", "Numbers of logs dropped", []string{"reason"}, nil)
	completedBatches := channelMetricCreator.AddOrGetCounterVec("completed_batches_total", "Numbers of completed batches", []string{"result"}, nil)

	metrics := channelMetrics{
		enqueuedLogsTotal:       channelMetricCreator.AddOrGetCounter("enqueued_logs_total", "Numbers of logs accepted by enqueue", nil, nil),
		droppedLogsDisabled:     droppedLogs.WithLabelValues("disabled"),
		droppedLogsUnknownGroup: droppedLogs.WithLabelValues("unknownGroup"),
		droppedLogsPersistError: droppedLogs.WithLabelValues("persistError"),
		suppressedLogsTotal:     channelMetricCreator.AddOrGetCounter("suppressed_logs_total", "Numbers of logs not persisted as requested by listeners", nil, nil),
		pendingLogs:             channelMetricCreator.AddOrGetGauge("pending_logs", "Numbers of persisted logs not yet delivered", nil, nil),
		inFlightBatches:         channelMetricCreator.AddOrGetGauge("inflight_batches", "Numbers of batches being sent", nil, nil),
		dispatchedBatchesTotal:  channelMetricCreator.AddOrGetCounter("dispatched_batches_total", "Numbers of batches passed to ingestion", nil, nil),
		dispatchedLogsTotal:     channelMetricCreator.AddOrGetCounter("dispatched_logs_total", "Numbers of logs passed to ingestion", nil, nil),
		succeededBatchesTotal:   completedBatches.WithLabelValues("success"),
		recoverableBatchesTotal: completedBatches.WithLabelValues("recoverable"),
		fatalBatchesTotal:       completedBatches.WithLabelValues("fatal"),
		droppedLogsFatal:        droppedLogs.WithLabelValues("rejected"),
		disabledByFailureTotal:  channelMetricCreator.AddOrGetCounter("disabled_by_failure_total", "Numbers of times the channel is disabled by recoverable failures", nil, nil),
	}
	// reset gauges in case metricCreator is reused, e.g. channel recreated after reconfiguration
	metrics.pendingLogs.Set(0)
	metrics.inFlightBatches.Set(0)

	return metrics
}

func (metrics *channelMetrics) OnDispatched(numLogs int) {
	metrics.dispatchedBatchesTotal.Inc()
	metrics.dispatchedLogsTotal.Add(uint64(numLogs))
	metrics.inFlightBatches.Inc()
}

func (metrics *channelMetrics) OnCompleted(outcome base.SendOutcome, numLogs int) {
	metrics.inFlightBatches.Dec()
	switch outcome {
	case base.SendSucceeded:
		metrics.succeededBatchesTotal.Inc()
	case base.SendFailedRecoverable:
		metrics.recoverableBatchesTotal.Inc()
	default:
		metrics.fatalBatchesTotal.Inc()
		metrics.droppedLogsFatal.Add(uint64(numLogs))
	}
}
