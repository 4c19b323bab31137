package httpingestion

import (
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
)

type clientMetrics struct {
	outstandingRequests promext.RWGauge
	requestsTotal       promext.RWCounter
	requestBytesTotal   promext.RWCounter
	sentLogsTotal       promext.RWCounter
	succeededTotal      promext.RWCounter
	recoverableTotal    promext.RWCounter
	fatalTotal          promext.RWCounter
}

func newClientMetrics(metricCreator promreg.MetricCreator) clientMetrics {
	ingestionMetricCreator := metricCreator.AddOrGetPrefix("ingestion_", []string{"ingestion"}, []string{"http"})
	results := ingestionMetricCreator.AddOrGetCounterVec("results_total", "Numbers of completed requests by result", []string{"result"}, nil)

	metrics := clientMetrics{
		outstandingRequests: ingestionMetricCreator.AddOrGetGauge("outstanding_requests", "Numbers of requests in progress", nil, nil),
		requestsTotal:       ingestionMetricCreator.AddOrGetCounter("requests_total", "Numbers of requests started", nil, nil),
		requestBytesTotal:   ingestionMetricCreator.AddOrGetCounter("request_bytes_total", "Total length in bytes of request bodies", nil, nil),
		sentLogsTotal:       ingestionMetricCreator.AddOrGetCounter("sent_logs_total", "Numbers of logs in successful requests", nil, nil),
		succeededTotal:      results.WithLabelValues("success"),
		recoverableTotal:    results.WithLabelValues("recoverable"),
		fatalTotal:          results.WithLabelValues("fatal"),
	}
	metrics.outstandingRequests.Set(0)
	return metrics
}

func (metrics *clientMetrics) OnRequesting(bodyLength int) {
	metrics.requestsTotal.Inc()
	metrics.requestBytesTotal.Add(uint64(bodyLength))
}

func (metrics *clientMetrics) OnCompleted(result base.SendResult, numLogs int) {
	switch {
	case result.Outcome == base.SendSucceeded:
		metrics.succeededTotal.Inc()
		metrics.sentLogsTotal.Add(uint64(numLogs))
	case IsRecoverableError(result.Err):
		metrics.recoverableTotal.Inc()
	default:
		metrics.fatalTotal.Inc()
	}
}
