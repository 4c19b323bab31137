package analytics

import (
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
)

// groupListener forwards the send lifecycle of tracked logs to the user-facing Listener
type groupListener struct {
	analytics *Analytics
}

func (l groupListener) OnBeforePersisted(*base.Log) bool {
	return true
}

func (l groupListener) OnBeforeSending(batch base.Batch) bool {
	if listener := l.analytics.currentListener(); listener != nil {
		for _, log := range trackedLogs(batch) {
			listener.OnBeforeSending(log)
		}
	}
	return true
}

func (l groupListener) OnSuccess(batch base.Batch) {
	if listener := l.analytics.currentListener(); listener != nil {
		for _, log := range trackedLogs(batch) {
			listener.OnSendingSucceeded(log)
		}
	}
}

func (l groupListener) OnFailure(batch base.Batch, err error) {
	if listener := l.analytics.currentListener(); listener != nil {
		for _, log := range trackedLogs(batch) {
			listener.OnSendingFailed(log, err)
		}
	}
}

func trackedLogs(batch base.Batch) []*base.Log {
	logs := make([]*base.Log, 0, len(batch.Logs))
	for _, log := range batch.Logs {
		if log.Type == defs.LogTypeEvent || log.Type == defs.LogTypePage {
			logs = append(logs, log)
		}
	}
	return logs
}
