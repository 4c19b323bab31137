package channel

import (
	"time"

	"github.com/google/uuid"
	"github.com/relex/logchannel/base"
)

// Enqueue persists a log into a group and triggers dispatching if the group's threshold is reached
//
// The call does nothing if the group is not registered or the channel is not enabled. Persistence errors are logged
// and never returned. The log must not be modified by the caller afterwards.
func (ch *Channel) Enqueue(log *base.Log, group string) {
	ch.mutex.Lock()
	gs, exists := ch.groups[group]
	switch {
	case !exists:
		ch.mutex.Unlock()
		ch.metrics.droppedLogsUnknownGroup.Inc()
		ch.logger.Warnf("discarded log for unregistered group '%s': %s", group, log)
		return
	case ch.state != Enabled || ch.closed:
		state := ch.state
		ch.mutex.Unlock()
		ch.metrics.droppedLogsDisabled.Inc()
		gs.logger.Debugf("discarded log in state=%s: %s", state, log)
		return
	}
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	channelListeners := ch.listeners
	groupListeners := gs.listeners
	persistence := ch.persistence
	gs.enqueuing++
	ch.mutex.Unlock()

	persisted := ch.persistLog(gs, persistence, channelListeners, groupListeners, log)

	ch.mutex.Lock()
	gs.enqueuing--
	if !persisted || ch.groups[group] != gs {
		ch.mutex.Unlock()
		return
	}
	// counted even if the group has been cleared in the meantime: an extra count is corrected by the next empty
	// retrieval, while a missing count would leave the log undispatched
	ch.adjustPendingLocked(gs, 1)
	ch.mutex.Unlock()

	ch.triggerIngestion(gs, flushOnThreshold)
}

// persistLog notifies listeners and writes the log into persistence. Returns true if the log is written
func (ch *Channel) persistLog(gs *groupState, persistence base.Persistence, channelListeners []base.ChannelListener,
	groupListeners []base.GroupListener, log *base.Log,
) bool {
	for _, listener := range channelListeners {
		listener.OnEnqueuingLog(log, gs.name)
	}

	suppressed := false
	for _, listener := range groupListeners {
		if !listener.OnBeforePersisted(log) {
			suppressed = true
		}
	}
	if suppressed {
		ch.metrics.suppressedLogsTotal.Inc()
		gs.logger.Debugf("persistence skipped by listener: %s", log)
		return false
	}

	if persistence == nil {
		ch.metrics.droppedLogsPersistError.Inc()
		gs.logger.Errorf("discarded log without persistence: %s", log)
		return false
	}
	if err := persistence.PutLog(gs.name, log); err != nil {
		ch.metrics.droppedLogsPersistError.Inc()
		gs.logger.Errorf("failed to persist log %s: %s", log, err.Error())
		return false
	}

	ch.metrics.enqueuedLogsTotal.Inc()
	return true
}
