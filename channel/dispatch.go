package channel

import (
	"sync/atomic"
	"time"

	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/util"
)

// reservation is a slot of in-flight batch taken before retrieving logs from persistence
type reservation struct {
	size        int
	clearSeq    uint64
	persistence base.Persistence
	ingestion   base.Ingestion
}

// triggerIngestion dispatches batches of the group as allowed by mode, then schedules the flush timer if backlog remains
//
// Must be called without lock
func (ch *Channel) triggerIngestion(gs *groupState, mode flushMode) {
	forced := mode != flushOnThreshold
	for {
		ch.mutex.Lock()
		if gs.draining {
			forced = true
		}
		rsv, ok := ch.reserveBatchLocked(gs, forced)
		if !ok {
			ch.scheduleFlushLocked(gs)
			ch.mutex.Unlock()
			return
		}
		ch.mutex.Unlock()

		if !ch.dispatchBatch(gs, rsv) {
			ch.mutex.Lock()
			ch.scheduleFlushLocked(gs)
			ch.mutex.Unlock()
			return
		}
		forced = mode == flushAll
	}
}

// reserveBatchLocked decides whether a batch can be dispatched and takes a slot for it
func (ch *Channel) reserveBatchLocked(gs *groupState, forced bool) (reservation, bool) {
	if ch.state != Enabled || ch.closed || ch.groups[gs.name] != gs {
		return reservation{}, false
	}
	if ch.persistence == nil || ch.ingestion == nil {
		return reservation{}, false
	}
	dispatchable := gs.dispatchable()
	if dispatchable <= 0 {
		gs.draining = false
		return reservation{}, false
	}
	if !forced && dispatchable < gs.threshold {
		return reservation{}, false
	}
	if gs.numSlotsUsed() >= gs.maxParallel {
		return reservation{}, false
	}

	size := dispatchable
	if size > gs.threshold {
		size = gs.threshold
	}
	gs.stopTimer()
	gs.reserving++
	gs.inFlightLogs += size
	ch.sendCounter.Add(1)
	return reservation{
		size:        size,
		clearSeq:    gs.clearSeq,
		persistence: ch.persistence,
		ingestion:   ch.ingestion,
	}, true
}

// dispatchBatch retrieves logs for the reservation and passes them to ingestion
//
// Returns true if the reserved slot is consumed by a batch, sent or held, so that further dispatching may continue
func (ch *Channel) dispatchBatch(gs *groupState, rsv reservation) bool {
	batchID, logs := rsv.persistence.GetLogs(gs.name, rsv.size)

	ch.mutex.Lock()
	gs.reserving--
	stale := ch.groups[gs.name] != gs || gs.clearSeq != rsv.clearSeq
	if !stale {
		gs.inFlightLogs -= rsv.size
	}
	if batchID == "" || len(logs) == 0 {
		if !stale && gs.reserving == 0 && gs.enqueuing == 0 && gs.dispatchable() > 0 {
			gs.logger.Warnf("no logs retrieved, correcting pending count from %d to %d", gs.pending, gs.inFlightLogs)
			ch.adjustPendingLocked(gs, gs.inFlightLogs-gs.pending)
		}
		ch.mutex.Unlock()
		if batchID != "" {
			rsv.persistence.ReleaseBatch(gs.name, batchID)
		}
		ch.sendCounter.Done()
		return false
	}
	if stale {
		ch.mutex.Unlock()
		gs.logger.Infof("releasing batch retrieved before the group was cleared or removed: id=%s len=%d", batchID, len(logs))
		rsv.persistence.ReleaseBatch(gs.name, batchID)
		ch.sendCounter.Done()
		return false
	}
	entry := &inFlightBatch{size: len(logs), counted: true, sent: true}
	gs.inFlight[batchID] = entry
	gs.inFlightLogs += entry.size
	listeners := gs.listeners
	ch.mutex.Unlock()

	batch := base.Batch{Group: gs.name, ID: batchID, Logs: logs}
	for _, listener := range listeners {
		if !listener.OnBeforeSending(batch) {
			ch.holdBatch(gs, batch, entry)
			return true
		}
	}

	ch.metrics.OnDispatched(len(logs))
	gs.logger.Debugf("sending batch %s", batch)

	var completed int32
	rsv.ingestion.SendAsync(ch.appSecret, ch.installID, batch.Container(), func(result base.SendResult) {
		if !atomic.CompareAndSwapInt32(&completed, 0, 1) {
			gs.logger.Errorf("BUG: duplicate completion of batch %s: %s", batch, util.Stack())
			return
		}
		ch.onBatchCompleted(gs, rsv, batch, entry, result)
	})
	return true
}

// holdBatch keeps a batch vetoed by listener in flight without sending it, until the group is cleared or removed
func (ch *Channel) holdBatch(gs *groupState, batch base.Batch, entry *inFlightBatch) {
	ch.mutex.Lock()
	entry.sent = false
	if !entry.counted && gs.inFlight[batch.ID] == entry {
		// cleared during veto
		delete(gs.inFlight, batch.ID)
	}
	ch.mutex.Unlock()

	gs.logger.Infof("batch held by listener: %s", batch)
	ch.sendCounter.Done()
}

// onBatchCompleted applies the result of a sent batch to persistence and counters, and notifies listeners
//
// Called exactly once per sent batch, on any goroutine
func (ch *Channel) onBatchCompleted(gs *groupState, rsv reservation, batch base.Batch, entry *inFlightBatch, result base.SendResult) {
	defer ch.sendCounter.Done()

	result = result.Classify(ch.isRecoverable)
	ch.metrics.OnCompleted(result.Outcome, len(batch.Logs))

	if result.Outcome == base.SendFailedRecoverable {
		rsv.persistence.ReleaseBatch(gs.name, batch.ID)
	} else {
		rsv.persistence.DeleteLogs(gs.name, batch.ID)
	}

	ch.mutex.Lock()
	if ch.groups[gs.name] != gs || gs.inFlight[batch.ID] != entry {
		ch.mutex.Unlock()
		gs.logger.Debugf("ignored completion of batch from removed group: %s result=%s", batch, result.Outcome)
		return
	}
	delete(gs.inFlight, batch.ID)
	if entry.counted {
		gs.inFlightLogs -= entry.size
		if result.Outcome != base.SendFailedRecoverable {
			ch.adjustPendingLocked(gs, -entry.size)
		}
	}
	disabledNow := false
	if result.Outcome == base.SendFailedRecoverable && ch.state == Enabled {
		ch.state = DisabledByFailure
		for _, g := range ch.groups {
			g.stopTimer()
			g.draining = false
		}
		disabledNow = true
	}
	listeners := gs.listeners
	ch.mutex.Unlock()

	switch result.Outcome {
	case base.SendSucceeded:
		gs.logger.Debugf("sent batch %s", batch)
		for _, listener := range listeners {
			listener.OnSuccess(batch)
		}
	case base.SendFailedRecoverable:
		gs.logger.Warnf("failed to send batch %s, to retry later: %s", batch, result.Err)
		if disabledNow {
			ch.metrics.disabledByFailureTotal.Inc()
			ch.logger.Warnf("disabled by recoverable failure from group '%s'", gs.name)
		}
		for _, listener := range listeners {
			listener.OnFailure(batch, result.Err)
		}
	default:
		gs.logger.Errorf("batch rejected and dropped %s: %s", batch, result.Err)
		for _, listener := range listeners {
			listener.OnFailure(batch, result.Err)
		}
	}

	if result.Outcome != base.SendFailedRecoverable {
		ch.triggerIngestion(gs, flushOnThreshold)
	}
}

// scheduleFlushLocked starts the flush timer if the group has dispatchable logs and no timer running
func (ch *Channel) scheduleFlushLocked(gs *groupState) {
	if gs.timer != nil || ch.state != Enabled || ch.closed || ch.groups[gs.name] != gs {
		return
	}
	if gs.dispatchable() <= 0 {
		return
	}
	gs.timerSeq++
	seq := gs.timerSeq
	gs.timer = time.AfterFunc(gs.interval, func() { ch.onFlushTimer(gs, seq) })
}

func (ch *Channel) onFlushTimer(gs *groupState, seq uint64) {
	ch.mutex.Lock()
	if gs.timerSeq != seq || gs.timer == nil {
		ch.mutex.Unlock()
		return
	}
	gs.timer = nil
	ch.mutex.Unlock()

	ch.triggerIngestion(gs, flushOnTimer)
}
