package channel

import (
	"fmt"
	"reflect"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"golang.org/x/exp/slices"
)

// groupState contains the configuration and live counters of one group
//
// All fields except name and logger are protected by Channel.mutex
type groupState struct {
	name         string
	logger       logger.Logger
	threshold    int                       // numbers of dispatchable logs to trigger a batch, also the max batch size
	interval     time.Duration             // interval to flush logs below threshold
	maxParallel  int                       // max numbers of in-flight batches
	listeners    []base.GroupListener      // copy-on-write
	pending      int                       // numbers of persisted and undeleted logs, including logs in flight
	inFlightLogs int                       // numbers of logs in counted in-flight batches and reservations
	inFlight     map[string]*inFlightBatch // in-flight batches by batch ID
	reserving    int                       // numbers of batches being retrieved from persistence
	enqueuing    int                       // numbers of enqueue calls between persisting and counting
	clearSeq     uint64                    // incremented whenever counters are reset by clearing
	draining     bool                      // set by Synchronize to keep dispatching below threshold until backlog is exhausted
	timer        *time.Timer               // flush timer, nil if not scheduled
	timerSeq     uint64                    // sequence of the last scheduled timer, to ignore stale firing
}

type inFlightBatch struct {
	size    int
	counted bool // false if the group has been cleared after the batch was retrieved
	sent    bool // false if the batch is held by a listener and never passed to ingestion
}

func newGroupState(parentLogger logger.Logger, name string, threshold int, interval time.Duration, maxParallel int) *groupState {
	return &groupState{
		name:        name,
		logger:      parentLogger.WithField(defs.LabelGroup, name),
		threshold:   threshold,
		interval:    interval,
		maxParallel: maxParallel,
		listeners:   nil,
		inFlight:    make(map[string]*inFlightBatch, maxParallel),
	}
}

func verifyGroupArgs(name string, threshold int, interval time.Duration, maxParallel int) error {
	if name == "" {
		return fmt.Errorf("group name is empty")
	}
	if threshold < 1 {
		return fmt.Errorf("group '%s': threshold must be positive: %d", name, threshold)
	}
	if interval <= 0 {
		return fmt.Errorf("group '%s': interval must be positive: %s", name, interval)
	}
	if maxParallel < 1 {
		return fmt.Errorf("group '%s': maxParallelBatches must be positive: %d", name, maxParallel)
	}
	return nil
}

// dispatchable returns the numbers of persisted logs not yet in any batch
func (gs *groupState) dispatchable() int {
	return gs.pending - gs.inFlightLogs
}

// numSlotsUsed returns the numbers of batches counted towards maxParallel
func (gs *groupState) numSlotsUsed() int {
	return len(gs.inFlight) + gs.reserving
}

// verifyListener checks that a listener can be found again by identity, for deduplication and removal
func verifyListener(listener interface{}) error {
	if listener == nil {
		return nil
	}
	if !reflect.TypeOf(listener).Comparable() {
		return fmt.Errorf("listener of type %T is not comparable, use a pointer instead", listener)
	}
	return nil
}

// sameListener compares listeners by identity. Values of non-comparable types never match
func sameListener(x interface{}, y interface{}) bool {
	tx := reflect.TypeOf(x)
	if tx == nil || tx != reflect.TypeOf(y) || !tx.Comparable() {
		return false
	}
	return x == y
}

func (gs *groupState) hasListener(listener base.GroupListener) bool {
	return slices.IndexFunc(gs.listeners, func(l base.GroupListener) bool { return sameListener(l, listener) }) != -1
}

func (gs *groupState) addListener(listener base.GroupListener) bool {
	if listener == nil || gs.hasListener(listener) {
		return false
	}
	newListeners := make([]base.GroupListener, 0, len(gs.listeners)+1)
	newListeners = append(newListeners, gs.listeners...)
	gs.listeners = append(newListeners, listener)
	return true
}

func (gs *groupState) removeListener(listener base.GroupListener) bool {
	index := slices.IndexFunc(gs.listeners, func(l base.GroupListener) bool { return sameListener(l, listener) })
	if index == -1 {
		return false
	}
	gs.listeners = slices.Delete(slices.Clone(gs.listeners), index, index+1)
	return true
}

// detachableListeners lists listeners to be notified of channel disabling and enabling
func (gs *groupState) detachableListeners() []base.DetachableListener {
	var result []base.DetachableListener
	for _, l := range gs.listeners {
		if dl, ok := l.(base.DetachableListener); ok {
			result = append(result, dl)
		}
	}
	return result
}

// resetCounters forgets all pending logs and makes in-flight batches uncounted
//
// Held batches which are never sent are forgotten, while sent batches remain until completion to keep the parallel
// limit accurate. Returns the numbers of pending logs before reset.
func (gs *groupState) resetCounters() int {
	previous := gs.pending
	gs.pending = 0
	gs.inFlightLogs = 0
	gs.clearSeq++
	for id, batch := range gs.inFlight {
		if !batch.sent {
			delete(gs.inFlight, id)
			continue
		}
		batch.counted = false
	}
	gs.stopTimer()
	return previous
}

func (gs *groupState) stopTimer() {
	if gs.timer != nil {
		gs.timer.Stop()
		gs.timer = nil
	}
}
