package channel

import (
	"fmt"
	"time"

	"github.com/relex/logchannel/base"
	"golang.org/x/exp/slices"
)

// AddGroup registers a group or replaces the configuration of an existing one
//
// The listener, if not nil, is attached to the group unless it's already attached. Listeners are identified by ==, so
// their types must be comparable. The pending counter of a new group is initialized from logs already in Persistence,
// e.g. left from previous runs.
func (ch *Channel) AddGroup(name string, threshold int, interval time.Duration, maxParallel int, listener base.GroupListener) error {
	if err := verifyGroupArgs(name, threshold, interval, maxParallel); err != nil {
		return err
	}
	if err := verifyListener(listener); err != nil {
		return fmt.Errorf("group '%s': %w", name, err)
	}

	// counted outside of the lock and used only if the group is still new when registering
	numStored := 0
	if persistence := ch.currentPersistence(); persistence != nil {
		numStored = persistence.CountLogs(name)
	}

	gs, existed, attaching := ch.registerGroup(name, threshold, interval, maxParallel, listener, numStored)
	if existed {
		gs.logger.Infof("replaced group config threshold=%d interval=%s maxParallel=%d", threshold, interval, maxParallel)
	} else {
		gs.logger.Infof("added group threshold=%d interval=%s maxParallel=%d stored=%d", threshold, interval, maxParallel, numStored)
	}
	if attaching {
		if dl, ok := listener.(base.DetachableListener); ok {
			dl.OnAttached()
		}
	}
	ch.triggerIngestion(gs, flushOnThreshold)
	return nil
}

func (ch *Channel) currentPersistence() base.Persistence {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	return ch.persistence
}

// registerGroup creates or updates a group in one critical section. Returns the group, whether it existed before and
// whether the listener has been newly attached while not disabled by user
func (ch *Channel) registerGroup(name string, threshold int, interval time.Duration, maxParallel int,
	listener base.GroupListener, numStored int,
) (*groupState, bool, bool) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()

	gs, existed := ch.groups[name]
	if existed {
		gs.threshold = threshold
		gs.maxParallel = maxParallel
		if gs.interval != interval {
			gs.interval = interval
			if gs.timer != nil {
				gs.stopTimer()
				ch.scheduleFlushLocked(gs)
			}
		}
	} else {
		gs = newGroupState(ch.logger, name, threshold, interval, maxParallel)
		ch.groups[name] = gs
		ch.adjustPendingLocked(gs, numStored)
	}
	attaching := gs.addListener(listener) && ch.state != DisabledByUser
	return gs, existed, attaching
}

// RemoveGroup unregisters a group. Persisted logs are kept and in-flight batches complete silently
func (ch *Channel) RemoveGroup(name string) {
	ch.mutex.Lock()
	gs, exists := ch.groups[name]
	if !exists {
		ch.mutex.Unlock()
		return
	}
	delete(ch.groups, name)
	gs.stopTimer()
	ch.metrics.pendingLogs.Sub(int64(gs.pending))
	var detaching []base.DetachableListener
	if ch.state != DisabledByUser {
		detaching = gs.detachableListeners()
	}
	numInFlight := len(gs.inFlight)
	ch.mutex.Unlock()

	gs.logger.Infof("removed group inFlight=%d", numInFlight)
	for _, listener := range detaching {
		listener.OnDetached()
	}
}

// RemoveGroupListener detaches a listener from a group. Returns false if it's not attached
func (ch *Channel) RemoveGroupListener(name string, listener base.GroupListener) bool {
	ch.mutex.Lock()
	gs, exists := ch.groups[name]
	if !exists || !gs.removeListener(listener) {
		ch.mutex.Unlock()
		return false
	}
	detaching := ch.state != DisabledByUser
	ch.mutex.Unlock()

	if detaching {
		if dl, ok := listener.(base.DetachableListener); ok {
			dl.OnDetached()
		}
	}
	return true
}

// Clear deletes all persisted logs of a group and resets its counters
//
// In-flight batches are not cancelled and their completion no longer affects the counters
func (ch *Channel) Clear(name string) {
	ch.mutex.Lock()
	if gs, exists := ch.groups[name]; exists {
		ch.resetGroupLocked(gs)
	}
	persistence := ch.persistence
	ch.mutex.Unlock()

	if persistence != nil {
		persistence.Clear(name)
	}
	ch.logger.Infof("cleared group '%s'", name)
}

// AddListener registers a listener of all enqueued logs. Adding the same listener twice does nothing
//
// Listeners of non-comparable types are rejected with an error log
func (ch *Channel) AddListener(listener base.ChannelListener) {
	if listener == nil {
		return
	}
	if err := verifyListener(listener); err != nil {
		ch.logger.Errorf("rejected channel listener: %s", err.Error())
		return
	}
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	if slices.IndexFunc(ch.listeners, func(l base.ChannelListener) bool { return sameListener(l, listener) }) != -1 {
		return
	}
	newListeners := make([]base.ChannelListener, 0, len(ch.listeners)+1)
	newListeners = append(newListeners, ch.listeners...)
	ch.listeners = append(newListeners, listener)
}

// RemoveListener unregisters a listener added by AddListener
func (ch *Channel) RemoveListener(listener base.ChannelListener) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	index := slices.IndexFunc(ch.listeners, func(l base.ChannelListener) bool { return sameListener(l, listener) })
	if index == -1 {
		return
	}
	ch.listeners = slices.Delete(slices.Clone(ch.listeners), index, index+1)
}
