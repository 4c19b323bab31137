// Package channel implements the durable delivery channel of telemetry logs
//
// A Channel owns a set of named groups. Logs enqueued to a group are written into Persistence, retrieved in batches
// when the group's threshold is reached or its flush timer fires, and passed to Ingestion. Completed batches are
// deleted from Persistence on success or fatal rejection, while a recoverable failure disables the whole channel and
// keeps the backlog for Synchronize after re-enabling.
package channel

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrUnknownGroup is returned by introspection methods for groups never registered or already removed
var ErrUnknownGroup = errors.New("unknown group")

// Args contains the identity and collaborators of a Channel
type Args struct {
	AppSecret     string
	InstallID     uuid.UUID
	Persistence   base.Persistence
	Ingestion     base.Ingestion
	IsRecoverable base.ErrorClassifier // nil to treat all unclassified failures as fatal
}

// Channel dispatches logs of registered groups from Persistence to Ingestion
//
// All public methods are safe for concurrent use and never block on network IO
type Channel struct {
	logger        logger.Logger
	appSecret     string
	installID     uuid.UUID
	isRecoverable base.ErrorClassifier
	metrics       channelMetrics
	sendCounter   *sync.WaitGroup // counts reserved and in-flight batches, for Shutdown

	mutex       sync.Mutex
	state       State
	closed      bool
	groups      map[string]*groupState
	listeners   []base.ChannelListener // copy-on-write
	persistence base.Persistence
	ingestion   base.Ingestion
}

// New creates a Channel in Enabled state with no group
func New(parentLogger logger.Logger, metricCreator promreg.MetricCreator, args Args) *Channel {
	return &Channel{
		logger:        parentLogger.WithField(defs.LabelComponent, "Channel"),
		appSecret:     args.AppSecret,
		installID:     args.InstallID,
		isRecoverable: args.IsRecoverable,
		metrics:       newChannelMetrics(metricCreator),
		sendCounter:   &sync.WaitGroup{},
		mutex:         sync.Mutex{},
		state:         Enabled,
		closed:        false,
		groups:        make(map[string]*groupState),
		listeners:     nil,
		persistence:   args.Persistence,
		ingestion:     args.Ingestion,
	}
}

// SetPersistence replaces the Persistence for subsequent operations
//
// Counters of existing groups are kept as-is and corrected by the next empty retrieval if they no longer match.
func (ch *Channel) SetPersistence(persistence base.Persistence) {
	ch.mutex.Lock()
	ch.persistence = persistence
	ch.mutex.Unlock()
	ch.logger.Infof("persistence replaced: %T", persistence)
}

// SetIngestion replaces the Ingestion for subsequent batches. In-flight batches complete on the previous one
func (ch *Channel) SetIngestion(ingestion base.Ingestion) {
	ch.mutex.Lock()
	ch.ingestion = ingestion
	ch.mutex.Unlock()
	ch.logger.Infof("ingestion replaced: %T", ingestion)
}

// State returns the current global state
func (ch *Channel) State() State {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	return ch.state
}

// IsEnabled returns true if the channel accepts new logs
func (ch *Channel) IsEnabled() bool {
	return ch.State() == Enabled
}

// PendingCount returns the numbers of persisted and undeleted logs of group, including those in flight
func (ch *Channel) PendingCount(group string) (int, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	gs, ok := ch.groups[group]
	if !ok {
		return 0, ErrUnknownGroup
	}
	return gs.pending, nil
}

// InFlightCount returns the numbers of batches of group retrieved and not yet completed, including held batches
func (ch *Channel) InFlightCount(group string) (int, error) {
	ch.mutex.Lock()
	defer ch.mutex.Unlock()
	gs, ok := ch.groups[group]
	if !ok {
		return 0, ErrUnknownGroup
	}
	return len(gs.inFlight), nil
}

// GroupNames returns the names of registered groups in alphabetical order
func (ch *Channel) GroupNames() []string {
	ch.mutex.Lock()
	names := maps.Keys(ch.groups)
	ch.mutex.Unlock()
	slices.Sort(names)
	return names
}

// SetEnabled enables or disables the channel by user
//
// Disabling clears the backlog of all groups and detaches listeners. Enabling re-attaches listeners if they were
// detached and synchronizes all groups. Calling with the current value does nothing.
func (ch *Channel) SetEnabled(enabled bool) {
	if enabled {
		ch.enable()
	} else {
		ch.disable()
	}
}

func (ch *Channel) enable() {
	ch.mutex.Lock()
	if ch.closed || ch.state == Enabled {
		ch.mutex.Unlock()
		return
	}
	previousState := ch.state
	ch.state = Enabled
	var attaching []base.DetachableListener
	if previousState == DisabledByUser {
		for _, gs := range ch.groups {
			attaching = append(attaching, gs.detachableListeners()...)
		}
	}
	groups := ch.sortedGroupsLocked()
	ch.mutex.Unlock()

	ch.logger.Infof("enabled from state=%s", previousState)
	for _, listener := range attaching {
		listener.OnAttached()
	}
	ch.synchronizeGroups(groups)
}

func (ch *Channel) disable() {
	ch.mutex.Lock()
	if ch.state == DisabledByUser {
		ch.mutex.Unlock()
		return
	}
	previousState := ch.state
	ch.state = DisabledByUser
	var detaching []base.DetachableListener
	groups := ch.sortedGroupsLocked()
	for _, gs := range groups {
		ch.resetGroupLocked(gs)
		detaching = append(detaching, gs.detachableListeners()...)
	}
	persistence := ch.persistence
	ch.mutex.Unlock()

	ch.logger.Infof("disabled from state=%s, clearing %d groups", previousState, len(groups))
	if persistence != nil {
		for _, gs := range groups {
			persistence.Clear(gs.name)
		}
	}
	for _, listener := range detaching {
		listener.OnDetached()
	}
}

// Synchronize dispatches the backlog of all groups until exhausted or blocked by the parallel limit of each group
//
// Further batches are dispatched on completion of previous ones until the backlog is exhausted
func (ch *Channel) Synchronize() {
	ch.mutex.Lock()
	groups := ch.sortedGroupsLocked()
	ch.mutex.Unlock()
	ch.synchronizeGroups(groups)
}

func (ch *Channel) synchronizeGroups(groups []*groupState) {
	for _, gs := range groups {
		ch.mutex.Lock()
		if ch.state == Enabled {
			gs.draining = true
		}
		ch.mutex.Unlock()
		ch.triggerIngestion(gs, flushAll)
	}
}

// Shutdown stops all timers, refuses new logs and dispatching, and waits for in-flight batches to complete
//
// Returns false if in-flight batches are not completed within timeout. The channel cannot be reused afterwards.
func (ch *Channel) Shutdown(timeout time.Duration) bool {
	ch.mutex.Lock()
	if ch.closed {
		ch.mutex.Unlock()
		return true
	}
	ch.closed = true
	for _, gs := range ch.groups {
		gs.stopTimer()
	}
	ch.mutex.Unlock()

	ch.logger.Infof("shutting down")
	if !channels.NewWaitGroupAwaitable(ch.sendCounter).Wait(timeout) {
		ch.logger.Warnf("timeout waiting for in-flight batches after %s", timeout)
		return false
	}
	ch.logger.Infof("shut down")
	return true
}

func (ch *Channel) sortedGroupsLocked() []*groupState {
	groups := maps.Values(ch.groups)
	slices.SortFunc(groups, func(a, b *groupState) bool { return a.name < b.name })
	return groups
}

// resetGroupLocked forgets all pending logs of the group, to be followed by Persistence.Clear
func (ch *Channel) resetGroupLocked(gs *groupState) {
	previous := gs.resetCounters()
	gs.draining = false
	ch.metrics.pendingLogs.Sub(int64(previous))
}

func (ch *Channel) adjustPendingLocked(gs *groupState, delta int) {
	gs.pending += delta
	ch.metrics.pendingLogs.Add(int64(delta))
}
