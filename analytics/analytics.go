// Package analytics tracks user events and pages through the channel group dedicated to analytics
package analytics

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/prefs"
)

const prefEnabledKey = "enabled_" + defs.AnalyticsGroup

// Channel is the part of channel.Channel used by Analytics
type Channel interface {
	AddGroup(name string, threshold int, interval time.Duration, maxParallel int, listener base.GroupListener) error
	RemoveGroup(name string)
	Clear(name string)
	Enqueue(log *base.Log, group string)
}

// Listener observes the sending of tracked events and pages
//
// Methods are called from background goroutines
type Listener interface {
	OnBeforeSending(log *base.Log)
	OnSendingSucceeded(log *base.Log)
	OnSendingFailed(log *base.Log, err error)
}

// Options defines the batching of the analytics group
type Options struct {
	Threshold   int
	Interval    time.Duration
	MaxParallel int
}

// DefaultOptions returns the batching options from defs
func DefaultOptions() Options {
	return Options{
		Threshold:   defs.AnalyticsBatchSize,
		Interval:    defs.AnalyticsFlushInterval,
		MaxParallel: defs.MaxParallelBatches,
	}
}

// Analytics validates and enqueues events and pages, and can be enabled or disabled independently of the channel
type Analytics struct {
	logger   logger.Logger
	prefs    *prefs.Store
	listener atomic.Pointer[Listener]
	metrics  analyticsMetrics

	stateMutex sync.Mutex // serializes changes of enabled state and their application to the channel

	mutex   sync.Mutex
	channel Channel // nil until OnChannelReady
	enabled bool
	options Options
}

type analyticsMetrics struct {
	trackedTotal   promext.RWCounter
	discardedTotal promext.RWCounter
}

// New creates Analytics with its enabled state loaded from preferences. Nothing is tracked until OnChannelReady
func New(parentLogger logger.Logger, metricCreator promreg.MetricCreator, prefStore *prefs.Store, options Options) *Analytics {
	analyticsMetricCreator := metricCreator.AddOrGetPrefix("analytics_", nil, nil)
	return &Analytics{
		logger: parentLogger.WithField(defs.LabelComponent, "Analytics"),
		prefs:  prefStore,
		metrics: analyticsMetrics{
			trackedTotal:   analyticsMetricCreator.AddOrGetCounter("tracked_total", "Numbers of events and pages enqueued", nil, nil),
			discardedTotal: analyticsMetricCreator.AddOrGetCounter("discarded_total", "Numbers of events and pages discarded", nil, nil),
		},
		stateMutex: sync.Mutex{},
		mutex:      sync.Mutex{},
		channel:    nil,
		enabled:    prefStore.GetBool(prefEnabledKey, true),
		options:    options,
	}
}

// GroupName returns the name of the channel group owned by Analytics
func (a *Analytics) GroupName() string {
	return defs.AnalyticsGroup
}

// IsEnabled tells whether tracking is enabled
func (a *Analytics) IsEnabled() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.enabled
}

// SetListener sets or unsets (by nil) the listener for sending of tracked logs
func (a *Analytics) SetListener(listener Listener) {
	if listener == nil {
		a.listener.Store(nil)
	} else {
		a.listener.Store(&listener)
	}
}

// SetOptions changes batching options, applied at the next OnChannelReady or SetEnabled(true)
func (a *Analytics) SetOptions(options Options) {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	a.options = options
}

// OnChannelReady binds Analytics to the channel, registering its group if enabled or clearing leftovers if not
func (a *Analytics) OnChannelReady(ch Channel) error {
	a.stateMutex.Lock()
	defer a.stateMutex.Unlock()

	a.mutex.Lock()
	a.channel = ch
	enabled := a.enabled
	a.mutex.Unlock()

	return a.applyState(ch, enabled)
}

// SetEnabled enables or disables tracking and saves the state in preferences
//
// Disabling removes the group and its persisted backlog from the channel
func (a *Analytics) SetEnabled(enabled bool) error {
	a.stateMutex.Lock()
	defer a.stateMutex.Unlock()

	a.mutex.Lock()
	if a.enabled == enabled {
		a.mutex.Unlock()
		a.logger.Infof("already %s", enabledText(enabled))
		return nil
	}
	a.enabled = enabled
	ch := a.channel
	a.mutex.Unlock()

	if err := a.prefs.PutBool(prefEnabledKey, enabled); err != nil {
		a.logger.Errorf("error saving state: %s", err.Error())
	}
	a.logger.Infof("%s", enabledText(enabled))
	if ch == nil {
		return nil
	}
	return a.applyState(ch, enabled)
}

func (a *Analytics) applyState(ch Channel, enabled bool) error {
	if enabled {
		a.mutex.Lock()
		options := a.options
		a.mutex.Unlock()
		if err := ch.AddGroup(defs.AnalyticsGroup, options.Threshold, options.Interval, options.MaxParallel, groupListener{a}); err != nil {
			return fmt.Errorf("failed to register group: %w", err)
		}
		return nil
	}
	ch.Clear(defs.AnalyticsGroup)
	ch.RemoveGroup(defs.AnalyticsGroup)
	return nil
}

// TrackEvent enqueues a custom event. Invalid events are logged and discarded
func (a *Analytics) TrackEvent(name string, properties map[string]string) {
	a.track(defs.LogTypeEvent, name, properties)
}

// TrackPage enqueues a page view. Invalid pages are logged and discarded
func (a *Analytics) TrackPage(name string, properties map[string]string) {
	a.track(defs.LogTypePage, name, properties)
}

func (a *Analytics) track(logType string, name string, properties map[string]string) {
	a.mutex.Lock()
	ch := a.channel
	enabled := a.enabled
	a.mutex.Unlock()

	switch {
	case !enabled:
		a.metrics.discardedTotal.Inc()
		a.logger.Errorf("discard %s '%s': analytics disabled", logType, name)
		return
	case ch == nil:
		a.metrics.discardedTotal.Inc()
		a.logger.Errorf("discard %s '%s': channel not ready", logType, name)
		return
	}

	log, err := newTrackedLog(a.logger, logType, name, properties)
	if err != nil {
		a.metrics.discardedTotal.Inc()
		a.logger.Errorf("discard %s: %s", logType, err.Error())
		return
	}
	a.metrics.trackedTotal.Inc()
	ch.Enqueue(log, defs.AnalyticsGroup)
}

func (a *Analytics) currentListener() Listener {
	if l := a.listener.Load(); l != nil {
		return *l
	}
	return nil
}

func enabledText(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
