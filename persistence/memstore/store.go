// Package memstore provides volatile persistence of logs in memory
package memstore

import (
	"sync"

	"github.com/google/uuid"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Store implements base.PersistenceStore in memory. Logs are lost at exit
type Store struct {
	logger         logger.Logger
	maxLogsInGroup int
	persistentLogs promext.RWGauge

	mutex  sync.Mutex
	groups map[string][]storedLog
}

type storedLog struct {
	log     *base.Log
	batchID string
}

// NewStore creates an empty Store. maxLogsInGroup <= 0 means unlimited
func NewStore(parentLogger logger.Logger, metricCreator promreg.MetricCreator, maxLogsInGroup int) *Store {
	return &Store{
		logger:         parentLogger.WithField(defs.LabelComponent, "MemStore"),
		maxLogsInGroup: maxLogsInGroup,
		persistentLogs: metricCreator.AddOrGetGauge("memstore_persistent_logs", "Numbers of logs kept in memory, including logs being sent", nil, nil),
		mutex:          sync.Mutex{},
		groups:         make(map[string][]storedLog),
	}
}

// PutLog appends a log to the group
func (s *Store) PutLog(group string, log *base.Log) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.maxLogsInGroup > 0 && len(s.groups[group]) >= s.maxLogsInGroup {
		return base.ErrStorageFull
	}
	s.groups[group] = append(s.groups[group], storedLog{log: log})
	s.persistentLogs.Inc()
	return nil
}

// GetLogs marks up to limit of the oldest logs not in any batch as a new batch
func (s *Store) GetLogs(group string, limit int) (string, []*base.Log) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := s.groups[group]
	batchID := uuid.NewString()
	var logs []*base.Log
	for i := range entries {
		if len(logs) >= limit {
			break
		}
		if entries[i].batchID == "" {
			entries[i].batchID = batchID
			logs = append(logs, entries[i].log)
		}
	}
	if len(logs) == 0 {
		return "", nil
	}
	return batchID, logs
}

// DeleteLogs removes logs of the batch
func (s *Store) DeleteLogs(group string, batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.removeLocked(group, func(entry storedLog) bool { return entry.batchID == batchID })
}

// ReleaseBatch makes logs of the batch available to GetLogs again
func (s *Store) ReleaseBatch(group string, batchID string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	entries := s.groups[group]
	for i := range entries {
		if entries[i].batchID == batchID {
			entries[i].batchID = ""
		}
	}
}

// CountLogs counts logs of the group, including those in batches
func (s *Store) CountLogs(group string) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.groups[group])
}

// Clear removes all logs of the group
func (s *Store) Clear(group string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.removeLocked(group, func(storedLog) bool { return true })
}

// ListGroups lists groups with logs
func (s *Store) ListGroups() []string {
	s.mutex.Lock()
	names := maps.Keys(s.groups)
	s.mutex.Unlock()
	slices.Sort(names)
	return names
}

// Close discards everything
func (s *Store) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for group, entries := range s.groups {
		if len(entries) > 0 {
			s.logger.Warnf("discard %d logs of group '%s'", len(entries), group)
		}
		s.removeLocked(group, func(storedLog) bool { return true })
	}
}

func (s *Store) removeLocked(group string, match func(entry storedLog) bool) {
	entries := s.groups[group]
	remaining := entries[:0]
	for _, entry := range entries {
		if !match(entry) {
			remaining = append(remaining, entry)
		}
	}
	s.persistentLogs.Sub(int64(len(entries) - len(remaining)))
	if len(remaining) == 0 {
		delete(s.groups, group)
		return
	}
	s.groups[group] = remaining
}
