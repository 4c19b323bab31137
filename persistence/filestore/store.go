// Package filestore provides durable persistence of logs in one file per log, grouped by directories
package filestore

import (
	"sync"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Store implements base.PersistenceStore on local filesystem
//
// Each group is stored in a sub-directory of the root path, created on first access
type Store struct {
	logger        logger.Logger
	rootPath      string
	metricCreator promreg.MetricCreator
	spaceLimit    int64
	compress      bool
	syncWrites    bool

	mutex  sync.Mutex
	queues map[string]*groupQueue
	closed bool
}

// NewStore creates a Store at rootPath. Existing group dirs are opened on first access to each group
func NewStore(parentLogger logger.Logger, rootPath string, metricCreator promreg.MetricCreator, spaceLimit int64,
	compress bool, syncWrites bool,
) *Store {
	return &Store{
		logger:        parentLogger.WithField(defs.LabelComponent, "FileStore"),
		rootPath:      rootPath,
		metricCreator: metricCreator.AddOrGetPrefix("filestore_", nil, nil),
		spaceLimit:    spaceLimit,
		compress:      compress,
		syncWrites:    syncWrites,
		mutex:         sync.Mutex{},
		queues:        make(map[string]*groupQueue),
		closed:        false,
	}
}

func (s *Store) queue(group string) *groupQueue {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return nil
	}
	if q, ok := s.queues[group]; ok {
		return q
	}
	path := makeGroupQueueDir(s.logger, s.rootPath, group)
	q := newGroupQueue(s.logger, path, group, s.metricCreator, s.spaceLimit, s.compress, s.syncWrites)
	s.queues[group] = q
	return q
}

// PutLog writes a log file into the group dir
func (s *Store) PutLog(group string, log *base.Log) error {
	q := s.queue(group)
	if q == nil {
		return errNoQueueDir
	}
	return q.Put(log)
}

// GetLogs loads up to limit of the oldest logs not in any batch
func (s *Store) GetLogs(group string, limit int) (string, []*base.Log) {
	q := s.queue(group)
	if q == nil {
		return "", nil
	}
	return q.Get(limit)
}

// DeleteLogs removes the files of a batch
func (s *Store) DeleteLogs(group string, batchID string) {
	if q := s.queue(group); q != nil {
		q.Delete(batchID)
	}
}

// ReleaseBatch makes logs of a batch available to GetLogs again
func (s *Store) ReleaseBatch(group string, batchID string) {
	if q := s.queue(group); q != nil {
		q.Release(batchID)
	}
}

// CountLogs counts log files of a group, including those in batches
func (s *Store) CountLogs(group string) int {
	if q := s.queue(group); q != nil {
		return q.Count()
	}
	return 0
}

// Clear removes all log files of a group
func (s *Store) Clear(group string) {
	if q := s.queue(group); q != nil {
		q.Clear()
	}
}

// ListGroups lists groups with log files, including those not yet accessed in this run
func (s *Store) ListGroups() []string {
	groupDirs := listGroupQueueDirs(s.logger, s.rootPath)
	names := make([]string, 0, len(groupDirs))
	for _, group := range maps.Keys(groupDirs) {
		if s.CountLogs(group) > 0 {
			names = append(names, group)
		}
	}
	slices.Sort(names)
	return names
}

// Close closes all group dirs. Log files are kept for the next run
func (s *Store) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, q := range s.queues {
		q.Close()
	}
	s.logger.Infof("closed")
}
