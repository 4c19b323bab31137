package filestore

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promext"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/relex/logchannel/util"
)

const logFileSuffix = ".log"
const tmpFileSuffix = ".tmp"

var errNoQueueDir = errors.New("queue dir unavailable")

// groupQueue manages log files of one group in its queue dir
//
// Files are named by zero-padded sequence so that the order of names is the order of enqueuing
type groupQueue struct {
	logger     logger.Logger
	group      string
	maybeDir   *os.File
	compress   bool
	syncWrites bool
	spaceLimit int64
	metrics    groupQueueMetrics

	mutex     sync.Mutex
	entries   []queueEntry // oldest first
	nextSeq   uint64
	usedBytes int64
}

type queueEntry struct {
	fileName string
	size     int64
	batchID  string // empty if not in any batch
}

type groupQueueMetrics struct {
	persistentLogs  promext.RWGauge
	persistentBytes promext.RWGauge
	corruptLogs     promext.RWCounter
	ioErrorsTotal   promext.RWCounter
}

func newGroupQueue(parentLogger logger.Logger, path string, group string, metricCreator promreg.MetricCreator,
	spaceLimit int64, compress bool, syncWrites bool,
) *groupQueue {
	qlogger := parentLogger.WithField(defs.LabelGroup, group)
	groupMetricCreator := metricCreator.AddOrGetPrefix("", []string{defs.LabelGroup}, []string{group})
	metrics := groupQueueMetrics{
		persistentLogs:  groupMetricCreator.AddOrGetGauge("persistent_logs", "Numbers of currently persistent logs, including logs being sent", nil, nil),
		persistentBytes: groupMetricCreator.AddOrGetGauge("persistent_bytes", "Bytes of currently persistent logs, including logs being sent", nil, nil),
		corruptLogs:     groupMetricCreator.AddOrGetCounter("corrupt_logs_total", "Numbers of unreadable log files removed", nil, nil),
		ioErrorsTotal:   groupMetricCreator.AddOrGetCounter("io_errors_total", "Numbers of I/O errors for log file operations", nil, nil),
	}

	maybeDir, oerr := os.Open(path)
	if oerr != nil {
		qlogger.Errorf("error opening queue dir path=%s: %s", path, oerr.Error())
		maybeDir = nil
		metrics.ioErrorsTotal.Inc()
	}

	q := &groupQueue{
		logger:     qlogger,
		group:      group,
		maybeDir:   maybeDir,
		compress:   compress,
		syncWrites: syncWrites,
		spaceLimit: spaceLimit,
		metrics:    metrics,
		mutex:      sync.Mutex{},
		entries:    nil,
		nextSeq:    1,
		usedBytes:  0,
	}
	q.scanExistingFiles()
	return q
}

func (q *groupQueue) scanExistingFiles() {
	if q.maybeDir == nil {
		return
	}

	// reset position to start or it would only list new files on subsequent calls
	if _, serr := q.maybeDir.Seek(0, io.SeekStart); serr != nil {
		q.metrics.ioErrorsTotal.Inc()
		q.logger.Errorf("error seeking directory: %s", serr.Error())
	}
	fnames, derr := q.maybeDir.Readdirnames(0)
	if derr != nil {
		q.metrics.ioErrorsTotal.Inc()
		q.logger.Errorf("error scanning directory: %s", derr.Error())
		return
	}
	sort.Strings(fnames)

	for _, fn := range fnames {
		if strings.HasSuffix(fn, tmpFileSuffix) {
			q.logger.Warnf("remove incomplete log file %s", fn)
			q.unlink(fn)
			continue
		}
		seq, ok := parseLogFileName(fn)
		if !ok {
			continue
		}
		stat, serr := util.StatFileAt(q.maybeDir, fn)
		if serr != nil {
			q.metrics.ioErrorsTotal.Inc()
			q.logger.Errorf("error stating log file %s: %s", fn, serr.Error())
			continue
		}
		q.entries = append(q.entries, queueEntry{fileName: fn, size: stat.Size})
		q.usedBytes += stat.Size
		if seq >= q.nextSeq {
			q.nextSeq = seq + 1
		}
	}
	q.metrics.persistentLogs.Add(int64(len(q.entries)))
	q.metrics.persistentBytes.Add(q.usedBytes)
	if len(q.entries) > 0 {
		q.logger.Infof("recovered %d logs, %d bytes", len(q.entries), q.usedBytes)
	}
}

func (q *groupQueue) Put(log *base.Log) error {
	data, eerr := encodeLog(log, q.compress)
	if eerr != nil {
		return fmt.Errorf("failed to encode log: %w", eerr)
	}
	if len(data) > defs.StorageMaxLogBytes {
		return fmt.Errorf("log too large: %d bytes", len(data))
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.maybeDir == nil {
		return errNoQueueDir
	}
	if q.usedBytes+int64(len(data)) > q.spaceLimit {
		return fmt.Errorf("%w: group '%s' used=%d limit=%d", base.ErrStorageFull, q.group, q.usedBytes, q.spaceLimit)
	}

	fileName := formatLogFileName(q.nextSeq)
	q.nextSeq++
	var werr error
	if q.syncWrites {
		werr = util.WriteFileSyncAt(q.maybeDir, fileName, data, 0o644)
	} else {
		werr = util.WriteFileAt(q.maybeDir, fileName, data, 0o644)
	}
	if werr != nil {
		q.metrics.ioErrorsTotal.Inc()
		return fmt.Errorf("failed to write log file %s: %w", fileName, werr)
	}

	q.entries = append(q.entries, queueEntry{fileName: fileName, size: int64(len(data))})
	q.usedBytes += int64(len(data))
	q.metrics.persistentLogs.Inc()
	q.metrics.persistentBytes.Add(int64(len(data)))
	return nil
}

func (q *groupQueue) Get(limit int) (string, []*base.Log) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.maybeDir == nil || limit <= 0 {
		return "", nil
	}

	batchID := uuid.NewString()
	logs := make([]*base.Log, 0, limit)
	corrupt := make(map[string]bool)
	for i := range q.entries {
		if len(logs) >= limit {
			break
		}
		entry := &q.entries[i]
		if entry.batchID != "" {
			continue
		}
		log, err := q.load(entry.fileName)
		if err != nil {
			q.metrics.corruptLogs.Inc()
			q.logger.Errorf("remove unreadable log file %s: %s", entry.fileName, err.Error())
			corrupt[entry.fileName] = true
			continue
		}
		entry.batchID = batchID
		logs = append(logs, log)
	}
	if len(corrupt) > 0 {
		q.removeEntriesLocked(func(entry queueEntry) bool { return corrupt[entry.fileName] })
	}
	if len(logs) == 0 {
		return "", nil
	}
	return batchID, logs
}

func (q *groupQueue) load(fileName string) (*base.Log, error) {
	data, rerr := util.ReadFileAt(q.maybeDir, fileName)
	if rerr != nil {
		q.metrics.ioErrorsTotal.Inc()
		return nil, rerr
	}
	return decodeLog(data)
}

func (q *groupQueue) Delete(batchID string) {
	if batchID == "" {
		return
	}
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if n := q.removeEntriesLocked(func(entry queueEntry) bool { return entry.batchID == batchID }); n == 0 {
		q.logger.Debugf("no log to delete for batch %s", batchID)
	}
}

func (q *groupQueue) Release(batchID string) {
	if batchID == "" {
		return
	}
	q.mutex.Lock()
	defer q.mutex.Unlock()
	for i := range q.entries {
		if q.entries[i].batchID == batchID {
			q.entries[i].batchID = ""
		}
	}
}

func (q *groupQueue) Count() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.entries)
}

func (q *groupQueue) Clear() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if n := q.removeEntriesLocked(func(queueEntry) bool { return true }); n > 0 {
		q.logger.Infof("cleared %d logs", n)
	}
}

// removeEntriesLocked unlinks files of matched entries and returns the numbers of them
func (q *groupQueue) removeEntriesLocked(match func(entry queueEntry) bool) int {
	remaining := q.entries[:0]
	numRemoved := 0
	for _, entry := range q.entries {
		if !match(entry) {
			remaining = append(remaining, entry)
			continue
		}
		q.unlink(entry.fileName)
		q.usedBytes -= entry.size
		q.metrics.persistentLogs.Dec()
		q.metrics.persistentBytes.Sub(entry.size)
		numRemoved++
	}
	q.entries = remaining
	return numRemoved
}

func (q *groupQueue) unlink(fileName string) {
	if q.maybeDir == nil {
		q.logger.Errorf("BUG: cannot remove log file %s with nil dir. stack=%s", fileName, util.Stack())
		return
	}
	if err := util.UnlinkFileAt(q.maybeDir, fileName); err != nil && !os.IsNotExist(err) {
		q.metrics.ioErrorsTotal.Inc()
		q.logger.Errorf("error deleting log file %s: %s", fileName, err.Error())
	}
}

func (q *groupQueue) Close() {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if q.maybeDir == nil {
		return
	}
	if len(q.entries) > 0 {
		q.logger.Infof("close with %d logs left, %d bytes", len(q.entries), q.usedBytes)
	}
	if err := q.maybeDir.Close(); err != nil {
		q.metrics.ioErrorsTotal.Inc()
		q.logger.Warnf("error closing dir: %s", err.Error())
	}
	q.maybeDir = nil
}

func formatLogFileName(seq uint64) string {
	return fmt.Sprintf("%016d%s", seq, logFileSuffix)
}

func parseLogFileName(fileName string) (uint64, bool) {
	if !strings.HasSuffix(fileName, logFileSuffix) {
		return 0, false
	}
	seq, err := strconv.ParseUint(strings.TrimSuffix(fileName, logFileSuffix), 10, 64)
	if err != nil {
		return 0, false
	}
	return seq, true
}
