package filestore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
	"github.com/stretchr/testify/assert"
)

const testGroup = "group_analytics"

func newTestStore(root string, spaceLimit int64, compress bool) *Store {
	return NewStore(logger.WithField(defs.LabelComponent, "TestFileStore"), root,
		promreg.NewMetricFactory("testfilestore_", nil, nil), spaceLimit, compress, true)
}

func makeTestLog(i int) *base.Log {
	return &base.Log{
		Type:       defs.LogTypeEvent,
		ID:         fmt.Sprintf("log-%03d", i),
		Timestamp:  time.Date(2022, 7, 1, 12, 0, i, 0, time.UTC),
		SessionID:  "session-1",
		Name:       fmt.Sprintf("event-%d", i),
		Properties: map[string]string{"index": fmt.Sprint(i)},
	}
}

func TestStoreBatches(t *testing.T) {
	store := newTestStore(t.TempDir(), 1024*1024, false)
	defer store.Close()

	for i := 0; i < 7; i++ {
		assert.NoError(t, store.PutLog(testGroup, makeTestLog(i)))
	}
	assert.Equal(t, 7, store.CountLogs(testGroup))

	id1, logs1 := store.GetLogs(testGroup, 3)
	assert.NotEmpty(t, id1)
	if assert.Len(t, logs1, 3) {
		assert.Equal(t, "log-000", logs1[0].ID)
		assert.Equal(t, "log-002", logs1[2].ID)
		assert.Equal(t, "event-2", logs1[2].Name)
		assert.Equal(t, "2", logs1[2].Properties["index"])
		assert.True(t, makeTestLog(2).Timestamp.Equal(logs1[2].Timestamp))
	}

	id2, logs2 := store.GetLogs(testGroup, 3)
	assert.NotEqual(t, id1, id2)
	if assert.Len(t, logs2, 3) {
		assert.Equal(t, "log-003", logs2[0].ID)
	}

	// released logs are retrieved again in original order
	store.ReleaseBatch(testGroup, id1)
	id3, logs3 := store.GetLogs(testGroup, 10)
	if assert.Len(t, logs3, 4) {
		assert.Equal(t, "log-000", logs3[0].ID)
		assert.Equal(t, "log-006", logs3[3].ID)
	}

	store.DeleteLogs(testGroup, id2)
	assert.Equal(t, 4, store.CountLogs(testGroup))
	store.DeleteLogs(testGroup, id3)
	assert.Equal(t, 0, store.CountLogs(testGroup))

	id4, logs4 := store.GetLogs(testGroup, 10)
	assert.Empty(t, id4)
	assert.Empty(t, logs4)
}

func TestStoreRecovery(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(root, 1024*1024, true)
	for i := 0; i < 5; i++ {
		assert.NoError(t, store.PutLog(testGroup, makeTestLog(i)))
	}
	assert.NoError(t, store.PutLog(defs.ErrorGroup, makeTestLog(100)))
	batchID, _ := store.GetLogs(testGroup, 2)
	store.DeleteLogs(testGroup, batchID)
	_, _ = store.GetLogs(testGroup, 2) // in flight at exit
	store.Close()
	assert.Equal(t, 0, store.CountLogs(testGroup))

	// incomplete write from a crash
	dirs := listGroupQueueDirs(logger.Root(), root)
	assert.Len(t, dirs, 2)
	assert.NoError(t, os.WriteFile(filepath.Join(dirs[testGroup], formatLogFileName(99)+tmpFileSuffix), []byte("m"), 0o644))

	reopened := newTestStore(root, 1024*1024, true)
	defer reopened.Close()
	assert.Equal(t, []string{testGroup, defs.ErrorGroup}, reopened.ListGroups())
	assert.Equal(t, 3, reopened.CountLogs(testGroup))
	_, logs := reopened.GetLogs(testGroup, 10)
	if assert.Len(t, logs, 3) {
		assert.Equal(t, "log-002", logs[0].ID)
		assert.Equal(t, "log-004", logs[2].ID)
	}

	// sequence continues after recovered files
	assert.NoError(t, reopened.PutLog(testGroup, makeTestLog(5)))
	_, more := reopened.GetLogs(testGroup, 10)
	if assert.Len(t, more, 1) {
		assert.Equal(t, "log-005", more[0].ID)
	}
	_, err := os.Stat(filepath.Join(dirs[testGroup], formatLogFileName(99)+tmpFileSuffix))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreSpaceLimit(t *testing.T) {
	store := newTestStore(t.TempDir(), 1000, false)
	defer store.Close()

	var err error
	numStored := 0
	for i := 0; i < 100 && err == nil; i++ {
		if err = store.PutLog(testGroup, makeTestLog(i)); err == nil {
			numStored++
		}
	}
	assert.ErrorIs(t, err, base.ErrStorageFull)
	assert.Greater(t, numStored, 3)
	assert.Equal(t, numStored, store.CountLogs(testGroup))

	// space is reclaimed by deletion
	batchID, _ := store.GetLogs(testGroup, 3)
	store.DeleteLogs(testGroup, batchID)
	assert.NoError(t, store.PutLog(testGroup, makeTestLog(200)))
	assert.Equal(t, numStored-2, store.CountLogs(testGroup))

	// other groups have their own limit
	assert.NoError(t, store.PutLog(defs.ErrorGroup, makeTestLog(300)))
}

func TestStoreCorruptFile(t *testing.T) {
	root := t.TempDir()
	store := newTestStore(root, 1024*1024, false)
	for i := 0; i < 3; i++ {
		assert.NoError(t, store.PutLog(testGroup, makeTestLog(i)))
	}
	store.Close()

	dir := listGroupQueueDirs(logger.Root(), root)[testGroup]
	assert.NoError(t, os.WriteFile(filepath.Join(dir, formatLogFileName(2)), []byte("garbage"), 0o644))

	reopened := newTestStore(root, 1024*1024, false)
	defer reopened.Close()
	_, logs := reopened.GetLogs(testGroup, 10)
	if assert.Len(t, logs, 2) {
		assert.Equal(t, "log-000", logs[0].ID)
		assert.Equal(t, "log-002", logs[1].ID)
	}
	assert.Equal(t, 2, reopened.CountLogs(testGroup))
	_, err := os.Stat(filepath.Join(dir, formatLogFileName(2)))
	assert.True(t, os.IsNotExist(err))
}

func TestStoreClear(t *testing.T) {
	store := newTestStore(t.TempDir(), 1024*1024, false)
	defer store.Close()
	for i := 0; i < 4; i++ {
		assert.NoError(t, store.PutLog(testGroup, makeTestLog(i)))
	}
	batchID, _ := store.GetLogs(testGroup, 2)
	store.Clear(testGroup)
	assert.Equal(t, 0, store.CountLogs(testGroup))
	assert.Empty(t, store.ListGroups())

	// deleting a cleared batch does nothing
	store.DeleteLogs(testGroup, batchID)
	assert.Equal(t, 0, store.CountLogs(testGroup))
}

func TestCodec(t *testing.T) {
	small := makeTestLog(1)
	large := makeTestLog(2)
	large.Properties["text"] = strings.Repeat("abcdefgh", 100)

	for _, compress := range []bool{false, true} {
		for _, log := range []*base.Log{small, large} {
			data, err := encodeLog(log, compress)
			assert.NoError(t, err)
			if compress && log == large {
				assert.Equal(t, codecMsgpackLZ4, data[0])
				assert.Less(t, len(data), 800)
			} else {
				assert.Equal(t, codecMsgpack, data[0])
			}
			decoded, derr := decodeLog(data)
			if assert.NoError(t, derr) {
				assert.Equal(t, log.ID, decoded.ID)
				assert.Equal(t, log.Properties, decoded.Properties)
			}
		}
	}

	_, err := decodeLog([]byte("x123"))
	assert.ErrorIs(t, err, errCorruptFile)
	_, err = decodeLog([]byte{codecMsgpackLZ4, 0x10, 0xff, 0xff})
	assert.ErrorIs(t, err, errCorruptFile)
}

func TestSanitizeDirName(t *testing.T) {
	assert.Equal(t, "group_analytics", sanitizeDirName("group_analytics"))
	assert.Equal(t, "a_b_c", sanitizeDirName("a/b.c"))
}
