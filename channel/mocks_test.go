package channel

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
)

type mockStoredLog struct {
	log     *base.Log
	batchID string
}

type mockSend struct {
	Container base.LogContainer
	OnDone    func(result base.SendResult)
}

// channelMockEnv provides a Channel with in-memory persistence and manually completed ingestion
type channelMockEnv struct {
	mutex   sync.Mutex
	stored  map[string][]mockStoredLog
	batchSN int

	NumPut     int32
	NumGet     int32
	NumDelete  int32
	NumRelease int32
	NumClear   int32

	PutLogFunc func(group string, log *base.Log) error

	Sends   chan mockSend
	Channel *Channel
}

func newChannelMockEnv(isRecoverable base.ErrorClassifier) *channelMockEnv {
	env := &channelMockEnv{
		stored: make(map[string][]mockStoredLog),
		Sends:  make(chan mockSend, 1000),
	}
	env.PutLogFunc = env.DefaultPutLog
	env.Channel = New(
		logger.WithField(defs.LabelComponent, "MockChannel"),
		promreg.NewMetricFactory("testchannel_", nil, nil),
		Args{
			AppSecret:     "secret",
			InstallID:     uuid.New(),
			Persistence:   (*mockPersistence)(env),
			Ingestion:     (*mockIngestion)(env),
			IsRecoverable: isRecoverable,
		},
	)
	return env
}

func (env *channelMockEnv) DefaultPutLog(group string, log *base.Log) error {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	env.stored[group] = append(env.stored[group], mockStoredLog{log: log})
	return nil
}

// Preload stores logs as if left from a previous run
func (env *channelMockEnv) Preload(group string, numLogs int) {
	for i := 0; i < numLogs; i++ {
		_ = env.DefaultPutLog(group, &base.Log{Type: defs.LogTypeEvent, ID: fmt.Sprintf("preloaded-%d", i)})
	}
}

func (env *channelMockEnv) NumStored(group string) int {
	env.mutex.Lock()
	defer env.mutex.Unlock()
	return len(env.stored[group])
}

// NextSend waits for the next batch passed to ingestion, or returns nil on timeout
func (env *channelMockEnv) NextSend(timeout time.Duration) *mockSend {
	select {
	case send := <-env.Sends:
		return &send
	case <-time.After(timeout):
		return nil
	}
}

func (env *channelMockEnv) Enqueue(group string, numLogs int) {
	for i := 0; i < numLogs; i++ {
		env.Channel.Enqueue(&base.Log{Type: defs.LogTypeEvent, Name: fmt.Sprintf("event-%d", i)}, group)
	}
}

type mockPersistence channelMockEnv

func (p *mockPersistence) PutLog(group string, log *base.Log) error {
	atomic.AddInt32(&p.NumPut, 1)
	return p.PutLogFunc(group, log)
}

func (p *mockPersistence) GetLogs(group string, limit int) (string, []*base.Log) {
	atomic.AddInt32(&p.NumGet, 1)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.batchSN++
	batchID := fmt.Sprintf("batch-%d", p.batchSN)
	var logs []*base.Log
	entries := p.stored[group]
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

func (p *mockPersistence) DeleteLogs(group string, batchID string) {
	atomic.AddInt32(&p.NumDelete, 1)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	var remaining []mockStoredLog
	for _, entry := range p.stored[group] {
		if entry.batchID != batchID {
			remaining = append(remaining, entry)
		}
	}
	p.stored[group] = remaining
}

func (p *mockPersistence) ReleaseBatch(group string, batchID string) {
	atomic.AddInt32(&p.NumRelease, 1)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	entries := p.stored[group]
	for i := range entries {
		if entries[i].batchID == batchID {
			entries[i].batchID = ""
		}
	}
}

func (p *mockPersistence) CountLogs(group string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return len(p.stored[group])
}

func (p *mockPersistence) Clear(group string) {
	atomic.AddInt32(&p.NumClear, 1)
	p.mutex.Lock()
	defer p.mutex.Unlock()
	delete(p.stored, group)
}

type mockIngestion channelMockEnv

func (i *mockIngestion) SendAsync(appSecret string, installID uuid.UUID, container base.LogContainer, onDone func(result base.SendResult)) {
	i.Sends <- mockSend{Container: container, OnDone: onDone}
}

// mockGroupListener records calls and optionally vetoes persisting or sending
type mockGroupListener struct {
	mutex        sync.Mutex
	SkipPersist  bool
	VetoSending  bool
	NumPersisted int
	NumSending   int
	NumSuccess   int
	NumFailure   int
	NumAttached  int
	NumDetached  int
}

func (l *mockGroupListener) OnBeforePersisted(log *base.Log) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumPersisted++
	return !l.SkipPersist
}

func (l *mockGroupListener) OnBeforeSending(batch base.Batch) bool {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumSending++
	return !l.VetoSending
}

func (l *mockGroupListener) OnSuccess(batch base.Batch) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumSuccess++
}

func (l *mockGroupListener) OnFailure(batch base.Batch, err error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumFailure++
}

func (l *mockGroupListener) OnAttached() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumAttached++
}

func (l *mockGroupListener) OnDetached() {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.NumDetached++
}

func (l *mockGroupListener) Counts() [6]int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return [6]int{l.NumPersisted, l.NumSending, l.NumSuccess, l.NumFailure, l.NumAttached, l.NumDetached}
}

type mockChannelListener struct {
	mutex  sync.Mutex
	groups []string
}

func (l *mockChannelListener) OnEnqueuingLog(log *base.Log, group string) {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	l.groups = append(l.groups, group)
}
