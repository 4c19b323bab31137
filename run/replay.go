package run

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"time"

	json "github.com/goccy/go-json"
	"github.com/relex/gotils/logger"
	"github.com/relex/logchannel/base"
	"github.com/relex/logchannel/defs"
)

// replayRecord is one line of replay input: a log with the name of its target group
//
// Events and pages of the analytics group are passed to Analytics for validation
type replayRecord struct {
	Group string `json:"group"`
	base.Log
}

// Replay reads JSON lines from reader and enqueues each of them until EOF or ctx cancellation
//
// Returns the numbers of lines accepted. Malformed lines are logged and skipped.
func (launched *Launched) Replay(ctx context.Context, reader io.Reader) (int, error) {
	rlogger := logger.WithField(defs.LabelComponent, "Replay")
	scanner := bufio.NewScanner(reader)
	scanner.Buffer(make([]byte, 0, 64*1024), defs.StorageMaxLogBytes)

	numAccepted := 0
	lineNum := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return numAccepted, ctx.Err()
		}
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		record := replayRecord{}
		if err := json.Unmarshal(line, &record); err != nil {
			rlogger.Warnf("line %d: %s", lineNum, err.Error())
			continue
		}
		if record.Group == "" {
			rlogger.Warnf("line %d: .group is unspecified", lineNum)
			continue
		}
		launched.enqueueRecord(&record)
		numAccepted++
	}
	if err := scanner.Err(); err != nil {
		return numAccepted, fmt.Errorf("line %d: %w", lineNum+1, err)
	}
	rlogger.Infof("replayed %d of %d lines", numAccepted, lineNum)
	return numAccepted, nil
}

func (launched *Launched) enqueueRecord(record *replayRecord) {
	if record.Group == defs.AnalyticsGroup {
		switch record.Type {
		case defs.LogTypeEvent:
			launched.Analytics.TrackEvent(record.Name, record.Properties)
			return
		case defs.LogTypePage:
			launched.Analytics.TrackPage(record.Name, record.Properties)
			return
		}
	}
	log := record.Log
	launched.Channel.Enqueue(&log, record.Group)
}

// Drain sends all pending logs regardless of thresholds and waits until every group is empty
//
// Returns false if the channel is disabled (e.g. by network failure) or the wait is cancelled or timed out
func (launched *Launched) Drain(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	launched.Channel.Synchronize()
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if !launched.Channel.IsEnabled() {
			launched.logger.Warnf("channel %s, stop draining", launched.Channel.State())
			return false
		}
		remaining := 0
		for _, group := range launched.Channel.GroupNames() {
			if n, err := launched.Channel.PendingCount(group); err == nil {
				remaining += n
			}
		}
		if remaining == 0 {
			launched.logger.Info("drained")
			return true
		}
		select {
		case <-ctx.Done():
			launched.logger.Warnf("stop draining with %d logs pending: %s", remaining, ctx.Err())
			return false
		case <-ticker.C:
		}
	}
}
