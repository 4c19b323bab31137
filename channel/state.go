package channel

import (
	"fmt"
)

// State is the global state of a Channel
type State int

const (
	// Enabled accepts new logs and dispatches batches
	Enabled State = iota
	// DisabledByUser discards new logs; backlog is cleared on entering this state
	DisabledByUser
	// DisabledByFailure discards new logs after a recoverable send failure; backlog is kept for Synchronize
	DisabledByFailure
)

func (state State) String() string {
	switch state {
	case Enabled:
		return "enabled"
	case DisabledByUser:
		return "disabledByUser"
	case DisabledByFailure:
		return "disabledByFailure"
	default:
		return fmt.Sprintf("State(%d)", int(state))
	}
}

// flushMode decides which batches may be dispatched in one round of ingestion
type flushMode int

const (
	flushOnThreshold flushMode = iota // only full batches, when pending logs reach the threshold
	flushOnTimer                      // the first batch regardless of threshold, then only full batches
	flushAll                          // all batches until backlog is exhausted or blocked by the parallel limit
)
