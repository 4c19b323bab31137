package base

import (
	"errors"
)

// ErrStorageFull is returned by Persistence.PutLog when the storage limit of a group is reached
var ErrStorageFull = errors.New("storage limit reached")

// Persistence is the durable log store keyed by group name
//
// All methods may be called concurrently from different goroutines
type Persistence interface {
	// PutLog appends a log to the end of group. The log is stored durably when it returns nil
	PutLog(group string, log *Log) error

	// GetLogs retrieves up to limit of the oldest logs not yet in any batch, and marks them as a new batch
	//
	// Returns an empty batch ID if there is nothing to retrieve
	GetLogs(group string, limit int) (string, []*Log)

	// DeleteLogs deletes all logs of the given batch
	DeleteLogs(group string, batchID string)

	// ReleaseBatch returns logs of the given batch to be retrieved again, without deleting them
	ReleaseBatch(group string, batchID string)

	// CountLogs counts all stored logs in group, including those in batches
	CountLogs(group string) int

	// Clear deletes all logs in group, including those in batches
	Clear(group string)
}

// PersistenceStore is a Persistence owning resources, created from configuration
type PersistenceStore interface {
	Persistence

	// ListGroups lists groups with stored logs, e.g. left from previous runs
	ListGroups() []string

	// Close releases resources. Stored logs are kept for the next run if the store is durable
	Close()
}
