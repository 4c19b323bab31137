package base

import (
	"github.com/google/uuid"
)

// Ingestion sends log containers to the remote ingestion endpoint
type Ingestion interface {
	// SendAsync starts sending container in background and returns immediately
	//
	// onDone must be called exactly once, from any goroutine, possibly before SendAsync returns
	SendAsync(appSecret string, installID uuid.UUID, container LogContainer, onDone func(result SendResult))
}

// ErrorClassifier tells whether the error from ingestion is recoverable, i.e. worth retrying later
type ErrorClassifier func(err error) bool

// IngestionClient is an Ingestion owning resources, created from configuration
type IngestionClient interface {
	Ingestion

	// IsRecoverable classifies errors passed to the onDone callback of SendAsync
	IsRecoverable(err error) bool

	// Close aborts outstanding sends and waits for their completion callbacks
	Close()
}
