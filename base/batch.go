package base

import (
	"fmt"
)

// Batch is a subset of persisted logs in a group, retrieved together and sent in one request
type Batch struct {
	Group string // Name of the group
	ID    string // Opaque ID assigned by Persistence
	Logs  []*Log // Logs ordered oldest-first
}

// Container makes the LogContainer to be sent for this batch
func (batch Batch) Container() LogContainer {
	return LogContainer{Logs: batch.Logs}
}

func (batch Batch) String() string {
	return fmt.Sprintf("group=%s id=%s len=%d", batch.Group, batch.ID, len(batch.Logs))
}

// SendOutcome is the classification of a completed send
type SendOutcome int

const (
	// SendSucceeded means the batch has been accepted by ingestion
	SendSucceeded SendOutcome = iota
	// SendFailed means the batch could not be delivered and the error is to be classified by the channel
	SendFailed
	// SendFailedRecoverable means the batch could not be delivered due to transient, e.g. network, issues
	SendFailedRecoverable
	// SendFailedFatal means the batch has been rejected and would never succeed
	SendFailedFatal
)

func (outcome SendOutcome) String() string {
	switch outcome {
	case SendSucceeded:
		return "success"
	case SendFailed:
		return "failed"
	case SendFailedRecoverable:
		return "recoverable"
	case SendFailedFatal:
		return "fatal"
	default:
		return fmt.Sprintf("SendOutcome(%d)", int(outcome))
	}
}

// SendResult is the tagged result of one send attempt
type SendResult struct {
	Outcome SendOutcome
	Err     error // nil for SendSucceeded
}

// Succeeded makes a successful SendResult
func Succeeded() SendResult {
	return SendResult{Outcome: SendSucceeded}
}

// Failed makes an unclassified failed SendResult
func Failed(err error) SendResult {
	return SendResult{Outcome: SendFailed, Err: err}
}

// Recoverable makes a recoverable SendResult
func Recoverable(err error) SendResult {
	return SendResult{Outcome: SendFailedRecoverable, Err: err}
}

// Fatal makes a fatal SendResult
func Fatal(err error) SendResult {
	return SendResult{Outcome: SendFailedFatal, Err: err}
}

// Classify resolves an unclassified failure into recoverable or fatal by the given classifier
//
// nil classifier means every unclassified failure is fatal
func (result SendResult) Classify(isRecoverable ErrorClassifier) SendResult {
	if result.Outcome != SendFailed {
		return result
	}
	if isRecoverable != nil && isRecoverable(result.Err) {
		return Recoverable(result.Err)
	}
	return Fatal(result.Err)
}
