package base

// GroupListener observes the lifecycle of logs in one group
//
// Methods are called outside of channel locks and may be called from any goroutine
type GroupListener interface {
	// OnBeforePersisted is called before a log is written into persistence. Returns false to skip persistence
	OnBeforePersisted(log *Log) bool

	// OnBeforeSending is called before a batch is passed to ingestion. Returns false to hold the batch
	OnBeforeSending(batch Batch) bool

	// OnSuccess is called after a batch is accepted by ingestion and deleted from persistence
	OnSuccess(batch Batch)

	// OnFailure is called after a batch failed to be sent, either recoverable or fatal
	OnFailure(batch Batch, err error)
}

// DetachableListener is a GroupListener which observes external events and needs to stop doing so while the channel
// is disabled by user
type DetachableListener interface {
	GroupListener

	OnAttached()
	OnDetached()
}

// ChannelListener observes all logs accepted by a channel, regardless of group
type ChannelListener interface {
	// OnEnqueuingLog is called when a log is accepted for enqueuing, before any GroupListener
	OnEnqueuingLog(log *Log, group string)
}

// NopGroupListener is a GroupListener doing nothing and never blocking anything
//
// It can be embedded to implement only part of GroupListener
type NopGroupListener struct{}

// OnBeforePersisted does nothing
func (NopGroupListener) OnBeforePersisted(*Log) bool { return true }

// OnBeforeSending does nothing
func (NopGroupListener) OnBeforeSending(Batch) bool { return true }

// OnSuccess does nothing
func (NopGroupListener) OnSuccess(Batch) {}

// OnFailure does nothing
func (NopGroupListener) OnFailure(Batch, error) {}
