package events

import "context"

// Listener observes the records dispatched around every command. Hooks run
// synchronously on the caller's goroutine in registration order; an error
// returned from a hook aborts the remaining instrumentation of the command.
type Listener interface {
	// Name identifies the listener in logs and errors.
	Name() string
	// Before receives the BeforeAction or BeforeGather record.
	Before(ctx context.Context, rec EventRecord) error
	// After receives the AfterAction or AfterGather record.
	After(ctx context.Context, rec EventRecord) error
	// OnException receives the Exception record correlated to the pending command.
	OnException(ctx context.Context, rec EventRecord, cause error) error
	// Records returns a snapshot of the listener's own log.
	Records() []EventRecord
}

// BaseListener provides no-op hooks. Embed it and override only the hooks
// a listener subscribes to.
type BaseListener struct{}

// Before does nothing.
func (BaseListener) Before(context.Context, EventRecord) error { return nil }

// After does nothing.
func (BaseListener) After(context.Context, EventRecord) error { return nil }

// OnException does nothing.
func (BaseListener) OnException(context.Context, EventRecord, error) error { return nil }

// Records returns nil.
func (BaseListener) Records() []EventRecord { return nil }

// Clearer is implemented by listeners whose log can be reset between test cases.
type Clearer interface {
	Clear()
}
