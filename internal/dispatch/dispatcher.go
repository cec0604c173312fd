package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	seltraceerrors "github.com/gxo-labs/seltrace/pkg/seltrace/v1/errors"
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
	seltracelog "github.com/gxo-labs/seltrace/pkg/seltrace/v1/log"
)

// Dispatcher coordinates the records of one driver session. It owns the
// sequence counter and the pending Before record and invokes every listener
// in registration order. A Dispatcher is not safe for concurrent use; each
// session owns its own.
type Dispatcher struct {
	seq       *Sequencer
	listeners []events.Listener
	pending   *events.EventRecord
	log       seltracelog.Logger
}

// NewDispatcher creates a dispatcher notifying listeners in the given order.
// The list is fixed for the life of the dispatcher.
func NewDispatcher(log seltracelog.Logger, listeners ...events.Listener) *Dispatcher {
	if log == nil {
		panic("NewDispatcher requires a non-nil logger")
	}
	ls := make([]events.Listener, 0, len(listeners))
	for _, l := range listeners {
		if l != nil {
			ls = append(ls, l)
		}
	}
	return &Dispatcher{
		seq:       NewSequencer(),
		listeners: ls,
		log:       log.With("component", "Dispatcher"),
	}
}

// Listeners returns the registered listeners in notification order.
func (d *Dispatcher) Listeners() []events.Listener {
	out := make([]events.Listener, len(d.listeners))
	copy(out, d.listeners)
	return out
}

// Sequence returns the number the next Action will be assigned.
func (d *Dispatcher) Sequence() int {
	return d.seq.Current()
}

// Pending returns the current pending Before record, if any.
func (d *Dispatcher) Pending() (events.EventRecord, bool) {
	if d.pending == nil {
		return events.EventRecord{}, false
	}
	return *d.pending, true
}

// Before opens cmd: it builds the Before record for the command's kind,
// makes it the pending record and notifies every listener. The returned
// record must be handed back to After once the real call succeeds.
func (d *Dispatcher) Before(ctx context.Context, cmd events.Command, p events.Params) (events.EventRecord, error) {
	var rec events.EventRecord
	if cmd.Kind() == events.Gather {
		rec = d.seq.BeginGather(cmd, p)
	} else {
		rec = d.seq.BeginAction(cmd, p)
	}
	d.pending = &rec

	for _, l := range d.listeners {
		if err := l.Before(ctx, rec); err != nil {
			return rec, d.listenerFailure(l, rec, err)
		}
	}
	return rec, nil
}

// After completes before with res and notifies every listener. Completing
// an Action advances the sequence.
func (d *Dispatcher) After(ctx context.Context, before events.EventRecord, res events.Result) (events.EventRecord, error) {
	var rec events.EventRecord
	if before.Command.Kind() == events.Gather {
		rec = d.seq.CompleteGather(before, res)
	} else {
		rec = d.seq.CompleteAction(before, res)
	}

	for _, l := range d.listeners {
		if err := l.After(ctx, rec); err != nil {
			return rec, d.listenerFailure(l, rec, err)
		}
	}
	return rec, nil
}

// OnException correlates cause with the pending command and notifies every
// listener. Without a pending command nothing was in flight, so the call is
// discarded and ok is false.
func (d *Dispatcher) OnException(ctx context.Context, cause error) (rec events.EventRecord, ok bool, err error) {
	if d.pending == nil {
		d.log.Debugf("Discarding exception with no pending command: %v", cause)
		return events.EventRecord{}, false, nil
	}
	pending := *d.pending
	rec = d.seq.Fail(pending, events.Params{
		Locator: pending.Locator,
		Param1:  describeException(cause),
	})

	for _, l := range d.listeners {
		if lerr := l.OnException(ctx, rec, cause); lerr != nil {
			return rec, true, d.listenerFailure(l, rec, lerr)
		}
	}
	return rec, true, nil
}

func (d *Dispatcher) listenerFailure(l events.Listener, rec events.EventRecord, err error) error {
	lerr := seltraceerrors.NewListenerError(l.Name(), string(rec.Phase), string(rec.Command), err)
	d.log.Log(slog.LevelWarn, "Listener failed, aborting instrumentation",
		"listener", l.Name(), "phase", rec.Phase, "command", rec.Command, "sequence", rec.Sequence, "error", err)
	return lerr
}

func describeException(cause error) string {
	if cause == nil {
		return "Exception Type: <nil>, message: "
	}
	return fmt.Sprintf("Exception Type: %s, message: %s", exceptionType(cause), cause.Error())
}

func exceptionType(err error) string {
	if de, ok := seltraceerrors.AsDriverError(err); ok && de.Code != "" {
		return fmt.Sprintf("%T (%s)", err, de.Code)
	}
	return fmt.Sprintf("%T", err)
}
