// Package dispatch correlates driver commands into EventRecords and fans
// them out to listeners.
package dispatch

import (
	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
)

// Sequencer numbers records. The counter indexes state-changing steps only:
// it advances when an Action completes, and Gather records reuse the number
// of the most recent Action.
type Sequencer struct {
	current int
}

// NewSequencer returns a sequencer starting at zero.
func NewSequencer() *Sequencer {
	return &Sequencer{}
}

// Current returns the number the next Action will be assigned.
func (s *Sequencer) Current() int {
	return s.current
}

// BeginAction builds a BeforeAction record at the current number without advancing.
func (s *Sequencer) BeginAction(cmd events.Command, p events.Params) events.EventRecord {
	return events.NewRecord(events.BeforeAction, s.current, cmd, p)
}

// CompleteAction sets the return fields on an AfterAction copy of before,
// then advances the counter.
func (s *Sequencer) CompleteAction(before events.EventRecord, res events.Result) events.EventRecord {
	rec := before.WithResult(events.AfterAction, s.current, res)
	s.current++
	return rec
}

// BeginGather builds a BeforeGather record at the current number.
func (s *Sequencer) BeginGather(cmd events.Command, p events.Params) events.EventRecord {
	return events.NewRecord(events.BeforeGather, s.current, cmd, p)
}

// CompleteGather sets the return fields on an AfterGather copy of before.
func (s *Sequencer) CompleteGather(before events.EventRecord, res events.Result) events.EventRecord {
	return before.WithResult(events.AfterGather, s.current, res)
}

// Fail builds the Exception record correlated to the pending record.
func (s *Sequencer) Fail(pending events.EventRecord, p events.Params) events.EventRecord {
	return events.NewRecord(events.Exception, s.current, pending.Command, p)
}
