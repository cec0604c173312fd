// Package events defines the correlated trace record produced around every
// driver command, the closed set of instrumented commands and the listener
// contract through which records are observed.
package events

import (
	"fmt"
	"time"
)

// Phase marks where in a command's life a record was produced.
type Phase string

const (
	BeforeAction Phase = "BeforeAction"
	AfterAction  Phase = "AfterAction"
	BeforeGather Phase = "BeforeGather"
	AfterGather  Phase = "AfterGather"
	Exception    Phase = "Exception"
)

// IsBefore reports whether p opens a command.
func (p Phase) IsBefore() bool { return p == BeforeAction || p == BeforeGather }

// PasswordMask replaces text typed into password fields.
const PasswordMask = "********"

// Params is the structured parameter variant carried by a record.
type Params struct {
	Locator string
	Param1  string
	Param2  string
}

// Result holds the return fields set once the real call completes.
type Result struct {
	Summary string
	Object  interface{}
}

// EventRecord is the correlated unit of observation for one command
// invocation. Records are values; listeners receive copies.
type EventRecord struct {
	Sequence      int       `json:"sequence"`
	Phase         Phase     `json:"phase"`
	Command       Command   `json:"command"`
	Locator       string    `json:"locator,omitempty"`
	Param1        string    `json:"param1,omitempty"`
	Param2        string    `json:"param2,omitempty"`
	ReturnSummary string    `json:"return_summary,omitempty"`
	Timestamp     time.Time `json:"timestamp"`

	// ReturnObject is the live value returned by the call. It never leaves the process.
	ReturnObject interface{} `json:"-"`
}

// NewRecord builds a record for cmd at the given sequence number.
func NewRecord(phase Phase, seq int, cmd Command, p Params) EventRecord {
	return EventRecord{
		Sequence:  seq,
		Phase:     phase,
		Command:   cmd,
		Locator:   p.Locator,
		Param1:    p.Param1,
		Param2:    p.Param2,
		Timestamp: time.Now(),
	}
}

// WithResult returns a copy of r in the given phase carrying res.
func (r EventRecord) WithResult(phase Phase, seq int, res Result) EventRecord {
	r.Phase = phase
	r.Sequence = seq
	r.ReturnSummary = res.Summary
	r.ReturnObject = res.Object
	r.Timestamp = time.Now()
	return r
}

func (r EventRecord) String() string {
	s := fmt.Sprintf("#%d %s %s", r.Sequence, r.Phase, r.Command)
	if r.Locator != "" {
		s += " " + r.Locator
	}
	return s
}
