// Package listeners implements the stock record listeners: the full trace
// log, the screenshotting recorder and the test step recorder.
package listeners

import (
	"strings"
	"sync"

	"github.com/gxo-labs/seltrace/pkg/seltrace/v1/events"
)

// recordLog is an append-only list of records safe for concurrent append.
type recordLog struct {
	mu      sync.RWMutex
	records []events.EventRecord
}

func (l *recordLog) append(rec events.EventRecord) {
	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()
}

func (l *recordLog) snapshot() []events.EventRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]events.EventRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l *recordLog) clear() {
	l.mu.Lock()
	l.records = nil
	l.mu.Unlock()
}

// IsTrigger reports whether rec belongs to the trigger set shared by the
// screenshotting and step recorders: navigation, element interaction and
// alert handling, plus scripts that click.
func IsTrigger(rec events.EventRecord) bool {
	switch rec.Command {
	case events.DriverGet, events.NavigationBack, events.NavigationForward, events.DriverClose,
		events.ElementClick, events.ElementClear, events.ElementSubmit, events.ElementSendKeys,
		events.AlertAccept, events.AlertDismiss, events.AlertSendKeys:
		return true
	case events.DriverExecuteScript:
		return strings.Contains(rec.Param1, "click")
	}
	return false
}

// locatorMemory suppresses repeated sendKeys to the same element, the
// pattern produced by typing one character at a time.
type locatorMemory struct {
	last   string
	active bool
}

// admit reports whether a trigger should proceed. A sendKeys to the
// remembered locator is suppressed; any other trigger resets the memory.
func (m *locatorMemory) admit(rec events.EventRecord) bool {
	if rec.Command != events.ElementSendKeys {
		m.last, m.active = "", false
		return true
	}
	return !m.active || m.last != rec.Locator
}

// remember marks a sendKeys locator as handled. Callers invoke it only once
// the trigger has been fully recorded, so a failed attempt is not suppressed
// on retry.
func (m *locatorMemory) remember(rec events.EventRecord) {
	if rec.Command == events.ElementSendKeys {
		m.last, m.active = rec.Locator, true
	}
}
