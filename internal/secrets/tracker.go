// Package secrets keeps values typed into password fields, or resolved
// through the secret template function, out of logs, spans and reports.
package secrets

import (
	"strings"
	"sync"
)

// SecretTracker is the set of sensitive values seen by one session. It is
// safe for concurrent use.
type SecretTracker struct {
	mu     sync.RWMutex
	values map[string]struct{}
}

// NewSecretTracker returns an empty tracker.
func NewSecretTracker() *SecretTracker {
	return &SecretTracker{values: make(map[string]struct{})}
}

// Add tracks value. Empty strings are ignored.
func (t *SecretTracker) Add(value string) {
	if value == "" {
		return
	}
	t.mu.Lock()
	t.values[value] = struct{}{}
	t.mu.Unlock()
}

// IsTracked reports whether value is exactly a tracked secret.
func (t *SecretTracker) IsTracked(value string) bool {
	if t == nil || value == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.values[value]
	return ok
}

// ContainsTrackedSecret reports whether any tracked secret occurs in input.
func (t *SecretTracker) ContainsTrackedSecret(input string) bool {
	if t == nil || input == "" {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for secret := range t.values {
		if strings.Contains(input, secret) {
			return true
		}
	}
	return false
}

// Redact replaces every occurrence of a tracked secret in input with
// RedactedSecretValue.
func (t *SecretTracker) Redact(input string) string {
	if t == nil || input == "" {
		return input
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	for secret := range t.values {
		input = strings.ReplaceAll(input, secret, RedactedSecretValue)
	}
	return input
}
