// Package cache holds translated sentences keyed by their normalized source
// text so repeated sentences are sent to a translation backend only once.
package cache

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Cache is the get/put capability the pipeline needs. Implementations must be
// safe for concurrent use; writers of the same key converge to one value.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Put(ctx context.Context, key, value string) error
}

// Key returns the lookup key for a sentence: runs of whitespace collapsed to a
// single space, trimmed, and NFC-normalized.
func Key(sentence string) string {
	var sb strings.Builder
	sb.Grow(len(sentence))
	space := false
	for _, r := range strings.TrimSpace(sentence) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space {
			sb.WriteByte(' ')
			space = false
		}
		sb.WriteRune(r)
	}
	return norm.NFC.String(sb.String())
}

// Memory is a process-lifetime cache. The zero value is not usable; call NewMemory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewMemory() *Memory {
	return &Memory{entries: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *Memory) Put(_ context.Context, key, value string) error {
	m.mu.Lock()
	m.entries[key] = value
	m.mu.Unlock()
	return nil
}

// Len reports the number of cached sentences.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}
