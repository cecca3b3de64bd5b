// Copyright The Linux Foundation and each contributor to LFX.
// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// errWrongLastSequence mimics the JetStream rejection of a stale revision.
var errWrongLastSequence = errors.New("nats: wrong last sequence")

// memoryEntry implements jetstream.KeyValueEntry for the in-memory store
type memoryEntry struct {
	bucket   string
	key      string
	value    []byte
	revision uint64
	created  time.Time
}

func (m *memoryEntry) Key() string                     { return m.key }
func (m *memoryEntry) Value() []byte                   { return m.value }
func (m *memoryEntry) Revision() uint64                { return m.revision }
func (m *memoryEntry) Created() time.Time              { return m.created }
func (m *memoryEntry) Delta() uint64                   { return 0 }
func (m *memoryEntry) Operation() jetstream.KeyValueOp { return jetstream.KeyValuePut }
func (m *memoryEntry) Bucket() string                  { return m.bucket }

// memoryKeyLister implements jetstream.KeyLister over a snapshot of keys
type memoryKeyLister struct {
	keys []string
}

func (m *memoryKeyLister) Keys() <-chan string {
	ch := make(chan string, len(m.keys))
	for _, key := range m.keys {
		ch <- key
	}
	close(ch)
	return ch
}

func (m *memoryKeyLister) Stop() error { return nil }

// MemoryKeyValue is a goroutine-safe, process-local [INatsKeyValue]. It honors revision
// checks the same way JetStream does, which makes it suitable for exercising the
// optimistic concurrency paths in tests.
type MemoryKeyValue struct {
	mu       sync.Mutex
	bucket   string
	entries  map[string]*memoryEntry
	sequence uint64

	// Injected failures, returned by the matching operation when set.
	GetError    error
	PutError    error
	UpdateError error
	ListError   error
}

// NewMemoryKeyValue creates an empty in-memory bucket.
func NewMemoryKeyValue(bucket string) *MemoryKeyValue {
	return &MemoryKeyValue{
		bucket:  bucket,
		entries: make(map[string]*memoryEntry),
	}
}

func (m *MemoryKeyValue) ListKeys(_ context.Context, _ ...jetstream.WatchOpt) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	keys := make([]string, 0, len(m.entries))
	for key := range m.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return &memoryKeyLister{keys: keys}, nil
}

// ListKeysFiltered returns the keys matching any of the subject filters. "*" matches one
// token and a trailing ">" matches the rest of the key.
func (m *MemoryKeyValue) ListKeysFiltered(_ context.Context, filters ...string) (jetstream.KeyLister, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ListError != nil {
		return nil, m.ListError
	}
	var keys []string
	for key := range m.entries {
		if slices.ContainsFunc(filters, func(filter string) bool { return subjectMatches(filter, key) }) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return &memoryKeyLister{keys: keys}, nil
}

func subjectMatches(filter, key string) bool {
	want := strings.Split(filter, ".")
	got := strings.Split(key, ".")
	for i, token := range want {
		if token == ">" {
			return len(got) > i
		}
		if i >= len(got) || (token != "*" && token != got[i]) {
			return false
		}
	}
	return len(want) == len(got)
}

func (m *MemoryKeyValue) Get(_ context.Context, key string) (jetstream.KeyValueEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetError != nil {
		return nil, m.GetError
	}
	entry, ok := m.entries[key]
	if !ok {
		return nil, jetstream.ErrKeyNotFound
	}
	cp := *entry
	cp.value = append([]byte(nil), entry.value...)
	return &cp, nil
}

func (m *MemoryKeyValue) Put(_ context.Context, key string, data []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return 0, m.PutError
	}
	return m.store(key, data), nil
}

func (m *MemoryKeyValue) Create(_ context.Context, key string, data []byte, _ ...jetstream.KVCreateOpt) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutError != nil {
		return 0, m.PutError
	}
	if _, exists := m.entries[key]; exists {
		return 0, jetstream.ErrKeyExists
	}
	return m.store(key, data), nil
}

func (m *MemoryKeyValue) Update(_ context.Context, key string, data []byte, expectedRevision uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.UpdateError != nil {
		return 0, m.UpdateError
	}
	entry, exists := m.entries[key]
	if !exists {
		return 0, jetstream.ErrKeyNotFound
	}
	if entry.revision != expectedRevision {
		return 0, errWrongLastSequence
	}
	return m.store(key, data), nil
}

func (m *MemoryKeyValue) Delete(_ context.Context, key string, _ ...jetstream.KVDeleteOpt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists {
		return jetstream.ErrKeyNotFound
	}
	delete(m.entries, key)
	return nil
}

// Len returns the number of stored keys.
func (m *MemoryKeyValue) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// store must be called with mu held. Revisions are bucket-wide sequence numbers, as in JetStream.
func (m *MemoryKeyValue) store(key string, data []byte) uint64 {
	m.sequence++
	m.entries[key] = &memoryEntry{
		bucket:   m.bucket,
		key:      key,
		value:    append([]byte(nil), data...),
		revision: m.sequence,
		created:  time.Now().UTC(),
	}
	return m.sequence
}
