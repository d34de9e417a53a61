package cache

import (
	"context"
	"sync"
	"time"
)

// Default memory tier configuration.
const (
	defaultSweepInterval = time.Minute
)

type memoryEntry struct {
	payload   []byte
	expiresAt time.Time
}

// Memory is the volatile tier: a concurrency-safe in-process map with lazy
// expiry on read and a background sweeper reclaiming expired entries.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time

	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// MemoryOption applies a configuration option to the Memory tier.
type MemoryOption func(*Memory)

// WithSweepInterval sets how often expired entries are reclaimed.
func WithSweepInterval(d time.Duration) MemoryOption {
	return func(m *Memory) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithClock injects the clock, for tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemory creates the volatile tier and starts its sweeper.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		entries:       make(map[string]memoryEntry),
		now:           time.Now,
		sweepInterval: defaultSweepInterval,
		stop:          make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	go m.sweepLoop()
	return m
}

// Get returns the payload for key. An entry past its TTL is never returned.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Set stores payload under key for ttl.
func (m *Memory) Set(_ context.Context, key string, payload []byte, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = memoryEntry{payload: payload, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Len returns the number of live entries, expired ones included until the
// next sweep.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Flush drops every entry.
func (m *Memory) Flush() {
	m.mu.Lock()
	m.entries = make(map[string]memoryEntry)
	m.mu.Unlock()
}

// Close stops the sweeper.
func (m *Memory) Close() error {
	m.stopOnce.Do(func() { close(m.stop) })
	return nil
}

func (m *Memory) sweepLoop() {
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

func (m *Memory) sweep() {
	now := m.now()
	m.mu.Lock()
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
		}
	}
	m.mu.Unlock()
}
