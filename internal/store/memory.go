package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Memory is the Store used when no database is configured.
type Memory struct {
	mu      sync.RWMutex
	bans    map[string]Ban
	results []MatchResult
}

func NewMemory() *Memory {
	return &Memory{bans: make(map[string]Ban)}
}

func (m *Memory) IsBanned(_ context.Context, host string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bans[host]
	return ok, nil
}

func (m *Memory) AddBan(_ context.Context, b Ban) error {
	if b.Host == "" {
		return ErrInvalidBan
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bans[b.Host] = b
	return nil
}

func (m *Memory) RecordResult(_ context.Context, r MatchResult) error {
	stamp(&r)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results = append(m.results, r)
	return nil
}

// Results returns the newest results first.
func (m *Memory) Results(_ context.Context, limit int) ([]MatchResult, error) {
	m.mu.RLock()
	out := append([]MatchResult(nil), m.results...)
	m.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].EndedAt.After(out[j].EndedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) Close() error { return nil }
