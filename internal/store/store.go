// Package store defines the key/value persistence port used for series
// snapshots and trade records, with an in-memory implementation. Backends
// live in the redis, sqlite and postgres subpackages.
//
// A missing or corrupt record is never fatal: callers treat it as "no prior
// history" and start from empty state.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrNotFound is returned by Load when the key has never been saved.
	ErrNotFound = errors.New("store: not found")

	// ErrCorruptState is returned when a stored record cannot be decoded.
	ErrCorruptState = errors.New("store: corrupt persisted state")
)

// Store is the persistence port.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Close() error
}

// Keys used by the engine.
const (
	KeySeriesPrefix = "series:" // + timeframe tag
	KeyTrades       = "trades"
	KeyLastBuy      = "trade:last_buy"
	KeyLastSell     = "trade:last_sell"
	KeyRSIHistory   = "rsi:history"
)

// LoadJSON loads key and decodes it into v. Decode failures are reported as
// ErrCorruptState.
func LoadJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Load(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptState, key, err)
	}
	return nil
}

// SaveJSON encodes v and saves it under key.
func SaveJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.Save(ctx, key, data)
}

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *Memory) Save(_ context.Context, key string, data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	m.mu.Lock()
	m.data[key] = cp
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
