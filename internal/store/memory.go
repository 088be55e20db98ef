// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import "sync"

// =============================================================================
// SESSION TIER (IN-MEMORY)
// =============================================================================

// MemoryTier is the ephemeral session tier. Values are copied on the way in
// and out so callers cannot mutate stored state.
type MemoryTier struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryTier creates an empty session tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{values: make(map[string][]byte)}
}

// Get returns the stored value and whether the key exists.
func (m *MemoryTier) Get(key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(value))
	copy(out, value)
	return out, true, nil
}

// Put stores a value under a key.
func (m *MemoryTier) Put(key string, value []byte) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = stored
	return nil
}

// Delete removes a key.
func (m *MemoryTier) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

// Close clears the tier.
func (m *MemoryTier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
	return nil
}
