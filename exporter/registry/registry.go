// Package registry persists the mapping from table keys to the ids of the tables provisioned for them.
package registry

import (
	"context"
	"errors"
	"sync"
)

//go:generate mockgen -destination=../../mocks/exporter/registry/mock_registry.go -package=mock_registry github.com/rudderlabs/bridge-exporter/exporter/registry Store

// ErrAlreadyRegistered is returned by Put when key is already mapped to a table.
var ErrAlreadyRegistered = errors.New("table key already registered")

// Store maps table keys to table ids. Registrations are never deleted.
type Store interface {
	// Get returns the table id registered for key, if any.
	Get(ctx context.Context, key string) (tableID string, found bool, err error)
	// Put registers tableID for key. A key can only be registered once.
	Put(ctx context.Context, key, tableID string) error
}

// Memory is a Store kept in memory, for one-off runs and tests.
type Memory struct {
	mu     sync.RWMutex
	tables map[string]string
}

func NewMemory() *Memory {
	return &Memory{tables: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tableID, ok := m.tables[key]
	return tableID, ok, nil
}

func (m *Memory) Put(_ context.Context, key, tableID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[key]; ok {
		return ErrAlreadyRegistered
	}
	m.tables[key] = tableID
	return nil
}
