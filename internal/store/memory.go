package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/JonMunkholm/labelqr/internal/core"
)

// Memory is an in-process Store. Contents are lost on restart.
type Memory struct {
	mu          sync.RWMutex
	preferences map[string][]byte
	sheets      map[string][]byte
	ttl         time.Duration
	now         func() time.Time
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty store; sheets older than ttl are not returned.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		preferences: make(map[string][]byte),
		sheets:      make(map[string][]byte),
		ttl:         ttl,
		now:         time.Now,
	}
}

func (m *Memory) Load(_ context.Context, client string) (Preferences, bool, error) {
	m.mu.RLock()
	data, ok := m.preferences[client]
	m.mu.RUnlock()
	if !ok {
		return Preferences{}, false, nil
	}
	p, err := decodePreferences(data)
	if err != nil {
		return Preferences{}, false, err
	}
	return p, true, nil
}

func (m *Memory) Save(_ context.Context, client string, p Preferences) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode preferences: %w", err)
	}
	m.mu.Lock()
	m.preferences[client] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Clear(_ context.Context, client string) error {
	m.mu.Lock()
	delete(m.preferences, client)
	m.mu.Unlock()
	return nil
}

func (m *Memory) SaveSheet(_ context.Context, sheet SavedSheet) (string, error) {
	sheet, data, err := prepareSheet(sheet, m.now())
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	m.sheets[sheet.ID] = data
	m.mu.Unlock()
	return sheet.ID, nil
}

func (m *Memory) LoadSheet(_ context.Context, id string) (SavedSheet, error) {
	m.mu.RLock()
	data, ok := m.sheets[id]
	m.mu.RUnlock()
	if !ok {
		return SavedSheet{}, core.ErrSheetNotFound
	}
	return decodeSheet(data, m.ttl, m.now())
}

// PurgeExpired deletes sheets older than the TTL.
func (m *Memory) PurgeExpired(_ context.Context) error {
	if m.ttl <= 0 {
		return nil
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, data := range m.sheets {
		if _, err := decodeSheet(data, m.ttl, now); err != nil {
			delete(m.sheets, id)
		}
	}
	return nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }
