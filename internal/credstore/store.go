package credstore

import (
	"context"
	"sync"

	"github.com/pocketdesk/pocketdesk/internal/protocol"
)

// Store persists pairing credentials. Load returns (nil, nil) when nothing
// usable is stored.
type Store interface {
	Load(ctx context.Context) (*protocol.Credentials, error)
	Save(ctx context.Context, creds *protocol.Credentials) error
	Clear(ctx context.Context) error
}

// Memory is an in-process store for tests.
type Memory struct {
	mu    sync.Mutex
	creds *protocol.Credentials
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(ctx context.Context) (*protocol.Credentials, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.creds == nil {
		return nil, nil
	}
	c := *m.creds
	return &c, nil
}

func (m *Memory) Save(ctx context.Context, creds *protocol.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := *creds
	m.creds = &c
	return nil
}

func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = nil
	return nil
}
