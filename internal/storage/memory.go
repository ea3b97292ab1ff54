package storage

import (
	"context"
	"sync"
)

// Memory is a process-local Backend. Documents are copied on the way in and out.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{docs: map[string][]byte{}}
}

func (m *Memory) Load(ctx context.Context, region string) ([]byte, error) {
	_ = ctx
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.docs[region]
	if !ok {
		return nil, ErrNoDocument
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Save(ctx context.Context, region string, doc []byte) error {
	_ = ctx
	if err := ValidRegionName(region); err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[region] = append([]byte(nil), doc...)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Close() error { return nil }
