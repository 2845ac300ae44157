package services

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iara-orders/orders-api/utils"
)

// MockExportStorage is an in-memory ExportStorage for testing
type MockExportStorage struct {
	files map[string][]byte
	mu    sync.RWMutex
}

// NewMockExportStorage creates an empty mock storage
func NewMockExportStorage() *MockExportStorage {
	return &MockExportStorage{files: make(map[string][]byte)}
}

// SetAsMockForTesting sets this mock as the global export storage instance
func (m *MockExportStorage) SetAsMockForTesting() {
	SetExportStorage(m)
}

func (m *MockExportStorage) Save(_ context.Context, name string, content []byte) (string, error) {
	if err := utils.ValidateExportFilename(name); err != nil {
		return "", err
	}

	m.mu.Lock()
	m.files[name] = append([]byte(nil), content...)
	m.mu.Unlock()

	return "mock://exports/" + name, nil
}

func (m *MockExportStorage) Load(_ context.Context, name string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	content, ok := m.files[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
	}
	return content, nil
}

// Names lists stored file names in order
func (m *MockExportStorage) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.files))
	for name := range m.files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
