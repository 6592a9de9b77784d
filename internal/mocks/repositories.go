package mocks

import (
	"context"
	"sync"

	"github.com/seu-repo/terra-assistant/internal/domain"
)

// MockCommandRepository is a mock implementation of CommandRepository.
// Without SaveFunc it keeps saved records in memory.
type MockCommandRepository struct {
	mu             sync.Mutex
	Saved          []domain.CommandRecord
	SaveFunc       func(ctx context.Context, record *domain.CommandRecord) error
	FindRecentFunc func(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error)
}

func (m *MockCommandRepository) Save(ctx context.Context, record *domain.CommandRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, *record)
	return nil
}

func (m *MockCommandRepository) FindRecent(ctx context.Context, sessionID string, limit int) ([]domain.CommandRecord, error) {
	if m.FindRecentFunc != nil {
		return m.FindRecentFunc(ctx, sessionID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CommandRecord
	for i := len(m.Saved) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if m.Saved[i].SessionID == sessionID {
			out = append(out, m.Saved[i])
		}
	}
	return out, nil
}

// Records returns a copy of the saved records.
func (m *MockCommandRepository) Records() []domain.CommandRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.CommandRecord(nil), m.Saved...)
}

// MockTaskRepository is a mock implementation of TaskRepository
type MockTaskRepository struct {
	mu                sync.Mutex
	Saved             []domain.Task
	SaveFunc          func(ctx context.Context, task *domain.Task) error
	FindByIDFunc      func(ctx context.Context, id string) (*domain.Task, error)
	FindBySessionFunc func(ctx context.Context, sessionID string, limit int) ([]domain.Task, error)
}

func (m *MockTaskRepository) Save(ctx context.Context, task *domain.Task) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, task)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Saved = append(m.Saved, *task)
	return nil
}

func (m *MockTaskRepository) FindByID(ctx context.Context, id string) (*domain.Task, error) {
	if m.FindByIDFunc != nil {
		return m.FindByIDFunc(ctx, id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.Saved {
		if m.Saved[i].ID == id {
			task := m.Saved[i]
			return &task, nil
		}
	}
	return nil, nil
}

func (m *MockTaskRepository) FindBySession(ctx context.Context, sessionID string, limit int) ([]domain.Task, error) {
	if m.FindBySessionFunc != nil {
		return m.FindBySessionFunc(ctx, sessionID, limit)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Task
	for _, task := range m.Saved {
		if task.SessionID == sessionID {
			out = append(out, task)
		}
	}
	return out, nil
}

// Tasks returns a copy of the saved tasks.
func (m *MockTaskRepository) Tasks() []domain.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.Task(nil), m.Saved...)
}
