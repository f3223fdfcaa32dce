package mocks

import (
	"sync"

	"github.com/stretchr/testify/mock"
)

// MockNotifier is a mock type for the Notifier type
type MockNotifier struct {
	mock.Mock
}

// BroadcastToSession provides a mock function with given fields: sessionID, event, payload
func (_m *MockNotifier) BroadcastToSession(sessionID string, event string, payload interface{}) {
	_m.Called(sessionID, event, payload)
}

// SendToPlayer provides a mock function with given fields: sessionID, playerID, event, payload
func (_m *MockNotifier) SendToPlayer(sessionID string, playerID string, event string, payload interface{}) {
	_m.Called(sessionID, playerID, event, payload)
}

// NewMockNotifier creates a new instance of MockNotifier.
func NewMockNotifier(t interface {
	mock.TestingT
	Helper()
}) *MockNotifier {
	m := &MockNotifier{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

// NoopNotifier - нотификатор-заглушка для тестов, где сами события не
// проверяются. Потокобезопасно считает broadcast'ы по типу события.
type NoopNotifier struct {
	mu     sync.Mutex
	events map[string]int
}

func NewNoopNotifier() *NoopNotifier {
	return &NoopNotifier{events: make(map[string]int)}
}

func (n *NoopNotifier) BroadcastToSession(_ string, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[event]++
}

func (n *NoopNotifier) SendToPlayer(_ string, _ string, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events[event]++
}

// Count возвращает число разосланных событий данного типа.
func (n *NoopNotifier) Count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.events[event]
}
