package mocks

import (
	"sync"
	"time"
)

// FakeTimer - таймер-заглушка: запоминает запуски и остановки, но никогда
// не срабатывает сам. Истечение имитируется вызовом ForceAdvance из теста.
type FakeTimer struct {
	mu      sync.Mutex
	started map[string]time.Duration
	starts  map[string]int
	stops   map[string]int
}

func NewFakeTimer() *FakeTimer {
	return &FakeTimer{
		started: make(map[string]time.Duration),
		starts:  make(map[string]int),
		stops:   make(map[string]int),
	}
}

func (t *FakeTimer) Start(sessionID string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.started[sessionID] = d
	t.starts[sessionID]++
}

func (t *FakeTimer) Stop(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stops[sessionID]++
}

// StartedWith возвращает длительность последнего запуска таймера сессии.
func (t *FakeTimer) StartedWith(sessionID string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.started[sessionID]
	return d, ok
}

// StartCount возвращает число запусков таймера сессии.
func (t *FakeTimer) StartCount(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starts[sessionID]
}

// StopCount возвращает число остановок таймера сессии.
func (t *FakeTimer) StopCount(sessionID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops[sessionID]
}
