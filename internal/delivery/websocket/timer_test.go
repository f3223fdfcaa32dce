package websocket

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type expireRecorder struct {
	mu      sync.Mutex
	expired []string
}

func (r *expireRecorder) record(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.expired = append(r.expired, sessionID)
}

func (r *expireRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.expired)
}

func TestTimerCoordinator_ExpiresOnce(t *testing.T) {
	recorder := &expireRecorder{}
	coordinator := NewTimerCoordinator(zap.NewNop())
	coordinator.SetOnExpire(recorder.record)

	coordinator.Start("session-1", 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 3*time.Second, 50*time.Millisecond)

	// Истекший таймер снят, дедлайна больше нет
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 1, recorder.count())
	_, running := coordinator.Deadline("session-1")
	assert.False(t, running)
}

func TestTimerCoordinator_StopCancels(t *testing.T) {
	recorder := &expireRecorder{}
	coordinator := NewTimerCoordinator(zap.NewNop())
	coordinator.SetOnExpire(recorder.record)

	coordinator.Start("session-1", 100*time.Millisecond)
	coordinator.Stop("session-1")

	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, 0, recorder.count())

	// Повторный Stop - no-op
	coordinator.Stop("session-1")
}

func TestTimerCoordinator_RestartReplacesTimer(t *testing.T) {
	recorder := &expireRecorder{}
	coordinator := NewTimerCoordinator(zap.NewNop())
	coordinator.SetOnExpire(recorder.record)

	// Первый таймер длинный, второй короткий: срабатывает только второй
	coordinator.Start("session-1", time.Hour)
	coordinator.Start("session-1", 100*time.Millisecond)

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 3*time.Second, 50*time.Millisecond)

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, 1, recorder.count())
}

func TestTimerCoordinator_ConcurrentRestartLeavesNoOrphans(t *testing.T) {
	recorder := &expireRecorder{}
	coordinator := NewTimerCoordinator(zap.NewNop())
	coordinator.SetOnExpire(recorder.record)

	// Гонящиеся рестарты одной сессии: проигравший таймер должен быть
	// отменен победителем, а не остаться невидимым для Stop и сработать
	// после того, как сессия ушла дальше.
	for i := 0; i < 300; i++ {
		var wg sync.WaitGroup
		barrier := make(chan struct{})
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-barrier
				coordinator.Start("session-1", 1200*time.Millisecond)
			}()
		}
		close(barrier)
		wg.Wait()
		coordinator.Stop("session-1")
	}

	// Дедлайны всех запущенных таймеров позади: сирота успел бы сработать
	time.Sleep(2500 * time.Millisecond)
	assert.Equal(t, 0, recorder.count())
	_, running := coordinator.Deadline("session-1")
	assert.False(t, running)
}

func TestTimerCoordinator_IndependentSessions(t *testing.T) {
	recorder := &expireRecorder{}
	coordinator := NewTimerCoordinator(zap.NewNop())
	coordinator.SetOnExpire(recorder.record)

	coordinator.Start("session-1", 100*time.Millisecond)
	coordinator.Start("session-2", time.Hour)
	coordinator.Stop("session-2")

	require.Eventually(t, func() bool {
		return recorder.count() == 1
	}, 3*time.Second, 50*time.Millisecond)

	recorder.mu.Lock()
	defer recorder.mu.Unlock()
	assert.Equal(t, []string{"session-1"}, recorder.expired)
}

func TestTimerCoordinator_Deadline(t *testing.T) {
	coordinator := NewTimerCoordinator(zap.NewNop())

	_, running := coordinator.Deadline("session-1")
	assert.False(t, running)

	coordinator.Start("session-1", time.Minute)
	deadline, running := coordinator.Deadline("session-1")
	require.True(t, running)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 2*time.Second)

	coordinator.Stop("session-1")
	_, running = coordinator.Deadline("session-1")
	assert.False(t, running)
}
