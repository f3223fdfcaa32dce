package websocket

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

type timerState int

const (
	timerIdle timerState = iota
	timerRunning
	timerCancelled
	timerExpired
)

// voteTimer - один таймер голосования на сессию с явным жизненным циклом
// idle -> running -> cancelled/expired.
type voteTimer struct {
	state    timerState
	deadline time.Time
	cancel   chan struct{}
	done     chan struct{}
}

// TimerCoordinator управляет таймерами голосования по сессиям. Повторный
// Start для той же сессии сначала отменяет предыдущий таймер и дожидается
// завершения его горутины - устаревшее срабатывание не может пережить
// перезапуск. Истекший таймер вызывает OnExpire ровно один раз.
type TimerCoordinator struct {
	mu       sync.Mutex
	timers   map[string]*voteTimer
	onExpire func(sessionID string)
	logger   *zap.Logger
}

// NewTimerCoordinator создает координатор таймеров.
func NewTimerCoordinator(logger *zap.Logger) *TimerCoordinator {
	return &TimerCoordinator{
		timers: make(map[string]*voteTimer),
		logger: logger.Named("TimerCoordinator"),
	}
}

// SetOnExpire подключает обработчик истечения (форс-завершение голосования).
func (t *TimerCoordinator) SetOnExpire(fn func(sessionID string)) {
	t.onExpire = fn
}

// Start запускает таймер голосования сессии на duration. Уже идущий таймер
// той же сессии отменяется и ожидается перед запуском нового.
func (t *TimerCoordinator) Start(sessionID string, duration time.Duration) {
	timer := &voteTimer{
		state:    timerRunning,
		deadline: time.Now().Add(duration),
		cancel:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	// Снятие предшественника и установка нового таймера - одна критическая
	// секция: два гонящихся Start не могут увидеть одного и того же
	// предшественника и оставить проигравшего сиротой вне карты, где его
	// не достанет Stop. Ожидание done - уже вне блокировки.
	t.mu.Lock()
	prev := t.timers[sessionID]
	t.timers[sessionID] = timer
	if prev != nil && prev.state == timerRunning {
		prev.state = timerCancelled
		close(prev.cancel)
	}
	t.mu.Unlock()

	if prev != nil {
		<-prev.done
	}

	t.logger.Info("vote timer started",
		zap.String("sessionID", sessionID),
		zap.Duration("duration", duration))
	go t.watch(sessionID, timer)
}

// Stop отменяет таймер сессии, если он идет. Отмена уже истекшего или
// отсутствующего таймера - no-op.
func (t *TimerCoordinator) Stop(sessionID string) {
	t.mu.Lock()
	timer := t.timers[sessionID]
	delete(t.timers, sessionID)
	t.mu.Unlock()

	if timer != nil {
		t.cancelAndAwait(timer)
		t.logger.Info("vote timer stopped", zap.String("sessionID", sessionID))
	}
}

func (t *TimerCoordinator) cancelAndAwait(timer *voteTimer) {
	t.mu.Lock()
	if timer.state == timerRunning {
		timer.state = timerCancelled
		close(timer.cancel)
	}
	t.mu.Unlock()
	<-timer.done
}

// watch опрашивает дедлайн секундным тиком: дешевле держать одну горутину
// с тикером, чем пересоздавать time.AfterFunc при каждом сдвиге дедлайна.
func (t *TimerCoordinator) watch(sessionID string, timer *voteTimer) {
	defer close(timer.done)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-timer.cancel:
			return
		case <-ticker.C:
			if time.Now().Before(timer.deadline) {
				continue
			}

			// Перед срабатыванием проверяем, что таймер все еще актуален:
			// его могли отменить или заменить, пока тикал последний тик.
			t.mu.Lock()
			if timer.state != timerRunning {
				t.mu.Unlock()
				return
			}
			timer.state = timerExpired
			if t.timers[sessionID] == timer {
				delete(t.timers, sessionID)
			}
			t.mu.Unlock()

			t.logger.Info("vote timer expired", zap.String("sessionID", sessionID))
			if t.onExpire != nil {
				t.onExpire(sessionID)
			}
			return
		}
	}
}

// Deadline возвращает дедлайн идущего таймера сессии.
func (t *TimerCoordinator) Deadline(sessionID string) (time.Time, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	timer, ok := t.timers[sessionID]
	if !ok || timer.state != timerRunning {
		return time.Time{}, false
	}
	return timer.deadline, true
}

