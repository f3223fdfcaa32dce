package game

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"council-server/internal/models"
	"council-server/internal/repository"
)

// Registry владеет агрегатами сессий на все время жизни процесса: на один
// session_id существует ровно один экземпляр Session. Конструируется один
// раз при старте и внедряется во все компоненты, которым нужен lookup -
// глобальной карты сессий нет.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
	store    repository.Store
	logger   *zap.Logger
}

// NewRegistry создает реестр сессий.
func NewRegistry(store repository.Store, logger *zap.Logger) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		store:    store,
		logger:   logger.Named("Registry"),
	}
}

// Create создает новую сессию и сохраняет ее снимок. Конкурирующий Create
// с тем же session_id получает уже созданный экземпляр, а не второй
// расходящийся агрегат.
func (r *Registry) Create(ctx context.Context, sessionID, hostID string) (*Session, error) {
	r.mu.Lock()
	if existing, ok := r.sessions[sessionID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	session := NewSession(sessionID, hostID, r.store, r.logger)
	r.sessions[sessionID] = session
	r.mu.Unlock()

	snap := session.Snapshot()
	if err := r.store.CreateSession(ctx, &snap); err != nil {
		r.mu.Lock()
		delete(r.sessions, sessionID)
		r.mu.Unlock()
		return nil, fmt.Errorf("ошибка создания сессии %s: %w", sessionID, err)
	}
	r.logger.Info("session created", zap.String("sessionID", sessionID), zap.String("hostID", hostID))
	return session, nil
}

// Get возвращает агрегат по session_id.
func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[sessionID]
	return session, ok
}

// LoadOrGet возвращает живой агрегат, а при его отсутствии гидрирует
// сессию из хранилища (рестарт процесса поверх персистентной сессии).
func (r *Registry) LoadOrGet(ctx context.Context, sessionID string) (*Session, error) {
	if session, ok := r.Get(sessionID); ok {
		return session, nil
	}

	state, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrSessionNotFound
		}
		return nil, fmt.Errorf("ошибка загрузки сессии %s: %w", sessionID, err)
	}
	players, err := r.store.GetPlayers(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки игроков %s: %w", sessionID, err)
	}
	votes, err := r.store.GetVotes(ctx, sessionID, state.CurrentRound)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки голосов %s: %w", sessionID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Гонка двух LoadOrGet: второй получает экземпляр первого.
	if existing, ok := r.sessions[sessionID]; ok {
		return existing, nil
	}
	session := NewSession(sessionID, state.HostID, r.store, r.logger)
	session.hydrate(state, players, votes)
	r.sessions[sessionID] = session
	r.logger.Info("session hydrated from store", zap.String("sessionID", sessionID))
	return session, nil
}
