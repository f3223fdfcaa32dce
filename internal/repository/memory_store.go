package repository

import (
	"context"
	"fmt"
	"sync"

	"council-server/internal/models"
)

// Compile-time check
var _ Store = (*MemoryStore)(nil)

// MemoryStore - потокобезопасная in-memory реализация Store с той же
// семантикой, что и у Postgres-реализации: last-write-wins по снимку
// сессии и уникальность (session, player, round) в журнале голосов.
// Используется в тестах и в dev-режиме (STORAGE=memory).
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]models.Session
	players    map[string][]*models.Player
	votes      map[string][]models.Vote
	incentives map[string]models.SecretIncentive // ключ session_id/round
}

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]models.Session),
		players:    make(map[string][]*models.Player),
		votes:      make(map[string][]models.Vote),
		incentives: make(map[string]models.SecretIncentive),
	}
}

func incentiveKey(sessionID string, round int) string {
	return fmt.Sprintf("%s/%d", sessionID, round)
}

func (m *MemoryStore) CreateSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[session.SessionID]; ok {
		return fmt.Errorf("сессия %s уже существует", session.SessionID)
	}
	m.sessions[session.SessionID] = copySession(session)
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := copySession(&session)
	return &out, nil
}

func (m *MemoryStore) SaveSession(_ context.Context, session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[session.SessionID] = copySession(session)
	return nil
}

func (m *MemoryStore) AddPlayer(_ context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.players[player.SessionID] {
		if p.PlayerID == player.PlayerID {
			return fmt.Errorf("игрок %s уже зарегистрирован", player.PlayerID)
		}
	}
	clone := *player
	m.players[player.SessionID] = append(m.players[player.SessionID], &clone)
	return nil
}

func (m *MemoryStore) UpdatePlayer(_ context.Context, player *models.Player) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.players[player.SessionID] {
		if p.PlayerID == player.PlayerID {
			clone := *player
			m.players[player.SessionID][i] = &clone
			return nil
		}
	}
	return models.ErrNotFound
}

func (m *MemoryStore) GetPlayers(_ context.Context, sessionID string) ([]*models.Player, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.Player, 0, len(m.players[sessionID]))
	for _, p := range m.players[sessionID] {
		clone := *p
		out = append(out, &clone)
	}
	return out, nil
}

func (m *MemoryStore) RecordVote(_ context.Context, vote *models.Vote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.votes[vote.SessionID] {
		if v.PlayerID == vote.PlayerID && v.Round == vote.Round {
			return fmt.Errorf("голос игрока %s в раунде %d уже записан", vote.PlayerID, vote.Round)
		}
	}
	m.votes[vote.SessionID] = append(m.votes[vote.SessionID], *vote)
	return nil
}

func (m *MemoryStore) GetVotes(_ context.Context, sessionID string, round int) ([]*models.Vote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Vote
	for _, v := range m.votes[sessionID] {
		if v.Round == round {
			clone := v
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *MemoryStore) AddIncentive(_ context.Context, incentive *models.SecretIncentive) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := incentiveKey(incentive.SessionID, incentive.Round)
	if _, ok := m.incentives[key]; ok {
		return fmt.Errorf("стимул для раунда %d уже существует", incentive.Round)
	}
	m.incentives[key] = *incentive
	return nil
}

func (m *MemoryStore) GetIncentive(_ context.Context, sessionID string, round int) (*models.SecretIncentive, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	incentive, ok := m.incentives[incentiveKey(sessionID, round)]
	if !ok {
		return nil, models.ErrNotFound
	}
	out := incentive
	return &out, nil
}

func copySession(s *models.Session) models.Session {
	out := *s
	if s.Resources != nil {
		out.Resources = make(map[models.ResourceType]int, len(s.Resources))
		for rt, v := range s.Resources {
			out.Resources[rt] = v
		}
	}
	if s.Scenario != nil {
		sc := *s.Scenario
		sc.Options = append([]models.ScenarioOption(nil), s.Scenario.Options...)
		if s.Scenario.ResourceDeltas != nil {
			sc.ResourceDeltas = make(map[models.ResourceType]int, len(s.Scenario.ResourceDeltas))
			for rt, d := range s.Scenario.ResourceDeltas {
				sc.ResourceDeltas[rt] = d
			}
		}
		out.Scenario = &sc
	}
	if s.TimerEndTime != nil {
		t := *s.TimerEndTime
		out.TimerEndTime = &t
	}
	return out
}
