package game

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"council-server/internal/models"
	"council-server/internal/repository"
)

// Session - агрегат игровой сессии. Владеет фазой, счетчиком раундов,
// леджером ресурсов, составом игроков и журналом голосов и следит за их
// инвариантами. Все публичные операции сериализуются мьютексом агрегата:
// таймер голосования и обработчики запросов разделяют один и тот же
// экземпляр (Registry гарантирует один экземпляр на session_id).
//
// Контракт мутаций: полный снимок сохраняется в Store до возврата успеха.
// Ошибка персистентности фатальна для операции и пробрасывается наверх.
type Session struct {
	mu        sync.Mutex
	state     *models.Session
	resources ResourceLedger
	players   map[string]*models.Player
	order     []string // порядок регистрации игроков
	votes     map[int][]*models.Vote

	store  repository.Store
	logger *zap.Logger
}

// NewSession создает агрегат в фазе lobby со стартовыми ресурсами.
// Снимок в Store создает Registry.
func NewSession(sessionID, hostID string, store repository.Store, logger *zap.Logger) *Session {
	now := time.Now().UTC()
	return &Session{
		state: &models.Session{
			SessionID:    sessionID,
			HostID:       hostID,
			Phase:        models.PhaseLobby,
			CurrentRound: 1,
			MaxRounds:    models.DefaultMaxRounds,
			IsActive:     true,
			CreatedAt:    now,
			UpdatedAt:    now,
		},
		resources: NewResourceLedger(),
		players:   make(map[string]*models.Player),
		votes:     make(map[int][]*models.Vote),
		store:     store,
		logger:    logger.Named("Session").With(zap.String("sessionID", sessionID)),
	}
}

// hydrate заполняет агрегат из персистентного состояния.
func (s *Session) hydrate(state *models.Session, players []*models.Player, votes []*models.Vote) {
	s.state = state
	s.resources = ResourceLedgerFrom(state.Resources)
	s.players = make(map[string]*models.Player, len(players))
	s.order = s.order[:0]
	for _, p := range players {
		s.players[p.PlayerID] = p
		s.order = append(s.order, p.PlayerID)
	}
	s.votes = make(map[int][]*models.Vote)
	for _, v := range votes {
		s.votes[v.Round] = append(s.votes[v.Round], v)
	}
}

// Snapshot возвращает копию персистентного снимка для broadcast и API.
func (s *Session) Snapshot() models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() models.Session {
	snap := *s.state
	snap.Resources = s.resources.Snapshot()
	if s.state.Scenario != nil {
		sc := *s.state.Scenario
		sc.Options = append([]models.ScenarioOption(nil), s.state.Scenario.Options...)
		if s.state.Scenario.ResourceDeltas != nil {
			sc.ResourceDeltas = make(map[models.ResourceType]int, len(s.state.Scenario.ResourceDeltas))
			for rt, d := range s.state.Scenario.ResourceDeltas {
				sc.ResourceDeltas[rt] = d
			}
		}
		snap.Scenario = &sc
	}
	return snap
}

// Players возвращает игроков в порядке регистрации.
func (s *Session) Players() []models.Player {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	return out
}

// ActivePlayers возвращает число активных игроков.
func (s *Session) ActivePlayers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePlayersLocked()
}

func (s *Session) activePlayersLocked() int {
	n := 0
	for _, p := range s.players {
		if p.IsActive {
			n++
		}
	}
	return n
}

// AddPlayer регистрирует игрока с весом голоса 1.0. Возвращает
// ErrSessionFull, если активных игроков уже максимум. Повторный join с тем
// же player_id идемпотентен.
func (s *Session) AddPlayer(ctx context.Context, playerID, name, role string) (*models.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive {
		return nil, models.ErrSessionInactive
	}
	if existing, ok := s.players[playerID]; ok {
		return existing, nil
	}
	if s.activePlayersLocked() >= models.MaxPlayers {
		return nil, models.ErrSessionFull
	}

	player := &models.Player{
		PlayerID:   playerID,
		SessionID:  s.state.SessionID,
		Name:       name,
		Role:       role,
		IsActive:   true,
		VoteWeight: 1.0,
		HasVoted:   false,
	}
	if err := s.store.AddPlayer(ctx, player); err != nil {
		return nil, fmt.Errorf("ошибка сохранения игрока %s: %w", playerID, err)
	}
	s.players[playerID] = player
	s.order = append(s.order, playerID)

	if err := s.persistLocked(ctx); err != nil {
		return nil, err
	}
	s.logger.Info("player joined", zap.String("playerID", playerID), zap.String("name", name))
	return player, nil
}

// RemovePlayer мягко удаляет игрока (is_active=false), не трогая его
// историю голосов, и после этого проверяет условия конца игры.
func (s *Session) RemovePlayer(ctx context.Context, playerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return models.ErrPlayerNotFound
	}
	if player.IsActive {
		player.IsActive = false
		if err := s.store.UpdatePlayer(ctx, player); err != nil {
			return fmt.Errorf("ошибка обновления игрока %s: %w", playerID, err)
		}
	}
	s.checkEndLocked()
	if err := s.persistLocked(ctx); err != nil {
		return err
	}
	s.logger.Info("player removed", zap.String("playerID", playerID))
	return nil
}

// RecordVote записывает голос игрока за вариант текущего раунда.
// Возвращает true, когда проголосовали все активные игроки: фаза при этом
// уже переведена в results. Дубликат голоса - ErrAlreadyVoted; уникальный
// индекс (session, player, round) в хранилище страхует от гонки.
func (s *Session) RecordVote(ctx context.Context, playerID, option string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive {
		return false, models.ErrSessionInactive
	}
	player, ok := s.players[playerID]
	if !ok || !player.IsActive {
		return false, models.ErrPlayerNotFound
	}
	if player.HasVoted {
		return false, models.ErrAlreadyVoted
	}
	if s.state.Scenario == nil {
		return false, models.ErrNoScenario
	}
	// Опоздавший голос после принудительного закрытия окна отклоняется.
	if s.state.Phase == models.PhaseResults || s.state.Phase == models.PhaseElimination {
		return false, models.ErrVotingClosed
	}

	vote := &models.Vote{
		SessionID: s.state.SessionID,
		PlayerID:  playerID,
		Round:     s.state.CurrentRound,
		Option:    option,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.RecordVote(ctx, vote); err != nil {
		return false, fmt.Errorf("ошибка записи голоса: %w", err)
	}
	player.HasVoted = true
	if err := s.store.UpdatePlayer(ctx, player); err != nil {
		return false, fmt.Errorf("ошибка обновления игрока %s: %w", playerID, err)
	}
	s.votes[vote.Round] = append(s.votes[vote.Round], vote)

	allVoted := true
	for _, p := range s.players {
		if p.IsActive && !p.HasVoted {
			allVoted = false
			break
		}
	}
	if allVoted {
		s.state.Phase = models.PhaseResults
		s.state.TimerRunning = false
		s.state.TimerEndTime = nil
	}
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	s.logger.Info("vote recorded",
		zap.String("playerID", playerID),
		zap.String("option", option),
		zap.Int("round", vote.Round),
		zap.Bool("allVoted", allVoted))
	return allVoted, nil
}

// VotesForRound возвращает голоса раунда в порядке записи.
func (s *Session) VotesForRound(round int) []models.Vote {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Vote, 0, len(s.votes[round]))
	for _, v := range s.votes[round] {
		out = append(out, *v)
	}
	return out
}

// PlayerWeight возвращает текущий вес голоса игрока (1.0 для неизвестных).
func (s *Session) PlayerWeight(playerID string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.players[playerID]; ok {
		return p.VoteWeight
	}
	return 1.0
}

// AdjustVoteWeight перманентно сдвигает вес голоса игрока (эффект
// скрытого стимула).
func (s *Session) AdjustVoteWeight(ctx context.Context, playerID string, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	player, ok := s.players[playerID]
	if !ok {
		return models.ErrPlayerNotFound
	}
	player.VoteWeight += delta
	if err := s.store.UpdatePlayer(ctx, player); err != nil {
		return fmt.Errorf("ошибка обновления веса голоса %s: %w", playerID, err)
	}
	return nil
}

// ApplyResourceChanges применяет дельты атомарно: сначала все пять дельт,
// затем единственная проверка на исчерпание. Если хотя бы один ресурс
// достиг нуля, сессия немедленно помечается неактивной.
func (s *Session) ApplyResourceChanges(ctx context.Context, deltas map[models.ResourceType]int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	depleted := s.resources.Apply(deltas)
	if depleted {
		s.state.IsActive = false
	}
	if err := s.persistLocked(ctx); err != nil {
		return depleted, err
	}
	return depleted, nil
}

// CheckEnd проверяет условия конца игры: активных игроков <= 1, раунд
// достиг максимума или любой ресурс исчерпан. Неактивность монотонна.
func (s *Session) CheckEnd(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wasActive := s.state.IsActive
	ended := s.checkEndLocked()
	if ended && wasActive != s.state.IsActive {
		if err := s.persistLocked(ctx); err != nil {
			return ended, err
		}
	}
	return ended, nil
}

func (s *Session) checkEndLocked() bool {
	if !s.state.IsActive {
		return true
	}
	switch {
	case s.activePlayersLocked() <= 1:
		s.state.IsActive = false
	case s.state.CurrentRound >= s.state.MaxRounds:
		s.state.IsActive = false
	case s.resources.Depleted():
		s.state.IsActive = false
	default:
		return false
	}
	s.state.TimerRunning = false
	s.state.TimerEndTime = nil
	s.logger.Info("game ended",
		zap.Int("round", s.state.CurrentRound),
		zap.Int("activePlayers", s.activePlayersLocked()))
	return true
}

// StartGame переводит сессию из lobby в фазу сценария.
func (s *Session) StartGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive {
		return models.ErrSessionInactive
	}
	if s.state.Phase != models.PhaseLobby {
		return nil // уже запущена
	}
	s.state.Phase = models.PhaseScenario
	return s.persistLocked(ctx)
}

// SetScenario устанавливает сценарий текущего раунда (без итога).
func (s *Session) SetScenario(ctx context.Context, scenario *models.Scenario) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive {
		return models.ErrSessionInactive
	}
	s.state.Scenario = scenario
	s.state.Phase = models.PhaseScenario
	return s.persistLocked(ctx)
}

// BeginVoting открывает окно голосования с дедлайном таймера. Переход
// допустим только из фазы сценария и возвращает false, если окно уже
// открыто или раунд ушел дальше - два одновременных подключения последнего
// игрока схлопываются в одно открытие, как у FinishVoting.
func (s *Session) BeginVoting(ctx context.Context, deadline time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive {
		return false, models.ErrSessionInactive
	}
	if s.state.Scenario == nil {
		return false, models.ErrNoScenario
	}
	if s.state.Phase != models.PhaseScenario {
		return false, nil
	}
	s.state.Phase = models.PhaseVoting
	s.state.TimerRunning = true
	s.state.TimerEndTime = &deadline
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// FinishVoting принудительно завершает голосование (истечение таймера или
// endTimer). Переход идемпотентен: если фаза уже ушла из voting, возвращает
// false и ничего не меняет - таймер и полный состав голосов гоняются за
// одно и то же поле фазы.
func (s *Session) FinishVoting(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive || s.state.Phase != models.PhaseVoting {
		return false, nil
	}
	s.state.Phase = models.PhaseResults
	s.state.TimerRunning = false
	s.state.TimerEndTime = nil
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// SetOutcome фиксирует итог раунда на сценарии не более одного раза и
// атомарно применяет дельты ресурсов. Возвращает признак конца игры.
func (s *Session) SetOutcome(ctx context.Context, narrative string, deltas map[models.ResourceType]int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state.Scenario == nil {
		return false, models.ErrNoScenario
	}
	if s.state.Scenario.HasOutcome() {
		return !s.state.IsActive, nil
	}
	s.state.Scenario.Outcome = narrative
	s.state.Scenario.ResourceDeltas = deltas
	if s.resources.Apply(deltas) {
		s.state.IsActive = false
	}
	s.checkEndLocked()
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	return !s.state.IsActive, nil
}

// MarkElimination переводит results -> elimination перед удалением игрока.
func (s *Session) MarkElimination(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.state.IsActive || s.state.Phase != models.PhaseResults {
		return nil
	}
	s.state.Phase = models.PhaseElimination
	return s.persistLocked(ctx)
}

// AdvanceRound закрывает текущий раунд: если условие конца выполнено,
// сессия гаснет; иначе счетчик раундов растет, флаги has_voted
// сбрасываются, сценарий очищается и фаза возвращается в scenario.
func (s *Session) AdvanceRound(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.checkEndLocked() {
		if err := s.persistLocked(ctx); err != nil {
			return true, err
		}
		return true, nil
	}

	s.state.CurrentRound++
	s.state.Scenario = nil
	s.state.Phase = models.PhaseScenario
	for _, p := range s.players {
		if p.HasVoted {
			p.HasVoted = false
			if err := s.store.UpdatePlayer(ctx, p); err != nil {
				return false, fmt.Errorf("ошибка сброса флага голосования %s: %w", p.PlayerID, err)
			}
		}
	}
	if err := s.persistLocked(ctx); err != nil {
		return false, err
	}
	s.logger.Info("round advanced", zap.Int("round", s.state.CurrentRound))
	return false, nil
}

// Reload перечитывает персистентное состояние. Используется координатором
// итогов внутри блокировки, чтобы увидеть итог, закоммиченный
// конкурирующим вызовом.
func (s *Session) Reload(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.store.GetSession(ctx, s.state.SessionID)
	if err != nil {
		return fmt.Errorf("ошибка перечитывания сессии %s: %w", s.state.SessionID, err)
	}
	players, err := s.store.GetPlayers(ctx, s.state.SessionID)
	if err != nil {
		return fmt.Errorf("ошибка перечитывания игроков %s: %w", s.state.SessionID, err)
	}
	votes, err := s.store.GetVotes(ctx, s.state.SessionID, state.CurrentRound)
	if err != nil {
		return fmt.Errorf("ошибка перечитывания голосов %s: %w", s.state.SessionID, err)
	}
	s.hydrate(state, players, votes)
	return nil
}

// persistLocked сохраняет полный снимок агрегата. Вызывается под mu.
func (s *Session) persistLocked(ctx context.Context) error {
	s.state.Resources = s.resources.Snapshot()
	s.state.UpdatedAt = time.Now().UTC()
	if err := s.store.SaveSession(ctx, s.state); err != nil {
		s.logger.Error("failed to persist session", zap.Error(err))
		return fmt.Errorf("ошибка сохранения сессии %s: %w", s.state.SessionID, err)
	}
	return nil
}
