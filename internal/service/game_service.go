package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"council-server/internal/constants"
	"council-server/internal/game"
	"council-server/internal/metrics"
	"council-server/internal/models"
	"council-server/pkg/ai"
)

// Окна голосования: в первом раунде игроки впервые читают сеттинг.
const (
	firstRoundVotingWindow = 90 * time.Second
	votingWindow           = 60 * time.Second
)

// GameService оркестрирует игровой цикл: создание и join сессий, запуск
// игры, генерацию сценариев, прием голосов и смену раундов. Все broadcast'ы
// выполняются после персистентной записи, которая их породила.
type GameService struct {
	registry  *game.Registry
	generator Generator
	notifier  Notifier
	timer     VoteTimer
	incentive *IncentiveService
	logger    *zap.Logger

	mu        sync.Mutex
	connected map[string]int  // session_id -> число живых соединений
	loading   map[string]bool // эфемерный флаг "идет генерация"
}

// NewGameService создает сервис игрового цикла.
func NewGameService(
	registry *game.Registry,
	generator Generator,
	notifier Notifier,
	timer VoteTimer,
	incentive *IncentiveService,
	logger *zap.Logger,
) *GameService {
	return &GameService{
		registry:  registry,
		generator: generator,
		notifier:  notifier,
		timer:     timer,
		incentive: incentive,
		logger:    logger.Named("GameService"),
	}
}

func (s *GameService) init() {
	if s.connected == nil {
		s.connected = make(map[string]int)
	}
	if s.loading == nil {
		s.loading = make(map[string]bool)
	}
}

// CreateGame создает новую сессию. Пустой sessionID заменяется на UUID.
func (s *GameService) CreateGame(ctx context.Context, sessionID, hostID string) (models.Session, error) {
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	session, err := s.registry.Create(ctx, sessionID, hostID)
	if err != nil {
		return models.Session{}, err
	}
	metrics.ActiveSessions.Inc()
	return session.Snapshot(), nil
}

// JoinGame регистрирует игрока и рассылает player_joined.
func (s *GameService) JoinGame(ctx context.Context, sessionID, playerID, name, role string) (*models.Player, error) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	player, err := session.AddPlayer(ctx, playerID, name, role)
	if err != nil {
		return nil, err
	}
	s.notifier.BroadcastToSession(sessionID, constants.WSEventPlayerJoined, player)
	return player, nil
}

// StartGame запускает игру (только хост): фаза lobby -> scenario, затем
// генерация сценария первого раунда и, когда все подключены, открытие
// окна голосования.
func (s *GameService) StartGame(ctx context.Context, sessionID, playerID string) error {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return err
	}
	if session.Snapshot().HostID != playerID {
		return models.ErrNotHost
	}
	if err := session.StartGame(ctx); err != nil {
		return err
	}
	s.notifier.BroadcastToSession(sessionID, constants.WSEventGameStarted, session.Snapshot())
	if err := s.prepareRound(ctx, session, ""); err != nil {
		return err
	}
	return nil
}

// Vote принимает голос игрока. Когда проголосовали все активные игроки,
// таймер останавливается и фаза уже переведена в results.
func (s *GameService) Vote(ctx context.Context, sessionID, playerID, option string) error {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return err
	}
	allVoted, err := session.RecordVote(ctx, playerID, option)
	if err != nil {
		return err
	}
	metrics.VotesRecorded.Inc()

	// Голос за целевой вариант скрытого стимула перманентно усиливает
	// вес голоса игрока.
	s.applyIncentiveBonus(ctx, session, sessionID, playerID, option)

	if allVoted {
		s.timer.Stop(sessionID)
		snap := session.Snapshot()
		s.notifier.BroadcastToSession(sessionID, constants.WSEventVotingComplete, map[string]interface{}{
			"round": snap.CurrentRound,
		})
		s.notifier.BroadcastToSession(sessionID, constants.WSEventPhaseChange, snap)
	}
	return nil
}

func (s *GameService) applyIncentiveBonus(ctx context.Context, session *game.Session, sessionID, playerID, option string) {
	snap := session.Snapshot()
	incentive, err := s.incentive.incentiveForRound(ctx, sessionID, snap.CurrentRound)
	if err != nil || incentive == nil {
		return
	}
	if incentive.PlayerID != playerID || incentive.TargetOption != option {
		return
	}
	if err := session.AdjustVoteWeight(ctx, playerID, incentive.BonusWeight); err != nil {
		s.logger.Warn("failed to apply incentive bonus",
			zap.String("sessionID", sessionID),
			zap.String("playerID", playerID),
			zap.Error(err))
	}
}

// ForceAdvance - путь истечения таймера: принудительный идемпотентный
// переход voting -> results, не дожидаясь полного участия.
func (s *GameService) ForceAdvance(ctx context.Context, sessionID string) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		s.logger.Warn("force advance for unknown session", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}
	changed, err := session.FinishVoting(ctx)
	if err != nil {
		s.logger.Error("failed to finish voting", zap.String("sessionID", sessionID), zap.Error(err))
		return
	}
	if !changed {
		return // фаза уже ушла из voting, таймер опоздал
	}
	metrics.TimerExpirations.Inc()
	s.notifier.BroadcastToSession(sessionID, constants.WSEventPhaseChange, session.Snapshot())
}

// NextRound закрывает раунд после показа итога. Непустой eliminatePlayerID
// проводит раунд через фазу elimination. При конце игры рассылается
// game_ended, иначе генерируется сценарий следующего раунда.
func (s *GameService) NextRound(ctx context.Context, sessionID, eliminatePlayerID string) error {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return err
	}

	if eliminatePlayerID != "" {
		if err := session.MarkElimination(ctx); err != nil {
			return err
		}
		s.notifier.BroadcastToSession(sessionID, constants.WSEventPhaseChange, session.Snapshot())
		if err := session.RemovePlayer(ctx, eliminatePlayerID); err != nil {
			return err
		}
	}

	prevOutcome := ""
	if snap := session.Snapshot(); snap.Scenario.HasOutcome() {
		prevOutcome = snap.Scenario.Outcome
	}

	ended, err := session.AdvanceRound(ctx)
	if err != nil {
		return err
	}
	if ended {
		s.timer.Stop(sessionID)
		metrics.ActiveSessions.Dec()
		s.notifier.BroadcastToSession(sessionID, constants.WSEventGameEnded, session.Snapshot())
		return nil
	}
	return s.prepareRound(ctx, session, prevOutcome)
}

// prepareRound генерирует сценарий и варианты текущего раунда, сохраняет
// их на сессии и открывает окно голосования, если все игроки подключены.
func (s *GameService) prepareRound(ctx context.Context, session *game.Session, prevOutcome string) error {
	snap := session.Snapshot()
	sessionID := snap.SessionID
	s.setLoading(sessionID, true)
	defer s.setLoading(sessionID, false)

	gameCtx := ai.GameContext{
		Round:           snap.CurrentRound,
		MaxRounds:       snap.MaxRounds,
		Resources:       snap.Resources,
		PlayerCount:     session.ActivePlayers(),
		PreviousOutcome: prevOutcome,
	}

	metrics.GeneratorCalls.WithLabelValues("scenario").Inc()
	scenario, err := s.generator.GenerateScenario(ctx, gameCtx)
	if err != nil {
		metrics.GeneratorFailures.WithLabelValues("scenario").Inc()
		s.logger.Warn("scenario generation failed, using fallback",
			zap.String("sessionID", sessionID), zap.Error(err))
		scenario = ai.FallbackScenario()
	}

	metrics.GeneratorCalls.WithLabelValues("options").Inc()
	options, err := s.generator.GenerateOptions(ctx, scenario.Title, scenario.Description)
	if err != nil {
		metrics.GeneratorFailures.WithLabelValues("options").Inc()
		s.logger.Warn("options generation failed, using fallback",
			zap.String("sessionID", sessionID), zap.Error(err))
		options = ai.FallbackOptions()
	}

	scenarioModel := &models.Scenario{
		Title:       scenario.Title,
		Description: scenario.Description,
		Options:     make([]models.ScenarioOption, 0, len(options)),
	}
	for i, text := range options {
		scenarioModel.Options = append(scenarioModel.Options, models.ScenarioOption{
			ID:   strconv.Itoa(i + 1),
			Text: text,
		})
	}
	if err := session.SetScenario(ctx, scenarioModel); err != nil {
		return fmt.Errorf("ошибка установки сценария: %w", err)
	}
	s.notifier.BroadcastToSession(sessionID, constants.WSEventPhaseChange, session.Snapshot())

	s.maybeBeginVoting(ctx, session)
	return nil
}

// PlayerConnected вызывается хабом после регистрации соединения. Когда
// подключены все ожидаемые игроки и сессия в фазе сценария, стартует
// таймер голосования.
func (s *GameService) PlayerConnected(ctx context.Context, sessionID string, connections int) {
	s.mu.Lock()
	s.init()
	s.connected[sessionID] = connections
	s.mu.Unlock()

	session, ok := s.registry.Get(sessionID)
	if !ok {
		return
	}
	s.maybeBeginVoting(ctx, session)
}

// PlayerDisconnected вызывается хабом после снятия соединения. Когда живых
// соединений не осталось, таймер отменяется и эфемерное состояние сессии
// сбрасывается; персистентное состояние не трогаем.
func (s *GameService) PlayerDisconnected(ctx context.Context, sessionID string, connections int) {
	s.mu.Lock()
	s.init()
	s.connected[sessionID] = connections
	empty := connections == 0
	if empty {
		delete(s.loading, sessionID)
		delete(s.connected, sessionID)
	}
	s.mu.Unlock()

	if empty {
		s.timer.Stop(sessionID)
	}
}

func (s *GameService) maybeBeginVoting(ctx context.Context, session *game.Session) {
	snap := session.Snapshot()
	if !snap.IsActive || snap.Phase != models.PhaseScenario || snap.Scenario == nil {
		return
	}

	s.mu.Lock()
	s.init()
	connections := s.connected[snap.SessionID]
	s.mu.Unlock()
	if connections < session.ActivePlayers() {
		return
	}

	window := votingWindow
	if snap.CurrentRound == 1 {
		window = firstRoundVotingWindow
	}
	deadline := time.Now().UTC().Add(window)
	started, err := session.BeginVoting(ctx, deadline)
	if err != nil {
		s.logger.Error("failed to begin voting", zap.String("sessionID", snap.SessionID), zap.Error(err))
		return
	}
	if !started {
		return // окно уже открыл конкурирующий вызов
	}
	s.timer.Start(snap.SessionID, window)
	s.notifier.BroadcastToSession(snap.SessionID, constants.WSEventTimerStarted, map[string]interface{}{
		"round":        snap.CurrentRound,
		"duration_sec": int(window.Seconds()),
		"deadline":     deadline,
	})
	s.notifier.BroadcastToSession(snap.SessionID, constants.WSEventPhaseChange, session.Snapshot())
}

// setLoading переключает эфемерный флаг генерации и рассылает loading_state.
func (s *GameService) setLoading(sessionID string, loading bool) {
	s.mu.Lock()
	s.init()
	if loading {
		s.loading[sessionID] = true
	} else {
		delete(s.loading, sessionID)
	}
	s.mu.Unlock()
	s.notifier.BroadcastToSession(sessionID, constants.WSEventLoadingState, map[string]interface{}{
		"loading": loading,
	})
}

// Session возвращает снимок сессии для API.
func (s *GameService) Session(ctx context.Context, sessionID string) (models.Session, []models.Player, error) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return models.Session{}, nil, err
	}
	return session.Snapshot(), session.Players(), nil
}

// Votes возвращает журнал голосов раунда.
func (s *GameService) Votes(ctx context.Context, sessionID string, round int) ([]models.Vote, error) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return session.VotesForRound(round), nil
}
