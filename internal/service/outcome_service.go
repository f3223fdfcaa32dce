package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"council-server/internal/constants"
	"council-server/internal/game"
	"council-server/internal/metrics"
	"council-server/internal/models"
	"council-server/pkg/ai"
)

// OutcomeService - координатор разрешения итога раунда. Гарантирует не
// более одного обращения к генератору на (сессия, раунд) даже под
// конкурирующими дублирующими запросами: fast path по уже записанному
// итогу, затем per-session мьютекс с перечитыванием персистентного
// состояния внутри блокировки (double-checked locking).
type OutcomeService struct {
	registry  *game.Registry
	generator Generator
	notifier  Notifier
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-session
}

// NewOutcomeService создает координатор итогов.
func NewOutcomeService(registry *game.Registry, generator Generator, notifier Notifier, logger *zap.Logger) *OutcomeService {
	return &OutcomeService{
		registry:  registry,
		generator: generator,
		notifier:  notifier,
		logger:    logger.Named("OutcomeService"),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *OutcomeService) lockFor(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// ResolveOutcome подводит итог текущего раунда. Все конкурирующие вызовы
// получают один и тот же результат; гонка никогда не всплывает как ошибка.
func (s *OutcomeService) ResolveOutcome(ctx context.Context, sessionID string) (*models.OutcomeResult, error) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	// Fast path: итог уже зафиксирован, блокировка не нужна.
	if snap := session.Snapshot(); snap.Scenario.HasOutcome() {
		return s.buildResult(session, snap), nil
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	// Внутри блокировки перечитываем персистентное состояние: итог мог
	// закоммитить конкурирующий вызов, успевший раньше.
	if err := session.Reload(ctx); err != nil {
		return nil, err
	}
	snap := session.Snapshot()
	if snap.Scenario.HasOutcome() {
		return s.buildResult(session, snap), nil
	}
	if snap.Scenario == nil {
		return nil, models.ErrNoScenario
	}
	// Итог подводится только после закрытия окна голосования (полное
	// участие или таймер): ранний запрос не должен закоммитить раунд на
	// частичных голосах.
	if snap.Phase != models.PhaseResults {
		return nil, models.ErrVotingInProgress
	}

	winning, counts := s.tally(session, snap)

	optionTexts := make([]string, 0, len(snap.Scenario.Options))
	for _, opt := range snap.Scenario.Options {
		optionTexts = append(optionTexts, opt.Text)
	}
	winningText := winning
	if opt, ok := snap.Scenario.OptionByID(winning); ok {
		winningText = opt.Text
	}

	metrics.GeneratorCalls.WithLabelValues("outcome").Inc()
	outcome, err := s.generator.GenerateOutcome(ctx, ai.OutcomeRequest{
		Title:         snap.Scenario.Title,
		Description:   snap.Scenario.Description,
		Options:       optionTexts,
		WinningOption: winningText,
		VoteCounts:    counts,
	})
	if err != nil {
		// Отказ генератора не должен застопорить игру и не должен
		// оставить сценарий частично обновленным: подставляем
		// детерминированный fallback с нулевыми дельтами.
		metrics.GeneratorFailures.WithLabelValues("outcome").Inc()
		s.logger.Warn("outcome generation failed, using fallback",
			zap.String("sessionID", sessionID), zap.Error(err))
		outcome = ai.FallbackOutcome()
	}

	ended, err := session.SetOutcome(ctx, outcome.Narrative, outcome.ResourceDeltas)
	if err != nil {
		return nil, err
	}

	// Broadcast строго после персистентной записи итога.
	finalSnap := session.Snapshot()
	s.notifier.BroadcastToSession(sessionID, constants.WSEventPhaseChange, finalSnap)
	if ended {
		s.notifier.BroadcastToSession(sessionID, constants.WSEventGameEnded, finalSnap)
	}

	return s.buildResult(session, finalSnap), nil
}

// tally считает взвешенные голоса текущего раунда. Победитель - вариант с
// наибольшей суммой весов; при равенстве побеждает вариант, встреченный в
// журнале голосов раньше (стабильный порядок вставки, не случайный).
// Раунд без единого голоса разрешается в пользу первого варианта сценария.
func (s *OutcomeService) tally(session *game.Session, snap models.Session) (string, map[string]float64) {
	votes := session.VotesForRound(snap.CurrentRound)
	counts := make(map[string]float64, len(snap.Scenario.Options))
	firstSeen := make(map[string]int, len(snap.Scenario.Options))

	for i, vote := range votes {
		if _, ok := firstSeen[vote.Option]; !ok {
			firstSeen[vote.Option] = i
		}
		counts[vote.Option] += session.PlayerWeight(vote.PlayerID)
	}

	winning := ""
	for option, count := range counts {
		if winning == "" {
			winning = option
			continue
		}
		best := counts[winning]
		if count > best || (count == best && firstSeen[option] < firstSeen[winning]) {
			winning = option
		}
	}
	if winning == "" && len(snap.Scenario.Options) > 0 {
		winning = snap.Scenario.Options[0].ID
	}
	return winning, counts
}

func (s *OutcomeService) buildResult(session *game.Session, snap models.Session) *models.OutcomeResult {
	winning, counts := s.tally(session, snap)
	return &models.OutcomeResult{
		Round:          snap.CurrentRound,
		WinningOption:  winning,
		VoteCounts:     counts,
		Narrative:      snap.Scenario.Outcome,
		ResourceDeltas: snap.Scenario.ResourceDeltas,
		Resources:      snap.Resources,
		GameEnded:      !snap.IsActive,
	}
}
