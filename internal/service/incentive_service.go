package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"

	"go.uber.org/zap"

	"council-server/internal/game"
	"council-server/internal/metrics"
	"council-server/internal/models"
	"council-server/internal/repository"
	"council-server/pkg/ai"
)

// IncentiveService назначает скрытый стимул: ровно один на (сессия,
// раунд), цель выбирается равновероятно среди активных игроков. Генерация
// защищена single-flight блокировкой с гранулярностью (сессия, раунд).
// Payload стимула возвращается только целевому игроку - это инвариант
// конфиденциальности, а не удобство.
type IncentiveService struct {
	registry  *game.Registry
	store     repository.Store
	generator Generator
	logger    *zap.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex // ключ session_id/round
}

// NewIncentiveService создает сервис скрытых стимулов.
func NewIncentiveService(registry *game.Registry, store repository.Store, generator Generator, logger *zap.Logger) *IncentiveService {
	return &IncentiveService{
		registry:  registry,
		store:     store,
		generator: generator,
		logger:    logger.Named("IncentiveService"),
		locks:     make(map[string]*sync.Mutex),
	}
}

func (s *IncentiveService) lockFor(sessionID string, round int) *sync.Mutex {
	key := fmt.Sprintf("%s/%d", sessionID, round)
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[key] = lock
	}
	return lock
}

// AssignIncentive гарантирует существование ровно одного стимула для
// текущего раунда сессии и возвращает его. Конкурирующие вызовы коллапсируют
// в одну генерацию и получают одинаковый результат.
func (s *IncentiveService) AssignIncentive(ctx context.Context, sessionID string) (*models.SecretIncentive, error) {
	session, err := s.registry.LoadOrGet(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	snap := session.Snapshot()
	if snap.Scenario == nil {
		return nil, models.ErrNoScenario
	}
	round := snap.CurrentRound

	// Fast path без блокировки.
	if incentive, err := s.incentiveForRound(ctx, sessionID, round); err != nil {
		return nil, err
	} else if incentive != nil {
		return incentive, nil
	}

	lock := s.lockFor(sessionID, round)
	lock.Lock()
	defer lock.Unlock()

	// Повторная проверка внутри блокировки.
	if incentive, err := s.incentiveForRound(ctx, sessionID, round); err != nil {
		return nil, err
	} else if incentive != nil {
		return incentive, nil
	}

	target, err := s.pickTarget(session)
	if err != nil {
		return nil, err
	}

	optionTexts := make([]string, 0, len(snap.Scenario.Options))
	for _, opt := range snap.Scenario.Options {
		optionTexts = append(optionTexts, opt.Text)
	}

	metrics.GeneratorCalls.WithLabelValues("incentive").Inc()
	result, err := s.generator.GenerateIncentive(ctx, ai.IncentiveRequest{
		Title:       snap.Scenario.Title,
		Description: snap.Scenario.Description,
		Options:     optionTexts,
	})
	if err != nil {
		metrics.GeneratorFailures.WithLabelValues("incentive").Inc()
		s.logger.Warn("incentive generation failed, using fallback",
			zap.String("sessionID", sessionID), zap.Error(err))
		result = ai.FallbackIncentive()
	}

	incentive := &models.SecretIncentive{
		SessionID:    sessionID,
		Round:        round,
		PlayerID:     target,
		Text:         result.Text,
		TargetOption: result.TargetOption,
		BonusWeight:  ai.ClampBonusWeight(result.BonusWeight),
	}
	if err := s.store.AddIncentive(ctx, incentive); err != nil {
		return nil, fmt.Errorf("ошибка сохранения стимула: %w", err)
	}
	s.logger.Info("incentive assigned",
		zap.String("sessionID", sessionID),
		zap.Int("round", round))
	return incentive, nil
}

// IncentiveFor возвращает payload стимула раунда только если запрашивающий
// и есть целевой игрок; всем остальным - пустой результат, даже если они
// знают чужой player_id.
func (s *IncentiveService) IncentiveFor(ctx context.Context, sessionID string, round int, playerID string) (*models.SecretIncentive, error) {
	incentive, err := s.incentiveForRound(ctx, sessionID, round)
	if err != nil {
		return nil, err
	}
	if incentive == nil || incentive.PlayerID != playerID {
		return nil, nil
	}
	return incentive, nil
}

// incentiveForRound возвращает стимул раунда или nil, если его еще нет.
func (s *IncentiveService) incentiveForRound(ctx context.Context, sessionID string, round int) (*models.SecretIncentive, error) {
	incentive, err := s.store.GetIncentive(ctx, sessionID, round)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("ошибка чтения стимула: %w", err)
	}
	return incentive, nil
}

func (s *IncentiveService) pickTarget(session *game.Session) (string, error) {
	var active []string
	for _, p := range session.Players() {
		if p.IsActive {
			active = append(active, p.PlayerID)
		}
	}
	if len(active) == 0 {
		return "", models.ErrPlayerNotFound
	}
	return active[rand.Intn(len(active))], nil
}
