package service

import (
	"context"
	"time"

	"council-server/pkg/ai"
)

// Generator - потребляемый интерфейс генеративно-текстового коллаборатора.
// Реализуется pkg/ai.Client; в тестах подменяется моком.
type Generator interface {
	GenerateScenario(ctx context.Context, gameCtx ai.GameContext) (*ai.ScenarioResult, error)
	GenerateOptions(ctx context.Context, title, description string) ([]string, error)
	GenerateOutcome(ctx context.Context, req ai.OutcomeRequest) (*ai.OutcomeResult, error)
	GenerateIncentive(ctx context.Context, req ai.IncentiveRequest) (*ai.IncentiveResult, error)
}

// Notifier рассылает событие всем живым соединениям сессии. Вызывается
// только после персистентной записи, породившей событие; ошибка отправки
// одному клиенту не мешает остальным и не поднимается к вызывающему.
type Notifier interface {
	BroadcastToSession(sessionID, event string, payload interface{})
	SendToPlayer(sessionID, playerID, event string, payload interface{})
}

// VoteTimer управляет таймером окна голосования: на сессию не более
// одного работающего таймера, Start сначала отменяет предыдущий.
type VoteTimer interface {
	Start(sessionID string, d time.Duration)
	Stop(sessionID string)
}

// Compile-time check: pkg/ai.Client реализует Generator.
var _ Generator = (*ai.Client)(nil)
