package repository

import (
	"context"

	"council-server/internal/models"
)

// Store описывает контракт хранилища игровых сессий. Ядро не привязано к
// конкретной технологии: важно лишь, что SaveSession+GetSession
// round-trip'ят полный снимок, а конкурирующие SaveSession для одной
// сессии разрешаются как last-write-wins по целому снимку.
type Store interface {
	// CreateSession вставляет новую сессию. Повторная вставка того же
	// session_id возвращает ошибку.
	CreateSession(ctx context.Context, session *models.Session) error
	// GetSession возвращает снимок сессии или models.ErrNotFound.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	// SaveSession перезаписывает полный снимок сессии.
	SaveSession(ctx context.Context, session *models.Session) error

	AddPlayer(ctx context.Context, player *models.Player) error
	UpdatePlayer(ctx context.Context, player *models.Player) error
	GetPlayers(ctx context.Context, sessionID string) ([]*models.Player, error)

	// RecordVote добавляет запись в append-only журнал голосов.
	// Нарушение уникальности (session, player, round) - ошибка.
	RecordVote(ctx context.Context, vote *models.Vote) error
	// GetVotes возвращает голоса раунда в порядке записи.
	GetVotes(ctx context.Context, sessionID string, round int) ([]*models.Vote, error)

	AddIncentive(ctx context.Context, incentive *models.SecretIncentive) error
	// GetIncentive возвращает стимул раунда или models.ErrNotFound.
	GetIncentive(ctx context.Context, sessionID string, round int) (*models.SecretIncentive, error)
}
