package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"council-server/internal/models"
)

// Compile-time check
var _ Store = (*PgStore)(nil)

// PgStore - Postgres-реализация Store поверх pgxpool. Снимок сессии хранится
// одной строкой: ресурсы и текущий сценарий сериализуются в JSONB, журнал
// голосов и стимулы - отдельными таблицами с уникальными индексами,
// обеспечивающими инварианты на уровне схемы.
type PgStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPgStore создает Postgres-хранилище.
func NewPgStore(pool *pgxpool.Pool, logger *zap.Logger) *PgStore {
	return &PgStore{
		pool:   pool,
		logger: logger.Named("PgStore"),
	}
}

// sessionRow - строка таблицы games с сырыми JSONB колонками.
type sessionRow struct {
	SessionID     string     `db:"session_id"`
	HostID        string     `db:"host_id"`
	Phase         string     `db:"phase"`
	CurrentRound  int        `db:"current_round"`
	MaxRounds     int        `db:"max_rounds"`
	ResourcesJSON []byte     `db:"resources"`
	ScenarioJSON  []byte     `db:"scenario"`
	IsActive      bool       `db:"is_active"`
	TimerRunning  bool       `db:"timer_running"`
	TimerEndTime  *time.Time `db:"timer_end_time"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

func (r *sessionRow) toSession() (*models.Session, error) {
	session := models.Session{
		SessionID:    r.SessionID,
		HostID:       r.HostID,
		Phase:        models.GamePhase(r.Phase),
		CurrentRound: r.CurrentRound,
		MaxRounds:    r.MaxRounds,
		IsActive:     r.IsActive,
		TimerRunning: r.TimerRunning,
		TimerEndTime: r.TimerEndTime,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
	if len(r.ResourcesJSON) > 0 {
		if err := json.Unmarshal(r.ResourcesJSON, &session.Resources); err != nil {
			return nil, fmt.Errorf("ошибка демаршалинга resources: %w", err)
		}
	}
	if len(r.ScenarioJSON) > 0 && string(r.ScenarioJSON) != "null" {
		session.Scenario = &models.Scenario{}
		if err := json.Unmarshal(r.ScenarioJSON, session.Scenario); err != nil {
			return nil, fmt.Errorf("ошибка демаршалинга scenario: %w", err)
		}
	}
	return &session, nil
}

func marshalSession(session *models.Session) (resources, scenario []byte, err error) {
	resources, err = json.Marshal(session.Resources)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка маршалинга resources: %w", err)
	}
	scenario, err = json.Marshal(session.Scenario)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка маршалинга scenario: %w", err)
	}
	return resources, scenario, nil
}

func (s *PgStore) CreateSession(ctx context.Context, session *models.Session) error {
	resources, scenario, err := marshalSession(session)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO games (session_id, host_id, phase, current_round, max_rounds,
			resources, scenario, is_active, timer_running, timer_end_time,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = s.pool.Exec(ctx, query,
		session.SessionID, session.HostID, session.Phase,
		session.CurrentRound, session.MaxRounds,
		resources, scenario,
		session.IsActive, session.TimerRunning, session.TimerEndTime,
		session.CreatedAt, session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка создания сессии: %w", err)
	}
	return nil
}

func (s *PgStore) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	query := `
		SELECT session_id, host_id, phase, current_round, max_rounds,
			resources, scenario, is_active, timer_running, timer_end_time,
			created_at, updated_at
		FROM games
		WHERE session_id = $1
	`
	var row sessionRow
	if err := pgxscan.Get(ctx, s.pool, &row, query, sessionID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения сессии: %w", err)
	}
	return row.toSession()
}

func (s *PgStore) SaveSession(ctx context.Context, session *models.Session) error {
	resources, scenario, err := marshalSession(session)
	if err != nil {
		return err
	}

	query := `
		UPDATE games
		SET phase = $2, current_round = $3, max_rounds = $4,
			resources = $5, scenario = $6, is_active = $7,
			timer_running = $8, timer_end_time = $9, updated_at = $10
		WHERE session_id = $1
	`
	tag, err := s.pool.Exec(ctx, query,
		session.SessionID, session.Phase,
		session.CurrentRound, session.MaxRounds,
		resources, scenario,
		session.IsActive, session.TimerRunning, session.TimerEndTime,
		session.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения сессии: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PgStore) AddPlayer(ctx context.Context, player *models.Player) error {
	query := `
		INSERT INTO players (player_id, session_id, name, role, is_active, vote_weight, has_voted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := s.pool.Exec(ctx, query,
		player.PlayerID, player.SessionID, player.Name, player.Role,
		player.IsActive, player.VoteWeight, player.HasVoted,
	)
	if err != nil {
		return fmt.Errorf("ошибка добавления игрока: %w", err)
	}
	return nil
}

func (s *PgStore) UpdatePlayer(ctx context.Context, player *models.Player) error {
	query := `
		UPDATE players
		SET name = $3, role = $4, is_active = $5, vote_weight = $6, has_voted = $7
		WHERE session_id = $1 AND player_id = $2
	`
	tag, err := s.pool.Exec(ctx, query,
		player.SessionID, player.PlayerID, player.Name, player.Role,
		player.IsActive, player.VoteWeight, player.HasVoted,
	)
	if err != nil {
		return fmt.Errorf("ошибка обновления игрока: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *PgStore) GetPlayers(ctx context.Context, sessionID string) ([]*models.Player, error) {
	query := `
		SELECT player_id, session_id, name, role, is_active, vote_weight, has_voted
		FROM players
		WHERE session_id = $1
		ORDER BY joined_at
	`
	var players []*models.Player
	if err := pgxscan.Select(ctx, s.pool, &players, query, sessionID); err != nil {
		return nil, fmt.Errorf("ошибка чтения игроков: %w", err)
	}
	return players, nil
}

func (s *PgStore) RecordVote(ctx context.Context, vote *models.Vote) error {
	query := `
		INSERT INTO votes (session_id, player_id, round, option, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.pool.Exec(ctx, query,
		vote.SessionID, vote.PlayerID, vote.Round, vote.Option, vote.CreatedAt,
	)
	if err != nil {
		// Уникальный индекс (session_id, player_id, round) превращает
		// повторный голос в ошибку на уровне схемы.
		return fmt.Errorf("ошибка записи голоса: %w", err)
	}
	return nil
}

func (s *PgStore) GetVotes(ctx context.Context, sessionID string, round int) ([]*models.Vote, error) {
	query := `
		SELECT session_id, player_id, round, option, created_at
		FROM votes
		WHERE session_id = $1 AND round = $2
		ORDER BY id
	`
	var votes []*models.Vote
	if err := pgxscan.Select(ctx, s.pool, &votes, query, sessionID, round); err != nil {
		return nil, fmt.Errorf("ошибка чтения голосов: %w", err)
	}
	return votes, nil
}

func (s *PgStore) AddIncentive(ctx context.Context, incentive *models.SecretIncentive) error {
	query := `
		INSERT INTO secret_incentives (session_id, round, player_id, text, target_option, bonus_weight)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.pool.Exec(ctx, query,
		incentive.SessionID, incentive.Round, incentive.PlayerID,
		incentive.Text, incentive.TargetOption, incentive.BonusWeight,
	)
	if err != nil {
		return fmt.Errorf("ошибка сохранения стимула: %w", err)
	}
	return nil
}

func (s *PgStore) GetIncentive(ctx context.Context, sessionID string, round int) (*models.SecretIncentive, error) {
	query := `
		SELECT session_id, round, player_id, text, target_option, bonus_weight
		FROM secret_incentives
		WHERE session_id = $1 AND round = $2
	`
	var incentive models.SecretIncentive
	if err := pgxscan.Get(ctx, s.pool, &incentive, query, sessionID, round); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("ошибка чтения стимула: %w", err)
	}
	return &incentive, nil
}
