package models

import "time"

// GamePhase описывает текущую фазу игровой сессии.
type GamePhase string

// Возможные фазы сессии. Порядок переходов:
// lobby -> scenario -> voting -> results -> (elimination) -> scenario -> ...
const (
	PhaseLobby       GamePhase = "lobby"
	PhaseScenario    GamePhase = "scenario"
	PhaseVoting      GamePhase = "voting"
	PhaseResults     GamePhase = "results"
	PhaseElimination GamePhase = "elimination"
)

// ResourceType описывает один из пяти общих ресурсов совета.
type ResourceType string

const (
	ResourceTech      ResourceType = "tech"
	ResourceManpower  ResourceType = "manpower"
	ResourceEconomy   ResourceType = "economy"
	ResourceHappiness ResourceType = "happiness"
	ResourceTrust     ResourceType = "trust"
)

// ResourceTypes задает канонический порядок ресурсов (используется при
// сериализации и в промптах для AI).
var ResourceTypes = []ResourceType{
	ResourceTech,
	ResourceManpower,
	ResourceEconomy,
	ResourceHappiness,
	ResourceTrust,
}

const (
	// ResourceMin и ResourceMax задают границы значений ресурсов.
	ResourceMin = 0
	ResourceMax = 100
	// ResourceInitial - стартовое значение каждого ресурса.
	ResourceInitial = 100

	// MaxPlayers - максимум активных игроков в сессии.
	MaxPlayers = 4
	// DefaultMaxRounds - число раундов по умолчанию.
	DefaultMaxRounds = 10
)

// ScenarioOption представляет один вариант выбора внутри сценария.
type ScenarioOption struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Scenario представляет сгенерированный сценарий раунда вместе с итогом
// голосования, когда тот уже определен.
type Scenario struct {
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Options        []ScenarioOption     `json:"options"`
	Outcome        string               `json:"outcome,omitempty"`
	ResourceDeltas map[ResourceType]int `json:"resource_deltas,omitempty"`
}

// HasOutcome сообщает, был ли итог раунда уже зафиксирован.
// Итог устанавливается не более одного раза за сценарий.
func (s *Scenario) HasOutcome() bool {
	return s != nil && s.Outcome != ""
}

// OptionByID возвращает вариант по идентификатору.
func (s *Scenario) OptionByID(id string) (ScenarioOption, bool) {
	if s == nil {
		return ScenarioOption{}, false
	}
	for _, opt := range s.Options {
		if opt.ID == id {
			return opt, true
		}
	}
	return ScenarioOption{}, false
}

// Session - персистентный снимок игровой сессии.
type Session struct {
	SessionID    string               `json:"session_id" db:"session_id"`
	HostID       string               `json:"host_id" db:"host_id"`
	Phase        GamePhase            `json:"phase" db:"phase"`
	CurrentRound int                  `json:"current_round" db:"current_round"`
	MaxRounds    int                  `json:"max_rounds" db:"max_rounds"`
	Resources    map[ResourceType]int `json:"resources"`
	Scenario     *Scenario            `json:"current_scenario,omitempty"`
	IsActive     bool                 `json:"is_active" db:"is_active"`
	TimerRunning bool                 `json:"timer_running" db:"timer_running"`
	TimerEndTime *time.Time           `json:"timer_end_time,omitempty" db:"timer_end_time"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" db:"updated_at"`
}

// Player - участник сессии. Удаление всегда мягкое (is_active=false),
// история голосов игрока сохраняется.
type Player struct {
	PlayerID   string  `json:"player_id" db:"player_id"`
	SessionID  string  `json:"session_id" db:"session_id"`
	Name       string  `json:"name" db:"name"`
	Role       string  `json:"role" db:"role"`
	IsActive   bool    `json:"is_active" db:"is_active"`
	VoteWeight float64 `json:"vote_weight" db:"vote_weight"`
	HasVoted   bool    `json:"has_voted" db:"has_voted"`
}

// Vote - одна запись в журнале голосов. Журнал append-only: игрок
// встречается в раунде не более одного раза.
type Vote struct {
	SessionID string    `json:"session_id" db:"session_id"`
	PlayerID  string    `json:"player_id" db:"player_id"`
	Round     int       `json:"round" db:"round"`
	Option    string    `json:"option" db:"option"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// SecretIncentive - скрытый стимул, привязанный к (сессия, раунд).
// Payload возвращается только целевому игроку.
type SecretIncentive struct {
	SessionID    string  `json:"session_id" db:"session_id"`
	Round        int     `json:"round" db:"round"`
	PlayerID     string  `json:"player_id" db:"player_id"`
	Text         string  `json:"text" db:"text"`
	TargetOption string  `json:"target_option" db:"target_option"`
	BonusWeight  float64 `json:"bonus_weight" db:"bonus_weight"`
}

// OutcomeResult - результат разрешения раунда, одинаковый для всех
// конкурирующих запросов.
type OutcomeResult struct {
	Round          int                  `json:"round"`
	WinningOption  string               `json:"winning_option"`
	VoteCounts     map[string]float64   `json:"vote_counts"`
	Narrative      string               `json:"narrative"`
	ResourceDeltas map[ResourceType]int `json:"resource_deltas"`
	Resources      map[ResourceType]int `json:"resources"`
	GameEnded      bool                 `json:"game_ended"`
}
