package ai

import "council-server/internal/models"

// GameContext - типизированный контекст для генерации сценария вместо
// нетипизированной карты: номер раунда, снимок ресурсов, число игроков и
// итог предыдущего раунда.
type GameContext struct {
	Round           int                         `json:"round"`
	MaxRounds       int                         `json:"max_rounds"`
	Resources       map[models.ResourceType]int `json:"resources"`
	PlayerCount     int                         `json:"player_count"`
	PreviousOutcome string                      `json:"previous_outcome,omitempty"`
}

// ScenarioResult - заголовок и описание сгенерированного сценария.
type ScenarioResult struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// OutcomeRequest - вход для генерации итога раунда.
type OutcomeRequest struct {
	Title         string             `json:"title"`
	Description   string             `json:"description"`
	Options       []string           `json:"options"`
	WinningOption string             `json:"winning_option"`
	VoteCounts    map[string]float64 `json:"vote_counts"`
}

// OutcomeResult - нарратив и карта дельт по пяти ресурсам.
type OutcomeResult struct {
	Narrative      string                      `json:"narrative"`
	ResourceDeltas map[models.ResourceType]int `json:"resource_deltas"`
}

// IncentiveRequest - вход для генерации скрытого стимула.
type IncentiveRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Options     []string `json:"options"`
}

// IncentiveResult - текст стимула, целевой вариант и бонус к весу голоса.
type IncentiveResult struct {
	Text         string  `json:"text"`
	TargetOption string  `json:"target_option"`
	BonusWeight  float64 `json:"bonus_weight"`
}
