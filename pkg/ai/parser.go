package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"council-server/internal/models"
)

// OptionsPerScenario - ожидаемое число вариантов в сценарии.
const OptionsPerScenario = 4

// Границы бонуса к весу голоса скрытого стимула.
const (
	MinBonusWeight = -0.5
	MaxBonusWeight = 0.5
)

func parseScenario(raw string) (*ScenarioResult, error) {
	var result ScenarioResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, fmt.Errorf("ошибка разбора сценария: %w", err)
	}
	result.Title = strings.TrimSpace(result.Title)
	result.Description = strings.TrimSpace(result.Description)
	if result.Title == "" || result.Description == "" {
		return nil, errors.New("сценарий без заголовка или описания")
	}
	return &result, nil
}

func parseOptions(raw string) ([]string, error) {
	var payload struct {
		Options []string `json:"options"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора вариантов: %w", err)
	}
	options := make([]string, 0, OptionsPerScenario)
	for _, opt := range payload.Options {
		opt = strings.TrimSpace(opt)
		if opt != "" {
			options = append(options, opt)
		}
	}
	if len(options) != OptionsPerScenario {
		return nil, fmt.Errorf("ожидалось %d вариантов, получено %d", OptionsPerScenario, len(options))
	}
	return options, nil
}

func parseOutcome(raw string) (*OutcomeResult, error) {
	var payload struct {
		Narrative      string         `json:"narrative"`
		ResourceDeltas map[string]int `json:"resource_deltas"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора итога: %w", err)
	}
	payload.Narrative = strings.TrimSpace(payload.Narrative)
	if payload.Narrative == "" {
		return nil, errors.New("итог без нарратива")
	}
	// Карта дельт нормализуется к пяти каноническим ключам; отсутствующие
	// получают 0, неизвестные отбрасываются.
	deltas := make(map[models.ResourceType]int, len(models.ResourceTypes))
	for _, rt := range models.ResourceTypes {
		deltas[rt] = payload.ResourceDeltas[string(rt)]
	}
	return &OutcomeResult{Narrative: payload.Narrative, ResourceDeltas: deltas}, nil
}

func parseIncentive(raw string, options []string) (*IncentiveResult, error) {
	var payload struct {
		Text         string          `json:"text"`
		TargetOption json.RawMessage `json:"target_option"`
		BonusWeight  float64         `json:"bonus_weight"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, fmt.Errorf("ошибка разбора стимула: %w", err)
	}
	payload.Text = strings.TrimSpace(payload.Text)
	if payload.Text == "" {
		return nil, errors.New("стимул без текста")
	}

	target, err := resolveTargetOption(payload.TargetOption, options)
	if err != nil {
		return nil, err
	}

	return &IncentiveResult{
		Text:         payload.Text,
		TargetOption: target,
		BonusWeight:  ClampBonusWeight(payload.BonusWeight),
	}, nil
}

// resolveTargetOption принимает целевой вариант и как индекс (1-based), и
// как текст варианта - модели отвечают обоими способами.
func resolveTargetOption(raw json.RawMessage, options []string) (string, error) {
	if len(options) == 0 {
		return "", errors.New("нет вариантов для выбора цели стимула")
	}
	var idx int
	if err := json.Unmarshal(raw, &idx); err == nil {
		if idx < 1 || idx > len(options) {
			return "", fmt.Errorf("целевой вариант %d вне диапазона", idx)
		}
		return strconv.Itoa(idx), nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		text = strings.TrimSpace(text)
		for i, opt := range options {
			if strings.EqualFold(opt, text) || text == strconv.Itoa(i+1) {
				return strconv.Itoa(i + 1), nil
			}
		}
	}
	return "", errors.New("не удалось сопоставить целевой вариант стимула")
}

// ClampBonusWeight зажимает бонус в допустимый диапазон [-0.5, +0.5].
func ClampBonusWeight(w float64) float64 {
	if w < MinBonusWeight {
		return MinBonusWeight
	}
	if w > MaxBonusWeight {
		return MaxBonusWeight
	}
	return w
}
