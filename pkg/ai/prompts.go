package ai

import (
	"fmt"
	"strings"

	"council-server/internal/models"
)

// buildScenarioPrompt собирает промпт генерации сценария из типизированного
// контекста игры.
func buildScenarioPrompt(gameCtx GameContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Create a new scenario for the government council game.\n\n")
	fmt.Fprintf(&b, "Current round: %d of %d\n", gameCtx.Round, gameCtx.MaxRounds)
	b.WriteString("Resources:\n")
	for _, rt := range models.ResourceTypes {
		fmt.Fprintf(&b, "- %s: %d\n", rt, gameCtx.Resources[rt])
	}
	fmt.Fprintf(&b, "Number of players: %d\n", gameCtx.PlayerCount)
	if gameCtx.PreviousOutcome != "" {
		fmt.Fprintf(&b, "Previous round outcome: %s\n", gameCtx.PreviousOutcome)
	}
	b.WriteString(`
Create a scenario that:
1. Is morally complex and engaging
2. Has clear resource implications
3. Involves multiple stakeholders
4. Includes potential for betrayal or cooperation

Respond with JSON: {"title": "...", "description": "..."}`)
	return b.String()
}

func buildOptionsPrompt(title, description string) string {
	return fmt.Sprintf(`Scenario: %s
%s

Generate exactly 4 distinct options the council can vote on. Each option is a
short imperative sentence describing a course of action.

Respond with JSON: {"options": ["...", "...", "...", "..."]}`, title, description)
}

func buildOutcomePrompt(req OutcomeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n%s\n\nOptions:\n", req.Title, req.Description)
	for i, opt := range req.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	fmt.Fprintf(&b, "\nWinning option: %s\nVote distribution: %v\n", req.WinningOption, req.VoteCounts)
	b.WriteString(`
Narrate the consequence of the winning option for the city and give the
resource impact. Every delta is an integer in [-30, 30].

Respond with JSON:
{"narrative": "...", "resource_deltas": {"tech": 0, "manpower": 0, "economy": 0, "happiness": 0, "trust": 0}}`)
	return b.String()
}

func buildIncentivePrompt(req IncentiveRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Scenario: %s\n%s\n\nOptions:\n", req.Title, req.Description)
	for i, opt := range req.Options {
		fmt.Fprintf(&b, "%d. %s\n", i+1, opt)
	}
	fmt.Fprintf(&b, `
One council member secretly receives a personal incentive to push a specific
option. Write the secret briefing (second person, 1-2 sentences), pick the
target option index (1-%d) and a vote weight bonus between -0.5 and 0.5.

Respond with JSON: {"text": "...", "target_option": 1, "bonus_weight": 0.25}`, len(req.Options))
	return b.String()
}

// extractJSON вырезает JSON-объект из ответа модели: некоторые модели
// оборачивают его в markdown-блок или сопровождают пояснением.
func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx >= 0 {
			raw = raw[:idx]
		}
		raw = strings.TrimSpace(raw)
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
