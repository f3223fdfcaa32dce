package ai

import "council-server/internal/models"

// Детерминированные fallback-ответы: при ошибке или мусорном ответе
// нейросети игровой цикл продолжается с ними, игроки ошибку не видят.

// FallbackScenario возвращает фиксированный сценарий.
func FallbackScenario() *ScenarioResult {
	return &ScenarioResult{
		Title: "Power Grid Failure",
		Description: "A critical system failure threatens the city's power grid. " +
			"The council must decide how to allocate limited resources to address this crisis.",
	}
}

// FallbackOptions возвращает фиксированный набор из четырех вариантов.
func FallbackOptions() []string {
	return []string{
		"Divert resources from other sectors to fix the power grid immediately",
		"Implement rolling blackouts and gradually repair the system",
		"Contract a private consortium to take over grid maintenance",
		"Ration power to critical infrastructure and let districts self-organize",
	}
}

// FallbackOutcome возвращает нейтральный нарратив и нулевую карту дельт.
func FallbackOutcome() *OutcomeResult {
	deltas := make(map[models.ResourceType]int, len(models.ResourceTypes))
	for _, rt := range models.ResourceTypes {
		deltas[rt] = 0
	}
	return &OutcomeResult{
		Narrative: "The council's decision is carried out without incident. " +
			"The city absorbs the change and life goes on.",
		ResourceDeltas: deltas,
	}
}

// FallbackIncentive возвращает нейтральный стимул, указывающий на первый
// вариант сценария.
func FallbackIncentive() *IncentiveResult {
	return &IncentiveResult{
		Text: "An anonymous benefactor promises to remember your loyalty " +
			"if the first proposal passes.",
		TargetOption: "1",
		BonusWeight:  0.1,
	}
}
