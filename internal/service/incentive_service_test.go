package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"council-server/internal/game"
	"council-server/internal/models"
	"council-server/internal/repository"
	"council-server/internal/service"
	"council-server/internal/service/mocks"
	"council-server/pkg/ai"
)

func newIncentiveFixture(t *testing.T) (*service.IncentiveService, *game.Session, *mocks.MockGenerator) {
	t.Helper()
	ctx := context.Background()

	store := repository.NewMemoryStore()
	registry := game.NewRegistry(store, zap.NewNop())
	generator := mocks.NewMockGenerator(t)
	incentives := service.NewIncentiveService(registry, store, generator, zap.NewNop())

	session, err := registry.Create(ctx, "session-1", "host-1")
	require.NoError(t, err)
	for _, id := range []string{"player-1", "player-2", "player-3"} {
		_, err := session.AddPlayer(ctx, id, id, "")
		require.NoError(t, err)
	}
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, &models.Scenario{
		Title:       "Strike at the Docks",
		Description: "Dock workers walked out this morning.",
		Options: []models.ScenarioOption{
			{ID: "1", Text: "Negotiate"},
			{ID: "2", Text: "Bring in replacements"},
			{ID: "3", Text: "Wait it out"},
			{ID: "4", Text: "Meet all demands"},
		},
	}))
	return incentives, session, generator
}

func TestIncentiveService_AssignIncentive_OnePerRound(t *testing.T) {
	incentives, _, generator := newIncentiveFixture(t)

	generator.On("GenerateIncentive", mock.Anything, mock.Anything).
		Return(&ai.IncentiveResult{
			Text:         "Your cousin leads the union.",
			TargetOption: "1",
			BonusWeight:  0.4,
		}, nil).
		Once() // одна генерация на (сессия, раунд)

	const goroutines = 10
	results := make([]*models.SecretIncentive, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			incentive, err := incentives.AssignIncentive(context.Background(), "session-1")
			assert.NoError(t, err)
			results[i] = incentive
		}(i)
	}
	wg.Wait()

	for _, incentive := range results {
		require.NotNil(t, incentive)
		assert.Equal(t, results[0].PlayerID, incentive.PlayerID)
		assert.Equal(t, "1", incentive.TargetOption)
		assert.InDelta(t, 0.4, incentive.BonusWeight, 1e-9)
	}
	generator.AssertExpectations(t)
}

func TestIncentiveService_AssignIncentive_TargetIsActivePlayer(t *testing.T) {
	incentives, session, generator := newIncentiveFixture(t)
	require.NoError(t, session.RemovePlayer(context.Background(), "player-3"))

	generator.On("GenerateIncentive", mock.Anything, mock.Anything).
		Return(&ai.IncentiveResult{Text: "t", TargetOption: "2", BonusWeight: 0.2}, nil)

	incentive, err := incentives.AssignIncentive(context.Background(), "session-1")
	require.NoError(t, err)
	assert.Contains(t, []string{"player-1", "player-2"}, incentive.PlayerID)
}

func TestIncentiveService_AssignIncentive_ClampsBonusWeight(t *testing.T) {
	incentives, _, generator := newIncentiveFixture(t)

	generator.On("GenerateIncentive", mock.Anything, mock.Anything).
		Return(&ai.IncentiveResult{Text: "t", TargetOption: "1", BonusWeight: 3.0}, nil)

	incentive, err := incentives.AssignIncentive(context.Background(), "session-1")
	require.NoError(t, err)
	assert.InDelta(t, ai.MaxBonusWeight, incentive.BonusWeight, 1e-9)
}

func TestIncentiveService_AssignIncentive_FallbackOnGeneratorError(t *testing.T) {
	incentives, _, generator := newIncentiveFixture(t)

	generator.On("GenerateIncentive", mock.Anything, mock.Anything).
		Return(nil, errors.New("upstream unavailable"))

	incentive, err := incentives.AssignIncentive(context.Background(), "session-1")
	require.NoError(t, err)
	assert.NotEmpty(t, incentive.Text)
	assert.NotEmpty(t, incentive.TargetOption)
}

func TestIncentiveService_IncentiveFor_Confidentiality(t *testing.T) {
	incentives, _, generator := newIncentiveFixture(t)

	generator.On("GenerateIncentive", mock.Anything, mock.Anything).
		Return(&ai.IncentiveResult{Text: "secret", TargetOption: "1", BonusWeight: 0.1}, nil)

	assigned, err := incentives.AssignIncentive(context.Background(), "session-1")
	require.NoError(t, err)

	// Целевой игрок видит payload
	visible, err := incentives.IncentiveFor(context.Background(), "session-1", assigned.Round, assigned.PlayerID)
	require.NoError(t, err)
	require.NotNil(t, visible)
	assert.Equal(t, "secret", visible.Text)

	// Остальные - нет, даже зная чужой player_id
	for _, id := range []string{"player-1", "player-2", "player-3"} {
		if id == assigned.PlayerID {
			continue
		}
		hidden, err := incentives.IncentiveFor(context.Background(), "session-1", assigned.Round, id)
		require.NoError(t, err)
		assert.Nil(t, hidden)
	}
}

func TestIncentiveService_AssignIncentive_RequiresScenario(t *testing.T) {
	store := repository.NewMemoryStore()
	registry := game.NewRegistry(store, zap.NewNop())
	incentives := service.NewIncentiveService(registry, store, mocks.NewMockGenerator(t), zap.NewNop())

	_, err := registry.Create(context.Background(), "session-1", "host-1")
	require.NoError(t, err)

	_, err = incentives.AssignIncentive(context.Background(), "session-1")
	assert.ErrorIs(t, err, models.ErrNoScenario)
}
