package game

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"council-server/internal/models"
	"council-server/internal/repository"
)

func newTestSession(t *testing.T) (*Session, repository.Store) {
	t.Helper()
	store := repository.NewMemoryStore()
	session := NewSession("session-1", "host-1", store, zap.NewNop())
	snap := session.Snapshot()
	require.NoError(t, store.CreateSession(context.Background(), &snap))
	return session, store
}

func addPlayers(t *testing.T, session *Session, n int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		_, err := session.AddPlayer(context.Background(),
			fmt.Sprintf("player-%d", i), fmt.Sprintf("Player %d", i), "councillor")
		require.NoError(t, err)
	}
}

func beginVoting(t *testing.T, session *Session) {
	t.Helper()
	started, err := session.BeginVoting(context.Background(), time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.True(t, started)
}

func testScenario() *models.Scenario {
	return &models.Scenario{
		Title:       "Power Grid Failure",
		Description: "The capital's power grid is failing.",
		Options: []models.ScenarioOption{
			{ID: "1", Text: "Reroute power from the industrial district"},
			{ID: "2", Text: "Initiate rolling blackouts"},
			{ID: "3", Text: "Requisition emergency generators"},
			{ID: "4", Text: "Do nothing and hope it holds"},
		},
	}
}

func TestSession_AddPlayer(t *testing.T) {
	session, _ := newTestSession(t)
	ctx := context.Background()

	t.Run("registers with default vote weight", func(t *testing.T) {
		player, err := session.AddPlayer(ctx, "player-1", "Alice", "governor")
		require.NoError(t, err)
		assert.Equal(t, 1.0, player.VoteWeight)
		assert.True(t, player.IsActive)
	})

	t.Run("rejoin is idempotent", func(t *testing.T) {
		again, err := session.AddPlayer(ctx, "player-1", "Alice", "governor")
		require.NoError(t, err)
		assert.Len(t, session.Players(), 1)
		assert.Equal(t, "player-1", again.PlayerID)
	})

	t.Run("rejects fifth player", func(t *testing.T) {
		for _, id := range []string{"player-2", "player-3", "player-4"} {
			_, err := session.AddPlayer(ctx, id, id, "")
			require.NoError(t, err)
		}
		_, err := session.AddPlayer(ctx, "player-5", "Eve", "")
		assert.ErrorIs(t, err, models.ErrSessionFull)
	})
}

func TestSession_RecordVote(t *testing.T) {
	ctx := context.Background()

	t.Run("rejects vote without scenario", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 2)
		_, err := session.RecordVote(ctx, "player-1", "1")
		assert.ErrorIs(t, err, models.ErrNoScenario)
	})

	t.Run("single vote per player per round", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 2)
		require.NoError(t, session.StartGame(ctx))
		require.NoError(t, session.SetScenario(ctx, testScenario()))
		beginVoting(t, session)

		_, err := session.RecordVote(ctx, "player-1", "1")
		require.NoError(t, err)
		_, err = session.RecordVote(ctx, "player-1", "2")
		assert.ErrorIs(t, err, models.ErrAlreadyVoted)
	})

	t.Run("rejects unknown and inactive players", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 3)
		require.NoError(t, session.StartGame(ctx))
		require.NoError(t, session.SetScenario(ctx, testScenario()))
		beginVoting(t, session)

		_, err := session.RecordVote(ctx, "stranger", "1")
		assert.ErrorIs(t, err, models.ErrPlayerNotFound)

		require.NoError(t, session.RemovePlayer(ctx, "player-3"))
		_, err = session.RecordVote(ctx, "player-3", "1")
		assert.ErrorIs(t, err, models.ErrPlayerNotFound)
	})

	t.Run("last active vote closes the round", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 3)
		require.NoError(t, session.StartGame(ctx))
		require.NoError(t, session.SetScenario(ctx, testScenario()))
		beginVoting(t, session)

		allVoted, err := session.RecordVote(ctx, "player-1", "1")
		require.NoError(t, err)
		assert.False(t, allVoted)

		allVoted, err = session.RecordVote(ctx, "player-2", "2")
		require.NoError(t, err)
		assert.False(t, allVoted)

		allVoted, err = session.RecordVote(ctx, "player-3", "1")
		require.NoError(t, err)
		assert.True(t, allVoted)

		snap := session.Snapshot()
		assert.Equal(t, models.PhaseResults, snap.Phase)
		assert.False(t, snap.TimerRunning)
	})
}

func TestSession_RecordVote_ConcurrentDuplicate(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	addPlayers(t, session, 3)
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))
	beginVoting(t, session)

	// Шквал одинаковых голосов одного игрока: ровно один попадает в журнал
	const goroutines = 16
	var successes int32
	var wg sync.WaitGroup
	barrier := make(chan struct{})
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-barrier
			_, err := session.RecordVote(ctx, "player-1", "1")
			if err == nil {
				atomic.AddInt32(&successes, 1)
				return
			}
			assert.ErrorIs(t, err, models.ErrAlreadyVoted)
		}()
	}
	close(barrier)
	wg.Wait()

	assert.EqualValues(t, 1, successes)
	assert.Len(t, session.VotesForRound(1), 1)
}

func TestSession_BeginVoting_OnlyFromScenarioPhase(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	addPlayers(t, session, 2)
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))

	started, err := session.BeginVoting(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, started)

	// Повторное открытие из фазы voting схлопывается в no-op
	started, err = session.BeginVoting(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, started)

	// После закрытия окна раунд не переоткрывается
	_, err = session.FinishVoting(ctx)
	require.NoError(t, err)
	started, err = session.BeginVoting(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, models.PhaseResults, session.Snapshot().Phase)
}

func TestSession_FinishVoting_Idempotent(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	addPlayers(t, session, 2)
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))
	beginVoting(t, session)

	changed, err := session.FinishVoting(ctx)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, models.PhaseResults, session.Snapshot().Phase)

	// Опоздавший таймер ничего не меняет
	changed, err = session.FinishVoting(ctx)
	require.NoError(t, err)
	assert.False(t, changed)

	// Опоздавший голос после закрытия окна отклоняется
	_, err = session.RecordVote(ctx, "player-1", "1")
	assert.ErrorIs(t, err, models.ErrVotingClosed)
}

func TestSession_SetOutcome(t *testing.T) {
	ctx := context.Background()

	t.Run("applies deltas at most once", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 2)
		require.NoError(t, session.StartGame(ctx))
		require.NoError(t, session.SetScenario(ctx, testScenario()))

		deltas := map[models.ResourceType]int{
			models.ResourceTech:  -10,
			models.ResourceTrust: -5,
		}
		ended, err := session.SetOutcome(ctx, "The grid held.", deltas)
		require.NoError(t, err)
		assert.False(t, ended)

		snap := session.Snapshot()
		assert.Equal(t, 90, snap.Resources[models.ResourceTech])
		assert.Equal(t, 95, snap.Resources[models.ResourceTrust])

		// Повторная фиксация - no-op, дельты не применяются второй раз
		ended, err = session.SetOutcome(ctx, "Another narrative.", deltas)
		require.NoError(t, err)
		assert.False(t, ended)
		snap = session.Snapshot()
		assert.Equal(t, 90, snap.Resources[models.ResourceTech])
		assert.Equal(t, "The grid held.", snap.Scenario.Outcome)
	})

	t.Run("depletion ends the game", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 2)
		require.NoError(t, session.StartGame(ctx))
		require.NoError(t, session.SetScenario(ctx, testScenario()))

		ended, err := session.SetOutcome(ctx, "Collapse.", map[models.ResourceType]int{
			models.ResourceEconomy: -100,
		})
		require.NoError(t, err)
		assert.True(t, ended)
		assert.False(t, session.Snapshot().IsActive)
	})
}

func TestSession_GameEndConditions(t *testing.T) {
	ctx := context.Background()

	t.Run("one active player left", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 4)

		require.NoError(t, session.RemovePlayer(ctx, "player-4"))
		assert.True(t, session.Snapshot().IsActive)
		require.NoError(t, session.RemovePlayer(ctx, "player-3"))
		assert.True(t, session.Snapshot().IsActive)
		require.NoError(t, session.RemovePlayer(ctx, "player-2"))
		assert.False(t, session.Snapshot().IsActive)
	})

	t.Run("max rounds exhausted", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 3)
		require.NoError(t, session.StartGame(ctx))

		for round := 1; round < models.DefaultMaxRounds; round++ {
			require.NoError(t, session.SetScenario(ctx, testScenario()))
			ended, err := session.AdvanceRound(ctx)
			require.NoError(t, err)
			assert.False(t, ended, "round %d", round)
		}
		assert.Equal(t, models.DefaultMaxRounds, session.Snapshot().CurrentRound)

		// Закрытие последнего раунда гасит сессию
		require.NoError(t, session.SetScenario(ctx, testScenario()))
		ended, err := session.AdvanceRound(ctx)
		require.NoError(t, err)
		assert.True(t, ended)
		assert.False(t, session.Snapshot().IsActive)
	})

	t.Run("inactivity is monotonic", func(t *testing.T) {
		session, _ := newTestSession(t)
		addPlayers(t, session, 2)
		require.NoError(t, session.RemovePlayer(ctx, "player-2"))
		require.False(t, session.Snapshot().IsActive)

		// Никакая операция не возвращает сессию к жизни
		_, err := session.AddPlayer(ctx, "player-9", "Nine", "")
		assert.ErrorIs(t, err, models.ErrSessionInactive)
		assert.ErrorIs(t, session.StartGame(ctx), models.ErrSessionInactive)
		assert.ErrorIs(t, session.SetScenario(ctx, testScenario()), models.ErrSessionInactive)

		ended, err := session.CheckEnd(ctx)
		require.NoError(t, err)
		assert.True(t, ended)
		assert.False(t, session.Snapshot().IsActive)
	})
}

func TestSession_AdvanceRound_ResetsVotingState(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	addPlayers(t, session, 2)
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))
	beginVoting(t, session)

	_, err := session.RecordVote(ctx, "player-1", "1")
	require.NoError(t, err)
	_, err = session.RecordVote(ctx, "player-2", "2")
	require.NoError(t, err)

	ended, err := session.AdvanceRound(ctx)
	require.NoError(t, err)
	require.False(t, ended)

	snap := session.Snapshot()
	assert.Equal(t, 2, snap.CurrentRound)
	assert.Equal(t, models.PhaseScenario, snap.Phase)
	assert.Nil(t, snap.Scenario)
	for _, p := range session.Players() {
		assert.False(t, p.HasVoted)
	}
	// Журнал прошлого раунда не очищается
	assert.Len(t, session.VotesForRound(1), 2)
}

func TestSession_AdjustVoteWeight(t *testing.T) {
	ctx := context.Background()
	session, _ := newTestSession(t)
	addPlayers(t, session, 2)

	require.NoError(t, session.AdjustVoteWeight(ctx, "player-1", 0.3))
	assert.InDelta(t, 1.3, session.PlayerWeight("player-1"), 1e-9)

	// Вес сохраняется между раундами
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))
	_, err := session.AdvanceRound(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 1.3, session.PlayerWeight("player-1"), 1e-9)
}

func TestSession_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	session, store := newTestSession(t)
	addPlayers(t, session, 2)
	require.NoError(t, session.StartGame(ctx))
	require.NoError(t, session.SetScenario(ctx, testScenario()))

	// Гидрированный из хранилища агрегат видит то же состояние
	registry := NewRegistry(store, zap.NewNop())
	restored, err := registry.LoadOrGet(ctx, "session-1")
	require.NoError(t, err)

	snap := restored.Snapshot()
	assert.Equal(t, models.PhaseScenario, snap.Phase)
	assert.Equal(t, "Power Grid Failure", snap.Scenario.Title)
	assert.Len(t, restored.Players(), 2)
}
