package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"council-server/internal/models"
)

func TestMemoryStore_SessionRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	session := &models.Session{
		SessionID:    "session-1",
		HostID:       "host-1",
		Phase:        models.PhaseLobby,
		CurrentRound: 1,
		MaxRounds:    models.DefaultMaxRounds,
		Resources:    map[models.ResourceType]int{models.ResourceTech: 100},
		IsActive:     true,
	}
	require.NoError(t, store.CreateSession(ctx, session))
	assert.Error(t, store.CreateSession(ctx, session), "duplicate session_id")

	// Возвращаемый снимок - копия, мутации не протекают в хранилище
	got, err := store.GetSession(ctx, "session-1")
	require.NoError(t, err)
	got.Resources[models.ResourceTech] = 1

	again, err := store.GetSession(ctx, "session-1")
	require.NoError(t, err)
	assert.Equal(t, 100, again.Resources[models.ResourceTech])

	_, err = store.GetSession(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMemoryStore_VoteUniqueness(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	vote := &models.Vote{
		SessionID: "session-1",
		PlayerID:  "player-1",
		Round:     1,
		Option:    "1",
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.RecordVote(ctx, vote))
	assert.Error(t, store.RecordVote(ctx, vote), "duplicate (session, player, round)")

	// Тот же игрок в другом раунде - новая запись
	next := *vote
	next.Round = 2
	require.NoError(t, store.RecordVote(ctx, &next))

	votes, err := store.GetVotes(ctx, "session-1", 1)
	require.NoError(t, err)
	assert.Len(t, votes, 1)
}

func TestMemoryStore_IncentiveUniquePerRound(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	incentive := &models.SecretIncentive{
		SessionID:    "session-1",
		Round:        1,
		PlayerID:     "player-1",
		Text:         "secret",
		TargetOption: "2",
		BonusWeight:  0.3,
	}
	require.NoError(t, store.AddIncentive(ctx, incentive))
	assert.Error(t, store.AddIncentive(ctx, incentive), "duplicate (session, round)")

	got, err := store.GetIncentive(ctx, "session-1", 1)
	require.NoError(t, err)
	assert.Equal(t, "player-1", got.PlayerID)

	_, err = store.GetIncentive(ctx, "session-1", 2)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
