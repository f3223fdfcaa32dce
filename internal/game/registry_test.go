package game

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"council-server/internal/models"
	"council-server/internal/repository"
)

func TestRegistry_Create_SingleInstancePerSession(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	const goroutines = 16
	sessions := make([]*Session, goroutines)
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			session, err := registry.Create(ctx, "session-1", "host-1")
			assert.NoError(t, err)
			sessions[i] = session
		}(i)
	}
	wg.Wait()

	// Все конкурирующие вызовы получили один и тот же агрегат
	for i := 1; i < goroutines; i++ {
		assert.Same(t, sessions[0], sessions[i])
	}
}

func TestRegistry_Get(t *testing.T) {
	registry := NewRegistry(repository.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	_, ok := registry.Get("missing")
	assert.False(t, ok)

	created, err := registry.Create(ctx, "session-1", "host-1")
	require.NoError(t, err)

	got, ok := registry.Get("session-1")
	require.True(t, ok)
	assert.Same(t, created, got)
}

func TestRegistry_LoadOrGet(t *testing.T) {
	store := repository.NewMemoryStore()
	ctx := context.Background()

	t.Run("unknown session", func(t *testing.T) {
		registry := NewRegistry(store, zap.NewNop())
		_, err := registry.LoadOrGet(ctx, "missing")
		assert.ErrorIs(t, err, models.ErrSessionNotFound)
	})

	t.Run("hydrates persisted session after restart", func(t *testing.T) {
		first := NewRegistry(store, zap.NewNop())
		session, err := first.Create(ctx, "session-1", "host-1")
		require.NoError(t, err)
		_, err = session.AddPlayer(ctx, "player-1", "Alice", "")
		require.NoError(t, err)

		// Новый реестр имитирует рестарт процесса
		second := NewRegistry(store, zap.NewNop())
		restored, err := second.LoadOrGet(ctx, "session-1")
		require.NoError(t, err)
		assert.Equal(t, "host-1", restored.Snapshot().HostID)
		assert.Len(t, restored.Players(), 1)

		// Повторный lookup возвращает тот же экземпляр
		again, err := second.LoadOrGet(ctx, "session-1")
		require.NoError(t, err)
		assert.Same(t, restored, again)
	})
}
