package room

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerAdvancesExpiredRooms(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	_, err := env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	worker := NewAutoAdvanceWorker(env.svc, nil, time.Second, zerolog.Nop())

	// deadline not reached yet; nothing happens
	worker.tick(ctx)
	stored, err := env.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, *stored.CurrentQuestionIndex)

	env.advanceClock(31 * time.Second)
	worker.tick(ctx)

	stored, err = env.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentQuestionIndex)
	assert.Equal(t, 1, *stored.CurrentQuestionIndex)
}

func TestWorkerRetriesLostRace(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	r := createMultiplayerRoom(t, env, host, 4)
	ctx := context.Background()

	_, err := env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	env.advanceClock(31 * time.Second)
	env.store.conflictNextUpdate = true

	worker := NewAutoAdvanceWorker(env.svc, nil, time.Second, zerolog.Nop())
	require.NoError(t, worker.advanceRoom(ctx, r.ID))

	stored, err := env.store.GetRoom(ctx, r.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentQuestionIndex)
	assert.Equal(t, 1, *stored.CurrentQuestionIndex)
}

func TestWorkerSkipsNonAutoAdvanceRooms(t *testing.T) {
	env := newTestEnv(t)
	host := principal("alice")
	off := false
	r, err := env.svc.Create(context.Background(), CreateRequest{
		GameType:   "trivia",
		Difficulty: "medium",
		Rounds:     3,
		Mode:       ModeMultiplayer,
		MaxPlayers: 4,
		Settings:   Settings{AutoAdvance: &off},
	}, host)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = env.svc.Start(ctx, r.ID, host.UserID)
	require.NoError(t, err)

	env.advanceClock(31 * time.Second)

	expired, err := env.store.ListExpiredAutoAdvance(ctx, env.now, 100)
	require.NoError(t, err)
	assert.Empty(t, expired, "manual-advance rooms never expire")
}
