package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
	"github.com/tagrally/tagrally/common/queue"
	rediscommon "github.com/tagrally/tagrally/common/redis"
)

type fakePromoter struct {
	calls []string
	errs  map[string]error
}

func (f *fakePromoter) UpdatePendingTag(ctx context.Context, gameID string) (*models.Game, error) {
	f.calls = append(f.calls, gameID)
	if err := f.errs[gameID]; err != nil {
		return nil, err
	}
	return &models.Game{ID: gameID}, nil
}

type fakeGameSource struct {
	games map[string]*models.Game
}

func (f *fakeGameSource) GetByID(ctx context.Context, id string) (*models.Game, error) {
	game, ok := f.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, models.ErrNotFound)
	}
	return game, nil
}

func (f *fakeGameSource) GameIDsWithPending(ctx context.Context) ([]string, error) {
	var ids []string
	for id, game := range f.games {
		if game.PendingRootTagID != nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeTagSource struct {
	tags map[string]*models.Tag
}

func (f *fakeTagSource) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	tag, ok := f.tags[id]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", id, models.ErrNotFound)
	}
	return tag, nil
}

type workerEnv struct {
	worker    *PromotionWorker
	scheduler *queue.Scheduler
	promoter  *fakePromoter
	games     *fakeGameSource
	tags      *fakeTagSource
	clk       *clock.Fixed
}

func setupWorker(t *testing.T) *workerEnv {
	t.Helper()

	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.New("error", "json")
	clk := clock.NewFixed(time.Date(2026, 3, 11, 0, 0, 5, 0, time.UTC), time.UTC)
	scheduler := queue.NewScheduler(rediscommon.NewClient(client, log), log, clk, 3, time.Second)

	promoter := &fakePromoter{errs: make(map[string]error)}
	games := &fakeGameSource{games: make(map[string]*models.Game)}
	tags := &fakeTagSource{tags: make(map[string]*models.Tag)}

	w := NewPromotionWorker(scheduler, promoter, games, tags, clk, log, time.Second, 100)

	return &workerEnv{
		worker:    w,
		scheduler: scheduler,
		promoter:  promoter,
		games:     games,
		tags:      tags,
		clk:       clk,
	}
}

func scheduleAt(t *testing.T, env *workerEnv, gameID string, triggerAt time.Time) {
	t.Helper()
	require.NoError(t, env.scheduler.Schedule(context.Background(), &models.PromotionJob{
		GameID:       gameID,
		PendingTagID: "tag-" + gameID,
		TriggerAt:    triggerAt,
		EnqueuedAt:   triggerAt.Add(-10 * time.Hour),
	}))
}

func TestProcessDue_PromotesAndCompletes(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	scheduleAt(t, env, "game-1", env.clk.Now().Add(-5*time.Second))

	require.NoError(t, env.worker.processDue(ctx))

	assert.Equal(t, []string{"game-1"}, env.promoter.calls)

	// Completed: payload gone, nothing scheduled.
	_, err := env.scheduler.Job(ctx, "game-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
	scheduled, err := env.scheduler.IsScheduled(ctx, "game-1")
	require.NoError(t, err)
	assert.False(t, scheduled)
}

func TestProcessDue_SkipsFutureJobs(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	scheduleAt(t, env, "game-1", env.clk.Now().Add(time.Hour))

	require.NoError(t, env.worker.processDue(ctx))
	assert.Empty(t, env.promoter.calls)

	scheduled, err := env.scheduler.IsScheduled(ctx, "game-1")
	require.NoError(t, err)
	assert.True(t, scheduled)
}

func TestProcessJob_TransientFailureRetries(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	scheduleAt(t, env, "game-1", env.clk.Now().Add(-5*time.Second))
	env.promoter.errs["game-1"] = errors.New("mongo timeout")

	require.NoError(t, env.worker.processDue(ctx))

	// Job is back in the queue with its attempt recorded.
	job, err := env.scheduler.Job(ctx, "game-1")
	require.NoError(t, err)
	assert.Equal(t, 1, job.Attempts)
	assert.True(t, job.TriggerAt.After(env.clk.Now()))

	scheduled, err := env.scheduler.IsScheduled(ctx, "game-1")
	require.NoError(t, err)
	assert.True(t, scheduled)

	// Once the failure clears, the retried job promotes.
	delete(env.promoter.errs, "game-1")
	env.clk.Advance(5 * time.Second)
	require.NoError(t, env.worker.processDue(ctx))
	assert.Equal(t, []string{"game-1", "game-1"}, env.promoter.calls)
}

func TestProcessJob_MissingGameDeadLetters(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	scheduleAt(t, env, "game-1", env.clk.Now().Add(-5*time.Second))
	env.promoter.errs["game-1"] = fmt.Errorf("game game-1: %w", models.ErrNotFound)

	require.NoError(t, env.worker.processDue(ctx))

	dead, err := env.scheduler.DeadJobs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"game-1"}, dead)

	// Not live-scheduled anymore.
	scheduled, err := env.scheduler.IsScheduled(ctx, "game-1")
	require.NoError(t, err)
	assert.False(t, scheduled)
}

func TestReconcile_RebuildsMissingJobs(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	pendingID := "tag-1"
	postedAt := time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC)
	env.games.games["game-1"] = &models.Game{ID: "game-1", PendingRootTagID: &pendingID}
	env.tags.tags[pendingID] = &models.Tag{
		ID:       pendingID,
		GameID:   "game-1",
		IsRoot:   true,
		PostedAt: postedAt,
	}

	// A second game whose job survived needs no rebuild.
	otherPending := "tag-2"
	env.games.games["game-2"] = &models.Game{ID: "game-2", PendingRootTagID: &otherPending}
	env.tags.tags[otherPending] = &models.Tag{ID: otherPending, GameID: "game-2", IsRoot: true}
	scheduleAt(t, env, "game-2", env.clk.Now().Add(time.Hour))

	require.NoError(t, env.worker.Reconcile(ctx))

	job, err := env.scheduler.Job(ctx, "game-1")
	require.NoError(t, err)
	assert.Equal(t, pendingID, job.PendingTagID)
	assert.True(t, job.TriggerAt.Equal(time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC)),
		"trigger rebuilt from the tag's posting day")

	// game-2's original job kept its trigger.
	job2, err := env.scheduler.Job(ctx, "game-2")
	require.NoError(t, err)
	assert.Equal(t, "tag-game-2", job2.PendingTagID)
}

func TestReconcile_ThenProcessPromotes(t *testing.T) {
	env := setupWorker(t)
	ctx := context.Background()

	pendingID := "tag-1"
	env.games.games["game-1"] = &models.Game{ID: "game-1", PendingRootTagID: &pendingID}
	env.tags.tags[pendingID] = &models.Tag{
		ID:       pendingID,
		GameID:   "game-1",
		IsRoot:   true,
		PostedAt: time.Date(2026, 3, 10, 18, 30, 0, 0, time.UTC),
	}

	require.NoError(t, env.worker.Reconcile(ctx))

	// Clock is already past the rebuilt end-of-day trigger.
	require.NoError(t, env.worker.processDue(ctx))
	assert.Equal(t, []string{"game-1"}, env.promoter.calls)
}
