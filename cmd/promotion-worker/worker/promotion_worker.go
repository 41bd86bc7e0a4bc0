package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
)

// Promoter is the game-state operation the worker drives
type Promoter interface {
	UpdatePendingTag(ctx context.Context, gameID string) (*models.Game, error)
}

// JobQueue is the scheduler surface the worker consumes
type JobQueue interface {
	Due(ctx context.Context, now time.Time, limit int64) ([]string, error)
	Claim(ctx context.Context, gameID string) (bool, error)
	Job(ctx context.Context, gameID string) (*models.PromotionJob, error)
	Complete(ctx context.Context, gameID string) error
	Retry(ctx context.Context, job *models.PromotionJob, now time.Time) (bool, error)
	DeadLetter(ctx context.Context, job *models.PromotionJob, reason string) error
	IsScheduled(ctx context.Context, gameID string) (bool, error)
	Schedule(ctx context.Context, job *models.PromotionJob) error
}

// TagSource loads tags during reconciliation
type TagSource interface {
	GetByID(ctx context.Context, id string) (*models.Tag, error)
}

// GameSource provides the durable pending state used for reconciliation
type GameSource interface {
	GetByID(ctx context.Context, id string) (*models.Game, error)
	GameIDsWithPending(ctx context.Context) ([]string, error)
}

// PromotionWorker polls the delayed-job queue and promotes pending root tags
// when their trigger time passes. Safe to run in multiple instances: the
// claim admits one winner per job, and the promotion itself is idempotent.
type PromotionWorker struct {
	queue        JobQueue
	promoter     Promoter
	games        GameSource
	tags         TagSource
	clk          clock.Clock
	log          *logger.Logger
	pollInterval time.Duration
	batchSize    int64
}

// NewPromotionWorker creates a new promotion worker
func NewPromotionWorker(queue JobQueue, promoter Promoter, games GameSource, tags TagSource, clk clock.Clock, log *logger.Logger, pollInterval time.Duration, batchSize int64) *PromotionWorker {
	return &PromotionWorker{
		queue:        queue,
		promoter:     promoter,
		games:        games,
		tags:         tags,
		clk:          clk,
		log:          log,
		pollInterval: pollInterval,
		batchSize:    batchSize,
	}
}

// Start reconciles missing jobs and then polls until the context is canceled
func (w *PromotionWorker) Start(ctx context.Context) error {
	w.log.Info("starting promotion worker",
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize)

	if err := w.Reconcile(ctx); err != nil {
		// A failed reconciliation is not fatal: already-scheduled jobs still
		// fire, and the next restart retries the rest.
		w.log.Error("startup reconciliation failed", "error", err)
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info("promotion worker stopping")
			return nil
		case <-ticker.C:
			if err := w.processDue(ctx); err != nil {
				w.log.Error("failed to process due promotions", "error", err)
			}
		}
	}
}

// processDue promotes every job whose trigger time has passed
func (w *PromotionWorker) processDue(ctx context.Context) error {
	now := w.clk.Now()

	due, err := w.queue.Due(ctx, now, w.batchSize)
	if err != nil {
		return fmt.Errorf("list due promotions: %w", err)
	}

	for _, gameID := range due {
		if err := w.processJob(ctx, gameID, now); err != nil {
			w.log.Error("failed to process promotion", "game_id", gameID, "error", err)
		}
	}

	return nil
}

// processJob claims and executes a single due promotion
func (w *PromotionWorker) processJob(ctx context.Context, gameID string, now time.Time) error {
	claimed, err := w.queue.Claim(ctx, gameID)
	if err != nil {
		return fmt.Errorf("claim promotion: %w", err)
	}
	if !claimed {
		// Another worker instance won the claim.
		return nil
	}

	job, err := w.queue.Job(ctx, gameID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// Index entry without a payload; nothing to run and nothing to
			// retry. The durable pending pointer, if any, is picked up by the
			// next reconciliation.
			w.log.Warn("claimed promotion has no payload", "game_id", gameID)
			return nil
		}
		return fmt.Errorf("load promotion job: %w", err)
	}

	if _, err := w.promoter.UpdatePendingTag(ctx, gameID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			// The game or its pending tag no longer exists; retrying cannot
			// help.
			return w.queue.DeadLetter(ctx, job, err.Error())
		}

		w.log.Warn("promotion failed, scheduling retry",
			"game_id", gameID,
			"attempts", job.Attempts,
			"error", err)
		if _, retryErr := w.queue.Retry(ctx, job, now); retryErr != nil {
			return fmt.Errorf("schedule retry: %w", retryErr)
		}
		return nil
	}

	return w.queue.Complete(ctx, gameID)
}

// Reconcile re-creates promotion jobs for games whose durable pending pointer
// has no live queue entry. Covers crashes between reserving the pending slot
// and enqueueing the job, and lost Redis state in general.
func (w *PromotionWorker) Reconcile(ctx context.Context) error {
	gameIDs, err := w.games.GameIDsWithPending(ctx)
	if err != nil {
		return fmt.Errorf("list games with pending tags: %w", err)
	}

	recovered := 0
	for _, gameID := range gameIDs {
		scheduled, err := w.queue.IsScheduled(ctx, gameID)
		if err != nil {
			return err
		}
		if scheduled {
			continue
		}

		game, err := w.games.GetByID(ctx, gameID)
		if err != nil {
			w.log.Error("failed to load game during reconciliation", "game_id", gameID, "error", err)
			continue
		}
		if game.PendingRootTagID == nil {
			continue
		}

		tag, err := w.tags.GetByID(ctx, *game.PendingRootTagID)
		if err != nil {
			w.log.Error("failed to load pending tag during reconciliation",
				"game_id", gameID, "tag_id", *game.PendingRootTagID, "error", err)
			continue
		}

		job := &models.PromotionJob{
			GameID:       gameID,
			PendingTagID: tag.ID,
			TriggerAt:    w.clk.EndOfDay(tag.PostedAt),
			EnqueuedAt:   w.clk.Now(),
		}
		if err := w.queue.Schedule(ctx, job); err != nil {
			w.log.Error("failed to re-schedule promotion", "game_id", gameID, "error", err)
			continue
		}
		recovered++
		w.log.Info("promotion re-scheduled from durable state",
			"game_id", gameID,
			"tag_id", tag.ID,
			"trigger_at", job.TriggerAt)
	}

	w.log.Info("reconciliation complete",
		"pending_games", len(gameIDs),
		"recovered_jobs", recovered)

	return nil
}
