package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
	rediscommon "github.com/tagrally/tagrally/common/redis"
)

// Redis keys. The scheduled set indexes game IDs by trigger time; each job's
// payload lives in its own key so it survives claim and retry. Dead jobs stay
// indexed and keep their payload so a stuck pending tag never vanishes
// silently.
const (
	scheduledKey = "promotion:scheduled"
	deadKey      = "promotion:dead"
	jobKeyPrefix = "promotion:job:"
)

// Scheduler is the durable delayed-job store for pending-tag promotions.
// One job per game; jobs move Scheduled -> Fired -> Completed, with bounded
// retries and a dead-letter index for jobs that exhaust them.
type Scheduler struct {
	redis       *rediscommon.Client
	log         *logger.Logger
	clk         clock.Clock
	maxAttempts int
	backoffBase time.Duration
}

// NewScheduler creates a new promotion scheduler
func NewScheduler(redisClient *rediscommon.Client, log *logger.Logger, clk clock.Clock, maxAttempts int, backoffBase time.Duration) *Scheduler {
	return &Scheduler{
		redis:       redisClient,
		log:         log,
		clk:         clk,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
	}
}

func jobKey(gameID string) string {
	return jobKeyPrefix + gameID
}

// Schedule durably records a job and indexes it at its trigger time.
// Re-scheduling the same game overwrites, so the operation is idempotent.
func (s *Scheduler) Schedule(ctx context.Context, job *models.PromotionJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal promotion job: %w", err)
	}

	if err := s.redis.Set(ctx, jobKey(job.GameID), string(payload), 0); err != nil {
		return fmt.Errorf("failed to store promotion job: %w", err)
	}

	if err := s.redis.AddToSortedSet(ctx, scheduledKey, float64(job.TriggerAt.Unix()), job.GameID); err != nil {
		return fmt.Errorf("failed to index promotion job: %w", err)
	}

	s.log.Info("promotion scheduled",
		"game_id", job.GameID,
		"pending_tag_id", job.PendingTagID,
		"trigger_at", job.TriggerAt,
		"attempts", job.Attempts)

	return nil
}

// IsScheduled reports whether a live job exists for the game
func (s *Scheduler) IsScheduled(ctx context.Context, gameID string) (bool, error) {
	_, found, err := s.redis.SortedSetScore(ctx, scheduledKey, gameID)
	if err != nil {
		return false, err
	}
	return found, nil
}

// Due returns up to limit game IDs whose trigger time has passed
func (s *Scheduler) Due(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	return s.redis.RangeSortedSetByScore(ctx, scheduledKey, float64(now.Unix()), limit)
}

// Claim moves a due job into the Fired state. ZREM admits exactly one winner,
// so a job is handed to a single worker execution even with multiple worker
// instances polling.
func (s *Scheduler) Claim(ctx context.Context, gameID string) (bool, error) {
	return s.redis.RemoveFromSortedSet(ctx, scheduledKey, gameID)
}

// Job loads a claimed job's payload
func (s *Scheduler) Job(ctx context.Context, gameID string) (*models.PromotionJob, error) {
	payload, found, err := s.redis.Get(ctx, jobKey(gameID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("promotion job for game %s: %w", gameID, models.ErrNotFound)
	}

	var job models.PromotionJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal promotion job: %w", err)
	}
	return &job, nil
}

// Complete finishes a job after its handler succeeded
func (s *Scheduler) Complete(ctx context.Context, gameID string) error {
	if err := s.redis.Delete(ctx, jobKey(gameID)); err != nil {
		return err
	}
	s.log.Info("promotion completed", "game_id", gameID)
	return nil
}

// Retry re-schedules a failed job with exponential backoff. Once the attempt
// budget is exhausted the job is dead-lettered instead and false is returned.
func (s *Scheduler) Retry(ctx context.Context, job *models.PromotionJob, now time.Time) (bool, error) {
	job.Attempts++
	if job.Attempts >= s.maxAttempts {
		if err := s.DeadLetter(ctx, job, "retry budget exhausted"); err != nil {
			return false, err
		}
		return false, nil
	}

	backoff := s.backoffBase << uint(job.Attempts-1)
	job.TriggerAt = now.Add(backoff)

	s.log.Warn("promotion retry scheduled",
		"game_id", job.GameID,
		"attempts", job.Attempts,
		"backoff", backoff)

	return true, s.Schedule(ctx, job)
}

// DeadLetter parks a job that cannot make progress. The payload is retained
// and the game ID indexed so operators can find it; a stuck pending tag
// blocks new root tags for its game until resolved.
func (s *Scheduler) DeadLetter(ctx context.Context, job *models.PromotionJob, reason string) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal dead job: %w", err)
	}
	if err := s.redis.Set(ctx, jobKey(job.GameID), string(payload), 0); err != nil {
		return fmt.Errorf("failed to persist dead job: %w", err)
	}
	if err := s.redis.AddToSortedSet(ctx, deadKey, float64(s.clk.Now().Unix()), job.GameID); err != nil {
		return fmt.Errorf("failed to index dead job: %w", err)
	}

	s.log.Error("promotion dead-lettered",
		"game_id", job.GameID,
		"pending_tag_id", job.PendingTagID,
		"attempts", job.Attempts,
		"reason", reason)

	return nil
}

// DeadJobs lists dead-lettered game IDs for operator inspection
func (s *Scheduler) DeadJobs(ctx context.Context) ([]string, error) {
	return s.redis.RangeSortedSetByScore(ctx, deadKey, float64(s.clk.Now().Unix()), 0)
}
