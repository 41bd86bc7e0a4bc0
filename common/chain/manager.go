package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
	"github.com/tagrally/tagrally/common/scoring"
)

// TagStore is the persistence surface the manager needs for tags
type TagStore interface {
	Create(ctx context.Context, tag *models.Tag) error
	GetByID(ctx context.Context, id string) (*models.Tag, error)
	Delete(ctx context.Context, id string) error
	FindChainTail(ctx context.Context, gameID, rootTagID string) (*models.Tag, error)
	LinkNextTag(ctx context.Context, tailID, nextID string) error
}

// GameStore is the persistence surface the manager needs for games
type GameStore interface {
	GetByID(ctx context.Context, id string) (*models.Game, error)
	Exists(ctx context.Context, id string) (bool, error)
}

// UserStore provides the creator existence precondition
type UserStore interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// GameState is the slice of the game state manager the chain manager drives
type GameState interface {
	SetTagInGame(ctx context.Context, gameID, tagID string, isRoot, isPending bool) error
	ApplyScore(ctx context.Context, gameID, playerID string, delta models.ScoreDelta) error
}

// PromotionScheduler enqueues the delayed promotion of a pending root tag
type PromotionScheduler interface {
	Schedule(ctx context.Context, job *models.PromotionJob) error
}

// Limiter bounds per-player tag creation. Nil disables limiting.
type Limiter interface {
	CheckPlayerLimit(ctx context.Context, playerID string) (allowed bool, retryAfterSec int64, err error)
}

// RateLimitError is returned when a player exceeds the posting limit
type RateLimitError struct {
	PlayerID          string
	RetryAfterSeconds int64
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("player %s exceeded posting limit, retry after %d seconds",
		e.PlayerID, e.RetryAfterSeconds)
}

// Manager inserts new tags into the correct chain, computes their links and
// scores, and patches neighboring tags and the owning game.
type Manager struct {
	tags      TagStore
	games     GameStore
	users     UserStore
	state     GameState
	scheduler PromotionScheduler
	limiter   Limiter
	clk       clock.Clock
	log       *logger.Logger
}

// NewManager creates a new tag chain manager
func NewManager(tags TagStore, games GameStore, users UserStore, state GameState, scheduler PromotionScheduler, limiter Limiter, clk clock.Clock, log *logger.Logger) *Manager {
	return &Manager{
		tags:      tags,
		games:     games,
		users:     users,
		state:     state,
		scheduler: scheduler,
		limiter:   limiter,
		clk:       clk,
		log:       log,
	}
}

// CreateTagParams are the inputs for posting a tag
type CreateTagParams struct {
	CreatorID string
	GameID    string
	IsRoot    bool
	Content   string
	// RootTagID references the owning root tag; required for subtags.
	RootTagID *string
	// PostedAt overrides the posting timestamp (defaults to now).
	PostedAt *time.Time
	// TriggerAt overrides the computed promotion trigger (defaults to end of
	// the posting day). Used for accelerated testing.
	TriggerAt *time.Time
}

// CreateTag inserts a new tag into the root chain or a subtag chain
func (m *Manager) CreateTag(ctx context.Context, params CreateTagParams) (*models.Tag, error) {
	userExists, err := m.users.Exists(ctx, params.CreatorID)
	if err != nil {
		return nil, err
	}
	if !userExists {
		return nil, fmt.Errorf("creator %s: %w", params.CreatorID, models.ErrNotFound)
	}

	gameExists, err := m.games.Exists(ctx, params.GameID)
	if err != nil {
		return nil, err
	}
	if !gameExists {
		return nil, fmt.Errorf("game %s: %w", params.GameID, models.ErrNotFound)
	}

	if m.limiter != nil {
		allowed, retryAfter, err := m.limiter.CheckPlayerLimit(ctx, params.CreatorID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, &RateLimitError{PlayerID: params.CreatorID, RetryAfterSeconds: retryAfter}
		}
	}

	postedAt := m.clk.Now()
	if params.PostedAt != nil {
		postedAt = *params.PostedAt
	}

	if params.IsRoot {
		return m.createRootTag(ctx, params, postedAt)
	}
	return m.createSubtag(ctx, params, postedAt)
}

// createRootTag links a root tag into the game's root chain. The new tag is
// marked pending on the game, not latest: the game's visible head does not
// move until the scheduled promotion fires. The only exception is a game's
// very first root tag, which has nothing to wait behind and becomes latest
// immediately.
func (m *Manager) createRootTag(ctx context.Context, params CreateTagParams, postedAt time.Time) (*models.Tag, error) {
	game, err := m.games.GetByID(ctx, params.GameID)
	if err != nil {
		return nil, err
	}

	if game.HasPendingRootTag() {
		return nil, fmt.Errorf("game %s: %w", game.ID, models.ErrPendingTagConflict)
	}

	score := scoring.RootTag()
	tag := &models.Tag{
		ID:           uuid.NewString(),
		GameID:       params.GameID,
		CreatorID:    params.CreatorID,
		IsRoot:       true,
		Content:      params.Content,
		PostedAt:     postedAt,
		PointValue:   score.Points,
		NewTag:       score.NewTag,
		PostedOnTime: score.PostedOnTime,
		WonTag:       score.WonTag,
	}

	if game.LatestRootTagID == nil {
		if err := m.tags.Create(ctx, tag); err != nil {
			return nil, err
		}
		if err := m.state.SetTagInGame(ctx, game.ID, tag.ID, true, false); err != nil {
			m.log.Warn("first root tag lost attach race", "tag_id", tag.ID, "error", err)
			m.unwindTag(ctx, tag.ID)
			return nil, err
		}
		// Visible immediately, so the score counts immediately too.
		if err := m.state.ApplyScore(ctx, game.ID, tag.CreatorID, models.ScoreDelta{
			Points: score.Points,
			Posted: 1,
			OnTime: 1,
		}); err != nil {
			return nil, err
		}
		m.log.Info("root chain started", "game_id", game.ID, "tag_id", tag.ID)
		return tag, nil
	}

	// The backward link is written now; the forward link on the current
	// latest tag is deferred until promotion so the new tag stays invisible.
	tag.PreviousRootTagID = game.LatestRootTagID

	if err := m.tags.Create(ctx, tag); err != nil {
		return nil, err
	}

	if err := m.state.SetTagInGame(ctx, game.ID, tag.ID, true, true); err != nil {
		// The tag must not outlive the lost reservation: unattached root tags
		// still pass the subtag anchor check, so leaving one behind opens a
		// phantom chain players could reply to and score on.
		m.log.Warn("root tag lost pending slot", "tag_id", tag.ID, "error", err)
		m.unwindTag(ctx, tag.ID)
		return nil, err
	}

	trigger := m.clk.EndOfDay(postedAt)
	if params.TriggerAt != nil {
		trigger = *params.TriggerAt
	}

	job := &models.PromotionJob{
		GameID:       game.ID,
		PendingTagID: tag.ID,
		TriggerAt:    trigger,
		EnqueuedAt:   m.clk.Now(),
	}
	if err := m.scheduler.Schedule(ctx, job); err != nil {
		// The pending pointer is already durable; worker-start reconciliation
		// rebuilds the job from it, so creation still succeeds.
		m.log.Error("failed to schedule promotion, will be reconciled",
			"game_id", game.ID, "tag_id", tag.ID, "error", err)
	}

	m.log.Info("pending root tag created",
		"game_id", game.ID,
		"tag_id", tag.ID,
		"trigger_at", trigger)

	return tag, nil
}

// createSubtag appends a reply to a root tag's subchain. The tail patch uses
// compare-and-swap semantics: if the resolved tail gained a successor in the
// meantime, resolution is retried once from scratch before the conflict is
// surfaced.
func (m *Manager) createSubtag(ctx context.Context, params CreateTagParams, postedAt time.Time) (*models.Tag, error) {
	if params.RootTagID == nil {
		return nil, fmt.Errorf("subtag requires a root tag: %w", models.ErrNotFound)
	}
	rootID := *params.RootTagID

	root, err := m.tags.GetByID(ctx, rootID)
	if err != nil {
		return nil, err
	}
	if !root.IsRoot || root.GameID != params.GameID {
		return nil, fmt.Errorf("root tag %s in game %s: %w", rootID, params.GameID, models.ErrNotFound)
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		tag, err := m.appendToChain(ctx, params, root, postedAt)
		if err == nil {
			return tag, nil
		}
		if !errors.Is(err, models.ErrChainTailMoved) {
			return nil, err
		}
		lastErr = err
		m.log.Warn("chain tail moved, re-resolving",
			"root_tag_id", rootID, "attempt", attempt+1)
	}
	return nil, lastErr
}

func (m *Manager) appendToChain(ctx context.Context, params CreateTagParams, root *models.Tag, postedAt time.Time) (*models.Tag, error) {
	tail, err := m.tags.FindChainTail(ctx, params.GameID, root.ID)
	if err != nil {
		return nil, err
	}

	score := scoring.Subtag(postedAt, root.PostedAt, !tail.IsRoot, m.clk.Location())

	tag := &models.Tag{
		ID:           uuid.NewString(),
		GameID:       params.GameID,
		CreatorID:    params.CreatorID,
		IsRoot:       false,
		Content:      params.Content,
		PostedAt:     postedAt,
		RootTagID:    &root.ID,
		PointValue:   score.Points,
		NewTag:       score.NewTag,
		PostedOnTime: score.PostedOnTime,
		WonTag:       score.WonTag,
	}

	// The first subtag of a root has no parent; later subtags follow the tail.
	if !tail.IsRoot {
		tailID := tail.ID
		tag.ParentTagID = &tailID
	}

	// Copy the tail's root-chain neighbors forward so every subtag of an open
	// chain can reach the same neighbors as its root.
	tag.PreviousRootTagID = tail.PreviousRootTagID
	tag.NextRootTagID = tail.NextRootTagID

	if err := m.tags.Create(ctx, tag); err != nil {
		return nil, err
	}

	if err := m.tags.LinkNextTag(ctx, tail.ID, tag.ID); err != nil {
		if errors.Is(err, models.ErrChainTailMoved) {
			// Unwind the unlinked tag before retrying, otherwise it would
			// surface as a second open tail.
			m.unwindTag(ctx, tag.ID)
		}
		return nil, err
	}

	delta := models.ScoreDelta{
		Points: score.Points,
		Posted: 1,
	}
	if score.PostedOnTime {
		delta.OnTime = 1
	}
	if score.WonTag {
		delta.Won = 1
	}
	if err := m.state.ApplyScore(ctx, params.GameID, params.CreatorID, delta); err != nil {
		return nil, err
	}

	m.log.Info("subtag appended",
		"game_id", params.GameID,
		"root_tag_id", root.ID,
		"tag_id", tag.ID,
		"parent_tag_id", tail.ID)

	return tag, nil
}

// CanUserAddRootTag reports whether a new root tag may be posted as of the
// given date: no promotion may be outstanding, and the visible latest tag (if
// any) must predate asOf by at least a calendar day.
func (m *Manager) CanUserAddRootTag(ctx context.Context, userID, gameID string, asOf time.Time) (bool, error) {
	game, err := m.games.GetByID(ctx, gameID)
	if err != nil {
		return false, err
	}

	if game.HasPendingRootTag() {
		return false, nil
	}
	if game.LatestRootTagID == nil {
		return true, nil
	}

	latest, err := m.tags.GetByID(ctx, *game.LatestRootTagID)
	if err != nil {
		return false, err
	}

	loc := m.clk.Location()
	return dayOf(latest.PostedAt, loc).Before(dayOf(asOf, loc)), nil
}

// CanUserAddSubtag reports whether userID may reply to the chain the given
// tag belongs to: the chain's tail must be open and not created by the same
// player.
func (m *Manager) CanUserAddSubtag(ctx context.Context, userID, tagID string) (bool, error) {
	tag, err := m.tags.GetByID(ctx, tagID)
	if err != nil {
		return false, err
	}

	tail, err := m.tags.FindChainTail(ctx, tag.GameID, tag.RootChainID())
	if err != nil {
		return false, err
	}

	return tail.IsChainTail() && tail.CreatorID != userID, nil
}

// unwindTag deletes a freshly created tag that failed to attach to its game
// or chain. Deletion failure is logged, not surfaced: the creation already
// failed and the caller's error is the one that matters.
func (m *Manager) unwindTag(ctx context.Context, tagID string) {
	if err := m.tags.Delete(ctx, tagID); err != nil {
		m.log.Error("failed to unwind detached tag", "tag_id", tagID, "error", err)
	}
}

func dayOf(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
