package gamestate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
)

// GameStore is the persistence surface the manager needs for games
type GameStore interface {
	Create(ctx context.Context, game *models.Game) error
	GetByID(ctx context.Context, id string) (*models.Game, error)
	AttachFirstRootTag(ctx context.Context, gameID, tagID string) (bool, error)
	SetPendingRootTag(ctx context.Context, gameID, tagID string) (bool, error)
	PromotePendingTag(ctx context.Context, gameID, pendingID string) (bool, error)
	IncrementScore(ctx context.Context, gameID, playerID string, delta models.ScoreDelta) error
}

// TagStore is the persistence surface the manager needs for tags
type TagStore interface {
	GetByID(ctx context.Context, id string) (*models.Tag, error)
	SetNextRootTag(ctx context.Context, tagID, nextRootID string) error
	PropagateNextRootTag(ctx context.Context, gameID, rootTagID, nextRootID string) error
}

// Manager owns the firstRootTag/latestRootTag/pendingRootTag transitions and
// the per-player score aggregates.
type Manager struct {
	games GameStore
	tags  TagStore
	clk   clock.Clock
	log   *logger.Logger
}

// NewManager creates a new game state manager
func NewManager(games GameStore, tags TagStore, clk clock.Clock, log *logger.Logger) *Manager {
	return &Manager{
		games: games,
		tags:  tags,
		clk:   clk,
		log:   log,
	}
}

// CreateGameParams are the inputs for creating a game
type CreateGameParams struct {
	Name      string
	CreatorID string
	Roster    []models.RosterEntry
}

// CreateGame creates a new game with an empty root chain
func (m *Manager) CreateGame(ctx context.Context, params CreateGameParams) (*models.Game, error) {
	game := &models.Game{
		ID:        uuid.NewString(),
		Name:      params.Name,
		CreatorID: params.CreatorID,
		Roster:    params.Roster,
		Scores:    make(map[string]models.PlayerScore),
		CreatedAt: m.clk.Now(),
	}

	if err := m.games.Create(ctx, game); err != nil {
		return nil, err
	}

	m.log.Info("game created", "game_id", game.ID, "name", game.Name)
	return game, nil
}

// GetGame loads a game
func (m *Manager) GetGame(ctx context.Context, gameID string) (*models.Game, error) {
	return m.games.GetByID(ctx, gameID)
}

// GetGameView builds the caller-facing read model. The pending root tag is
// exposed only as a placeholder; the full tag becomes visible on promotion.
func (m *Manager) GetGameView(ctx context.Context, gameID string) (*models.GameView, error) {
	game, err := m.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	view := &models.GameView{Game: *game}

	if game.FirstRootTagID != nil {
		first, err := m.tags.GetByID(ctx, *game.FirstRootTagID)
		if err != nil {
			return nil, fmt.Errorf("load first root tag: %w", err)
		}
		view.FirstRootTag = first
	}

	if game.LatestRootTagID != nil {
		latest, err := m.tags.GetByID(ctx, *game.LatestRootTagID)
		if err != nil {
			return nil, fmt.Errorf("load latest root tag: %w", err)
		}
		view.LatestRootTag = latest
	}

	if game.PendingRootTagID != nil {
		pending, err := m.tags.GetByID(ctx, *game.PendingRootTagID)
		if err != nil {
			return nil, fmt.Errorf("load pending root tag: %w", err)
		}
		view.PendingRootTag = &models.PendingTagView{
			ID:         pending.ID,
			PostedAt:   pending.PostedAt,
			PromotesAt: m.clk.EndOfDay(pending.PostedAt),
		}
	}

	return view, nil
}

// SetTagInGame attaches a root tag to the game's root-chain pointers.
//
// The very first root tag of a game becomes latest immediately; there is
// nothing to wait behind, so asking for it to be pending is an invalid
// promotion. Subsequent root tags take the single pending slot until their
// scheduled promotion fires.
func (m *Manager) SetTagInGame(ctx context.Context, gameID, tagID string, isRoot, isPending bool) error {
	if !isRoot {
		return fmt.Errorf("tag %s is not a root tag: %w", tagID, models.ErrInvalidPromotion)
	}

	game, err := m.games.GetByID(ctx, gameID)
	if err != nil {
		return err
	}

	if game.FirstRootTagID == nil {
		if isPending {
			return fmt.Errorf("first root tag of game %s cannot be pending: %w", gameID, models.ErrInvalidPromotion)
		}
		attached, err := m.games.AttachFirstRootTag(ctx, gameID, tagID)
		if err != nil {
			return err
		}
		if !attached {
			// Lost a race against a concurrent first root tag.
			return fmt.Errorf("game %s already has a first root tag: %w", gameID, models.ErrPendingTagConflict)
		}
		m.log.Info("first root tag attached", "game_id", gameID, "tag_id", tagID)
		return nil
	}

	if isPending {
		reserved, err := m.games.SetPendingRootTag(ctx, gameID, tagID)
		if err != nil {
			return err
		}
		if !reserved {
			return fmt.Errorf("game %s: %w", gameID, models.ErrPendingTagConflict)
		}
		m.log.Info("pending root tag set", "game_id", gameID, "tag_id", tagID)
		return nil
	}

	promoted, err := m.games.PromotePendingTag(ctx, gameID, tagID)
	if err != nil {
		return err
	}
	if !promoted {
		return fmt.Errorf("tag %s is not the pending tag of game %s: %w", tagID, gameID, models.ErrInvalidPromotion)
	}
	return nil
}

// ApplyScore adds a tag's score to the creator's aggregate
func (m *Manager) ApplyScore(ctx context.Context, gameID, playerID string, delta models.ScoreDelta) error {
	return m.games.IncrementScore(ctx, gameID, playerID, delta)
}

// UpdatePendingTag promotes a game's pending root tag to latest.
//
// Idempotent: a game without a pending tag is returned unchanged, which makes
// duplicate job delivery and races with an earlier promotion harmless. The
// final pointer swap is guarded on the pending slot still holding the same
// tag, so at most one execution materializes the promotion.
func (m *Manager) UpdatePendingTag(ctx context.Context, gameID string) (*models.Game, error) {
	game, err := m.games.GetByID(ctx, gameID)
	if err != nil {
		return nil, err
	}

	if game.PendingRootTagID == nil {
		m.log.Debug("no pending root tag, nothing to promote", "game_id", gameID)
		return game, nil
	}

	pending, err := m.tags.GetByID(ctx, *game.PendingRootTagID)
	if err != nil {
		return nil, fmt.Errorf("load pending tag: %w", err)
	}

	// Complete the forward link deferred at creation time, and propagate it
	// through the closing chain's subtags for read-side navigation.
	if game.LatestRootTagID != nil {
		latestID := *game.LatestRootTagID
		if err := m.tags.SetNextRootTag(ctx, latestID, pending.ID); err != nil {
			return nil, fmt.Errorf("link previous latest tag: %w", err)
		}
		if err := m.tags.PropagateNextRootTag(ctx, gameID, latestID, pending.ID); err != nil {
			return nil, fmt.Errorf("propagate forward link: %w", err)
		}
	}

	// Root tag scores count only once the tag is actually visible.
	delta := models.ScoreDelta{
		Points: pending.PointValue,
		Posted: 1,
	}
	if pending.PostedOnTime {
		delta.OnTime = 1
	}
	if err := m.games.IncrementScore(ctx, gameID, pending.CreatorID, delta); err != nil {
		return nil, fmt.Errorf("apply promoted tag score: %w", err)
	}

	promoted, err := m.games.PromotePendingTag(ctx, gameID, pending.ID)
	if err != nil {
		return nil, err
	}
	if !promoted {
		m.log.Warn("pending tag promoted concurrently", "game_id", gameID, "tag_id", pending.ID)
	} else {
		m.log.Info("pending root tag promoted",
			"game_id", gameID,
			"tag_id", pending.ID,
			"creator_id", pending.CreatorID)
	}

	return m.games.GetByID(ctx, gameID)
}
