package gamestate

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tagrally/tagrally/common/clock"
	"github.com/tagrally/tagrally/common/logger"
	"github.com/tagrally/tagrally/common/models"
)

type fakeGameStore struct {
	games map[string]*models.Game
}

func newFakeGameStore() *fakeGameStore {
	return &fakeGameStore{games: make(map[string]*models.Game)}
}

func (s *fakeGameStore) Create(ctx context.Context, game *models.Game) error {
	cp := *game
	s.games[game.ID] = &cp
	return nil
}

func (s *fakeGameStore) GetByID(ctx context.Context, id string) (*models.Game, error) {
	game, ok := s.games[id]
	if !ok {
		return nil, fmt.Errorf("game %s: %w", id, models.ErrNotFound)
	}
	cp := *game
	return &cp, nil
}

func (s *fakeGameStore) AttachFirstRootTag(ctx context.Context, gameID, tagID string) (bool, error) {
	game, ok := s.games[gameID]
	if !ok || game.FirstRootTagID != nil {
		return false, nil
	}
	game.FirstRootTagID = &tagID
	game.LatestRootTagID = &tagID
	return true, nil
}

func (s *fakeGameStore) SetPendingRootTag(ctx context.Context, gameID, tagID string) (bool, error) {
	game, ok := s.games[gameID]
	if !ok || game.PendingRootTagID != nil {
		return false, nil
	}
	game.PendingRootTagID = &tagID
	return true, nil
}

func (s *fakeGameStore) PromotePendingTag(ctx context.Context, gameID, pendingID string) (bool, error) {
	game, ok := s.games[gameID]
	if !ok || game.PendingRootTagID == nil || *game.PendingRootTagID != pendingID {
		return false, nil
	}
	game.LatestRootTagID = &pendingID
	game.PendingRootTagID = nil
	return true, nil
}

func (s *fakeGameStore) IncrementScore(ctx context.Context, gameID, playerID string, delta models.ScoreDelta) error {
	game, ok := s.games[gameID]
	if !ok {
		return fmt.Errorf("game %s: %w", gameID, models.ErrNotFound)
	}
	if game.Scores == nil {
		game.Scores = make(map[string]models.PlayerScore)
	}
	score := game.Scores[playerID]
	score.Points += delta.Points
	score.Posted += delta.Posted
	score.Won += delta.Won
	score.OnTime += delta.OnTime
	game.Scores[playerID] = score
	return nil
}

type fakeTagStore struct {
	tags map[string]*models.Tag

	// propagated records PropagateNextRootTag calls as rootTagID -> nextRootID
	propagated map[string]string
}

func newFakeTagStore() *fakeTagStore {
	return &fakeTagStore{
		tags:       make(map[string]*models.Tag),
		propagated: make(map[string]string),
	}
}

func (s *fakeTagStore) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	tag, ok := s.tags[id]
	if !ok {
		return nil, fmt.Errorf("tag %s: %w", id, models.ErrNotFound)
	}
	cp := *tag
	return &cp, nil
}

func (s *fakeTagStore) SetNextRootTag(ctx context.Context, tagID, nextRootID string) error {
	tag, ok := s.tags[tagID]
	if !ok {
		return fmt.Errorf("tag %s: %w", tagID, models.ErrNotFound)
	}
	tag.NextRootTagID = &nextRootID
	return nil
}

func (s *fakeTagStore) PropagateNextRootTag(ctx context.Context, gameID, rootTagID, nextRootID string) error {
	s.propagated[rootTagID] = nextRootID
	return nil
}

func setup(t *testing.T) (*Manager, *fakeGameStore, *fakeTagStore, *clock.Fixed) {
	t.Helper()
	games := newFakeGameStore()
	tags := newFakeTagStore()
	clk := clock.NewFixed(time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC), time.UTC)
	m := NewManager(games, tags, clk, logger.New("error", "json"))
	return m, games, tags, clk
}

func seedGameWithLatest(games *fakeGameStore, tags *fakeTagStore, clk *clock.Fixed) (*models.Game, *models.Tag) {
	latest := &models.Tag{
		ID:         "root-1",
		GameID:     "game-1",
		CreatorID:  "alice",
		IsRoot:     true,
		PostedAt:   clk.Now().Add(-24 * time.Hour),
		PointValue: 10,
	}
	tags.tags[latest.ID] = latest

	game := &models.Game{
		ID:              "game-1",
		FirstRootTagID:  &latest.ID,
		LatestRootTagID: &latest.ID,
		Scores:          make(map[string]models.PlayerScore),
	}
	games.games[game.ID] = game
	return game, latest
}

func TestCreateGame(t *testing.T) {
	m, games, _, clk := setup(t)

	game, err := m.CreateGame(context.Background(), CreateGameParams{
		Name:      "office rally",
		CreatorID: "alice",
		Roster:    []models.RosterEntry{{PlayerID: "alice"}, {PlayerID: "bob"}},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, game.ID)
	assert.Equal(t, clk.Now(), game.CreatedAt)
	assert.NotNil(t, game.Scores)
	assert.Nil(t, game.FirstRootTagID)

	stored, ok := games.games[game.ID]
	require.True(t, ok)
	assert.Equal(t, "office rally", stored.Name)
}

func TestSetTagInGame_Transitions(t *testing.T) {
	m, games, _, _ := setup(t)
	ctx := context.Background()

	games.games["game-1"] = &models.Game{ID: "game-1", Scores: map[string]models.PlayerScore{}}

	// Non-root tags are rejected outright.
	err := m.SetTagInGame(ctx, "game-1", "sub-1", false, false)
	assert.ErrorIs(t, err, models.ErrInvalidPromotion)

	// First root tag cannot be pending.
	err = m.SetTagInGame(ctx, "game-1", "root-1", true, true)
	assert.ErrorIs(t, err, models.ErrInvalidPromotion)

	// First root tag attaches as first and latest.
	require.NoError(t, m.SetTagInGame(ctx, "game-1", "root-1", true, false))
	game := games.games["game-1"]
	assert.Equal(t, "root-1", *game.FirstRootTagID)
	assert.Equal(t, "root-1", *game.LatestRootTagID)

	// Second root tag reserves the pending slot.
	require.NoError(t, m.SetTagInGame(ctx, "game-1", "root-2", true, true))
	assert.Equal(t, "root-2", *game.PendingRootTagID)

	// A third cannot take the occupied slot.
	err = m.SetTagInGame(ctx, "game-1", "root-3", true, true)
	assert.ErrorIs(t, err, models.ErrPendingTagConflict)

	// Promoting a tag that is not the pending one is invalid.
	err = m.SetTagInGame(ctx, "game-1", "root-3", true, false)
	assert.ErrorIs(t, err, models.ErrInvalidPromotion)

	// Promoting the pending tag flips latest and frees the slot.
	require.NoError(t, m.SetTagInGame(ctx, "game-1", "root-2", true, false))
	assert.Equal(t, "root-2", *game.LatestRootTagID)
	assert.Nil(t, game.PendingRootTagID)
}

func TestUpdatePendingTag_PromotesAndScores(t *testing.T) {
	m, games, tags, clk := setup(t)
	ctx := context.Background()

	game, latest := seedGameWithLatest(games, tags, clk)

	pending := &models.Tag{
		ID:                "root-2",
		GameID:            game.ID,
		CreatorID:         "bob",
		IsRoot:            true,
		PostedAt:          clk.Now(),
		PreviousRootTagID: &latest.ID,
		PointValue:        10,
		PostedOnTime:      true,
	}
	tags.tags[pending.ID] = pending
	games.games[game.ID].PendingRootTagID = &pending.ID

	updated, err := m.UpdatePendingTag(ctx, game.ID)
	require.NoError(t, err)

	assert.Equal(t, pending.ID, *updated.LatestRootTagID)
	assert.Nil(t, updated.PendingRootTagID)

	// The old latest tag now points forward, and the link was propagated
	// through its subchain.
	assert.Equal(t, pending.ID, *tags.tags[latest.ID].NextRootTagID)
	assert.Equal(t, pending.ID, tags.propagated[latest.ID])

	// The promoted tag's score lands on its creator now, not at creation.
	score := games.games[game.ID].Scores["bob"]
	assert.Equal(t, 10, score.Points)
	assert.Equal(t, 1, score.Posted)
	assert.Equal(t, 1, score.OnTime)
}

func TestUpdatePendingTag_ChainIntegrityAcrossPromotions(t *testing.T) {
	m, games, tags, clk := setup(t)
	ctx := context.Background()

	game, first := seedGameWithLatest(games, tags, clk)

	// Promote three successive pending root tags.
	promotions := 0
	for _, id := range []string{"root-2", "root-3", "root-4"} {
		latestID := *games.games[game.ID].LatestRootTagID
		pending := &models.Tag{
			ID:                id,
			GameID:            game.ID,
			CreatorID:         "bob",
			IsRoot:            true,
			PostedAt:          clk.Now(),
			PreviousRootTagID: &latestID,
			PointValue:        10,
		}
		tags.tags[id] = pending
		games.games[game.ID].PendingRootTagID = &pending.ID

		_, err := m.UpdatePendingTag(ctx, game.ID)
		require.NoError(t, err)
		promotions++
		clk.Advance(24 * time.Hour)
	}

	// Following nextRootTagId from the first root tag must reach the latest in
	// exactly one hop per promotion, visiting no tag twice.
	g := games.games[game.ID]
	require.NotNil(t, g.FirstRootTagID)
	assert.Equal(t, first.ID, *g.FirstRootTagID, "first pointer is immutable")
	assert.Equal(t, "root-4", *g.LatestRootTagID)

	visited := make(map[string]bool)
	hops := 0
	current := *g.FirstRootTagID
	for current != *g.LatestRootTagID {
		require.False(t, visited[current], "cycle at %s", current)
		visited[current] = true

		tag, ok := tags.tags[current]
		require.True(t, ok)
		require.NotNil(t, tag.NextRootTagID, "forward chain breaks at %s", current)

		// Backward link mirrors the hop we are about to take.
		next := tags.tags[*tag.NextRootTagID]
		require.NotNil(t, next.PreviousRootTagID)
		assert.Equal(t, current, *next.PreviousRootTagID)

		current = *tag.NextRootTagID
		hops++
		require.LessOrEqual(t, hops, len(tags.tags), "walk exceeded tag count")
	}
	assert.Equal(t, promotions, hops)

	// The latest tag is the open end of the root chain.
	assert.Nil(t, tags.tags[*g.LatestRootTagID].NextRootTagID)
}

func TestUpdatePendingTag_NoPendingIsNoOp(t *testing.T) {
	m, games, tags, clk := setup(t)

	game, latest := seedGameWithLatest(games, tags, clk)

	updated, err := m.UpdatePendingTag(context.Background(), game.ID)
	require.NoError(t, err)
	assert.Equal(t, latest.ID, *updated.LatestRootTagID)
	assert.Empty(t, tags.propagated)
	assert.Empty(t, games.games[game.ID].Scores)
}

func TestUpdatePendingTag_MissingPendingTagFails(t *testing.T) {
	m, games, tags, clk := setup(t)

	game, _ := seedGameWithLatest(games, tags, clk)
	missing := "gone"
	games.games[game.ID].PendingRootTagID = &missing

	_, err := m.UpdatePendingTag(context.Background(), game.ID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetGameView(t *testing.T) {
	m, games, tags, clk := setup(t)
	ctx := context.Background()

	game, latest := seedGameWithLatest(games, tags, clk)

	pending := &models.Tag{
		ID:        "root-2",
		GameID:    game.ID,
		CreatorID: "bob",
		IsRoot:    true,
		Content:   "secret location",
		PostedAt:  clk.Now(),
	}
	tags.tags[pending.ID] = pending
	games.games[game.ID].PendingRootTagID = &pending.ID

	view, err := m.GetGameView(ctx, game.ID)
	require.NoError(t, err)

	require.NotNil(t, view.FirstRootTag)
	require.NotNil(t, view.LatestRootTag)
	assert.Equal(t, latest.ID, view.LatestRootTag.ID)

	// The pending tag is a placeholder only: no content leaks before
	// promotion.
	require.NotNil(t, view.PendingRootTag)
	assert.Equal(t, pending.ID, view.PendingRootTag.ID)
	assert.Equal(t, clk.EndOfDay(pending.PostedAt), view.PendingRootTag.PromotesAt)
}

func TestGetGameView_EmptyGame(t *testing.T) {
	m, games, _, _ := setup(t)

	games.games["game-1"] = &models.Game{ID: "game-1", Scores: map[string]models.PlayerScore{}}

	view, err := m.GetGameView(context.Background(), "game-1")
	require.NoError(t, err)
	assert.Nil(t, view.FirstRootTag)
	assert.Nil(t, view.LatestRootTag)
	assert.Nil(t, view.PendingRootTag)
}
