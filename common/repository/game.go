package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tagrally/tagrally/common/models"
	"github.com/tagrally/tagrally/common/mongo"
)

// GameRepository handles database operations for games
type GameRepository struct {
	db *mongo.DB
}

// NewGameRepository creates a new game repository
func NewGameRepository(db *mongo.DB) *GameRepository {
	return &GameRepository{db: db}
}

// Create inserts a new game
func (r *GameRepository) Create(ctx context.Context, game *models.Game) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	if _, err := r.db.Games.InsertOne(ctx, game); err != nil {
		return fmt.Errorf("failed to create game: %w", err)
	}
	return nil
}

// GetByID retrieves a game by its ID
func (r *GameRepository) GetByID(ctx context.Context, id string) (*models.Game, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	var game models.Game
	err := r.db.Games.FindOne(ctx, bson.M{"_id": id}).Decode(&game)
	if errors.Is(err, driver.ErrNoDocuments) {
		return nil, fmt.Errorf("game %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get game %s: %w", id, err)
	}
	return &game, nil
}

// Exists checks whether a game exists
func (r *GameRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	err := r.db.Games.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, driver.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check game existence: %w", err)
	}
	return true, nil
}

// AttachFirstRootTag sets the immutable first pointer and the latest pointer
// in one guarded update. Returns false when the game already has a first root
// tag (or does not exist).
func (r *GameRepository) AttachFirstRootTag(ctx context.Context, gameID, tagID string) (bool, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	res, err := r.db.Games.UpdateOne(ctx,
		bson.M{"_id": gameID, "firstRootTagId": nil},
		bson.M{"$set": bson.M{"firstRootTagId": tagID, "latestRootTagId": tagID}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to attach first root tag to game %s: %w", gameID, err)
	}
	return res.MatchedCount > 0, nil
}

// SetPendingRootTag reserves the game's single pending slot. The filter
// requires the slot to be empty, so concurrent root creations see exactly one
// winner; the caller translates false into a conflict.
func (r *GameRepository) SetPendingRootTag(ctx context.Context, gameID, tagID string) (bool, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	res, err := r.db.Games.UpdateOne(ctx,
		bson.M{"_id": gameID, "pendingRootTagId": nil},
		bson.M{"$set": bson.M{"pendingRootTagId": tagID}},
	)
	if err != nil {
		return false, fmt.Errorf("failed to set pending root tag on game %s: %w", gameID, err)
	}
	return res.MatchedCount > 0, nil
}

// PromotePendingTag atomically flips latestRootTagId to pendingID and clears
// the pending slot, guarded on the slot still holding pendingID. A duplicate
// concurrent promotion matches zero documents and reports false.
func (r *GameRepository) PromotePendingTag(ctx context.Context, gameID, pendingID string) (bool, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	res, err := r.db.Games.UpdateOne(ctx,
		bson.M{"_id": gameID, "pendingRootTagId": pendingID},
		bson.M{
			"$set":   bson.M{"latestRootTagId": pendingID},
			"$unset": bson.M{"pendingRootTagId": ""},
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to promote pending tag on game %s: %w", gameID, err)
	}
	return res.MatchedCount > 0, nil
}

// IncrementScore applies a tag's score to a player's aggregate with atomic
// increments, never read-modify-write, so concurrent tag creation across
// players cannot lose updates.
func (r *GameRepository) IncrementScore(ctx context.Context, gameID, playerID string, delta models.ScoreDelta) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	prefix := "scores." + playerID + "."
	res, err := r.db.Games.UpdateOne(ctx,
		bson.M{"_id": gameID},
		bson.M{"$inc": bson.M{
			prefix + "points": delta.Points,
			prefix + "posted": delta.Posted,
			prefix + "won":    delta.Won,
			prefix + "onTime": delta.OnTime,
		}},
	)
	if err != nil {
		return fmt.Errorf("failed to increment score for player %s in game %s: %w", playerID, gameID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("game %s: %w", gameID, models.ErrNotFound)
	}
	return nil
}

// GameIDsWithPending lists games holding a pending root tag. Used by the
// promotion worker's startup reconciliation.
func (r *GameRepository) GameIDsWithPending(ctx context.Context) ([]string, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	cursor, err := r.db.Games.Find(ctx,
		bson.M{"pendingRootTagId": bson.M{"$ne": nil}},
		options.Find().SetProjection(bson.M{"_id": 1}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list games with pending tags: %w", err)
	}

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pending game ids: %w", err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	return ids, nil
}
