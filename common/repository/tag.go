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

// TagRepository handles database operations for tags
type TagRepository struct {
	db *mongo.DB
}

// NewTagRepository creates a new tag repository
func NewTagRepository(db *mongo.DB) *TagRepository {
	return &TagRepository{db: db}
}

// Create inserts a new tag
func (r *TagRepository) Create(ctx context.Context, tag *models.Tag) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	if _, err := r.db.Tags.InsertOne(ctx, tag); err != nil {
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

// GetByID retrieves a tag by its ID
func (r *TagRepository) GetByID(ctx context.Context, id string) (*models.Tag, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	var tag models.Tag
	err := r.db.Tags.FindOne(ctx, bson.M{"_id": id}).Decode(&tag)
	if errors.Is(err, driver.ErrNoDocuments) {
		return nil, fmt.Errorf("tag %s: %w", id, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tag %s: %w", id, err)
	}
	return &tag, nil
}

// FindChainTail resolves the single open end of a subchain: the one tag in
// the game that belongs to rootTagID's chain (the root tag itself, or any of
// its subtags) and has no successor. Zero or multiple candidates mean the
// chain is structurally corrupted.
func (r *TagRepository) FindChainTail(ctx context.Context, gameID, rootTagID string) (*models.Tag, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	filter := bson.M{
		"gameId":    gameID,
		"nextTagId": nil,
		"$or": []bson.M{
			{"rootTagId": rootTagID},
			{"_id": rootTagID, "isRoot": true},
		},
	}

	// Fetch up to two candidates so a duplicate tail is detectable.
	cursor, err := r.db.Tags.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chain tail for root %s: %w", rootTagID, err)
	}

	var candidates []models.Tag
	if err := cursor.All(ctx, &candidates); err != nil {
		return nil, fmt.Errorf("failed to decode chain tail candidates: %w", err)
	}

	switch len(candidates) {
	case 1:
		return &candidates[0], nil
	case 0:
		return nil, fmt.Errorf("no open tail for chain %s: %w", rootTagID, models.ErrInvalidChainState)
	default:
		return nil, fmt.Errorf("multiple open tails for chain %s: %w", rootTagID, models.ErrInvalidChainState)
	}
}

// LinkNextTag appends nextID after tailID. The update filter re-validates
// that the tail is still open, so a concurrent append loses with
// ErrChainTailMoved instead of overwriting the pointer.
func (r *TagRepository) LinkNextTag(ctx context.Context, tailID, nextID string) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	res, err := r.db.Tags.UpdateOne(ctx,
		bson.M{"_id": tailID, "nextTagId": nil},
		bson.M{"$set": bson.M{"nextTagId": nextID}},
	)
	if err != nil {
		return fmt.Errorf("failed to link tag %s after %s: %w", nextID, tailID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("tail %s: %w", tailID, models.ErrChainTailMoved)
	}
	return nil
}

// Delete removes a tag. Only ever used to unwind a freshly created tag that
// lost the tail race before it was linked; linked tags are never deleted.
func (r *TagRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	if _, err := r.db.Tags.DeleteOne(ctx, bson.M{"_id": id}); err != nil {
		return fmt.Errorf("failed to delete tag %s: %w", id, err)
	}
	return nil
}

// SetNextRootTag patches a root tag's forward pointer in the root chain
func (r *TagRepository) SetNextRootTag(ctx context.Context, tagID, nextRootID string) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	res, err := r.db.Tags.UpdateOne(ctx,
		bson.M{"_id": tagID},
		bson.M{"$set": bson.M{"nextRootTagId": nextRootID}},
	)
	if err != nil {
		return fmt.Errorf("failed to set next root tag on %s: %w", tagID, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("tag %s: %w", tagID, models.ErrNotFound)
	}
	return nil
}

// PropagateNextRootTag bulk-patches nextRootTagId onto every subtag of the
// closing chain, so readers of any subtag can navigate forward to the new
// root. Not transactional with the root tag's own patch; the only consumer
// of the propagated field is read-side navigation.
func (r *TagRepository) PropagateNextRootTag(ctx context.Context, gameID, rootTagID, nextRootID string) error {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	_, err := r.db.Tags.UpdateMany(ctx,
		bson.M{"gameId": gameID, "rootTagId": rootTagID},
		bson.M{"$set": bson.M{"nextRootTagId": nextRootID}},
	)
	if err != nil {
		return fmt.Errorf("failed to propagate next root tag to chain %s: %w", rootTagID, err)
	}
	return nil
}
