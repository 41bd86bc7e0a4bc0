package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	driver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tagrally/tagrally/common/mongo"
)

// UserRepository exposes the user existence check the creation preconditions
// need. User lifecycle is owned elsewhere.
type UserRepository struct {
	db *mongo.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *mongo.DB) *UserRepository {
	return &UserRepository{db: db}
}

// Exists checks whether a user exists
func (r *UserRepository) Exists(ctx context.Context, id string) (bool, error) {
	ctx, cancel := r.db.Context(ctx)
	defer cancel()

	err := r.db.Users.FindOne(ctx, bson.M{"_id": id},
		options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, driver.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return true, nil
}
