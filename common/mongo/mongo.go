package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tagrally/tagrally/common/config"
	"github.com/tagrally/tagrally/common/logger"
)

// DB wraps the Mongo client with the collection handles the repositories use
type DB struct {
	Client   *mongo.Client
	Database *mongo.Database

	Tags  *mongo.Collection
	Games *mongo.Collection
	Users *mongo.Collection

	queryTimeout time.Duration
	log          *logger.Logger
}

// New connects to MongoDB and resolves collection handles
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, cfg.Mongo.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)

	log.Info("mongo connected", "database", cfg.Mongo.Database)

	return &DB{
		Client:       client,
		Database:     db,
		Tags:         db.Collection("tags"),
		Games:        db.Collection("games"),
		Users:        db.Collection("users"),
		queryTimeout: cfg.Mongo.QueryTimeout,
		log:          log,
	}, nil
}

// Context derives a query context with the configured bounded timeout
func (d *DB) Context(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d.queryTimeout)
}

// Close disconnects from MongoDB
func (d *DB) Close(ctx context.Context) error {
	d.log.Info("closing mongo connection")
	return d.Client.Disconnect(ctx)
}

// Health checks the connection
func (d *DB) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := d.Client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongo unhealthy: %w", err)
	}
	return nil
}
