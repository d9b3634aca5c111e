package database

import (
	"context"
	"fmt"
	"time"

	"github.com/komuness/core/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// PublicationsCollection is the collection holding publication documents.
const PublicationsCollection = "publicaciones"

// ConnectMongo opens a MongoDB client, pings it and ensures indexes.
func ConnectMongo(ctx context.Context, cfg *config.AppConfig) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.Mongo.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connection failed: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping failed: %w", err)
	}

	db := client.Database(cfg.Mongo.Database)
	if err := EnsureMongoIndexes(connectCtx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	return client, db, nil
}

// EnsureMongoIndexes creates the indexes used by listing queries.
func EnsureMongoIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(PublicationsCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "autor", Value: 1}}},
		{Keys: bson.D{{Key: "tag", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "tag", Value: 1}, {Key: "publicado", Value: 1}, {Key: "fechaEvento", Value: 1}}},
		{
			Keys:    bson.D{{Key: "lastEditRequest", Value: -1}},
			Options: options.Index().SetPartialFilterExpression(bson.M{"pendingUpdate": bson.M{"$type": "object"}}),
		},
	})
	if err != nil {
		return fmt.Errorf("create mongo indexes: %w", err)
	}
	return nil
}
