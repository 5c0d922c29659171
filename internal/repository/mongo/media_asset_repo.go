package mongo

import (
	"context"
	"errors"
	"time"

	"alcyxob/course-media/internal/domain"
	"alcyxob/course-media/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mediaAssetCollectionName = "media_assets"

// mongoMediaAssetRepository implements repository.MediaAssetRepository
type mongoMediaAssetRepository struct {
	collection *mongo.Collection
}

// NewMongoMediaAssetRepository creates a new media asset ledger backed by MongoDB.
func NewMongoMediaAssetRepository(db *mongo.Database) repository.MediaAssetRepository {
	return &mongoMediaAssetRepository{
		collection: db.Collection(mediaAssetCollectionName),
	}
}

// Upsert records an asset. Keys are overwritten in storage, so the ledger
// entry is replaced too.
func (r *mongoMediaAssetRepository) Upsert(ctx context.Context, asset *domain.MediaAsset) error {
	if asset.Key == "" {
		return errors.New("media asset requires a key")
	}
	if asset.StoredAt.IsZero() {
		asset.StoredAt = time.Now().UTC()
	}
	_, err := r.collection.ReplaceOne(ctx,
		bson.M{"_id": asset.Key},
		asset,
		options.Replace().SetUpsert(true),
	)
	return err
}

// GetByKey retrieves asset metadata by its storage key.
func (r *mongoMediaAssetRepository) GetByKey(ctx context.Context, key string) (*domain.MediaAsset, error) {
	var asset domain.MediaAsset
	err := r.collection.FindOne(ctx, bson.M{"_id": key}).Decode(&asset)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &asset, nil
}

func (r *mongoMediaAssetRepository) DeleteByKey(ctx context.Context, key string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureMediaAssetIndexes creates necessary indexes for the media_assets collection.
func EnsureMediaAssetIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Listing what a user or course owns
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "storedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "provider", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
