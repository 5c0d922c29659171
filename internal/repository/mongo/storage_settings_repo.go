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

const (
	storageSettingsCollectionName = "storage_settings"
	// Only one configuration record ever exists.
	activeSettingsID = "active"
)

// mongoStorageSettingsRepository implements repository.StorageSettingsRepository
type mongoStorageSettingsRepository struct {
	collection *mongo.Collection
}

// NewMongoStorageSettingsRepository creates the storage settings repository.
func NewMongoStorageSettingsRepository(db *mongo.Database) repository.StorageSettingsRepository {
	return &mongoStorageSettingsRepository{
		collection: db.Collection(storageSettingsCollectionName),
	}
}

// Get reads the active record. Called on every storage operation, so no caching.
func (r *mongoStorageSettingsRepository) Get(ctx context.Context) (*domain.StorageSettings, error) {
	var settings domain.StorageSettings
	err := r.collection.FindOne(ctx, bson.M{"_id": activeSettingsID}).Decode(&settings)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &settings, nil
}

// Save upserts the single record. There is no version check; the last write wins.
func (r *mongoStorageSettingsRepository) Save(ctx context.Context, settings *domain.StorageSettings) error {
	settings.UpdatedAt = time.Now().UTC()

	doc := bson.M{
		"provider":  settings.Provider,
		"updatedAt": settings.UpdatedAt,
		"updatedBy": settings.UpdatedBy,
	}
	update := bson.M{"$set": doc}
	if settings.Credentials != nil {
		doc["credentials"] = settings.Credentials
	} else {
		update["$unset"] = bson.M{"credentials": ""}
	}

	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": activeSettingsID},
		update,
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 && result.UpsertedCount == 0 {
		return repository.ErrUpdateFailed
	}
	return nil
}
