package docstore

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// mongoDocument is one stored document keyed by its path. Mongo caps a
// record at 16 MB, so this backend fails with a TransportError well before
// the catalog size ceiling is reached.
type mongoDocument struct {
	Path      string    `bson:"_id"`
	Content   []byte    `bson:"content"`
	Version   string    `bson:"version"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// MongoStore keeps documents in a MongoDB collection. Write is a filtered
// update on (path, version), so a stale token matches nothing and is
// reported as a conflict.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(col *mongo.Collection) *MongoStore {
	return &MongoStore{col: col}
}

func (m *MongoStore) Fetch(ctx context.Context, path string) (*Document, error) {
	var d mongoDocument
	if err := m.col.FindOne(ctx, bson.M{"_id": path}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, &TransportError{Op: "fetch", Path: path, Err: err}
	}
	return &Document{Content: d.Content, Version: d.Version}, nil
}

func (m *MongoStore) Write(ctx context.Context, path string, content []byte, expectedVersion string) (string, error) {
	version := ContentVersion(content)
	now := time.Now().UTC()

	if expectedVersion == "" {
		_, err := m.col.InsertOne(ctx, mongoDocument{Path: path, Content: content, Version: version, UpdatedAt: now})
		if err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return "", ErrVersionConflict
			}
			return "", &TransportError{Op: "create", Path: path, Err: err}
		}
		return version, nil
	}

	res, err := m.col.UpdateOne(ctx,
		bson.M{"_id": path, "version": expectedVersion},
		bson.M{"$set": bson.M{"content": content, "version": version, "updatedAt": now}},
	)
	if err != nil {
		return "", &TransportError{Op: "update", Path: path, Err: err}
	}
	if res.MatchedCount == 0 {
		return "", ErrVersionConflict
	}
	return version, nil
}
