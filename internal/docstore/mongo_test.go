package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	ns := "catalog.documents"

	mt.Run("fetch missing document", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		_, err := NewMongoStore(mt.Coll).Fetch(ctx, "produtos.json")
		require.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("fetch returns content and version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: "produtos.json"},
			{Key: "content", Value: []byte("[]")},
			{Key: "version", Value: "v1"},
		}))
		doc, err := NewMongoStore(mt.Coll).Fetch(ctx, "produtos.json")
		require.NoError(mt, err)
		require.Equal(mt, "[]", string(doc.Content))
		require.Equal(mt, "v1", doc.Version)
	})

	mt.Run("create", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		v, err := NewMongoStore(mt.Coll).Write(ctx, "produtos.json", []byte("[]"), "")
		require.NoError(mt, err)
		require.Equal(mt, ContentVersion([]byte("[]")), v)
	})

	mt.Run("create over existing document is a conflict", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "E11000 duplicate key error",
		}))
		_, err := NewMongoStore(mt.Coll).Write(ctx, "produtos.json", []byte("[]"), "")
		require.ErrorIs(mt, err, ErrVersionConflict)
	})

	mt.Run("update on current version", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))
		v, err := NewMongoStore(mt.Coll).Write(ctx, "produtos.json", []byte("[1]"), "v1")
		require.NoError(mt, err)
		require.Equal(mt, ContentVersion([]byte("[1]")), v)
	})

	mt.Run("stale version matches nothing", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))
		_, err := NewMongoStore(mt.Coll).Write(ctx, "produtos.json", []byte("[1]"), "stale")
		require.ErrorIs(mt, err, ErrVersionConflict)
	})

	mt.Run("server error is a transport error", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Name:    "BadValue",
			Message: "bad value",
		}))
		_, err := NewMongoStore(mt.Coll).Write(ctx, "produtos.json", []byte("[1]"), "v1")
		var te *TransportError
		require.ErrorAs(mt, err, &te)
		require.NotErrorIs(mt, err, ErrVersionConflict)
	})
}
