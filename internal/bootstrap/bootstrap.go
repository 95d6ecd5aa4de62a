// Package bootstrap builds the backends selected in the configuration. It is
// shared by the API server and the seed tool.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/config"
	"github.com/centrodecompra/catalog/internal/database"
	"github.com/centrodecompra/catalog/internal/docstore"
	"github.com/centrodecompra/catalog/internal/media"
	"github.com/centrodecompra/catalog/pkg/logger"
)

// Closer releases a backend connection.
type Closer func()

func noop() {}

// OpenDocStore connects the document store backend.
func OpenDocStore(ctx context.Context, cfg *config.Config) (docstore.Store, Closer, error) {
	switch cfg.DocStore.Backend {
	case "github":
		client, err := docstore.NewGitHubClient(cfg.GitHub.Token, cfg.GitHub.APIURL, cfg.GitHub.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("docstore: github %s/%s@%s:%s", cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch, cfg.DocStore.Path)
		return docstore.NewGitHubStore(client, cfg.GitHub.Owner, cfg.GitHub.Repo, cfg.GitHub.Branch), noop, nil
	case "mongo":
		client, err := database.ConnectMongoWithRetry(ctx, cfg.MongoDB.URI, cfg.MongoDB.Timeout, 5, func(attempt int, err error) {
			logger.Warnf("attempt %d/5: failed to connect to MongoDB: %v", attempt, err)
		})
		if err != nil {
			return nil, nil, err
		}
		col := client.Database(cfg.MongoDB.Database).Collection(cfg.MongoDB.Collection)
		logger.Infof("docstore: mongo %s.%s", cfg.MongoDB.Database, cfg.MongoDB.Collection)
		closer := func() { _ = client.Disconnect(context.Background()) }
		return docstore.NewMongoStore(col), closer, nil
	case "memory":
		logger.Warnf("docstore: in-memory backend, catalog is lost on restart")
		return docstore.NewMemoryStore(), noop, nil
	}
	return nil, nil, fmt.Errorf("unsupported DOCSTORE_BACKEND %q", cfg.DocStore.Backend)
}

// OpenMediaStore connects the media store backend.
func OpenMediaStore(ctx context.Context, cfg *config.Config) (media.Store, error) {
	switch cfg.Media.Backend {
	case "minio":
		return media.NewMinIOStore(ctx, cfg.MinIO)
	case "azure":
		return media.NewAzureStore(ctx, cfg.Azure)
	case "memory":
		logger.Warnf("media: in-memory backend, images are lost on restart")
		return media.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unsupported MEDIA_BACKEND %q", cfg.Media.Backend)
}

// OpenRedis returns a client when REDIS_HOST is set, or nil.
func OpenRedis(ctx context.Context, cfg *config.Config) *redis.Client {
	if cfg.Redis.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr(), Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s): %v", cfg.Redis.Addr(), err)
	} else {
		logger.Infof("connected to Redis at %s", cfg.Redis.Addr())
	}
	return client
}

// NewLocker picks the mutation lock. A missing Redis client falls back to
// the in-process lock.
func NewLocker(cfg *config.Config, rdb *redis.Client) catalog.Locker {
	switch cfg.Catalog.Lock {
	case "redis":
		if rdb != nil {
			return catalog.NewRedisLocker(rdb, 30*time.Second, cfg.Catalog.LockWait)
		}
		logger.Warnf("CATALOG_LOCK=redis without a Redis client, using local lock")
		return catalog.NewLocalLocker(cfg.Catalog.LockWait)
	case "none":
		return catalog.NopLocker{}
	}
	return catalog.NewLocalLocker(cfg.Catalog.LockWait)
}

// NewRepository builds the catalog repository over store.
func NewRepository(cfg *config.Config, store docstore.Store, locker catalog.Locker) *catalog.DocumentRepository {
	return catalog.NewDocumentRepository(store, cfg.DocStore.Path,
		catalog.WithMaxAttempts(cfg.Catalog.MaxAttempts),
		catalog.WithLocker(locker),
	)
}

// DocStoreReady is a readiness probe: the document store answers, and a
// missing catalog still counts as ready.
func DocStoreReady(store docstore.Store, path string) func(context.Context) error {
	return func(ctx context.Context) error {
		_, err := store.Fetch(ctx, path)
		if err == nil || errors.Is(err, docstore.ErrNotFound) {
			return nil
		}
		return err
	}
}
