package media

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/centrodecompra/catalog/internal/config"
	"github.com/gabriel-vasile/mimetype"
)

// AzureStore stores images as block blobs in one container. The container
// must allow anonymous blob reads for the durable URLs to be served.
type AzureStore struct {
	client    *azblob.Client
	container string
	baseURL   string
}

func NewAzureStore(ctx context.Context, cfg config.AzureConfig) (*AzureStore, error) {
	client, err := newAzureClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	if _, err := client.CreateContainer(ctx, cfg.Container, nil); err != nil {
		if !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
			return nil, fmt.Errorf("ensure container %s: %w", cfg.Container, err)
		}
	}
	return &AzureStore{
		client:    client,
		container: cfg.Container,
		baseURL:   joinURL(strings.TrimRight(client.URL(), "/"), cfg.Container),
	}, nil
}

// newAzureClient prefers a connection string and otherwise authenticates to
// the account URL with the default Azure credential chain.
func newAzureClient(cfg config.AzureConfig) (*azblob.Client, error) {
	opts := &azblob.ClientOptions{ClientOptions: policy.ClientOptions{
		Retry: policy.RetryOptions{MaxRetries: 3, TryTimeout: time.Minute},
	}}
	if cfg.ConnectionString != "" {
		return azblob.NewClientFromConnectionString(cfg.ConnectionString, opts)
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azure credential: %w", err)
	}
	return azblob.NewClient(cfg.AccountURL, cred, opts)
}

func (a *AzureStore) Upload(ctx context.Context, localPath, targetFolder string) (string, error) {
	key := objectKey(targetFolder, localPath)
	f, err := os.Open(localPath)
	if err != nil {
		return "", &UploadError{File: localPath, Err: err}
	}
	defer f.Close()

	contentType := "application/octet-stream"
	if m, err := mimetype.DetectFile(localPath); err == nil {
		contentType = m.String()
	}
	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	}
	if _, err := a.client.UploadStream(ctx, a.container, key, f, opts); err != nil {
		if bloberror.HasCode(err, bloberror.RequestBodyTooLarge) {
			err = fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
		}
		return "", &UploadError{File: localPath, Err: err}
	}
	return joinURL(a.baseURL, key), nil
}

func (a *AzureStore) Delete(ctx context.Context, publicID string) error {
	if _, err := a.client.DeleteBlob(ctx, a.container, publicID, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil
		}
		return &DeletionError{PublicID: publicID, Err: err}
	}
	return nil
}

func (a *AzureStore) PublicID(rawURL string) (string, error) {
	return keyFromURL(a.baseURL, rawURL)
}
