// Package media uploads product images to a remote media host and removes
// them again by public identifier.
package media

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

var (
	// ErrPayloadTooLarge is wrapped by UploadError when the host refuses the size.
	ErrPayloadTooLarge = errors.New("payload too large")
	// ErrInvalidFormat is wrapped by UploadError when the host refuses the content.
	ErrInvalidFormat = errors.New("invalid image format")
	// ErrForeignURL is returned by PublicID for URLs this store did not issue.
	ErrForeignURL = errors.New("url does not belong to this media store")
)

// UploadError reports a failed upload of a staged file.
type UploadError struct {
	File string
	Err  error
}

func (e *UploadError) Error() string { return fmt.Sprintf("upload %s: %v", e.File, e.Err) }
func (e *UploadError) Unwrap() error { return e.Err }

// DeletionError reports a failed removal of a stored image.
type DeletionError struct {
	PublicID string
	Err      error
}

func (e *DeletionError) Error() string { return fmt.Sprintf("delete %s: %v", e.PublicID, e.Err) }
func (e *DeletionError) Unwrap() error { return e.Err }

// Store is the Media Store Client contract.
type Store interface {
	// Upload sends the local file to targetFolder and returns its durable URL.
	Upload(ctx context.Context, localPath, targetFolder string) (string, error)
	// Delete removes a previously uploaded image.
	Delete(ctx context.Context, publicID string) error
	// PublicID derives the identifier Delete expects from a durable URL.
	PublicID(rawURL string) (string, error)
}

// objectKey joins the target folder and the staged file's base name.
func objectKey(folder, localPath string) string {
	name := filepath.Base(localPath)
	folder = strings.Trim(folder, "/")
	if folder == "" {
		return name
	}
	return path.Join(folder, name)
}

// keyFromURL returns the object key of rawURL relative to base, which is the
// URL prefix every object of the store shares.
func keyFromURL(base, rawURL string) (string, error) {
	b, err := url.Parse(strings.TrimRight(base, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse image url: %w", err)
	}
	if u.Scheme != b.Scheme || u.Host != b.Host || !strings.HasPrefix(u.Path, b.Path) {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, rawURL)
	}
	key := strings.TrimPrefix(u.Path, b.Path)
	if key == "" {
		return "", fmt.Errorf("%w: %s", ErrForeignURL, rawURL)
	}
	return key, nil
}

// joinURL appends an object key to base, escaping each path segment.
func joinURL(base, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.TrimRight(base, "/") + "/" + strings.Join(parts, "/")
}
