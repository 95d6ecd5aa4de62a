// Package upload turns product submissions into catalog entries: it validates
// the request, stages images on local disk, pushes them to the media store and
// persists the product, rolling uploaded images back when a later step fails.
package upload

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/media"
	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/centrodecompra/catalog/pkg/metrics"
)

// DefaultMaxFileBytes is the per-image size ceiling.
const DefaultMaxFileBytes = 2 * 1024 * 1024

// Stage is a step of a creation request.
type Stage int

const (
	Received Stage = iota
	Validated
	ImagesStaged
	ImagesUploaded
	Persisted
	Complete
	Failed
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case Validated:
		return "validated"
	case ImagesStaged:
		return "images_staged"
	case ImagesUploaded:
		return "images_uploaded"
	case Persisted:
		return "persisted"
	case Complete:
		return "complete"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

type Config struct {
	Folder       string
	MaxFileBytes int64
	TempDir      string
}

// Orchestrator coordinates the catalog repository and the media store.
type Orchestrator struct {
	repo         catalog.Repository
	media        media.Store
	folder       string
	maxFileBytes int64
	tempDir      string
}

func New(repo catalog.Repository, store media.Store, cfg Config) *Orchestrator {
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = DefaultMaxFileBytes
	}
	if cfg.TempDir == "" {
		cfg.TempDir = os.TempDir()
	}
	return &Orchestrator{
		repo:         repo,
		media:        store,
		folder:       cfg.Folder,
		maxFileBytes: cfg.MaxFileBytes,
		tempDir:      cfg.TempDir,
	}
}

// request tracks one submission through its stages for logging.
type request struct {
	op    string
	name  string
	stage Stage
}

func (r *request) advance(s Stage) {
	r.stage = s
	logger.Debugf("upload: %s %q -> %s", r.op, r.name, s)
}

func (r *request) fail(err error) error {
	logger.Warnf("upload: %s %q failed at %s: %v", r.op, r.name, r.stage, err)
	r.stage = Failed
	return err
}

// Create validates sub, uploads its images and inserts the product. On any
// failure after the first upload every image uploaded for this request is
// deleted again.
func (o *Orchestrator) Create(ctx context.Context, sub Submission) (*catalog.Product, error) {
	req := &request{op: "create", name: sub.Name}

	v, err := o.validate(sub, true)
	if err != nil {
		return nil, req.fail(err)
	}
	req.advance(Validated)

	urls, err := o.stageAndUpload(ctx, req, sub.Name, v.images)
	if err != nil {
		return nil, req.fail(err)
	}

	product := catalog.Product{
		Name:        strings.TrimSpace(sub.Name),
		Description: strings.TrimSpace(sub.Description),
		Category:    strings.TrimSpace(sub.Category),
		Store:       strings.TrimSpace(sub.Store),
		Link:        strings.TrimSpace(sub.Link),
		Price:       v.price,
		Images:      urls,
	}
	stored, err := o.repo.Insert(ctx, product)
	if err != nil {
		o.rollback(ctx, urls)
		return nil, req.fail(err)
	}
	req.advance(Persisted)
	req.advance(Complete)
	return stored, nil
}

// Update applies the non-empty fields of sub to the product with the given
// id. Images in sub replace the current ones; with no images the current ones
// are kept.
func (o *Orchestrator) Update(ctx context.Context, id string, sub Submission) (*catalog.Product, error) {
	req := &request{op: "update", name: id}

	v, err := o.validate(sub, false)
	if err != nil {
		return nil, req.fail(err)
	}
	req.advance(Validated)

	// avoid uploading images for a product that does not exist
	if _, err := o.repo.FindByID(ctx, id); err != nil {
		return nil, req.fail(err)
	}

	var urls []string
	if len(v.images) > 0 {
		name := sub.Name
		if strings.TrimSpace(name) == "" {
			name = id
		}
		urls, err = o.stageAndUpload(ctx, req, name, v.images)
		if err != nil {
			return nil, req.fail(err)
		}
	}

	previous, updated, err := o.repo.Update(ctx, id, func(p *catalog.Product) error {
		setIfPresent(&p.Name, sub.Name)
		setIfPresent(&p.Description, sub.Description)
		setIfPresent(&p.Category, sub.Category)
		setIfPresent(&p.Store, sub.Store)
		setIfPresent(&p.Link, sub.Link)
		if v.hasPrice {
			p.Price = v.price
		}
		if len(urls) > 0 {
			p.Images = urls
		}
		return nil
	})
	if err != nil {
		o.rollback(ctx, urls)
		return nil, req.fail(err)
	}
	req.advance(Persisted)

	if len(urls) > 0 {
		o.cleanup(ctx, replaced(previous.Images, updated.Images))
	}
	req.advance(Complete)
	return updated, nil
}

// Delete removes the product first and then makes a best-effort attempt to
// delete its images. Image cleanup failures never fail the deletion.
func (o *Orchestrator) Delete(ctx context.Context, id string) (*catalog.Product, error) {
	removed, err := o.repo.RemoveByID(ctx, id)
	if err != nil {
		return nil, err
	}
	o.cleanup(ctx, removed.Images)
	return removed, nil
}

// stageAndUpload writes each image into a per-request temp directory and
// uploads the staged files one by one. Every staged file is removed after its
// upload attempt and the directory is removed before returning.
func (o *Orchestrator) stageAndUpload(ctx context.Context, req *request, name string, images []validatedImage) ([]string, error) {
	dir, err := os.MkdirTemp(o.tempDir, "catalog-upload-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			logger.Warnf("upload: remove staging dir %s: %v", dir, err)
		}
	}()

	staged, err := o.stage(dir, name, images)
	if err != nil {
		return nil, err
	}
	req.advance(ImagesStaged)

	urls := make([]string, 0, len(staged))
	for i, path := range staged {
		url, err := o.media.Upload(ctx, path, o.folder)
		removeStaged(path)
		if err != nil {
			metrics.MediaUploads.WithLabelValues("error").Inc()
			for _, rest := range staged[i+1:] {
				removeStaged(rest)
			}
			o.rollback(ctx, urls)
			var ue *media.UploadError
			if !errors.As(err, &ue) {
				err = &media.UploadError{File: path, Err: err}
			}
			return nil, err
		}
		metrics.MediaUploads.WithLabelValues("ok").Inc()
		urls = append(urls, url)
	}
	req.advance(ImagesUploaded)
	return urls, nil
}

func removeStaged(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf("upload: remove staged file %s: %v", path, err)
	}
}

// rollback deletes images uploaded for a request that did not complete.
func (o *Orchestrator) rollback(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	metrics.MediaRollbacks.Inc()
	logger.Infof("upload: rolling back %d uploaded image(s)", len(urls))
	o.cleanup(ctx, urls)
}

// cleanup deletes the given images concurrently. Failures are logged and
// counted, never returned.
func (o *Orchestrator) cleanup(ctx context.Context, urls []string) {
	if len(urls) == 0 {
		return
	}
	var g errgroup.Group
	g.SetLimit(catalog.MaxImages)
	for _, u := range urls {
		u := u
		g.Go(func() error {
			id, err := o.media.PublicID(u)
			if err == nil {
				err = o.media.Delete(ctx, id)
			}
			if err != nil {
				metrics.MediaCleanupFailures.Inc()
				logger.Warnf("upload: could not delete image %s: %v", u, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// replaced returns the entries of before that are not in after.
func replaced(before, after []string) []string {
	keep := make(map[string]bool, len(after))
	for _, u := range after {
		keep[u] = true
	}
	var out []string
	for _, u := range before {
		if !keep[u] {
			out = append(out, u)
		}
	}
	return out
}

func setIfPresent(dst *string, v string) {
	if v = strings.TrimSpace(v); v != "" {
		*dst = v
	}
}
