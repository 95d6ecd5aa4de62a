package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/centrodecompra/catalog/internal/docstore"
	"github.com/centrodecompra/catalog/pkg/logger"
	"github.com/centrodecompra/catalog/pkg/metrics"
)

const (
	// MaxDocumentBytes is the ceiling for the serialized catalog document.
	MaxDocumentBytes = 90 * 1024 * 1024
	// DefaultMaxAttempts bounds fetch-mutate-write cycles per mutation.
	DefaultMaxAttempts = 3
)

// Repository is the catalog persistence contract used by handlers and the
// upload orchestrator. A different store can replace DocumentRepository
// without touching callers.
type Repository interface {
	ListAll(ctx context.Context) ([]Product, error)
	FindByID(ctx context.Context, id string) (*Product, error)
	Insert(ctx context.Context, p Product) (*Product, error)
	// Update applies mutate to the product with the given id and returns the
	// product as it was before and after the change.
	Update(ctx context.Context, id string, mutate func(*Product) error) (previous, updated *Product, err error)
	RemoveByID(ctx context.Context, id string) (*Product, error)
}

// DocumentRepository keeps the whole catalog as one JSON array in a
// docstore.Store. Each mutation fetches the document, applies the change and
// writes it back with the version token it read; a version conflict restarts
// the cycle, up to maxAttempts times.
type DocumentRepository struct {
	store       docstore.Store
	path        string
	maxAttempts int
	maxBytes    int
	locker      Locker
}

type Option func(*DocumentRepository)

func WithMaxAttempts(n int) Option {
	return func(r *DocumentRepository) {
		if n > 0 {
			r.maxAttempts = n
		}
	}
}

func WithMaxDocumentBytes(n int) Option {
	return func(r *DocumentRepository) {
		if n > 0 {
			r.maxBytes = n
		}
	}
}

func WithLocker(l Locker) Option {
	return func(r *DocumentRepository) {
		if l != nil {
			r.locker = l
		}
	}
}

func NewDocumentRepository(store docstore.Store, path string, opts ...Option) *DocumentRepository {
	r := &DocumentRepository{
		store:       store,
		path:        path,
		maxAttempts: DefaultMaxAttempts,
		maxBytes:    MaxDocumentBytes,
		locker:      NewLocalLocker(DefaultLockWait),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// snapshot is the decoded document plus the version token it was read at.
// exists is false when the document has never been created.
type snapshot struct {
	products []Product
	version  string
	exists   bool
}

func (r *DocumentRepository) load(ctx context.Context) (*snapshot, error) {
	doc, err := r.store.Fetch(ctx, r.path)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return &snapshot{products: []Product{}}, nil
		}
		return nil, err
	}
	products, err := decode(doc.Content)
	if err != nil {
		return nil, err
	}
	return &snapshot{products: products, version: doc.Version, exists: true}, nil
}

func decode(content []byte) ([]Product, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return []Product{}, nil
	}
	var products []Product
	if err := json.Unmarshal(content, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptDocument, err)
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func encode(products []Product) ([]byte, error) {
	if products == nil {
		products = []Product{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *DocumentRepository) ListAll(ctx context.Context) ([]Product, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return snap.products, nil
}

func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*Product, error) {
	snap, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	if i := indexOf(snap.products, id); i >= 0 {
		p := snap.products[i]
		return &p, nil
	}
	return nil, ErrNotFound
}

// Insert appends p to the end of the catalog. An empty id is filled in.
func (r *DocumentRepository) Insert(ctx context.Context, p Product) (*Product, error) {
	if p.ID == "" {
		p.ID = NewID()
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	err := r.mutate(ctx, "insert", func(s *snapshot) ([]Product, error) {
		return append(s.products, p), nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("catalog: inserted product %s (%s)", p.ID, p.Name)
	return &p, nil
}

func (r *DocumentRepository) Update(ctx context.Context, id string, mutate func(*Product) error) (*Product, *Product, error) {
	var previous, updated Product
	err := r.mutate(ctx, "update", func(s *snapshot) ([]Product, error) {
		i := indexOf(s.products, id)
		if !s.exists || i < 0 {
			return nil, ErrNotFound
		}
		previous = s.products[i]
		updated = previous
		updated.Images = append([]string(nil), previous.Images...)
		if err := mutate(&updated); err != nil {
			return nil, err
		}
		updated.ID = previous.ID
		if err := updated.Validate(); err != nil {
			return nil, err
		}
		next := make([]Product, len(s.products))
		copy(next, s.products)
		next[i] = updated
		return next, nil
	})
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("catalog: updated product %s", id)
	return &previous, &updated, nil
}

// RemoveByID deletes the first product with the given id and returns it so
// the caller can clean up its images.
func (r *DocumentRepository) RemoveByID(ctx context.Context, id string) (*Product, error) {
	var removed Product
	err := r.mutate(ctx, "remove", func(s *snapshot) ([]Product, error) {
		i := indexOf(s.products, id)
		if !s.exists || i < 0 {
			return nil, ErrNotFound
		}
		removed = s.products[i]
		next := make([]Product, 0, len(s.products)-1)
		next = append(next, s.products[:i]...)
		return append(next, s.products[i+1:]...), nil
	})
	if err != nil {
		return nil, err
	}
	logger.Infof("catalog: removed product %s", id)
	return &removed, nil
}

// mutate runs fetch → apply → write until the write lands on the version it
// read, or maxAttempts conflicts have been seen. apply must be safe to run
// more than once.
func (r *DocumentRepository) mutate(ctx context.Context, op string, apply func(*snapshot) ([]Product, error)) error {
	start := time.Now()
	defer func() {
		metrics.DocumentWriteDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}()

	unlock, err := r.locker.Lock(ctx, r.path)
	if err != nil {
		logger.Warnf("catalog: %s proceeding without lock: %v", op, err)
		unlock = func() {}
	}
	defer unlock()

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		snap, err := r.load(ctx)
		if err != nil {
			return err
		}
		next, err := apply(snap)
		if err != nil {
			return err
		}
		content, err := encode(next)
		if err != nil {
			return fmt.Errorf("encode catalog: %w", err)
		}
		if len(content) > r.maxBytes {
			metrics.DocumentWrites.WithLabelValues(op, "too_large").Inc()
			return fmt.Errorf("%w: %d bytes, limit %d", ErrDocumentTooLarge, len(content), r.maxBytes)
		}

		_, err = r.store.Write(ctx, r.path, content, snap.version)
		if err == nil {
			metrics.DocumentWrites.WithLabelValues(op, "ok").Inc()
			return nil
		}
		if !errors.Is(err, docstore.ErrVersionConflict) {
			metrics.DocumentWrites.WithLabelValues(op, "error").Inc()
			logger.Errorf("catalog: %s write failed: %v", op, err)
			return err
		}
		metrics.DocumentWrites.WithLabelValues(op, "conflict").Inc()
		metrics.DocumentConflicts.WithLabelValues(op).Inc()
		logger.Warnf("catalog: %s hit version conflict on %s (attempt %d/%d)", op, r.path, attempt, r.maxAttempts)
	}
	return fmt.Errorf("%w: %s gave up after %d attempts", ErrConflict, op, r.maxAttempts)
}

func indexOf(products []Product, id string) int {
	for i := range products {
		if products[i].ID == id {
			return i
		}
	}
	return -1
}
