// Package docstore reads and writes a single named document in a versioned
// remote store. Every write carries the version token of the content it
// replaces; the backend rejects the write when the token is stale.
package docstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrNotFound is returned by Fetch when the document has never been created.
	ErrNotFound = errors.New("document not found")
	// ErrVersionConflict is returned by Write when the expected version token
	// no longer matches the stored document.
	ErrVersionConflict = errors.New("document version conflict")
)

// TransportError wraps a network or service failure talking to the backend.
type TransportError struct {
	Op   string
	Path string
	Err  error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("docstore %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Document is the raw content of a stored document and the version token it
// was read at.
type Document struct {
	Content []byte
	Version string
}

// Store is the Document Store Client contract.
type Store interface {
	// Fetch returns the current content and version token, or ErrNotFound.
	Fetch(ctx context.Context, path string) (*Document, error)
	// Write replaces the document and returns the new version token. An empty
	// expectedVersion creates the document and fails with ErrVersionConflict
	// if it already exists.
	Write(ctx context.Context, path string, content []byte, expectedVersion string) (string, error)
}

// ContentVersion returns the git blob hash of content. It is the version
// token GitHub reports for the same bytes, so every backend agrees on it.
func ContentVersion(content []byte) string {
	h := sha1.New()
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
