package docstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMemoryStore_FetchMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Fetch(context.Background(), "produtos.json")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_CreateUpdateConflict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	v1, err := s.Write(ctx, "produtos.json", []byte("[]"), "")
	require.NoError(t, err)
	require.Equal(t, ContentVersion([]byte("[]")), v1)

	// second create must not overwrite
	_, err = s.Write(ctx, "produtos.json", []byte("[1]"), "")
	require.ErrorIs(t, err, ErrVersionConflict)

	v2, err := s.Write(ctx, "produtos.json", []byte("[1]"), v1)
	require.NoError(t, err)
	require.NotEqual(t, v1, v2)

	// stale token
	_, err = s.Write(ctx, "produtos.json", []byte("[2]"), v1)
	require.ErrorIs(t, err, ErrVersionConflict)

	doc, err := s.Fetch(ctx, "produtos.json")
	require.NoError(t, err)
	require.Equal(t, "[1]", string(doc.Content))
	require.Equal(t, v2, doc.Version)
}

func TestMemoryStore_UpdateMissingIsConflict(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Write(context.Background(), "produtos.json", []byte("[]"), "deadbeef")
	require.ErrorIs(t, err, ErrVersionConflict)
}

func TestMemoryStore_FetchReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_, err := s.Write(ctx, "p", []byte("abc"), "")
	require.NoError(t, err)

	doc, err := s.Fetch(ctx, "p")
	require.NoError(t, err)
	doc.Content[0] = 'x'

	again, err := s.Fetch(ctx, "p")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again.Content))
}

func TestContentVersion_MatchesGitBlobHash(t *testing.T) {
	// `printf 'hello\n' | git hash-object --stdin`
	require.Equal(t, "ce013625030ba8dba906f756967f9e9ca394464a", ContentVersion([]byte("hello\n")))
	// empty blob
	require.Equal(t, "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391", ContentVersion(nil))
}
