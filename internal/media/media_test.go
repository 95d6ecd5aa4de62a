package media

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	require.Equal(t, "produtos/mesa-1700000000000-0.png", objectKey("produtos", "/tmp/stage-123/mesa-1700000000000-0.png"))
	require.Equal(t, "produtos/casa/mesa.png", objectKey("/produtos/casa/", "mesa.png"))
	require.Equal(t, "mesa.png", objectKey("", "/tmp/mesa.png"))
}

func TestKeyFromURL(t *testing.T) {
	base := "https://media.centrodecompra.com.br/catalog"

	key, err := keyFromURL(base, "https://media.centrodecompra.com.br/catalog/produtos/mesa-1.png")
	require.NoError(t, err)
	require.Equal(t, "produtos/mesa-1.png", key)

	_, err = keyFromURL(base, "https://res.cloudinary.com/demo/image/upload/v1/produtos/mesa-1.png")
	require.ErrorIs(t, err, ErrForeignURL)

	_, err = keyFromURL(base, "https://media.centrodecompra.com.br/other/produtos/mesa-1.png")
	require.ErrorIs(t, err, ErrForeignURL)

	_, err = keyFromURL(base, "https://media.centrodecompra.com.br/catalog/")
	require.ErrorIs(t, err, ErrForeignURL)
}

func TestJoinURLRoundTrip(t *testing.T) {
	base := "http://localhost:9000/catalog"
	u := joinURL(base, "produtos/mesa de jantar.png")
	require.Equal(t, "http://localhost:9000/catalog/produtos/mesa%20de%20jantar.png", u)

	key, err := keyFromURL(base, u)
	require.NoError(t, err)
	require.Equal(t, "produtos/mesa de jantar.png", key)
}

func TestMinIOStore_PublicID(t *testing.T) {
	s := &MinIOStore{bucket: "catalog", baseURL: joinURL("http://localhost:9000", "catalog")}
	id, err := s.PublicID("http://localhost:9000/catalog/produtos/mesa-1.png")
	require.NoError(t, err)
	require.Equal(t, "produtos/mesa-1.png", id)
}

func TestAzureStore_PublicID(t *testing.T) {
	a := &AzureStore{container: "imagens", baseURL: joinURL("https://acct.blob.core.windows.net", "imagens")}
	id, err := a.PublicID("https://acct.blob.core.windows.net/imagens/produtos/mesa-1.jpg")
	require.NoError(t, err)
	require.Equal(t, "produtos/mesa-1.jpg", id)
}

func TestMemoryStore_UploadDelete(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	local := filepath.Join(dir, "mesa-1.png")
	require.NoError(t, os.WriteFile(local, []byte("\x89PNG\r\n\x1a\nrest"), 0o600))

	s := NewMemoryStore()
	u, err := s.Upload(ctx, local, "produtos")
	require.NoError(t, err)
	require.Equal(t, "memory://media/produtos/mesa-1.png", u)
	require.Equal(t, []string{"produtos/mesa-1.png"}, s.Keys())

	id, err := s.PublicID(u)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, id))
	require.Empty(t, s.Keys())

	var de *DeletionError
	require.ErrorAs(t, s.Delete(ctx, id), &de)
	require.Equal(t, id, de.PublicID)
}

func TestMemoryStore_UploadMissingFile(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Upload(context.Background(), filepath.Join(t.TempDir(), "absent.png"), "produtos")
	var ue *UploadError
	require.ErrorAs(t, err, &ue)
}
