package main

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/docstore"
)

const seedJSON = `[
  {"id":"mesa-1","name":"Mesa","category":"casa","store":"lojaX","link":"http://x","price":199.90,"images":["http://img/mesa.png"]},
  {"name":"Cadeira","category":"casa","store":"lojaX","link":"http://x/c","price":"49,90","images":["http://img/c.png","http://img/c2.png"]}
]`

func TestDecodeSeed(t *testing.T) {
	products, err := decodeSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "mesa-1", products[0].ID)
	require.NotEmpty(t, products[1].ID)
	require.Equal(t, "49.90", products[1].Price.String())
}

func TestDecodeSeed_Invalid(t *testing.T) {
	_, err := decodeSeed(strings.NewReader(`[{"name":"Sem imagem","category":"c","store":"s","link":"l","price":1,"images":[]}]`))
	require.ErrorIs(t, err, catalog.ErrInvalidProduct)

	_, err = decodeSeed(strings.NewReader(`{"not":"array"}`))
	require.Error(t, err)
}

func TestSeed_SkipsExisting(t *testing.T) {
	ctx := context.Background()
	repo := catalog.NewDocumentRepository(docstore.NewMemoryStore(), "produtos.json")
	products, err := decodeSeed(strings.NewReader(seedJSON))
	require.NoError(t, err)

	n, err := seed(ctx, repo, products)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	n, err = seed(ctx, repo, products)
	require.NoError(t, err)
	require.Zero(t, n)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
