// Command seed loads products from a JSON array into the catalog document,
// going through the same repository (and conflict handling) as the API.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/centrodecompra/catalog/internal/bootstrap"
	"github.com/centrodecompra/catalog/internal/catalog"
	"github.com/centrodecompra/catalog/internal/config"
	"github.com/centrodecompra/catalog/pkg/logger"
)

func main() {
	file := flag.String("file", "seed.json", "JSON array of products to insert")
	dryRun := flag.Bool("dry-run", false, "validate the file without writing")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.LogLevel)

	products, err := readSeed(*file)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if *dryRun {
		logger.Infof("%s: %d valid products", *file, len(products))
		return
	}

	ctx := context.Background()
	store, closeStore, err := bootstrap.OpenDocStore(ctx, cfg)
	if err != nil {
		logger.Fatalf("document store: %v", err)
	}
	defer closeStore()

	repo := bootstrap.NewRepository(cfg, store, catalog.NopLocker{})
	inserted, err := seed(ctx, repo, products)
	logger.Infof("inserted %d of %d products into %s", inserted, len(products), cfg.DocStore.Path)
	if err != nil {
		logger.Errorf("seed stopped: %v", err)
		closeStore()
		os.Exit(1)
	}
}

// readSeed decodes and validates the seed file. Products without an id get
// one assigned.
func readSeed(path string) ([]catalog.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()
	return decodeSeed(f)
}

func decodeSeed(r io.Reader) ([]catalog.Product, error) {
	var products []catalog.Product
	if err := json.NewDecoder(r).Decode(&products); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}
	for i := range products {
		if products[i].ID == "" {
			products[i].ID = catalog.NewID()
		}
		if err := products[i].Validate(); err != nil {
			return nil, fmt.Errorf("product %d (%s): %w", i, products[i].Name, err)
		}
	}
	return products, nil
}

// seed inserts products in order and stops at the first failure.
func seed(ctx context.Context, repo catalog.Repository, products []catalog.Product) (int, error) {
	existing, err := repo.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	present := make(map[string]bool, len(existing))
	for _, p := range existing {
		present[p.ID] = true
	}
	n := 0
	for _, p := range products {
		if present[p.ID] {
			logger.Infof("skip %s: already in catalog", p.ID)
			continue
		}
		if _, err := repo.Insert(ctx, p); err != nil {
			return n, fmt.Errorf("insert %s: %w", p.ID, err)
		}
		n++
	}
	return n, nil
}
