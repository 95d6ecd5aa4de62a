package catalog

import "errors"

var (
	// ErrNotFound is returned when no product matches the id, or the catalog
	// document does not exist yet.
	ErrNotFound = errors.New("product not found")
	// ErrConflict is returned when the document kept changing underneath a
	// mutation for every allowed attempt.
	ErrConflict = errors.New("catalog changed concurrently, retries exhausted")
	// ErrDocumentTooLarge is returned before any write when the serialized
	// catalog would exceed the size ceiling.
	ErrDocumentTooLarge = errors.New("catalog document exceeds size limit")
	// ErrInvalidProduct is returned when a product fails Validate.
	ErrInvalidProduct = errors.New("invalid product")
	// ErrPriceOutOfRange is returned by ParsePrice for prices too precise or
	// too large to store.
	ErrPriceOutOfRange = errors.New("price out of range")
	// ErrCorruptDocument is returned when the stored document is not a JSON
	// array of products.
	ErrCorruptDocument = errors.New("catalog document is not valid JSON")
)
