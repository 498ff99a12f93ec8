package catalog

import "errors"

// Sentinel errors for catalog operations.
var (
	// ErrCategoryNotFound is returned when a category does not exist.
	ErrCategoryNotFound = errors.New("category not found")

	// ErrProductNotFound is returned when a product does not exist.
	ErrProductNotFound = errors.New("product not found")

	// ErrVariantNotFound is returned when a variant does not exist.
	ErrVariantNotFound = errors.New("variant not found")

	// ErrExists is returned when a slug or SKU is already taken.
	ErrExists = errors.New("slug or sku already exists")

	// ErrCategoryInUse is returned when deleting a category that still has
	// products and no transfer target was given.
	ErrCategoryInUse = errors.New("category has products; transfer them first")

	// ErrInvalidTransfer is returned when the transfer target is the
	// category being deleted.
	ErrInvalidTransfer = errors.New("invalid transfer category")

	// ErrNegativeStock is returned when an adjustment would push stock below zero.
	ErrNegativeStock = errors.New("stock cannot be negative")
)
