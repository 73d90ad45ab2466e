// Package store persists the shop's records: products, seller profiles and
// reels. Three backends implement RecordStore: JSON files on local disk
// (the same documents the storefront fetches), an embedded SQLite
// database, and a DynamoDB table.
//
// Products are kept in recency order. Every upsert moves the product to the
// end of the list and the store retains only the MaxProducts most recent
// entries; field edits made through UpdateProduct keep the product's
// position. Seller upserts merge into the stored profile.
//
// Every backend serializes its read-modify-write cycles, so two concurrent
// edits never overwrite each other.
package store

import (
	"context"
	"errors"
	"strings"
)

// MaxProducts is the size of the product recency window.
const MaxProducts = 20

// MinPrefixLen is the shortest id prefix FindProduct will resolve.
const MinPrefixLen = 4

var (
	// ErrNotFound is returned by UpdateProduct when no product has the id.
	ErrNotFound = errors.New("store: record not found")

	// ErrAmbiguousID is returned by FindProduct when a prefix matches
	// more than one product.
	ErrAmbiguousID = errors.New("store: id prefix matches more than one product")
)

// RecordStore is the persistence interface shared by the bot, the REST API
// and the publish step. Implementations are safe for concurrent use.
//
// Get and Find methods return (nil, nil) when the record does not exist.
type RecordStore interface {
	// UpsertProduct replaces any product with the same id, appends it as
	// the most recent entry and trims the window to MaxProducts.
	UpsertProduct(ctx context.Context, p *Product) error

	// GetProduct looks a product up by its full id.
	GetProduct(ctx context.Context, id string) (*Product, error)

	// FindProduct resolves a full id or a unique id prefix of at least
	// MinPrefixLen characters.
	FindProduct(ctx context.Context, idOrPrefix string) (*Product, error)

	// ListProducts returns the window in recency order, oldest first.
	ListProducts(ctx context.Context) ([]*Product, error)

	// UpdateProduct applies fn to the stored product and persists the
	// result atomically. The product keeps its place in the window.
	// Returns ErrNotFound when the id is unknown; an error from fn aborts
	// the update and is returned unchanged.
	UpdateProduct(ctx context.Context, id string, fn func(*Product) error) (*Product, error)

	// UpsertSeller merges the non-empty fields of s into the stored
	// profile for s.Phone and returns the merged result.
	UpsertSeller(ctx context.Context, s *SellerProfile) (*SellerProfile, error)

	// GetSeller looks a profile up by phone.
	GetSeller(ctx context.Context, phone string) (*SellerProfile, error)

	// ListSellers returns every stored profile.
	ListSellers(ctx context.Context) ([]*SellerProfile, error)

	// AddReel replaces any reel with the same id and appends it.
	AddReel(ctx context.Context, r *Reel) error

	// ListReels returns reels in insertion order, oldest first.
	ListReels(ctx context.Context) ([]*Reel, error)

	Close() error
}

// Categories is the closed set of product categories advertised to sellers.
var Categories = []string{
	"pottery", "textiles", "jewelry", "paintings", "wooden",
	"metalwork", "leather", "papercraft", "home-decor", "accessories",
}

// FallbackCategory is used when no category can be derived for a product.
const FallbackCategory = "handmade"

// IsCategory reports whether c is one of the advertised categories.
func IsCategory(c string) bool {
	c = strings.ToLower(strings.TrimSpace(c))
	for _, known := range Categories {
		if c == known {
			return true
		}
	}
	return false
}

// NormalizePhone strips the transport prefix from a sender address so that
// "whatsapp:+919876543210" and "+919876543210" key the same seller.
func NormalizePhone(from string) string {
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(from), "whatsapp:"))
}
