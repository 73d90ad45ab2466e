package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// File names inside the data directory. products.json doubles as the
// storefront's product feed.
const (
	productsFile = "products.json"
	sellersFile  = "sellers.json"
	reelsFile    = "reels.json"
)

// FileStore implements RecordStore over three JSON documents of the form
// {"products": [...]}, {"sellers": [...]} and {"reels": [...]}.
//
// Each collection has its own mutex, which makes the store the single
// writer for its directory. Writes go to a temp file that is renamed over
// the target, so readers never observe a half-written document. A missing
// or malformed document reads as an empty collection. Top-level keys other
// than the collection's own are kept across rewrites.
type FileStore struct {
	dir string

	productsMu sync.Mutex
	sellersMu  sync.Mutex
	reelsMu    sync.Mutex
}

// Compile-time interface check.
var _ RecordStore = (*FileStore)(nil)

// NewFileStore creates the data directory if needed and returns a store
// rooted there.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

// Dir returns the directory holding the JSON documents.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) Close() error { return nil }

// --- Products ---

func (s *FileStore) products() *collection[Product] {
	return readCollection[Product](s.path(productsFile), "products")
}

func (s *FileStore) UpsertProduct(_ context.Context, p *Product) error {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	c := s.products()
	c.items = upsertProduct(c.items, cloneProduct(p))
	return c.write(s.path(productsFile))
}

func (s *FileStore) GetProduct(_ context.Context, id string) (*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	for _, p := range s.products().items {
		if p.ID == id {
			return p, nil
		}
	}
	return nil, nil
}

func (s *FileStore) FindProduct(_ context.Context, idOrPrefix string) (*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	return findProduct(s.products().items, idOrPrefix)
}

func (s *FileStore) ListProducts(_ context.Context) ([]*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	return s.products().items, nil
}

func (s *FileStore) UpdateProduct(_ context.Context, id string, fn func(*Product) error) (*Product, error) {
	s.productsMu.Lock()
	defer s.productsMu.Unlock()

	c := s.products()
	for i, p := range c.items {
		if p.ID != id {
			continue
		}
		updated := cloneProduct(p)
		if err := fn(updated); err != nil {
			return nil, err
		}
		updated.ID = id
		updated.UpdatedAt = Now()
		c.items[i] = updated
		if err := c.write(s.path(productsFile)); err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, ErrNotFound
}

// --- Sellers ---

func (s *FileStore) sellers() *collection[SellerProfile] {
	return readCollection[SellerProfile](s.path(sellersFile), "sellers")
}

func (s *FileStore) UpsertSeller(_ context.Context, update *SellerProfile) (*SellerProfile, error) {
	s.sellersMu.Lock()
	defer s.sellersMu.Unlock()

	c := s.sellers()
	for i, existing := range c.items {
		if existing.Phone == update.Phone {
			merged := existing.Merge(update)
			c.items[i] = merged
			return merged, c.write(s.path(sellersFile))
		}
	}
	merged := (*SellerProfile)(nil).Merge(update)
	c.items = append(c.items, merged)
	return merged, c.write(s.path(sellersFile))
}

func (s *FileStore) GetSeller(_ context.Context, phone string) (*SellerProfile, error) {
	s.sellersMu.Lock()
	defer s.sellersMu.Unlock()

	for _, sp := range s.sellers().items {
		if sp.Phone == phone {
			return sp, nil
		}
	}
	return nil, nil
}

func (s *FileStore) ListSellers(_ context.Context) ([]*SellerProfile, error) {
	s.sellersMu.Lock()
	defer s.sellersMu.Unlock()

	return s.sellers().items, nil
}

// --- Reels ---

func (s *FileStore) AddReel(_ context.Context, r *Reel) error {
	s.reelsMu.Lock()
	defer s.reelsMu.Unlock()

	c := readCollection[Reel](s.path(reelsFile), "reels")
	cp := *r
	c.items = upsertReel(c.items, &cp)
	return c.write(s.path(reelsFile))
}

func (s *FileStore) ListReels(_ context.Context) ([]*Reel, error) {
	s.reelsMu.Lock()
	defer s.reelsMu.Unlock()

	return readCollection[Reel](s.path(reelsFile), "reels").items, nil
}

// --- Internal helpers ---

func (s *FileStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

// collection is one decoded document: the array under its key plus any
// other top-level keys, which are written back untouched.
type collection[T any] struct {
	key   string
	items []*T
	other map[string]json.RawMessage
}

// readCollection loads the array stored under key. Missing files and
// unparseable content both yield an empty collection; the latter is logged.
// Null entries are dropped.
func readCollection[T any](path, key string) *collection[T] {
	c := &collection[T]{key: key}
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warn().Err(err).Str("path", path).Msg("Failed to read collection, treating as empty")
		}
		return c
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("Malformed collection, treating as empty")
		return c
	}
	raw, ok := doc[key]
	delete(doc, key)
	c.other = doc
	if !ok {
		return c
	}
	var items []*T
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Warn().Err(err).Str("path", path).Str("key", key).Msg("Malformed collection, treating as empty")
		return c
	}
	c.items = make([]*T, 0, len(items))
	for _, it := range items {
		if it != nil {
			c.items = append(c.items, it)
		}
	}
	if dropped := len(items) - len(c.items); dropped > 0 {
		log.Warn().Str("path", path).Int("dropped", dropped).Msg("Dropped null entries from collection")
	}
	return c
}

// write replaces the document at path with the current items and the
// preserved keys.
func (c *collection[T]) write(path string) error {
	doc := make(map[string]any, len(c.other)+1)
	for k, v := range c.other {
		doc[k] = v
	}
	items := c.items
	if items == nil {
		items = []*T{}
	}
	doc[c.key] = items
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.key, err)
	}
	return writeFileAtomic(path, data)
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	// The storefront is served straight from this directory.
	_ = tmp.Chmod(0o644)
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
