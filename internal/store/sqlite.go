package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // pure-Go SQLite driver
)

// SQLiteStore implements RecordStore on an embedded SQLite database.
// Upserts are single INSERT ... ON CONFLICT statements run in a transaction
// together with the window trim. The pool is capped at one connection, so
// SQLite itself serializes writers.
type SQLiteStore struct {
	db *sqlx.DB
}

// Compile-time interface check.
var _ RecordStore = (*SQLiteStore)(nil)

// OpenSQLite opens (or creates) the database at dsn and ensures the schema.
// Use ":memory:" for a throwaway database.
func OpenSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", dsn, err)
	}
	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

func ensureSchema(db *sqlx.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS products(
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  title TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  price INTEGER NOT NULL DEFAULT 0 CHECK (price >= 0),
  images_json TEXT NOT NULL DEFAULT '[]',
  category TEXT NOT NULL DEFAULT '',
  artisan_name TEXT NOT NULL DEFAULT '',
  artisan_region TEXT NOT NULL DEFAULT '',
  artisan_phone TEXT NOT NULL DEFAULT '',
  user_phone TEXT NOT NULL DEFAULT '',
  material TEXT NOT NULL DEFAULT '',
  dimensions TEXT NOT NULL DEFAULT '',
  rating REAL NOT NULL DEFAULT 0,
  reviews_count INTEGER NOT NULL DEFAULT 0,
  orders_completed INTEGER NOT NULL DEFAULT 0,
  in_stock BOOLEAN NOT NULL DEFAULT 1,
  url TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_products_seq ON products(seq);

CREATE TABLE IF NOT EXISTS sellers(
  phone TEXT PRIMARY KEY,
  name TEXT NOT NULL DEFAULT '',
  region TEXT NOT NULL DEFAULT '',
  bio TEXT NOT NULL DEFAULT '',
  skills_json TEXT NOT NULL DEFAULT '[]',
  profile_image TEXT NOT NULL DEFAULT '',
  updated_at TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS reels(
  id TEXT PRIMARY KEY,
  seq INTEGER NOT NULL,
  video_url TEXT NOT NULL DEFAULT '',
  caption TEXT NOT NULL DEFAULT '',
  seller_name TEXT NOT NULL DEFAULT '',
  seller_region TEXT NOT NULL DEFAULT '',
  seller_phone TEXT NOT NULL DEFAULT '',
  likes INTEGER NOT NULL DEFAULT 0,
  comments INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL DEFAULT ''
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// productRow carries the columns that do not map one-to-one onto Product.
type productRow struct {
	Product
	Seq        int64  `db:"seq"`
	ImagesJSON string `db:"images_json"`
}

const productColumns = `id, seq, title, description, price, images_json, category,
  artisan_name, artisan_region, artisan_phone, user_phone, material, dimensions,
  rating, reviews_count, orders_completed, in_stock, url, created_at, updated_at`

func toProductRow(p *Product) (*productRow, error) {
	images := p.Images
	if images == nil {
		images = []string{}
	}
	b, err := json.Marshal(images)
	if err != nil {
		return nil, fmt.Errorf("marshal images: %w", err)
	}
	return &productRow{Product: *p, ImagesJSON: string(b)}, nil
}

func (r *productRow) product() (*Product, error) {
	p := r.Product
	if err := json.Unmarshal([]byte(r.ImagesJSON), &p.Images); err != nil {
		return nil, fmt.Errorf("product %s images: %w", p.ID, err)
	}
	return &p, nil
}

// --- Products ---

func (s *SQLiteStore) UpsertProduct(ctx context.Context, p *Product) error {
	row, err := toProductRow(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := tx.GetContext(ctx, &row.Seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM products`); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}

	_, err = tx.NamedExecContext(ctx, `
INSERT INTO products(`+productColumns+`)
VALUES(:id, :seq, :title, :description, :price, :images_json, :category,
  :artisan_name, :artisan_region, :artisan_phone, :user_phone, :material, :dimensions,
  :rating, :reviews_count, :orders_completed, :in_stock, :url, :created_at, :updated_at)
ON CONFLICT(id) DO UPDATE SET
  seq = excluded.seq, title = excluded.title, description = excluded.description,
  price = excluded.price, images_json = excluded.images_json, category = excluded.category,
  artisan_name = excluded.artisan_name, artisan_region = excluded.artisan_region,
  artisan_phone = excluded.artisan_phone, user_phone = excluded.user_phone,
  material = excluded.material, dimensions = excluded.dimensions, rating = excluded.rating,
  reviews_count = excluded.reviews_count, orders_completed = excluded.orders_completed,
  in_stock = excluded.in_stock, url = excluded.url, created_at = excluded.created_at,
  updated_at = excluded.updated_at`, row)
	if err != nil {
		return fmt.Errorf("upsert product %s: %w", p.ID, err)
	}

	_, err = tx.ExecContext(ctx, `
DELETE FROM products WHERE id NOT IN (
  SELECT id FROM products ORDER BY seq DESC LIMIT ?
)`, MaxProducts)
	if err != nil {
		return fmt.Errorf("trim products: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetProduct(ctx context.Context, id string) (*Product, error) {
	return getProduct(ctx, s.db, id)
}

func getProduct(ctx context.Context, q sqlx.QueryerContext, id string) (*Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}
	return row.product()
}

func (s *SQLiteStore) FindProduct(ctx context.Context, idOrPrefix string) (*Product, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if p, err := s.GetProduct(ctx, idOrPrefix); p != nil || err != nil {
		return p, err
	}
	if len(idOrPrefix) < MinPrefixLen {
		return nil, nil
	}

	var rows []productRow
	// LIKE would treat % and _ in user input as wildcards; substr does not.
	err := s.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products
WHERE substr(id, 1, ?) = ? ORDER BY seq LIMIT 2`, len(idOrPrefix), idOrPrefix)
	if err != nil {
		return nil, fmt.Errorf("find product %s: %w", idOrPrefix, err)
	}
	switch len(rows) {
	case 0:
		return nil, nil
	case 1:
		return rows[0].product()
	default:
		return nil, ErrAmbiguousID
	}
}

func (s *SQLiteStore) ListProducts(ctx context.Context) ([]*Product, error) {
	var rows []productRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+productColumns+` FROM products ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	out := make([]*Product, 0, len(rows))
	for i := range rows {
		p, err := rows[i].product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *SQLiteStore) UpdateProduct(ctx context.Context, id string, fn func(*Product) error) (*Product, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	p, err := getProduct(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrNotFound
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	p.ID = id
	p.UpdatedAt = Now()

	row, err := toProductRow(p)
	if err != nil {
		return nil, err
	}
	_, err = tx.NamedExecContext(ctx, `
UPDATE products SET
  title = :title, description = :description, price = :price, images_json = :images_json,
  category = :category, artisan_name = :artisan_name, artisan_region = :artisan_region,
  artisan_phone = :artisan_phone, user_phone = :user_phone, material = :material,
  dimensions = :dimensions, rating = :rating, reviews_count = :reviews_count,
  orders_completed = :orders_completed, in_stock = :in_stock, url = :url,
  updated_at = :updated_at
WHERE id = :id`, row)
	if err != nil {
		return nil, fmt.Errorf("update product %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return p, nil
}

// --- Sellers ---

type sellerRow struct {
	SellerProfile
	SkillsJSON string `db:"skills_json"`
}

const sellerColumns = `phone, name, region, bio, skills_json, profile_image, updated_at`

func (r *sellerRow) seller() (*SellerProfile, error) {
	sp := r.SellerProfile
	if err := json.Unmarshal([]byte(r.SkillsJSON), &sp.Skills); err != nil {
		return nil, fmt.Errorf("seller %s skills: %w", sp.Phone, err)
	}
	return &sp, nil
}

func getSeller(ctx context.Context, q sqlx.QueryerContext, phone string) (*SellerProfile, error) {
	var row sellerRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT `+sellerColumns+` FROM sellers WHERE phone = ?`, phone)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get seller %s: %w", phone, err)
	}
	return row.seller()
}

func (s *SQLiteStore) UpsertSeller(ctx context.Context, update *SellerProfile) (*SellerProfile, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	existing, err := getSeller(ctx, tx, update.Phone)
	if err != nil {
		return nil, err
	}
	merged := existing.Merge(update)

	skills := merged.Skills
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return nil, fmt.Errorf("marshal skills: %w", err)
	}
	_, err = tx.NamedExecContext(ctx, `
INSERT INTO sellers(`+sellerColumns+`)
VALUES(:phone, :name, :region, :bio, :skills_json, :profile_image, :updated_at)
ON CONFLICT(phone) DO UPDATE SET
  name = excluded.name, region = excluded.region, bio = excluded.bio,
  skills_json = excluded.skills_json, profile_image = excluded.profile_image,
  updated_at = excluded.updated_at`, &sellerRow{SellerProfile: *merged, SkillsJSON: string(b)})
	if err != nil {
		return nil, fmt.Errorf("upsert seller %s: %w", update.Phone, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return merged, nil
}

func (s *SQLiteStore) GetSeller(ctx context.Context, phone string) (*SellerProfile, error) {
	return getSeller(ctx, s.db, phone)
}

func (s *SQLiteStore) ListSellers(ctx context.Context) ([]*SellerProfile, error) {
	var rows []sellerRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+sellerColumns+` FROM sellers ORDER BY phone`); err != nil {
		return nil, fmt.Errorf("list sellers: %w", err)
	}
	out := make([]*SellerProfile, 0, len(rows))
	for i := range rows {
		sp, err := rows[i].seller()
		if err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, nil
}

// --- Reels ---

type reelRow struct {
	Reel
	Seq int64 `db:"seq"`
}

const reelColumns = `id, seq, video_url, caption, seller_name, seller_region, seller_phone, likes, comments, created_at`

func (s *SQLiteStore) AddReel(ctx context.Context, r *Reel) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	row := &reelRow{Reel: *r}
	if err := tx.GetContext(ctx, &row.Seq, `SELECT COALESCE(MAX(seq), 0) + 1 FROM reels`); err != nil {
		return fmt.Errorf("next seq: %w", err)
	}
	_, err = tx.NamedExecContext(ctx, `
INSERT INTO reels(`+reelColumns+`)
VALUES(:id, :seq, :video_url, :caption, :seller_name, :seller_region, :seller_phone, :likes, :comments, :created_at)
ON CONFLICT(id) DO UPDATE SET
  seq = excluded.seq, video_url = excluded.video_url, caption = excluded.caption,
  seller_name = excluded.seller_name, seller_region = excluded.seller_region,
  seller_phone = excluded.seller_phone, likes = excluded.likes,
  comments = excluded.comments, created_at = excluded.created_at`, row)
	if err != nil {
		return fmt.Errorf("add reel %s: %w", r.ID, err)
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListReels(ctx context.Context) ([]*Reel, error) {
	var rows []reelRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+reelColumns+` FROM reels ORDER BY seq`); err != nil {
		return nil, fmt.Errorf("list reels: %w", err)
	}
	out := make([]*Reel, 0, len(rows))
	for i := range rows {
		r := rows[i].Reel
		out = append(out, &r)
	}
	return out, nil
}
