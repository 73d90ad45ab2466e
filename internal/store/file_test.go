package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestFileStore_Contract(t *testing.T) {
	runContract(t, func(t *testing.T) RecordStore {
		s, err := NewFileStore(t.TempDir())
		if err != nil {
			t.Fatalf("NewFileStore: %v", err)
		}
		return s
	})
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "nested", "data"))
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 0 {
		t.Errorf("expected empty products, got %d", len(products))
	}
	reels, err := s.ListReels(ctx)
	if err != nil || len(reels) != 0 {
		t.Errorf("expected empty reels, got %d, %v", len(reels), err)
	}
}

func TestFileStore_MalformedFileIsEmpty(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{productsFile, sellersFile, reelsFile} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{not json"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	products, err := s.ListProducts(ctx)
	if err != nil || len(products) != 0 {
		t.Errorf("expected empty products without error, got %d, %v", len(products), err)
	}
	sellers, err := s.ListSellers(ctx)
	if err != nil || len(sellers) != 0 {
		t.Errorf("expected empty sellers without error, got %d, %v", len(sellers), err)
	}

	// A write after corruption starts a fresh document.
	if err := s.UpsertProduct(ctx, &Product{ID: "p-1"}); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	products, _ = s.ListProducts(ctx)
	if len(products) != 1 {
		t.Errorf("expected 1 product after rewrite, got %d", len(products))
	}
}

func TestFileStore_NullEntriesAreDropped(t *testing.T) {
	dir := t.TempDir()
	docs := map[string]string{
		productsFile: `{"products":[null,{"id":"abc","title":"Pot"},null]}`,
		sellersFile:  `{"sellers":[null,{"phone":"+911"}]}`,
		reelsFile:    `{"reels":[null]}`,
	}
	for name, body := range docs {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	got, err := s.GetProduct(ctx, "abc")
	if err != nil || got == nil || got.Title != "Pot" {
		t.Fatalf("GetProduct = %+v, %v", got, err)
	}
	if p, err := s.FindProduct(ctx, "abc"); err != nil || p == nil {
		t.Errorf("FindProduct = %+v, %v", p, err)
	}
	if _, err := s.UpdateProduct(ctx, "abc", func(p *Product) error { p.Price = 10; return nil }); err != nil {
		t.Errorf("UpdateProduct: %v", err)
	}
	if err := s.UpsertProduct(ctx, &Product{ID: "x"}); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}
	products, _ := s.ListProducts(ctx)
	if len(products) != 2 {
		t.Errorf("expected 2 products, got %d", len(products))
	}

	if sp, err := s.GetSeller(ctx, "+911"); err != nil || sp == nil {
		t.Errorf("GetSeller = %+v, %v", sp, err)
	}
	if _, err := s.UpsertSeller(ctx, &SellerProfile{Phone: "+912", Name: "Asha"}); err != nil {
		t.Errorf("UpsertSeller: %v", err)
	}
	if err := s.AddReel(ctx, &Reel{ID: "r1"}); err != nil {
		t.Errorf("AddReel: %v", err)
	}
	if reels, _ := s.ListReels(ctx); len(reels) != 1 {
		t.Errorf("expected 1 reel, got %d", len(reels))
	}

	// The rewritten document no longer carries the nulls.
	data, _ := os.ReadFile(filepath.Join(dir, productsFile))
	var doc struct {
		Products []any `json:"products"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for i, p := range doc.Products {
		if p == nil {
			t.Errorf("null entry written back at index %d", i)
		}
	}
}

func TestFileStore_KeepsOtherKeys(t *testing.T) {
	dir := t.TempDir()
	body := `{"products":[{"id":"abc"}],"generated_at":"2024","shop":{"name":"Kala"}}`
	if err := os.WriteFile(filepath.Join(dir, productsFile), []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	ctx := context.Background()

	if p, _ := s.GetProduct(ctx, "abc"); p == nil {
		t.Fatal("product lost when the document has extra keys")
	}
	if err := s.UpsertProduct(ctx, &Product{ID: "def"}); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, productsFile))
	if err != nil {
		t.Fatal(err)
	}
	var doc struct {
		Products    []map[string]any `json:"products"`
		GeneratedAt string           `json:"generated_at"`
		Shop        struct {
			Name string `json:"name"`
		} `json:"shop"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Products) != 2 || doc.GeneratedAt != "2024" || doc.Shop.Name != "Kala" {
		t.Errorf("unexpected document after upsert: %s", data)
	}
}

func TestFileStore_WrongTypeUnderKeyIsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, productsFile), []byte(`{"products":"oops","generated_at":"2024"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	s, _ := NewFileStore(dir)
	products, err := s.ListProducts(context.Background())
	if err != nil || len(products) != 0 {
		t.Errorf("expected empty products, got %d, %v", len(products), err)
	}
}

func TestFileStore_DocumentShape(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	p := &Product{
		ID:           "p-1",
		Title:        "Terracotta Lamp",
		Price:        450,
		Images:       []string{"a.jpg", "b.jpg", "c.jpg", "d.jpg"},
		Category:     "pottery",
		ArtisanPhone: "+911234567890",
		InStock:      true,
	}
	if err := s.UpsertProduct(context.Background(), p); err != nil {
		t.Fatalf("UpsertProduct: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, productsFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc struct {
		Products []map[string]any `json:"products"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(doc.Products) != 1 {
		t.Fatalf("expected 1 product, got %d", len(doc.Products))
	}
	got := doc.Products[0]
	for _, key := range []string{"id", "title", "price", "images", "category", "artisan_phone", "in_stock", "rating"} {
		if _, ok := got[key]; !ok {
			t.Errorf("missing key %q in %v", key, got)
		}
	}

	// The caller's struct is not aliased by the stored copy.
	p.Images[0] = "mutated.jpg"
	stored, _ := s.GetProduct(context.Background(), "p-1")
	if stored.Images[0] != "a.jpg" {
		t.Errorf("stored images aliased caller slice: %v", stored.Images)
	}
}

func TestNormalizePhone(t *testing.T) {
	tests := []struct{ in, want string }{
		{"whatsapp:+919876543210", "+919876543210"},
		{"+919876543210", "+919876543210"},
		{"  whatsapp:+1 ", "+1"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizePhone(tt.in); got != tt.want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsCategory(t *testing.T) {
	if !IsCategory("Pottery") {
		t.Error("expected Pottery to be a category")
	}
	if IsCategory("handmade") {
		t.Error("fallback category is not advertised")
	}
}
