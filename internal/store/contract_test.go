package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
)

// runContract exercises the RecordStore behaviour every backend must share.
func runContract(t *testing.T, open func(t *testing.T) RecordStore) {
	ctx := context.Background()

	t.Run("UpsertReplacesWithoutDuplicating", func(t *testing.T) {
		s := open(t)
		if err := s.UpsertProduct(ctx, &Product{ID: "p-1", Title: "Vase", Price: 300}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.UpsertProduct(ctx, &Product{ID: "p-2", Title: "Bowl", Price: 200}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if err := s.UpsertProduct(ctx, &Product{ID: "p-1", Title: "Blue Vase", Price: 450}); err != nil {
			t.Fatalf("upsert: %v", err)
		}

		list, err := s.ListProducts(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != 2 {
			t.Fatalf("expected 2 products, got %d", len(list))
		}
		count := 0
		for _, p := range list {
			if p.ID == "p-1" {
				count++
				if p.Title != "Blue Vase" || p.Price != 450 {
					t.Errorf("expected replaced fields, got %+v", p)
				}
			}
		}
		if count != 1 {
			t.Errorf("expected exactly one p-1, got %d", count)
		}
		if list[len(list)-1].ID != "p-1" {
			t.Errorf("expected re-upserted product to be most recent, got %s", list[len(list)-1].ID)
		}
	})

	t.Run("WindowKeepsMostRecent", func(t *testing.T) {
		s := open(t)
		for i := 0; i < MaxProducts+5; i++ {
			p := &Product{ID: fmt.Sprintf("prod-%02d", i), CreatedAt: fmt.Sprintf("2024-01-%02dT00:00:00Z", 28-i)}
			if err := s.UpsertProduct(ctx, p); err != nil {
				t.Fatalf("upsert %d: %v", i, err)
			}
		}
		list, err := s.ListProducts(ctx)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(list) != MaxProducts {
			t.Fatalf("expected %d products, got %d", MaxProducts, len(list))
		}
		if list[0].ID != "prod-05" {
			t.Errorf("expected oldest retained prod-05, got %s", list[0].ID)
		}
		if list[len(list)-1].ID != "prod-24" {
			t.Errorf("expected newest prod-24, got %s", list[len(list)-1].ID)
		}
		p, err := s.GetProduct(ctx, "prod-00")
		if err != nil || p != nil {
			t.Errorf("expected prod-00 evicted, got %v, %v", p, err)
		}
	})

	t.Run("GetMissingReturnsNil", func(t *testing.T) {
		s := open(t)
		p, err := s.GetProduct(ctx, "nope")
		if err != nil || p != nil {
			t.Errorf("expected nil, nil; got %v, %v", p, err)
		}
		sp, err := s.GetSeller(ctx, "+910000000000")
		if err != nil || sp != nil {
			t.Errorf("expected nil, nil; got %v, %v", sp, err)
		}
	})

	t.Run("FindProductByPrefix", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"abcd1234-0000", "abcd5678-0000", "ffff0000-1111"} {
			if err := s.UpsertProduct(ctx, &Product{ID: id}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}
		tests := []struct {
			in      string
			want    string
			wantErr error
		}{
			{"ffff0000-1111", "ffff0000-1111", nil},
			{"ffff0000", "ffff0000-1111", nil},
			{"abcd1234", "abcd1234-0000", nil},
			{"abcd", "", ErrAmbiguousID},
			{"ff", "", nil},
			{"9999", "", nil},
		}
		for _, tt := range tests {
			p, err := s.FindProduct(ctx, tt.in)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("FindProduct(%q) err = %v, want %v", tt.in, err, tt.wantErr)
				continue
			}
			got := ""
			if p != nil {
				got = p.ID
			}
			if got != tt.want {
				t.Errorf("FindProduct(%q) = %q, want %q", tt.in, got, tt.want)
			}
		}
	})

	t.Run("UpdateProductKeepsPosition", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"a-1", "b-2", "c-3"} {
			if err := s.UpsertProduct(ctx, &Product{ID: id, Price: 100, Images: []string{"x"}}); err != nil {
				t.Fatalf("upsert: %v", err)
			}
		}
		p, err := s.UpdateProduct(ctx, "a-1", func(p *Product) error {
			p.Price = 500
			return nil
		})
		if err != nil {
			t.Fatalf("update: %v", err)
		}
		if p.Price != 500 || len(p.Images) != 1 {
			t.Errorf("unexpected updated product %+v", p)
		}
		list, _ := s.ListProducts(ctx)
		if list[0].ID != "a-1" || list[0].Price != 500 {
			t.Errorf("expected a-1 first with price 500, got %+v", list[0])
		}
	})

	t.Run("UpdateProductErrors", func(t *testing.T) {
		s := open(t)
		if _, err := s.UpdateProduct(ctx, "missing", func(*Product) error { return nil }); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
		if err := s.UpsertProduct(ctx, &Product{ID: "x-1", Price: 100}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		boom := errors.New("boom")
		if _, err := s.UpdateProduct(ctx, "x-1", func(p *Product) error {
			p.Price = 1
			return boom
		}); !errors.Is(err, boom) {
			t.Errorf("expected fn error, got %v", err)
		}
		p, _ := s.GetProduct(ctx, "x-1")
		if p.Price != 100 {
			t.Errorf("expected price unchanged, got %d", p.Price)
		}
	})

	t.Run("ConcurrentUpdatesAreNotLost", func(t *testing.T) {
		s := open(t)
		if err := s.UpsertProduct(ctx, &Product{ID: "c-1"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		const n = 20
		var wg sync.WaitGroup
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := s.UpdateProduct(ctx, "c-1", func(p *Product) error {
					p.OrdersCompleted++
					return nil
				})
				if err != nil {
					t.Errorf("update: %v", err)
				}
			}()
		}
		wg.Wait()
		p, _ := s.GetProduct(ctx, "c-1")
		if p.OrdersCompleted != n {
			t.Errorf("expected %d increments, got %d", n, p.OrdersCompleted)
		}
	})

	t.Run("SellerMerge", func(t *testing.T) {
		s := open(t)
		phone := "+919876543210"
		if _, err := s.UpsertSeller(ctx, &SellerProfile{Phone: phone, Name: "Meera", Region: "Jaipur"}); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		merged, err := s.UpsertSeller(ctx, &SellerProfile{Phone: phone, Skills: []string{"pottery", "glaze"}})
		if err != nil {
			t.Fatalf("upsert: %v", err)
		}
		if merged.Name != "Meera" || merged.Region != "Jaipur" || len(merged.Skills) != 2 {
			t.Errorf("merge lost fields: %+v", merged)
		}
		got, err := s.GetSeller(ctx, phone)
		if err != nil || got == nil {
			t.Fatalf("get: %v, %v", got, err)
		}
		if got.Name != "Meera" || got.Skills[1] != "glaze" {
			t.Errorf("stored profile not merged: %+v", got)
		}
		all, _ := s.ListSellers(ctx)
		if len(all) != 1 {
			t.Errorf("expected one profile per phone, got %d", len(all))
		}
	})

	t.Run("ReelsInOrder", func(t *testing.T) {
		s := open(t)
		for _, id := range []string{"r-1", "r-2", "r-3"} {
			if err := s.AddReel(ctx, &Reel{ID: id, Caption: id}); err != nil {
				t.Fatalf("add reel: %v", err)
			}
		}
		reels, err := s.ListReels(ctx)
		if err != nil {
			t.Fatalf("list reels: %v", err)
		}
		if len(reels) != 3 || reels[0].ID != "r-1" || reels[2].ID != "r-3" {
			t.Errorf("unexpected reels order: %+v", reels)
		}
	})
}
