package publish

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kalaasaarathi/shopbot/internal/store"
)

type recordingDeployer struct {
	mu    sync.Mutex
	calls [][]string
	err   error
}

func (d *recordingDeployer) Deploy(_ context.Context, files []string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, append([]string(nil), files...))
	return d.err
}

func (d *recordingDeployer) Name() string { return "recording" }

func TestPublish(t *testing.T) {
	site := t.TempDir()
	dep := &recordingDeployer{}
	p := New(site, "https://shop.example.com/", dep).WithBuyNumber("whatsapp:+91 98765 43210")

	got := p.Publish(context.Background(), PageInput{
		ID:          "abcdef12-3456",
		Title:       "Clay Diya",
		Description: "A **warm** glow",
		Price:       120,
		Images:      []string{"https://img/1.jpg"},
	})
	if got != "https://shop.example.com/product/abcdef12-3456.html" {
		t.Errorf("url = %s", got)
	}

	page, err := os.ReadFile(filepath.Join(site, "product", "abcdef12-3456.html"))
	if err != nil {
		t.Fatalf("page not written: %v", err)
	}
	for _, want := range []string{"Clay Diya", "A warm glow", "₹120", "edit abcdef12 ", "https://wa.me/919876543210?text=I%20want%20to%20buy%20abcdef12-3456"} {
		if !strings.Contains(string(page), want) {
			t.Errorf("page missing %q", want)
		}
	}
	if len(dep.calls) != 1 || dep.calls[0][0] != filepath.Join("product", "abcdef12-3456.html") {
		t.Errorf("unexpected deploy calls %v", dep.calls)
	}
}

func TestPublish_NeverFails(t *testing.T) {
	tests := []struct {
		name    string
		siteDir func(t *testing.T) string
		dep     Deployer
	}{
		{
			name:    "deploy error",
			siteDir: func(t *testing.T) string { return t.TempDir() },
			dep:     &recordingDeployer{err: errors.New("firebase down")},
		},
		{
			name: "unwritable site",
			siteDir: func(t *testing.T) string {
				// A regular file where the site directory should be.
				f := filepath.Join(t.TempDir(), "site")
				_ = os.WriteFile(f, []byte("x"), 0o644)
				return f
			},
			dep: NoopDeployer{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.siteDir(t), "https://shop.example.com", tt.dep)
			if got := p.Publish(context.Background(), PageInput{ID: "p1"}); got != "https://shop.example.com/product/p1.html" {
				t.Errorf("url = %s", got)
			}
		})
	}
}

func TestRebuildIndex(t *testing.T) {
	site := t.TempDir()
	dep := &recordingDeployer{}
	p := New(site, "https://shop.example.com", dep)

	products := []*store.Product{
		{ID: "old", Title: "Old Pot", Price: 100, Images: []string{"https://img/old.jpg"}},
		{ID: "new", Title: "New Shawl", Price: 900, URL: "https://shop.example.com/product/new.html"},
	}
	reels := []*store.Reel{{ID: "r1", VideoURL: "https://v/r1.mp4", Caption: "At the loom"}}
	if err := p.RebuildIndex(context.Background(), products, reels); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}

	index, err := os.ReadFile(filepath.Join(site, IndexFile))
	if err != nil {
		t.Fatal(err)
	}
	html := string(index)
	if strings.Index(html, "New Shawl") > strings.Index(html, "Old Pot") {
		t.Error("newest product should be listed first")
	}
	if !strings.Contains(html, "https://shop.example.com/product/old.html") {
		t.Error("missing derived product URL")
	}
	if !strings.Contains(html, "At the loom") {
		t.Error("missing reel")
	}

	var doc struct {
		Products []*store.Product `json:"products"`
	}
	data, _ := os.ReadFile(filepath.Join(site, ProductsFile))
	if err := json.Unmarshal(data, &doc); err != nil || len(doc.Products) != 2 {
		t.Errorf("products snapshot: %v, %d", err, len(doc.Products))
	}
	if _, err := os.Stat(filepath.Join(site, ReelsFile)); err != nil {
		t.Errorf("reels snapshot missing: %v", err)
	}
	if len(dep.calls) != 1 || len(dep.calls[0]) != 3 {
		t.Errorf("unexpected deploy calls %v", dep.calls)
	}
}

func TestRebuildIndex_WithoutSnapshots(t *testing.T) {
	site := t.TempDir()
	dep := &recordingDeployer{}
	p := New(site, "https://shop.example.com", dep).WithoutSnapshots()

	if err := p.RebuildIndex(context.Background(), nil, nil); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	if _, err := os.Stat(filepath.Join(site, ProductsFile)); !os.IsNotExist(err) {
		t.Errorf("products.json should not be written, stat err = %v", err)
	}
	if len(dep.calls) != 1 || len(dep.calls[0]) != 1 || dep.calls[0][0] != IndexFile {
		t.Errorf("unexpected deploy calls %v", dep.calls)
	}
}

func TestRebuildIndex_WithoutSnapshotsShipsStoreDocuments(t *testing.T) {
	site := t.TempDir()
	doc := []byte(`{"products":[]}`)
	if err := os.WriteFile(filepath.Join(site, ProductsFile), doc, 0o644); err != nil {
		t.Fatal(err)
	}
	dep := &recordingDeployer{}
	p := New(site, "https://shop.example.com", dep).WithoutSnapshots()

	if err := p.RebuildIndex(context.Background(), nil, nil); err != nil {
		t.Fatalf("RebuildIndex: %v", err)
	}
	got, _ := os.ReadFile(filepath.Join(site, ProductsFile))
	if string(got) != string(doc) {
		t.Errorf("products.json was rewritten: %s", got)
	}
	if len(dep.calls) != 1 || strings.Join(dep.calls[0], ",") != IndexFile+","+ProductsFile {
		t.Errorf("unexpected deploy calls %v", dep.calls)
	}
}

func TestShortID(t *testing.T) {
	if got := ShortID("0123456789"); got != "01234567" {
		t.Errorf("got %s", got)
	}
	if got := ShortID("abc"); got != "abc" {
		t.Errorf("got %s", got)
	}
}

func TestRebuildIndex_WriteFailureIsReturned(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "site")
	if err := os.WriteFile(blocker, []byte("not a dir"), 0o644); err != nil {
		t.Fatal(err)
	}
	dep := &recordingDeployer{}
	p := New(blocker, "https://shop.example.com", dep)

	if err := p.RebuildIndex(context.Background(), []*store.Product{{ID: "p1"}}, nil); err == nil {
		t.Fatal("expected an error when the site dir is not writable")
	}
	if len(dep.calls) != 0 {
		t.Errorf("nothing should be deployed after a failed write, got %v", dep.calls)
	}
}
