// Package publish renders the static storefront and hands it to a deployer.
//
// Product pages live at <site>/product/<id>.html. The shop index and the
// products.json and reels.json snapshots are rebuilt after every product or
// reel change. Publishing is best effort: render and deploy failures are
// logged and the product URL is returned regardless, so the chat pipeline
// can always tell the seller where their shop is.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/assets"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

// DefaultBuyNumber is the WhatsApp number buyers message from a product
// page when none is configured (the Twilio sandbox number).
const DefaultBuyNumber = "14155238886"

// Site-relative paths of the shared storefront files.
const (
	IndexFile    = "index.html"
	ProductsFile = "products.json"
	ReelsFile    = "reels.json"
)

// PageInput is what a product page shows.
type PageInput struct {
	ID          string
	Title       string
	Description string
	Price       int
	Images      []string
}

// Publisher renders pages into a site directory and deploys them.
type Publisher struct {
	siteDir       string
	baseURL       string
	buyNumber     string
	deployer      Deployer
	skipSnapshots bool

	// mu serializes writes to the shared index files.
	mu sync.Mutex
}

// New returns a Publisher writing under siteDir. baseURL is the public
// origin the site is served from.
func New(siteDir, baseURL string, deployer Deployer) *Publisher {
	if deployer == nil {
		deployer = NoopDeployer{}
	}
	return &Publisher{
		siteDir:   siteDir,
		baseURL:   strings.TrimRight(baseURL, "/"),
		buyNumber: DefaultBuyNumber,
		deployer:  deployer,
	}
}

// WithBuyNumber sets the WhatsApp number used for buy links. Anything but
// digits is stripped, so "whatsapp:+1 415..." works.
func (p *Publisher) WithBuyNumber(number string) *Publisher {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, number)
	if digits != "" {
		p.buyNumber = digits
	}
	return p
}

// WithoutSnapshots stops RebuildIndex from writing products.json and
// reels.json. Used when the file store already keeps those documents in
// the site directory.
func (p *Publisher) WithoutSnapshots() *Publisher {
	p.skipSnapshots = true
	return p
}

// Deployer reports the configured deployer.
func (p *Publisher) Deployer() Deployer { return p.deployer }

// ProductURL returns the public URL of a product page.
func (p *Publisher) ProductURL(id string) string {
	return p.baseURL + "/product/" + id + ".html"
}

// ShortID is the id prefix shown to sellers.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Publish renders the product page and deploys it. It never fails: the
// product URL is returned even when rendering or deploying did not work.
func (p *Publisher) Publish(ctx context.Context, in PageInput) string {
	start := time.Now()
	productURL := p.ProductURL(in.ID)
	rel := filepath.Join("product", in.ID+".html")

	var buf bytes.Buffer
	err := assets.RenderProductPage(&buf, assets.ProductPage{
		ID:          in.ID,
		ShortID:     ShortID(in.ID),
		Title:       in.Title,
		Description: strings.ReplaceAll(in.Description, "*", ""),
		Price:       in.Price,
		Images:      in.Images,
		BuyURL:      p.buyURL(in.ID),
		ShopURL:     p.baseURL + "/",
	})
	if err == nil {
		err = writeFileAtomic(filepath.Join(p.siteDir, rel), buf.Bytes())
	}
	if err != nil {
		log.Error().Err(err).Str("productId", in.ID).Msg("Failed to render product page")
		metrics.RecordFallback("publish_render")
		return productURL
	}

	p.deploy(ctx, []string{rel})
	log.Info().
		Str("productId", in.ID).
		Str("url", productURL).
		Dur("duration", time.Since(start)).
		Msg("Product page published")
	return productURL
}

// RebuildIndex renders index.html and the JSON snapshots from the given
// records and deploys them. products are in store order (oldest first);
// the index shows the newest first. A write failure is returned and nothing
// is deployed; deploy failures are only logged, as in Publish.
func (p *Publisher) RebuildIndex(ctx context.Context, products []*store.Product, reels []*store.Reel) error {
	p.mu.Lock()
	files, err := p.writeIndex(products, reels)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("rebuild shop index: %w", err)
	}
	p.deploy(ctx, files)
	log.Debug().Int("products", len(products)).Int("reels", len(reels)).Msg("Shop index rebuilt")
	return nil
}

func (p *Publisher) writeIndex(products []*store.Product, reels []*store.Reel) ([]string, error) {
	index := assets.ShopIndex{GeneratedAt: store.Now()}
	for i := len(products) - 1; i >= 0; i-- {
		pr := products[i]
		card := assets.ShopCard{
			Title:         pr.Title,
			Price:         pr.Price,
			Category:      pr.Category,
			ArtisanName:   pr.ArtisanName,
			ArtisanRegion: pr.ArtisanRegion,
			URL:           pr.URL,
		}
		if card.URL == "" {
			card.URL = p.ProductURL(pr.ID)
		}
		if len(pr.Images) > 0 {
			card.Image = pr.Images[0]
		}
		index.Products = append(index.Products, card)
	}
	for i := len(reels) - 1; i >= 0; i-- {
		r := reels[i]
		index.Reels = append(index.Reels, assets.ShopReel{
			VideoURL:     r.VideoURL,
			Caption:      r.Caption,
			SellerName:   r.SellerName,
			SellerRegion: r.SellerRegion,
			Likes:        r.Likes,
		})
	}

	var buf bytes.Buffer
	if err := assets.RenderShopIndex(&buf, index); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(p.siteDir, IndexFile), buf.Bytes()); err != nil {
		return nil, err
	}
	files := []string{IndexFile}
	if p.skipSnapshots {
		// The store writes the snapshots itself; ship whatever is there.
		for _, f := range []string{ProductsFile, ReelsFile} {
			if _, err := os.Stat(filepath.Join(p.siteDir, f)); err == nil {
				files = append(files, f)
			}
		}
		return files, nil
	}

	if products == nil {
		products = []*store.Product{}
	}
	if reels == nil {
		reels = []*store.Reel{}
	}
	if err := writeJSON(filepath.Join(p.siteDir, ProductsFile), map[string]any{"products": products}); err != nil {
		return nil, err
	}
	if err := writeJSON(filepath.Join(p.siteDir, ReelsFile), map[string]any{"reels": reels}); err != nil {
		return nil, err
	}
	return append(files, ProductsFile, ReelsFile), nil
}

// deploy runs the deployer, logging failures.
func (p *Publisher) deploy(ctx context.Context, files []string) {
	start := time.Now()
	if err := p.deployer.Deploy(ctx, files); err != nil {
		log.Error().Err(err).Str("deployer", p.deployer.Name()).Strs("files", files).Msg("Deploy failed")
		metrics.RecordFallback("deploy")
		return
	}
	log.Debug().Str("deployer", p.deployer.Name()).Int("files", len(files)).Dur("duration", time.Since(start)).Msg("Deployed")
}

func (p *Publisher) buyURL(id string) string {
	return "https://wa.me/" + p.buyNumber + "?text=" + url.PathEscape("I want to buy "+id)
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, data)
}

// writeFileAtomic replaces path through a temp file and rename, so the web
// server never serves a half-written page.
func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", path, err)
	}
	tmpName := tmp.Name()
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
