package api

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/publish"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

// POST /api/create-product
// Multipart form: images[] plus title, description, category, price,
// artisan_name, artisan_region, whatsapp_number and optional material and
// dimensions. Every uploaded image contributes its renditions.
func (s *Server) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	required := []string{"title", "description", "category", "price", "artisan_name", "artisan_region", "whatsapp_number"}
	var missing []string
	for _, f := range required {
		if strings.TrimSpace(r.FormValue(f)) == "" {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		httpError(w, http.StatusBadRequest, "missing required fields: "+strings.Join(missing, ", "))
		return
	}
	price, err := parsePrice(r.FormValue("price"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "price must be a whole number")
		return
	}
	files := formFiles(r, "images")
	if len(files) == 0 {
		httpError(w, http.StatusBadRequest, "at least one image is required")
		return
	}

	var images []string
	for _, fh := range files {
		images = append(images, s.uploadImage(r.Context(), fh)...)
	}

	phone := store.NormalizePhone(r.FormValue("whatsapp_number"))
	product := &store.Product{
		ID:            uuid.NewString(),
		Title:         strings.TrimSpace(r.FormValue("title")),
		Description:   strings.TrimSpace(r.FormValue("description")),
		Price:         price,
		Images:        images,
		Category:      strings.ToLower(strings.TrimSpace(r.FormValue("category"))),
		ArtisanName:   strings.TrimSpace(r.FormValue("artisan_name")),
		ArtisanRegion: strings.TrimSpace(r.FormValue("artisan_region")),
		ArtisanPhone:  phone,
		UserPhone:     phone,
		Material:      strings.TrimSpace(r.FormValue("material")),
		Dimensions:    strings.TrimSpace(r.FormValue("dimensions")),
		InStock:       true,
		CreatedAt:     store.Now(),
	}
	product.SynthesizeStats()
	product.URL = s.publisher.Publish(r.Context(), pageInput(product))

	if err := s.store.UpsertProduct(r.Context(), product); err != nil {
		httpError(w, http.StatusInternalServerError, "error creating product", err.Error())
		return
	}
	s.rebuildIndex(r.Context())

	log.Info().Str("productId", product.ID).Int("images", len(images)).Msg("Web product created")
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Product created successfully!",
		"product_url": product.URL,
		"product_id":  product.ID,
	})
}

// GET /api/products?category=&artisan=&search=
// artisan matches the artisan phone; search is a case-insensitive match on
// title or description.
func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products")
	}

	q := r.URL.Query()
	category := q.Get("category")
	artisan := store.NormalizePhone(q.Get("artisan"))
	search := strings.ToLower(strings.TrimSpace(q.Get("search")))

	out := []*store.Product{}
	for _, p := range products {
		if category != "" && p.Category != category {
			continue
		}
		if artisan != "" && store.NormalizePhone(p.ArtisanPhone) != artisan {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Title), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		out = append(out, p)
	}
	respondJSON(w, http.StatusOK, map[string]any{"products": out})
}

// GET /api/products/{id}
func (s *Server) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	product, err := s.store.GetProduct(r.Context(), r.PathValue("id"))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "error fetching product", err.Error())
		return
	}
	if product == nil {
		httpError(w, http.StatusNotFound, "product not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "product": product})
}

// PUT /api/products/{id}
// Optional form fields title, description, category, price and an image
// file. Empty fields are left unchanged. A successful change republishes
// the product page and the index.
func (s *Server) handleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	id := r.PathValue("id")

	existing, err := s.store.GetProduct(r.Context(), id)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "error updating product", err.Error())
		return
	}
	if existing == nil {
		httpError(w, http.StatusNotFound, "product not found")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	description := strings.TrimSpace(r.FormValue("description"))
	category := strings.ToLower(strings.TrimSpace(r.FormValue("category")))
	var price int
	if v := strings.TrimSpace(r.FormValue("price")); v != "" {
		if price, err = parsePrice(v); err != nil {
			httpError(w, http.StatusBadRequest, "price must be a whole number")
			return
		}
	}
	var images []string
	if files := formFiles(r, "image"); len(files) > 0 {
		images = s.uploadImage(r.Context(), files[0])
	}

	if title == "" && description == "" && category == "" && price == 0 && images == nil {
		respondJSON(w, http.StatusOK, map[string]any{"success": false, "message": "No changes were made"})
		return
	}

	updated, err := s.store.UpdateProduct(r.Context(), id, func(p *store.Product) error {
		if title != "" {
			p.Title = title
		}
		if description != "" {
			p.Description = description
		}
		if category != "" {
			p.Category = category
		}
		if price > 0 {
			p.Price = price
		}
		if images != nil {
			p.Images = images
		}
		p.UpdatedAt = store.Now()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		httpError(w, http.StatusNotFound, "product not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "error updating product", err.Error())
		return
	}

	url := s.publisher.Publish(r.Context(), pageInput(updated))
	s.rebuildIndex(r.Context())

	log.Info().Str("productId", id).Msg("Product updated via API")
	respondJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"message":     "Product updated successfully",
		"product_url": url,
	})
}

// uploadImage hosts one uploaded photo, substituting placeholder images on
// any failure.
func (s *Server) uploadImage(ctx context.Context, fh *multipart.FileHeader) []string {
	path, err := saveUpload(fh, s.scratchDir)
	if err == nil {
		defer removeScratch(path)
		var urls []string
		urls, err = s.uploader.UploadImage(ctx, path)
		if err == nil && len(urls) > 0 {
			return urls
		}
	}
	log.Warn().Err(err).Str("filename", fh.Filename).Str("adapter", s.uploader.Name()).Msg("Image upload failed, using fallback images")
	metrics.RecordFallback("image_upload")
	return imagehost.FallbackImageURLs()
}

// parsePrice accepts a positive whole number of rupees.
func parsePrice(v string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, errors.New("price must be positive")
	}
	return n, nil
}

func pageInput(p *store.Product) publish.PageInput {
	return publish.PageInput{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Images:      p.Images,
	}
}
