// Package api serves the storefront REST API, the health and metrics
// endpoints, and mounts the WhatsApp webhook.
//
// Endpoints:
//
//	POST /whatsapp                   inbound WhatsApp messages (TwiML)
//	GET  /health                     adapter availability
//	GET  /api/test                   liveness probe
//	GET  /metrics                    Prometheus metrics
//	POST /api/create-product         list a product from the web form
//	GET  /api/products               list products (category, artisan, search)
//	GET  /api/products/{id}          one product
//	PUT  /api/products/{id}          partial update
//	GET  /api/sellers                list seller profiles
//	GET  /api/sellers/{phone}        one seller with their products
//	POST /api/sellers/{phone}        create or update a seller profile
//	GET  /api/reels                  list reels
//	POST /api/reels                  upload a reel
//	POST /api/shipping/{product_id}  create a shipping label
//	GET  /api/categories             advertised categories
//	GET  /api/tasks                  background task registry
//	GET  /api/tasks/{id}             one task
//	GET  /                           storefront files, when served locally
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/bot"
	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/shipping"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/kalaasaarathi/shopbot/internal/tasks"
)

// Services reports which live adapters were selected at startup.
type Services struct {
	Gemini          bool `json:"gemini"`
	ImageProcessing bool `json:"image_processing"`
	Deployment      bool `json:"deployment"`
	Shipping        bool `json:"shipping"`
	SMS             bool `json:"sms"`
}

// TaskRegistry exposes background task state.
type TaskRegistry interface {
	Get(id string) (tasks.Task, bool)
	List() []tasks.Task
}

// Shipper creates shipping labels and notifies the buyer.
type Shipper interface {
	Ship(ctx context.Context, req shipping.Request) *shipping.Label
}

// Deps are the collaborators of a Server. Webhook may be nil.
type Deps struct {
	Store      store.RecordStore
	Uploader   imagehost.Uploader
	Publisher  bot.Publisher
	Shipper    Shipper
	Tasks      TaskRegistry
	Webhook    http.Handler
	Services   Services
	ScratchDir string

	// SiteDir, when set, is served at / so a local deployment needs no
	// separate web host.
	SiteDir string
}

// Server holds the API handlers.
type Server struct {
	store      store.RecordStore
	uploader   imagehost.Uploader
	publisher  bot.Publisher
	shipper    Shipper
	tasks      TaskRegistry
	webhook    http.Handler
	services   Services
	scratchDir string
	siteDir    string
}

// NewServer returns a Server. A nil Uploader uses placeholder images.
func NewServer(d Deps) *Server {
	if d.Uploader == nil {
		d.Uploader = imagehost.FallbackUploader{}
	}
	return &Server{
		store:      d.Store,
		uploader:   d.Uploader,
		publisher:  d.Publisher,
		shipper:    d.Shipper,
		tasks:      d.Tasks,
		webhook:    d.Webhook,
		services:   d.Services,
		scratchDir: d.ScratchDir,
		siteDir:    d.SiteDir,
	}
}

// Handler returns the routed handler wrapped in CORS and metrics
// middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.webhook != nil {
		mux.Handle("POST /whatsapp", s.webhook)
	}
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/test", s.handleTest)
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("POST /api/create-product", s.handleCreateProduct)
	mux.HandleFunc("GET /api/products", s.handleListProducts)
	mux.HandleFunc("GET /api/products/{id}", s.handleGetProduct)
	mux.HandleFunc("PUT /api/products/{id}", s.handleUpdateProduct)

	mux.HandleFunc("GET /api/sellers", s.handleListSellers)
	mux.HandleFunc("GET /api/sellers/{phone}", s.handleGetSeller)
	mux.HandleFunc("POST /api/sellers/{phone}", s.handleUpdateSeller)

	mux.HandleFunc("GET /api/reels", s.handleListReels)
	mux.HandleFunc("POST /api/reels", s.handleCreateReel)

	mux.HandleFunc("POST /api/shipping/{product_id}", s.handleShipping)
	mux.HandleFunc("GET /api/categories", s.handleCategories)

	mux.HandleFunc("GET /api/tasks", s.handleListTasks)
	mux.HandleFunc("GET /api/tasks/{id}", s.handleGetTask)

	if s.siteDir != "" {
		mux.Handle("GET /", withSiteHeaders(http.FileServer(http.Dir(s.siteDir))))
	}

	return withCORS(withMetrics(mux))
}

// --- Health ---

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "healthy",
		"services": s.services,
	})
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message":   "API is working!",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"categories": store.Categories})
}

// --- Tasks ---

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	list := []tasks.Task{}
	if s.tasks != nil {
		list = append(list, s.tasks.List()...)
	}
	respondJSON(w, http.StatusOK, map[string]any{"tasks": list})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if s.tasks == nil {
		httpError(w, http.StatusNotFound, "task not found")
		return
	}
	t, ok := s.tasks.Get(id)
	if !ok {
		httpError(w, http.StatusNotFound, "task not found")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "task": t})
}

// --- Shipping ---

// POST /api/shipping/{product_id}
// Creates a label for the product. The label service and the buyer SMS
// both fall back, so a known product always gets tracking info.
func (s *Server) handleShipping(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	productID := r.PathValue("product_id")
	req := shipping.Request{
		ProductID:    productID,
		BuyerName:    r.FormValue("buyer_name"),
		BuyerAddress: r.FormValue("buyer_address"),
		BuyerPhone:   r.FormValue("buyer_phone"),
	}
	if req.BuyerName == "" || req.BuyerAddress == "" || req.BuyerPhone == "" {
		httpError(w, http.StatusBadRequest, "buyer_name, buyer_address, and buyer_phone are required")
		return
	}

	product, err := s.store.GetProduct(r.Context(), productID)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "failed to load product", err.Error())
		return
	}
	if product == nil {
		httpError(w, http.StatusNotFound, "product not found")
		return
	}
	req.ProductTitle = product.Title
	req.Price = product.Price

	label := s.shipper.Ship(r.Context(), req)
	log.Info().Str("productId", productID).Str("awb", label.AWB).Msg("Shipping label created")
	respondJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"message":       "Shipping label created successfully",
		"tracking_info": label,
	})
}

// rebuildIndex refreshes the storefront index after a catalog change.
func (s *Server) rebuildIndex(ctx context.Context) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products for shop index")
		return
	}
	reels, err := s.store.ListReels(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reels for shop index")
		return
	}
	if err := s.publisher.RebuildIndex(ctx, products, reels); err != nil {
		log.Error().Err(err).Int("products", len(products)).Int("reels", len(reels)).Msg("Failed to rebuild shop index")
	}
}
