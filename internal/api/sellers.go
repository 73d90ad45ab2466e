package api

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/bot"
	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

// sellerDetail is a profile with the seller's current listings.
type sellerDetail struct {
	*store.SellerProfile
	Products []*store.Product `json:"products"`
}

// GET /api/sellers
func (s *Server) handleListSellers(w http.ResponseWriter, r *http.Request) {
	sellers, err := s.store.ListSellers(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list sellers")
	}
	if sellers == nil {
		sellers = []*store.SellerProfile{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"sellers": sellers})
}

// GET /api/sellers/{phone}
func (s *Server) handleGetSeller(w http.ResponseWriter, r *http.Request) {
	phone := store.NormalizePhone(r.PathValue("phone"))
	seller, err := s.store.GetSeller(r.Context(), phone)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "error fetching seller", err.Error())
		return
	}
	if seller == nil {
		httpError(w, http.StatusNotFound, "seller not found")
		return
	}

	products, err := s.store.ListProducts(r.Context())
	if err != nil {
		log.Error().Err(err).Str("phone", phone).Msg("Failed to list seller products")
	}
	mine := []*store.Product{}
	for _, p := range products {
		if p.OwnedBy(phone) {
			mine = append(mine, p)
		}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"seller":  sellerDetail{SellerProfile: seller, Products: mine},
	})
}

// POST /api/sellers/{phone}
// Form fields name and region are required; bio, skills (comma-separated)
// and a profile_image file are optional. Fields merge into any stored
// profile.
func (s *Server) handleUpdateSeller(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	phone := store.NormalizePhone(r.PathValue("phone"))
	name := strings.TrimSpace(r.FormValue("name"))
	region := strings.TrimSpace(r.FormValue("region"))
	if phone == "" || name == "" || region == "" {
		httpError(w, http.StatusBadRequest, "phone, name, and region are required")
		return
	}

	update := &store.SellerProfile{
		Phone:  phone,
		Name:   name,
		Region: region,
		Bio:    strings.TrimSpace(r.FormValue("bio")),
	}
	for _, skill := range strings.Split(r.FormValue("skills"), ",") {
		if skill = strings.TrimSpace(skill); skill != "" {
			update.Skills = append(update.Skills, skill)
		}
	}
	if files := formFiles(r, "profile_image"); len(files) > 0 {
		update.ProfileImage = s.uploadImage(r.Context(), files[0])[0]
	}

	if _, err := s.store.UpsertSeller(r.Context(), update); err != nil {
		httpError(w, http.StatusInternalServerError, "error updating seller profile", err.Error())
		return
	}
	log.Info().Str("phone", phone).Msg("Seller profile updated via API")
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Seller profile updated successfully",
	})
}

// GET /api/reels
func (s *Server) handleListReels(w http.ResponseWriter, r *http.Request) {
	reels, err := s.store.ListReels(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reels")
	}
	if reels == nil {
		reels = []*store.Reel{}
	}
	respondJSON(w, http.StatusOK, map[string]any{"reels": reels})
}

// POST /api/reels
// Multipart form: video file, caption and seller_phone. Web uploads start
// with zero engagement.
func (s *Server) handleCreateReel(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(w, r); err != nil {
		httpError(w, http.StatusBadRequest, "invalid form body")
		return
	}
	phone := store.NormalizePhone(r.FormValue("seller_phone"))
	files := formFiles(r, "video")
	if phone == "" || len(files) == 0 {
		httpError(w, http.StatusBadRequest, "video and seller_phone are required")
		return
	}

	videoURL := imagehost.FallbackVideoURL
	path, err := saveUpload(files[0], s.scratchDir)
	if err == nil {
		videoURL, err = s.uploader.UploadVideo(r.Context(), path)
		removeScratch(path)
	}
	if err != nil {
		log.Warn().Err(err).Str("adapter", s.uploader.Name()).Msg("Video upload failed, using fallback URL")
		metrics.RecordFallback("video_upload")
		videoURL = imagehost.FallbackVideoURL
	}

	name, region := bot.DefaultArtisanName, bot.DefaultArtisanRegion
	if seller, err := s.store.GetSeller(r.Context(), phone); err == nil && seller != nil {
		if seller.Name != "" {
			name = seller.Name
		}
		if seller.Region != "" {
			region = seller.Region
		}
	}

	reel := &store.Reel{
		ID:           uuid.NewString(),
		VideoURL:     videoURL,
		Caption:      strings.TrimSpace(r.FormValue("caption")),
		SellerName:   name,
		SellerRegion: region,
		SellerPhone:  phone,
		CreatedAt:    store.Now(),
	}
	if err := s.store.AddReel(r.Context(), reel); err != nil {
		httpError(w, http.StatusInternalServerError, "error creating reel", err.Error())
		return
	}
	s.rebuildIndex(r.Context())

	log.Info().Str("reelId", reel.ID).Str("phone", phone).Msg("Reel created via API")
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Reel created successfully",
		"reel_id": reel.ID,
	})
}
