package bot

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/publish"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/kalaasaarathi/shopbot/internal/tasks"
)

// Pipeline phases, recorded on the task as it progresses.
const (
	PhaseDownloading     = "Downloading"
	PhaseDescribing      = "Describing"
	PhaseImageProcessing = "ImageProcessing"
	PhaseUploading       = "Uploading"
	PhasePublishing      = "Publishing"
	PhaseNotifying       = "Notifying"
)

// photoTask lists a photo as a new product. Every step after the download
// has a fallback, so the seller always receives a shop link.
func (s *Service) photoTask(in Inbound) *tasks.Spec {
	return &tasks.Spec{
		Kind:   tasks.KindPhoto,
		Sender: in.From,
		Run: func(ctx context.Context, p *tasks.Progress) error {
			defer s.apologizeOnPanic(ctx, in.From, MsgApology)

			p.SetPhase(PhaseDownloading)
			file, err := s.fetcher.Fetch(ctx, in.MediaURL, in.MediaContentType)
			if err != nil {
				s.send(ctx, in.From, MsgImageError)
				return fmt.Errorf("download photo: %w", err)
			}
			defer file.Remove()

			p.SetPhase(PhaseDescribing)
			desc := s.describe(ctx, p.ID(), file)
			s.send(ctx, in.From, desc.Text)

			p.SetPhase(PhaseImageProcessing)
			images := s.uploadImages(ctx, p.ID(), file.Path)

			p.SetPhase(PhasePublishing)
			product := s.newProduct(ctx, in.From, desc, images)
			product.URL = s.publisher.Publish(ctx, publish.PageInput{
				ID:          product.ID,
				Title:       product.Title,
				Description: product.Description,
				Price:       product.Price,
				Images:      product.Images,
			})
			if err := s.store.UpsertProduct(ctx, product); err != nil {
				log.Error().Err(err).Str("taskId", p.ID()).Str("productId", product.ID).Msg("Failed to store product")
			}
			s.rebuildIndex(ctx)

			p.SetPhase(PhaseNotifying)
			s.send(ctx, in.From, ShopReadyMessage(product.URL))
			s.send(ctx, in.From, EditTipsMessage(product.ID))
			return nil
		},
	}
}

// reelTask adds a video to the reels section.
func (s *Service) reelTask(in Inbound, caption string) *tasks.Spec {
	return &tasks.Spec{
		Kind:   tasks.KindVideo,
		Sender: in.From,
		Run: func(ctx context.Context, p *tasks.Progress) error {
			defer s.apologizeOnPanic(ctx, in.From, MsgVideoError)

			p.SetPhase(PhaseDownloading)
			file, err := s.fetcher.Fetch(ctx, in.MediaURL, in.MediaContentType)
			if err != nil {
				s.send(ctx, in.From, MsgVideoError)
				return fmt.Errorf("download video: %w", err)
			}
			defer file.Remove()

			p.SetPhase(PhaseUploading)
			videoURL, err := s.uploader.UploadVideo(ctx, file.Path)
			if err != nil {
				log.Warn().Err(err).Str("taskId", p.ID()).Str("adapter", s.uploader.Name()).Msg("Video upload failed, using fallback URL")
				metrics.RecordFallback("video_upload")
				videoURL = imagehost.FallbackVideoURL
			}

			p.SetPhase(PhasePublishing)
			phone := store.NormalizePhone(in.From)
			name, region := s.sellerInfo(ctx, phone)
			reel := &store.Reel{
				ID:           uuid.NewString(),
				VideoURL:     videoURL,
				Caption:      caption,
				SellerName:   name,
				SellerRegion: region,
				SellerPhone:  phone,
				Likes:        5 + rand.IntN(96),
				Comments:     rand.IntN(21),
				CreatedAt:    store.Now(),
			}
			if err := s.store.AddReel(ctx, reel); err != nil {
				log.Error().Err(err).Str("taskId", p.ID()).Str("reelId", reel.ID).Msg("Failed to store reel")
			}
			s.rebuildIndex(ctx)

			p.SetPhase(PhaseNotifying)
			s.send(ctx, in.From, MsgReelAdded)
			return nil
		},
	}
}

// editImageTask replaces a product's images with a new photo. If the photo
// cannot be processed the listing keeps its current images.
func (s *Service) editImageTask(in Inbound, productID string) *tasks.Spec {
	return &tasks.Spec{
		Kind:   tasks.KindEditImage,
		Sender: in.From,
		Run: func(ctx context.Context, p *tasks.Progress) error {
			defer s.apologizeOnPanic(ctx, in.From, MsgApology)

			p.SetPhase(PhaseDownloading)
			file, err := s.fetcher.Fetch(ctx, in.MediaURL, in.MediaContentType)
			if err != nil {
				s.send(ctx, in.From, MsgImageError)
				return fmt.Errorf("download photo: %w", err)
			}
			defer file.Remove()

			p.SetPhase(PhaseImageProcessing)
			images, err := s.uploader.UploadImage(ctx, file.Path)
			if err != nil {
				metrics.RecordFallback("image_upload")
				s.send(ctx, in.From, EditImageFailedMessage(productID))
				return fmt.Errorf("process photo: %w", err)
			}

			p.SetPhase(PhasePublishing)
			updated, err := s.store.UpdateProduct(ctx, productID, func(pr *store.Product) error {
				pr.Images = images
				pr.UpdatedAt = store.Now()
				return nil
			})
			if err != nil {
				s.send(ctx, in.From, MsgEditNotFound)
				return fmt.Errorf("update images: %w", err)
			}
			s.republish(ctx, updated)

			p.SetPhase(PhaseNotifying)
			s.send(ctx, in.From, UpdatedMessage("image", productID))
			return nil
		},
	}
}

// republishTask redeploys a product page after a text edit. The seller has
// already been answered, so nothing is sent.
func (s *Service) republishTask(from string, product *store.Product) *tasks.Spec {
	return &tasks.Spec{
		Kind:   tasks.KindRepublish,
		Sender: from,
		Run: func(ctx context.Context, p *tasks.Progress) error {
			p.SetPhase(PhasePublishing)
			s.republish(ctx, product)
			return nil
		},
	}
}

func (s *Service) republish(ctx context.Context, product *store.Product) {
	s.publisher.Publish(ctx, publish.PageInput{
		ID:          product.ID,
		Title:       product.Title,
		Description: product.Description,
		Price:       product.Price,
		Images:      product.Images,
	})
	s.rebuildIndex(ctx)
}

// describe runs the describer on the downloaded photo, substituting the
// canned description on any failure.
func (s *Service) describe(ctx context.Context, taskID string, file *media.File) *chat.Description {
	start := time.Now()
	data, err := file.ReadAll()
	if err == nil {
		var desc *chat.Description
		desc, err = s.describer.Describe(ctx, data, file.ContentType, media.PhotoHint(file.Path))
		if err == nil && desc != nil {
			log.Debug().Str("taskId", taskID).Dur("duration", time.Since(start)).Msg("Photo described")
			return desc
		}
	}
	log.Warn().Err(err).Str("taskId", taskID).Str("adapter", s.describer.Name()).Msg("Description failed, using fallback")
	metrics.RecordFallback("describe")
	return chat.Fallback()
}

// uploadImages hosts the photo, substituting the placeholder images on any
// failure.
func (s *Service) uploadImages(ctx context.Context, taskID, path string) []string {
	images, err := s.uploader.UploadImage(ctx, path)
	if err == nil && len(images) > 0 {
		return images
	}
	log.Warn().Err(err).Str("taskId", taskID).Str("adapter", s.uploader.Name()).Msg("Image upload failed, using fallback images")
	metrics.RecordFallback("image_upload")
	return imagehost.FallbackImageURLs()
}

// newProduct builds a listing for the sender.
func (s *Service) newProduct(ctx context.Context, from string, desc *chat.Description, images []string) *store.Product {
	phone := store.NormalizePhone(from)
	name, region := s.sellerInfo(ctx, phone)
	category := desc.Category
	if category == "" {
		category = store.FallbackCategory
	}
	p := &store.Product{
		ID:            uuid.NewString(),
		Title:         desc.Title,
		Description:   desc.Text,
		Price:         desc.Price,
		Images:        images,
		Category:      category,
		ArtisanName:   name,
		ArtisanRegion: region,
		ArtisanPhone:  phone,
		UserPhone:     phone,
		InStock:       true,
		CreatedAt:     store.Now(),
	}
	p.SynthesizeStats()
	return p
}

// sellerInfo returns the seller's display name and region, or the defaults.
func (s *Service) sellerInfo(ctx context.Context, phone string) (name, region string) {
	name, region = DefaultArtisanName, DefaultArtisanRegion
	seller, err := s.store.GetSeller(ctx, phone)
	if err != nil {
		log.Warn().Err(err).Str("phone", phone).Msg("Failed to load seller profile, using defaults")
		return name, region
	}
	if seller != nil {
		if seller.Name != "" {
			name = seller.Name
		}
		if seller.Region != "" {
			region = seller.Region
		}
	}
	return name, region
}

// apologizeOnPanic tells the seller something went wrong before the runner
// records the panic.
func (s *Service) apologizeOnPanic(ctx context.Context, to, msg string) {
	if r := recover(); r != nil {
		s.send(ctx, to, msg)
		panic(r)
	}
}
