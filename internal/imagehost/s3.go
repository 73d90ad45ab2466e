package imagehost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/s3util"
)

// mediaCacheControl is set on every uploaded rendition and video. Keys are
// random, so objects never change once written.
const mediaCacheControl = "public, max-age=31536000, immutable"

// S3Config locates the buckets for S3Uploader.
type S3Config struct {
	ImageBucket string
	VideoBucket string
	Region      string
	// BaseURL is the public origin for the buckets (a CDN), or empty for
	// direct S3 URLs.
	BaseURL string
}

// S3Uploader removes the photo background, renders the four product images
// and uploads them to S3 in parallel.
type S3Uploader struct {
	client  s3util.PutObjectAPI
	cfg     S3Config
	remover chat.BackgroundRemover
}

// NewS3Uploader returns an uploader. remover may be nil to skip background
// removal.
func NewS3Uploader(client s3util.PutObjectAPI, cfg S3Config, remover chat.BackgroundRemover) *S3Uploader {
	if cfg.VideoBucket == "" {
		cfg.VideoBucket = cfg.ImageBucket
	}
	return &S3Uploader{client: client, cfg: cfg, remover: remover}
}

func (u *S3Uploader) Name() string { return "s3:" + u.cfg.ImageBucket }

// UploadImage implements Uploader.
func (u *S3Uploader) UploadImage(ctx context.Context, path string) ([]string, error) {
	start := time.Now()
	renditions, err := prepareRenditions(ctx, u.remover, path)
	if err != nil {
		return nil, err
	}

	prefix := "products/" + uuid.New().String()
	urls := make([]string, len(renditions))
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range renditions {
		key := fmt.Sprintf("%s/%s.jpg", prefix, r.Name)
		urls[i] = s3util.PublicURL(u.cfg.BaseURL, u.cfg.ImageBucket, u.cfg.Region, key)
		g.Go(func() error {
			return s3util.Put(gctx, u.client, u.cfg.ImageBucket, s3util.Object{
				Key:          key,
				Body:         r.Data,
				ContentType:  r.ContentType,
				CacheControl: mediaCacheControl,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	log.Info().
		Str("bucket", u.cfg.ImageBucket).
		Str("prefix", prefix).
		Int("images", len(urls)).
		Dur("duration", time.Since(start)).
		Msg("Product images uploaded")
	return urls, nil
}

// UploadVideo implements Uploader.
func (u *S3Uploader) UploadVideo(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}
	key := "reels/" + uuid.New().String() + strings.ToLower(filepath.Ext(path))
	if err := s3util.Put(ctx, u.client, u.cfg.VideoBucket, s3util.Object{
		Key:          key,
		Body:         data,
		ContentType:  media.ContentTypeFor(path),
		CacheControl: mediaCacheControl,
	}); err != nil {
		return "", err
	}
	url := s3util.PublicURL(u.cfg.BaseURL, u.cfg.VideoBucket, u.cfg.Region, key)
	log.Info().Str("bucket", u.cfg.VideoBucket).Str("key", key).Int("bytes", len(data)).Msg("Reel video uploaded")
	return url, nil
}
