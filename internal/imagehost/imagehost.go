// Package imagehost turns a downloaded product photo into the four hosted
// image URLs a product carries, and hosts reel videos.
//
// S3Uploader is the live variant. DirUploader writes into the static site
// directory so the files ship with the next deploy. FallbackUploader returns
// the canned placeholder URLs and never fails.
package imagehost

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/kalaasaarathi/shopbot/internal/media"
)

// Uploader hosts product photos and reel videos.
type Uploader interface {
	// UploadImage returns media.RenditionCount URLs for the photo at path.
	UploadImage(ctx context.Context, path string) ([]string, error)
	// UploadVideo returns the URL of the hosted video at path.
	UploadVideo(ctx context.Context, path string) (string, error)
	// Name identifies the variant in logs and /health.
	Name() string
}

const (
	fallbackImageBase = "https://storage.googleapis.com/craftlink-images"
	// FallbackVideoURL is the placeholder reel video.
	FallbackVideoURL = "https://storage.googleapis.com/craftlink-videos/fallback.mp4"
)

// FallbackImageURLs returns the canned placeholder images. A random query
// suffix keeps browsers and CDNs from serving a stale copy under one URL.
func FallbackImageURLs() []string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	stamp := hex.EncodeToString(b)
	urls := make([]string, media.RenditionCount)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s/fallback%d.jpg?t=%s", fallbackImageBase, i+1, stamp)
	}
	return urls
}

// FallbackUploader is used when no image host is configured.
type FallbackUploader struct{}

func (FallbackUploader) UploadImage(context.Context, string) ([]string, error) {
	return FallbackImageURLs(), nil
}

func (FallbackUploader) UploadVideo(context.Context, string) (string, error) {
	return FallbackVideoURL, nil
}

func (FallbackUploader) Name() string { return "fallback" }
