package imagehost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/chat"
)

// DirUploader stores media under <siteDir>/media so it is published with the
// static site. URLs are rooted at the storefront's public base URL.
type DirUploader struct {
	siteDir string
	baseURL string
	remover chat.BackgroundRemover
}

// NewDirUploader returns an uploader writing into siteDir.
func NewDirUploader(siteDir, publicBaseURL string, remover chat.BackgroundRemover) *DirUploader {
	return &DirUploader{siteDir: siteDir, baseURL: strings.TrimRight(publicBaseURL, "/"), remover: remover}
}

func (u *DirUploader) Name() string { return "site-dir" }

// UploadImage implements Uploader.
func (u *DirUploader) UploadImage(ctx context.Context, path string) ([]string, error) {
	renditions, err := prepareRenditions(ctx, u.remover, path)
	if err != nil {
		return nil, err
	}
	rel := filepath.Join("media", "products", uuid.New().String())
	if err := os.MkdirAll(filepath.Join(u.siteDir, rel), 0o755); err != nil {
		return nil, fmt.Errorf("create media dir: %w", err)
	}
	urls := make([]string, len(renditions))
	for i, r := range renditions {
		name := filepath.Join(rel, r.Name+".jpg")
		if err := os.WriteFile(filepath.Join(u.siteDir, name), r.Data, 0o644); err != nil {
			return nil, fmt.Errorf("write %s: %w", name, err)
		}
		urls[i] = u.baseURL + "/" + filepath.ToSlash(name)
	}
	log.Info().Str("dir", rel).Int("images", len(urls)).Msg("Product images written to site")
	return urls, nil
}

// UploadVideo implements Uploader.
func (u *DirUploader) UploadVideo(_ context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read video: %w", err)
	}
	name := filepath.Join("media", "reels", uuid.New().String()+strings.ToLower(filepath.Ext(path)))
	if err := os.MkdirAll(filepath.Join(u.siteDir, filepath.Dir(name)), 0o755); err != nil {
		return "", fmt.Errorf("create media dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(u.siteDir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	return u.baseURL + "/" + filepath.ToSlash(name), nil
}
