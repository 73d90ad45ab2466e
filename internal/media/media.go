// Package media handles inbound chat attachments: it downloads them from the
// messaging provider into a scratch directory, reads photo metadata for the
// description prompt, and renders the fixed set of product image renditions.
package media

import (
	"path/filepath"
	"strings"
)

// imageTypes maps supported photo MIME types to the extension used on disk.
var imageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
	"image/heic": ".heic",
	"image/heif": ".heif",
}

// videoTypes maps supported video MIME types to the extension used on disk.
var videoTypes = map[string]string{
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/3gpp":      ".3gp",
	"video/webm":      ".webm",
}

// IsVideo reports whether a content type names a video. Matching is by
// substring, so "video/mp4; codecs=avc1" counts.
func IsVideo(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "video")
}

// ExtensionFor returns the file extension for a content type. Unknown image
// types get ".jpg" and unknown video types ".mp4", matching what WhatsApp
// sends most often.
func ExtensionFor(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	if ext, ok := imageTypes[ct]; ok {
		return ext
	}
	if ext, ok := videoTypes[ct]; ok {
		return ext
	}
	if IsVideo(ct) {
		return ".mp4"
	}
	return ".jpg"
}

// ContentTypeFor returns the MIME type for a file path by extension, or
// application/octet-stream.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".jpeg" {
		ext = ".jpg"
	}
	for ct, e := range imageTypes {
		if e == ext && ct != "image/jpg" {
			return ct
		}
	}
	for ct, e := range videoTypes {
		if e == ext {
			return ct
		}
	}
	return "application/octet-stream"
}
