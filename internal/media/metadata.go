package media

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// PhotoMetadata is the EXIF subset that helps describe a product photo.
type PhotoMetadata struct {
	DateTaken   time.Time
	HasDate     bool
	CameraMake  string
	CameraModel string
	Latitude    float64
	Longitude   float64
	HasGPS      bool
}

// ReadPhotoMetadata decodes EXIF from a photo on disk. Only the metadata
// block is read, not the pixel data. WhatsApp strips EXIF from most photos,
// so an error here is expected and callers continue without a hint.
func ReadPhotoMetadata(path string) (*PhotoMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	exifData, err := imagemeta.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	m := &PhotoMetadata{
		CameraMake:  strings.TrimSpace(exifData.Make),
		CameraModel: strings.TrimSpace(exifData.Model),
	}

	// DateTimeOriginal > CreateDate > ModifyDate
	switch {
	case !exifData.DateTimeOriginal().IsZero():
		m.DateTaken, m.HasDate = exifData.DateTimeOriginal(), true
	case !exifData.CreateDate().IsZero():
		m.DateTaken, m.HasDate = exifData.CreateDate(), true
	case !exifData.ModifyDate().IsZero():
		m.DateTaken, m.HasDate = exifData.ModifyDate(), true
	}

	gps := exifData.GPS
	if gps.Latitude() != 0 || gps.Longitude() != 0 {
		m.Latitude, m.Longitude, m.HasGPS = gps.Latitude(), gps.Longitude(), true
	}

	log.Debug().
		Str("path", path).
		Bool("has_date", m.HasDate).
		Bool("has_gps", m.HasGPS).
		Str("camera", m.camera()).
		Msg("Photo metadata read")
	return m, nil
}

func (m *PhotoMetadata) camera() string {
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// Hint renders the metadata as one line for the description prompt, or ""
// when there is nothing useful. Coordinates are never included.
func (m *PhotoMetadata) Hint() string {
	if m == nil {
		return ""
	}
	var parts []string
	if m.HasDate {
		parts = append(parts, "taken "+m.DateTaken.Format("January 2006"))
	}
	if c := m.camera(); c != "" {
		parts = append(parts, "with a "+c)
	}
	return strings.Join(parts, " ")
}

// PhotoHint reads metadata from path and returns its Hint, or "" on any
// failure.
func PhotoHint(path string) string {
	m, err := ReadPhotoMetadata(path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("No photo metadata")
		return ""
	}
	return m.Hint()
}
