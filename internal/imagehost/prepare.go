package imagehost

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
)

// prepareRenditions reads the photo, optionally removes its background and
// renders the product images. When background removal fails, or returns
// something that does not decode, the original photo is used; only an
// undecodable original is an error.
func prepareRenditions(ctx context.Context, remover chat.BackgroundRemover, path string) ([]media.Rendition, error) {
	original, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read photo: %w", err)
	}

	if remover != nil {
		res, err := remover.RemoveBackground(ctx, original, media.ContentTypeFor(path))
		if err == nil {
			renditions, rerr := media.Renditions(res.Data)
			if rerr == nil {
				return renditions, nil
			}
			err = rerr
		}
		log.Warn().Err(err).Str("path", path).Msg("Background removal failed, using original photo")
		metrics.RecordFallback("background_removal")
	}

	renditions, err := media.Renditions(original)
	if err != nil {
		return nil, fmt.Errorf("render photo: %w", err)
	}
	return renditions, nil
}
