package chat

// Gemini Model IDs
//
// | Model Name               | API Model ID            | Use Case                          |
// |--------------------------|-------------------------|-----------------------------------|
// | Gemini 2.5 Flash         | gemini-2.5-flash        | Product descriptions (default)    |
// | Gemini 2.5 Flash-Lite    | gemini-2.5-flash-lite   | Cheap key probe, high throughput  |
// | Gemini 3 Flash (Preview) | gemini-3-flash-preview  | Faster, better descriptions       |
// | Gemini 2.5 Flash Image   | gemini-2.5-flash-image  | Background removal (default)      |
// | Gemini 3 Pro Image       | gemini-3-pro-image-preview | Higher quality image edits     |
const (
	// ModelGemini25Flash is stable with balanced cost and quality.
	ModelGemini25Flash = "gemini-2.5-flash"

	// ModelGemini25FlashLite is for high-throughput, lowest cost.
	ModelGemini25FlashLite = "gemini-2.5-flash-lite"

	// ModelGemini3FlashPreview is best for speed + intelligence.
	ModelGemini3FlashPreview = "gemini-3-flash-preview"

	// ModelGemini25FlashImage edits images at low latency.
	ModelGemini25FlashImage = "gemini-2.5-flash-image"

	// ModelGemini3ProImage is for advanced image generation/edit.
	ModelGemini3ProImage = "gemini-3-pro-image-preview"
)

// DefaultModelName describes product photos when GEMINI_MODEL is unset.
const DefaultModelName = ModelGemini25Flash

// DefaultImageModelName removes backgrounds when GEMINI_IMAGE_MODEL is unset.
const DefaultImageModelName = ModelGemini25FlashImage

// probeModelName answers the one-word startup probe.
const probeModelName = ModelGemini25FlashLite

// resolveModel returns name, or def when name is empty.
func resolveModel(name, def string) string {
	if name != "" {
		return name
	}
	return def
}
