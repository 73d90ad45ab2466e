// Package chat talks to Gemini on behalf of the bot: it turns a craft photo
// into a listing description with a suggested title, price and category, and
// removes photo backgrounds through the image model.
//
// Each capability sits behind an interface with a live Gemini variant and a
// fallback variant that returns canned values. The caller picks one at
// startup (see ProbeKey) and never re-checks per call.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kalaasaarathi/shopbot/internal/assets"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Description is a parsed listing description.
type Description struct {
	// Text is the description shown to the seller and on the product page.
	Text     string
	Title    string
	Price    int
	Category string
	Tags     []string
}

// Describer produces a listing description from a product photo.
type Describer interface {
	// Describe analyzes the image. hint carries optional photo metadata
	// to include in the prompt.
	Describe(ctx context.Context, image []byte, mimeType, hint string) (*Description, error)
	// Name identifies the variant in logs and /health.
	Name() string
}

// Canned listing values used whenever a description cannot be generated.
const (
	FallbackText  = "Beautiful handmade craft with traditional artistry. Price band: ₹250-400 #handmade #craft #artisan"
	FallbackTitle = "Beautiful Handmade Craft"
	FallbackPrice = 350
)

// Fallback returns the canned description.
func Fallback() *Description {
	return &Description{
		Text:     FallbackText,
		Title:    FallbackTitle,
		Price:    FallbackPrice,
		Category: store.FallbackCategory,
		Tags:     []string{"#handmade", "#craft", "#artisan"},
	}
}

// FallbackDescriber always returns the canned description. It is selected
// when no Gemini key is configured or the key fails the startup probe.
type FallbackDescriber struct{}

func (FallbackDescriber) Describe(context.Context, []byte, string, string) (*Description, error) {
	return Fallback(), nil
}

func (FallbackDescriber) Name() string { return "fallback" }

// BuildDescribePrompt returns the user prompt asking for the nostalgic
// grandparent voice the storefront uses, plus the Title and Category lines
// ParseDescription reads back. hint is appended when present.
func BuildDescribePrompt(hint string) string {
	return assets.RenderDescribePrompt(store.Categories, hint)
}

// GeminiDescriber describes photos with a Gemini vision model.
type GeminiDescriber struct {
	client *genai.Client
	model  string
}

// NewGeminiDescriber returns a describer using model, or DefaultModelName
// when model is empty.
func NewGeminiDescriber(client *genai.Client, model string) *GeminiDescriber {
	return &GeminiDescriber{client: client, model: resolveModel(model, DefaultModelName)}
}

func (g *GeminiDescriber) Name() string { return "gemini:" + g.model }

// Describe sends the photo inline with the listing prompt and parses the
// reply. Any API failure or an empty reply is returned as an error; callers
// substitute Fallback.
func (g *GeminiDescriber) Describe(ctx context.Context, image []byte, mimeType, hint string) (*Description, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("describe: empty image")
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{{Text: assets.DescribeSystemPrompt}},
		},
	}
	parts := []*genai.Part{
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
		{Text: BuildDescribePrompt(hint)},
	}
	contents := []*genai.Content{{Role: "user", Parts: parts}}

	log.Debug().
		Str("model", g.model).
		Int("image_bytes", len(image)).
		Str("image_mime", mimeType).
		Msg("Sending photo to Gemini for description")

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	duration := time.Since(start)
	if err != nil {
		log.Error().Err(err).Dur("duration", duration).Msg("Failed to generate description from Gemini")
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("received empty response from Gemini API")
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, fmt.Errorf("received no text from Gemini API")
	}

	d := ParseDescription(text)
	log.Info().
		Str("title", d.Title).
		Int("price", d.Price).
		Str("category", d.Category).
		Int("tags", len(d.Tags)).
		Dur("duration", duration).
		Msg("Description generated")
	return d, nil
}
