package chat

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// NewClient creates a Gemini Developer API client. It returns (nil, nil)
// when apiKey is empty so callers can fall straight through to the
// fallback describer. baseURL overrides the API origin and is empty
// outside tests.
func NewClient(ctx context.Context, apiKey, baseURL string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions.BaseURL = baseURL
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return client, nil
}

// SelectDescriber returns the live describer when client passes ProbeKey
// and FallbackDescriber otherwise, logging the choice once.
func SelectDescriber(ctx context.Context, client *genai.Client, model string) Describer {
	if err := ProbeKey(ctx, client); err != nil {
		logFallback("describer", err)
		return FallbackDescriber{}
	}
	return NewGeminiDescriber(client, model)
}

func logFallback(adapter string, err error) {
	log.Warn().Err(err).Str("adapter", adapter).Msg("Adapter unavailable, using fallback")
}
