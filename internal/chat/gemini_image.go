package chat

// gemini_image.go calls the Gemini image model over REST. The genai SDK
// returns generated images too, but the raw request keeps the payload
// identical to what the image model docs show and lets tests point the
// client at an httptest server.

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// geminiBaseURL is the Gemini REST API base URL.
const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// maxImageResponseBytes bounds the REST response; edited photos come back
// base64 encoded.
const maxImageResponseBytes = 40 << 20

const backgroundSystemInstruction = "You prepare product photos for an online craft shop. " +
	"Never change the product itself: keep its shape, colours, texture and proportions exactly."

const backgroundInstruction = "Remove the background from this product photo. " +
	"Place the product, centred, on a plain pure white background with a soft natural shadow. " +
	"Return only the edited image."

// BackgroundRemover returns the product photo on a clean background.
type BackgroundRemover interface {
	RemoveBackground(ctx context.Context, image []byte, mimeType string) (*ImageResult, error)
}

// GeminiImageClient edits photos with a Gemini image model via REST.
type GeminiImageClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiImageClient creates a client for model, or DefaultImageModelName
// when model is empty.
func NewGeminiImageClient(apiKey, model string) *GeminiImageClient {
	return &GeminiImageClient{
		apiKey:  apiKey,
		model:   resolveModel(model, DefaultImageModelName),
		baseURL: geminiBaseURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // image generation can take 10-30s
		},
	}
}

// WithBaseURL points the client at another API origin.
func (c *GeminiImageClient) WithBaseURL(u string) *GeminiImageClient {
	c.baseURL = u
	return c
}

// --- REST API request/response types ---

type geminiRequest struct {
	Contents          []geminiContent         `json:"contents"`
	SystemInstruction *geminiContent          `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *geminiBlobData `json:"inlineData,omitempty"`
}

type geminiGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
}

type geminiBlobData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"` // base64
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
	Error      *geminiError      `json:"error,omitempty"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// ImageResult holds an edited image.
type ImageResult struct {
	Data     []byte
	MIMEType string
	// Text is any commentary the model returned alongside the image.
	Text string
}

// RemoveBackground asks the image model to cut the product out onto white.
func (c *GeminiImageClient) RemoveBackground(ctx context.Context, image []byte, mimeType string) (*ImageResult, error) {
	return c.EditImage(ctx, image, mimeType, backgroundInstruction, backgroundSystemInstruction)
}

// EditImage sends a photo with an instruction and returns the edited image.
func (c *GeminiImageClient) EditImage(ctx context.Context, image []byte, mimeType, instruction, systemInstruction string) (*ImageResult, error) {
	start := time.Now()
	log.Info().
		Str("model", c.model).
		Int("image_bytes", len(image)).
		Str("image_mime", mimeType).
		Msg("Sending image to Gemini for editing")

	req := geminiRequest{
		GenerationConfig: &geminiGenerationConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		},
		Contents: []geminiContent{{
			Role: "user",
			Parts: []geminiPart{
				{InlineData: &geminiBlobData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: instruction},
			},
		}},
	}
	if systemInstruction != "" {
		req.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: systemInstruction}},
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxImageResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Error().
			Int("status", resp.StatusCode).
			Str("body", truncateString(string(respBody), 500)).
			Msg("Gemini image editing API returned error")
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncateString(string(respBody), 200))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if geminiResp.Error != nil {
		return nil, fmt.Errorf("API error: %s (code: %d)", geminiResp.Error.Message, geminiResp.Error.Code)
	}

	result := &ImageResult{}
	for _, candidate := range geminiResp.Candidates {
		for _, part := range candidate.Content.Parts {
			if part.InlineData != nil {
				decoded, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
				if err != nil {
					return nil, fmt.Errorf("failed to decode image data: %w", err)
				}
				result.Data = decoded
				result.MIMEType = part.InlineData.MIMEType
			}
			if part.Text != "" {
				result.Text += part.Text
			}
		}
	}

	if result.Data == nil {
		return nil, fmt.Errorf("no image returned in response (text: %s)", truncateString(result.Text, 200))
	}

	log.Info().
		Int("output_bytes", len(result.Data)).
		Str("output_mime", result.MIMEType).
		Dur("duration", time.Since(start)).
		Msg("Gemini image editing complete")

	return result, nil
}

// truncateString truncates a string to maxLen, appending "..." if truncated.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
