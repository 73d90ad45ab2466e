// Package shipping creates courier labels for sold products and sends the
// buyer a tracking SMS.
//
// The label API is reached through LabelClient. When no API is configured,
// or a call fails, a demo label with a random AWB number is used so the
// seller still gets a usable response.
package shipping

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const defaultTimeout = 30 * time.Second

// Demo label values used by FallbackLabeler.
const (
	FallbackLabelURL    = "https://demo.delhivery.com/label/sample"
	FallbackTrackingURL = "https://demo.delhivery.com/track/"
)

// Label is a created shipment.
type Label struct {
	AWB         string `json:"awb"`
	LabelURL    string `json:"label_url"`
	TrackingURL string `json:"tracking_url"`
}

// Request describes the shipment to create.
type Request struct {
	ProductID    string
	ProductTitle string
	Price        int
	BuyerName    string
	BuyerAddress string
	BuyerPhone   string
}

// Labeler creates shipping labels.
type Labeler interface {
	CreateLabel(ctx context.Context, req Request) (*Label, error)
	Name() string
}

// FallbackLabel returns a demo label with a fresh AWB number.
func FallbackLabel() *Label {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return &Label{
		AWB:         "DL" + strings.ToUpper(hex.EncodeToString(b)),
		LabelURL:    FallbackLabelURL,
		TrackingURL: FallbackTrackingURL,
	}
}

// FallbackLabeler always returns FallbackLabel.
type FallbackLabeler struct{}

func (FallbackLabeler) CreateLabel(context.Context, Request) (*Label, error) {
	return FallbackLabel(), nil
}

func (FallbackLabeler) Name() string { return "fallback" }

// LabelClient calls a courier label API. It posts form fields to
// <baseURL>/labels with a token header and expects a JSON label back.
type LabelClient struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewLabelClient returns a client for the API at baseURL.
func NewLabelClient(baseURL, token string) *LabelClient {
	return &LabelClient{
		httpClient: &http.Client{Timeout: defaultTimeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

func (c *LabelClient) Name() string { return "api" }

// labelResponse is the API reply: a label or an error object.
type labelResponse struct {
	Label
	Error *apiErr `json:"error,omitempty"`
}

type apiErr struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CreateLabel implements Labeler.
func (c *LabelClient) CreateLabel(ctx context.Context, req Request) (*Label, error) {
	params := url.Values{
		"product_id":     {req.ProductID},
		"product_title":  {req.ProductTitle},
		"declared_value": {strconv.Itoa(req.Price)},
		"buyer_name":     {req.BuyerName},
		"buyer_address":  {req.BuyerAddress},
		"buyer_phone":    {req.BuyerPhone},
	}

	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/labels", strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Token "+c.token)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		return nil, fmt.Errorf("label request failed: %w", err)
	}
	defer httpResp.Body.Close()
	log.Debug().Int("statusCode", httpResp.StatusCode).Dur("duration", duration).Msg("Shipping API response")

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	var resp labelResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse response (status %d): %w (body: %s)", httpResp.StatusCode, err, truncate(string(body), 200))
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("shipping API error: %s (code: %d)", resp.Error.Message, resp.Error.Code)
	}
	if httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("shipping API returned status %d", httpResp.StatusCode)
	}
	if resp.AWB == "" {
		return nil, fmt.Errorf("unexpected response: no AWB returned (body: %s)", truncate(string(body), 200))
	}

	log.Info().Str("productId", req.ProductID).Str("awb", resp.AWB).Dur("duration", duration).Msg("Shipping label created")
	label := resp.Label
	return &label, nil
}

// truncate returns the first n bytes of s, appending "..." if truncated.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
