package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/kalaasaarathi/shopbot/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	site := t.TempDir()
	cfg.SiteDir = site
	cfg.DataDir = site
	cfg.ScratchDir = t.TempDir()
	cfg.PublicBaseURL = "https://shop.example.com"
	return cfg
}

func TestNew_FallbacksWithoutCredentials(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{Name: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	if a.Services.Gemini || a.Services.Deployment || a.Services.Shipping || a.Services.SMS {
		t.Errorf("expected fallback services, got %+v", a.Services)
	}
	if !a.Services.ImageProcessing {
		t.Error("site directory uploader should count as live image processing")
	}
	if got := a.Bot.Describer().Name(); got != "fallback" {
		t.Errorf("describer = %s", got)
	}
	if got := a.Bot.Messenger().Name(); got != "log" {
		t.Errorf("messenger = %s", got)
	}

	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	var health struct {
		Status   string          `json:"status"`
		Services map[string]bool `json:"services"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &health); err != nil || health.Status != "healthy" {
		t.Errorf("unexpected /health %d %s", rr.Code, rr.Body.String())
	}
}

func TestNew_WebhookGreeting(t *testing.T) {
	a, err := New(context.Background(), testConfig(t), Options{Name: "test", InlineTasks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	form := url.Values{"From": {"whatsapp:+919876543210"}, "Body": {"hi"}, "NumMedia": {"0"}}
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "Welcome to KalaaSaarathi") {
		t.Errorf("unexpected webhook response %d %s", rr.Code, rr.Body.String())
	}
}

func TestNew_SignatureValidationRequiresToken(t *testing.T) {
	cfg := testConfig(t)
	cfg.TwilioValidateSignature = true
	cfg.TwilioAuthToken = "secret"
	a, err := New(context.Background(), cfg, Options{Name: "test"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader("Body=hi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Errorf("expected 403 for unsigned request, got %d", rr.Code)
	}
}

func TestNew_UnsignedWebhookSkipsForeignMedia(t *testing.T) {
	var hits atomic.Int32
	foreign := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("jpeg"))
	}))
	defer foreign.Close()

	a, err := New(context.Background(), testConfig(t), Options{Name: "test", InlineTasks: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close(context.Background())

	form := url.Values{
		"From":              {"whatsapp:+919876543210"},
		"NumMedia":          {"1"},
		"MediaUrl0":         {foreign.URL + "/steal"},
		"MediaContentType0": {"image/jpeg"},
	}
	req := httptest.NewRequest(http.MethodPost, "/whatsapp", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	a.Handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", rr.Code)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("media fetched from an untrusted host %d times", n)
	}
}
