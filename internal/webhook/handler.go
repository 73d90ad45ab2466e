// Package webhook provides the HTTP handler for inbound WhatsApp messages
// delivered by the messaging provider.
//
// The provider sends a form-encoded POST per message:
//
//	POST /whatsapp
//	From=whatsapp:+91...&Body=...&NumMedia=1&MediaUrl0=...&MediaContentType0=image/jpeg
//
// The handler dispatches the message and answers with a TwiML document
// holding the immediate reply. Follow-up messages from background tasks are
// sent through the REST API, not through this response.
//
// When signature validation is enabled, X-Twilio-Signature must be the
// HMAC-SHA1 of the full public URL plus the sorted form fields, keyed by the
// account auth token.
package webhook

import (
	"context"
	"net/http"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/bot"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/kalaasaarathi/shopbot/internal/whatsapp"
)

// maxBodySize is the maximum allowed request body size (1 MB). Messages
// carry media by URL, so real payloads are a few kilobytes.
const maxBodySize = 1 << 20 // 1 MB

// signatureHeader carries the provider's request signature.
const signatureHeader = "X-Twilio-Signature"

// MessageHandler answers one inbound message with the immediate reply text.
type MessageHandler interface {
	Handle(ctx context.Context, in bot.Inbound) string
}

// Handler handles inbound WhatsApp webhooks.
type Handler struct {
	bot       MessageHandler
	validator *whatsapp.SignatureValidator
	baseURL   string
}

// NewHandler creates a webhook handler. A nil validator disables signature
// checks.
//
// baseURL is the public scheme and host the provider posts to, such as
// https://abc.ngrok.app. Signatures cover the URL the provider used, which
// differs from r.Host behind tunnels and API gateways. When empty, the URL
// is rebuilt from X-Forwarded-Proto and the Host header.
func NewHandler(b MessageHandler, validator *whatsapp.SignatureValidator, baseURL string) *Handler {
	return &Handler{
		bot:       b,
		validator: validator,
		baseURL:   strings.TrimRight(baseURL, "/"),
	}
}

// ServeHTTP accepts POST only.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.handleMessage(w, r)
}

// handleMessage parses the form, validates the signature and writes the
// TwiML reply. A panic anywhere in dispatch is turned into an apology so
// the seller is never left without an answer.
func (h *Handler) handleMessage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := r.ParseForm(); err != nil {
		log.Warn().Err(err).Msg("Webhook message: failed to parse form")
		http.Error(w, "invalid form body", http.StatusBadRequest)
		return
	}

	if h.validator != nil {
		fullURL := h.requestURL(r)
		if !h.validator.Valid(fullURL, r.PostForm, r.Header.Get(signatureHeader)) {
			log.Warn().Str("url", fullURL).Msg("Webhook message: invalid signature")
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	in := bot.Inbound{
		From:             r.PostForm.Get("From"),
		Body:             r.PostForm.Get("Body"),
		NumMedia:         bot.ParseNumMedia(r.PostForm.Get("NumMedia")),
		MediaURL:         r.PostForm.Get("MediaUrl0"),
		MediaContentType: r.PostForm.Get("MediaContentType0"),
	}
	log.Info().
		Str("from", store.NormalizePhone(in.From)).
		Int("numMedia", in.NumMedia).
		Int("bodyLen", len(in.Body)).
		Msg("Webhook message received")

	writeTwiML(w, h.reply(r.Context(), in))
}

// reply runs the bot, recovering from panics.
func (h *Handler) reply(ctx context.Context, in bot.Inbound) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().
				Interface("panic", rec).
				Str("stack", string(debug.Stack())).
				Str("from", store.NormalizePhone(in.From)).
				Msg("Webhook message: handler panicked")
			text = bot.MsgApology
		}
	}()
	return h.bot.Handle(ctx, in)
}

// requestURL reconstructs the URL the provider signed.
func (h *Handler) requestURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + r.URL.RequestURI()
	}
	scheme := "https"
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	} else if r.TLS == nil {
		scheme = "http"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

func writeTwiML(w http.ResponseWriter, text string) {
	body, err := whatsapp.ReplyTwiML(text)
	if err != nil {
		log.Error().Err(err).Msg("Webhook message: failed to render TwiML")
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", whatsapp.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}
