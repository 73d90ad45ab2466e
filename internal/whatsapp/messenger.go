// Package whatsapp is the messaging transport: outbound WhatsApp and SMS
// through the Twilio REST API, TwiML rendering for webhook replies, and
// validation of Twilio's request signatures.
package whatsapp

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"golang.org/x/time/rate"
)

// MaxBodyLen is Twilio's limit on a WhatsApp message body.
const MaxBodyLen = 1600

// Messenger sends follow-up messages outside the webhook reply.
type Messenger interface {
	// Send delivers a WhatsApp message. to may carry the whatsapp: prefix.
	Send(ctx context.Context, to, body string) error
	// SendSMS delivers a plain SMS.
	SendSMS(ctx context.Context, to, body string) error
	Name() string
}

// messageCreator is the part of the Twilio API service used here.
type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioMessenger sends through the Twilio REST API. Sends are throttled by
// a token bucket shared by WhatsApp and SMS.
type TwilioMessenger struct {
	api     messageCreator
	from    string
	smsFrom string
	limiter *rate.Limiter
}

// TwilioConfig holds the credentials and senders for NewTwilioMessenger.
type TwilioConfig struct {
	AccountSID   string
	AuthToken    string
	WhatsAppFrom string
	SMSFrom      string
	// SendRate is messages per second; SendBurst the bucket size.
	SendRate  float64
	SendBurst int
}

// NewTwilioMessenger builds a messenger from account credentials.
func NewTwilioMessenger(cfg TwilioConfig) *TwilioMessenger {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return newTwilioMessenger(client.Api, cfg)
}

func newTwilioMessenger(api messageCreator, cfg TwilioConfig) *TwilioMessenger {
	limit := rate.Limit(cfg.SendRate)
	if cfg.SendRate <= 0 {
		limit = rate.Inf
	}
	burst := cfg.SendBurst
	if burst < 1 {
		burst = 1
	}
	return &TwilioMessenger{
		api:     api,
		from:    withWhatsAppPrefix(cfg.WhatsAppFrom),
		smsFrom: strings.TrimPrefix(cfg.SMSFrom, "whatsapp:"),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (m *TwilioMessenger) Name() string { return "twilio" }

// Send implements Messenger.
func (m *TwilioMessenger) Send(ctx context.Context, to, body string) error {
	return m.create(ctx, withWhatsAppPrefix(to), m.from, body)
}

// SendSMS implements Messenger.
func (m *TwilioMessenger) SendSMS(ctx context.Context, to, body string) error {
	if m.smsFrom == "" {
		return fmt.Errorf("sms: no sender number configured")
	}
	return m.create(ctx, strings.TrimPrefix(to, "whatsapp:"), m.smsFrom, body)
}

func (m *TwilioMessenger) create(ctx context.Context, to, from, body string) error {
	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("send throttled: %w", err)
	}
	start := time.Now()

	params := &openapi.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(from)
	params.SetBody(Truncate(body, MaxBodyLen))

	resp, err := m.api.CreateMessage(params)
	if err != nil {
		log.Error().Err(err).Str("to", to).Msg("Twilio send failed")
		return fmt.Errorf("twilio create message: %w", err)
	}

	sid := ""
	if resp != nil && resp.Sid != nil {
		sid = *resp.Sid
	}
	log.Debug().
		Str("to", to).
		Str("sid", sid).
		Int("chars", len([]rune(body))).
		Dur("duration", time.Since(start)).
		Msg("Message sent")
	return nil
}

// LogMessenger writes messages to the log instead of sending them. It is
// used when Twilio credentials are not configured.
type LogMessenger struct{}

func (LogMessenger) Send(_ context.Context, to, body string) error {
	log.Info().Str("to", to).Str("body", body).Msg("Outbound WhatsApp message (not sent, no Twilio credentials)")
	return nil
}

func (LogMessenger) SendSMS(_ context.Context, to, body string) error {
	log.Info().Str("to", to).Str("body", body).Msg("Outbound SMS (not sent, no Twilio credentials)")
	return nil
}

func (LogMessenger) Name() string { return "log" }

func withWhatsAppPrefix(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || strings.HasPrefix(addr, "whatsapp:") {
		return addr
	}
	return "whatsapp:" + addr
}

// Truncate shortens s to at most n runes, marking the cut with "...".
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
