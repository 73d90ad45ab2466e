package whatsapp

import (
	"context"
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"errors"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

type fakeAPI struct {
	sent []*openapi.CreateMessageParams
	err  error
}

func (f *fakeAPI) CreateMessage(p *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, p)
	sid := "SM123"
	return &openapi.ApiV2010Message{Sid: &sid}, nil
}

func TestTwilioMessenger_Send(t *testing.T) {
	api := &fakeAPI{}
	m := newTwilioMessenger(api, TwilioConfig{WhatsAppFrom: "+14155238886", SMSFrom: "+15005550006"})

	if err := m.Send(context.Background(), "+919876543210", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := m.Send(context.Background(), "whatsapp:+919876543210", strings.Repeat("x", MaxBodyLen+10)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := m.SendSMS(context.Background(), "whatsapp:+919876543210", "track"); err != nil {
		t.Fatalf("SendSMS: %v", err)
	}

	if len(api.sent) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(api.sent))
	}
	tests := []struct {
		to, from string
	}{
		{"whatsapp:+919876543210", "whatsapp:+14155238886"},
		{"whatsapp:+919876543210", "whatsapp:+14155238886"},
		{"+919876543210", "+15005550006"},
	}
	for i, tt := range tests {
		if *api.sent[i].To != tt.to || *api.sent[i].From != tt.from {
			t.Errorf("message %d: to=%s from=%s, want %s %s", i, *api.sent[i].To, *api.sent[i].From, tt.to, tt.from)
		}
	}
	if n := len([]rune(*api.sent[1].Body)); n != MaxBodyLen {
		t.Errorf("long body not truncated: %d runes", n)
	}
}

func TestTwilioMessenger_Errors(t *testing.T) {
	m := newTwilioMessenger(&fakeAPI{err: errors.New("20003 auth")}, TwilioConfig{WhatsAppFrom: "+1"})
	if err := m.Send(context.Background(), "+91", "x"); err == nil {
		t.Error("expected API error")
	}
	if err := m.SendSMS(context.Background(), "+91", "x"); err == nil {
		t.Error("expected error without SMS sender")
	}
}

func TestTwilioMessenger_Throttle(t *testing.T) {
	m := newTwilioMessenger(&fakeAPI{}, TwilioConfig{WhatsAppFrom: "+1", SendRate: 0.001, SendBurst: 1})
	if err := m.Send(context.Background(), "+91", "first"); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := m.Send(ctx, "+91", "second"); err == nil {
		t.Error("expected the second send to be throttled")
	}
}

func TestReplyTwiML(t *testing.T) {
	got, err := ReplyTwiML("Hi & welcome <3")
	if err != nil {
		t.Fatalf("ReplyTwiML: %v", err)
	}
	for _, want := range []string{"<Response>", "<Message>", "Hi &amp; welcome &lt;3", "</Message>", "</Response>"} {
		if !strings.Contains(got, want) {
			t.Errorf("TwiML %q missing %q", got, want)
		}
	}
}

// sign computes a Twilio request signature: HMAC-SHA1 over the URL followed
// by the sorted form keys and values.
func sign(token, u string, form url.Values) string {
	keys := make([]string, 0, len(form))
	for k := range form {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(u)
	for _, k := range keys {
		b.WriteString(k + form.Get(k))
	}
	mac := hmac.New(sha1.New, []byte(token))
	mac.Write([]byte(b.String()))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestSignatureValidator(t *testing.T) {
	const token = "auth-token"
	u := "https://bot.example.com/whatsapp"
	form := url.Values{"Body": {"hi"}, "From": {"whatsapp:+919876543210"}, "NumMedia": {"0"}}
	v := NewSignatureValidator(token)

	if !v.Valid(u, form, sign(token, u, form)) {
		t.Error("expected valid signature")
	}
	if v.Valid(u, form, sign("other", u, form)) {
		t.Error("signature from another token should fail")
	}
	if v.Valid(u, form, "") {
		t.Error("missing signature should fail")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"नमस्ते दुनिया", 6, "नमस..."},
		{"abcdef", 2, "ab"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.n); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
