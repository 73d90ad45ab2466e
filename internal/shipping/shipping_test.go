package shipping

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
)

type fakeMessenger struct {
	sms []string
	err error
}

func (f *fakeMessenger) Send(context.Context, string, string) error { return nil }
func (f *fakeMessenger) SendSMS(_ context.Context, to, body string) error {
	f.sms = append(f.sms, to+"|"+body)
	return f.err
}
func (f *fakeMessenger) Name() string { return "fake" }

var awbRe = regexp.MustCompile(`^DL[0-9A-F]{8}$`)

func TestFallbackLabel(t *testing.T) {
	l := FallbackLabel()
	if !awbRe.MatchString(l.AWB) {
		t.Errorf("unexpected AWB %q", l.AWB)
	}
	if l.LabelURL != FallbackLabelURL || l.TrackingURL != FallbackTrackingURL {
		t.Errorf("unexpected label %+v", l)
	}
}

func TestLabelClient_CreateLabel(t *testing.T) {
	var gotAuth, gotBuyer, gotValue string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/labels" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		_ = r.ParseForm()
		gotBuyer = r.PostForm.Get("buyer_name")
		gotValue = r.PostForm.Get("declared_value")
		w.Write([]byte(`{"awb":"AWB123","label_url":"https://c/l.pdf","tracking_url":"https://c/t/"}`))
	}))
	defer srv.Close()

	l, err := NewLabelClient(srv.URL+"/", "tok").CreateLabel(context.Background(), Request{ProductID: "p1", Price: 450, BuyerName: "Asha"})
	if err != nil {
		t.Fatalf("CreateLabel: %v", err)
	}
	if l.AWB != "AWB123" || l.LabelURL != "https://c/l.pdf" {
		t.Errorf("unexpected label %+v", l)
	}
	if gotAuth != "Token tok" || gotBuyer != "Asha" || gotValue != "450" {
		t.Errorf("request: auth=%q buyer=%q value=%q", gotAuth, gotBuyer, gotValue)
	}
}

func TestLabelClient_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"api error", http.StatusOK, `{"error":{"message":"pincode not serviceable","code":12}}`},
		{"http error", http.StatusBadGateway, `{}`},
		{"no awb", http.StatusOK, `{"label_url":"x"}`},
		{"not json", http.StatusOK, `<html>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()
			if _, err := NewLabelClient(srv.URL, "").CreateLabel(context.Background(), Request{}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

type failingLabeler struct{}

func (failingLabeler) CreateLabel(context.Context, Request) (*Label, error) {
	return nil, errors.New("courier down")
}
func (failingLabeler) Name() string { return "failing" }

func TestService_Ship(t *testing.T) {
	t.Run("fallback label and SMS", func(t *testing.T) {
		m := &fakeMessenger{}
		l := NewService(failingLabeler{}, m).Ship(context.Background(), Request{ProductID: "p1", BuyerPhone: "+919876543210"})
		if !awbRe.MatchString(l.AWB) {
			t.Errorf("expected demo AWB, got %q", l.AWB)
		}
		if len(m.sms) != 1 || !strings.HasPrefix(m.sms[0], "+919876543210|") || !strings.Contains(m.sms[0], l.AWB) {
			t.Errorf("unexpected SMS %v", m.sms)
		}
	})

	t.Run("sms failure is not fatal", func(t *testing.T) {
		m := &fakeMessenger{err: errors.New("no sender")}
		if l := NewService(nil, m).Ship(context.Background(), Request{BuyerPhone: "+91"}); l == nil {
			t.Fatal("expected a label")
		}
	})

	t.Run("no phone, no SMS", func(t *testing.T) {
		m := &fakeMessenger{}
		NewService(nil, m).Ship(context.Background(), Request{})
		if len(m.sms) != 0 {
			t.Errorf("unexpected SMS %v", m.sms)
		}
	})
}
