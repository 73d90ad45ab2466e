package whatsapp

import (
	"net/url"

	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
)

// ContentType is the media type of a TwiML response.
const ContentType = "application/xml"

// ReplyTwiML renders a messaging response with a single message.
func ReplyTwiML(text string) (string, error) {
	msg := &twiml.MessagingMessage{Body: Truncate(text, MaxBodyLen)}
	return twiml.Messages([]twiml.Element{msg})
}

// SignatureValidator checks the X-Twilio-Signature header of webhook
// requests against the account auth token.
type SignatureValidator struct {
	v client.RequestValidator
}

// NewSignatureValidator returns a validator for authToken.
func NewSignatureValidator(authToken string) *SignatureValidator {
	return &SignatureValidator{v: client.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the full request URL and the
// posted form fields.
func (s *SignatureValidator) Valid(fullURL string, form url.Values, signature string) bool {
	if signature == "" {
		return false
	}
	params := make(map[string]string, len(form))
	for k, v := range form {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return s.v.Validate(fullURL, params, signature)
}
