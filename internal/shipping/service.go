package shipping

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/whatsapp"
)

// Service creates labels and notifies buyers.
type Service struct {
	labeler   Labeler
	messenger whatsapp.Messenger
}

// NewService returns a Service. A nil labeler selects FallbackLabeler; a
// nil messenger skips the tracking SMS.
func NewService(labeler Labeler, messenger whatsapp.Messenger) *Service {
	if labeler == nil {
		labeler = FallbackLabeler{}
	}
	return &Service{labeler: labeler, messenger: messenger}
}

// Labeler reports the configured label adapter.
func (s *Service) Labeler() Labeler { return s.labeler }

// Ship creates a label and texts the tracking number to the buyer. A failed
// label call falls back to a demo label; a failed SMS is logged only.
func (s *Service) Ship(ctx context.Context, req Request) *Label {
	label, err := s.labeler.CreateLabel(ctx, req)
	if err != nil {
		log.Warn().Err(err).Str("productId", req.ProductID).Str("adapter", s.labeler.Name()).Msg("Label creation failed, using demo label")
		metrics.RecordFallback("shipping")
		label = FallbackLabel()
	}

	if s.messenger != nil && req.BuyerPhone != "" {
		if err := s.messenger.SendSMS(ctx, req.BuyerPhone, TrackingMessage(label)); err != nil {
			log.Warn().Err(err).Str("productId", req.ProductID).Msg("Failed to send tracking SMS")
			metrics.RecordFallback("sms")
		}
	}
	return label
}

// TrackingMessage is the SMS sent to the buyer.
func TrackingMessage(l *Label) string {
	return fmt.Sprintf("📦 Your KalaaSaarathi order has shipped! AWB: %s. Track it at %s%s", l.AWB, l.TrackingURL, l.AWB)
}
