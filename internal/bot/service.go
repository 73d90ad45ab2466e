// Package bot is the WhatsApp command dispatcher. It classifies each
// inbound message, answers text commands synchronously, and turns photos,
// reels and image edits into background tasks that describe, host and
// publish the seller's craft.
package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/chat"
	"github.com/kalaasaarathi/shopbot/internal/imagehost"
	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/publish"
	"github.com/kalaasaarathi/shopbot/internal/store"
	"github.com/kalaasaarathi/shopbot/internal/tasks"
	"github.com/kalaasaarathi/shopbot/internal/whatsapp"
)

// Inbound is one message received on the webhook.
type Inbound struct {
	From             string
	Body             string
	NumMedia         int
	MediaURL         string
	MediaContentType string
}

// HasMedia reports whether the message carries an attachment.
func (in Inbound) HasMedia() bool {
	return in.NumMedia > 0 && in.MediaURL != ""
}

// ParseNumMedia reads the NumMedia form field; anything unparseable is 0.
func ParseNumMedia(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Reply is the dispatcher's single response action: a text answered
// immediately, optionally with a background task to start.
type Reply struct {
	Text string
	Task *tasks.Spec
}

// Publisher renders and deploys storefront pages.
type Publisher interface {
	Publish(ctx context.Context, in publish.PageInput) string
	RebuildIndex(ctx context.Context, products []*store.Product, reels []*store.Reel) error
	ProductURL(id string) string
}

// Submitter starts background tasks.
type Submitter interface {
	Submit(spec tasks.Spec) (string, error)
}

// Deps are the collaborators of a Service. Nil adapters are replaced by
// their fallback variants.
type Deps struct {
	Store     store.RecordStore
	Describer chat.Describer
	Uploader  imagehost.Uploader
	Fetcher   media.Fetcher
	Publisher Publisher
	Messenger whatsapp.Messenger
	Runner    Submitter
}

// Service handles inbound messages.
type Service struct {
	store     store.RecordStore
	describer chat.Describer
	uploader  imagehost.Uploader
	fetcher   media.Fetcher
	publisher Publisher
	messenger whatsapp.Messenger
	runner    Submitter
}

// NewService wires a Service. Store, Fetcher, Publisher and Runner are
// required.
func NewService(d Deps) *Service {
	if d.Describer == nil {
		d.Describer = chat.FallbackDescriber{}
	}
	if d.Uploader == nil {
		d.Uploader = imagehost.FallbackUploader{}
	}
	if d.Messenger == nil {
		d.Messenger = whatsapp.LogMessenger{}
	}
	return &Service{
		store:     d.Store,
		describer: d.Describer,
		uploader:  d.Uploader,
		fetcher:   d.Fetcher,
		publisher: d.Publisher,
		messenger: d.Messenger,
		runner:    d.Runner,
	}
}

// Handle dispatches a message, starts its background task if any, and
// returns the immediate reply text. When the task queue is full the seller
// still gets the acknowledgment, followed by a busy message. A republish
// that cannot be queued runs before returning instead, since the seller has
// already been told the edit succeeded.
func (s *Service) Handle(ctx context.Context, in Inbound) string {
	reply := s.Dispatch(ctx, in)
	if reply.Task == nil {
		return reply.Text
	}

	id, err := s.runner.Submit(*reply.Task)
	switch {
	case err != nil && reply.Task.Kind == tasks.KindRepublish:
		log.Warn().Err(err).Str("from", store.NormalizePhone(in.From)).Msg("Republish not queued, running inline")
		if err := reply.Task.Run(context.WithoutCancel(ctx), nil); err != nil {
			log.Error().Err(err).Msg("Inline republish failed")
		}
	case errors.Is(err, tasks.ErrQueueFull):
		log.Warn().Str("taskId", id).Str("kind", reply.Task.Kind).Msg("Task queue full, asking seller to retry")
		s.send(ctx, in.From, MsgBusy)
	case err != nil:
		log.Error().Err(err).Str("kind", reply.Task.Kind).Msg("Failed to start task")
		s.send(ctx, in.From, MsgBusy)
	default:
		log.Info().Str("taskId", id).Str("kind", reply.Task.Kind).Str("from", store.NormalizePhone(in.From)).Msg("Task started")
	}
	return reply.Text
}

// send delivers a follow-up message, logging failures.
func (s *Service) send(ctx context.Context, to, body string) {
	if err := s.messenger.Send(ctx, to, body); err != nil {
		log.Error().Err(err).Str("to", store.NormalizePhone(to)).Msg("Failed to send message")
	}
}

// rebuildIndex refreshes the shop index from the store.
func (s *Service) rebuildIndex(ctx context.Context) {
	products, err := s.store.ListProducts(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list products for shop index")
		return
	}
	reels, err := s.store.ListReels(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list reels for shop index")
		return
	}
	if err := s.publisher.RebuildIndex(ctx, products, reels); err != nil {
		log.Error().Err(err).Int("products", len(products)).Int("reels", len(reels)).Msg("Failed to rebuild shop index")
	}
}

// Describer, Uploader and Messenger report the adapters in use, for /health.
func (s *Service) Describer() chat.Describer { return s.describer }

func (s *Service) Uploader() imagehost.Uploader { return s.uploader }

func (s *Service) Messenger() whatsapp.Messenger { return s.messenger }
