package bot

import (
	"context"
	"slices"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/media"
	"github.com/kalaasaarathi/shopbot/internal/metrics"
	"github.com/kalaasaarathi/shopbot/internal/store"
)

var (
	listCommands     = []string{"myproducts", "mylist", "my items"}
	categoryCommands = []string{"categories", "category", "filter"}
	greetings        = []string{"hi", "hello", "hey", "start", "नमस्ते"}
)

// Dispatch classifies a message and runs the matching handler. The first
// matching rule wins:
//
//  1. "edit ..."              edit a product
//  2. myproducts and synonyms list the sender's products
//  3. "profile ..."           view or update the seller profile
//  4. "reel ..."              add an attached video to reels
//  5. categories and synonyms list categories
//  6. a video attachment      ask for the reel command
//  7. any other attachment    list the photo as a product
//  8. a greeting              welcome text; anything else gets help
//
// The returned reply text is never empty.
func (s *Service) Dispatch(ctx context.Context, in Inbound) Reply {
	body := strings.TrimSpace(in.Body)
	cmd := strings.ToLower(body)
	isVideo := in.HasMedia() && media.IsVideo(in.MediaContentType)

	var route string
	var reply Reply
	switch {
	case strings.HasPrefix(cmd, "edit"):
		route = "edit"
		reply = s.handleEdit(ctx, in, body)
	case slices.Contains(listCommands, cmd):
		route = "myproducts"
		reply = Reply{Text: s.handleList(ctx, in.From)}
	case strings.HasPrefix(cmd, "profile"):
		route = "profile"
		reply = Reply{Text: s.handleProfile(ctx, in.From, body)}
	case strings.HasPrefix(cmd, "reel"):
		route = "reel"
		if !isVideo {
			reply = Reply{Text: MsgReelNeedsVideo}
			break
		}
		caption := strings.TrimSpace(body[len("reel"):])
		reply = Reply{Text: MsgReelAck, Task: s.reelTask(in, caption)}
	case slices.Contains(categoryCommands, cmd):
		route = "categories"
		reply = Reply{Text: CategoriesMessage()}
	case isVideo:
		route = "video"
		reply = Reply{Text: MsgVideoNeedsReel}
	case in.HasMedia():
		route = "photo"
		reply = Reply{Text: MsgPhotoAck, Task: s.photoTask(in)}
	case slices.Contains(greetings, cmd):
		route = "greeting"
		reply = Reply{Text: MsgWelcome}
	default:
		route = "help"
		reply = Reply{Text: MsgHelp}
	}

	metrics.RecordCommand(route)
	log.Info().
		Str("from", store.NormalizePhone(in.From)).
		Str("route", route).
		Int("numMedia", in.NumMedia).
		Bool("task", reply.Task != nil).
		Msg("Message dispatched")
	return reply
}
