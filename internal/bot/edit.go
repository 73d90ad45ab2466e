package bot

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/kalaasaarathi/shopbot/internal/store"
)

// handleEdit implements "edit PRODUCT_ID FIELD VALUE". PRODUCT_ID may be
// the 8-character prefix the bot hands out. With a photo attached,
// "edit PRODUCT_ID" alone replaces the images.
func (s *Service) handleEdit(ctx context.Context, in Inbound, body string) Reply {
	parts := strings.Fields(body)
	if (len(parts) < 4 && !in.HasMedia()) || len(parts) < 2 {
		return Reply{Text: MsgEditUsage}
	}
	idArg := parts[1]
	field := "image"
	if len(parts) > 2 {
		field = strings.ToLower(parts[2])
	}
	var value string
	if len(parts) > 3 {
		value = unquote(strings.Join(parts[3:], " "))
	}

	var price int
	switch field {
	case "price":
		n, err := strconv.Atoi(value)
		if !isDigits(value) || err != nil {
			return Reply{Text: MsgEditBadPrice}
		}
		price = n
	case "description", "title", "category":
		if value == "" {
			return Reply{Text: MsgEditUsage}
		}
	case "image":
		if !in.HasMedia() {
			return Reply{Text: MsgEditNeedsImage}
		}
	default:
		return Reply{Text: MsgEditBadField}
	}

	product, err := s.store.FindProduct(ctx, idArg)
	switch {
	case errors.Is(err, store.ErrAmbiguousID):
		return Reply{Text: MsgEditAmbiguous}
	case err != nil:
		log.Error().Err(err).Str("id", idArg).Msg("Failed to look up product for edit")
		return Reply{Text: MsgEditError}
	case product == nil:
		return Reply{Text: MsgEditNotFound}
	}
	if !product.OwnedBy(in.From) {
		log.Warn().Str("productId", product.ID).Str("from", store.NormalizePhone(in.From)).Msg("Product edited by a number other than its artisan")
	}

	if field == "image" {
		return Reply{Text: EditImageAckMessage(product.ID), Task: s.editImageTask(in, product.ID)}
	}

	if field == "category" {
		value = strings.ToLower(value)
		if !store.IsCategory(value) {
			// Free text is accepted; the storefront filter just won't list it.
			log.Warn().Str("productId", product.ID).Str("category", value).Msg("Category outside the advertised set")
		}
	}

	updated, err := s.store.UpdateProduct(ctx, product.ID, func(p *store.Product) error {
		switch field {
		case "price":
			p.Price = price
		case "description":
			p.Description = value
		case "title":
			p.Title = value
		case "category":
			p.Category = value
		}
		p.UpdatedAt = store.Now()
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return Reply{Text: MsgEditNotFound}
	}
	if err != nil {
		log.Error().Err(err).Str("productId", product.ID).Str("field", field).Msg("Failed to update product")
		return Reply{Text: MsgEditError}
	}

	log.Info().Str("productId", product.ID).Str("field", field).Msg("Product updated")
	return Reply{Text: UpdatedMessage(field, product.ID), Task: s.republishTask(in.From, updated)}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// unquote strips one pair of surrounding quotes, as in
// edit abc123 title "Blue Pot". WhatsApp sends curly quotes on most phones.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	for _, q := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= len(q[0])+len(q[1]) && strings.HasPrefix(s, q[0]) && strings.HasSuffix(s, q[1]) {
			return strings.TrimSpace(s[len(q[0]) : len(s)-len(q[1])])
		}
	}
	return s
}
